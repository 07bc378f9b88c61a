// Package telemetry publishes API and forecast metrics to CloudWatch.
package telemetry

import (
	"context"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"

	"carbmine/internal/types"
)

// putTimeout bounds a single PutMetricData call made outside a request context.
const putTimeout = 2 * time.Second

// CloudWatchClient abstracts the CloudWatch PutMetricData operation for testability.
type CloudWatchClient interface {
	PutMetricData(ctx context.Context, params *cloudwatch.PutMetricDataInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error)
}

// Collector emits metrics to CloudWatch. Publish failures are logged and
// never returned to callers.
//
// Metrics emitted:
//   - APILatency, APIRequestCount: Dims {Endpoint, Method, Status}
//   - ForecastMethod: Dims {Method}
//   - ForecastFallback: Dims {Reason}, only on the heuristic path
//   - TrainingJob: Dims {Status}
type Collector struct {
	client    CloudWatchClient
	namespace string
	logger    types.Logger
}

// NewCollector creates a Collector publishing to types.MetricNamespace.
func NewCollector(client CloudWatchClient, logger types.Logger) *Collector {
	if logger == nil {
		logger = types.NewSlogLogger(nil)
	}
	return &Collector{
		client:    client,
		namespace: types.MetricNamespace,
		logger:    logger,
	}
}

// RecordRequest implements core.MetricsCollector.
func (c *Collector) RecordRequest(method, endpoint, status string, duration time.Duration) {
	ctx, cancel := context.WithTimeout(context.Background(), putTimeout)
	defer cancel()

	dims := []cwtypes.Dimension{
		dim(types.DimEndpoint, endpoint),
		dim(types.DimMethod, method),
		dim(types.DimStatus, status),
	}
	c.put(ctx, "request",
		cwtypes.MetricDatum{
			MetricName: aws.String(types.MetricAPILatency),
			Value:      aws.Float64(float64(duration.Milliseconds())),
			Unit:       cwtypes.StandardUnitMilliseconds,
			Dimensions: dims,
		},
		cwtypes.MetricDatum{
			MetricName: aws.String(types.MetricAPIRequestCount),
			Value:      aws.Float64(1),
			Unit:       cwtypes.StandardUnitCount,
			Dimensions: dims,
		},
	)
}

// RecordForecast implements forecasts.MetricsRecorder.
func (c *Collector) RecordForecast(ctx context.Context, method types.ForecastMethod, reason string) {
	data := []cwtypes.MetricDatum{{
		MetricName: aws.String(types.MetricForecastMethod),
		Value:      aws.Float64(1),
		Unit:       cwtypes.StandardUnitCount,
		Dimensions: []cwtypes.Dimension{dim(types.DimMethod, string(method))},
	}}
	if reason != "" {
		data = append(data, cwtypes.MetricDatum{
			MetricName: aws.String(types.MetricForecastFallback),
			Value:      aws.Float64(1),
			Unit:       cwtypes.StandardUnitCount,
			Dimensions: []cwtypes.Dimension{dim(types.DimReason, reason)},
		})
	}
	c.put(ctx, "forecast", data...)
}

// RecordTrainingJob counts finished training jobs by HTTP-style status.
func (c *Collector) RecordTrainingJob(ctx context.Context, status int) {
	c.put(ctx, "training",
		cwtypes.MetricDatum{
			MetricName: aws.String(types.MetricTrainingJob),
			Value:      aws.Float64(1),
			Unit:       cwtypes.StandardUnitCount,
			Dimensions: []cwtypes.Dimension{dim(types.DimStatus, strconv.Itoa(status))},
		},
	)
}

func (c *Collector) put(ctx context.Context, kind string, data ...cwtypes.MetricDatum) {
	_, err := c.client.PutMetricData(ctx, &cloudwatch.PutMetricDataInput{
		Namespace:  aws.String(c.namespace),
		MetricData: data,
	})
	if err != nil {
		c.logger.Error("failed to publish metric", "kind", kind, "error", err.Error())
	}
}

func dim(name, value string) cwtypes.Dimension {
	return cwtypes.Dimension{Name: aws.String(name), Value: aws.String(value)}
}
