// Package main is the entrypoint for the model Trainer Lambda function.
//
// The Trainer consumes TrainingJob messages from the training SQS queue,
// fits the linear emissions model on the named dataset and writes the model
// artifact and its hold-out metrics to the configured paths. The API picks
// up the new artifact on its next start.
//
// Handler flow, for each SQS message in the batch:
//  1. Decode the TrainingJob. Malformed jobs are logged and acknowledged.
//  2. Load the dataset and validate it for training.
//  3. Fit the model and write artifact + metrics.
//  4. Record the outcome as a TrainingJob metric.
//
// In local mode (APP_ENV=local) a single event is read from stdin. Either an
// SQS event or a bare TrainingJob is accepted:
//
//	echo '{"dataset_path":"data/coal_mining_emissions.csv"}' | go run ./cmd/trainer
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"

	"carbmine/internal/config"
	"carbmine/internal/history"
	"carbmine/internal/model"
	"carbmine/internal/queue"
	"carbmine/internal/telemetry"
	"carbmine/internal/types"
)

// JobMetrics records training outcomes.
type JobMetrics interface {
	RecordTrainingJob(ctx context.Context, status int)
}

type noopMetrics struct{}

func (noopMetrics) RecordTrainingJob(context.Context, int) {}

// Handler holds the dependencies for the trainer Lambda handler.
type Handler struct {
	openDataset  func(path string) (types.HistorySource, error)
	artifactPath string
	metricsPath  string
	fitOptions   model.FitOptions
	metrics      JobMetrics
	logger       types.Logger
}

// Handle processes an SQS event containing one or more training jobs.
// Jobs that fail for transient reasons are returned in BatchItemFailures so
// SQS retries only those messages.
func (h *Handler) Handle(ctx context.Context, sqsEvent events.SQSEvent) (events.SQSEventResponse, error) {
	response := events.SQSEventResponse{}

	for _, record := range sqsEvent.Records {
		if err := h.processMessage(ctx, record); err != nil {
			h.logger.Error("training job failed",
				"message_id", record.MessageId,
				"error", err.Error(),
			)
			response.BatchItemFailures = append(response.BatchItemFailures,
				events.SQSBatchItemFailure{ItemIdentifier: record.MessageId},
			)
		}
	}

	return response, nil
}

// processMessage runs one job. A nil return acknowledges the message, which
// includes jobs that can never succeed (bad payload, invalid dataset).
func (h *Handler) processMessage(ctx context.Context, record events.SQSMessage) error {
	job, err := queue.DecodeTrainingJob(record.Body)
	if err != nil {
		h.logger.Error("discarding malformed training job",
			"message_id", record.MessageId,
			"error", err.Error(),
		)
		h.metrics.RecordTrainingJob(ctx, http.StatusBadRequest)
		return nil
	}

	logger := h.logger.With(
		"job_id", job.JobID,
		"dataset_path", job.DatasetPath,
		"reason", job.Reason,
	)
	logger.Info("training job started")

	start := time.Now()
	metrics, err := h.train(ctx, job)
	if err != nil {
		var appErr *types.AppError
		if errors.As(err, &appErr) && appErr.HTTPStatus() < http.StatusInternalServerError {
			logger.Warn("training job rejected", "error", err.Error())
			h.metrics.RecordTrainingJob(ctx, appErr.HTTPStatus())
			return nil
		}
		h.metrics.RecordTrainingJob(ctx, http.StatusInternalServerError)
		return err
	}

	logger.Info("training job completed",
		"r2", metrics.R2,
		"rmse", metrics.RMSE,
		"train_rows", metrics.TrainRows,
		"test_rows", metrics.TestRows,
		"duration_ms", time.Since(start).Milliseconds(),
		"artifact", h.artifactPath,
	)
	h.metrics.RecordTrainingJob(ctx, http.StatusOK)
	return nil
}

// train fits a model on the job's dataset and persists the results.
func (h *Handler) train(ctx context.Context, job types.TrainingJob) (model.Metrics, error) {
	source, err := h.openDataset(job.DatasetPath)
	if err != nil {
		return model.Metrics{}, types.NewAppError(types.ErrCodeValidationInvalidDataset, err.Error(), err)
	}
	records, err := source.Load(ctx)
	if errors.Is(err, fs.ErrNotExist) {
		return model.Metrics{}, types.NewAppError(types.ErrCodeValidationInvalidDataset, "dataset not found", err)
	}
	if err != nil {
		return model.Metrics{}, fmt.Errorf("load dataset: %w", err)
	}
	if err := history.ValidateTrainingSet(records); err != nil {
		return model.Metrics{}, err
	}

	m, err := model.Fit(records, h.fitOptions)
	if err != nil {
		return model.Metrics{}, fmt.Errorf("fit: %w", err)
	}
	if err := model.SaveArtifact(h.artifactPath, m); err != nil {
		return model.Metrics{}, fmt.Errorf("save artifact: %w", err)
	}

	var metrics model.Metrics
	if m.Metrics != nil {
		metrics = *m.Metrics
	}
	if h.metricsPath != "" {
		if err := model.WriteMetrics(h.metricsPath, metrics); err != nil {
			return metrics, fmt.Errorf("write metrics: %w", err)
		}
	}
	return metrics, nil
}

// decodeLocalEvent accepts either an SQS event or a bare TrainingJob.
func decodeLocalEvent(payload []byte) (events.SQSEvent, error) {
	var sqsEvent events.SQSEvent
	if err := json.Unmarshal(payload, &sqsEvent); err != nil {
		return sqsEvent, fmt.Errorf("parse stdin: %w", err)
	}
	if len(sqsEvent.Records) > 0 {
		return sqsEvent, nil
	}
	return events.SQSEvent{Records: []events.SQSMessage{{
		MessageId: "local",
		Body:      string(bytes.TrimSpace(payload)),
	}}}, nil
}

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	logger.Info("Trainer Lambda initializing (cold start)")

	cfg, err := config.LoadConfig(nil)
	if err != nil {
		logger.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}
	typedLogger := types.NewSlogLogger(logger)

	var metrics JobMetrics = noopMetrics{}
	if cfg.Observability.EnableMetrics {
		awsCfg, err := config.LoadAWS(context.Background(), cfg.AWS)
		if err != nil {
			logger.Error("Failed to load AWS SDK config", "error", err)
			os.Exit(1)
		}
		metrics = telemetry.NewCollector(cloudwatch.NewFromConfig(awsCfg), typedLogger)
	}

	handler := &Handler{
		openDataset: func(path string) (types.HistorySource, error) {
			source, err := history.Open(path)
			if x, ok := source.(*history.XLSXSource); ok {
				x.Sheet = cfg.Data.HistorySheet
			}
			return source, err
		},
		artifactPath: cfg.Model.ArtifactPath,
		metricsPath:  cfg.Model.MetricsPath,
		fitOptions:   model.DefaultFitOptions(),
		metrics:      metrics,
		logger:       typedLogger,
	}

	logger.Info("Trainer Lambda initialized",
		"artifact_path", cfg.Model.ArtifactPath,
		"metrics_path", cfg.Model.MetricsPath,
	)

	if cfg.Environment == "local" {
		logger.Info("APP_ENV=local: reading training job from stdin")
		payload, err := io.ReadAll(os.Stdin)
		if err != nil {
			logger.Error("Failed to read stdin", "error", err)
			os.Exit(1)
		}
		if len(bytes.TrimSpace(payload)) == 0 {
			logger.Error("No input received on stdin")
			os.Exit(1)
		}
		sqsEvent, err := decodeLocalEvent(payload)
		if err != nil {
			logger.Error("Failed to parse stdin", "error", err)
			os.Exit(1)
		}
		response, _ := handler.Handle(context.Background(), sqsEvent)
		if len(response.BatchItemFailures) > 0 {
			respJSON, _ := json.MarshalIndent(response, "", "  ")
			fmt.Fprintln(os.Stderr, string(respJSON))
			os.Exit(1)
		}
		return
	}

	lambda.Start(handler.Handle)
}
