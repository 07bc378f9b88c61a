package external

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"carbmine/internal/types"
)

// InferenceConfig configures an InferenceClient.
type InferenceConfig struct {
	// EndpointURL is the full URL that accepts prediction requests.
	EndpointURL string
	APIKey      string
	Logger      *slog.Logger
}

type inferenceRequest struct {
	Columns   []string    `json:"columns"`
	Instances [][]float64 `json:"instances"`
}

type inferenceResponse struct {
	Predictions []float64 `json:"predictions"`
}

// InferenceClient calls a hosted regression model. It satisfies
// types.Estimator.
type InferenceClient struct {
	base     *BaseClient
	endpoint string
	apiKey   string
	logger   *slog.Logger
}

// NewInferenceClient creates an InferenceClient with its own breaker and a
// short retry policy.
func NewInferenceClient(httpClient *http.Client, cfg InferenceConfig) *InferenceClient {
	base := NewBaseClient(
		httpClient,
		"inference",
		RetryPolicy{MaxRetries: 2, MinWait: 200 * time.Millisecond, MaxWait: 2 * time.Second},
		"CarbMine/1.0",
	)
	return NewInferenceClientWithBase(base, cfg)
}

// NewInferenceClientWithBase creates an InferenceClient over a prepared
// BaseClient.
func NewInferenceClientWithBase(base *BaseClient, cfg InferenceConfig) *InferenceClient {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &InferenceClient{
		base:     base,
		endpoint: strings.TrimSuffix(cfg.EndpointURL, "/"),
		apiKey:   cfg.APIKey,
		logger:   logger,
	}
}

// Predict posts the feature rows and returns one prediction per row.
func (c *InferenceClient) Predict(ctx context.Context, features [][]float64) ([]float64, error) {
	body, err := json.Marshal(inferenceRequest{Columns: types.FeatureColumns, Instances: features})
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalUnexpected, "failed to encode inference request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalUnexpected, "failed to build inference request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.base.Do(req)
	if err != nil {
		return nil, c.wrapError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		c.logger.ErrorContext(ctx, "inference endpoint rejected request",
			"status_code", resp.StatusCode,
			"response_body", string(snippet),
		)
		return nil, types.NewAppError(
			types.ErrCodeUpstreamEstimator,
			fmt.Sprintf("inference endpoint returned %d", resp.StatusCode),
			fmt.Errorf("inference returned %d: %s", resp.StatusCode, snippet),
		)
	}

	var out inferenceResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, types.NewAppError(types.ErrCodeUpstreamEstimator, "failed to decode inference response", err)
	}
	if len(out.Predictions) != len(features) {
		return nil, types.NewAppError(
			types.ErrCodeUpstreamEstimator,
			fmt.Sprintf("inference returned %d predictions for %d rows", len(out.Predictions), len(features)),
			nil,
		)
	}
	return out.Predictions, nil
}

func (c *InferenceClient) wrapError(err error) error {
	var appErr *types.AppError
	if errors.As(err, &appErr) {
		return types.NewAppError(appErr.Code, "inference: "+appErr.Message, appErr.Err)
	}
	return types.NewAppError(types.ErrCodeUpstreamEstimator, "inference request failed", err)
}

var _ types.Estimator = (*InferenceClient)(nil)
