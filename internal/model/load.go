package model

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"

	"carbmine/internal/external"
	"carbmine/internal/types"
)

// ErrModelUnavailable means no estimator could be constructed. Callers use
// the heuristic forecast path instead.
var ErrModelUnavailable = errors.New("model unavailable")

// LoaderConfig selects an estimator. EndpointURL wins over ArtifactPath.
type LoaderConfig struct {
	EndpointURL  string
	APIKey       string
	ArtifactPath string
	HTTPClient   *http.Client
	Logger       *slog.Logger
}

// Load builds the estimator described by cfg. A missing artifact yields an
// error wrapping ErrModelUnavailable; a corrupt one is a hard error.
func Load(cfg LoaderConfig) (types.Estimator, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	if cfg.EndpointURL != "" {
		logger.Info("using remote estimator", "endpoint", cfg.EndpointURL)
		return external.NewInferenceClient(cfg.HTTPClient, external.InferenceConfig{
			EndpointURL: cfg.EndpointURL,
			APIKey:      cfg.APIKey,
			Logger:      logger,
		}), nil
	}

	if cfg.ArtifactPath == "" {
		return nil, fmt.Errorf("%w: no artifact path configured", ErrModelUnavailable)
	}
	m, err := LoadArtifact(cfg.ArtifactPath)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s not found", ErrModelUnavailable, cfg.ArtifactPath)
	}
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalModel, "failed to load model artifact", err)
	}

	logger.Info("loaded model artifact", "path", cfg.ArtifactPath, "trained_at", m.TrainedAt)
	return m, nil
}
