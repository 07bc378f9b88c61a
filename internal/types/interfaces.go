package types

import (
	"context"
	"log/slog"
)

// Estimator is the regression capability consumed by the forecast reconciler.
// Each feature row is the 6-tuple returned by ProjectedRow.Features; the column
// order is a contract with the trained coefficients.
type Estimator interface {
	Predict(ctx context.Context, features [][]float64) ([]float64, error)
}

// HistorySource loads the historical emissions series, sorted by year ascending.
type HistorySource interface {
	Load(ctx context.Context) ([]HistoricalRecord, error)
}

// ForecastRunRepository persists forecast runs for later retrieval.
type ForecastRunRepository interface {
	Create(ctx context.Context, run *ForecastRun) error
	GetByID(ctx context.Context, id string) (*ForecastRun, error)
	ListRecent(ctx context.Context, limit int) ([]*ForecastRun, error)
}

// Logger defines the structured logging interface used throughout the service.
type Logger interface {
	Info(msg string, args ...any)
	Error(msg string, args ...any)
	Warn(msg string, args ...any)
	With(args ...any) Logger
}

// slogAdapter adapts *slog.Logger to the Logger interface.
type slogAdapter struct {
	l *slog.Logger
}

// NewSlogLogger wraps a *slog.Logger so it satisfies Logger.
func NewSlogLogger(l *slog.Logger) Logger {
	if l == nil {
		l = slog.Default()
	}
	return &slogAdapter{l: l}
}

func (a *slogAdapter) Info(msg string, args ...any)  { a.l.Info(msg, args...) }
func (a *slogAdapter) Error(msg string, args ...any) { a.l.Error(msg, args...) }
func (a *slogAdapter) Warn(msg string, args ...any)  { a.l.Warn(msg, args...) }
func (a *slogAdapter) With(args ...any) Logger       { return &slogAdapter{l: a.l.With(args...)} }
