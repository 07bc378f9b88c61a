// Package forecasts orchestrates a forecast request: history loading, the
// estimator path with its heuristic fallback, run persistence and metrics.
package forecasts

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"carbmine/internal/core"
	"carbmine/internal/trajectory"
	"carbmine/internal/types"
)

const (
	// ScenarioConcurrencyLimit caps concurrent scenario evaluations.
	ScenarioConcurrencyLimit = 10

	// MaxScenarios is the largest scenario batch accepted.
	MaxScenarios = 50
)

// Fallback reasons reported with the ForecastFallback metric.
const (
	FallbackNoEstimator    = "no_estimator"
	FallbackEstimatorError = "estimator_error"
)

// PredictRequest is a forecast window with optional final-year targets.
// Targets are capped at 1e13 so the projector's geometric convergence stays
// finite. CoalEnergyConsumptionMWh is an accepted alias of
// EnergyConsumptionMWh; sending both is rejected.
type PredictRequest struct {
	StartYear                int      `json:"start_year" validate:"required,year"`
	EndYear                  int      `json:"end_year" validate:"required,year,gtefield=StartYear"`
	CoalProductionTons       *float64 `json:"coal_production_tons,omitempty" validate:"omitempty,gte=0,lte=1e13"`
	EnergyConsumptionMWh     *float64 `json:"energy_consumption_mwh,omitempty" validate:"omitempty,gte=0,lte=1e13"`
	CoalEnergyConsumptionMWh *float64 `json:"coal_energy_consumption_mwh,omitempty" validate:"omitempty,excluded_with=EnergyConsumptionMWh,gte=0,lte=1e13"`
}

// energyTarget resolves the energy override across both field names.
func (r PredictRequest) energyTarget() *float64 {
	if r.EnergyConsumptionMWh != nil {
		return r.EnergyConsumptionMWh
	}
	return r.CoalEnergyConsumptionMWh
}

// PredictResponse is the result of a single forecast.
type PredictResponse struct {
	Predictions []types.PredictionResult `json:"predictions"`
	Method      types.ForecastMethod     `json:"method"`
	RunID       string                   `json:"run_id,omitempty"`
}

// ScenarioResult holds either a response or an error for one scenario.
type ScenarioResult struct {
	Index    int              `json:"index"`
	Response *PredictResponse `json:"response,omitempty"`
	Error    *ErrorDetail     `json:"error,omitempty"`
}

// ErrorDetail is a lightweight error used in scenario results.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// RequestValidator checks a request against its validate tags.
type RequestValidator interface {
	ValidateStruct(s any) error
}

// MetricsRecorder receives forecast outcomes. reason is empty unless the
// heuristic path was taken.
type MetricsRecorder interface {
	RecordForecast(ctx context.Context, method types.ForecastMethod, reason string)
}

// Service runs forecasts. It is safe for concurrent use; the estimator is
// shared read-only.
type Service struct {
	history   types.HistorySource
	estimator types.Estimator
	runs      types.ForecastRunRepository
	metrics   MetricsRecorder
	validator RequestValidator
	logger    *slog.Logger
	now       func() time.Time
	newID     func() string
}

// Option configures a Service.
type Option func(*Service)

// WithRunRepository enables persistence of forecast runs.
func WithRunRepository(repo types.ForecastRunRepository) Option {
	return func(s *Service) { s.runs = repo }
}

// WithMetrics sets the metrics recorder.
func WithMetrics(m MetricsRecorder) Option {
	return func(s *Service) { s.metrics = m }
}

// WithValidator replaces the default request validator.
func WithValidator(v RequestValidator) Option {
	return func(s *Service) { s.validator = v }
}

// WithClock overrides time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithIDGenerator overrides run ID generation, for tests.
func WithIDGenerator(f func() string) Option {
	return func(s *Service) { s.newID = f }
}

// NewService creates a Service. history and estimator may be nil: a nil
// source is empty history and a nil estimator forces the heuristic path.
func NewService(history types.HistorySource, estimator types.Estimator, logger *slog.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Service{
		history:   history,
		estimator: estimator,
		logger:    logger,
		now:       time.Now,
		newID:     uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.validator == nil {
		s.validator = core.NewValidator(logger)
	}
	return s
}

// HasEstimator reports whether the model path is available.
func (s *Service) HasEstimator() bool {
	return s.estimator != nil
}

// Predict runs one forecast. Only request validation errors are returned;
// estimator and storage failures degrade to the heuristic path or are logged.
func (s *Service) Predict(ctx context.Context, req PredictRequest) (*PredictResponse, error) {
	if err := s.validator.ValidateStruct(req); err != nil {
		return nil, err
	}
	req.EnergyConsumptionMWh, req.CoalEnergyConsumptionMWh = req.energyTarget(), nil

	history := s.loadHistory(ctx)
	projection := trajectory.ProjectionRequest{
		StartYear:          req.StartYear,
		EndYear:            req.EndYear,
		OverrideProduction: req.CoalProductionTons,
		OverrideEnergy:     req.EnergyConsumptionMWh,
	}

	var (
		predictions []types.PredictionResult
		method      types.ForecastMethod
		reason      string
	)
	if s.estimator == nil {
		reason = FallbackNoEstimator
	} else {
		rec, err := s.modelForecast(ctx, history, projection)
		if err != nil {
			s.logger.WarnContext(ctx, "model forecast failed, using heuristic",
				"error", err,
				"start_year", req.StartYear,
				"end_year", req.EndYear,
			)
			reason = FallbackEstimatorError
		} else {
			predictions = rec.Predictions
			method = types.MethodModel
			if rec.Degenerate {
				method = types.MethodModelPhysicsFallback
			}
		}
	}
	if reason != "" {
		predictions = trajectory.HeuristicForecast(history, projection)
		method = types.MethodHeuristic
	}

	if s.metrics != nil {
		s.metrics.RecordForecast(ctx, method, reason)
	}

	resp := &PredictResponse{Predictions: predictions, Method: method}
	resp.RunID = s.persist(ctx, req, resp)
	return resp, nil
}

func (s *Service) modelForecast(ctx context.Context, history []types.HistoricalRecord, req trajectory.ProjectionRequest) (trajectory.Reconciliation, error) {
	trend := trajectory.ExtractTrend(history)
	rows := trajectory.Project(history, trend, req)
	return trajectory.Reconcile(ctx, rows, s.estimator)
}

func (s *Service) loadHistory(ctx context.Context) []types.HistoricalRecord {
	if s.history == nil {
		return nil
	}
	records, err := s.history.Load(ctx)
	if err != nil {
		s.logger.WarnContext(ctx, "history unavailable, continuing without it", "error", err)
		return nil
	}
	return records
}

// persist stores the run and returns its ID, or "" when persistence is
// disabled or fails.
func (s *Service) persist(ctx context.Context, req PredictRequest, resp *PredictResponse) string {
	if s.runs == nil {
		return ""
	}
	run := &types.ForecastRun{
		ID:                 s.newID(),
		StartYear:          req.StartYear,
		EndYear:            req.EndYear,
		OverrideProduction: req.CoalProductionTons,
		OverrideEnergy:     req.EnergyConsumptionMWh,
		Method:             resp.Method,
		Predictions:        resp.Predictions,
		CreatedAt:          s.now().UTC(),
	}
	if err := s.runs.Create(ctx, run); err != nil {
		s.logger.ErrorContext(ctx, "failed to persist forecast run", "error", err, "run_id", run.ID)
		return ""
	}
	return run.ID
}

// PredictScenarios evaluates each request independently. Results keep the
// input order; a failing scenario does not affect the others.
func (s *Service) PredictScenarios(ctx context.Context, reqs []PredictRequest) ([]ScenarioResult, error) {
	if len(reqs) > MaxScenarios {
		return nil, types.NewAppError(
			types.ErrCodeValidationBatchSize,
			fmt.Sprintf("batch size %d exceeds maximum of %d scenarios", len(reqs), MaxScenarios),
			nil,
		)
	}

	// Each goroutine writes only its own index.
	results := make([]ScenarioResult, len(reqs))

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(ScenarioConcurrencyLimit)
	for i, req := range reqs {
		g.Go(func() error {
			resp, err := s.Predict(gCtx, req)
			res := ScenarioResult{Index: i, Response: resp}
			if err != nil {
				res.Error = toErrorDetail(err)
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalUnexpected, fmt.Sprintf("scenario batch error: %v", err), err)
	}
	return results, nil
}

// GetRun returns a persisted run.
func (s *Service) GetRun(ctx context.Context, id string) (*types.ForecastRun, error) {
	if s.runs == nil {
		return nil, types.NewAppError(types.ErrCodeFeatureDisabled, "forecast run storage is not configured", nil)
	}
	if _, err := uuid.Parse(id); err != nil {
		return nil, types.NewAppErrorWithDetails(types.ErrCodeValidationInvalidField, "invalid run id", nil, map[string]any{"field": "id"})
	}
	run, err := s.runs.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if run == nil {
		return nil, types.NewAppError(types.ErrCodeNotFoundForecastRun, "forecast run not found", nil)
	}
	return run, nil
}

// ListRuns returns the most recent runs, newest first.
func (s *Service) ListRuns(ctx context.Context, limit int) (*types.ListResponse[*types.ForecastRun], error) {
	if s.runs == nil {
		return nil, types.NewAppError(types.ErrCodeFeatureDisabled, "forecast run storage is not configured", nil)
	}
	limit = types.ClampLimit(limit)

	runs, err := s.runs.ListRecent(ctx, limit+1)
	if err != nil {
		return nil, err
	}
	hasMore := len(runs) > limit
	if hasMore {
		runs = runs[:limit]
	}
	if runs == nil {
		runs = []*types.ForecastRun{}
	}
	return &types.ListResponse[*types.ForecastRun]{
		Data:     runs,
		PageInfo: types.PageInfo{HasMore: hasMore, Limit: limit},
	}, nil
}

func toErrorDetail(err error) *ErrorDetail {
	var appErr *types.AppError
	if errors.As(err, &appErr) {
		return &ErrorDetail{Code: string(appErr.Code), Message: appErr.Message}
	}
	return &ErrorDetail{Code: string(types.ErrCodeInternalUnexpected), Message: err.Error()}
}
