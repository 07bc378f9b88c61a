package forecasts

import (
	"context"
	"errors"
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"carbmine/internal/trajectory"
	"carbmine/internal/types"
)

// --- Mocks ---

type estimatorFunc func(ctx context.Context, features [][]float64) ([]float64, error)

func (f estimatorFunc) Predict(ctx context.Context, features [][]float64) ([]float64, error) {
	return f(ctx, features)
}

type staticHistory struct {
	records []types.HistoricalRecord
	err     error
}

func (h staticHistory) Load(context.Context) ([]types.HistoricalRecord, error) {
	return h.records, h.err
}

type mockRunRepo struct {
	mock.Mock
}

func (m *mockRunRepo) Create(ctx context.Context, run *types.ForecastRun) error {
	return m.Called(ctx, run).Error(0)
}

func (m *mockRunRepo) GetByID(ctx context.Context, id string) (*types.ForecastRun, error) {
	args := m.Called(ctx, id)
	if v := args.Get(0); v != nil {
		return v.(*types.ForecastRun), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockRunRepo) ListRecent(ctx context.Context, limit int) ([]*types.ForecastRun, error) {
	args := m.Called(ctx, limit)
	if v := args.Get(0); v != nil {
		return v.([]*types.ForecastRun), args.Error(1)
	}
	return nil, args.Error(1)
}

type mockMetrics struct {
	mock.Mock
}

func (m *mockMetrics) RecordForecast(ctx context.Context, method types.ForecastMethod, reason string) {
	m.Called(ctx, method, reason)
}

// --- Helpers ---

func ptr(v float64) *float64 { return &v }

func sampleHistory() []types.HistoricalRecord {
	return []types.HistoricalRecord{
		{Year: 2018, CoalProductionTons: 1_000_000, EnergyConsumptionMWh: 50_000, EmissionFactorKgCO2PerTon: 2000, MethaneEmissionsTons: 900, OtherGHGEmissionsTons: 400},
		{Year: 2019, CoalProductionTons: 1_100_000, EnergyConsumptionMWh: 52_000, EmissionFactorKgCO2PerTon: 2000, MethaneEmissionsTons: 950, OtherGHGEmissionsTons: 420},
		{Year: 2020, CoalProductionTons: 1_210_000, EnergyConsumptionMWh: 54_000, EmissionFactorKgCO2PerTon: 2000, MethaneEmissionsTons: 1000, OtherGHGEmissionsTons: 450},
	}
}

// yearEstimator returns a value that grows with the year column.
func yearEstimator() types.Estimator {
	return estimatorFunc(func(_ context.Context, features [][]float64) ([]float64, error) {
		out := make([]float64, len(features))
		for i, f := range features {
			out[i] = f[0] * 1000
		}
		return out, nil
	})
}

func assertAppCode(t *testing.T, err error, code types.ErrorCode) {
	t.Helper()
	var appErr *types.AppError
	require.True(t, errors.As(err, &appErr), "expected AppError, got %v", err)
	assert.Equal(t, code, appErr.Code)
}

// --- Predict ---

func TestPredict_ModelPath(t *testing.T) {
	svc := NewService(staticHistory{records: sampleHistory()}, yearEstimator(), nil)

	resp, err := svc.Predict(context.Background(), PredictRequest{StartYear: 2021, EndYear: 2023})
	require.NoError(t, err)

	assert.Equal(t, types.MethodModel, resp.Method)
	require.Len(t, resp.Predictions, 3)
	for i, p := range resp.Predictions {
		assert.Equal(t, 2021+i, p.Year)
		assert.Equal(t, float64(2021+i)*1000, p.PredictedTotalEmissionsTCO2e)
	}
	assert.Empty(t, resp.RunID)
}

func TestPredict_ConstantEstimatorUsesPhysicsTotals(t *testing.T) {
	flat := estimatorFunc(func(_ context.Context, features [][]float64) ([]float64, error) {
		out := make([]float64, len(features))
		for i := range out {
			out[i] = 42
		}
		return out, nil
	})
	history := sampleHistory()
	svc := NewService(staticHistory{records: history}, flat, nil)
	req := PredictRequest{StartYear: 2021, EndYear: 2025}

	resp, err := svc.Predict(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, types.MethodModelPhysicsFallback, resp.Method)
	rows := trajectory.Project(history, trajectory.ExtractTrend(history), trajectory.ProjectionRequest{StartYear: 2021, EndYear: 2025})
	require.Len(t, resp.Predictions, len(rows))
	for i, r := range rows {
		assert.InDelta(t, trajectory.PhysicsTotal(r), resp.Predictions[i].PredictedTotalEmissionsTCO2e, 1e-6)
	}
}

func TestPredict_EstimatorErrorFallsBackToHeuristic(t *testing.T) {
	failing := estimatorFunc(func(context.Context, [][]float64) ([]float64, error) {
		return nil, errors.New("endpoint down")
	})
	metrics := new(mockMetrics)
	metrics.On("RecordForecast", mock.Anything, types.MethodHeuristic, FallbackEstimatorError).Once()

	history := sampleHistory()
	svc := NewService(staticHistory{records: history}, failing, nil, WithMetrics(metrics))
	req := PredictRequest{StartYear: 2021, EndYear: 2024, CoalProductionTons: ptr(2_000_000)}

	resp, err := svc.Predict(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, types.MethodHeuristic, resp.Method)
	want := trajectory.HeuristicForecast(history, trajectory.ProjectionRequest{
		StartYear: 2021, EndYear: 2024, OverrideProduction: ptr(2_000_000),
	})
	assert.Equal(t, want, resp.Predictions)
	metrics.AssertExpectations(t)
}

func TestPredict_NoEstimator(t *testing.T) {
	metrics := new(mockMetrics)
	metrics.On("RecordForecast", mock.Anything, types.MethodHeuristic, FallbackNoEstimator).Once()

	svc := NewService(nil, nil, nil, WithMetrics(metrics))
	resp, err := svc.Predict(context.Background(), PredictRequest{StartYear: 2030, EndYear: 2030})
	require.NoError(t, err)

	require.Len(t, resp.Predictions, 1)
	assert.Equal(t, 2030, resp.Predictions[0].Year)
	assert.Equal(t, types.MethodHeuristic, resp.Method)
	assert.False(t, svc.HasEstimator())
	metrics.AssertExpectations(t)
}

func TestPredict_HistoryErrorTreatedAsEmpty(t *testing.T) {
	svc := NewService(staticHistory{err: errors.New("file missing")}, nil, nil)
	req := PredictRequest{StartYear: 2025, EndYear: 2027}

	resp, err := svc.Predict(context.Background(), req)
	require.NoError(t, err)

	want := trajectory.HeuristicForecast(nil, trajectory.ProjectionRequest{StartYear: 2025, EndYear: 2027})
	assert.Equal(t, want, resp.Predictions)
}

func TestPredict_Validation(t *testing.T) {
	svc := NewService(nil, nil, nil)

	tests := []struct {
		name string
		req  PredictRequest
		code types.ErrorCode
	}{
		{"reversed window", PredictRequest{StartYear: 2030, EndYear: 2025}, types.ErrCodeValidationTimeWindow},
		{"start too early", PredictRequest{StartYear: 1999, EndYear: 2025}, types.ErrCodeValidationYearRange},
		{"end too late", PredictRequest{StartYear: 2025, EndYear: 2101}, types.ErrCodeValidationYearRange},
		{"negative production", PredictRequest{StartYear: 2025, EndYear: 2026, CoalProductionTons: ptr(-1)}, types.ErrCodeValidationNegativeValue},
		{"negative energy", PredictRequest{StartYear: 2025, EndYear: 2026, EnergyConsumptionMWh: ptr(-1)}, types.ErrCodeValidationNegativeValue},
		{"negative energy alias", PredictRequest{StartYear: 2025, EndYear: 2026, CoalEnergyConsumptionMWh: ptr(-1)}, types.ErrCodeValidationNegativeValue},
		{"missing start", PredictRequest{EndYear: 2026}, types.ErrCodeValidationMissingField},
		{"production beyond cap", PredictRequest{StartYear: 2020, EndYear: 2025, CoalProductionTons: ptr(1e308)}, types.ErrCodeValidationInvalidField},
		{"energy beyond cap", PredictRequest{StartYear: 2020, EndYear: 2025, CoalEnergyConsumptionMWh: ptr(1e14)}, types.ErrCodeValidationInvalidField},
		{"both energy names", PredictRequest{StartYear: 2025, EndYear: 2026, EnergyConsumptionMWh: ptr(1), CoalEnergyConsumptionMWh: ptr(2)}, types.ErrCodeValidationInvalidField},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Predict(context.Background(), tt.req)
			assertAppCode(t, err, tt.code)
		})
	}
}

func TestPredict_EnergyAliasDrivesOverride(t *testing.T) {
	svc := NewService(nil, nil, nil)

	resp, err := svc.Predict(context.Background(), PredictRequest{
		StartYear:                2025,
		EndYear:                  2028,
		CoalEnergyConsumptionMWh: ptr(2_000_000),
	})
	require.NoError(t, err)

	want := trajectory.HeuristicForecast(nil, trajectory.ProjectionRequest{
		StartYear:      2025,
		EndYear:        2028,
		OverrideEnergy: ptr(2_000_000),
	})
	assert.Equal(t, want, resp.Predictions)
}

func TestPredict_LargestAcceptedOverrideStaysFinite(t *testing.T) {
	svc := NewService(nil, nil, nil)

	resp, err := svc.Predict(context.Background(), PredictRequest{
		StartYear:          2020,
		EndYear:            2025,
		CoalProductionTons: ptr(1e13),
	})
	require.NoError(t, err)
	for _, p := range resp.Predictions {
		assert.False(t, math.IsInf(p.PredictedTotalEmissionsTCO2e, 0), "year %d", p.Year)
		assert.False(t, math.IsNaN(p.PredictedTotalEmissionsTCO2e), "year %d", p.Year)
	}
}

func TestPredict_PersistsRun(t *testing.T) {
	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	repo := new(mockRunRepo)
	repo.On("Create", mock.Anything, mock.MatchedBy(func(run *types.ForecastRun) bool {
		return run.ID == "run-1" &&
			run.StartYear == 2021 &&
			run.EndYear == 2022 &&
			run.Method == types.MethodModel &&
			len(run.Predictions) == 2 &&
			run.CreatedAt.Equal(fixed) &&
			run.OverrideEnergy != nil && *run.OverrideEnergy == 10
	})).Return(nil).Once()

	svc := NewService(staticHistory{records: sampleHistory()}, yearEstimator(), nil,
		WithRunRepository(repo),
		WithClock(func() time.Time { return fixed }),
		WithIDGenerator(func() string { return "run-1" }),
	)

	resp, err := svc.Predict(context.Background(), PredictRequest{StartYear: 2021, EndYear: 2022, EnergyConsumptionMWh: ptr(10)})
	require.NoError(t, err)
	assert.Equal(t, "run-1", resp.RunID)
	repo.AssertExpectations(t)
}

func TestPredict_PersistFailureIsNotSurfaced(t *testing.T) {
	repo := new(mockRunRepo)
	repo.On("Create", mock.Anything, mock.Anything).Return(errors.New("db down")).Once()

	svc := NewService(nil, nil, nil, WithRunRepository(repo))
	resp, err := svc.Predict(context.Background(), PredictRequest{StartYear: 2021, EndYear: 2021})
	require.NoError(t, err)
	assert.Empty(t, resp.RunID)
	assert.Len(t, resp.Predictions, 1)
}

// --- Scenarios ---

func TestPredictScenarios_OrderAndIsolation(t *testing.T) {
	svc := NewService(staticHistory{records: sampleHistory()}, yearEstimator(), nil)

	reqs := []PredictRequest{
		{StartYear: 2021, EndYear: 2021},
		{StartYear: 2030, EndYear: 2020},
		{StartYear: 2040, EndYear: 2042},
	}
	results, err := svc.PredictScenarios(context.Background(), reqs)
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.Equal(t, 0, results[0].Index)
	require.NotNil(t, results[0].Response)
	assert.Equal(t, 2021, results[0].Response.Predictions[0].Year)

	assert.Nil(t, results[1].Response)
	require.NotNil(t, results[1].Error)
	assert.Equal(t, string(types.ErrCodeValidationTimeWindow), results[1].Error.Code)

	require.NotNil(t, results[2].Response)
	assert.Len(t, results[2].Response.Predictions, 3)
	assert.Equal(t, 2040, results[2].Response.Predictions[0].Year)
}

func TestPredictScenarios_ManyRunConcurrently(t *testing.T) {
	svc := NewService(nil, yearEstimator(), nil)

	reqs := make([]PredictRequest, MaxScenarios)
	for i := range reqs {
		reqs[i] = PredictRequest{StartYear: 2030 + i, EndYear: 2030 + i}
	}
	results, err := svc.PredictScenarios(context.Background(), reqs)
	require.NoError(t, err)

	for i, res := range results {
		require.NotNil(t, res.Response, fmt.Sprintf("scenario %d", i))
		assert.Equal(t, 2030+i, res.Response.Predictions[0].Year)
	}
}

func TestPredictScenarios_TooMany(t *testing.T) {
	svc := NewService(nil, nil, nil)
	_, err := svc.PredictScenarios(context.Background(), make([]PredictRequest, MaxScenarios+1))
	assertAppCode(t, err, types.ErrCodeValidationBatchSize)
}

// --- Runs ---

func TestGetRun(t *testing.T) {
	id := "7f9c2d3e-8b1a-4c5d-9e0f-123456789abc"

	t.Run("storage disabled", func(t *testing.T) {
		_, err := NewService(nil, nil, nil).GetRun(context.Background(), id)
		assertAppCode(t, err, types.ErrCodeFeatureDisabled)
	})

	t.Run("invalid id", func(t *testing.T) {
		_, err := NewService(nil, nil, nil, WithRunRepository(new(mockRunRepo))).GetRun(context.Background(), "nope")
		assertAppCode(t, err, types.ErrCodeValidationInvalidField)
	})

	t.Run("not found", func(t *testing.T) {
		repo := new(mockRunRepo)
		repo.On("GetByID", mock.Anything, id).Return(nil, nil)
		_, err := NewService(nil, nil, nil, WithRunRepository(repo)).GetRun(context.Background(), id)
		assertAppCode(t, err, types.ErrCodeNotFoundForecastRun)
	})

	t.Run("found", func(t *testing.T) {
		repo := new(mockRunRepo)
		repo.On("GetByID", mock.Anything, id).Return(&types.ForecastRun{ID: id}, nil)
		run, err := NewService(nil, nil, nil, WithRunRepository(repo)).GetRun(context.Background(), id)
		require.NoError(t, err)
		assert.Equal(t, id, run.ID)
	})
}

func TestListRuns(t *testing.T) {
	t.Run("has more", func(t *testing.T) {
		repo := new(mockRunRepo)
		repo.On("ListRecent", mock.Anything, 3).Return([]*types.ForecastRun{{ID: "a"}, {ID: "b"}, {ID: "c"}}, nil)

		page, err := NewService(nil, nil, nil, WithRunRepository(repo)).ListRuns(context.Background(), 2)
		require.NoError(t, err)
		assert.Len(t, page.Data, 2)
		assert.True(t, page.PageInfo.HasMore)
		assert.Equal(t, 2, page.PageInfo.Limit)
	})

	t.Run("default limit and empty", func(t *testing.T) {
		repo := new(mockRunRepo)
		repo.On("ListRecent", mock.Anything, types.DefaultPageLimit+1).Return(nil, nil)

		page, err := NewService(nil, nil, nil, WithRunRepository(repo)).ListRuns(context.Background(), 0)
		require.NoError(t, err)
		assert.NotNil(t, page.Data)
		assert.Empty(t, page.Data)
		assert.False(t, page.PageInfo.HasMore)
	})

	t.Run("repository error", func(t *testing.T) {
		repo := new(mockRunRepo)
		repo.On("ListRecent", mock.Anything, mock.Anything).Return(nil, types.NewAppError(types.ErrCodeInternalDB, "boom", nil))

		_, err := NewService(nil, nil, nil, WithRunRepository(repo)).ListRuns(context.Background(), 5)
		assertAppCode(t, err, types.ErrCodeInternalDB)
	})
}
