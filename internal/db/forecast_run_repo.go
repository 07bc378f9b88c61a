package db

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/jackc/pgx/v5"

	"carbmine/internal/types"
)

// ForecastRunRepository provides data access for the forecast_runs table.
type ForecastRunRepository struct {
	db DBTX
}

// NewForecastRunRepository creates a new ForecastRunRepository backed by the
// given database connection (pool or transaction).
func NewForecastRunRepository(db DBTX) *ForecastRunRepository {
	return &ForecastRunRepository{db: db}
}

var _ types.ForecastRunRepository = (*ForecastRunRepository)(nil)

const forecastRunColumns = `id, start_year, end_year, override_production, override_energy, method, predictions, created_at`

// Create inserts a run. Predictions are stored as JSONB.
func (r *ForecastRunRepository) Create(ctx context.Context, run *types.ForecastRun) error {
	predictions := run.Predictions
	if predictions == nil {
		predictions = []types.PredictionResult{}
	}
	predictionsJSON, err := json.Marshal(predictions)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalUnexpected, "failed to encode predictions", err)
	}

	_, err = r.db.Exec(ctx,
		`INSERT INTO forecast_runs (`+forecastRunColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		run.ID,
		run.StartYear,
		run.EndYear,
		run.OverrideProduction,
		run.OverrideEnergy,
		string(run.Method),
		predictionsJSON,
		run.CreatedAt,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to create forecast run", err)
	}
	return nil
}

// GetByID returns a run or a not_found error.
func (r *ForecastRunRepository) GetByID(ctx context.Context, id string) (*types.ForecastRun, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+forecastRunColumns+` FROM forecast_runs WHERE id = $1`,
		id,
	)
	run, err := scanForecastRun(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, types.NewAppError(types.ErrCodeNotFoundForecastRun, "forecast run not found", nil)
		}
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to retrieve forecast run", err)
	}
	return run, nil
}

// ListRecent returns up to limit runs, newest first.
func (r *ForecastRunRepository) ListRecent(ctx context.Context, limit int) ([]*types.ForecastRun, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+forecastRunColumns+` FROM forecast_runs
		 ORDER BY created_at DESC, id
		 LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to list forecast runs", err)
	}
	defer rows.Close()

	var runs []*types.ForecastRun
	for rows.Next() {
		run, err := scanForecastRun(rows)
		if err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan forecast run", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "error iterating forecast runs", err)
	}
	return runs, nil
}

func scanForecastRun(row pgx.Row) (*types.ForecastRun, error) {
	var (
		run             types.ForecastRun
		method          string
		predictionsJSON []byte
	)
	err := row.Scan(
		&run.ID,
		&run.StartYear,
		&run.EndYear,
		&run.OverrideProduction,
		&run.OverrideEnergy,
		&method,
		&predictionsJSON,
		&run.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	run.Method = types.ForecastMethod(method)
	if len(predictionsJSON) > 0 {
		if err := json.Unmarshal(predictionsJSON, &run.Predictions); err != nil {
			return nil, err
		}
	}
	if run.Predictions == nil {
		run.Predictions = []types.PredictionResult{}
	}
	return &run, nil
}
