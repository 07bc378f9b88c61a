package db

import (
	"context"

	"carbmine/internal/types"
)

// HistoryRepository stores the yearly series in historical_records. It also
// serves as a types.HistorySource.
type HistoryRepository struct {
	db DBTX
}

// NewHistoryRepository creates a new HistoryRepository.
func NewHistoryRepository(db DBTX) *HistoryRepository {
	return &HistoryRepository{db: db}
}

var _ types.HistorySource = (*HistoryRepository)(nil)

// Load returns all records ordered by year.
func (r *HistoryRepository) Load(ctx context.Context) ([]types.HistoricalRecord, error) {
	rows, err := r.db.Query(ctx,
		`SELECT year, coal_production_tons, energy_consumption_mwh,
		        emission_factor_kgco2_perton, methane_emissions_tons,
		        other_ghg_emissions_tons, total_emissions_tco2e
		 FROM historical_records
		 ORDER BY year ASC`,
	)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to load historical records", err)
	}
	defer rows.Close()

	var out []types.HistoricalRecord
	for rows.Next() {
		var rec types.HistoricalRecord
		if err := rows.Scan(
			&rec.Year,
			&rec.CoalProductionTons,
			&rec.EnergyConsumptionMWh,
			&rec.EmissionFactorKgCO2PerTon,
			&rec.MethaneEmissionsTons,
			&rec.OtherGHGEmissionsTons,
			&rec.TotalEmissionsTCO2e,
		); err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan historical record", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "error iterating historical records", err)
	}
	return out, nil
}

// Upsert inserts or replaces records keyed by year and returns the number
// written. Callers wanting atomicity pass a pgx.Tx.
func (r *HistoryRepository) Upsert(ctx context.Context, records []types.HistoricalRecord) (int, error) {
	written := 0
	for _, rec := range records {
		_, err := r.db.Exec(ctx,
			`INSERT INTO historical_records (
			     year, coal_production_tons, energy_consumption_mwh,
			     emission_factor_kgco2_perton, methane_emissions_tons,
			     other_ghg_emissions_tons, total_emissions_tco2e, updated_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
			 ON CONFLICT (year) DO UPDATE SET
			     coal_production_tons = EXCLUDED.coal_production_tons,
			     energy_consumption_mwh = EXCLUDED.energy_consumption_mwh,
			     emission_factor_kgco2_perton = EXCLUDED.emission_factor_kgco2_perton,
			     methane_emissions_tons = EXCLUDED.methane_emissions_tons,
			     other_ghg_emissions_tons = EXCLUDED.other_ghg_emissions_tons,
			     total_emissions_tco2e = EXCLUDED.total_emissions_tco2e,
			     updated_at = NOW()`,
			rec.Year,
			rec.CoalProductionTons,
			rec.EnergyConsumptionMWh,
			rec.EmissionFactorKgCO2PerTon,
			rec.MethaneEmissionsTons,
			rec.OtherGHGEmissionsTons,
			rec.TotalEmissionsTCO2e,
		)
		if err != nil {
			return written, types.NewAppErrorWithDetails(types.ErrCodeInternalDB, "failed to upsert historical record", err, map[string]any{"year": rec.Year})
		}
		written++
	}
	return written, nil
}
