package types

import (
	"time"
)

// HistoricalRecord is one year of observed mining activity and emissions.
// Records are immutable once loaded and are consumed in ascending year order.
type HistoricalRecord struct {
	Year                      int     `json:"year" db:"year"`
	CoalProductionTons        float64 `json:"coal_production_tons" db:"coal_production_tons"`
	EnergyConsumptionMWh      float64 `json:"energy_consumption_mwh" db:"energy_consumption_mwh"`
	EmissionFactorKgCO2PerTon float64 `json:"emission_factor_kgco2_perton" db:"emission_factor_kgco2_perton"`
	MethaneEmissionsTons      float64 `json:"methane_emissions_tons" db:"methane_emissions_tons"`
	OtherGHGEmissionsTons     float64 `json:"other_ghg_emissions_tons" db:"other_ghg_emissions_tons"`

	// TotalEmissionsTCO2e is the training target. It is only populated by
	// sources that carry the Total_Emissions_tCO2e column.
	TotalEmissionsTCO2e *float64 `json:"total_emissions_tco2e,omitempty" db:"total_emissions_tco2e"`
}

// ProjectedRow is the per-year feature row produced by the trajectory
// projector and consumed by the forecast reconciler.
type ProjectedRow struct {
	Year                      int     `json:"year"`
	CoalProductionTons        float64 `json:"coal_production_tons"`
	EnergyConsumptionMWh      float64 `json:"energy_consumption_mwh"`
	EmissionFactorKgCO2PerTon float64 `json:"emission_factor_kgco2_perton"`
	MethaneEmissionsTons      float64 `json:"methane_emissions_tons"`
	OtherGHGEmissionsTons     float64 `json:"other_ghg_emissions_tons"`
}

// FeatureColumns is the fixed column order expected by trained estimators.
// Changing it silently invalidates every stored coefficient vector.
var FeatureColumns = []string{
	"Year",
	"Coal_Production_Tons",
	"Energy_Consumption_MWh",
	"Emission_Factor_kgCO2_perTon",
	"Methane_Emissions_tons",
	"Other_GHG_Emissions_tons",
}

// Features returns the estimator feature vector in FeatureColumns order.
func (r ProjectedRow) Features() []float64 {
	return []float64{
		float64(r.Year),
		r.CoalProductionTons,
		r.EnergyConsumptionMWh,
		r.EmissionFactorKgCO2PerTon,
		r.MethaneEmissionsTons,
		r.OtherGHGEmissionsTons,
	}
}

// Features returns the estimator feature vector for an observed record.
func (r HistoricalRecord) Features() []float64 {
	return ProjectedRow{
		Year:                      r.Year,
		CoalProductionTons:        r.CoalProductionTons,
		EnergyConsumptionMWh:      r.EnergyConsumptionMWh,
		EmissionFactorKgCO2PerTon: r.EmissionFactorKgCO2PerTon,
		MethaneEmissionsTons:      r.MethaneEmissionsTons,
		OtherGHGEmissionsTons:     r.OtherGHGEmissionsTons,
	}.Features()
}

// PredictionResult is the final per-year forecast value.
type PredictionResult struct {
	Year                        int     `json:"year"`
	PredictedTotalEmissionsTCO2e float64 `json:"predicted_total_emissions_tco2e"`
}

// ForecastMethod records which path produced a forecast.
type ForecastMethod string

const (
	// MethodModel means the trained estimator output was used as-is.
	MethodModel ForecastMethod = "model"
	// MethodModelPhysicsFallback means the estimator output was flat and the
	// closed-form total replaced it.
	MethodModelPhysicsFallback ForecastMethod = "model_physics_fallback"
	// MethodHeuristic means no estimator was usable.
	MethodHeuristic ForecastMethod = "heuristic"
)

// ForecastRun is the persisted record of a single forecast request.
type ForecastRun struct {
	ID                 string             `json:"id" db:"id"`
	StartYear          int                `json:"start_year" db:"start_year"`
	EndYear            int                `json:"end_year" db:"end_year"`
	OverrideProduction *float64           `json:"coal_production_tons,omitempty" db:"override_production"`
	OverrideEnergy     *float64           `json:"energy_consumption_mwh,omitempty" db:"override_energy"`
	Method             ForecastMethod     `json:"method" db:"method"`
	Predictions        []PredictionResult `json:"predictions" db:"predictions"`
	CreatedAt          time.Time          `json:"created_at" db:"created_at"`
}

// TrainingJob is the SQS payload asking the trainer to refit the estimator.
type TrainingJob struct {
	JobID       string    `json:"job_id"`
	DatasetPath string    `json:"dataset_path"`
	Reason      string    `json:"reason,omitempty"`
	RequestedAt time.Time `json:"requested_at"`
}
