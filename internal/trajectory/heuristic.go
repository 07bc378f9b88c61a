package trajectory

import (
	"math"

	"carbmine/internal/types"
)

// HeuristicBaseline is used by HeuristicForecast when there is no history.
// The values approximate national-scale Indian coal output.
var HeuristicBaseline = Baseline{
	Production:     650_000_000,
	Energy:         800_000,
	EmissionFactor: 2000,
	Methane:        10_000,
	OtherGHG:       6_000,
}

// HeuristicForecast produces totals without an estimator. Growth follows the
// recent CAGR only: no re-anchoring, no slope fallback and no default drift.
// Overrides converge geometrically as in Project.
func HeuristicForecast(history []types.HistoricalRecord, req ProjectionRequest) []types.PredictionResult {
	trend := ExtractTrendWithDefaults(history, HeuristicBaseline)
	numYears := max(1, req.EndYear-req.StartYear)

	out := make([]types.PredictionResult, 0, max(0, req.EndYear-req.StartYear+1))
	for year := req.StartYear; year <= req.EndYear; year++ {
		idx := year - req.StartYear
		row := types.ProjectedRow{
			Year:                      year,
			CoalProductionTons:        compound(trend.BaseProduction, trend.ProductionCAGR, req.OverrideProduction, idx, numYears),
			EnergyConsumptionMWh:      compound(trend.BaseEnergy, trend.EnergyCAGR, req.OverrideEnergy, idx, numYears),
			EmissionFactorKgCO2PerTon: trend.BaseEmissionFactor,
			MethaneEmissionsTons:      trend.BaseMethane,
			OtherGHGEmissionsTons:     trend.BaseOtherGHG,
		}
		out = append(out, types.PredictionResult{Year: year, PredictedTotalEmissionsTCO2e: PhysicsTotal(row)})
	}
	return out
}

func compound(base, cagr float64, target *float64, idx, numYears int) float64 {
	if target != nil {
		return converge(base, *target, idx, numYears)
	}
	return base * math.Pow(1+cagr, float64(idx))
}
