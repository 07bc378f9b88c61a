package trajectory

import (
	"context"
	"fmt"
	"math"

	"carbmine/internal/types"
)

const (
	// gridFactorForecast is the electricity coefficient (tCO2e/MWh) used by
	// the forecast closed form. The direct IPCC estimate uses 0.82; the two
	// are kept distinct.
	gridFactorForecast = 0.8

	degenerateAbsRange = 1e-6
	degenerateRelRange = 1e-4
	degenerateMeanPad  = 1e-9
)

// Reconciliation is the output of Reconcile.
type Reconciliation struct {
	Predictions []types.PredictionResult
	// Degenerate is true when the estimator output was flat and the
	// closed-form totals were substituted.
	Degenerate bool
}

// Reconcile scores the projected rows with the estimator. When the estimator
// returns a near-constant series it is discarded and every year gets the
// closed-form physics total instead. Estimator errors propagate unchanged.
func Reconcile(ctx context.Context, rows []types.ProjectedRow, est types.Estimator) (Reconciliation, error) {
	if len(rows) == 0 {
		return Reconciliation{Predictions: []types.PredictionResult{}}, nil
	}

	features := make([][]float64, len(rows))
	for i, r := range rows {
		features[i] = r.Features()
	}

	raw, err := est.Predict(ctx, features)
	if err != nil {
		return Reconciliation{}, err
	}
	if len(raw) != len(rows) {
		return Reconciliation{}, fmt.Errorf("estimator returned %d predictions for %d rows", len(raw), len(rows))
	}

	out := Reconciliation{Predictions: make([]types.PredictionResult, len(rows))}
	if isDegenerate(raw) {
		out.Degenerate = true
		for i, r := range rows {
			out.Predictions[i] = types.PredictionResult{Year: r.Year, PredictedTotalEmissionsTCO2e: PhysicsTotal(r)}
		}
		return out, nil
	}

	for i, r := range rows {
		out.Predictions[i] = types.PredictionResult{Year: r.Year, PredictedTotalEmissionsTCO2e: raw[i]}
	}
	return out, nil
}

// PhysicsTotal is the closed-form annual total in tCO2e.
func PhysicsTotal(r types.ProjectedRow) float64 {
	return r.CoalProductionTons*r.EmissionFactorKgCO2PerTon/1000.0 +
		r.EnergyConsumptionMWh*gridFactorForecast +
		r.MethaneEmissionsTons +
		r.OtherGHGEmissionsTons
}

// isDegenerate reports whether the series spread is negligible, absolutely
// or relative to its midrange.
func isDegenerate(values []float64) bool {
	lo, hi := values[0], values[0]
	for _, v := range values[1:] {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	spread := hi - lo
	if spread < degenerateAbsRange {
		return true
	}
	if len(values) > 1 {
		mid := math.Abs((hi+lo)/2) + degenerateMeanPad
		if spread/mid < degenerateRelRange {
			return true
		}
	}
	return false
}
