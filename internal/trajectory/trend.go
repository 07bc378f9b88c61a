// Package trajectory builds year-by-year emissions forecasts from a sparse
// historical series.
//
// The pipeline has three stages:
//
//	ExtractTrend -> Project -> Reconcile
//
// ExtractTrend derives baselines and growth signals (CAGR over a recent
// window, OLS slope over the whole series). Project turns those signals into
// one feature row per requested year, bending toward caller-supplied targets
// when present. Reconcile runs a regression estimator over the rows and swaps
// in a closed-form physics total when the estimator output is flat.
//
// HeuristicForecast is the estimator-free path used when no model can be
// constructed. Every function in this package is pure: no shared state, no
// I/O, safe for concurrent use.
package trajectory

import (
	"math"

	"carbmine/internal/types"
)

const (
	// cagrWindow is the number of most recent records used for CAGR.
	cagrWindow = 5
	// cagrFloor keeps the CAGR ratio finite when a window endpoint is zero.
	cagrFloor = 1e-6
)

// TrendSummary holds the baselines and growth signals derived from history.
// Every field is always populated; absent signals are zero.
type TrendSummary struct {
	BaseProduction     float64 `json:"base_production"`
	BaseEnergy         float64 `json:"base_energy"`
	BaseEmissionFactor float64 `json:"base_emission_factor"`
	BaseMethane        float64 `json:"base_methane"`
	BaseOtherGHG       float64 `json:"base_other_ghg"`

	ProductionCAGR float64 `json:"production_cagr"`
	EnergyCAGR     float64 `json:"energy_cagr"`

	// Slopes are in tons/year and MWh/year.
	ProductionSlope float64 `json:"production_slope"`
	EnergySlope     float64 `json:"energy_slope"`

	FirstYear  int  `json:"first_year"`
	LastYear   int  `json:"last_year"`
	HasHistory bool `json:"has_history"`
}

// Baseline is the set of values used when no history is available.
type Baseline struct {
	Production     float64
	Energy         float64
	EmissionFactor float64
	Methane        float64
	OtherGHG       float64
}

// NoHistoryBaseline is the sentinel baseline returned by ExtractTrend for an
// empty series. Callers must not treat it as a real measurement.
var NoHistoryBaseline = Baseline{
	Production:     1.0,
	Energy:         1.0,
	EmissionFactor: 2000.0,
	Methane:        0,
	OtherGHG:       0,
}

// ExtractTrend summarizes an ascending historical series. It never fails:
// numeric anomalies degrade to zero growth.
func ExtractTrend(records []types.HistoricalRecord) TrendSummary {
	return ExtractTrendWithDefaults(records, NoHistoryBaseline)
}

// ExtractTrendWithDefaults is ExtractTrend with a caller-chosen baseline for
// the empty series.
func ExtractTrendWithDefaults(records []types.HistoricalRecord, defaults Baseline) TrendSummary {
	if len(records) == 0 {
		return TrendSummary{
			BaseProduction:     defaults.Production,
			BaseEnergy:         defaults.Energy,
			BaseEmissionFactor: defaults.EmissionFactor,
			BaseMethane:        defaults.Methane,
			BaseOtherGHG:       defaults.OtherGHG,
		}
	}

	last := records[len(records)-1]
	s := TrendSummary{
		BaseProduction:     last.CoalProductionTons,
		BaseEnergy:         last.EnergyConsumptionMWh,
		BaseEmissionFactor: last.EmissionFactorKgCO2PerTon,
		BaseMethane:        last.MethaneEmissionsTons,
		BaseOtherGHG:       last.OtherGHGEmissionsTons,
		FirstYear:          records[0].Year,
		LastYear:           last.Year,
		HasHistory:         true,
	}

	if len(records) >= 2 {
		window := records[len(records)-min(cagrWindow, len(records)):]
		first, end := window[0], window[len(window)-1]
		span := max(1, end.Year-first.Year)
		s.ProductionCAGR = compoundGrowth(first.CoalProductionTons, end.CoalProductionTons, span)
		s.EnergyCAGR = compoundGrowth(first.EnergyConsumptionMWh, end.EnergyConsumptionMWh, span)
	}

	s.ProductionSlope = olsSlope(records, func(r types.HistoricalRecord) float64 { return r.CoalProductionTons })
	s.EnergySlope = olsSlope(records, func(r types.HistoricalRecord) float64 { return r.EnergyConsumptionMWh })

	return s
}

// compoundGrowth returns (to/from)^(1/years) - 1 with both ends floored at
// cagrFloor. Non-finite results collapse to 0.
func compoundGrowth(from, to float64, years int) float64 {
	from = math.Max(cagrFloor, from)
	to = math.Max(cagrFloor, to)
	g := math.Pow(to/from, 1.0/float64(years)) - 1.0
	if math.IsNaN(g) || math.IsInf(g, 0) {
		return 0
	}
	return g
}

// olsSlope fits y = a + b*year by ordinary least squares over every record
// and returns b. Fewer than two points or a degenerate year spread give 0.
func olsSlope(records []types.HistoricalRecord, value func(types.HistoricalRecord) float64) float64 {
	n := float64(len(records))
	if len(records) < 2 {
		return 0
	}

	var sumX, sumX2, sumY, sumXY float64
	for _, r := range records {
		x := float64(r.Year)
		y := value(r)
		sumX += x
		sumX2 += x * x
		sumY += y
		sumXY += x * y
	}

	denom := n*sumX2 - sumX*sumX
	if denom == 0 {
		return 0
	}
	slope := (n*sumXY - sumX*sumY) / denom
	if math.IsNaN(slope) || math.IsInf(slope, 0) {
		return 0
	}
	return slope
}
