package trajectory

import (
	"math"

	"carbmine/internal/types"
)

const (
	// growthEpsilon is the magnitude below which CAGR counts as flat.
	growthEpsilon = 1e-9
	// slopeEpsilon is the magnitude below which an OLS slope counts as absent.
	slopeEpsilon = 1e-12
	// overrideFloor keeps the convergence ratio finite for zero targets.
	overrideFloor = 1e-9

	defaultProductionDrift = 0.01
	defaultEnergyDrift     = 0.0
)

// ProjectionRequest is the year window to project and optional final-year
// targets. A nil override means "follow the historical trend".
type ProjectionRequest struct {
	StartYear          int
	EndYear            int
	OverrideProduction *float64
	OverrideEnergy     *float64
}

// series describes how one quantity evolves over the window.
type series struct {
	base   float64
	target *float64
	cagr   float64
	slope  float64
	drift  float64
}

// Project expands a trend summary into one feature row per year of
// [StartYear, EndYear]. Inputs are trusted; callers validate the window.
//
// Production and energy start from the history value at StartYear when
// StartYear falls inside the observed span, otherwise from the trend
// baseline. Emission factor, methane and other GHG are held constant.
func Project(history []types.HistoricalRecord, trend TrendSummary, req ProjectionRequest) []types.ProjectedRow {
	baseProd, baseEnergy := trend.BaseProduction, trend.BaseEnergy
	if v, ok := anchorAt(history, req.StartYear, func(r types.HistoricalRecord) float64 { return r.CoalProductionTons }); ok {
		baseProd = v
	}
	if v, ok := anchorAt(history, req.StartYear, func(r types.HistoricalRecord) float64 { return r.EnergyConsumptionMWh }); ok {
		baseEnergy = v
	}

	prod := series{
		base:   baseProd,
		target: req.OverrideProduction,
		cagr:   trend.ProductionCAGR,
		slope:  trend.ProductionSlope,
		drift:  defaultProductionDrift,
	}
	energy := series{
		base:   baseEnergy,
		target: req.OverrideEnergy,
		cagr:   trend.EnergyCAGR,
		slope:  trend.EnergySlope,
		drift:  defaultEnergyDrift,
	}

	numYears := max(1, req.EndYear-req.StartYear)
	rows := make([]types.ProjectedRow, 0, max(0, req.EndYear-req.StartYear+1))
	for year := req.StartYear; year <= req.EndYear; year++ {
		idx := year - req.StartYear
		rows = append(rows, types.ProjectedRow{
			Year:                      year,
			CoalProductionTons:        prod.valueAt(idx, numYears),
			EnergyConsumptionMWh:      energy.valueAt(idx, numYears),
			EmissionFactorKgCO2PerTon: trend.BaseEmissionFactor,
			MethaneEmissionsTons:      trend.BaseMethane,
			OtherGHGEmissionsTons:     trend.BaseOtherGHG,
		})
	}
	return rows
}

func (s series) valueAt(idx, numYears int) float64 {
	if s.target != nil {
		return converge(s.base, *s.target, idx, numYears)
	}
	if math.Abs(s.cagr) < growthEpsilon {
		if math.Abs(s.slope) > slopeEpsilon {
			return s.base + s.slope*float64(idx)
		}
		return s.base * math.Pow(1+s.drift, float64(idx))
	}
	return s.base * math.Pow(1+s.cagr, float64(idx))
}

// converge grows base geometrically so that it reaches target after
// numYears steps.
func converge(base, target float64, idx, numYears int) float64 {
	base = math.Max(overrideFloor, base)
	target = math.Max(overrideFloor, target)
	g := math.Pow(target/base, 1.0/float64(numYears)) - 1.0
	return base * math.Pow(1+g, float64(idx))
}

// anchorAt returns the value of a quantity at year, interpolating linearly
// between bracketing records. ok is false when year is outside the span.
func anchorAt(history []types.HistoricalRecord, year int, value func(types.HistoricalRecord) float64) (float64, bool) {
	if len(history) == 0 {
		return 0, false
	}
	first, last := history[0].Year, history[len(history)-1].Year
	if year < first || year > last {
		return 0, false
	}

	for i, r := range history {
		if r.Year == year {
			return value(r), true
		}
		if r.Year > year && i > 0 {
			before, after := history[i-1], r
			w := float64(year-before.Year) / float64(after.Year-before.Year)
			return value(before) + w*(value(after)-value(before)), true
		}
	}
	return 0, false
}
