// Package emissions implements the direct (non-forecast) emission
// calculations: the IPCC-style annual estimate, Indian regional factors and
// level bands, and the legacy calculator and neutralisation formulas.
package emissions

import "strings"

// IndianGridFactor is the Indian grid emission factor in tCO2/MWh used by
// direct estimates. Forecast fallbacks use a separate coefficient.
const IndianGridFactor = 0.82

// Level band thresholds in tCO2e.
const (
	HighThreshold   = 500_000.0
	MediumThreshold = 50_000.0
)

// Level is an Indian-scale emission band.
type Level string

const (
	LevelHigh   Level = "high"
	LevelMedium Level = "medium"
	LevelLow    Level = "low"
)

// DefaultRegionalFactor applies to unknown or empty regions.
const DefaultRegionalFactor = 2000.0

var regionalFactors = map[string]float64{
	"jharkhand":    2000.0,
	"chhattisgarh": 1950.0,
	"odisha":       2100.0,
	"west_bengal":  2050.0,
}

// Input is one year of activity data.
type Input struct {
	CoalProductionTons        float64
	EnergyConsumptionMWh      float64
	EmissionFactorKgCO2PerTon float64
	MethaneEmissionsTons      float64
	OtherGHGEmissionsTons     float64
}

// EstimateIPCC returns the annual total in tCO2e.
func EstimateIPCC(in Input) float64 {
	return in.CoalProductionTons*in.EmissionFactorKgCO2PerTon/1000.0 +
		in.EnergyConsumptionMWh*IndianGridFactor +
		in.MethaneEmissionsTons +
		in.OtherGHGEmissionsTons
}

// RegionalEmissionFactor returns the kgCO2/ton factor for an Indian coal
// region, case-insensitively.
func RegionalEmissionFactor(region string) float64 {
	if f, ok := regionalFactors[strings.ToLower(strings.TrimSpace(region))]; ok {
		return f
	}
	return DefaultRegionalFactor
}

// KnownRegion reports whether region has a dedicated factor.
func KnownRegion(region string) bool {
	_, ok := regionalFactors[strings.ToLower(strings.TrimSpace(region))]
	return ok
}

// ClassifyLevel bands a total: >= 500k high, >= 50k medium, else low.
func ClassifyLevel(total float64) Level {
	switch {
	case total >= HighThreshold:
		return LevelHigh
	case total >= MediumThreshold:
		return LevelMedium
	default:
		return LevelLow
	}
}

// IndianEstimate is the result of EstimateIndian.
type IndianEstimate struct {
	TotalEmissionsTCO2e    float64 `json:"total_emissions_tco2e"`
	EmissionLevel          Level   `json:"emission_level"`
	Region                 string  `json:"region"`
	RegionalEmissionFactor float64 `json:"regional_emission_factor_kgco2_perton"`
	GridFactor             float64 `json:"indian_grid_factor_tco2_per_mwh"`
	Year                   int     `json:"year"`
}

// EstimateIndian applies the regional emission factor, ignoring any factor
// carried on in, and bands the result.
func EstimateIndian(year int, region string, in Input) IndianEstimate {
	in.EmissionFactorKgCO2PerTon = RegionalEmissionFactor(region)
	total := EstimateIPCC(in)
	return IndianEstimate{
		TotalEmissionsTCO2e:    total,
		EmissionLevel:          ClassifyLevel(total),
		Region:                 region,
		RegionalEmissionFactor: in.EmissionFactorKgCO2PerTon,
		GridFactor:             IndianGridFactor,
		Year:                   year,
	}
}
