package emissions

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Legacy calculator constants.
const (
	excavationFactor     = 94.6
	transportationFactor = 74.1
	equipmentFactor      = 73.3
	coalTonFactor        = 2.2
	creditPrice          = 42.0

	evConstant        = 0.20
	greenFuelConstant = 0.50
	sequestrationRate = 2.2
	electricityPerTon = 0.3
)

var fuelFactors = map[string]float64{
	"coal":       2.42,
	"oil":        3.17,
	"naturalGas": 2.75,
	"biomass":    0,
}

// Number is a float that also accepts numeric strings, since the legacy
// form posts raw input values.
type Number float64

// UnmarshalJSON implements json.Unmarshaler.
func (n *Number) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*n = 0
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		s = strings.TrimSpace(s)
		if s == "" {
			*n = 0
			return nil
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return fmt.Errorf("invalid number %q", s)
		}
		*n = Number(v)
		return nil
	}
	var v float64
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	*n = Number(v)
	return nil
}

// CalculateInput is the /calculate payload.
type CalculateInput struct {
	Excavation     Number  `json:"excavation"`
	Transportation Number  `json:"transportation"`
	Fuel           Number  `json:"fuel"`
	Equipment      Number  `json:"equipment"`
	Workers        *Number `json:"workers"`
	Output         *Number `json:"output"`
	FuelType       string  `json:"fuelType"`
	Reduction      Number  `json:"reduction"`
}

// CalculateResult mirrors the keys the legacy frontend reads.
type CalculateResult struct {
	TotalEmissions          float64 `json:"totalEmissions"`
	ExcavationEmissions     float64 `json:"excavationEmissions"`
	TransportationEmissions float64 `json:"transportationEmissions"`
	EquipmentEmissions      float64 `json:"equipmentEmissions"`
	ExcavationPerCapita     float64 `json:"excavationPerCapita"`
	TransportationPerCapita float64 `json:"transportationPerCapita"`
	EquipmentPerCapita      float64 `json:"equipmentPerCapita"`
	ExcavationPerOutput     float64 `json:"excavationPerOutput"`
	TransportationPerOutput float64 `json:"transportationPerOutput"`
	EquipmentPerOutput      float64 `json:"equipmentPerOutput"`
	PerCapitaEmissions      float64 `json:"perCapitaEmissions"`
	PerOutputEmissions      float64 `json:"perOutputEmissions"`
	Baseline                float64 `json:"baseline"`
	CarbonCredits           float64 `json:"carboncredits"`
	Reduced                 float64 `json:"reduced"`
	Worth                   float64 `json:"worth"`
	Total                   float64 `json:"total"`
}

// Calculate runs the legacy activity-based calculator. Workers is truncated
// to an integer and floored at 1; output is floored at 1.
func Calculate(in CalculateInput) CalculateResult {
	workers := 1.0
	if in.Workers != nil {
		workers = math.Max(1, math.Trunc(float64(*in.Workers)))
	}
	output := 1.0
	if in.Output != nil {
		output = math.Max(1, float64(*in.Output))
	}
	fuelType := in.FuelType
	if fuelType == "" {
		fuelType = "coal"
	}
	fuelFactor, ok := fuelFactors[fuelType]
	if !ok {
		fuelFactor = coalTonFactor
	}

	excavation := float64(in.Excavation) * excavationFactor
	transportation := float64(in.Transportation) * transportationFactor * 0.5
	equipment := float64(in.Equipment) * equipmentFactor
	activity := excavation + transportation + equipment

	total := output*coalTonFactor + float64(in.Fuel)*fuelFactor
	reduced := float64(in.Reduction)
	credits := total - reduced

	return CalculateResult{
		TotalEmissions:          activity,
		ExcavationEmissions:     excavation,
		TransportationEmissions: transportation,
		EquipmentEmissions:      equipment,
		ExcavationPerCapita:     excavation / workers,
		TransportationPerCapita: transportation / workers,
		EquipmentPerCapita:      equipment / workers,
		ExcavationPerOutput:     excavation / output,
		TransportationPerOutput: transportation / output,
		EquipmentPerOutput:      equipment / output,
		PerCapitaEmissions:      activity / workers,
		PerOutputEmissions:      activity / output,
		Baseline:                total,
		CarbonCredits:           credits,
		Reduced:                 reduced,
		Worth:                   credits * creditPrice,
		Total:                   total,
	}
}

// NeutraliseInput is the /neutralise payload. Percentages are 0-100.
type NeutraliseInput struct {
	Emissions                  Number `json:"emissions"`
	Transportation             Number `json:"transportation"`
	Fuel                       Number `json:"fuel"`
	GreenFuelPercentage        Number `json:"green_fuel_percentage"`
	NeutralisePercentage       Number `json:"neutralise_percentage"`
	EVTransportationPercentage Number `json:"ev_transportation_percentage"`
}

// NeutraliseResult is the /neutralise response.
type NeutraliseResult struct {
	Emissions                   float64 `json:"emissions"`
	EmissionsToBeNeutralised    float64 `json:"emissions_to_be_neutralised"`
	TransportationReduction     float64 `json:"transportation_footprint_reduction"`
	FuelReduction               float64 `json:"fuel_footprint_reduction"`
	RemainingAfterReduction     float64 `json:"remaining_footprint_after_reduction"`
	LandRequiredHectares        float64 `json:"land_required_for_afforestation_hectares"`
	EstimatedElectricitySavings float64 `json:"estimated_electricity_savings_mwh"`
	OverallRemainingFootprint   float64 `json:"overall_remaining_footprint"`
	Message                     string  `json:"message"`
}

// Neutralise computes reduction pathways for a share of total emissions.
func Neutralise(in NeutraliseInput) NeutraliseResult {
	emissions := float64(in.Emissions)
	target := emissions * float64(in.NeutralisePercentage) / 100
	transport := float64(in.Transportation) * evConstant * float64(in.EVTransportationPercentage) / 100
	fuel := float64(in.Fuel) * greenFuelConstant * float64(in.GreenFuelPercentage) / 100
	remaining := target - (transport + fuel)

	return NeutraliseResult{
		Emissions:                   emissions,
		EmissionsToBeNeutralised:    target,
		TransportationReduction:     transport,
		FuelReduction:               fuel,
		RemainingAfterReduction:     remaining,
		LandRequiredHectares:        remaining / sequestrationRate,
		EstimatedElectricitySavings: target * electricityPerTon,
		OverallRemainingFootprint:   emissions - target,
		Message:                     "Carbon footprint neutralization pathways calculated successfully.",
	}
}
