package emissions

// Region describes an Indian coal mining region.
type Region struct {
	Name                   string  `json:"name"`
	DisplayName            string  `json:"display_name"`
	EmissionFactorKgCO2Ton float64 `json:"emission_factor_kgco2_perton"`
	Description            string  `json:"description"`
}

// RegionCatalog is the /indian_regions payload.
type RegionCatalog struct {
	Regions        []Region          `json:"regions"`
	GridFactor     float64           `json:"indian_grid_factor_tco2_per_mwh"`
	EmissionScales map[string]string `json:"emission_scales"`
}

// Regions lists the supported regions. Factors come from the same table
// RegionalEmissionFactor uses.
func Regions() RegionCatalog {
	return RegionCatalog{
		Regions: []Region{
			{Name: "jharkhand", DisplayName: "Jharkhand", EmissionFactorKgCO2Ton: regionalFactors["jharkhand"], Description: "Major coal mining state with high-quality coal"},
			{Name: "chhattisgarh", DisplayName: "Chhattisgarh", EmissionFactorKgCO2Ton: regionalFactors["chhattisgarh"], Description: "Leading coal producer with efficient mining operations"},
			{Name: "odisha", DisplayName: "Odisha", EmissionFactorKgCO2Ton: regionalFactors["odisha"], Description: "Coastal state with significant coal reserves"},
			{Name: "west_bengal", DisplayName: "West Bengal", EmissionFactorKgCO2Ton: regionalFactors["west_bengal"], Description: "Eastern state with established mining infrastructure"},
		},
		GridFactor: IndianGridFactor,
		EmissionScales: map[string]string{
			"high":   ">500,000 tCO2e",
			"medium": "50,000 - 500,000 tCO2e",
			"low":    "<50,000 tCO2e",
		},
	}
}

// NDCTargets are India's headline climate commitments.
type NDCTargets struct {
	NetZeroYear                int    `json:"net_zero_year"`
	RenewableEnergyTarget2030  string `json:"renewable_energy_target_2030"`
	EmissionIntensityReduction string `json:"emission_intensity_reduction"`
}

// Policy is the /indian_policy_framework payload.
type Policy struct {
	NDCTargets             NDCTargets        `json:"ndc_targets"`
	RegulatoryFramework    []string          `json:"regulatory_framework"`
	RenewableEnergyTargets map[string]string `json:"renewable_energy_targets"`
}

// PolicyFramework returns the policy reference data.
func PolicyFramework() Policy {
	return Policy{
		NDCTargets: NDCTargets{
			NetZeroYear:                2070,
			RenewableEnergyTarget2030:  "500 GW",
			EmissionIntensityReduction: "45% by 2030",
		},
		RegulatoryFramework: []string{
			"Environmental Clearance (EC)",
			"Forest Clearance (FC)",
			"Coal Mines (Special Provisions) Act, 2015",
			"Mines and Minerals (Development and Regulation) Act, 1957",
		},
		RenewableEnergyTargets: map[string]string{
			"solar":   "280 GW by 2030",
			"wind":    "140 GW by 2030",
			"hydro":   "50 GW by 2030",
			"biomass": "10 GW by 2030",
		},
	}
}
