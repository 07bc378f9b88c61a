// Package recommend ranks emission-reduction strategies for a site's
// sector and annual emissions.
package recommend

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strconv"
	"strings"
)

// Strategy is one catalog row. EstimatedReductionTCO2e at or below 1 is a
// fraction of the site's emissions; above 1 it is absolute tCO2e.
type Strategy struct {
	Strategy                string  `json:"strategy"`
	Category                string  `json:"category"`
	ImpactLevel             string  `json:"impact_level"`
	EstimatedReductionTCO2e float64 `json:"estimated_reduction_tco2e"`
	Description             string  `json:"description"`
	Sector                  string  `json:"sector,omitempty"`
}

// RankedStrategy is a strategy calibrated to a request.
type RankedStrategy struct {
	Strategy                string  `json:"strategy"`
	Category                string  `json:"category"`
	ImpactLevel             string  `json:"impact_level"`
	EstimatedReductionTCO2e float64 `json:"estimated_reduction_tco2e"`
	Description             string  `json:"description"`
	Sector                  string  `json:"sector"`
	Region                  *string `json:"region"`
}

// BuiltinCatalog is used when no catalog file yields any rows.
var BuiltinCatalog = []Strategy{
	{
		Strategy:                "Solar Power Integration",
		Category:                "Renewable Energy",
		ImpactLevel:             "High",
		EstimatedReductionTCO2e: 0.2,
		Description:             "Install on-site or PPA-based solar to reduce grid emissions.",
	},
	{
		Strategy:                "Energy Efficiency Audits",
		Category:                "Energy Efficiency",
		ImpactLevel:             "Medium",
		EstimatedReductionTCO2e: 0.1,
		Description:             "Conduct audits and retrofit motors, VFDs, and lighting.",
	},
	{
		Strategy:                "Carbon Offsetting via Forestry",
		Category:                "Offset Projects",
		ImpactLevel:             "Medium",
		EstimatedReductionTCO2e: 0.15,
		Description:             "Invest in verified afforestation projects to balance residual emissions.",
	},
}

// LoadCatalog reads strategies.csv. A missing file is an empty catalog.
func LoadCatalog(path string) ([]Strategy, error) {
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open catalog: %w", err)
	}
	defer f.Close()
	return ReadCatalog(f)
}

// ReadCatalog parses catalog CSV. Rows with an unparseable reduction are
// skipped; an empty impact level defaults to Medium.
func ReadCatalog(r io.Reader) ([]Strategy, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read catalog header: %w", err)
	}
	col := make(map[string]int, len(header))
	for i, h := range header {
		col[strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))] = i
	}
	get := func(row []string, name string) string {
		i, ok := col[name]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	var out []Strategy
	for {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read catalog: %w", err)
		}

		reduction := 0.0
		if s := get(row, "estimated_reduction_tco2e"); s != "" {
			v, err := strconv.ParseFloat(s, 64)
			if err != nil {
				continue
			}
			reduction = v
		}
		impact := get(row, "impact_level")
		if impact == "" {
			impact = "Medium"
		}
		out = append(out, Strategy{
			Strategy:                get(row, "strategy"),
			Category:                get(row, "category"),
			ImpactLevel:             impact,
			EstimatedReductionTCO2e: reduction,
			Description:             get(row, "description"),
			Sector:                  get(row, "sector"),
		})
	}
	return out, nil
}

// StaticStrategy is an entry of the fixed strategy list.
type StaticStrategy struct {
	ID                        int     `json:"id"`
	Name                      string  `json:"name"`
	Description               string  `json:"description"`
	EstimatedReductionPercent float64 `json:"estimated_reduction_percent"`
}

// StaticStrategies is the fixed list served to the strategies page.
func StaticStrategies() []StaticStrategy {
	return []StaticStrategy{
		{ID: 1, Name: "EV Fleet Transition", Description: "Replace diesel vehicles with EVs for onsite haulage.", EstimatedReductionPercent: 12},
		{ID: 2, Name: "Renewable Power Purchase", Description: "Source 40% electricity from solar/wind.", EstimatedReductionPercent: 18},
		{ID: 3, Name: "Methane Capture", Description: "Capture and flare methane from ventilation air and goafs.", EstimatedReductionPercent: 10},
		{ID: 4, Name: "Process Efficiency & Electrification", Description: "Upgrade equipment; electrify compressors and pumps.", EstimatedReductionPercent: 8},
	}
}
