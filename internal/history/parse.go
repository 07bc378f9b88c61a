// Package history loads the observed yearly emissions series from tabular
// files (CSV, zstd-compressed CSV, XLSX).
package history

import (
	"fmt"
	"slices"
	"strconv"
	"strings"

	"carbmine/internal/types"
)

// TargetColumn is the training label column. It is optional for forecasting.
const TargetColumn = "Total_Emissions_tCO2e"

// MinTrainingRows is the smallest dataset the trainer accepts.
const MinTrainingRows = 50

// ParseTable converts a header plus string rows into records sorted by year.
// All feature columns are required; TargetColumn is read when present.
// Blank rows are skipped.
func ParseTable(header []string, rows [][]string) ([]types.HistoricalRecord, error) {
	idx := make(map[string]int, len(header))
	for i, h := range header {
		idx[strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))] = i
	}

	var missing []string
	for _, c := range types.FeatureColumns {
		if _, ok := idx[c]; !ok {
			missing = append(missing, c)
		}
	}
	if len(missing) > 0 {
		return nil, types.NewAppErrorWithDetails(
			types.ErrCodeValidationInvalidDataset,
			"dataset is missing required columns",
			nil,
			map[string]any{"missing_columns": missing},
		)
	}
	targetIdx, hasTarget := idx[TargetColumn]

	records := make([]types.HistoricalRecord, 0, len(rows))
	for n, row := range rows {
		if isBlank(row) {
			continue
		}
		line := n + 2 // 1-based, after the header

		vals := make([]float64, len(types.FeatureColumns))
		for i, c := range types.FeatureColumns {
			v, err := cellFloat(row, idx[c])
			if err != nil {
				return nil, types.NewAppErrorWithDetails(
					types.ErrCodeValidationInvalidDataset,
					fmt.Sprintf("row %d: invalid %s", line, c),
					err,
					map[string]any{"row": line, "column": c},
				)
			}
			vals[i] = v
		}

		r := types.HistoricalRecord{
			Year:                      int(vals[0]),
			CoalProductionTons:        vals[1],
			EnergyConsumptionMWh:      vals[2],
			EmissionFactorKgCO2PerTon: vals[3],
			MethaneEmissionsTons:      vals[4],
			OtherGHGEmissionsTons:     vals[5],
		}
		if hasTarget && targetIdx < len(row) && strings.TrimSpace(row[targetIdx]) != "" {
			v, err := cellFloat(row, targetIdx)
			if err != nil {
				return nil, types.NewAppErrorWithDetails(
					types.ErrCodeValidationInvalidDataset,
					fmt.Sprintf("row %d: invalid %s", line, TargetColumn),
					err,
					map[string]any{"row": line, "column": TargetColumn},
				)
			}
			r.TotalEmissionsTCO2e = &v
		}
		records = append(records, r)
	}

	slices.SortStableFunc(records, func(a, b types.HistoricalRecord) int { return a.Year - b.Year })
	return records, nil
}

// ValidateTrainingSet checks that records can be used to fit an estimator:
// at least MinTrainingRows rows, each carrying a target value.
func ValidateTrainingSet(records []types.HistoricalRecord) error {
	if len(records) < MinTrainingRows {
		return types.NewAppErrorWithDetails(
			types.ErrCodeValidationInvalidDataset,
			fmt.Sprintf("dataset too small; need >= %d rows", MinTrainingRows),
			nil,
			map[string]any{"rows": len(records)},
		)
	}
	for _, r := range records {
		if r.TotalEmissionsTCO2e == nil {
			return types.NewAppErrorWithDetails(
				types.ErrCodeValidationInvalidDataset,
				fmt.Sprintf("missing %s for year %d", TargetColumn, r.Year),
				nil,
				map[string]any{"year": r.Year},
			)
		}
	}
	return nil
}

func cellFloat(row []string, i int) (float64, error) {
	if i >= len(row) {
		return 0, fmt.Errorf("missing cell")
	}
	s := strings.ReplaceAll(strings.TrimSpace(row[i]), ",", "")
	return strconv.ParseFloat(s, 64)
}

func isBlank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
