// Package report renders forecasts as an XLSX workbook or a PNG chart.
package report

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"carbmine/internal/history"
	"carbmine/internal/types"
)

// Sheet names of the exported workbook.
const (
	SheetForecast = "Forecast"
	SheetHistory  = "History"
)

// Forecast is what gets exported: the predictions plus their provenance.
type Forecast struct {
	Predictions []types.PredictionResult
	Method      types.ForecastMethod
	RunID       string
}

// WriteXLSX writes a workbook with a Forecast sheet and, when history is
// non-empty, a History sheet in the training-file column layout.
func WriteXLSX(w io.Writer, fc Forecast, records []types.HistoricalRecord) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetForecast); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}

	headers := []string{"Year", "Predicted_Total_Emissions_tCO2e"}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(SheetForecast, cell, h)
	}
	for i, p := range fc.Predictions {
		row := i + 2
		f.SetCellValue(SheetForecast, fmt.Sprintf("A%d", row), p.Year)
		f.SetCellValue(SheetForecast, fmt.Sprintf("B%d", row), p.PredictedTotalEmissionsTCO2e)
	}
	f.SetCellValue(SheetForecast, "D1", "Method")
	f.SetCellValue(SheetForecast, "E1", string(fc.Method))
	if fc.RunID != "" {
		f.SetCellValue(SheetForecast, "D2", "Run ID")
		f.SetCellValue(SheetForecast, "E2", fc.RunID)
	}

	if len(records) > 0 {
		if _, err := f.NewSheet(SheetHistory); err != nil {
			return fmt.Errorf("create history sheet: %w", err)
		}
		cols := append(append([]string{}, types.FeatureColumns...), history.TargetColumn)
		for i, h := range cols {
			cell, _ := excelize.CoordinatesToCellName(i+1, 1)
			f.SetCellValue(SheetHistory, cell, h)
		}
		for i, r := range records {
			for j, v := range r.Features() {
				cell, _ := excelize.CoordinatesToCellName(j+1, i+2)
				if j == 0 {
					f.SetCellValue(SheetHistory, cell, r.Year)
					continue
				}
				f.SetCellValue(SheetHistory, cell, v)
			}
			if r.TotalEmissionsTCO2e != nil {
				cell, _ := excelize.CoordinatesToCellName(len(cols), i+2)
				f.SetCellValue(SheetHistory, cell, *r.TotalEmissionsTCO2e)
			}
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}
