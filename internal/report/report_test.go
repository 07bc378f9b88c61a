package report

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"carbmine/internal/types"
)

func sample() (Forecast, []types.HistoricalRecord) {
	total := 2_500_000.0
	fc := Forecast{
		Predictions: []types.PredictionResult{
			{Year: 2025, PredictedTotalEmissionsTCO2e: 2_600_000},
			{Year: 2026, PredictedTotalEmissionsTCO2e: 2_700_000},
		},
		Method: types.MethodModel,
		RunID:  "run-1",
	}
	records := []types.HistoricalRecord{
		{Year: 2023, CoalProductionTons: 1_000_000, EnergyConsumptionMWh: 50_000, EmissionFactorKgCO2PerTon: 2000, MethaneEmissionsTons: 900, OtherGHGEmissionsTons: 400},
		{Year: 2024, CoalProductionTons: 1_100_000, EnergyConsumptionMWh: 52_000, EmissionFactorKgCO2PerTon: 2000, MethaneEmissionsTons: 950, OtherGHGEmissionsTons: 420, TotalEmissionsTCO2e: &total},
	}
	return fc, records
}

func TestWriteXLSX(t *testing.T) {
	fc, records := sample()
	var buf bytes.Buffer
	require.NoError(t, WriteXLSX(&buf, fc, records))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{SheetForecast, SheetHistory}, f.GetSheetList())

	rows, err := f.GetRows(SheetForecast)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"Year", "Predicted_Total_Emissions_tCO2e", "", "Method", "model"}, rows[0])
	assert.Equal(t, "2026", rows[2][0])
	assert.Equal(t, "run-1", rows[1][4])

	hist, err := f.GetRows(SheetHistory)
	require.NoError(t, err)
	require.Len(t, hist, 3)
	assert.Equal(t, "Total_Emissions_tCO2e", hist[0][6])
	assert.Len(t, hist[1], 6)
	assert.Equal(t, "2500000", hist[2][6])
}

func TestWriteXLSX_NoHistory(t *testing.T) {
	fc, _ := sample()
	var buf bytes.Buffer
	require.NoError(t, WriteXLSX(&buf, fc, nil))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()
	assert.Equal(t, []string{SheetForecast}, f.GetSheetList())
}

func TestWriteChart(t *testing.T) {
	fc, records := sample()
	var buf bytes.Buffer
	require.NoError(t, WriteChart(&buf, "Emissions", fc, records))

	assert.True(t, bytes.HasPrefix(buf.Bytes(), []byte("\x89PNG\r\n\x1a\n")))
}

func TestWriteChart_Empty(t *testing.T) {
	var buf bytes.Buffer
	assert.Error(t, WriteChart(&buf, "Emissions", Forecast{}, nil))
}

func TestObservedTotal(t *testing.T) {
	_, records := sample()
	// 1e6*2000/1000 + 50000*0.8 + 900 + 400
	assert.InDelta(t, 2_041_300, observedTotal(records[0]), 1e-6)
	assert.Equal(t, 2_500_000.0, observedTotal(records[1]))
}
