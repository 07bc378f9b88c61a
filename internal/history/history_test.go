package history

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/klauspost/compress/zstd"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"carbmine/internal/types"
)

const sampleCSV = `Year,Coal_Production_Tons,Energy_Consumption_MWh,Emission_Factor_kgCO2_perTon,Methane_Emissions_tons,Other_GHG_Emissions_tons,Total_Emissions_tCO2e
2012,1200,300,2050,40,10,2800
2010,1000,250,2000,35,8,2300

2011,"1,100",275,2025,38,9,
`

func TestReadCSV_SortsAndParses(t *testing.T) {
	records, err := ReadCSV(strings.NewReader(sampleCSV))
	require.NoError(t, err)
	require.Len(t, records, 3)

	assert.Equal(t, []int{2010, 2011, 2012}, []int{records[0].Year, records[1].Year, records[2].Year})
	assert.Equal(t, 1100.0, records[1].CoalProductionTons)
	assert.Nil(t, records[1].TotalEmissionsTCO2e)
	require.NotNil(t, records[2].TotalEmissionsTCO2e)
	assert.Equal(t, 2800.0, *records[2].TotalEmissionsTCO2e)
}

func TestReadCSV_MissingColumns(t *testing.T) {
	_, err := ReadCSV(strings.NewReader("Year,Coal_Production_Tons\n2010,1\n"))
	require.Error(t, err)

	var appErr *types.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, types.ErrCodeValidationInvalidDataset, appErr.Code)
	assert.Contains(t, appErr.Details["missing_columns"], "Energy_Consumption_MWh")
}

func TestReadCSV_BadNumber(t *testing.T) {
	in := strings.Replace(sampleCSV, "1200", "lots", 1)
	_, err := ReadCSV(strings.NewReader(in))
	require.Error(t, err)

	var appErr *types.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, 2, appErr.Details["row"])
	assert.Equal(t, "Coal_Production_Tons", appErr.Details["column"])
}

func TestReadCSV_Empty(t *testing.T) {
	records, err := ReadCSV(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestCSVSource_PlainAndZstd(t *testing.T) {
	dir := t.TempDir()

	plain := filepath.Join(dir, "coal_emissions.csv")
	require.NoError(t, os.WriteFile(plain, []byte(sampleCSV), 0o600))

	enc, err := zstd.NewWriter(nil)
	require.NoError(t, err)
	compressed := filepath.Join(dir, "coal_emissions.csv.zst")
	require.NoError(t, os.WriteFile(compressed, enc.EncodeAll([]byte(sampleCSV), nil), 0o600))
	require.NoError(t, enc.Close())

	for _, path := range []string{plain, compressed} {
		t.Run(filepath.Base(path), func(t *testing.T) {
			src, err := Open(path)
			require.NoError(t, err)

			records, err := src.Load(context.Background())
			require.NoError(t, err)
			require.Len(t, records, 3)
			assert.Equal(t, 2012, records[2].Year)
		})
	}
}

func TestCSVSource_MissingFile(t *testing.T) {
	src := &CSVSource{Path: filepath.Join(t.TempDir(), "nope.csv")}
	_, err := src.Load(context.Background())
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestXLSXSource(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.xlsx")

	f := excelize.NewFile()
	header := append(append([]string{}, types.FeatureColumns...), TargetColumn)
	for i, h := range header {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		require.NoError(t, f.SetCellValue("Sheet1", cell, h))
	}
	rows := [][]any{
		{2015, 900.0, 200.0, 2000.0, 30.0, 5.0, 2000.0},
		{2014, 850.0, 190.0, 2000.0, 29.0, 5.0, 1900.0},
	}
	for r, row := range rows {
		for c, v := range row {
			cell, _ := excelize.CoordinatesToCellName(c+1, r+2)
			require.NoError(t, f.SetCellValue("Sheet1", cell, v))
		}
	}
	require.NoError(t, f.SaveAs(path))
	require.NoError(t, f.Close())

	src, err := Open(path)
	require.NoError(t, err)
	records, err := src.Load(context.Background())
	require.NoError(t, err)

	require.Len(t, records, 2)
	assert.Equal(t, 2014, records[0].Year)
	assert.Equal(t, 850.0, records[0].CoalProductionTons)
	require.NotNil(t, records[1].TotalEmissionsTCO2e)
	assert.Equal(t, 2000.0, *records[1].TotalEmissionsTCO2e)
}

func TestOpen_Unsupported(t *testing.T) {
	_, err := Open("history.parquet")
	assert.Error(t, err)
}

func TestValidateTrainingSet(t *testing.T) {
	build := func(n int, withTarget bool) []types.HistoricalRecord {
		out := make([]types.HistoricalRecord, n)
		for i := range out {
			out[i].Year = 1970 + i
			if withTarget {
				v := float64(i)
				out[i].TotalEmissionsTCO2e = &v
			}
		}
		return out
	}

	tests := []struct {
		name    string
		records []types.HistoricalRecord
		wantErr bool
	}{
		{"enough rows", build(MinTrainingRows, true), false},
		{"too few rows", build(MinTrainingRows-1, true), true},
		{"missing target", build(MinTrainingRows, false), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateTrainingSet(tt.records)
			if tt.wantErr {
				require.Error(t, err)
				var appErr *types.AppError
				require.True(t, errors.As(err, &appErr), fmt.Sprintf("%T", err))
				assert.Equal(t, types.ErrCodeValidationInvalidDataset, appErr.Code)
				return
			}
			assert.NoError(t, err)
		})
	}
}
