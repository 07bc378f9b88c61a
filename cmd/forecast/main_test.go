package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"carbmine/internal/forecasts"
	"carbmine/internal/types"
)

func writeHistory(t *testing.T, dir string) string {
	t.Helper()
	var b strings.Builder
	b.WriteString("Year,Coal_Production_Tons,Energy_Consumption_MWh,Emission_Factor_kgCO2_perTon,Methane_Emissions_tons,Other_GHG_Emissions_tons,Total_Emissions_tCO2e\n")
	for i := 0; i < 8; i++ {
		fmt.Fprintf(&b, "%d,%d,%d,2100,%d,400,%d\n", 2015+i, 1_000_000+i*40_000, 250_000+i*2_000, 1500+i*20, 2_500_000+i*90_000)
	}
	path := filepath.Join(dir, "history.csv")
	require.NoError(t, os.WriteFile(path, []byte(b.String()), 0o600))
	return path
}

func TestRun_HeuristicWithExports(t *testing.T) {
	dir := t.TempDir()
	hist := writeHistory(t, dir)
	xlsx := filepath.Join(dir, "out", "forecast.xlsx")
	png := filepath.Join(dir, "out", "forecast.png")

	var stdout, stderr bytes.Buffer
	err := run(context.Background(), []string{
		"--start=2025", "--end=2030",
		"--history=" + hist,
		"--model=" + filepath.Join(dir, "missing.json"),
		"--xlsx=" + xlsx,
		"--png=" + png,
	}, &stdout, &stderr)
	require.NoError(t, err, stderr.String())

	var resp forecasts.PredictResponse
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &resp))
	assert.Equal(t, types.MethodHeuristic, resp.Method)
	require.Len(t, resp.Predictions, 6)
	assert.Equal(t, 2025, resp.Predictions[0].Year)
	assert.Equal(t, 2030, resp.Predictions[5].Year)

	info, err := os.Stat(xlsx)
	require.NoError(t, err)
	assert.Positive(t, info.Size())

	raw, err := os.ReadFile(png)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(raw, []byte("\x89PNG")), "chart is not a PNG")
}

func TestRun_FinalYearOverrides(t *testing.T) {
	dir := t.TempDir()
	hist := writeHistory(t, dir)

	var stdout, stderr bytes.Buffer
	err := run(context.Background(), []string{
		"--start=2025", "--end=2026",
		"--coal=2e6", "--energy=4e5",
		"--history=" + hist,
		"--model=" + filepath.Join(dir, "missing.json"),
	}, &stdout, &stderr)
	require.NoError(t, err, stderr.String())

	var resp forecasts.PredictResponse
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &resp))
	assert.Len(t, resp.Predictions, 2)
}

func TestRun_Errors(t *testing.T) {
	dir := t.TempDir()
	hist := writeHistory(t, dir)

	tests := []struct {
		name string
		args []string
		want string
	}{
		{"missing years", []string{"--history=" + hist}, "--start and --end are required"},
		{"reversed window", []string{"--start=2030", "--end=2025", "--history=" + hist}, "end_year"},
		{"bad override", []string{"--start=2025", "--end=2026", "--coal=lots"}, "invalid value"},
		{"unsupported history", []string{"--start=2025", "--end=2026", "--history=" + filepath.Join(dir, "h.json")}, "unsupported history format"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var stdout, stderr bytes.Buffer
			args := append(tt.args, "--model="+filepath.Join(dir, "missing.json"))
			err := run(context.Background(), args, &stdout, &stderr)
			require.Error(t, err)
			assert.Contains(t, err.Error()+stderr.String(), tt.want)
		})
	}
}
