package report

import (
	"fmt"
	"image/color"
	"io"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"carbmine/internal/trajectory"
	"carbmine/internal/types"
)

var (
	historyColor  = color.RGBA{R: 60, G: 60, B: 60, A: 255}
	forecastColor = color.RGBA{R: 0, G: 100, B: 0, A: 255}
)

// WriteChart renders observed and forecast totals as a PNG line chart.
// Observed years use the recorded total when present, otherwise the
// closed-form estimate.
func WriteChart(w io.Writer, title string, fc Forecast, records []types.HistoricalRecord) error {
	if len(fc.Predictions) == 0 && len(records) == 0 {
		return fmt.Errorf("nothing to plot")
	}

	p := plot.New()
	p.Title.Text = title
	p.Title.TextStyle.Font.Size = vg.Points(14)
	p.X.Label.Text = "Year"
	p.Y.Label.Text = "Total emissions (MtCO2e)"

	if len(records) > 0 {
		points := make(plotter.XYs, len(records))
		for i, r := range records {
			points[i].X = float64(r.Year)
			points[i].Y = observedTotal(r) / 1e6
		}
		line, err := plotter.NewLine(points)
		if err != nil {
			return fmt.Errorf("history line: %w", err)
		}
		line.Color = historyColor
		line.Width = vg.Points(2)
		p.Add(line)
		p.Legend.Add("Observed", line)
	}

	if len(fc.Predictions) > 0 {
		points := make(plotter.XYs, len(fc.Predictions))
		for i, pr := range fc.Predictions {
			points[i].X = float64(pr.Year)
			points[i].Y = pr.PredictedTotalEmissionsTCO2e / 1e6
		}
		line, err := plotter.NewLine(points)
		if err != nil {
			return fmt.Errorf("forecast line: %w", err)
		}
		line.Color = forecastColor
		line.Width = vg.Points(2)
		line.Dashes = []vg.Length{vg.Points(6), vg.Points(3)}
		p.Add(line)
		p.Legend.Add(fmt.Sprintf("Forecast (%s)", fc.Method), line)
	}

	p.Add(plotter.NewGrid())
	p.Legend.Top = true

	wt, err := p.WriterTo(10*vg.Inch, 5*vg.Inch, "png")
	if err != nil {
		return fmt.Errorf("render chart: %w", err)
	}
	if _, err := wt.WriteTo(w); err != nil {
		return fmt.Errorf("write chart: %w", err)
	}
	return nil
}

func observedTotal(r types.HistoricalRecord) float64 {
	if r.TotalEmissionsTCO2e != nil {
		return *r.TotalEmissionsTCO2e
	}
	return trajectory.PhysicsTotal(types.ProjectedRow{
		Year:                      r.Year,
		CoalProductionTons:        r.CoalProductionTons,
		EnergyConsumptionMWh:      r.EnergyConsumptionMWh,
		EmissionFactorKgCO2PerTon: r.EmissionFactorKgCO2PerTon,
		MethaneEmissionsTons:      r.MethaneEmissionsTons,
		OtherGHGEmissionsTons:     r.OtherGHGEmissionsTons,
	})
}
