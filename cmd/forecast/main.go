// Package main implements the forecast CLI, which runs an emissions
// forecast offline and optionally exports it as an XLSX workbook and a PNG
// chart.
//
// Usage:
//
//	go run ./cmd/forecast --start=2025 --end=2035
//	go run ./cmd/forecast --start=2025 --end=2030 --coal=1.2e9 --energy=3e8
//	go run ./cmd/forecast --start=2025 --end=2040 --xlsx=out/forecast.xlsx --png=out/forecast.png
//
// The history file and model artifact default to HISTORY_PATH and
// MODEL_ARTIFACT_PATH (environment or .env file via godotenv). A missing
// artifact selects the heuristic forecast.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"

	"github.com/joho/godotenv"

	"carbmine/internal/forecasts"
	"carbmine/internal/history"
	"carbmine/internal/model"
	"carbmine/internal/report"
)

const (
	defaultHistoryPath  = "data/coal_mining_emissions.csv"
	defaultArtifactPath = "models/emissions_model.json"
)

func main() {
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(2)
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// options are the parsed command-line flags.
type options struct {
	start, end   int
	coal, energy *float64
	historyPath  string
	artifactPath string
	xlsxPath     string
	pngPath      string
	verbose      bool
}

func parseFlags(args []string, stderr io.Writer) (options, error) {
	opts := options{}
	fs := flag.NewFlagSet("forecast", flag.ContinueOnError)
	fs.SetOutput(stderr)

	fs.IntVar(&opts.start, "start", 0, "First forecast year (required)")
	fs.IntVar(&opts.end, "end", 0, "Last forecast year (required)")
	fs.Func("coal", "Final-year coal production in tons", floatFlag(&opts.coal))
	fs.Func("energy", "Final-year energy consumption in MWh", floatFlag(&opts.energy))
	fs.StringVar(&opts.historyPath, "history", envOr("HISTORY_PATH", defaultHistoryPath), "History CSV/XLSX file")
	fs.StringVar(&opts.artifactPath, "model", envOr("MODEL_ARTIFACT_PATH", defaultArtifactPath), "Model artifact path")
	fs.StringVar(&opts.xlsxPath, "xlsx", "", "Write the forecast workbook to this path")
	fs.StringVar(&opts.pngPath, "png", "", "Write the forecast chart to this path")
	fs.BoolVar(&opts.verbose, "v", false, "Log progress to stderr")

	fs.Usage = func() {
		fmt.Fprintf(stderr, "Usage: forecast --start=YEAR --end=YEAR [flags]\n\n")
		fmt.Fprintf(stderr, "Run a coal mining emissions forecast offline.\n\n")
		fmt.Fprintf(stderr, "Flags:\n")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return opts, err
	}
	if opts.start == 0 || opts.end == 0 {
		fs.Usage()
		return opts, errors.New("--start and --end are required")
	}
	return opts, nil
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	opts, err := parseFlags(args, stderr)
	if err != nil {
		return err
	}

	level := slog.LevelWarn
	if opts.verbose {
		level = slog.LevelInfo
	}
	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))

	source, err := history.Open(opts.historyPath)
	if err != nil {
		return err
	}

	estimator, err := model.Load(model.LoaderConfig{ArtifactPath: opts.artifactPath, Logger: logger})
	if err != nil && !errors.Is(err, model.ErrModelUnavailable) {
		return err
	}

	svc := forecasts.NewService(source, estimator, logger)
	resp, err := svc.Predict(ctx, forecasts.PredictRequest{
		StartYear:            opts.start,
		EndYear:              opts.end,
		CoalProductionTons:   opts.coal,
		EnergyConsumptionMWh: opts.energy,
	})
	if err != nil {
		return err
	}

	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(resp); err != nil {
		return err
	}

	if opts.xlsxPath == "" && opts.pngPath == "" {
		return nil
	}

	// Exports include the observed series when the history file is readable.
	records, err := source.Load(ctx)
	if err != nil {
		logger.Warn("history unavailable for export", "error", err)
		records = nil
	}
	fc := report.Forecast{Predictions: resp.Predictions, Method: resp.Method}

	if opts.xlsxPath != "" {
		if err := writeFile(opts.xlsxPath, func(w io.Writer) error {
			return report.WriteXLSX(w, fc, records)
		}); err != nil {
			return fmt.Errorf("xlsx export: %w", err)
		}
		logger.Info("wrote workbook", "path", opts.xlsxPath)
	}
	if opts.pngPath != "" {
		title := fmt.Sprintf("Coal mining emissions %d-%d (%s)", opts.start, opts.end, resp.Method)
		if err := writeFile(opts.pngPath, func(w io.Writer) error {
			return report.WriteChart(w, title, fc, records)
		}); err != nil {
			return fmt.Errorf("chart export: %w", err)
		}
		logger.Info("wrote chart", "path", opts.pngPath)
	}
	return nil
}

func writeFile(path string, write func(io.Writer) error) (err error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	return write(f)
}

func floatFlag(dst **float64) func(string) error {
	return func(s string) error {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return err
		}
		*dst = &v
		return nil
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
