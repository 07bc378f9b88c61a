// Package main is the entry point for the CarbMine API server.
//
// It loads configuration, connects the optional dependencies (Postgres,
// model artifact or inference endpoint, SQS, CloudWatch), builds the HTTP
// server with the core chassis and serves until SIGINT or SIGTERM.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/jackc/pgx/v5/pgxpool"

	"carbmine/internal/api/handlers"
	"carbmine/internal/config"
	"carbmine/internal/core"
	"carbmine/internal/db"
	"carbmine/internal/forecasts"
	"carbmine/internal/history"
	"carbmine/internal/model"
	"carbmine/internal/queue"
	"carbmine/internal/recommend"
	"carbmine/internal/telemetry"
	"carbmine/internal/types"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

// run encapsulates the startup lifecycle so that main() can cleanly exit on error.
func run() error {
	cfg, err := config.LoadConfig(nil)
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	logger := newLogger(cfg.LogLevel)
	slog.SetDefault(logger)
	logger.Info("carbmine API starting",
		"environment", cfg.Environment,
		"version", cfg.Build.Version,
		"commit", cfg.Build.Commit,
		"port", cfg.Server.Port,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv, err := buildServer(ctx, cfg, logger, awsClients{})
	if err != nil {
		return err
	}

	if err := srv.ListenAndServe(ctx); err != nil {
		return fmt.Errorf("server: %w", err)
	}
	logger.Info("carbmine API stopped")
	return nil
}

// awsClients carries pre-built AWS clients. Nil fields are constructed from
// configuration when the matching feature is enabled.
type awsClients struct {
	sqs        queue.SQSSender
	cloudwatch telemetry.CloudWatchClient
}

// buildServer wires every dependency into a mounted core.Server.
func buildServer(ctx context.Context, cfg *config.Config, logger *slog.Logger, clients awsClients) (*core.Server, error) {
	srv, err := core.NewServer(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("creating server: %w", err)
	}

	var pool *pgxpool.Pool
	if cfg.Database.Enabled() {
		pool, err = db.Connect(ctx, cfg.Database.URL.Unmask(), db.PoolOptions{
			MaxConns:        int32(cfg.Database.MaxConns),
			MinConns:        int32(cfg.Database.MinConns),
			MaxConnLifetime: cfg.Database.MaxConnLifetime,
		})
		if err != nil {
			return nil, fmt.Errorf("connecting to database: %w", err)
		}
		srv.OnShutdown(func() error {
			pool.Close()
			return nil
		})
		srv.HealthProbes = append(srv.HealthProbes, db.NewHealthProbe(pool))
	} else {
		logger.Warn("DATABASE_URL not set, forecast runs will not be persisted")
	}

	source, err := openHistory(cfg.Data, pool)
	if err != nil {
		return nil, err
	}

	estimator, err := model.Load(model.LoaderConfig{
		EndpointURL:  cfg.Model.EndpointURL,
		APIKey:       cfg.Model.APIKey.Unmask(),
		ArtifactPath: cfg.Model.ArtifactPath,
		HTTPClient:   &http.Client{Timeout: cfg.Model.Timeout},
		Logger:       logger,
	})
	switch {
	case errors.Is(err, model.ErrModelUnavailable):
		logger.Warn("no trained model, forecasts use the heuristic path", "reason", err.Error())
		estimator = nil
	case err != nil:
		return nil, fmt.Errorf("loading model: %w", err)
	default:
		srv.HealthProbes = append(srv.HealthProbes, modelProbe(estimator))
	}

	catalog, err := recommend.LoadCatalog(cfg.Data.StrategiesPath)
	if err != nil {
		return nil, fmt.Errorf("loading strategy catalog: %w", err)
	}
	recommender, err := recommend.NewCatalogRecommender(catalog, logger)
	if err != nil {
		return nil, fmt.Errorf("building recommender: %w", err)
	}

	if err := resolveAWSClients(ctx, cfg, &clients); err != nil {
		return nil, err
	}

	opts := []forecasts.Option{forecasts.WithValidator(srv.Validator)}
	if pool != nil {
		opts = append(opts, forecasts.WithRunRepository(db.NewForecastRunRepository(pool)))
	}
	if clients.cloudwatch != nil {
		collector := telemetry.NewCollector(clients.cloudwatch, types.NewSlogLogger(logger))
		srv.Metrics = collector
		opts = append(opts, forecasts.WithMetrics(collector))
	}
	service := forecasts.NewService(source, estimator, logger, opts...)

	trigger := queue.NewTrainingTrigger(clients.sqs, cfg.AWS, cfg.Data.HistoryPath, logger)
	if !trigger.Enabled() {
		logger.Info("SQS_TRAINING_QUEUE not set, retraining endpoint disabled")
	}

	limit := srv.MaxBodyBytes()
	srv.RouteRegistrars = append(srv.RouteRegistrars,
		handlers.NewEstimateHandler(srv.Validator, logger, limit).RegisterRoutes,
		handlers.NewForecastHandler(service, source, logger, limit).RegisterRoutes,
		handlers.NewStrategyHandler(recommender, srv.Validator, logger, limit).RegisterRoutes,
		handlers.NewModelHandler(trigger, srv.Validator, logger, limit).RegisterRoutes,
	)
	srv.MountRoutes()

	logger.Info("server assembled",
		"history_source", cfg.Data.HistorySource,
		"model_loaded", service.HasEstimator(),
		"strategies", len(catalog),
		"persistence", pool != nil,
		"metrics", clients.cloudwatch != nil,
	)
	return srv, nil
}

// openHistory selects the configured history source. The postgres source
// needs a connected pool.
func openHistory(cfg config.DataConfig, pool *pgxpool.Pool) (types.HistorySource, error) {
	if cfg.HistorySource == "postgres" {
		if pool == nil {
			return nil, errors.New("HISTORY_SOURCE=postgres requires DATABASE_URL")
		}
		return db.NewHistoryRepository(pool), nil
	}

	source, err := history.Open(cfg.HistoryPath)
	if err != nil {
		return nil, fmt.Errorf("opening history: %w", err)
	}
	if x, ok := source.(*history.XLSXSource); ok {
		x.Sheet = cfg.HistorySheet
	}
	return source, nil
}

// resolveAWSClients builds the SQS and CloudWatch clients that the
// configuration asks for and the caller did not supply.
func resolveAWSClients(ctx context.Context, cfg *config.Config, clients *awsClients) error {
	needSQS := clients.sqs == nil && cfg.AWS.TrainingQueueURL != ""
	needCW := clients.cloudwatch == nil && cfg.Observability.EnableMetrics
	if !needSQS && !needCW {
		return nil
	}

	awsCfg, err := config.LoadAWS(ctx, cfg.AWS)
	if err != nil {
		return err
	}
	if needSQS {
		clients.sqs = sqs.NewFromConfig(awsCfg)
	}
	if needCW {
		clients.cloudwatch = cloudwatch.NewFromConfig(awsCfg)
	}
	return nil
}

// modelProbe runs a single all-zero feature row through the estimator.
func modelProbe(est types.Estimator) core.HealthProbe {
	return core.ProbeFunc{
		ProbeName: "model",
		Fn: func(ctx context.Context) error {
			_, err := est.Predict(ctx, [][]float64{make([]float64, len(types.FeatureColumns))})
			return err
		},
	}
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "info":
		lvl = slog.LevelInfo
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level:     lvl,
		AddSource: false,
	})
	return slog.New(handler)
}
