// Package config defines the configuration structure for the CarbMine
// services. Configuration is loaded once at process start and is immutable
// thereafter.
//
// Values are resolved via a priority chain:
//
//	OS Environment (Highest) -> Dotenv File -> Secret files (*_FILE) (Lowest)
//
// Any invalid value causes startup to fail.
package config

import (
	"time"
)

// SecretString is a string that redacts itself when formatted, so secrets
// never end up in logs.
type SecretString string

// String implements fmt.Stringer.
func (s SecretString) String() string {
	if s == "" {
		return ""
	}
	return "[REDACTED]"
}

// GoString implements fmt.GoStringer for %#v.
func (s SecretString) GoString() string { return s.String() }

// MarshalText keeps secrets out of JSON and text encodings.
func (s SecretString) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// Unmask returns the plaintext value.
func (s SecretString) Unmask() string { return string(s) }

// Config is the top-level configuration struct. Sub-components receive only
// the subsets they need.
type Config struct {
	// System Metadata
	Environment string `envconfig:"APP_ENV" default:"local" validate:"required,oneof=local dev staging prod"`
	Service     string `envconfig:"SERVICE_NAME" default:"carbmine-api"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info" validate:"oneof=debug info warn error"`

	Server        ServerConfig
	Database      DatabaseConfig
	AWS           AWSConfig
	Model         ModelConfig
	Data          DataConfig
	Observability ObservabilityConfig

	// Build Metadata (Injected via ldflags, not Env)
	Build BuildInfo
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port               string        `envconfig:"PORT" default:"8000"`
	RequestTimeout     time.Duration `envconfig:"REQUEST_TIMEOUT" default:"30s"`
	ShutdownTimeout    time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"10s"`
	MaxBodyBytes       int64         `envconfig:"MAX_BODY_BYTES" default:"1048576" validate:"gt=0"`
	CorsAllowedOrigins []string      `envconfig:"CORS_ALLOWED_ORIGINS" default:"*"`
}

// DatabaseConfig holds the optional Postgres connection. Forecast run
// persistence and the postgres history source are disabled when URL is empty.
type DatabaseConfig struct {
	URL SecretString `envconfig:"DATABASE_URL" validate:"omitempty,url"`

	MaxConns        int           `envconfig:"DB_MAX_CONNS" default:"10" validate:"gt=0"`
	MinConns        int           `envconfig:"DB_MIN_CONNS" default:"1" validate:"gte=0"`
	MaxConnLifetime time.Duration `envconfig:"DB_MAX_CONN_LIFETIME" default:"30m"`
}

// Enabled reports whether a database is configured.
func (d DatabaseConfig) Enabled() bool { return d.URL != "" }

// AWSConfig holds AWS resource identifiers and regional configuration.
type AWSConfig struct {
	Region string `envconfig:"AWS_REGION" default:"ap-south-1"`

	// TrainingQueueURL receives TrainingJob messages. Retraining is
	// disabled when empty.
	TrainingQueueURL string `envconfig:"SQS_TRAINING_QUEUE" validate:"omitempty,url"`

	// LocalStack Support (Empty in Prod)
	EndpointURL string `envconfig:"AWS_ENDPOINT_URL" validate:"omitempty,url"`
}

// ModelConfig selects the regression estimator.
type ModelConfig struct {
	// EndpointURL, when set, routes predictions to a remote inference service
	// instead of the local artifact.
	EndpointURL  string        `envconfig:"MODEL_ENDPOINT_URL" validate:"omitempty,url"`
	APIKey       SecretString  `envconfig:"MODEL_API_KEY"`
	ArtifactPath string        `envconfig:"MODEL_ARTIFACT_PATH" default:"models/emissions_model.json"`
	MetricsPath  string        `envconfig:"MODEL_METRICS_PATH" default:"models/metrics.json"`
	Timeout      time.Duration `envconfig:"MODEL_TIMEOUT" default:"10s"`
}

// DataConfig locates the historical series and the strategy catalog.
type DataConfig struct {
	HistorySource  string `envconfig:"HISTORY_SOURCE" default:"file" validate:"oneof=file postgres"`
	HistoryPath    string `envconfig:"HISTORY_PATH" default:"data/coal_mining_emissions.csv"`
	HistorySheet   string `envconfig:"HISTORY_SHEET"`
	StrategiesPath string `envconfig:"STRATEGIES_CSV" default:"data/strategies.csv"`
}

// ObservabilityConfig holds telemetry settings.
type ObservabilityConfig struct {
	EnableMetrics bool `envconfig:"ENABLE_METRICS" default:"false"`
}

// BuildInfo holds build-time metadata injected via ldflags.
// These values are NOT populated from environment variables.
type BuildInfo struct {
	Version   string
	Commit    string
	BuildTime string
}

// ConfigErrorType categorizes configuration loading failures to aid debugging.
type ConfigErrorType string

const (
	// ErrSecretResolution indicates a failure reading a secret file.
	ErrSecretResolution ConfigErrorType = "SECRET_FAILURE"
	// ErrValidation indicates the configuration failed struct validation rules.
	ErrValidation ConfigErrorType = "VALIDATION_FAILED"
	// ErrParsing indicates a failure when parsing environment variable values
	// into their target types.
	ErrParsing ConfigErrorType = "PARSING_FAILED"
)
