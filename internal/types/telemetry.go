package types

// Telemetry metric names for CloudWatch.
// All components MUST use these constants.
const (
	// Metric Names
	MetricAPILatency       = "APILatency"
	MetricAPIRequestCount  = "APIRequestCount"
	MetricForecastMethod   = "ForecastMethod"
	MetricForecastFallback = "ForecastFallback"
	MetricTrainingJob      = "TrainingJob"

	// Dimension Keys
	DimEndpoint = "Endpoint"
	DimMethod   = "Method"
	DimStatus   = "Status"
	DimReason   = "Reason"

	// Metric Namespace
	MetricNamespace = "CarbMine"
)
