package types

import (
	"maps"
	"net/http"
	"strings"
)

// ErrorCode is the machine-readable error identifier returned to clients.
// Its prefix selects the HTTP status.
type ErrorCode string

const (
	// Validation (400)
	ErrCodeValidationInvalidJSON    ErrorCode = "validation_invalid_json"
	ErrCodeValidationMissingField   ErrorCode = "validation_missing_required_field"
	ErrCodeValidationInvalidField   ErrorCode = "validation_invalid_field"
	ErrCodeValidationYearRange      ErrorCode = "validation_year_out_of_range"
	ErrCodeValidationTimeWindow     ErrorCode = "validation_time_window_invalid"
	ErrCodeValidationNegativeValue  ErrorCode = "validation_negative_value"
	ErrCodeValidationInvalidRegion  ErrorCode = "validation_invalid_region"
	ErrCodeValidationBatchSize      ErrorCode = "validation_batch_size_exceeded"
	ErrCodeValidationInvalidDataset ErrorCode = "validation_invalid_dataset"

	// Not Found (404)
	ErrCodeNotFoundForecastRun ErrorCode = "not_found_forecast_run"

	// Internal/Upstream (500/502/503)
	ErrCodeInternalDB          ErrorCode = "internal_database_error"
	ErrCodeInternalUnexpected  ErrorCode = "internal_unexpected_error"
	ErrCodeInternalModel       ErrorCode = "internal_model_error"
	ErrCodeUpstreamEstimator   ErrorCode = "upstream_estimator_unavailable"
	ErrCodeUpstreamQueue       ErrorCode = "upstream_queue_unavailable"
	ErrCodeUpstreamUnavailable ErrorCode = "upstream_unavailable"
	ErrCodeUpstreamRateLimited ErrorCode = "upstream_rate_limited"
	ErrCodeFeatureDisabled     ErrorCode = "feature_disabled"
)

// HTTPStatus derives the response status from the code prefix. Unknown codes
// map to 500.
func (c ErrorCode) HTTPStatus() int {
	switch c {
	case ErrCodeFeatureDisabled:
		return http.StatusServiceUnavailable
	case ErrCodeUpstreamRateLimited:
		return http.StatusTooManyRequests
	}
	s := string(c)
	switch {
	case strings.HasPrefix(s, "validation_"):
		return http.StatusBadRequest
	case strings.HasPrefix(s, "not_found_"):
		return http.StatusNotFound
	case strings.HasPrefix(s, "upstream_"):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

// AppError carries a stable code for clients alongside the wrapped cause,
// which is logged but never rendered.
type AppError struct {
	Code    ErrorCode      `json:"code"`
	Message string         `json:"message"`
	Err     error          `json:"-"`
	Details map[string]any `json:"details,omitempty"`
}

func (e *AppError) Error() string { return string(e.Code) + ": " + e.Message }

func (e *AppError) Unwrap() error { return e.Err }

// HTTPStatus is shorthand for e.Code.HTTPStatus().
func (e *AppError) HTTPStatus() int { return e.Code.HTTPStatus() }

// WithDetails returns a copy with details merged over the existing ones.
// The receiver is left untouched.
func (e *AppError) WithDetails(details map[string]any) *AppError {
	merged := make(map[string]any, len(e.Details)+len(details))
	maps.Copy(merged, e.Details)
	maps.Copy(merged, details)
	out := *e
	out.Details = merged
	return &out
}

func NewAppError(code ErrorCode, message string, err error) *AppError {
	return &AppError{Code: code, Message: message, Err: err}
}

// NewAppErrorWithDetails attaches field-level context, e.g. the offending
// row of a history file or the rejected request field.
func NewAppErrorWithDetails(code ErrorCode, message string, err error, details map[string]any) *AppError {
	return &AppError{Code: code, Message: message, Err: err, Details: details}
}
