package types

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestAppErrorImplementsError(t *testing.T) {
	var _ error = (*AppError)(nil)
}

func TestAppErrorErrorFormat(t *testing.T) {
	appErr := &AppError{
		Code:    ErrCodeValidationYearRange,
		Message: "start_year must be between 2000 and 2100",
	}

	expected := "validation_year_out_of_range: start_year must be between 2000 and 2100"
	if appErr.Error() != expected {
		t.Errorf("Error() = %q, want %q", appErr.Error(), expected)
	}
}

func TestAppErrorUnwrap(t *testing.T) {
	underlying := errors.New("database connection failed")
	appErr := NewAppError(ErrCodeInternalDB, "failed to insert forecast run", underlying)

	if appErr.Unwrap() != underlying {
		t.Errorf("Unwrap() = %v, want %v", appErr.Unwrap(), underlying)
	}
	if !errors.Is(appErr, underlying) {
		t.Error("errors.Is should find the underlying error")
	}
}

func TestAppErrorErrorsAs(t *testing.T) {
	appErr := NewAppError(ErrCodeNotFoundForecastRun, "forecast run not found", nil)
	wrapped := fmt.Errorf("handler failed: %w", appErr)

	var target *AppError
	if !errors.As(wrapped, &target) {
		t.Fatal("errors.As should find AppError in the chain")
	}
	if target.Code != ErrCodeNotFoundForecastRun {
		t.Errorf("Code = %q, want %q", target.Code, ErrCodeNotFoundForecastRun)
	}
}

func TestErrorCodeHTTPStatus(t *testing.T) {
	tests := []struct {
		code ErrorCode
		want int
	}{
		{ErrCodeValidationMissingField, http.StatusBadRequest},
		{ErrCodeValidationTimeWindow, http.StatusBadRequest},
		{ErrCodeValidationInvalidDataset, http.StatusBadRequest},
		{ErrCodeNotFoundForecastRun, http.StatusNotFound},
		{ErrCodeUpstreamEstimator, http.StatusBadGateway},
		{ErrCodeUpstreamQueue, http.StatusBadGateway},
		{ErrCodeUpstreamRateLimited, http.StatusTooManyRequests},
		{ErrCodeFeatureDisabled, http.StatusServiceUnavailable},
		{ErrCodeInternalDB, http.StatusInternalServerError},
		{ErrCodeInternalModel, http.StatusInternalServerError},
		{ErrorCode("something_else"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			if got := tt.code.HTTPStatus(); got != tt.want {
				t.Errorf("HTTPStatus() = %d, want %d", got, tt.want)
			}
			if got := NewAppError(tt.code, "x", nil).HTTPStatus(); got != tt.want {
				t.Errorf("AppError.HTTPStatus() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestWithDetailsMergesWithoutMutating(t *testing.T) {
	base := NewAppErrorWithDetails(ErrCodeValidationNegativeValue, "negative input", nil, map[string]any{"field": "coal_production_tons"})
	merged := base.WithDetails(map[string]any{"value": -1.0})

	if len(base.Details) != 1 {
		t.Errorf("original details mutated: %v", base.Details)
	}
	if merged.Details["field"] != "coal_production_tons" || merged.Details["value"] != -1.0 {
		t.Errorf("merged details = %v", merged.Details)
	}
	if merged.Code != base.Code || merged.Message != base.Message {
		t.Error("WithDetails must preserve code and message")
	}
}

func TestClampLimit(t *testing.T) {
	tests := []struct{ in, want int }{
		{0, DefaultPageLimit},
		{-5, DefaultPageLimit},
		{7, 7},
		{MaxPageLimit + 1, MaxPageLimit},
	}
	for _, tt := range tests {
		if got := ClampLimit(tt.in); got != tt.want {
			t.Errorf("ClampLimit(%d) = %d, want %d", tt.in, got, tt.want)
		}
	}
}
