package core

import (
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"carbmine/internal/types"
)

// Years accepted by the "year" tag.
const (
	MinYear = 2000
	MaxYear = 2100
)

// Validator wraps go-playground/validator and reports failures as
// validation AppErrors keyed by JSON field name.
type Validator struct {
	validate *validator.Validate
	logger   *slog.Logger
}

// NewValidator builds a Validator that names fields by their json tag and
// registers the "year" tag.
func NewValidator(logger *slog.Logger) *Validator {
	if logger == nil {
		logger = slog.Default()
	}

	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		if name == "" {
			return fld.Name
		}
		return name
	})

	_ = v.RegisterValidation("year", func(fl validator.FieldLevel) bool {
		y := fl.Field().Int()
		return y >= MinYear && y <= MaxYear
	})

	return &Validator{validate: v, logger: logger}
}

// ValidateStruct checks s against its validate tags. Only the first failing
// field is reported.
func (v *Validator) ValidateStruct(s any) error {
	err := v.validate.Struct(s)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		v.logger.Error("validator misuse", "error", err)
		return types.NewAppError(types.ErrCodeInternalUnexpected, "request validation failed", err)
	}

	fe := verrs[0]
	field := fe.Field()
	details := map[string]any{"field": field, "rule": fe.Tag()}
	if fe.Param() != "" {
		details["param"] = fe.Param()
	}

	switch fe.Tag() {
	case "required":
		return types.NewAppErrorWithDetails(types.ErrCodeValidationMissingField,
			fmt.Sprintf("%s is required", field), err, details)
	case "gte", "min":
		if isNumeric(fe.Kind()) && fe.Param() == "0" {
			return types.NewAppErrorWithDetails(types.ErrCodeValidationNegativeValue,
				fmt.Sprintf("%s must not be negative", field), err, details)
		}
	case "year":
		return types.NewAppErrorWithDetails(types.ErrCodeValidationYearRange,
			fmt.Sprintf("%s must be between %d and %d", field, MinYear, MaxYear), err, details)
	case "lte", "max":
		if isNumeric(fe.Kind()) {
			return types.NewAppErrorWithDetails(types.ErrCodeValidationInvalidField,
				fmt.Sprintf("%s must be at most %s", field, fe.Param()), err, details)
		}
	case "gtefield":
		return types.NewAppErrorWithDetails(types.ErrCodeValidationTimeWindow,
			fmt.Sprintf("%s must not be before %s", field, siblingName(s, fe.Param())), err, details)
	case "excluded_with":
		return types.NewAppErrorWithDetails(types.ErrCodeValidationInvalidField,
			fmt.Sprintf("%s cannot be combined with %s", field, siblingName(s, fe.Param())), err, details)
	}

	return types.NewAppErrorWithDetails(types.ErrCodeValidationInvalidField,
		fmt.Sprintf("%s failed %s validation", field, fe.Tag()), err, details)
}

func isNumeric(k reflect.Kind) bool {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	}
	return false
}

// siblingName returns the json name of the top-level field goName of s,
// falling back to a snake_case rendering of goName.
func siblingName(s any, goName string) string {
	t := reflect.TypeOf(s)
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t != nil && t.Kind() == reflect.Struct {
		if f, ok := t.FieldByName(goName); ok {
			if name, _, _ := strings.Cut(f.Tag.Get("json"), ","); name != "" && name != "-" {
				return name
			}
		}
	}
	return jsonName(goName)
}

// jsonName converts a Go field name such as StartYear to start_year.
func jsonName(goName string) string {
	var b strings.Builder
	for i, r := range goName {
		if r >= 'A' && r <= 'Z' {
			if i > 0 {
				b.WriteByte('_')
			}
			r += 'a' - 'A'
		}
		b.WriteRune(r)
	}
	return b.String()
}
