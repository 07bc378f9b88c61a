// Package model provides the regression estimators used by the forecast
// reconciler: a linear model stored as a JSON artifact and a client for a
// hosted inference endpoint.
package model

import (
	"context"
	"fmt"
	"time"

	"carbmine/internal/types"
)

// Metrics are hold-out scores recorded at training time.
type Metrics struct {
	R2        float64 `json:"r2"`
	RMSE      float64 `json:"rmse"`
	TrainRows int     `json:"train_rows"`
	TestRows  int     `json:"test_rows"`
}

// LinearModel predicts Intercept + Σ Coefficients[i]*x[i]. Features names the
// input columns in order and must match types.FeatureColumns.
type LinearModel struct {
	Intercept    float64   `json:"intercept"`
	Coefficients []float64 `json:"coefficients"`
	Features     []string  `json:"features"`
	Metrics      *Metrics  `json:"metrics,omitempty"`
	TrainedAt    time.Time `json:"trained_at"`
}

// Predict implements types.Estimator.
func (m *LinearModel) Predict(ctx context.Context, features [][]float64) ([]float64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := make([]float64, len(features))
	for i, row := range features {
		if len(row) != len(m.Coefficients) {
			return nil, types.NewAppError(
				types.ErrCodeInternalModel,
				fmt.Sprintf("feature row %d has %d values, model expects %d", i, len(row), len(m.Coefficients)),
				nil,
			)
		}
		y := m.Intercept
		for j, x := range row {
			y += m.Coefficients[j] * x
		}
		out[i] = y
	}
	return out, nil
}

// Validate checks that the model matches the feature contract.
func (m *LinearModel) Validate() error {
	if len(m.Coefficients) != len(types.FeatureColumns) {
		return fmt.Errorf("model has %d coefficients, want %d", len(m.Coefficients), len(types.FeatureColumns))
	}
	if len(m.Features) != 0 {
		if len(m.Features) != len(types.FeatureColumns) {
			return fmt.Errorf("model lists %d features, want %d", len(m.Features), len(types.FeatureColumns))
		}
		for i, f := range m.Features {
			if f != types.FeatureColumns[i] {
				return fmt.Errorf("feature %d is %q, want %q", i, f, types.FeatureColumns[i])
			}
		}
	}
	return nil
}

var _ types.Estimator = (*LinearModel)(nil)
