package recommend

import (
	"context"
	"fmt"
	"log/slog"

	"carbmine/internal/types"
)

// Recommender asks the primary ranker first and falls back when it fails or
// returns nothing.
type Recommender struct {
	primary  Ranker
	fallback Ranker
	logger   *slog.Logger
}

// NewRecommender wires explicit rankers. fallback may be nil.
func NewRecommender(primary, fallback Ranker, logger *slog.Logger) *Recommender {
	if logger == nil {
		logger = slog.Default()
	}
	return &Recommender{primary: primary, fallback: fallback, logger: logger}
}

// NewCatalogRecommender builds the default pair: PrimaryRules over catalog,
// then FallbackRules over catalog or BuiltinCatalog when catalog is empty.
func NewCatalogRecommender(catalog []Strategy, logger *slog.Logger) (*Recommender, error) {
	primary, err := NewRuleRanker(catalog, PrimaryRules)
	if err != nil {
		return nil, fmt.Errorf("primary ranker: %w", err)
	}
	fallbackCatalog := catalog
	if len(fallbackCatalog) == 0 {
		fallbackCatalog = BuiltinCatalog
	}
	fallback, err := NewRuleRanker(fallbackCatalog, FallbackRules)
	if err != nil {
		return nil, fmt.Errorf("fallback ranker: %w", err)
	}
	return NewRecommender(primary, fallback, logger), nil
}

// Recommend returns up to MaxResults ranked strategies.
func (r *Recommender) Recommend(ctx context.Context, sector string, emission float64, region string) ([]RankedStrategy, error) {
	if emission < 0 {
		return nil, types.NewAppErrorWithDetails(
			types.ErrCodeValidationNegativeValue,
			"emission_value must be >= 0",
			nil,
			map[string]any{"field": "emission_value"},
		)
	}

	if r.primary != nil {
		ranked, err := r.primary.Rank(ctx, sector, emission, region)
		if err != nil {
			r.logger.WarnContext(ctx, "primary ranker failed", "error", err)
		} else if len(ranked) > 0 {
			return ranked, nil
		}
	}

	if r.fallback == nil {
		return []RankedStrategy{}, nil
	}
	ranked, err := r.fallback.Rank(ctx, sector, emission, region)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalUnexpected, "failed to rank strategies", err)
	}
	return ranked, nil
}
