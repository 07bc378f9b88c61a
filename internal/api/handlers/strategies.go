package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"carbmine/internal/core"
	"carbmine/internal/recommend"
)

// Recommender ranks mitigation strategies.
type Recommender interface {
	Recommend(ctx context.Context, sector string, emission float64, region string) ([]recommend.RankedStrategy, error)
}

// RecommendRequest is the /recommend_strategies payload. Year is accepted
// for client compatibility and does not affect ranking.
type RecommendRequest struct {
	Sector        string   `json:"sector" validate:"required"`
	EmissionValue *float64 `json:"emission_value" validate:"required"`
	Year          int      `json:"year" validate:"required"`
	Region        *string  `json:"region,omitempty"`
}

// StrategyHandler serves strategy recommendations and the static list.
type StrategyHandler struct {
	recommender  Recommender
	validator    *core.Validator
	logger       *slog.Logger
	maxBodyBytes int64
}

// NewStrategyHandler creates a StrategyHandler.
func NewStrategyHandler(rec Recommender, val *core.Validator, logger *slog.Logger, maxBodyBytes int64) *StrategyHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &StrategyHandler{
		recommender:  rec,
		validator:    val,
		logger:       logger,
		maxBodyBytes: maxBodyBytes,
	}
}

// RegisterRoutes mounts the strategy routes.
func (h *StrategyHandler) RegisterRoutes(r chi.Router) {
	r.Post("/recommend_strategies", h.HandleRecommend)
	r.Get("/get_strategies", h.HandleList)
}

// HandleRecommend handles POST /recommend_strategies. A negative
// emission_value is rejected by the recommender.
func (h *StrategyHandler) HandleRecommend(w http.ResponseWriter, r *http.Request) {
	var req RecommendRequest
	if err := core.DecodeJSONLimit(w, r, &req, h.maxBodyBytes); err != nil {
		core.Error(w, r, err)
		return
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		core.Error(w, r, err)
		return
	}

	region := ""
	if req.Region != nil {
		region = *req.Region
	}

	ranked, err := h.recommender.Recommend(r.Context(), req.Sector, *req.EmissionValue, region)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	if ranked == nil {
		ranked = []recommend.RankedStrategy{}
	}
	core.JSON(w, r, http.StatusOK, ranked)
}

// HandleList handles GET /get_strategies.
func (h *StrategyHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	core.JSON(w, r, http.StatusOK, recommend.StaticStrategies())
}
