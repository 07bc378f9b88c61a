// Package handlers maps HTTP requests onto the CarbMine services.
//
// Each handler owns a RegisterRoutes method that core.Server mounts through
// its RouteRegistrars. Request payloads are decoded with core.DecodeJSON and
// validated with core.Validator before the domain call.
package handlers

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"carbmine/internal/core"
	"carbmine/internal/emissions"
	"carbmine/internal/types"
)

// EstimateRequest is the /estimate_emissions payload.
type EstimateRequest struct {
	Year                      int      `json:"year" validate:"required,year"`
	CoalProductionTons        *float64 `json:"coal_production_tons" validate:"required,gte=0"`
	EnergyConsumptionMWh      *float64 `json:"energy_consumption_mwh" validate:"required,gte=0"`
	EmissionFactorKgCO2PerTon *float64 `json:"emission_factor_kgco2_perton" validate:"required,gte=0"`
	MethaneEmissionsTons      float64  `json:"methane_emissions_tons" validate:"gte=0"`
	OtherGHGEmissionsTons     float64  `json:"other_ghg_emissions_tons" validate:"gte=0"`
	Region                    *string  `json:"region,omitempty"`
}

// EstimateResponse is the /estimate_emissions result.
type EstimateResponse struct {
	Year                         int     `json:"year"`
	EstimatedTotalEmissionsTCO2e float64 `json:"estimated_total_emissions_tco2e"`
}

// IndianEstimateRequest is the /estimate_indian payload. The emission factor
// comes from the region.
type IndianEstimateRequest struct {
	Year                  int      `json:"year" validate:"required,year"`
	CoalProductionTons    *float64 `json:"coal_production_tons" validate:"required,gte=0"`
	EnergyConsumptionMWh  *float64 `json:"energy_consumption_mwh" validate:"required,gte=0"`
	MethaneEmissionsTons  float64  `json:"methane_emissions_tons" validate:"gte=0"`
	OtherGHGEmissionsTons float64  `json:"other_ghg_emissions_tons" validate:"gte=0"`
	Region                string   `json:"region" validate:"required"`
}

// EstimateHandler serves the stateless emission calculators and the Indian
// reference data.
type EstimateHandler struct {
	validator    *core.Validator
	logger       *slog.Logger
	maxBodyBytes int64
}

// NewEstimateHandler creates an EstimateHandler.
func NewEstimateHandler(val *core.Validator, logger *slog.Logger, maxBodyBytes int64) *EstimateHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &EstimateHandler{validator: val, logger: logger, maxBodyBytes: maxBodyBytes}
}

// RegisterRoutes mounts the estimate, reference and legacy calculator routes.
func (h *EstimateHandler) RegisterRoutes(r chi.Router) {
	r.Post("/estimate_emissions", h.HandleEstimate)
	r.Post("/estimate_indian", h.HandleEstimateIndian)
	r.Get("/indian_regions", h.HandleRegions)
	r.Get("/indian_policy_framework", h.HandlePolicyFramework)
	r.Post("/calculate", h.HandleCalculate)
	r.Post("/neutralise", h.HandleNeutralise)
}

// HandleEstimate handles POST /estimate_emissions.
func (h *EstimateHandler) HandleEstimate(w http.ResponseWriter, r *http.Request) {
	var req EstimateRequest
	if err := core.DecodeJSONLimit(w, r, &req, h.maxBodyBytes); err != nil {
		core.Error(w, r, err)
		return
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		core.Error(w, r, err)
		return
	}

	total := emissions.EstimateIPCC(emissions.Input{
		CoalProductionTons:        *req.CoalProductionTons,
		EnergyConsumptionMWh:      *req.EnergyConsumptionMWh,
		EmissionFactorKgCO2PerTon: *req.EmissionFactorKgCO2PerTon,
		MethaneEmissionsTons:      req.MethaneEmissionsTons,
		OtherGHGEmissionsTons:     req.OtherGHGEmissionsTons,
	})

	core.JSON(w, r, http.StatusOK, EstimateResponse{
		Year:                         req.Year,
		EstimatedTotalEmissionsTCO2e: total,
	})
}

// HandleEstimateIndian handles POST /estimate_indian. Unknown regions use
// the default factor.
func (h *EstimateHandler) HandleEstimateIndian(w http.ResponseWriter, r *http.Request) {
	var req IndianEstimateRequest
	if err := core.DecodeJSONLimit(w, r, &req, h.maxBodyBytes); err != nil {
		core.Error(w, r, err)
		return
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		core.Error(w, r, err)
		return
	}
	if strings.TrimSpace(req.Region) == "" {
		core.Error(w, r, types.NewAppErrorWithDetails(
			types.ErrCodeValidationInvalidRegion,
			"region must not be blank",
			nil,
			map[string]any{"field": "region"},
		))
		return
	}
	if !emissions.KnownRegion(req.Region) {
		h.logger.InfoContext(r.Context(), "unknown region, using default factor", "region", req.Region)
	}

	est := emissions.EstimateIndian(req.Year, req.Region, emissions.Input{
		CoalProductionTons:    *req.CoalProductionTons,
		EnergyConsumptionMWh:  *req.EnergyConsumptionMWh,
		MethaneEmissionsTons:  req.MethaneEmissionsTons,
		OtherGHGEmissionsTons: req.OtherGHGEmissionsTons,
	})
	core.JSON(w, r, http.StatusOK, est)
}

// HandleRegions handles GET /indian_regions.
func (h *EstimateHandler) HandleRegions(w http.ResponseWriter, r *http.Request) {
	core.JSON(w, r, http.StatusOK, emissions.Regions())
}

// HandlePolicyFramework handles GET /indian_policy_framework.
func (h *EstimateHandler) HandlePolicyFramework(w http.ResponseWriter, r *http.Request) {
	core.JSON(w, r, http.StatusOK, emissions.PolicyFramework())
}

// HandleCalculate handles POST /calculate.
func (h *EstimateHandler) HandleCalculate(w http.ResponseWriter, r *http.Request) {
	var in emissions.CalculateInput
	if err := core.DecodeJSONLenient(w, r, &in, h.maxBodyBytes); err != nil {
		core.Error(w, r, err)
		return
	}
	core.JSON(w, r, http.StatusOK, emissions.Calculate(in))
}

// HandleNeutralise handles POST /neutralise.
func (h *EstimateHandler) HandleNeutralise(w http.ResponseWriter, r *http.Request) {
	var in emissions.NeutraliseInput
	if err := core.DecodeJSONLenient(w, r, &in, h.maxBodyBytes); err != nil {
		core.Error(w, r, err)
		return
	}
	core.JSON(w, r, http.StatusOK, emissions.Neutralise(in))
}
