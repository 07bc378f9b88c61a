package handlers

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"carbmine/internal/core"
	"carbmine/internal/forecasts"
	"carbmine/internal/report"
	"carbmine/internal/types"
)

// ForecastService is the subset of forecasts.Service the handler needs.
type ForecastService interface {
	Predict(ctx context.Context, req forecasts.PredictRequest) (*forecasts.PredictResponse, error)
	PredictScenarios(ctx context.Context, reqs []forecasts.PredictRequest) ([]forecasts.ScenarioResult, error)
	GetRun(ctx context.Context, id string) (*types.ForecastRun, error)
	ListRuns(ctx context.Context, limit int) (*types.ListResponse[*types.ForecastRun], error)
}

// ScenariosRequest is the /predict_scenarios payload.
type ScenariosRequest struct {
	Scenarios []forecasts.PredictRequest `json:"scenarios"`
}

// ScenariosResponse is the /predict_scenarios result.
type ScenariosResponse struct {
	Results []forecasts.ScenarioResult `json:"results"`
}

// ForecastHandler serves trajectory forecasts, persisted runs and their
// exports.
type ForecastHandler struct {
	service      ForecastService
	history      types.HistorySource
	logger       *slog.Logger
	maxBodyBytes int64
}

// NewForecastHandler creates a ForecastHandler. history feeds the observed
// series of the exports and may be nil.
func NewForecastHandler(svc ForecastService, history types.HistorySource, logger *slog.Logger, maxBodyBytes int64) *ForecastHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ForecastHandler{
		service:      svc,
		history:      history,
		logger:       logger,
		maxBodyBytes: maxBodyBytes,
	}
}

// RegisterRoutes mounts the forecast routes.
func (h *ForecastHandler) RegisterRoutes(r chi.Router) {
	r.Post("/predict_emissions", h.HandlePredict)
	r.Post("/predict_scenarios", h.HandlePredictScenarios)
	r.Get("/forecast_runs", h.HandleListRuns)
	r.Get("/forecast_runs/{id}", h.HandleGetRun)
	r.Get("/forecast_runs/{id}/export.xlsx", h.HandleExportXLSX)
	r.Get("/forecast_runs/{id}/chart.png", h.HandleChart)
}

// HandlePredict handles POST /predict_emissions. The service validates the
// request, so scenarios and single requests share the same rules.
func (h *ForecastHandler) HandlePredict(w http.ResponseWriter, r *http.Request) {
	var req forecasts.PredictRequest
	if err := core.DecodeJSONLimit(w, r, &req, h.maxBodyBytes); err != nil {
		core.Error(w, r, err)
		return
	}

	resp, err := h.service.Predict(r.Context(), req)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	core.JSON(w, r, http.StatusOK, resp)
}

// HandlePredictScenarios handles POST /predict_scenarios. Per-scenario
// failures are reported inside the results; the request itself succeeds.
func (h *ForecastHandler) HandlePredictScenarios(w http.ResponseWriter, r *http.Request) {
	var req ScenariosRequest
	if err := core.DecodeJSONLimit(w, r, &req, h.maxBodyBytes); err != nil {
		core.Error(w, r, err)
		return
	}
	if len(req.Scenarios) == 0 {
		core.Error(w, r, types.NewAppErrorWithDetails(
			types.ErrCodeValidationMissingField,
			"scenarios must not be empty",
			nil,
			map[string]any{"field": "scenarios"},
		))
		return
	}

	results, err := h.service.PredictScenarios(r.Context(), req.Scenarios)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	core.JSON(w, r, http.StatusOK, ScenariosResponse{Results: results})
}

// HandleListRuns handles GET /forecast_runs?limit=N.
func (h *ForecastHandler) HandleListRuns(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			core.Error(w, r, types.NewAppErrorWithDetails(
				types.ErrCodeValidationInvalidField,
				"limit must be a non-negative integer",
				nil,
				map[string]any{"field": "limit"},
			))
			return
		}
		limit = n
	}

	resp, err := h.service.ListRuns(r.Context(), limit)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	core.JSON(w, r, http.StatusOK, resp)
}

// HandleGetRun handles GET /forecast_runs/{id}.
func (h *ForecastHandler) HandleGetRun(w http.ResponseWriter, r *http.Request) {
	run, err := h.service.GetRun(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		core.Error(w, r, err)
		return
	}
	core.JSON(w, r, http.StatusOK, run)
}

// HandleExportXLSX handles GET /forecast_runs/{id}/export.xlsx.
func (h *ForecastHandler) HandleExportXLSX(w http.ResponseWriter, r *http.Request) {
	run, records, err := h.loadExport(r)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	var buf bytes.Buffer
	if err := report.WriteXLSX(&buf, exportForecast(run), records); err != nil {
		core.Error(w, r, types.NewAppError(types.ErrCodeInternalUnexpected, "failed to render workbook", err))
		return
	}
	core.Attachment(w, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
		fmt.Sprintf("forecast-%s.xlsx", run.ID), buf.Bytes())
}

// HandleChart handles GET /forecast_runs/{id}/chart.png.
func (h *ForecastHandler) HandleChart(w http.ResponseWriter, r *http.Request) {
	run, records, err := h.loadExport(r)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	var buf bytes.Buffer
	title := fmt.Sprintf("Coal mining emissions %d-%d (%s)", run.StartYear, run.EndYear, run.Method)
	if err := report.WriteChart(&buf, title, exportForecast(run), records); err != nil {
		core.Error(w, r, types.NewAppError(types.ErrCodeInternalUnexpected, "failed to render chart", err))
		return
	}
	core.Attachment(w, "image/png", fmt.Sprintf("forecast-%s.png", run.ID), buf.Bytes())
}

// loadExport fetches the run and, best effort, the observed history.
func (h *ForecastHandler) loadExport(r *http.Request) (*types.ForecastRun, []types.HistoricalRecord, error) {
	run, err := h.service.GetRun(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		return nil, nil, err
	}
	if h.history == nil {
		return run, nil, nil
	}

	records, err := h.history.Load(r.Context())
	if err != nil {
		h.logger.WarnContext(r.Context(), "history unavailable for export", "error", err)
		return run, nil, nil
	}
	return run, records, nil
}

func exportForecast(run *types.ForecastRun) report.Forecast {
	return report.Forecast{
		Predictions: run.Predictions,
		Method:      run.Method,
		RunID:       run.ID,
	}
}
