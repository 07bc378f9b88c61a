package handlers

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"carbmine/internal/core"
	"carbmine/internal/types"
)

// TrainingQueue enqueues model retraining jobs.
type TrainingQueue interface {
	Enqueue(ctx context.Context, datasetPath, reason string) (*types.TrainingJob, error)
}

// RetrainRequest is the optional /v1/model/retrain payload. Empty fields fall
// back to the configured dataset.
type RetrainRequest struct {
	DatasetPath string `json:"dataset_path,omitempty"`
	Reason      string `json:"reason,omitempty" validate:"omitempty,max=256"`
}

// ModelHandler exposes estimator maintenance operations.
type ModelHandler struct {
	queue        TrainingQueue
	validator    *core.Validator
	logger       *slog.Logger
	maxBodyBytes int64
}

// NewModelHandler creates a ModelHandler.
func NewModelHandler(q TrainingQueue, val *core.Validator, logger *slog.Logger, maxBodyBytes int64) *ModelHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ModelHandler{queue: q, validator: val, logger: logger, maxBodyBytes: maxBodyBytes}
}

// RegisterRoutes mounts the model routes under /v1/model.
func (h *ModelHandler) RegisterRoutes(r chi.Router) {
	r.Route("/v1/model", func(r chi.Router) {
		r.Post("/retrain", h.HandleRetrain)
	})
}

// HandleRetrain handles POST /v1/model/retrain and answers 202 with the
// queued job. An empty body is allowed.
func (h *ModelHandler) HandleRetrain(w http.ResponseWriter, r *http.Request) {
	var req RetrainRequest
	if err := core.DecodeJSONLimit(w, r, &req, h.maxBodyBytes); err != nil && !isEmptyBody(err) {
		core.Error(w, r, err)
		return
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		core.Error(w, r, err)
		return
	}

	job, err := h.queue.Enqueue(r.Context(), req.DatasetPath, req.Reason)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	h.logger.InfoContext(r.Context(), "retraining requested",
		"job_id", job.JobID,
		"dataset", job.DatasetPath,
	)
	core.JSON(w, r, http.StatusAccepted, job)
}

func isEmptyBody(err error) bool {
	return errors.Is(err, io.EOF)
}
