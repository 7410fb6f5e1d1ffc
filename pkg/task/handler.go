package task

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/wisbric/pixelgate/internal/auth"
	"github.com/wisbric/pixelgate/internal/httpserver"
)

// Handler provides the HTTP handlers for the generation plane.
type Handler struct {
	service *Service
	logger  *slog.Logger
}

// NewHandler creates a generation-plane Handler.
func NewHandler(service *Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Routes returns a chi.Router with the generation plane's routes mounted:
// POST /generate requires a bearer token per SPEC_FULL.md §4 resolution #1;
// GET /task/:id is public, matching spec.md §6.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.With(auth.RequireAuth).Post("/generate", h.handleGenerate)
	r.Get("/task/{id}", h.handleGetTask)
	return r
}

func (h *Handler) handleGenerate(w http.ResponseWriter, r *http.Request) {
	var req CreateRequest
	if !httpserver.DecodeAndValidate(w, r, &req) {
		return
	}

	t, err := h.service.Submit(r.Context(), req)
	if err != nil {
		h.logger.Error("submitting generation task", "error", err)
		httpserver.RespondError(w, http.StatusInternalServerError, "internal_error", "failed to submit generation task")
		return
	}

	httpserver.Respond(w, http.StatusAccepted, AcceptedResponse{
		TaskID:   t.TaskID,
		Status:   t.Status,
		Progress: t.Progress,
	})
}

func (h *Handler) handleGetTask(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	t, err := h.service.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			httpserver.RespondError(w, http.StatusNotFound, "not_found", "task not found")
			return
		}
		h.logger.Error("getting task", "error", err, "task_id", id)
		httpserver.RespondError(w, http.StatusInternalServerError, "internal_error", "failed to get task")
		return
	}

	httpserver.Respond(w, http.StatusOK, t)
}
