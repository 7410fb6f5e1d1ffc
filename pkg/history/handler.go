package history

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5"

	"github.com/wisbric/pixelgate/internal/auth"
	"github.com/wisbric/pixelgate/internal/httpserver"
)

// Handler provides HTTP handlers for the history API.
type Handler struct {
	service *Service
	logger  *slog.Logger
}

// NewHandler creates a history Handler.
func NewHandler(service *Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Routes returns a chi.Router with all history routes mounted.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(auth.RequireAuth)
	r.Get("/", h.handleList)
	r.Post("/", h.handleCreate)
	r.Delete("/{id}", h.handleDelete)
	return r
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	id := auth.FromContext(r.Context())

	params, err := httpserver.ParseOffsetParams(r)
	if err != nil {
		httpserver.RespondError(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}

	page, err := h.service.List(r.Context(), id.ID, params)
	if err != nil {
		h.logger.Error("listing history", "error", err, "user_id", id.ID)
		httpserver.RespondError(w, http.StatusInternalServerError, "internal_error", "failed to list history")
		return
	}

	httpserver.Respond(w, http.StatusOK, map[string]any{"history": page.Items, "total": page.Total, "has_more": page.HasMore})
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req CreateRequest
	if !httpserver.DecodeAndValidate(w, r, &req) {
		return
	}

	id := auth.FromContext(r.Context())

	if _, err := h.service.Create(r.Context(), id.ID, req); err != nil {
		h.logger.Error("creating history record", "error", err, "user_id", id.ID)
		httpserver.RespondError(w, http.StatusInternalServerError, "internal_error", "failed to create history record")
		return
	}

	httpserver.Respond(w, http.StatusCreated, map[string]any{"success": true})
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpserver.RespondError(w, http.StatusBadRequest, "bad_request", "invalid history id")
		return
	}

	owner := auth.FromContext(r.Context())

	if err := h.service.Delete(r.Context(), id, owner.ID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			httpserver.RespondError(w, http.StatusNotFound, "not_found", "history record not found")
			return
		}
		h.logger.Error("deleting history record", "error", err, "id", id)
		httpserver.RespondError(w, http.StatusInternalServerError, "internal_error", "failed to delete history record")
		return
	}

	httpserver.Respond(w, http.StatusOK, map[string]any{"success": true})
}
