package redeem

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/wisbric/pixelgate/internal/audit"
	"github.com/wisbric/pixelgate/internal/auth"
	"github.com/wisbric/pixelgate/internal/httpserver"
)

// Handler provides HTTP handlers for redemption and code administration.
type Handler struct {
	service *Service
	logger  *slog.Logger
	audit   *audit.Writer
}

// NewHandler creates a redeem Handler.
func NewHandler(service *Service, logger *slog.Logger, auditWriter *audit.Writer) *Handler {
	return &Handler{service: service, logger: logger, audit: auditWriter}
}

// RedeemRoutes returns a chi.Router for POST /api/redeem.
func (h *Handler) RedeemRoutes() chi.Router {
	r := chi.NewRouter()
	r.Use(auth.RequireAuth)
	r.Post("/", h.handleRedeem)
	return r
}

// CodeRoutes returns a chi.Router for /api/codes (admin-only).
func (h *Handler) CodeRoutes() chi.Router {
	r := chi.NewRouter()
	r.Use(auth.RequireRole(auth.RoleAdmin))
	r.Get("/", h.handleList)
	r.Post("/", h.handleGenerate)
	return r
}

func (h *Handler) handleRedeem(w http.ResponseWriter, r *http.Request) {
	var req RedeemRequest
	if !httpserver.DecodeAndValidate(w, r, &req) {
		return
	}

	id := auth.FromContext(r.Context())

	quota, err := h.service.Redeem(r.Context(), req.Code, id.ID, id.Username)
	if err != nil {
		if errors.Is(err, ErrInvalidCode) {
			httpserver.RespondError(w, http.StatusBadRequest, "bad_request", "兑换码无效或已使用")
			return
		}
		h.logger.Error("redeeming code", "error", err, "user_id", id.ID)
		httpserver.RespondError(w, http.StatusInternalServerError, "internal_error", "failed to redeem code")
		return
	}

	if h.audit != nil {
		detail, _ := json.Marshal(map[string]any{"code": req.Code, "quota": quota})
		h.audit.LogFromRequest(r, "redeem_code", detail)
	}

	httpserver.Respond(w, http.StatusOK, RedeemResponse{Success: true, Quota: quota})
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	items, err := h.service.List(r.Context())
	if err != nil {
		h.logger.Error("listing redeem codes", "error", err)
		httpserver.RespondError(w, http.StatusInternalServerError, "internal_error", "failed to list codes")
		return
	}

	httpserver.Respond(w, http.StatusOK, map[string]any{"codes": items})
}

func (h *Handler) handleGenerate(w http.ResponseWriter, r *http.Request) {
	var req GenerateRequest
	if !httpserver.DecodeAndValidate(w, r, &req) {
		return
	}

	items, err := h.service.Generate(r.Context(), req.Count, req.Quota)
	if err != nil {
		h.logger.Error("generating redeem codes", "error", err)
		httpserver.RespondError(w, http.StatusInternalServerError, "internal_error", "failed to generate codes")
		return
	}

	if h.audit != nil {
		detail, _ := json.Marshal(map[string]any{"count": req.Count, "quota": req.Quota})
		h.audit.LogFromRequest(r, "admin_codes_generate", detail)
	}

	httpserver.Respond(w, http.StatusCreated, map[string]any{"success": true, "codes": items})
}
