package user

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5"

	"github.com/wisbric/pixelgate/internal/audit"
	"github.com/wisbric/pixelgate/internal/auth"
	"github.com/wisbric/pixelgate/internal/httpserver"
)

// Handler provides HTTP handlers for authentication, user management, and
// quota accounting.
type Handler struct {
	service     *Service
	logger      *slog.Logger
	audit       *audit.Writer
	rateLimiter *auth.RateLimiter
}

// NewHandler creates a user Handler.
func NewHandler(service *Service, logger *slog.Logger, auditWriter *audit.Writer, rateLimiter *auth.RateLimiter) *Handler {
	return &Handler{service: service, logger: logger, audit: auditWriter, rateLimiter: rateLimiter}
}

// AuthRoutes returns a chi.Router for /api/auth endpoints.
func (h *Handler) AuthRoutes() chi.Router {
	r := chi.NewRouter()
	r.Post("/login", h.handleLogin)
	r.With(auth.RequireAuth).Get("/me", h.handleMe)
	return r
}

// UserRoutes returns a chi.Router for /api/users endpoints (admin-only).
func (h *Handler) UserRoutes() chi.Router {
	r := chi.NewRouter()
	r.Use(auth.RequireRole(auth.RoleAdmin))
	r.Get("/", h.handleList)
	r.Post("/", h.handleCreate)
	r.Route("/{id}", func(r chi.Router) {
		r.Put("/", h.handleUpdate)
		r.Delete("/", h.handleDelete)
	})
	return r
}

// QuotaRoutes returns a chi.Router for /api/quota endpoints.
func (h *Handler) QuotaRoutes() chi.Router {
	r := chi.NewRouter()
	r.Use(auth.RequireAuth)
	r.Get("/", h.handleGetQuota)
	r.Put("/consume", h.handleConsumeQuota)
	return r
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !httpserver.DecodeAndValidate(w, r, &req) {
		return
	}

	ip := clientIP(r)

	if h.rateLimiter != nil {
		result, err := h.rateLimiter.Check(r.Context(), ip)
		if err != nil {
			h.logger.Error("login rate limit check failed", "error", err)
		} else if !result.Allowed {
			retryAfter := int(time.Until(result.RetryAt).Seconds())
			if retryAfter < 1 {
				retryAfter = 1
			}
			w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
			httpserver.RespondError(w, http.StatusTooManyRequests, "rate_limited", "too many login attempts")
			return
		}
	}

	resp, err := h.service.Login(r.Context(), req)
	if err != nil {
		if h.rateLimiter != nil {
			_ = h.rateLimiter.Record(r.Context(), ip)
		}
		if errors.Is(err, ErrInvalidCredentials) {
			httpserver.RespondError(w, http.StatusUnauthorized, "unauthorized", "用户名或密码错误")
			return
		}
		h.logger.Error("login", "error", err)
		httpserver.RespondError(w, http.StatusInternalServerError, "internal_error", "failed to log in")
		return
	}

	if h.rateLimiter != nil {
		_ = h.rateLimiter.Reset(r.Context(), ip)
	}

	if h.audit != nil {
		detail, _ := json.Marshal(map[string]string{"username": req.Username})
		h.audit.LogFromRequest(r, "login", detail)
	}

	httpserver.Respond(w, http.StatusOK, resp)
}

func (h *Handler) handleMe(w http.ResponseWriter, r *http.Request) {
	id := auth.FromContext(r.Context())

	resp, err := h.service.Get(r.Context(), id.ID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			httpserver.RespondError(w, http.StatusNotFound, "not_found", "user not found")
			return
		}
		h.logger.Error("getting current user", "error", err)
		httpserver.RespondError(w, http.StatusInternalServerError, "internal_error", "failed to get user")
		return
	}

	httpserver.Respond(w, http.StatusOK, map[string]any{"user": resp})
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	items, err := h.service.List(r.Context())
	if err != nil {
		h.logger.Error("listing users", "error", err)
		httpserver.RespondError(w, http.StatusInternalServerError, "internal_error", "failed to list users")
		return
	}

	httpserver.Respond(w, http.StatusOK, map[string]any{"users": items})
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req CreateRequest
	if !httpserver.DecodeAndValidate(w, r, &req) {
		return
	}

	resp, err := h.service.Create(r.Context(), req)
	if err != nil {
		if errors.Is(err, ErrDuplicateUsername) {
			httpserver.RespondError(w, http.StatusConflict, "conflict", "username already exists")
			return
		}
		h.logger.Error("creating user", "error", err)
		httpserver.RespondError(w, http.StatusInternalServerError, "internal_error", "failed to create user")
		return
	}

	if h.audit != nil {
		detail, _ := json.Marshal(map[string]string{"username": resp.Username})
		h.audit.LogFromRequest(r, "admin_user_create", detail)
	}

	httpserver.Respond(w, http.StatusCreated, map[string]any{"success": true, "id": resp.ID})
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpserver.RespondError(w, http.StatusBadRequest, "bad_request", "invalid user id")
		return
	}

	var req UpdateRequest
	if !httpserver.DecodeAndValidate(w, r, &req) {
		return
	}

	_, err = h.service.Update(r.Context(), id, req)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			httpserver.RespondError(w, http.StatusNotFound, "not_found", "user not found")
			return
		}
		h.logger.Error("updating user", "error", err, "id", id)
		httpserver.RespondError(w, http.StatusInternalServerError, "internal_error", "failed to update user")
		return
	}

	if h.audit != nil {
		detail, _ := json.Marshal(map[string]int64{"id": id})
		h.audit.LogFromRequest(r, "admin_user_update", detail)
	}

	httpserver.Respond(w, http.StatusOK, map[string]any{"success": true})
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpserver.RespondError(w, http.StatusBadRequest, "bad_request", "invalid user id")
		return
	}

	if err := h.service.Delete(r.Context(), id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			httpserver.RespondError(w, http.StatusNotFound, "not_found", "user not found")
			return
		}
		h.logger.Error("deleting user", "error", err, "id", id)
		httpserver.RespondError(w, http.StatusInternalServerError, "internal_error", "failed to delete user")
		return
	}

	if h.audit != nil {
		detail, _ := json.Marshal(map[string]int64{"id": id})
		h.audit.LogFromRequest(r, "admin_user_delete", detail)
	}

	httpserver.Respond(w, http.StatusOK, map[string]any{"success": true})
}

func (h *Handler) handleGetQuota(w http.ResponseWriter, r *http.Request) {
	id := auth.FromContext(r.Context())

	resp, err := h.service.Quota(r.Context(), id.ID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			httpserver.RespondError(w, http.StatusNotFound, "not_found", "user not found")
			return
		}
		h.logger.Error("getting quota", "error", err)
		httpserver.RespondError(w, http.StatusInternalServerError, "internal_error", "failed to get quota")
		return
	}

	httpserver.Respond(w, http.StatusOK, resp)
}

func (h *Handler) handleConsumeQuota(w http.ResponseWriter, r *http.Request) {
	id := auth.FromContext(r.Context())

	var req ConsumeRequest
	if !httpserver.DecodeAndValidate(w, r, &req) {
		return
	}

	count := resolveConsumeCount(req)

	resp, err := h.service.ConsumeQuota(r.Context(), id.ID, count)
	if err != nil {
		if errors.Is(err, ErrInsufficientQuota) {
			httpserver.RespondError(w, http.StatusBadRequest, "bad_request", "配额不足")
			return
		}
		h.logger.Error("consuming quota", "error", err, "user_id", id.ID)
		httpserver.RespondError(w, http.StatusInternalServerError, "internal_error", "failed to consume quota")
		return
	}

	if h.audit != nil {
		detail, _ := json.Marshal(map[string]int64{"count": count})
		h.audit.LogFromRequest(r, "consume_quota", detail)
	}

	httpserver.Respond(w, http.StatusOK, map[string]any{"success": true, "remaining": resp.Remaining})
}

// resolveConsumeCount defaults an absent count to 1, per spec.md's
// "{count?=1}"; an explicit 0 is preserved as a no-op.
func resolveConsumeCount(req ConsumeRequest) int64 {
	if req.Count == nil {
		return 1
	}
	return *req.Count
}

// clientIP extracts the request's client IP for rate limiting, preferring
// X-Forwarded-For and X-Real-IP over RemoteAddr.
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		return xff
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
