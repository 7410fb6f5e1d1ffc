package httpserver

import (
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/wisbric/pixelgate/internal/auth"
	"github.com/wisbric/pixelgate/internal/config"
)

// TestNewServer_DecodesIdentityAtRoot guards against mounting a protected
// route outside /api without the identity-decode middleware reaching it:
// a root-mounted route using auth.RequireAuth must see a 401 for a bad
// bearer token, not a panic from a missing Identity in context.
func TestNewServer_DecodesIdentityAtRoot(t *testing.T) {
	tokens, err := auth.NewTokenManager("a-test-secret-that-is-at-least-32-bytes-long", time.Hour)
	if err != nil {
		t.Fatalf("NewTokenManager() error = %v", err)
	}

	srv := NewServer(&config.Config{}, slog.Default(), nil, nil, prometheus.NewRegistry(), tokens)

	srv.Router.Group(func(r chi.Router) {
		r.With(auth.RequireAuth).Get("/protected", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		})
	})

	r := httptest.NewRequest(http.MethodGet, "/protected", nil)
	r.Header.Set("Authorization", "Bearer not-a-real-token")
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, r)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", w.Code, http.StatusUnauthorized)
	}
}

// TestNewServer_APIRouterScopedUnderAPI documents that APIRouter is reached
// only via /api, so callers must mount the generation plane on Router
// directly to land its routes at the top level (spec.md §6).
func TestNewServer_APIRouterScopedUnderAPI(t *testing.T) {
	tokens, err := auth.NewTokenManager("a-test-secret-that-is-at-least-32-bytes-long", time.Hour)
	if err != nil {
		t.Fatalf("NewTokenManager() error = %v", err)
	}

	srv := NewServer(&config.Config{}, slog.Default(), nil, nil, prometheus.NewRegistry(), tokens)
	srv.APIRouter.Get("/ping", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	r := httptest.NewRequest(http.MethodGet, "/api/ping", nil)
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, r)
	if w.Code != http.StatusOK {
		t.Errorf("GET /api/ping status = %d, want %d", w.Code, http.StatusOK)
	}

	r2 := httptest.NewRequest(http.MethodGet, "/ping", nil)
	w2 := httptest.NewRecorder()
	srv.ServeHTTP(w2, r2)
	if w2.Code != http.StatusNotFound {
		t.Errorf("GET /ping status = %d, want %d", w2.Code, http.StatusNotFound)
	}
}
