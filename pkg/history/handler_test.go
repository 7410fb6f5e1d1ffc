package history

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/wisbric/pixelgate/internal/auth"
)

func testHandler() *Handler {
	svc := NewService(nil, nil)
	return NewHandler(svc, nil)
}

func TestRoutes_RequireAuth(t *testing.T) {
	h := testHandler()
	router := chi.NewRouter()
	router.Mount("/history", h.Routes())

	tests := []struct {
		method string
		path   string
	}{
		{http.MethodGet, "/history/"},
		{http.MethodPost, "/history/"},
		{http.MethodDelete, "/history/1"},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			r := httptest.NewRequest(tt.method, tt.path, nil)
			w := httptest.NewRecorder()
			router.ServeHTTP(w, r)

			if w.Code != http.StatusUnauthorized {
				t.Errorf("status = %d, want %d", w.Code, http.StatusUnauthorized)
			}
		})
	}
}

func TestHandleCreate_Validation(t *testing.T) {
	h := testHandler()
	router := chi.NewRouter()
	router.Mount("/history", h.Routes())

	authed := func(r *http.Request) *http.Request {
		return r.WithContext(auth.NewContext(r.Context(), &auth.Identity{ID: 1, Username: "bob", Role: auth.RoleUser}))
	}

	tests := []struct {
		name       string
		body       string
		wantStatus int
	}{
		{"missing prompt", `{"image_url":"https://example.com/x.png"}`, http.StatusUnprocessableEntity},
		{"bad image url", `{"prompt":"p","image_url":"not-a-url"}`, http.StatusUnprocessableEntity},
		{"invalid JSON", `{bad}`, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodPost, "/history/", strings.NewReader(tt.body))
			r.Header.Set("Content-Type", "application/json")
			r = authed(r)
			w := httptest.NewRecorder()

			router.ServeHTTP(w, r)

			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d; body = %s", w.Code, tt.wantStatus, w.Body.String())
			}
		})
	}
}

func TestHandleDelete_InvalidID(t *testing.T) {
	h := testHandler()
	router := chi.NewRouter()
	router.Mount("/history", h.Routes())

	r := httptest.NewRequest(http.MethodDelete, "/history/not-a-number", nil)
	ctx := auth.NewContext(r.Context(), &auth.Identity{ID: 1, Username: "bob", Role: auth.RoleUser})
	r = r.WithContext(ctx)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, r)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
}

func TestHandleList_InvalidParams(t *testing.T) {
	h := testHandler()
	router := chi.NewRouter()
	router.Mount("/history", h.Routes())

	r := httptest.NewRequest(http.MethodGet, "/history/?limit=-1", nil)
	ctx := auth.NewContext(r.Context(), &auth.Identity{ID: 1, Username: "bob", Role: auth.RoleUser})
	r = r.WithContext(ctx)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, r)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
}
