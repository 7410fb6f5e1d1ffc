package redeem

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
	return NewHandler(svc, nil, nil)
}

func TestRedeemRoutes_RequireAuth(t *testing.T) {
	h := testHandler()
	router := chi.NewRouter()
	router.Mount("/redeem", h.RedeemRoutes())

	r := httptest.NewRequest(http.MethodPost, "/redeem/", strings.NewReader(`{"code":"ABCD-EFGH-JKLM-NPQR"}`))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, r)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", w.Code, http.StatusUnauthorized)
	}
}

func TestHandleRedeem_Validation(t *testing.T) {
	h := testHandler()
	router := chi.NewRouter()
	router.Mount("/redeem", h.RedeemRoutes())

	r := httptest.NewRequest(http.MethodPost, "/redeem/", strings.NewReader(`{}`))
	ctx := auth.NewContext(r.Context(), &auth.Identity{ID: 1, Username: "bob", Role: auth.RoleUser})
	r = r.WithContext(ctx)
	r.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, r)

	if w.Code != http.StatusUnprocessableEntity {
		t.Errorf("status = %d, want %d; body = %s", w.Code, http.StatusUnprocessableEntity, w.Body.String())
	}
}

func TestCodeRoutes_RequireAdmin(t *testing.T) {
	h := testHandler()
	router := chi.NewRouter()
	router.Mount("/codes", h.CodeRoutes())

	r := httptest.NewRequest(http.MethodGet, "/codes/", nil)
	ctx := auth.NewContext(r.Context(), &auth.Identity{ID: 1, Username: "bob", Role: auth.RoleUser})
	r = r.WithContext(ctx)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, r)

	if w.Code != http.StatusForbidden {
		t.Errorf("status = %d, want %d", w.Code, http.StatusForbidden)
	}
}

func TestHandleGenerate_Validation(t *testing.T) {
	h := testHandler()
	router := chi.NewRouter()
	router.Mount("/codes", h.CodeRoutes())

	adminCtx := func(r *http.Request) *http.Request {
		return r.WithContext(auth.NewContext(r.Context(), &auth.Identity{ID: 1, Username: "admin", Role: auth.RoleAdmin}))
	}

	tests := []struct {
		name       string
		body       string
		wantStatus int
	}{
		{"missing fields", `{}`, http.StatusUnprocessableEntity},
		{"zero count", `{"count":0,"quota":10}`, http.StatusUnprocessableEntity},
		{"too many", `{"count":5000,"quota":10}`, http.StatusUnprocessableEntity},
		{"zero quota", `{"count":5,"quota":0}`, http.StatusUnprocessableEntity},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodPost, "/codes/", strings.NewReader(tt.body))
			r.Header.Set("Content-Type", "application/json")
			r = adminCtx(r)
			w := httptest.NewRecorder()

			router.ServeHTTP(w, r)

			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d; body = %s", w.Code, tt.wantStatus, w.Body.String())
			}
		})
	}
}
