package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestMiddleware_NoHeader(t *testing.T) {
	tm, _ := NewTokenManager("a-test-secret-that-is-at-least-32-bytes-long", time.Hour)
	mw := Middleware(tm)

	var gotIdentity *Identity
	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotIdentity = FromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, r)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if gotIdentity != nil {
		t.Errorf("expected nil identity for unauthenticated request, got %+v", gotIdentity)
	}
}

func TestMiddleware_ValidBearer(t *testing.T) {
	tm, _ := NewTokenManager("a-test-secret-that-is-at-least-32-bytes-long", time.Hour)
	mw := Middleware(tm)

	token, err := tm.Issue(&Identity{ID: 5, Username: "carol", Role: RoleUser})
	if err != nil {
		t.Fatalf("Issue() error: %v", err)
	}

	var gotIdentity *Identity
	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotIdentity = FromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, r)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if gotIdentity == nil {
		t.Fatal("expected identity in context")
	}
	if gotIdentity.Username != "carol" {
		t.Errorf("Username = %q, want %q", gotIdentity.Username, "carol")
	}
}

func TestMiddleware_InvalidBearer(t *testing.T) {
	tm, _ := NewTokenManager("a-test-secret-that-is-at-least-32-bytes-long", time.Hour)
	mw := Middleware(tm)

	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("Authorization", "Bearer not-a-real-token")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, r)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", w.Code, http.StatusUnauthorized)
	}
}
