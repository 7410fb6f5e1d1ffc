package imaging

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestNormalize_DataURLString(t *testing.T) {
	f := NewFetcher(nil, nil, false, 0)
	raw := json.RawMessage(`"data:image/png;base64,aGVsbG8="`)

	img, err := f.Normalize(context.Background(), raw)
	if err != nil {
		t.Fatalf("Normalize() error: %v", err)
	}
	if img.MimeType != "image/png" || string(img.Bytes) != "hello" {
		t.Errorf("Normalize() = %+v, want image/png hello", img)
	}
}

func TestNormalize_InlineDataObject(t *testing.T) {
	f := NewFetcher(nil, nil, false, 0)
	raw := json.RawMessage(`{"data":"aGVsbG8=","mimeType":"image/webp"}`)

	img, err := f.Normalize(context.Background(), raw)
	if err != nil {
		t.Fatalf("Normalize() error: %v", err)
	}
	if img.MimeType != "image/webp" || string(img.Bytes) != "hello" {
		t.Errorf("Normalize() = %+v, want image/webp hello", img)
	}
}

func TestNormalize_RemoteURLObject(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/jpeg; charset=binary")
		_, _ = w.Write([]byte("jpegbytes"))
	}))
	defer srv.Close()

	f := NewFetcher(srv.Client(), nil, true, 0)
	raw, _ := json.Marshal(map[string]string{"url": srv.URL})

	img, err := f.Normalize(context.Background(), raw)
	if err != nil {
		t.Fatalf("Normalize() error: %v", err)
	}
	if img.MimeType != "image/jpeg" {
		t.Errorf("MimeType = %q, want image/jpeg", img.MimeType)
	}
	if string(img.Bytes) != "jpegbytes" {
		t.Errorf("Bytes = %q, want jpegbytes", img.Bytes)
	}
}

func TestNormalize_RemoteURLString(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("raw"))
	}))
	defer srv.Close()

	f := NewFetcher(srv.Client(), nil, true, 0)
	raw, _ := json.Marshal(srv.URL)

	img, err := f.Normalize(context.Background(), raw)
	if err != nil {
		t.Fatalf("Normalize() error: %v", err)
	}
	if string(img.Bytes) != "raw" {
		t.Errorf("Bytes = %q, want raw", img.Bytes)
	}
}

func TestFetch_HostNotAllowed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer srv.Close()

	f := NewFetcher(srv.Client(), []string{"cdn.example.com"}, true, 0)
	raw, _ := json.Marshal(srv.URL)

	_, err := f.Normalize(context.Background(), raw)
	if !errors.Is(err, ErrHostNotAllowed) {
		t.Errorf("Normalize() error = %v, want ErrHostNotAllowed", err)
	}
}

func TestFetch_HTTPNotAllowed(t *testing.T) {
	f := NewFetcher(nil, nil, false, 0)
	raw, _ := json.Marshal("http://example.com/x.png")

	_, err := f.Normalize(context.Background(), raw)
	if !errors.Is(err, ErrSchemeNotAllowed) {
		t.Errorf("Normalize() error = %v, want ErrSchemeNotAllowed", err)
	}
}

func TestFetch_TooLarge(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(make([]byte, 100))
	}))
	defer srv.Close()

	f := NewFetcher(srv.Client(), nil, true, 10)
	raw, _ := json.Marshal(srv.URL)

	_, err := f.Normalize(context.Background(), raw)
	if !errors.Is(err, ErrTooLarge) {
		t.Errorf("Normalize() error = %v, want ErrTooLarge", err)
	}
}

func TestNormalize_UnrecognizedShape(t *testing.T) {
	f := NewFetcher(nil, nil, false, 0)
	raw := json.RawMessage(`42`)

	if _, err := f.Normalize(context.Background(), raw); err == nil {
		t.Error("Normalize() = nil error, want failure for non-string non-object input")
	}
}

func TestHostAllowed_EmptyListAllowsAll(t *testing.T) {
	f := NewFetcher(nil, nil, false, 0)
	if !f.hostAllowed("anything.example.com") {
		t.Error("hostAllowed() = false with empty allow-list, want true")
	}
}
