package task

import (
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/wisbric/pixelgate/pkg/imaging"
	"github.com/wisbric/pixelgate/pkg/objectstore"
)

func testService() *Service {
	fetcher := imaging.NewFetcher(nil, nil, false, 0)
	objects := objectstore.NewClient(nil, "https://api.example.com", "key", "app", "bucket")
	return NewService(NewStore(nil), fetcher, nil, objects, "", "", 0, slog.Default())
}

func TestNewService_Defaults(t *testing.T) {
	s := testService()
	if s.keyPrefix != "gemini/" {
		t.Errorf("keyPrefix = %q, want gemini/", s.keyPrefix)
	}
	if s.maxImages != 1 {
		t.Errorf("maxImages = %d, want 1", s.maxImages)
	}
}

func TestNormalizeReferenceImages_CapsAtTwo(t *testing.T) {
	s := testService()
	raw := []json.RawMessage{
		json.RawMessage(`"data:image/png;base64,AA=="`),
		json.RawMessage(`"data:image/png;base64,AA=="`),
		json.RawMessage(`"data:image/png;base64,AA=="`),
	}

	images, err := s.normalizeReferenceImages(context.Background(), raw)
	if err != nil {
		t.Fatalf("normalizeReferenceImages() error: %v", err)
	}
	if len(images) != 2 {
		t.Errorf("images = %d, want 2 (entries beyond 2 dropped)", len(images))
	}
}

func TestNormalizeReferenceImages_PropagatesFailure(t *testing.T) {
	s := testService()
	raw := []json.RawMessage{json.RawMessage(`"http://evil.example/x.png"`)}

	// AllowHTTP is false on this fetcher; a plain http URL must fail.
	if _, err := s.normalizeReferenceImages(context.Background(), raw); err == nil {
		t.Error("normalizeReferenceImages() = nil error, want scheme rejection")
	}
}

func TestNormalizeReferenceImages_Empty(t *testing.T) {
	s := testService()
	images, err := s.normalizeReferenceImages(context.Background(), nil)
	if err != nil {
		t.Fatalf("normalizeReferenceImages() error: %v", err)
	}
	if len(images) != 0 {
		t.Errorf("images = %d, want 0", len(images))
	}
}
