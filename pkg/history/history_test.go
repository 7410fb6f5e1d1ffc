package history

import "testing"

func TestRow_ToResponse_DecodesJSONColumns(t *testing.T) {
	row := Row{
		ID:        1,
		UserID:    2,
		Prompt:    "a red cube",
		ImageURL:  "https://cdn.example.com/i/gemini/2026/01/01/x.png",
		Options:   []byte(`{"aspectRatio":"1:1","imageSize":"1K"}`),
		RefImages: []byte(`["https://cdn.example.com/i/cankaotu/2026/01/01/y.png"]`),
	}

	resp, err := row.ToResponse()
	if err != nil {
		t.Fatalf("ToResponse() error: %v", err)
	}

	if resp.Options.AspectRatio != "1:1" || resp.Options.ImageSize != "1K" {
		t.Errorf("Options = %+v, want {1:1 1K}", resp.Options)
	}
	if len(resp.RefImages) != 1 {
		t.Fatalf("RefImages = %v, want 1 entry", resp.RefImages)
	}
}

func TestRow_ToResponse_EmptyColumns(t *testing.T) {
	row := Row{ID: 1, UserID: 2, Prompt: "p", ImageURL: "https://example.com/x.png"}

	resp, err := row.ToResponse()
	if err != nil {
		t.Fatalf("ToResponse() error: %v", err)
	}
	if resp.Options != (Options{}) {
		t.Errorf("Options = %+v, want zero value", resp.Options)
	}
	if resp.RefImages != nil {
		t.Errorf("RefImages = %v, want nil", resp.RefImages)
	}
}

func TestRow_ToResponse_MalformedJSON(t *testing.T) {
	row := Row{ID: 1, Options: []byte(`{not json`)}

	if _, err := row.ToResponse(); err == nil {
		t.Error("ToResponse() = nil error, want decode failure")
	}
}
