package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"google.golang.org/genai"

	"github.com/wisbric/pixelgate/pkg/imaging"
)

// GenerateRequest is the payload posted to the model endpoint. It wraps the
// typed genai request structures directly so the wire format matches the
// real Gemini/Vertex generateContent contract.
type GenerateRequest struct {
	Contents         []genai.Content         `json:"contents"`
	GenerationConfig *genai.GenerationConfig `json:"generationConfig"`
}

// GenerateResponse wraps the model endpoint's typed response envelope.
type GenerateResponse struct {
	genai.GenerateContentResponse
}

// CollectImages gathers every inlineData image across all candidates and
// parts, per spec.md §4.2 stage 4.
func (r *GenerateResponse) CollectImages() []imaging.Image {
	var images []imaging.Image
	for _, c := range r.Candidates {
		if c == nil || c.Content == nil {
			continue
		}
		for _, p := range c.Content.Parts {
			if p == nil || p.InlineData == nil || len(p.InlineData.Data) == 0 {
				continue
			}
			mime := p.InlineData.MIMEType
			if mime == "" {
				mime = "image/png"
			}
			images = append(images, imaging.Image{MimeType: mime, Bytes: p.InlineData.Data})
		}
	}
	return images
}

const primerText = "You are an image generation assistant. Produce exactly one output image encoded as image/png. Respect the requested aspect ratio and size. When reference images are supplied, treat them as distinct visual anchors and do not conflate their roles."

// BuildRequest assembles the model request for a prompt plus up to two
// normalized reference images, per spec.md §4.2 stage 2.
func BuildRequest(prompt, aspectRatio, imageSize string, refImages []imaging.Image) GenerateRequest {
	parts := []*genai.Part{
		genai.NewPartFromText(fmt.Sprintf("%s Aspect ratio: %s. Size: %s.\n\n%s", primerText, aspectRatio, imageSize, prompt)),
	}

	for i, img := range refImages {
		if i >= 2 {
			break
		}
		label := fmt.Sprintf("Reference Image #%d (图%s) below:", i+1, ordinalCN(i+1))
		parts = append(parts, genai.NewPartFromText(label))
		parts = append(parts, genai.NewPartFromBytes(img.Bytes, img.MimeType))
	}

	return GenerateRequest{
		Contents: []genai.Content{{Role: genai.RoleUser, Parts: parts}},
		GenerationConfig: &genai.GenerationConfig{
			ResponseModalities: []genai.Modality{genai.ModalityText, genai.ModalityImage},
			CandidateCount:     1,
		},
	}
}

func ordinalCN(n int) string {
	switch n {
	case 1:
		return "一"
	case 2:
		return "二"
	default:
		return fmt.Sprintf("%d", n)
	}
}

// resolveHost picks the model endpoint host per spec.md §4.2 stage 3.
func resolveHost(endpointMode, location string) string {
	if endpointMode == "global" || location == "global" {
		return "aiplatform.googleapis.com"
	}
	return location + "-aiplatform.googleapis.com"
}

// Client calls the Vertex-like generative-model endpoint, selecting a
// project via round-robin and authenticating via the shared Authenticator.
// It posts the typed genai request/response bodies over a plain net/http
// client rather than genai's own SDK client, since that client targets
// live Vertex/GenAI service-account and API-key auth flows that don't fit
// this gateway's rotating multi-project, shared-credential setup.
type Client struct {
	httpClient   *http.Client
	auth         *Authenticator
	router       *ProjectRouter
	location     string
	model        string
	endpointMode string
}

// NewClient builds a model-call Client.
func NewClient(httpClient *http.Client, auth *Authenticator, router *ProjectRouter, location, model, endpointMode string) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 60 * time.Second}
	}
	return &Client{httpClient: httpClient, auth: auth, router: router, location: location, model: model, endpointMode: endpointMode}
}

// Generate calls the model with the given request and returns the parsed
// response. The project-rotation counter always advances, even on failure.
func (c *Client) Generate(ctx context.Context, req GenerateRequest) (*GenerateResponse, error) {
	project, ok := c.router.Next()
	if !ok {
		return nil, fmt.Errorf("VERTEX_CALL_FAILED: no projects configured")
	}

	token, err := c.auth.AccessToken(ctx)
	if err != nil {
		return nil, err
	}

	host := resolveHost(c.endpointMode, c.location)
	url := fmt.Sprintf("https://%s/v1/projects/%s/locations/%s/publishers/google/models/%s:generateContent",
		host, project, c.location, c.model)

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshalling model request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("building model request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+token)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("VERTEX_CALL_FAILED: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("VERTEX_CALL_FAILED: reading response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("VERTEX_CALL_FAILED: %d %s", resp.StatusCode, truncate(string(respBody), 500))
	}

	out := &GenerateResponse{}
	if err := json.Unmarshal(respBody, out); err != nil {
		return nil, fmt.Errorf("VERTEX_NON_JSON: %w", err)
	}
	return out, nil
}

// Precheck mints an OAuth token and confirms at least one project is
// configured, used by the /__vertexcheck diagnostic endpoint.
func (c *Client) Precheck(ctx context.Context) error {
	if _, ok := c.router.Next(); !ok {
		return fmt.Errorf("VERTEX_PRECHECK_FAILED: no projects configured")
	}
	if _, err := c.auth.AccessToken(ctx); err != nil {
		return fmt.Errorf("VERTEX_PRECHECK_FAILED: %w", err)
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
