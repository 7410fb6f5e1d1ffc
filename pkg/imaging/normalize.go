package imaging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// ErrHostNotAllowed is returned when a reference image URL's host is not on
// the configured allow-list.
var ErrHostNotAllowed = errors.New("REF_IMAGE_HOST_NOT_ALLOWED")

// ErrSchemeNotAllowed is returned when a reference image URL uses plain
// http and ALLOW_REF_IMAGE_HTTP is not set.
var ErrSchemeNotAllowed = errors.New("REF_IMAGE_SCHEME_NOT_ALLOWED")

// ErrTooLarge is returned when a fetched reference image exceeds the
// configured byte cap.
var ErrTooLarge = errors.New("REF_IMAGE_TOO_LARGE")

// variant is the shape of a reference-image entry supplied as a JSON
// object: {uri|url|href} for a remote fetch, or {data, mimeType} for
// inline base64.
type variant struct {
	URI      string `json:"uri"`
	URL      string `json:"url"`
	Href     string `json:"href"`
	Data     string `json:"data"`
	MimeType string `json:"mimeType"`
}

func (v variant) remoteURL() string {
	switch {
	case v.URI != "":
		return v.URI
	case v.URL != "":
		return v.URL
	default:
		return v.Href
	}
}

// Fetcher normalizes the polymorphic reference-image input (a JSON string,
// or an object carrying a remote URL or inline data) into an Image,
// enforcing the host allow-list and size cap for remote fetches.
type Fetcher struct {
	Client       *http.Client
	AllowedHosts []string
	AllowHTTP    bool
	MaxBytes     int64
}

// NewFetcher creates a Fetcher. An empty AllowedHosts list disables host
// filtering, per spec.md §6's "empty disables filtering" rule.
func NewFetcher(client *http.Client, allowedHosts []string, allowHTTP bool, maxBytes int64) *Fetcher {
	if client == nil {
		client = http.DefaultClient
	}
	return &Fetcher{Client: client, AllowedHosts: allowedHosts, AllowHTTP: allowHTTP, MaxBytes: maxBytes}
}

// Normalize converts one raw reference-image entry into an Image.
func (f *Fetcher) Normalize(ctx context.Context, raw json.RawMessage) (Image, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return f.normalizeString(ctx, s)
	}

	var v variant
	if err := json.Unmarshal(raw, &v); err != nil {
		return Image{}, fmt.Errorf("unrecognized reference image shape: %w", err)
	}

	if remote := v.remoteURL(); remote != "" {
		return f.fetch(ctx, remote, v.MimeType)
	}

	if v.Data != "" {
		if looksLikeURL(v.Data) {
			return Image{}, fmt.Errorf("data field must be base64, not a URL")
		}
		return DecodeBase64Image(v.Data, v.MimeType)
	}

	return Image{}, fmt.Errorf("reference image entry has neither a URL nor inline data")
}

func (f *Fetcher) normalizeString(ctx context.Context, s string) (Image, error) {
	if strings.HasPrefix(s, "data:") {
		return DecodeBase64Image(s, "")
	}
	if looksLikeURL(s) {
		return f.fetch(ctx, s, "")
	}
	// A bare base64 string with no data: prefix.
	return DecodeBase64Image(s, "")
}

func looksLikeURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}

func (f *Fetcher) fetch(ctx context.Context, rawURL, mimeOverride string) (Image, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return Image{}, fmt.Errorf("parsing reference image URL: %w", err)
	}

	if u.Scheme == "http" && !f.AllowHTTP {
		return Image{}, ErrSchemeNotAllowed
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return Image{}, ErrSchemeNotAllowed
	}

	if !f.hostAllowed(u.Hostname()) {
		return Image{}, ErrHostNotAllowed
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return Image{}, fmt.Errorf("building reference image request: %w", err)
	}

	resp, err := f.Client.Do(req)
	if err != nil {
		return Image{}, fmt.Errorf("fetching reference image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Image{}, fmt.Errorf("reference image fetch returned status %d", resp.StatusCode)
	}

	reader := io.Reader(resp.Body)
	if f.MaxBytes > 0 {
		reader = io.LimitReader(resp.Body, f.MaxBytes+1)
	}

	data, err := io.ReadAll(reader)
	if err != nil {
		return Image{}, fmt.Errorf("reading reference image body: %w", err)
	}
	if f.MaxBytes > 0 && int64(len(data)) > f.MaxBytes {
		return Image{}, ErrTooLarge
	}

	mime := mimeOverride
	if mime == "" {
		mime = resp.Header.Get("Content-Type")
	}
	if mime == "" {
		mime = defaultMimeType
	}
	// Strip any "; charset=..." parameter the origin sent on Content-Type.
	if idx := strings.IndexByte(mime, ';'); idx >= 0 {
		mime = mime[:idx]
	}

	return Image{MimeType: strings.TrimSpace(mime), Bytes: data}, nil
}

// hostAllowed reports whether host passes the configured allow-list. An
// empty list disables filtering.
func (f *Fetcher) hostAllowed(host string) bool {
	if len(f.AllowedHosts) == 0 {
		return true
	}
	for _, h := range f.AllowedHosts {
		if strings.EqualFold(h, host) {
			return true
		}
	}
	return false
}
