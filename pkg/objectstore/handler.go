package objectstore

import (
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/gabriel-vasile/mimetype"
)

// Handler serves the public download proxy (GET/HEAD /i/<key>) and the
// object-store preflight diagnostic (/__b2check).
type Handler struct {
	client *Client
	cache  *downloadCache
	logger *slog.Logger
}

// NewHandler creates an objectstore Handler.
func NewHandler(client *Client, logger *slog.Logger) *Handler {
	return &Handler{client: client, cache: newDownloadCache(), logger: logger}
}

// Routes returns a chi.Router serving the download proxy at its root
// (mount at "/i").
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/*", h.handleDownload)
	r.Head("/*", h.handleDownload)
	return r
}

func (h *Handler) handleDownload(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "*")

	applyCORS(w, r)

	if strings.Contains(key, "..") {
		http.Error(w, `{"error":"invalid key"}`, http.StatusBadRequest)
		return
	}

	isRange := r.Header.Get("Range") != ""

	if !isRange {
		if obj, ok := h.cache.get(key); ok {
			w.Header().Set("Content-Type", obj.contentType)
			w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
			w.WriteHeader(http.StatusOK)
			if r.Method != http.MethodHead {
				_, _ = w.Write(obj.body)
			}
			return
		}
	}

	downloadURL, err := h.client.DownloadURL(r.Context())
	if err != nil {
		h.logger.Error("resolving download url", "error", err)
		http.Error(w, `{"error":"object store unavailable"}`, http.StatusBadGateway)
		return
	}
	token, err := h.client.AccountToken(r.Context())
	if err != nil {
		h.logger.Error("resolving account token", "error", err)
		http.Error(w, `{"error":"object store unavailable"}`, http.StatusBadGateway)
		return
	}

	origin := downloadURL + "/file/" + h.client.BucketName() + "/" + encodeFileName(key)

	req, err := http.NewRequestWithContext(r.Context(), http.MethodGet, origin, nil)
	if err != nil {
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	req.Header.Set("Authorization", token)
	if isRange {
		req.Header.Set("Range", r.Header.Get("Range"))
	}

	resp, err := h.client.httpClient.Do(req)
	if err != nil {
		h.logger.Error("fetching object", "error", err, "key", key)
		http.Error(w, `{"error":"object store unavailable"}`, http.StatusBadGateway)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		w.WriteHeader(resp.StatusCode)
		_, _ = io.Copy(w, resp.Body)
		return
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = mimetype.Detect(body).String()
	}

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
	if cr := resp.Header.Get("Content-Range"); cr != "" {
		w.Header().Set("Content-Range", cr)
	}
	w.WriteHeader(resp.StatusCode)
	if r.Method != http.MethodHead {
		_, _ = w.Write(body)
	}

	if !isRange {
		h.cache.put(key, cachedObject{body: body, contentType: contentType})
	}
}

// applyCORS sets the CORS headers the download proxy and preflight both
// need: the requesting Origin is echoed back (or "*" absent one), with byte
// -range headers exposed.
func applyCORS(w http.ResponseWriter, r *http.Request) {
	origin := r.Header.Get("Origin")
	if origin == "" {
		origin = "*"
	}
	w.Header().Set("Access-Control-Allow-Origin", origin)
	w.Header().Set("Vary", "Origin")
	w.Header().Set("Access-Control-Expose-Headers", "Content-Range, Accept-Ranges, Content-Length")
}

// HandlePrecheck is mounted by the generation plane at /__b2check.
func (h *Handler) HandlePrecheck(w http.ResponseWriter, r *http.Request) {
	if err := h.client.Precheck(r.Context()); err != nil {
		http.Error(w, `{"ok":false,"error":"`+err.Error()+`"}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"ok":true}`))
}
