package imaging

import (
	"log/slog"
	"net/http"
	"path"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/wisbric/pixelgate/internal/auth"
	"github.com/wisbric/pixelgate/internal/httpserver"
	"github.com/wisbric/pixelgate/pkg/objectstore"
)

// refImagePrefix is the fixed key prefix for user-uploaded reference
// images, distinct from KEY_PREFIX (generated results), per spec.md §4.1.
const refImagePrefix = "cankaotu/"

// UploadRequest is the JSON body for POST /api/upload/image.
type UploadRequest struct {
	Image    string `json:"image" validate:"required"`
	MimeType string `json:"mimeType"`
}

// UploadResponse is the JSON response for a successful reference-image
// upload.
type UploadResponse struct {
	Success  bool   `json:"success"`
	URL      string `json:"url"`
	FileName string `json:"fileName"`
	Size     int    `json:"size"`
}

// Handler provides the reference-image intake HTTP endpoint.
type Handler struct {
	objects   *objectstore.Client
	publicURL string
	logger    *slog.Logger
	now       func() time.Time
}

// NewHandler creates an imaging intake Handler.
func NewHandler(objects *objectstore.Client, publicURL string, logger *slog.Logger) *Handler {
	return &Handler{objects: objects, publicURL: publicURL, logger: logger, now: time.Now}
}

// Routes returns a chi.Router with the reference-image intake route
// mounted, behind bearer auth per spec.md §6.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(auth.RequireAuth)
	r.Post("/", h.handleUpload)
	return r
}

func (h *Handler) handleUpload(w http.ResponseWriter, r *http.Request) {
	var req UploadRequest
	if !httpserver.DecodeAndValidate(w, r, &req) {
		return
	}

	img, err := DecodeBase64Image(req.Image, req.MimeType)
	if err != nil {
		httpserver.RespondError(w, http.StatusBadRequest, "bad_request", "invalid image data")
		return
	}

	key := BuildKey(refImagePrefix, img.MimeType, h.now())

	if err := h.objects.Upload(r.Context(), key, img.MimeType, img.Bytes, img.SHA1Hex()); err != nil {
		h.logger.Error("uploading reference image", "error", err)
		httpserver.RespondError(w, http.StatusBadGateway, "upload_failed", "failed to upload reference image")
		return
	}

	httpserver.Respond(w, http.StatusOK, UploadResponse{
		Success:  true,
		URL:      h.publicURL + "/i/" + key,
		FileName: path.Base(key),
		Size:     len(img.Bytes),
	})
}
