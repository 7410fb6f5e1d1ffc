// Package imaging normalizes the polymorphic reference-image input, derives
// storage keys and extensions from MIME types, and computes the SHA-1
// digests the object store's upload protocol requires.
package imaging

import (
	"crypto/sha1" //nolint:gosec // required by the object store's upload protocol, not for security
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Image is the normalized internal form every reference-image and
// generated-result input is funneled through: a MIME type plus raw bytes.
type Image struct {
	MimeType string
	Bytes    []byte
}

// SHA1Hex returns the hex-encoded SHA-1 digest of the image bytes, as
// required by the object store's X-Bz-Content-Sha1 upload header.
func (img Image) SHA1Hex() string {
	sum := sha1.Sum(img.Bytes) //nolint:gosec
	return hex.EncodeToString(sum[:])
}

// defaultMimeType is used when inline base64 data carries no explicit MIME
// type, matching spec.md §4.2 stage 1's "default MIME image/png" rule.
const defaultMimeType = "image/png"

// extForMime derives a storage extension from a MIME type. Unrecognized
// types fall back to "bin", per spec.md §3's "ext derived from MIME:
// png|jpg|webp|bin" rule.
func extForMime(mime string) string {
	switch strings.ToLower(strings.TrimSpace(mime)) {
	case "image/png":
		return "png"
	case "image/jpeg", "image/jpg":
		return "jpg"
	case "image/webp":
		return "webp"
	default:
		return "bin"
	}
}

// StripDataURLPrefix removes a leading "data:...;base64," prefix from s, if
// present, returning the prefix's MIME type (empty if there was none) and
// the remaining raw base64 payload.
func StripDataURLPrefix(s string) (mime, b64 string) {
	if !strings.HasPrefix(s, "data:") {
		return "", s
	}
	rest := strings.TrimPrefix(s, "data:")
	comma := strings.IndexByte(rest, ',')
	if comma < 0 {
		return "", s
	}
	meta := rest[:comma]
	data := rest[comma+1:]

	meta = strings.TrimSuffix(meta, ";base64")
	return meta, data
}

// DecodeBase64Image decodes a (possibly data-URL-prefixed) base64 string
// into an Image, defaulting the MIME type to image/png when none is given.
func DecodeBase64Image(raw string, mimeOverride string) (Image, error) {
	mime, b64 := StripDataURLPrefix(raw)
	if mimeOverride != "" {
		mime = mimeOverride
	}
	if mime == "" {
		mime = defaultMimeType
	}

	data, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		// Reference images in particular are supplied by less careful
		// clients; tolerate unpadded input before giving up. The URL-safe
		// alphabet is not accepted.
		data, err = base64.RawStdEncoding.DecodeString(b64)
		if err != nil {
			return Image{}, fmt.Errorf("decoding base64 image data: %w", err)
		}
	}

	return Image{MimeType: mime, Bytes: data}, nil
}

// BuildKey constructs a stored-object key of the form
// "<prefix>YYYY/MM/DD/<uuid>.<ext>", per spec.md §3. prefix should already
// end in "/" (e.g. "gemini/", "cankaotu/").
func BuildKey(prefix, mimeType string, now time.Time) string {
	ext := extForMime(mimeType)
	return fmt.Sprintf("%s%s/%s.%s", prefix, now.UTC().Format("2006/01/02"), uuid.NewString(), ext)
}
