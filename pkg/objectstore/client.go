// Package objectstore adapts pixelgate to a B2-like native object storage
// protocol: authorize, resolve a bucket id, obtain an upload URL, and upload
// bytes with a content SHA-1 header. Each leg is cached with its own TTL.
package objectstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	authCacheTTL   = 23 * time.Hour
	uploadURLTTL   = 30 * time.Minute
	bucketIDTTLInf = 0 // cache indefinitely
)

// authResponse is the object store's authorize_account payload.
type authResponse struct {
	AccountID          string   `json:"accountId"`
	AuthorizationToken string   `json:"authorizationToken"`
	APIURL             string   `json:"apiUrl"`
	DownloadURL        string   `json:"downloadUrl"`
	AllowedBuckets     []bucket `json:"allowed,omitempty"`
}

type bucket struct {
	BucketID   string `json:"bucketId"`
	BucketName string `json:"bucketName"`
}

type uploadURLResponse struct {
	UploadURL   string `json:"uploadUrl"`
	UploadToken string `json:"authorizationToken"`
}

// Client is a B2-like native-protocol object store client with layered
// caches for each leg of the upload handshake, per spec.md §4.3.
type Client struct {
	httpClient *http.Client
	apiBaseURL string
	keyID      string
	appKey     string
	bucketName string

	now func() time.Time

	auth      expiring[authResponse]
	bucketID  expiring[string]
	uploadURL expiring[uploadURLResponse]
}

// NewClient creates an object store Client.
func NewClient(httpClient *http.Client, apiBaseURL, keyID, appKey, bucketName string) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{
		httpClient: httpClient,
		apiBaseURL: strings.TrimRight(apiBaseURL, "/"),
		keyID:      keyID,
		appKey:     appKey,
		bucketName: bucketName,
		now:        time.Now,
	}
}

// Authorize returns a cached or freshly obtained account authorization.
func (c *Client) Authorize(ctx context.Context) (authResponse, error) {
	if cached, ok := c.auth.get(c.now()); ok {
		return cached, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiBaseURL+"/b2api/v2/b2_authorize_account", nil)
	if err != nil {
		return authResponse{}, fmt.Errorf("building authorize request: %w", err)
	}
	req.SetBasicAuth(c.keyID, c.appKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return authResponse{}, fmt.Errorf("calling authorize: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return authResponse{}, fmt.Errorf("authorize returned HTTP %d", resp.StatusCode)
	}

	var out authResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return authResponse{}, fmt.Errorf("decoding authorize response: %w", err)
	}

	c.auth.put(out, c.now(), authCacheTTL)
	return out, nil
}

// ResolveBucketID returns the bucket id for the configured bucket name,
// preferring the allow-list embedded in the authorization response and
// falling back to b2_list_buckets. Cached for the process lifetime.
func (c *Client) ResolveBucketID(ctx context.Context) (string, error) {
	if cached, ok := c.bucketID.get(c.now()); ok {
		return cached, nil
	}

	auth, err := c.Authorize(ctx)
	if err != nil {
		return "", err
	}

	for _, b := range auth.AllowedBuckets {
		if b.BucketName == c.bucketName {
			c.bucketID.put(b.BucketID, c.now(), bucketIDTTLInf)
			return b.BucketID, nil
		}
	}

	id, err := c.listBuckets(ctx, auth)
	if err != nil {
		return "", err
	}
	c.bucketID.put(id, c.now(), bucketIDTTLInf)
	return id, nil
}

func (c *Client) listBuckets(ctx context.Context, auth authResponse) (string, error) {
	body, err := json.Marshal(map[string]any{
		"accountId":  auth.AccountID,
		"bucketName": c.bucketName,
	})
	if err != nil {
		return "", fmt.Errorf("marshalling list_buckets request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, auth.APIURL+"/b2api/v2/b2_list_buckets", strings.NewReader(string(body)))
	if err != nil {
		return "", fmt.Errorf("building list_buckets request: %w", err)
	}
	req.Header.Set("Authorization", auth.AuthorizationToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("calling list_buckets: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("list_buckets returned HTTP %d", resp.StatusCode)
	}

	var out struct {
		Buckets []bucket `json:"buckets"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decoding list_buckets response: %w", err)
	}
	for _, b := range out.Buckets {
		if b.BucketName == c.bucketName {
			return b.BucketID, nil
		}
	}
	return "", fmt.Errorf("bucket %q not found", c.bucketName)
}

// GetUploadURL returns a cached or freshly obtained upload URL/token pair.
func (c *Client) GetUploadURL(ctx context.Context) (uploadURLResponse, error) {
	if cached, ok := c.uploadURL.get(c.now()); ok {
		return cached, nil
	}
	return c.refreshUploadURL(ctx)
}

func (c *Client) refreshUploadURL(ctx context.Context) (uploadURLResponse, error) {
	auth, err := c.Authorize(ctx)
	if err != nil {
		return uploadURLResponse{}, err
	}
	bucketID, err := c.ResolveBucketID(ctx)
	if err != nil {
		return uploadURLResponse{}, err
	}

	body, err := json.Marshal(map[string]string{"bucketId": bucketID})
	if err != nil {
		return uploadURLResponse{}, fmt.Errorf("marshalling get_upload_url request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, auth.APIURL+"/b2api/v2/b2_get_upload_url", strings.NewReader(string(body)))
	if err != nil {
		return uploadURLResponse{}, fmt.Errorf("building get_upload_url request: %w", err)
	}
	req.Header.Set("Authorization", auth.AuthorizationToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return uploadURLResponse{}, fmt.Errorf("calling get_upload_url: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return uploadURLResponse{}, fmt.Errorf("get_upload_url returned HTTP %d", resp.StatusCode)
	}

	var out uploadURLResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return uploadURLResponse{}, fmt.Errorf("decoding get_upload_url response: %w", err)
	}

	c.uploadURL.put(out, c.now(), uploadURLTTL)
	return out, nil
}

// Upload stores bytes under key with the given MIME type and SHA-1 hex
// digest, retrying once after invalidating the upload-URL cache if the
// first attempt fails (the cached URL having expired server-side).
func (c *Client) Upload(ctx context.Context, key, mime string, data []byte, sha1Hex string) error {
	if err := c.uploadOnce(ctx, key, mime, data, sha1Hex); err != nil {
		c.uploadURL.invalidate()
		return c.uploadOnce(ctx, key, mime, data, sha1Hex)
	}
	return nil
}

func (c *Client) uploadOnce(ctx context.Context, key, mime string, data []byte, sha1Hex string) error {
	up, err := c.GetUploadURL(ctx)
	if err != nil {
		return err
	}

	if mime == "" {
		mime = "b2/x-auto"
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, up.UploadURL, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("building upload request: %w", err)
	}
	req.ContentLength = int64(len(data))
	req.Header.Set("Authorization", up.UploadToken)
	req.Header.Set("X-Bz-File-Name", encodeFileName(key))
	req.Header.Set("Content-Type", mime)
	req.Header.Set("X-Bz-Content-Sha1", sha1Hex)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("calling upload: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 500))
		return fmt.Errorf("upload returned HTTP %d: %s", resp.StatusCode, body)
	}
	return nil
}

// encodeFileName percent-encodes each path segment of key independently,
// preserving "/" as a literal separator, per spec.md §4.3.
func encodeFileName(key string) string {
	segments := strings.Split(key, "/")
	for i, seg := range segments {
		segments[i] = url.PathEscape(seg)
	}
	return strings.Join(segments, "/")
}

// Precheck runs authorize + resolveBucketId + getUploadUrl end to end, used
// by the /__b2check diagnostic endpoint as a stop-loss before billable work.
func (c *Client) Precheck(ctx context.Context) error {
	if _, err := c.GetUploadURL(ctx); err != nil {
		return fmt.Errorf("B2_PRECHECK_FAILED: %w", err)
	}
	return nil
}

// DownloadURL returns the cached authorization's download base URL,
// authorizing first if necessary.
func (c *Client) DownloadURL(ctx context.Context) (string, error) {
	auth, err := c.Authorize(ctx)
	if err != nil {
		return "", err
	}
	return auth.DownloadURL, nil
}

// AccountToken returns the cached authorization token, authorizing first if
// necessary. Used by the download proxy's Authorization header.
func (c *Client) AccountToken(ctx context.Context) (string, error) {
	auth, err := c.Authorize(ctx)
	if err != nil {
		return "", err
	}
	return auth.AuthorizationToken, nil
}

// BucketName returns the configured bucket name.
func (c *Client) BucketName() string {
	return c.bucketName
}
