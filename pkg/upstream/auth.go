// Package upstream calls the Vertex-like generative-model API: OAuth token
// acquisition via a service-account JWT, round-robin project routing, and
// the model HTTP call itself.
package upstream

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/jwt"
)

// scope is the OAuth scope requested for the service-account JWT, per
// spec.md §4.4.
const scope = "https://www.googleapis.com/auth/cloud-platform"

// tokenExpiryBuffer is how long before actual expiry a cached token is
// treated as stale, per spec.md §4.4's "refresh >=60s before exp".
const tokenExpiryBuffer = 60 * time.Second

// Credential is a GCP service-account credential, either read from a single
// JSON blob or assembled from its three constituent fields.
type Credential struct {
	ClientEmail string
	PrivateKey  string
	TokenURI    string
}

// ParseCredential builds a Credential from either a JSON service-account
// blob or explicit fields, matching spec.md §4.4's "either... or" input.
func ParseCredential(serviceAccountJSON, clientEmail, privateKey, tokenURI string) (Credential, error) {
	if serviceAccountJSON != "" {
		var blob struct {
			ClientEmail string `json:"client_email"`
			PrivateKey  string `json:"private_key"`
			TokenURI    string `json:"token_uri"`
		}
		if err := json.Unmarshal([]byte(serviceAccountJSON), &blob); err != nil {
			return Credential{}, fmt.Errorf("parsing service account json: %w", err)
		}
		if blob.TokenURI == "" {
			blob.TokenURI = tokenURI
		}
		return Credential{ClientEmail: blob.ClientEmail, PrivateKey: blob.PrivateKey, TokenURI: blob.TokenURI}, nil
	}
	return Credential{ClientEmail: clientEmail, PrivateKey: privateKey, TokenURI: tokenURI}, nil
}

// Authenticator mints and caches OAuth access tokens for the service
// account. It wraps golang.org/x/oauth2/jwt's TokenSource (the RS256
// JWT-bearer grant) in oauth2.ReuseTokenSourceWithExpiry so the cached
// token is refreshed at least tokenExpiryBuffer seconds before it expires,
// per spec.md §4.4.
type Authenticator struct {
	source oauth2.TokenSource
}

// NewAuthenticator builds an Authenticator from a parsed Credential.
func NewAuthenticator(cred Credential) *Authenticator {
	cfg := &jwt.Config{
		Email:      cred.ClientEmail,
		PrivateKey: []byte(cred.PrivateKey),
		Scopes:     []string{scope},
		TokenURL:   cred.TokenURI,
	}
	base := cfg.TokenSource(context.Background())
	reused := oauth2.ReuseTokenSourceWithExpiry(nil, base, tokenExpiryBuffer)
	return &Authenticator{source: reused}
}

// AccessToken returns a valid access token, refreshing if necessary.
func (a *Authenticator) AccessToken(ctx context.Context) (string, error) {
	tok, err := a.source.Token()
	if err != nil {
		return "", fmt.Errorf("oauth_token_failed: %w", err)
	}
	return tok.AccessToken, nil
}
