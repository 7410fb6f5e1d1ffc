package auth

import (
	"fmt"
	"strconv"
	"time"

	"github.com/go-jose/go-jose/v4"
	"github.com/go-jose/go-jose/v4/jwt"
)

const issuer = "pixelgate"

// TokenClaims are the claims embedded in a bearer token.
type TokenClaims struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Role     string `json:"role"`
}

// TokenManager issues and validates HS256 bearer tokens carrying
// {id, username, role}.
type TokenManager struct {
	signingKey []byte
	ttl        time.Duration
}

// NewTokenManager creates a token manager. The secret must be at least 32 bytes.
func NewTokenManager(secret string, ttl time.Duration) (*TokenManager, error) {
	if len(secret) < 32 {
		return nil, fmt.Errorf("jwt secret must be at least 32 bytes, got %d", len(secret))
	}
	return &TokenManager{signingKey: []byte(secret), ttl: ttl}, nil
}

// Issue mints a signed bearer token for the given identity.
func (tm *TokenManager) Issue(id *Identity) (string, error) {
	signer, err := jose.NewSigner(
		jose.SigningKey{Algorithm: jose.HS256, Key: tm.signingKey},
		(&jose.SignerOptions{}).WithType("JWT"),
	)
	if err != nil {
		return "", fmt.Errorf("creating signer: %w", err)
	}

	now := time.Now()
	registered := jwt.Claims{
		Subject:   strconv.FormatInt(id.ID, 10),
		IssuedAt:  jwt.NewNumericDate(now),
		Expiry:    jwt.NewNumericDate(now.Add(tm.ttl)),
		NotBefore: jwt.NewNumericDate(now),
		Issuer:    issuer,
	}

	custom := TokenClaims{ID: id.ID, Username: id.Username, Role: id.Role}

	token, err := jwt.Signed(signer).Claims(registered).Claims(custom).Serialize()
	if err != nil {
		return "", fmt.Errorf("signing token: %w", err)
	}
	return token, nil
}

// Verify checks the token's signature and expiry and returns the identity it
// carries.
func (tm *TokenManager) Verify(raw string) (*Identity, error) {
	tok, err := jwt.ParseSigned(raw, []jose.SignatureAlgorithm{jose.HS256})
	if err != nil {
		return nil, fmt.Errorf("parsing token: %w", err)
	}

	var registered jwt.Claims
	var custom TokenClaims
	if err := tok.Claims(tm.signingKey, &registered, &custom); err != nil {
		return nil, fmt.Errorf("verifying token: %w", err)
	}

	if err := registered.ValidateWithLeeway(jwt.Expected{
		Issuer: issuer,
		Time:   time.Now(),
	}, 5*time.Second); err != nil {
		return nil, fmt.Errorf("validating claims: %w", err)
	}

	return &Identity{ID: custom.ID, Username: custom.Username, Role: custom.Role}, nil
}
