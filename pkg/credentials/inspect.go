package credentials

import (
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const fingerprintLength = 12

// TokenInfo is the unverified claim set carried by a backend access token.
type TokenInfo struct {
	UserID    string
	Username  string
	Email     string
	Role      string
	Type      string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Expired reports whether the token expiry lies before now. Tokens without exp never expire here.
func (info TokenInfo) Expired(now time.Time) bool {
	if info.ExpiresAt.IsZero() {
		return false
	}
	return now.After(info.ExpiresAt)
}

type accessClaims struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Role     string `json:"role"`
	Type     string `json:"type"`
	jwt.RegisteredClaims
}

// InspectAccessToken decodes token claims without verifying the signature. The result is
// for display only; the backend remains the authority on validity.
func InspectAccessToken(token string) (TokenInfo, error) {
	if strings.TrimSpace(token) == "" {
		return TokenInfo{}, fmt.Errorf("credentials.inspect: %w", ErrEmptyToken)
	}
	claims := &accessClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return TokenInfo{}, fmt.Errorf("credentials.inspect: %w", ErrMalformedToken)
	}
	info := TokenInfo{
		UserID:   claims.UserID,
		Username: claims.Username,
		Email:    claims.Email,
		Role:     claims.Role,
		Type:     claims.Type,
	}
	if claims.IssuedAt != nil {
		info.IssuedAt = claims.IssuedAt.Time.UTC()
	}
	if claims.ExpiresAt != nil {
		info.ExpiresAt = claims.ExpiresAt.Time.UTC()
	}
	return info, nil
}

// Fingerprint returns a short, non-reversible label for a token so logs can correlate
// rotations without carrying the secret.
func Fingerprint(token string) string {
	if token == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(token))
	return base64.RawURLEncoding.EncodeToString(sum[:])[:fingerprintLength]
}
