// Package credentials persists the access/refresh token pair held by the client.
package credentials

import (
	"context"
	"fmt"
	"strings"
)

// Fixed storage keys for the two tokens.
const (
	AccessTokenKey  = "access_token"
	RefreshTokenKey = "refresh_token"
)

// Pair is the bearer credential pair issued by the backend on login or refresh.
type Pair struct {
	AccessToken  string
	RefreshToken string
}

func (pair Pair) validate() error {
	if strings.TrimSpace(pair.AccessToken) == "" || strings.TrimSpace(pair.RefreshToken) == "" {
		return ErrEmptyToken
	}
	return nil
}

// Store keeps the credential pair. Save and Clear operate on both tokens at once;
// readers never observe one token without the other.
type Store interface {
	AccessToken(ctx context.Context) (token string, found bool, err error)
	RefreshToken(ctx context.Context) (token string, found bool, err error)
	Save(ctx context.Context, pair Pair) error
	Clear(ctx context.Context) error
}

// ClosableStore is a Store that owns a connection.
type ClosableStore interface {
	Store
	Close() error
}

// IsLoggedIn reports whether an access token is present. Expiry is not consulted.
func IsLoggedIn(ctx context.Context, store Store) (bool, error) {
	_, found, err := store.AccessToken(ctx)
	if err != nil {
		return false, fmt.Errorf("credentials.is_logged_in: %w", err)
	}
	return found, nil
}
