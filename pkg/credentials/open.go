package credentials

import (
	"context"
	"fmt"
	"net/url"
	"strings"
)

// Open selects a store backend from the URL scheme:
// memory://, sqlite://, postgres://, redis:// (rediss:// for TLS).
func Open(ctx context.Context, storeURL string) (ClosableStore, error) {
	if strings.TrimSpace(storeURL) == "" {
		return nil, fmt.Errorf("credentials.open: %w", errEmptyStoreURL)
	}
	parsed, err := url.Parse(storeURL)
	if err != nil {
		return nil, fmt.Errorf("credentials.parse_url: %w", err)
	}
	switch strings.ToLower(parsed.Scheme) {
	case "memory":
		return NewMemoryStore(), nil
	case "redis", "rediss":
		return OpenRedisStore(ctx, storeURL)
	default:
		return NewDatabaseStore(ctx, storeURL)
	}
}
