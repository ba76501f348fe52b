package credentials

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/redis/go-redis/v9"
)

// DefaultRedisNamespace prefixes credential keys when the URL carries no namespace.
const DefaultRedisNamespace = "busclient"

// RedisStore keeps the credential pair in Redis under "<namespace>:access_token" and
// "<namespace>:refresh_token".
type RedisStore struct {
	client    *redis.Client
	namespace string
}

// NewRedisStore wraps an existing client.
func NewRedisStore(client *redis.Client, namespace string) *RedisStore {
	if strings.TrimSpace(namespace) == "" {
		namespace = DefaultRedisNamespace
	}
	return &RedisStore{client: client, namespace: namespace}
}

// OpenRedisStore parses a redis:// URL, connects, and pings the server. The optional
// "namespace" query parameter selects the key prefix.
func OpenRedisStore(ctx context.Context, redisURL string) (*RedisStore, error) {
	parsed, err := url.Parse(redisURL)
	if err != nil {
		return nil, fmt.Errorf("credentials.redis.parse_url: %w", err)
	}
	query := parsed.Query()
	namespace := query.Get("namespace")
	query.Del("namespace")
	parsed.RawQuery = query.Encode()

	options, optionsErr := redis.ParseURL(parsed.String())
	if optionsErr != nil {
		return nil, fmt.Errorf("credentials.redis.options: %w", optionsErr)
	}
	client := redis.NewClient(options)
	if pingErr := client.Ping(ctx).Err(); pingErr != nil {
		_ = client.Close()
		return nil, fmt.Errorf("credentials.redis.ping: %w", pingErr)
	}
	return NewRedisStore(client, namespace), nil
}

// AccessToken returns the stored access token.
func (store *RedisStore) AccessToken(ctx context.Context) (string, bool, error) {
	return store.lookup(ctx, AccessTokenKey)
}

// RefreshToken returns the stored refresh token.
func (store *RedisStore) RefreshToken(ctx context.Context) (string, bool, error) {
	return store.lookup(ctx, RefreshTokenKey)
}

// Save writes both keys inside MULTI/EXEC.
func (store *RedisStore) Save(ctx context.Context, pair Pair) error {
	if err := pair.validate(); err != nil {
		return fmt.Errorf("credentials.save.redis: %w", err)
	}
	_, err := store.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, store.key(AccessTokenKey), pair.AccessToken, 0)
		pipe.Set(ctx, store.key(RefreshTokenKey), pair.RefreshToken, 0)
		return nil
	})
	if err != nil {
		return fmt.Errorf("credentials.save.redis: %w", err)
	}
	return nil
}

// Clear deletes both keys.
func (store *RedisStore) Clear(ctx context.Context) error {
	if err := store.client.Del(ctx, store.key(AccessTokenKey), store.key(RefreshTokenKey)).Err(); err != nil {
		return fmt.Errorf("credentials.clear.redis: %w", err)
	}
	return nil
}

// Close closes the Redis connection.
func (store *RedisStore) Close() error {
	return store.client.Close()
}

func (store *RedisStore) key(name string) string {
	return store.namespace + ":" + name
}

func (store *RedisStore) lookup(ctx context.Context, name string) (string, bool, error) {
	value, err := store.client.Get(ctx, store.key(name)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("credentials.lookup.redis: %w", err)
	}
	return value, true, nil
}
