package credentials

import (
	"context"
	"sync"
)

// MemoryStore is an in-process store intended for tests and one-shot runs.
type MemoryStore struct {
	mutex  sync.RWMutex
	values map[string]string
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{values: make(map[string]string)}
}

// AccessToken returns the stored access token.
func (store *MemoryStore) AccessToken(ctx context.Context) (string, bool, error) {
	return store.lookup(AccessTokenKey)
}

// RefreshToken returns the stored refresh token.
func (store *MemoryStore) RefreshToken(ctx context.Context) (string, bool, error) {
	return store.lookup(RefreshTokenKey)
}

// Save replaces both tokens under a single lock.
func (store *MemoryStore) Save(ctx context.Context, pair Pair) error {
	if err := pair.validate(); err != nil {
		return err
	}
	store.mutex.Lock()
	defer store.mutex.Unlock()
	store.values[AccessTokenKey] = pair.AccessToken
	store.values[RefreshTokenKey] = pair.RefreshToken
	return nil
}

// Clear removes both tokens.
func (store *MemoryStore) Clear(ctx context.Context) error {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	delete(store.values, AccessTokenKey)
	delete(store.values, RefreshTokenKey)
	return nil
}

// Close is a no-op.
func (store *MemoryStore) Close() error {
	return nil
}

func (store *MemoryStore) lookup(key string) (string, bool, error) {
	store.mutex.RLock()
	defer store.mutex.RUnlock()
	value, ok := store.values[key]
	return value, ok, nil
}
