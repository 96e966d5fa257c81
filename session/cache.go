package session

import (
	"context"
	"sync"

	goerrors "github.com/goliatone/go-errors"
)

// Cache keys. Token and identity are the session's persisted state; the
// last-email hint is a login-form prefill convenience and is never
// consulted for authorization.
const (
	KeyToken     = "token"
	KeyIdentity  = "identity"
	KeyLastEmail = "last_email"
)

const textCodeCacheMiss = "CACHE_MISS"

// ErrCacheMiss is returned by Cache.Get for an absent key.
var ErrCacheMiss = goerrors.New("cache key not found", goerrors.CategoryNotFound).
	WithTextCode(textCodeCacheMiss).
	WithCode(goerrors.CodeNotFound)

// IsCacheMiss reports whether err means the key was simply absent, as
// opposed to the cache backend failing.
func IsCacheMiss(err error) bool {
	if err == nil {
		return false
	}
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) && richErr.TextCode == textCodeCacheMiss {
		return true
	}
	return goerrors.IsNotFound(err)
}

// Cache is the persistent client store for session state. Implementations
// must keep Get/Set/Clear safe for concurrent use; the manager's background
// refresh touches the cache off the caller's goroutine.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Clear(ctx context.Context, key string) error
}

// MemoryCache is an in-memory Cache, used in tests and for processes that
// do not want persistence across restarts.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string][]byte
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{
		entries: map[string][]byte{},
	}
}

func (c *MemoryCache) Get(ctx context.Context, key string) ([]byte, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	value, ok := c.entries[key]
	if !ok {
		return nil, ErrCacheMiss.Clone().WithMetadata(map[string]any{
			"key": key,
		})
	}

	out := make([]byte, len(value))
	copy(out, value)
	return out, nil
}

func (c *MemoryCache) Set(ctx context.Context, key string, value []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	stored := make([]byte, len(value))
	copy(stored, value)
	c.entries[key] = stored
	return nil
}

func (c *MemoryCache) Clear(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.entries, key)
	return nil
}

var _ Cache = (*MemoryCache)(nil)
