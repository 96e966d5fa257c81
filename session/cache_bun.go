package session

import (
	"context"
	"database/sql"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/uptrace/bun"
)

// cacheEntry is one row of the persisted session state.
type cacheEntry struct {
	bun.BaseModel `bun:"table:session_cache,alias:sc"`
	Key           string    `bun:"key,pk"`
	Value         []byte    `bun:"value"`
	UpdatedAt     time.Time `bun:"updated_at,notnull"`
}

// BunCache persists session state in a key/value table so a session
// survives process restarts. Backed by any bun-supported database; clients
// usually point it at a local sqlite file.
type BunCache struct {
	db  *bun.DB
	now func() time.Time
}

type BunCacheOption func(*BunCache)

// WithBunCacheClock injects a custom clock (useful for tests).
func WithBunCacheClock(clock func() time.Time) BunCacheOption {
	return func(c *BunCache) {
		if clock != nil {
			c.now = clock
		}
	}
}

func NewBunCache(db *bun.DB, opts ...BunCacheOption) *BunCache {
	c := &BunCache{
		db:  db,
		now: time.Now,
	}

	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}

	return c
}

// Init creates the backing table. Call once at startup.
func (c *BunCache) Init(ctx context.Context) error {
	_, err := c.db.NewCreateTable().
		Model((*cacheEntry)(nil)).
		IfNotExists().
		Exec(ctx)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryOperation, "failed to initialize session cache")
	}
	return nil
}

func (c *BunCache) Get(ctx context.Context, key string) ([]byte, error) {
	entry := &cacheEntry{}

	err := c.db.NewSelect().
		Model(entry).
		Where("?TableAlias.key = ?", key).
		Limit(1).
		Scan(ctx)

	if err != nil {
		if goerrors.Is(err, sql.ErrNoRows) {
			return nil, ErrCacheMiss.Clone().WithMetadata(map[string]any{
				"key": key,
			})
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryOperation, "session cache read failed")
	}

	return entry.Value, nil
}

func (c *BunCache) Set(ctx context.Context, key string, value []byte) error {
	entry := &cacheEntry{
		Key:       key,
		Value:     value,
		UpdatedAt: c.now(),
	}

	_, err := c.db.NewInsert().
		Model(entry).
		On("CONFLICT (key) DO UPDATE").
		Set("value = EXCLUDED.value").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)

	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryOperation, "session cache write failed")
	}

	return nil
}

func (c *BunCache) Clear(ctx context.Context, key string) error {
	_, err := c.db.NewDelete().
		Model((*cacheEntry)(nil)).
		Where("key = ?", key).
		Exec(ctx)

	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryOperation, "session cache delete failed")
	}

	return nil
}

var _ Cache = (*BunCache)(nil)
