package options

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/goliatone/go-formrules/pkg/model"
	"github.com/goliatone/go-formrules/pkg/store"
)

const (
	// DefaultTTL is how long a resolved option list stays fresh.
	DefaultTTL = 30 * time.Minute
	// StorageKey is where the cache is persisted in the durable store.
	StorageKey = "form-builder-api-cache"
)

// Entry is one cached option list. Timestamp is in epoch milliseconds.
type Entry struct {
	Timestamp int64          `json:"timestamp"`
	Data      []model.Option `json:"data"`
}

// Cache is a TTL map from normalized source key to resolved options. Expired
// entries are evicted lazily on lookup. When a store is configured every
// mutation is written through.
type Cache struct {
	mu      sync.Mutex
	entries map[string]Entry
	ttl     time.Duration
	now     func() time.Time
	kv      store.KV
	logger  *slog.Logger
}

// CacheOption configures a Cache.
type CacheOption func(*Cache)

// WithTTL overrides the entry lifetime.
func WithTTL(ttl time.Duration) CacheOption {
	return func(c *Cache) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

// WithClock injects the time source.
func WithClock(now func() time.Time) CacheOption {
	return func(c *Cache) {
		if now != nil {
			c.now = now
		}
	}
}

// WithStore persists entries under StorageKey.
func WithStore(kv store.KV) CacheOption {
	return func(c *Cache) {
		c.kv = kv
	}
}

// WithCacheLogger sets the logger used for persistence failures.
func WithCacheLogger(logger *slog.Logger) CacheOption {
	return func(c *Cache) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewCache returns an empty cache.
func NewCache(opts ...CacheOption) *Cache {
	c := &Cache{
		entries: make(map[string]Entry),
		ttl:     DefaultTTL,
		now:     time.Now,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

// Load restores persisted entries, skipping malformed ones and pruning
// expired ones. A missing record is not an error.
func (c *Cache) Load(ctx context.Context) error {
	if c.kv == nil {
		return nil
	}
	var stored map[string]*Entry
	found, err := store.GetJSON(ctx, c.kv, StorageKey, &stored)
	if err != nil || !found {
		return err
	}

	c.mu.Lock()
	for key, entry := range stored {
		if entry == nil || entry.Timestamp <= 0 || entry.Data == nil {
			continue
		}
		c.entries[key] = *entry
	}
	changed := c.pruneLocked()
	c.mu.Unlock()

	if changed {
		c.persist(ctx)
	}
	return nil
}

// Get returns a live entry for src.
func (c *Cache) Get(ctx context.Context, src model.ApiOptionSource) ([]model.Option, bool) {
	return c.GetKey(ctx, CacheKey(src))
}

// GetKey looks up a precomputed cache key.
func (c *Cache) GetKey(ctx context.Context, key string) ([]model.Option, bool) {
	c.mu.Lock()
	entry, ok := c.entries[key]
	if !ok {
		c.mu.Unlock()
		cacheLookups.WithLabelValues("miss").Inc()
		return nil, false
	}
	if c.expired(entry) {
		delete(c.entries, key)
		c.mu.Unlock()
		cacheLookups.WithLabelValues("expired").Inc()
		c.persist(ctx)
		return nil, false
	}
	c.mu.Unlock()
	cacheLookups.WithLabelValues("hit").Inc()
	return cloneOptions(entry.Data), true
}

// Set stores options for src. Concurrent writers for one key are
// last-write-wins.
func (c *Cache) Set(ctx context.Context, src model.ApiOptionSource, data []model.Option) {
	c.SetKey(ctx, CacheKey(src), data)
}

// SetKey stores options under a precomputed cache key.
func (c *Cache) SetKey(ctx context.Context, key string, data []model.Option) {
	c.mu.Lock()
	c.entries[key] = Entry{Timestamp: c.now().UnixMilli(), Data: cloneOptions(data)}
	c.mu.Unlock()
	c.persist(ctx)
}

// Invalidate removes the entry for src, or every entry when src is nil.
func (c *Cache) Invalidate(ctx context.Context, src *model.ApiOptionSource) {
	c.mu.Lock()
	if src == nil {
		c.entries = make(map[string]Entry)
	} else {
		delete(c.entries, CacheKey(*src))
	}
	c.mu.Unlock()
	c.persist(ctx)
}

// Prune drops expired entries and reports how many were removed.
func (c *Cache) Prune(ctx context.Context) int {
	c.mu.Lock()
	before := len(c.entries)
	changed := c.pruneLocked()
	removed := before - len(c.entries)
	c.mu.Unlock()
	if changed {
		c.persist(ctx)
	}
	return removed
}

// Len reports the number of stored entries, expired or not.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *Cache) expired(entry Entry) bool {
	return c.now().UnixMilli()-entry.Timestamp > c.ttl.Milliseconds()
}

func (c *Cache) pruneLocked() bool {
	changed := false
	for key, entry := range c.entries {
		if c.expired(entry) {
			delete(c.entries, key)
			changed = true
		}
	}
	return changed
}

func (c *Cache) persist(ctx context.Context) {
	if c.kv == nil {
		return
	}
	c.mu.Lock()
	snapshot := make(map[string]Entry, len(c.entries))
	for key, entry := range c.entries {
		snapshot[key] = entry
	}
	c.mu.Unlock()

	if err := store.SetJSON(ctx, c.kv, StorageKey, snapshot); err != nil {
		c.logger.Error("persist option cache", slog.String("error", err.Error()))
	}
}

func cloneOptions(in []model.Option) []model.Option {
	if in == nil {
		return nil
	}
	return append([]model.Option(nil), in...)
}
