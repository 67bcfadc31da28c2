package application

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/celstore/storefront/internal/catalog/domain"
)

// Cache is a read-through snapshot of the product list with a freshness
// window. Writes never touch the snapshot in place; they invalidate it and
// the next reader reloads synchronously from the store.
type Cache struct {
	log   *slog.Logger
	store Store
	ttl   time.Duration

	mu         sync.Mutex
	data       []domain.Product
	freshUntil time.Time
	now        func() time.Time
}

func NewCache(log *slog.Logger, store Store, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Cache{log: log, store: store, ttl: ttl, now: time.Now}
}

// Get returns the cached snapshot, reloading first when it is stale or force
// is set. The returned slice is a copy; callers can keep it across handler
// suspension points without seeing later reloads.
func (c *Cache) Get(ctx context.Context, force bool) ([]domain.Product, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if force || c.now().After(c.freshUntil) {
		data, err := c.store.List(ctx)
		if err != nil {
			return nil, err
		}
		c.data = data
		c.freshUntil = c.now().Add(c.ttl)
		c.log.Debug("product cache refreshed", "count", len(data))
	}

	out := make([]domain.Product, len(c.data))
	copy(out, c.data)
	return out, nil
}

// Invalidate clears the freshness window. The next Get pays the reload cost.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	c.freshUntil = time.Time{}
	c.mu.Unlock()
}
