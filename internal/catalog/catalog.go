// Package catalog serves the product list with a last-known-good cache for
// when the live fetch fails.
package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"storefront/internal/models"
)

// CacheKey is the fixed key holding the last fetched product list.
const CacheKey = "catalog:products"

// Cache persists a snapshot of the product list. The snapshot never
// expires; Save overwrites it wholesale.
type Cache struct {
	kv     KV
	logger *slog.Logger
}

// NewCache returns a Cache over kv.
func NewCache(kv KV, logger *slog.Logger) *Cache {
	if logger == nil {
		logger = slog.Default()
	}
	return &Cache{kv: kv, logger: logger}
}

// Load returns the cached list, or an empty list when nothing usable is
// stored.
func (c *Cache) Load(ctx context.Context) []models.Product {
	raw, found, err := c.kv.Get(ctx, CacheKey)
	if err != nil {
		c.logger.Warn("catalog cache read failed", slog.Any("error", err))
		return []models.Product{}
	}
	if !found {
		return []models.Product{}
	}
	var list []models.Product
	if err := json.Unmarshal([]byte(raw), &list); err != nil {
		c.logger.Warn("catalog cache is corrupt", slog.Any("error", err))
		return []models.Product{}
	}
	if list == nil {
		list = []models.Product{}
	}
	return list
}

// Save replaces the cached list.
func (c *Cache) Save(ctx context.Context, list []models.Product) error {
	raw, err := json.Marshal(list)
	if err != nil {
		return fmt.Errorf("failed to encode catalog: %w", err)
	}
	return c.kv.Set(ctx, CacheKey, string(raw))
}

// Clear removes the cached list.
func (c *Cache) Clear(ctx context.Context) error {
	return c.kv.Remove(ctx, CacheKey)
}

// Source tells where a product list came from.
type Source string

const (
	SourceLive  Source = "live"
	SourceCache Source = "cache"
)

// Fetcher is the live product source.
type Fetcher interface {
	GetAll(ctx context.Context) ([]models.Product, error)
}

// Catalog combines the live source with the cache.
type Catalog struct {
	live   Fetcher
	cache  *Cache
	logger *slog.Logger
}

// New returns a Catalog that reads through live and falls back to cache.
func New(live Fetcher, cache *Cache, logger *slog.Logger) *Catalog {
	if logger == nil {
		logger = slog.Default()
	}
	return &Catalog{live: live, cache: cache, logger: logger}
}

// List fetches the live list and refreshes the cache. When the live fetch
// fails the cached list is returned as-is; the two are never merged.
func (c *Catalog) List(ctx context.Context) ([]models.Product, Source) {
	products, err := c.live.GetAll(ctx)
	if err != nil {
		c.logger.Warn("live catalog fetch failed, serving cache", slog.Any("error", err))
		return c.cache.Load(ctx), SourceCache
	}
	if err := c.cache.Save(ctx, products); err != nil {
		c.logger.Warn("failed to refresh catalog cache", slog.Any("error", err))
	}
	return products, SourceLive
}

// Cached returns the cached list without touching the live source, for
// callers that render before the live fetch completes.
func (c *Catalog) Cached(ctx context.Context) []models.Product {
	return c.cache.Load(ctx)
}

// Invalidate drops the cached list.
func (c *Catalog) Invalidate(ctx context.Context) error {
	return c.cache.Clear(ctx)
}
