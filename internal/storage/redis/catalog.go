package redis

import (
	"context"
	"encoding/json"
	"errors"
	"math/rand/v2"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/xenking/mishramart/internal/domain/product"
)

const catalogKey = "mishramart:catalog"

var _ product.Repository = (*CachedProducts)(nil)

// CachedProducts is a cache-aside decorator over a product.Repository. Only
// the full catalog listing is cached; writes invalidate it. Cache failures
// fall back to the wrapped repository.
type CachedProducts struct {
	product.Repository

	client  goredis.UniversalClient
	baseTTL time.Duration
	lg      *zap.Logger
}

// NewCachedProducts wraps repo with a catalog cache stored in client.
func NewCachedProducts(repo product.Repository, client goredis.UniversalClient, ttl time.Duration, lg *zap.Logger) *CachedProducts {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	if lg == nil {
		lg = zap.NewNop()
	}
	return &CachedProducts{Repository: repo, client: client, baseTTL: ttl, lg: lg}
}

// List returns the cached catalog, loading and caching it on a miss.
func (c *CachedProducts) List(ctx context.Context) ([]product.Product, error) {
	data, err := c.client.Get(ctx, catalogKey).Bytes()
	switch {
	case err == nil:
		var products []product.Product
		if err := json.Unmarshal(data, &products); err == nil {
			return products, nil
		}
		c.lg.Warn("Corrupt catalog cache entry")
	case !errors.Is(err, goredis.Nil):
		c.lg.Warn("Catalog cache get", zap.Error(err))
	}

	products, err := c.Repository.List(ctx)
	if err != nil {
		return nil, err
	}
	if data, err := json.Marshal(products); err == nil {
		// Jitter spreads expiry of replicas warmed at the same moment.
		ttl := c.baseTTL + time.Duration(rand.Int64N(int64(c.baseTTL/5)+1))
		if err := c.client.Set(ctx, catalogKey, data, ttl).Err(); err != nil {
			c.lg.Warn("Catalog cache set", zap.Error(err))
		}
	}
	return products, nil
}

// Upsert writes through and invalidates the cached catalog.
func (c *CachedProducts) Upsert(ctx context.Context, p *product.Product) error {
	if err := c.Repository.Upsert(ctx, p); err != nil {
		return err
	}
	c.invalidate(ctx)
	return nil
}

// Delete writes through and invalidates the cached catalog.
func (c *CachedProducts) Delete(ctx context.Context, id string) error {
	if err := c.Repository.Delete(ctx, id); err != nil {
		return err
	}
	c.invalidate(ctx)
	return nil
}

func (c *CachedProducts) invalidate(ctx context.Context) {
	if err := c.client.Del(ctx, catalogKey).Err(); err != nil {
		c.lg.Warn("Catalog cache invalidate", zap.Error(err))
	}
}
