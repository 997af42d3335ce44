package store

import (
	"context"
	"time"

	"github.com/jellydator/ttlcache/v3"
	"github.com/punchamoorthee/txnrelay/internal/domain"
)

// CachedChartStore is a write-through read cache in front of a ChartStore.
// Misses are not cached.
type CachedChartStore struct {
	next  ChartStore
	cache *ttlcache.Cache[string, domain.UserChart]
}

func NewCachedChartStore(next ChartStore, ttl time.Duration) *CachedChartStore {
	cache := ttlcache.New[string, domain.UserChart](
		ttlcache.WithTTL[string, domain.UserChart](ttl),
		ttlcache.WithDisableTouchOnHit[string, domain.UserChart](), // don't refresh ttl upon getting the item from cache
	)
	go cache.Start()

	return &CachedChartStore{next: next, cache: cache}
}

// Stop ends the expiry loop of the cache.
func (c *CachedChartStore) Stop() {
	c.cache.Stop()
}

func (c *CachedChartStore) Ping(ctx context.Context) error {
	return c.next.Ping(ctx)
}

func (c *CachedChartStore) Upsert(ctx context.Context, chart *domain.UserChart) error {
	if err := c.next.Upsert(ctx, chart); err != nil {
		c.cache.Delete(chart.Email)
		return err
	}
	c.cache.Set(chart.Email, *chart, ttlcache.DefaultTTL)
	return nil
}

func (c *CachedChartStore) Get(ctx context.Context, email string) (*domain.UserChart, error) {
	if item := c.cache.Get(email); item != nil {
		chart := item.Value()
		return &chart, nil
	}

	chart, err := c.next.Get(ctx, email)
	if err != nil {
		return nil, err
	}
	c.cache.Set(email, *chart, ttlcache.DefaultTTL)
	return chart, nil
}
