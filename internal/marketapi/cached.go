package marketapi

import (
	"context"
	"errors"
	"time"

	"github.com/gotomicro/ego/core/elog"

	"market-finder/internal/cache"
	"market-finder/internal/features"
	"market-finder/internal/models"
)

// Invalidator drops cached copies of a market's detail.
type Invalidator interface {
	ForgetMarket(ctx context.Context, id string) error
}

// CachedAPI is a read-through cache in front of an API. Coupon redemption always
// goes to the upstream.
type CachedAPI struct {
	next   API
	cache  cache.Cache
	ttl    time.Duration
	flags  *features.Manager
	logger *elog.Component
}

func NewCachedAPI(next API, c cache.Cache, ttl time.Duration, flags *features.Manager, logger *elog.Component) *CachedAPI {
	return &CachedAPI{
		next: next,
		cache: cache.Namespaced{
			Namespace: "market-finder:directory:",
			C:         c,
		},
		ttl:    ttl,
		flags:  flags,
		logger: logger,
	}
}

func (a *CachedAPI) ListCategories(ctx context.Context) ([]models.Category, error) {
	return readThrough(ctx, a, "categories", func() ([]models.Category, error) {
		return a.next.ListCategories(ctx)
	})
}

func (a *CachedAPI) ListMarketsByCategory(ctx context.Context, categoryID string) ([]models.Market, error) {
	return readThrough(ctx, a, "markets:category:"+categoryID, func() ([]models.Market, error) {
		return a.next.ListMarketsByCategory(ctx, categoryID)
	})
}

func (a *CachedAPI) GetMarket(ctx context.Context, id string) (models.MarketDetail, error) {
	return readThrough(ctx, a, marketKey(id), func() (models.MarketDetail, error) {
		return a.next.GetMarket(ctx, id)
	})
}

func (a *CachedAPI) RedeemCoupon(ctx context.Context, couponID string) (models.Coupon, error) {
	return a.next.RedeemCoupon(ctx, couponID)
}

func (a *CachedAPI) ForgetMarket(ctx context.Context, id string) error {
	return a.cache.Delete(ctx, marketKey(id))
}

func marketKey(id string) string {
	return "market:" + id
}

func readThrough[T any](ctx context.Context, a *CachedAPI, key string, load func() (T, error)) (T, error) {
	if !a.flags.IsEnabled(features.FeatureCacheEnabled) {
		return load()
	}

	var cached T
	err := cache.GetJSON(ctx, a.cache, key, &cached)
	if err == nil {
		return cached, nil
	}
	if !errors.Is(err, cache.ErrNotFound) {
		a.logger.Warn("cache read failed", elog.String("key", key), elog.FieldErr(err))
	}

	val, err := load()
	if err != nil {
		return val, err
	}
	if err := cache.SetJSON(ctx, a.cache, key, val, a.ttl); err != nil {
		a.logger.Warn("cache write failed", elog.String("key", key), elog.FieldErr(err))
	}
	return val, nil
}
