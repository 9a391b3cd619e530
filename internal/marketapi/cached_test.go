package marketapi_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/gotomicro/ego/core/elog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"market-finder/internal/cache"
	"market-finder/internal/features"
	"market-finder/internal/marketapi"
	apimocks "market-finder/internal/marketapi/mocks"
	"market-finder/internal/models"
)

func TestCachedAPI_ReadThrough(t *testing.T) {
	ctrl := gomock.NewController(t)
	upstream := apimocks.NewMockAPI(ctrl)
	upstream.EXPECT().ListCategories(gomock.Any()).Return([]models.Category{{ID: "c1", Name: "Food"}}, nil).Times(1)
	upstream.EXPECT().GetMarket(gomock.Any(), "m1").Return(models.MarketDetail{Market: models.Market{ID: "m1"}, Coupons: 3}, nil).Times(2)

	api := marketapi.NewCachedAPI(upstream, cache.NewInMemoryCache(), time.Minute, features.NewManager(), elog.DefaultLogger)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		got, err := api.ListCategories(ctx)
		require.NoError(t, err)
		assert.Equal(t, []models.Category{{ID: "c1", Name: "Food"}}, got)
	}

	got, err := api.GetMarket(ctx, "m1")
	require.NoError(t, err)
	assert.Equal(t, 3, got.Coupons)

	_, err = api.GetMarket(ctx, "m1")
	require.NoError(t, err)

	require.NoError(t, api.ForgetMarket(ctx, "m1"))
	_, err = api.GetMarket(ctx, "m1")
	require.NoError(t, err)
}

func TestCachedAPI_ErrorsAreNotCached(t *testing.T) {
	ctrl := gomock.NewController(t)
	upstream := apimocks.NewMockAPI(ctrl)
	gomock.InOrder(
		upstream.EXPECT().ListMarketsByCategory(gomock.Any(), "c1").Return(nil, errors.New("upstream down")),
		upstream.EXPECT().ListMarketsByCategory(gomock.Any(), "c1").Return([]models.Market{{ID: "m1"}}, nil),
	)

	api := marketapi.NewCachedAPI(upstream, cache.NewInMemoryCache(), time.Minute, features.NewManager(), elog.DefaultLogger)
	ctx := context.Background()

	_, err := api.ListMarketsByCategory(ctx, "c1")
	assert.Error(t, err)

	got, err := api.ListMarketsByCategory(ctx, "c1")
	require.NoError(t, err)
	assert.Len(t, got, 1)

	got, err = api.ListMarketsByCategory(ctx, "c1")
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestCachedAPI_RedeemBypassesCache(t *testing.T) {
	ctrl := gomock.NewController(t)
	upstream := apimocks.NewMockAPI(ctrl)
	upstream.EXPECT().RedeemCoupon(gomock.Any(), "c-1").Return(models.Coupon{Code: "A"}, nil).Times(2)

	api := marketapi.NewCachedAPI(upstream, cache.NewInMemoryCache(), time.Minute, features.NewManager(), elog.DefaultLogger)
	for i := 0; i < 2; i++ {
		_, err := api.RedeemCoupon(context.Background(), "c-1")
		require.NoError(t, err)
	}
}

func TestCachedAPI_FlagDisabled(t *testing.T) {
	ctrl := gomock.NewController(t)
	upstream := apimocks.NewMockAPI(ctrl)
	upstream.EXPECT().ListCategories(gomock.Any()).Return([]models.Category{{ID: "c1"}}, nil).Times(2)

	flags := features.NewManager()
	flags.Set(features.FeatureCacheEnabled, false)
	api := marketapi.NewCachedAPI(upstream, cache.NewInMemoryCache(), time.Minute, flags, elog.DefaultLogger)

	for i := 0; i < 2; i++ {
		_, err := api.ListCategories(context.Background())
		require.NoError(t, err)
	}
}
