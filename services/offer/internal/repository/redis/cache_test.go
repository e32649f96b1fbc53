package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tourhub/offers/services/offer/internal/domain"
	"github.com/tourhub/offers/services/offer/internal/repository"
)

var _ repository.ActiveOfferCache = (*ActiveOfferCache)(nil)

func setupTestRedis(t *testing.T) (*ActiveOfferCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewActiveOfferCache(client, time.Minute), mr
}

func sampleOffers() []*domain.Offer {
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	return []*domain.Offer{
		{
			ID:         "offer-1",
			TenantID:   "acme",
			Name:       "Groups of 4+",
			Terms:      domain.Group{MinGroupSize: 4, Value: domain.Percent(1000)},
			Currency:   "EUR",
			StartDate:  now,
			EndDate:    now.AddDate(0, 1, 0),
			IsActive:   true,
			Priority:   3,
			UsageLimit: 10,
			UsedCount:  2,
			CreatedAt:  now,
			UpdatedAt:  now,
		},
		{
			ID:        "offer-2",
			TenantID:  "acme",
			Name:      "Flat 5",
			Terms:     domain.Fixed{Amount: 500},
			Currency:  "EUR",
			StartDate: now,
			EndDate:   now.AddDate(0, 2, 0),
			IsActive:  true,
			CreatedAt: now,
			UpdatedAt: now,
		},
	}
}

func TestActiveOfferCache_GetMiss(t *testing.T) {
	cache, _ := setupTestRedis(t)

	offers, ok, err := cache.Get(context.Background(), "acme")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, offers)
}

func TestActiveOfferCache_SetThenGet(t *testing.T) {
	cache, mr := setupTestRedis(t)
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, "acme", sampleOffers()))
	assert.True(t, mr.Exists("offers:active:acme"))
	assert.Equal(t, time.Minute, mr.TTL("offers:active:acme"))

	offers, ok, err := cache.Get(ctx, "acme")
	require.NoError(t, err)
	require.True(t, ok)
	require.Len(t, offers, 2)
	assert.Equal(t, "offer-1", offers[0].ID)
	assert.Equal(t, domain.Group{MinGroupSize: 4, Value: domain.Percent(1000)}, offers[0].Terms)
	assert.Equal(t, 2, offers[0].UsedCount)
	assert.Equal(t, domain.Fixed{Amount: 500}, offers[1].Terms)
}

func TestActiveOfferCache_EmptyListIsAHit(t *testing.T) {
	cache, _ := setupTestRedis(t)
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, "acme", nil))
	offers, ok, err := cache.Get(ctx, "acme")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Empty(t, offers)
}

func TestActiveOfferCache_Expires(t *testing.T) {
	cache, mr := setupTestRedis(t)
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, "acme", sampleOffers()))
	mr.FastForward(2 * time.Minute)

	_, ok, err := cache.Get(ctx, "acme")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestActiveOfferCache_TenantsAreSeparate(t *testing.T) {
	cache, _ := setupTestRedis(t)
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, "acme", sampleOffers()))
	_, ok, err := cache.Get(ctx, "globex")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestActiveOfferCache_Invalidate(t *testing.T) {
	cache, mr := setupTestRedis(t)
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, "acme", sampleOffers()))
	require.NoError(t, cache.Set(ctx, "globex", sampleOffers()))
	require.NoError(t, cache.Invalidate(ctx, "acme"))

	assert.False(t, mr.Exists("offers:active:acme"))
	assert.True(t, mr.Exists("offers:active:globex"))
}

func TestActiveOfferCache_InvalidateAll(t *testing.T) {
	cache, mr := setupTestRedis(t)
	ctx := context.Background()

	for _, tenant := range []string{"a", "b", "c"} {
		require.NoError(t, cache.Set(ctx, tenant, sampleOffers()))
	}
	require.NoError(t, mr.Set("unrelated", "keep"))

	require.NoError(t, cache.InvalidateAll(ctx))

	assert.False(t, mr.Exists("offers:active:a"))
	assert.False(t, mr.Exists("offers:active:b"))
	assert.False(t, mr.Exists("offers:active:c"))
	assert.True(t, mr.Exists("unrelated"))
}

func TestActiveOfferCache_CorruptEntry(t *testing.T) {
	cache, mr := setupTestRedis(t)
	require.NoError(t, mr.Set("offers:active:acme", "{not json"))

	_, _, err := cache.Get(context.Background(), "acme")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unmarshal active offers")
}

func TestActiveOfferCache_ServerDown(t *testing.T) {
	cache, mr := setupTestRedis(t)
	mr.Close()

	_, _, err := cache.Get(context.Background(), "acme")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "redis get active offers")
}
