package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/tourhub/offers/services/offer/internal/domain"
)

const keyPrefix = "offers:active:"

// scanBatch is the COUNT hint for InvalidateAll's SCAN.
const scanBatch = 100

// ActiveOfferCache implements repository.ActiveOfferCache using Redis.
type ActiveOfferCache struct {
	client redis.UniversalClient
	ttl    time.Duration
}

// NewActiveOfferCache creates a cache whose entries expire after ttl.
func NewActiveOfferCache(client redis.UniversalClient, ttl time.Duration) *ActiveOfferCache {
	return &ActiveOfferCache{client: client, ttl: ttl}
}

func key(tenantID string) string { return keyPrefix + tenantID }

// Get returns the tenant's cached active offers. A miss is (nil, false, nil).
func (c *ActiveOfferCache) Get(ctx context.Context, tenantID string) ([]*domain.Offer, bool, error) {
	data, err := c.client.Get(ctx, key(tenantID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("redis get active offers: %w", err)
	}

	var offers []*domain.Offer
	if err := json.Unmarshal(data, &offers); err != nil {
		return nil, false, fmt.Errorf("unmarshal active offers: %w", err)
	}
	return offers, true, nil
}

// Set stores the tenant's active offers with the configured TTL.
func (c *ActiveOfferCache) Set(ctx context.Context, tenantID string, offers []*domain.Offer) error {
	if offers == nil {
		offers = []*domain.Offer{}
	}
	data, err := json.Marshal(offers)
	if err != nil {
		return fmt.Errorf("marshal active offers: %w", err)
	}
	if err := c.client.Set(ctx, key(tenantID), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set active offers: %w", err)
	}
	return nil
}

// Invalidate removes the tenant's entry.
func (c *ActiveOfferCache) Invalidate(ctx context.Context, tenantID string) error {
	if err := c.client.Del(ctx, key(tenantID)).Err(); err != nil {
		return fmt.Errorf("redis del active offers: %w", err)
	}
	return nil
}

// InvalidateAll removes every tenant's entry.
func (c *ActiveOfferCache) InvalidateAll(ctx context.Context) error {
	iter := c.client.Scan(ctx, 0, keyPrefix+"*", scanBatch).Iterator()
	batch := make([]string, 0, scanBatch)
	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if len(batch) == scanBatch {
			if err := c.client.Del(ctx, batch...).Err(); err != nil {
				return fmt.Errorf("redis del active offers: %w", err)
			}
			batch = batch[:0]
		}
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("redis scan active offers: %w", err)
	}
	if len(batch) > 0 {
		if err := c.client.Del(ctx, batch...).Err(); err != nil {
			return fmt.Errorf("redis del active offers: %w", err)
		}
	}
	return nil
}
