package repository

import (
	"context"
	"time"

	"github.com/tourhub/offers/services/offer/internal/domain"
)

// OfferRepository persists offers and their redemptions. Every lookup is
// scoped to a tenant; an offer of another tenant is reported as not found.
type OfferRepository interface {
	// Create inserts a new offer.
	Create(ctx context.Context, offer *domain.Offer) error

	// GetByID returns one offer of the tenant.
	GetByID(ctx context.Context, tenantID, id string) (*domain.Offer, error)

	// List returns a page of offers matching filter and the total match count.
	List(ctx context.Context, tenantID string, filter domain.ListFilter) ([]*domain.Offer, int, error)

	// ListActive returns the tenant's active offers whose window may cover
	// now and whose usage limit is not reached, ordered by priority desc,
	// created_at asc, id asc.
	ListActive(ctx context.Context, tenantID string, now time.Time) ([]*domain.Offer, error)

	// Update overwrites an existing offer's mutable fields.
	Update(ctx context.Context, offer *domain.Offer) error

	// Redeem atomically takes one use of the offer and records the
	// redemption. It returns the offer's new used count, a Conflict error
	// when the usage limit is already reached and AlreadyExists when the
	// booking already redeemed this offer.
	Redeem(ctx context.Context, redemption *domain.Redemption, at time.Time) (int, error)
}

// ActiveOfferCache holds each tenant's ListActive result for a short TTL.
type ActiveOfferCache interface {
	// Get returns the cached offers and whether there was an entry.
	Get(ctx context.Context, tenantID string) ([]*domain.Offer, bool, error)

	// Set replaces the tenant's entry.
	Set(ctx context.Context, tenantID string, offers []*domain.Offer) error

	// Invalidate drops the tenant's entry.
	Invalidate(ctx context.Context, tenantID string) error

	// InvalidateAll drops every tenant's entry.
	InvalidateAll(ctx context.Context) error
}
