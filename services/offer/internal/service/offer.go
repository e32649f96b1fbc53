package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/tourhub/offers/pkg/clock"
	apperrors "github.com/tourhub/offers/pkg/errors"
	"github.com/tourhub/offers/pkg/slug"
	"github.com/tourhub/offers/services/offer/internal/domain"
	"github.com/tourhub/offers/services/offer/internal/engine"
	"github.com/tourhub/offers/services/offer/internal/event"
	"github.com/tourhub/offers/services/offer/internal/metrics"
	"github.com/tourhub/offers/services/offer/internal/repository"
	"github.com/tourhub/offers/services/offer/internal/rules"
)

// OfferService implements offer administration and the evaluation
// pipeline used by tour display and booking creation.
type OfferService struct {
	repo     repository.OfferRepository
	cache    repository.ActiveOfferCache
	rules    *rules.Evaluator
	producer *event.Producer
	metrics  *metrics.Offers
	clock    clock.Clock
	loc      *time.Location
	logger   *slog.Logger

	loads singleflight.Group

	mu          sync.Mutex
	generations map[string]uint64
}

// loadTimeout bounds a shared active-offer load. The load outlives the
// request that started it, so it cannot borrow that request's deadline.
const loadTimeout = 5 * time.Second

// Option configures an OfferService.
type Option func(*OfferService)

// WithCache serves ListActive results through cache.
func WithCache(cache repository.ActiveOfferCache) Option {
	return func(s *OfferService) { s.cache = cache }
}

// WithClock replaces the wall clock.
func WithClock(c clock.Clock) Option {
	return func(s *OfferService) { s.clock = c }
}

// WithLocation sets the tenant timezone that calendar days and date-only
// windows are evaluated in. The default is UTC.
func WithLocation(loc *time.Location) Option {
	return func(s *OfferService) { s.loc = loc }
}

// WithMetrics records business metrics.
func WithMetrics(m *metrics.Offers) Option {
	return func(s *OfferService) { s.metrics = m }
}

// NewOfferService creates a new offer service.
func NewOfferService(
	repo repository.OfferRepository,
	evaluator *rules.Evaluator,
	producer *event.Producer,
	logger *slog.Logger,
	opts ...Option,
) *OfferService {
	s := &OfferService{
		repo:     repo,
		rules:    evaluator,
		producer: producer,
		clock:    clock.New(),
		loc:      time.UTC,
		logger:   logger,

		generations: make(map[string]uint64),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Location returns the timezone offers are evaluated in.
func (s *OfferService) Location() *time.Location { return s.loc }

func (s *OfferService) now() time.Time { return s.clock.Now().In(s.loc) }

// ---------------------------------------------------------------------------
// Inputs and results
// ---------------------------------------------------------------------------

// CreateOfferInput holds the parameters for creating an offer.
type CreateOfferInput struct {
	Name                 string
	Description          string
	Terms                domain.FlatTerms
	MaxDiscount          int64
	Currency             string
	StartDate            time.Time
	EndDate              time.Time
	IsActive             *bool
	UsageLimit           int
	Priority             int
	MinBookingValue      int64
	ApplicableTours      []string
	ExcludedTours        []string
	TourOptionSelections []domain.TourOptionSelection
	IsFeatured           bool
	FeaturedBadgeText    string
	EligibilityRule      string
}

// UpdateOfferInput holds the fields to change. Nil fields are kept.
type UpdateOfferInput struct {
	Name                 *string
	Description          *string
	Terms                *domain.FlatTerms
	MaxDiscount          *int64
	Currency             *string
	StartDate            *time.Time
	EndDate              *time.Time
	IsActive             *bool
	UsageLimit           *int
	Priority             *int
	MinBookingValue      *int64
	ApplicableTours      *[]string
	ExcludedTours        *[]string
	TourOptionSelections *[]domain.TourOptionSelection
	IsFeatured           *bool
	FeaturedBadgeText    *string
	EligibilityRule      *string
}

// BookingInput describes the booking an offer is evaluated against.
// TravelDate is zero when unknown.
type BookingInput struct {
	TourID     string
	OptionID   string
	TravelDate time.Time
	PartySize  int
	ItemCount  int
	BasePrice  int64
	PromoCode  string
	CustomerID string
}

// RedeemInput identifies the offer and booking of a redemption.
type RedeemInput struct {
	OfferID   string
	BookingID string
	BookingInput
}

// RedeemResult is a recorded redemption with the recomputed discount.
type RedeemResult struct {
	Redemption *domain.Redemption     `json:"redemption"`
	Discount   *domain.DiscountResult `json:"discount"`
	UsedCount  int                    `json:"used_count"`
}

// OfferView is an offer with its presentation fields for display.
type OfferView struct {
	Offer         *domain.Offer     `json:"offer"`
	DisplayText   string            `json:"display_text"`
	BadgeText     string            `json:"badge_text"`
	Badge         engine.BadgeStyle `json:"badge"`
	TimeRemaining string            `json:"time_remaining"`
	Urgent        bool              `json:"urgent"`
}

// ---------------------------------------------------------------------------
// Administration
// ---------------------------------------------------------------------------

// CreateOffer validates and stores a new offer for tenantID.
func (s *OfferService) CreateOffer(ctx context.Context, tenantID string, input *CreateOfferInput) (*domain.Offer, error) {
	terms, err := input.Terms.Terms()
	if err != nil {
		return nil, apperrors.InvalidInput(err.Error())
	}

	now := s.clock.Now().UTC()
	offer := &domain.Offer{
		ID:                   uuid.New().String(),
		TenantID:             tenantID,
		Name:                 strings.TrimSpace(input.Name),
		Description:          input.Description,
		Terms:                terms,
		MaxDiscount:          input.MaxDiscount,
		Currency:             strings.ToUpper(input.Currency),
		StartDate:            input.StartDate,
		EndDate:              input.EndDate,
		IsActive:             input.IsActive == nil || *input.IsActive,
		UsageLimit:           input.UsageLimit,
		Priority:             input.Priority,
		MinBookingValue:      input.MinBookingValue,
		ApplicableTours:      input.ApplicableTours,
		ExcludedTours:        input.ExcludedTours,
		TourOptionSelections: input.TourOptionSelections,
		IsFeatured:           input.IsFeatured,
		FeaturedBadgeText:    input.FeaturedBadgeText,
		EligibilityRule:      strings.TrimSpace(input.EligibilityRule),
		CreatedAt:            now,
		UpdatedAt:            now,
	}
	if err := s.prepare(offer); err != nil {
		return nil, err
	}

	if err := s.repo.Create(ctx, offer); err != nil {
		return nil, fmt.Errorf("create offer: %w", err)
	}
	s.invalidate(ctx, tenantID)

	if err := s.producer.PublishOfferCreated(ctx, offer); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish offer.created event",
			slog.String("offer_id", offer.ID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "offer created",
		slog.String("offer_id", offer.ID),
		slog.String("type", string(offer.Type())),
	)
	return offer, nil
}

// GetOffer returns one offer of tenantID.
func (s *OfferService) GetOffer(ctx context.Context, tenantID, id string) (*domain.Offer, error) {
	offer, err := s.repo.GetByID(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	return offer, nil
}

// ListOffers returns a page of tenantID's offers and the total count.
func (s *OfferService) ListOffers(ctx context.Context, tenantID string, filter domain.ListFilter) ([]*domain.Offer, int, error) {
	if filter.Type != "" && !domain.IsValidType(filter.Type) {
		return nil, 0, apperrors.InvalidInput(fmt.Sprintf("invalid offer type %q", filter.Type))
	}
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PerPage < 1 {
		filter.PerPage = 20
	}
	offers, total, err := s.repo.List(ctx, tenantID, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("list offers: %w", err)
	}
	return offers, total, nil
}

// UpdateOffer applies input to an existing offer.
func (s *OfferService) UpdateOffer(ctx context.Context, tenantID, id string, input *UpdateOfferInput) (*domain.Offer, error) {
	offer, err := s.repo.GetByID(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}

	if input.Terms != nil {
		terms, err := input.Terms.Terms()
		if err != nil {
			return nil, apperrors.InvalidInput(err.Error())
		}
		offer.Terms = terms
	}
	if input.Name != nil {
		offer.Name = strings.TrimSpace(*input.Name)
	}
	if input.Description != nil {
		offer.Description = *input.Description
	}
	if input.MaxDiscount != nil {
		offer.MaxDiscount = *input.MaxDiscount
	}
	if input.Currency != nil {
		offer.Currency = strings.ToUpper(*input.Currency)
	}
	if input.StartDate != nil {
		offer.StartDate = *input.StartDate
	}
	if input.EndDate != nil {
		offer.EndDate = *input.EndDate
	}
	if input.IsActive != nil {
		offer.IsActive = *input.IsActive
	}
	if input.UsageLimit != nil {
		offer.UsageLimit = *input.UsageLimit
	}
	if input.Priority != nil {
		offer.Priority = *input.Priority
	}
	if input.MinBookingValue != nil {
		offer.MinBookingValue = *input.MinBookingValue
	}
	if input.ApplicableTours != nil {
		offer.ApplicableTours = *input.ApplicableTours
	}
	if input.ExcludedTours != nil {
		offer.ExcludedTours = *input.ExcludedTours
	}
	if input.TourOptionSelections != nil {
		offer.TourOptionSelections = *input.TourOptionSelections
	}
	if input.IsFeatured != nil {
		offer.IsFeatured = *input.IsFeatured
	}
	if input.FeaturedBadgeText != nil {
		offer.FeaturedBadgeText = *input.FeaturedBadgeText
	}
	if input.EligibilityRule != nil {
		offer.EligibilityRule = strings.TrimSpace(*input.EligibilityRule)
	}

	if err := s.prepare(offer); err != nil {
		return nil, err
	}
	return s.save(ctx, offer, "offer updated")
}

// DeactivateOffer switches an offer off. Deactivating an inactive offer
// is a no-op.
func (s *OfferService) DeactivateOffer(ctx context.Context, tenantID, id string) (*domain.Offer, error) {
	offer, err := s.repo.GetByID(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	if !offer.IsActive {
		return offer, nil
	}
	offer.IsActive = false
	return s.save(ctx, offer, "offer deactivated")
}

func (s *OfferService) save(ctx context.Context, offer *domain.Offer, msg string) (*domain.Offer, error) {
	offer.UpdatedAt = s.clock.Now().UTC()
	if err := s.repo.Update(ctx, offer); err != nil {
		return nil, fmt.Errorf("update offer: %w", err)
	}
	s.invalidate(ctx, offer.TenantID)

	if err := s.producer.PublishOfferUpdated(ctx, offer); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish offer.updated event",
			slog.String("offer_id", offer.ID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, msg,
		slog.String("offer_id", offer.ID),
		slog.Bool("is_active", offer.IsActive),
	)
	return offer, nil
}

// prepare normalizes offer and checks everything a stored offer must satisfy.
func (s *OfferService) prepare(offer *domain.Offer) error {
	if t, ok := offer.Terms.(domain.PromoCode); ok {
		t.Code = slug.Code(t.Code)
		offer.Terms = t
	}

	if offer.Name == "" {
		return apperrors.InvalidInput("offer name is required")
	}
	if err := domain.ValidateTerms(offer.Terms); err != nil {
		return apperrors.InvalidInput(err.Error())
	}
	if len(offer.Currency) != 3 {
		return apperrors.InvalidInput("currency must be a 3-letter ISO code")
	}
	if offer.StartDate.IsZero() || offer.EndDate.IsZero() {
		return apperrors.InvalidInput("start date and end date are required")
	}
	if offer.EndDate.Before(offer.StartDate) {
		return apperrors.InvalidInput("end date must not be before start date")
	}
	if offer.MaxDiscount < 0 {
		return apperrors.InvalidInput("max discount must not be negative")
	}
	if offer.MinBookingValue < 0 {
		return apperrors.InvalidInput("min booking value must not be negative")
	}
	if offer.UsageLimit < 0 {
		return apperrors.InvalidInput("usage limit must not be negative")
	}
	for _, sel := range offer.TourOptionSelections {
		if sel.TourID == "" {
			return apperrors.InvalidInput("tour option selection needs a tour id")
		}
	}
	if offer.EligibilityRule != "" {
		if err := s.rules.Compile(offer.EligibilityRule); err != nil {
			return apperrors.InvalidInput(err.Error())
		}
	}
	return nil
}

// ---------------------------------------------------------------------------
// Evaluation
// ---------------------------------------------------------------------------

// EvaluateBestOffer picks the offer giving the largest discount for the
// booking, or returns nil when no offer applies.
func (s *OfferService) EvaluateBestOffer(ctx context.Context, tenantID string, in BookingInput) (*domain.DiscountResult, error) {
	now := s.now()

	offers, err := s.activeOffers(ctx, tenantID, now)
	if err != nil {
		s.metrics.Evaluation(metrics.OutcomeError)
		return nil, err
	}

	facts := s.facts(in, now)
	candidates := make([]*domain.Offer, 0, len(offers))
	for _, o := range offers {
		if !engine.AppliesToTour(o, in.TourID, in.OptionID) {
			continue
		}
		if !engine.AppliesToPromoCode(o, in.PromoCode) {
			continue
		}
		if !s.rules.Matches(o.EligibilityRule, facts) {
			continue
		}
		candidates = append(candidates, o)
	}

	best := engine.BestOffer(candidates, in.BasePrice, engine.Options{
		Now:        now,
		TravelDate: in.TravelDate,
		PartySize:  in.PartySize,
		ItemCount:  in.ItemCount,
	})
	if best == nil {
		s.metrics.Evaluation(metrics.OutcomeNoOffer)
		return nil, nil
	}

	s.metrics.Evaluation(metrics.OutcomeApplied)
	s.metrics.Discount(string(best.Offer.Type()), best.DiscountAmount)
	return best, nil
}

// QuoteOffer computes what one offer would give the booking without
// redeeming it. A result that does not apply carries the reason.
func (s *OfferService) QuoteOffer(ctx context.Context, tenantID, offerID string, in BookingInput) (*domain.DiscountResult, error) {
	offer, err := s.repo.GetByID(ctx, tenantID, offerID)
	if err != nil {
		return nil, err
	}
	res := s.quote(offer, in, s.now())
	return &res, nil
}

func (s *OfferService) quote(offer *domain.Offer, in BookingInput, now time.Time) domain.DiscountResult {
	notApplicable := func(reason string) domain.DiscountResult {
		return domain.DiscountResult{
			OriginalPrice:   in.BasePrice,
			DiscountedPrice: in.BasePrice,
			Offer:           offer,
			Reason:          reason,
		}
	}

	if ok, reason := engine.CheckValidity(offer, now); !ok {
		return notApplicable(reason)
	}
	if !engine.AppliesToTour(offer, in.TourID, in.OptionID) {
		return notApplicable("offer does not apply to this tour")
	}
	if !engine.AppliesByTravelDate(offer, in.TravelDate, now) {
		return notApplicable("offer does not apply to this travel date")
	}
	if !engine.AppliesToPromoCode(offer, in.PromoCode) {
		return notApplicable("promo code does not match")
	}
	if !s.rules.Matches(offer.EligibilityRule, s.facts(in, now)) {
		return notApplicable("booking does not meet the offer's eligibility rule")
	}
	return engine.Calculate(in.BasePrice, offer, engine.CalcContext{
		PartySize: in.PartySize,
		ItemCount: in.ItemCount,
	})
}

// RedeemOffer recomputes the discount for the booking and records one use
// of the offer. It fails with InvalidInput when the offer does not apply,
// Conflict when its usage limit is reached and AlreadyExists when the
// booking already redeemed it.
func (s *OfferService) RedeemOffer(ctx context.Context, tenantID string, in RedeemInput) (*RedeemResult, error) {
	offer, err := s.repo.GetByID(ctx, tenantID, in.OfferID)
	if err != nil {
		s.metrics.Redemption(metrics.OutcomeError)
		return nil, err
	}

	now := s.now()
	res := s.quote(offer, in.BookingInput, now)
	if !res.IsApplicable {
		if res.Reason == engine.ReasonUsageExceeded {
			s.metrics.Redemption(metrics.OutcomeLimit)
			return nil, apperrors.Conflict(res.Reason)
		}
		s.metrics.Redemption(metrics.OutcomeRejected)
		return nil, apperrors.InvalidInput(res.Reason)
	}

	redemption := &domain.Redemption{
		ID:             uuid.New().String(),
		TenantID:       tenantID,
		OfferID:        offer.ID,
		BookingID:      in.BookingID,
		CustomerID:     in.CustomerID,
		OriginalPrice:  res.OriginalPrice,
		DiscountAmount: res.DiscountAmount,
		FinalPrice:     res.DiscountedPrice,
		Currency:       offer.Currency,
		RedeemedAt:     now.UTC(),
	}

	used, err := s.repo.Redeem(ctx, redemption, redemption.RedeemedAt)
	if err != nil {
		switch {
		case errors.Is(err, apperrors.ErrConflict):
			s.metrics.Redemption(metrics.OutcomeLimit)
		case errors.Is(err, apperrors.ErrAlreadyExists), errors.Is(err, apperrors.ErrNotFound):
			s.metrics.Redemption(metrics.OutcomeRejected)
		default:
			s.metrics.Redemption(metrics.OutcomeError)
		}
		return nil, err
	}
	offer.UsedCount = used
	s.invalidate(ctx, tenantID)

	if err := s.producer.PublishOfferRedeemed(ctx, redemption, used); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish offer.redeemed event",
			slog.String("offer_id", offer.ID),
			slog.String("booking_id", in.BookingID),
			slog.String("error", err.Error()),
		)
	}

	s.metrics.Redemption(metrics.OutcomeRedeemed)
	s.metrics.Discount(string(offer.Type()), res.DiscountAmount)
	s.logger.InfoContext(ctx, "offer redeemed",
		slog.String("offer_id", offer.ID),
		slog.String("booking_id", in.BookingID),
		slog.Int64("discount_amount", res.DiscountAmount),
		slog.Int("used_count", used),
	)
	return &RedeemResult{Redemption: redemption, Discount: &res, UsedCount: used}, nil
}

// ListFeaturedOffers returns the tenant's currently valid featured offers
// with their display fields, in evaluation order.
func (s *OfferService) ListFeaturedOffers(ctx context.Context, tenantID string) ([]OfferView, error) {
	now := s.now()
	offers, err := s.activeOffers(ctx, tenantID, now)
	if err != nil {
		return nil, err
	}

	views := []OfferView{}
	for _, o := range offers {
		if !o.IsFeatured || !engine.IsValid(o, now) {
			continue
		}
		views = append(views, OfferView{
			Offer:         o,
			DisplayText:   engine.DisplayText(o),
			BadgeText:     engine.BadgeText(o),
			Badge:         engine.BadgeColor(o.Type()),
			TimeRemaining: engine.TimeRemaining(o.EndDate, now),
			Urgent:        engine.ShowUrgency(o.EndDate, now),
		})
	}
	return views, nil
}

func (s *OfferService) facts(in BookingInput, now time.Time) rules.Facts {
	days := -1
	if !in.TravelDate.IsZero() {
		days = engine.CalendarDaysBetween(now, in.TravelDate)
	}
	return rules.Facts{
		TourID:          in.TourID,
		OptionID:        in.OptionID,
		CustomerID:      in.CustomerID,
		PartySize:       in.PartySize,
		ItemCount:       in.ItemCount,
		BasePrice:       in.BasePrice,
		TravelDaysAhead: days,
	}
}

// ---------------------------------------------------------------------------
// Active offer cache
// ---------------------------------------------------------------------------

// activeOffers reads the tenant's active offers through the cache.
// Concurrent misses for one tenant share a single repository load. Cache
// failures degrade to the repository.
func (s *OfferService) activeOffers(ctx context.Context, tenantID string, now time.Time) ([]*domain.Offer, error) {
	if s.cache != nil {
		offers, ok, err := s.cache.Get(ctx, tenantID)
		if err != nil {
			s.logger.WarnContext(ctx, "active offer cache read failed",
				slog.String("error", err.Error()),
			)
		}
		if ok {
			s.metrics.Cache(true)
			return offers, nil
		}
		s.metrics.Cache(false)
	}

	gen := s.generation(tenantID)
	v, err, _ := s.loads.Do(tenantID, func() (any, error) {
		loadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), loadTimeout)
		defer cancel()

		offers, err := s.repo.ListActive(loadCtx, tenantID, now)
		if err != nil {
			return nil, fmt.Errorf("load active offers: %w", err)
		}
		// An invalidation during the load means offers may already be stale.
		if s.cache != nil && s.generation(tenantID) == gen {
			if err := s.cache.Set(loadCtx, tenantID, offers); err != nil {
				s.logger.WarnContext(ctx, "active offer cache write failed",
					slog.String("error", err.Error()),
				)
			}
		}
		return offers, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]*domain.Offer), nil
}

func (s *OfferService) generation(tenantID string) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.generations[tenantID]
}

func (s *OfferService) invalidate(ctx context.Context, tenantID string) {
	s.mu.Lock()
	s.generations[tenantID]++
	s.mu.Unlock()
	s.loads.Forget(tenantID)

	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, tenantID); err != nil {
		s.logger.WarnContext(ctx, "active offer cache invalidation failed",
			slog.String("tenant_id", tenantID),
			slog.String("error", err.Error()),
		)
	}
}
