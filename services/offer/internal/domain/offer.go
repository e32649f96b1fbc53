package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// ActiveHorizon is how far past now an active-offer listing looks for
// offers about to start. A cached listing must not outlive it.
const ActiveHorizon = time.Hour

// TourOptionSelection restricts an offer to some options of one tour.
type TourOptionSelection struct {
	TourID          string   `json:"tour_id"`
	SelectedOptions []string `json:"selected_options"`
	AllOptions      bool     `json:"all_options"`
}

// Offer is a tenant's discount campaign. Money fields are minor units of
// Currency; zero MaxDiscount, MinBookingValue and UsageLimit mean "none".
type Offer struct {
	ID                   string
	TenantID             string
	Name                 string
	Description          string
	Terms                Terms
	MaxDiscount          int64
	Currency             string
	StartDate            time.Time
	EndDate              time.Time
	IsActive             bool
	UsageLimit           int
	UsedCount            int
	Priority             int
	MinBookingValue      int64
	ApplicableTours      []string
	ExcludedTours        []string
	TourOptionSelections []TourOptionSelection
	IsFeatured           bool
	FeaturedBadgeText    string
	EligibilityRule      string
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// Type returns the offer's type, or "" when it has no terms.
func (o *Offer) Type() OfferType {
	if o.Terms == nil {
		return ""
	}
	return o.Terms.Type()
}

// UsageExhausted reports whether a usage limit is set and reached.
func (o *Offer) UsageExhausted() bool {
	return o.UsageLimit > 0 && o.UsedCount >= o.UsageLimit
}

type offerJSON struct {
	ID          string `json:"id"`
	TenantID    string `json:"tenant_id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	FlatTerms
	MaxDiscount          int64                 `json:"max_discount,omitempty"`
	Currency             string                `json:"currency"`
	StartDate            time.Time             `json:"start_date"`
	EndDate              time.Time             `json:"end_date"`
	IsActive             bool                  `json:"is_active"`
	UsageLimit           int                   `json:"usage_limit,omitempty"`
	UsedCount            int                   `json:"used_count"`
	Priority             int                   `json:"priority"`
	MinBookingValue      int64                 `json:"min_booking_value,omitempty"`
	ApplicableTours      []string              `json:"applicable_tours,omitempty"`
	ExcludedTours        []string              `json:"excluded_tours,omitempty"`
	TourOptionSelections []TourOptionSelection `json:"tour_option_selections,omitempty"`
	IsFeatured           bool                  `json:"is_featured"`
	FeaturedBadgeText    string                `json:"featured_badge_text,omitempty"`
	EligibilityRule      string                `json:"eligibility_rule,omitempty"`
	CreatedAt            time.Time             `json:"created_at"`
	UpdatedAt            time.Time             `json:"updated_at"`
}

// MarshalJSON writes the offer with its terms flattened into top-level fields.
func (o Offer) MarshalJSON() ([]byte, error) {
	return json.Marshal(offerJSON{
		ID: o.ID, TenantID: o.TenantID, Name: o.Name, Description: o.Description,
		FlatTerms:   Flatten(o.Terms),
		MaxDiscount: o.MaxDiscount, Currency: o.Currency,
		StartDate: o.StartDate, EndDate: o.EndDate, IsActive: o.IsActive,
		UsageLimit: o.UsageLimit, UsedCount: o.UsedCount, Priority: o.Priority,
		MinBookingValue: o.MinBookingValue,
		ApplicableTours: o.ApplicableTours, ExcludedTours: o.ExcludedTours,
		TourOptionSelections: o.TourOptionSelections,
		IsFeatured:           o.IsFeatured, FeaturedBadgeText: o.FeaturedBadgeText,
		EligibilityRule: o.EligibilityRule,
		CreatedAt:       o.CreatedAt, UpdatedAt: o.UpdatedAt,
	})
}

// UnmarshalJSON reads the flat layout, rejecting unknown offer types.
func (o *Offer) UnmarshalJSON(b []byte) error {
	var j offerJSON
	if err := json.Unmarshal(b, &j); err != nil {
		return err
	}
	terms, err := j.FlatTerms.Terms()
	if err != nil {
		return fmt.Errorf("decode offer %s: %w", j.ID, err)
	}
	*o = Offer{
		ID: j.ID, TenantID: j.TenantID, Name: j.Name, Description: j.Description,
		Terms:       terms,
		MaxDiscount: j.MaxDiscount, Currency: j.Currency,
		StartDate: j.StartDate, EndDate: j.EndDate, IsActive: j.IsActive,
		UsageLimit: j.UsageLimit, UsedCount: j.UsedCount, Priority: j.Priority,
		MinBookingValue: j.MinBookingValue,
		ApplicableTours: j.ApplicableTours, ExcludedTours: j.ExcludedTours,
		TourOptionSelections: j.TourOptionSelections,
		IsFeatured:           j.IsFeatured, FeaturedBadgeText: j.FeaturedBadgeText,
		EligibilityRule: j.EligibilityRule,
		CreatedAt:       j.CreatedAt, UpdatedAt: j.UpdatedAt,
	}
	return nil
}

// DiscountResult is the outcome of applying one offer to one base price.
// When IsApplicable is false no discount was applied and Reason says why.
type DiscountResult struct {
	OriginalPrice      int64  `json:"original_price"`
	DiscountedPrice    int64  `json:"discounted_price"`
	DiscountAmount     int64  `json:"discount_amount"`
	DiscountPercentage int64  `json:"discount_percentage"`
	Offer              *Offer `json:"offer"`
	IsApplicable       bool   `json:"is_applicable"`
	Reason             string `json:"reason,omitempty"`
}

// ListFilter narrows admin listings. Nil pointers mean "any".
type ListFilter struct {
	Type     OfferType
	Active   *bool
	Featured *bool
	Page     int
	PerPage  int
}
