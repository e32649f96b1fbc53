package engine

import (
	"slices"
	"time"

	"github.com/tourhub/offers/pkg/slug"
	"github.com/tourhub/offers/services/offer/internal/domain"
)

// AppliesToTour checks the offer's tour scope. An excluded tour never
// matches; a non-empty allow list must contain tourID; a selection for
// tourID without AllOptions must contain optionID.
func AppliesToTour(offer *domain.Offer, tourID, optionID string) bool {
	if slices.Contains(offer.ExcludedTours, tourID) {
		return false
	}
	if len(offer.ApplicableTours) > 0 && !slices.Contains(offer.ApplicableTours, tourID) {
		return false
	}
	for _, sel := range offer.TourOptionSelections {
		if sel.TourID != tourID || sel.AllOptions {
			continue
		}
		if !slices.Contains(sel.SelectedOptions, optionID) {
			return false
		}
	}
	return true
}

// AppliesByTravelDate checks lead-time terms. Early-bird offers need at
// least MinDaysInAdvance calendar days between now and travel; last-minute
// offers need at most MaxDaysBeforeTour and a travel date not in the past.
// Both fail without a travel date. Other types always pass.
func AppliesByTravelDate(offer *domain.Offer, travel, now time.Time) bool {
	switch t := offer.Terms.(type) {
	case domain.EarlyBird:
		return !travel.IsZero() && CalendarDaysBetween(now, travel) >= t.MinDaysInAdvance
	case domain.LastMinute:
		if travel.IsZero() {
			return false
		}
		days := CalendarDaysBetween(now, travel)
		return days >= 0 && days <= t.MaxDaysBeforeTour
	default:
		return true
	}
}

// AppliesToPromoCode lets promo-code offers through only when code matches
// theirs after normalization (case, surrounding space, separators). Other
// types ignore code.
func AppliesToPromoCode(offer *domain.Offer, code string) bool {
	t, ok := offer.Terms.(domain.PromoCode)
	if !ok {
		return true
	}
	want := slug.Code(t.Code)
	return want != "" && slug.Code(code) == want
}

// CalendarDaysBetween counts calendar days from from to to, both taken as
// dates in from's location. Times on the same date give 0; consecutive
// dates give 1 regardless of time of day.
func CalendarDaysBetween(from, to time.Time) int {
	loc := from.Location()
	fy, fm, fd := from.Date()
	ty, tm, td := to.In(loc).Date()
	a := time.Date(fy, fm, fd, 0, 0, 0, 0, time.UTC)
	b := time.Date(ty, tm, td, 0, 0, 0, 0, time.UTC)
	// Unix seconds, because Time.Sub saturates past about 292 years.
	return int((b.Unix() - a.Unix()) / 86400)
}
