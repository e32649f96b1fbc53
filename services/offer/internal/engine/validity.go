package engine

import (
	"time"

	"github.com/tourhub/offers/services/offer/internal/domain"
)

// Reasons an offer is not valid.
const (
	ReasonMissing       = "offer is missing"
	ReasonInactive      = "offer is inactive"
	ReasonNoWindow      = "offer has no validity window"
	ReasonBadWindow     = "offer ends before it starts"
	ReasonNotStarted    = "offer has not started yet"
	ReasonExpired       = "offer has expired"
	ReasonUsageExceeded = "offer usage limit reached"
)

// IsValid reports whether offer can be used at now at all, regardless of
// the booking it would apply to.
func IsValid(offer *domain.Offer, now time.Time) bool {
	ok, _ := CheckValidity(offer, now)
	return ok
}

// CheckValidity is IsValid with the reason for a negative answer. The
// window is inclusive at both ends. Missing or inverted windows are
// never valid.
func CheckValidity(offer *domain.Offer, now time.Time) (bool, string) {
	switch {
	case offer == nil:
		return false, ReasonMissing
	case !offer.IsActive:
		return false, ReasonInactive
	case offer.StartDate.IsZero() || offer.EndDate.IsZero():
		return false, ReasonNoWindow
	case offer.EndDate.Before(offer.StartDate):
		return false, ReasonBadWindow
	case now.Before(offer.StartDate):
		return false, ReasonNotStarted
	case now.After(EffectiveEnd(offer.EndDate, now.Location())):
		return false, ReasonExpired
	case offer.UsageExhausted():
		return false, ReasonUsageExceeded
	}
	return true, ""
}

// EffectiveEnd returns the last instant end covers. An end at midnight in
// loc is a date-only end and covers that whole calendar day.
func EffectiveEnd(end time.Time, loc *time.Location) time.Time {
	local := end.In(loc)
	if local.Hour() != 0 || local.Minute() != 0 || local.Second() != 0 || local.Nanosecond() != 0 {
		return end
	}
	return local.AddDate(0, 0, 1).Add(-time.Nanosecond)
}
