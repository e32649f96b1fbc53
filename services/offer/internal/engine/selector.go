package engine

import (
	"time"

	"github.com/tourhub/offers/services/offer/internal/domain"
)

// Options is the booking context for BestOffer.
type Options struct {
	Now        time.Time
	TravelDate time.Time // zero when unknown
	PartySize  int
	ItemCount  int
}

// BestOffer returns the applicable offer with the largest discount on
// basePrice, or nil when there is none. Invalid offers are skipped before
// any comparison, as are lead-time offers the travel date rules out. A zero
// TravelDate rules out every early bird and last minute offer.
// Equal discounts go to the higher Priority, then to the earlier offer in
// the slice, so callers must pass offers in a stable order.
func BestOffer(offers []*domain.Offer, basePrice int64, opts Options) *domain.DiscountResult {
	var best *domain.DiscountResult
	cc := CalcContext{PartySize: opts.PartySize, ItemCount: opts.ItemCount}

	for _, o := range offers {
		if !IsValid(o, opts.Now) {
			continue
		}
		if !AppliesByTravelDate(o, opts.TravelDate, opts.Now) {
			continue
		}
		res := Calculate(basePrice, o, cc)
		if !res.IsApplicable {
			continue
		}
		if best == nil || beats(res, *best) {
			r := res
			best = &r
		}
	}
	return best
}

// beats reports whether a strictly outranks b. Ties keep b.
func beats(a, b domain.DiscountResult) bool {
	if a.DiscountAmount != b.DiscountAmount {
		return a.DiscountAmount > b.DiscountAmount
	}
	return a.Offer.Priority > b.Offer.Priority
}
