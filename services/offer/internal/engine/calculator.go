package engine

import (
	"fmt"
	"math"
	"math/big"

	"github.com/tourhub/offers/services/offer/internal/domain"
)

// CalcContext carries the booking facts the calculator checks.
type CalcContext struct {
	PartySize int
	ItemCount int
}

// Calculate applies offer to basePrice (minor units). It never fails: an
// unusable combination yields IsApplicable=false, no discount and a
// Reason. Percent values round half up to the minor unit. The amount is
// capped at MaxDiscount when set and always at basePrice.
func Calculate(basePrice int64, offer *domain.Offer, cc CalcContext) domain.DiscountResult {
	res := domain.DiscountResult{
		OriginalPrice:   basePrice,
		DiscountedPrice: basePrice,
		Offer:           offer,
	}

	if basePrice <= 0 {
		res.DiscountedPrice = 0
		res.Reason = "base price must be positive"
		return res
	}
	if offer == nil || offer.Terms == nil {
		res.Reason = "offer has no discount terms"
		return res
	}
	if offer.MinBookingValue > 0 && basePrice < offer.MinBookingValue {
		res.Reason = fmt.Sprintf("booking value %d is below the minimum of %d", basePrice, offer.MinBookingValue)
		return res
	}

	switch t := offer.Terms.(type) {
	case domain.Group:
		if cc.PartySize < t.MinGroupSize {
			res.Reason = fmt.Sprintf("party of %d is below the minimum group size of %d", cc.PartySize, t.MinGroupSize)
			return res
		}
	case domain.Bundle:
		if cc.ItemCount < t.MinItems {
			res.Reason = fmt.Sprintf("%d items is below the bundle minimum of %d", cc.ItemCount, t.MinItems)
			return res
		}
	}

	amount := rawDiscount(basePrice, offer.Terms.Discount())
	if offer.MaxDiscount > 0 {
		amount = min(amount, offer.MaxDiscount)
	}
	amount = max(0, min(amount, basePrice))
	if amount == 0 {
		res.Reason = "discount rounds to zero"
		return res
	}

	res.DiscountAmount = amount
	res.DiscountedPrice = basePrice - amount
	res.DiscountPercentage = mulDivRound(amount, 100, basePrice)
	res.IsApplicable = true
	return res
}

func rawDiscount(basePrice int64, v domain.Value) int64 {
	if v.Kind == domain.KindFixed {
		return v.Amount
	}
	return mulDivRound(basePrice, v.Amount, domain.MaxBasisPoints)
}

// mulDivRound returns round(a*b/d) half up for non-negative a, b and
// positive d, falling back to big.Int when a*b overflows.
func mulDivRound(a, b, d int64) int64 {
	if a <= 0 || b <= 0 {
		return 0
	}
	if a <= (math.MaxInt64-d/2)/b {
		return (a*b + d/2) / d
	}
	n := new(big.Int).Mul(big.NewInt(a), big.NewInt(b))
	n.Add(n, big.NewInt(d/2))
	n.Quo(n, big.NewInt(d))
	if !n.IsInt64() {
		return math.MaxInt64
	}
	return n.Int64()
}
