package engine

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/tourhub/offers/services/offer/internal/domain"
)

// UrgencyWindow is how close to its end an offer shows urgency.
const UrgencyWindow = 48 * time.Hour

// BadgeStyle is a background/text colour pair.
type BadgeStyle struct {
	Bg   string `json:"bg"`
	Text string `json:"text"`
}

var (
	badgeStyles = map[domain.OfferType]BadgeStyle{
		domain.TypePercentage: {Bg: "#FEE2E2", Text: "#991B1B"},
		domain.TypeFixed:      {Bg: "#DCFCE7", Text: "#166534"},
		domain.TypeEarlyBird:  {Bg: "#DBEAFE", Text: "#1E40AF"},
		domain.TypeLastMinute: {Bg: "#FFEDD5", Text: "#9A3412"},
		domain.TypeGroup:      {Bg: "#F3E8FF", Text: "#6B21A8"},
		domain.TypeBundle:     {Bg: "#E0E7FF", Text: "#3730A3"},
		domain.TypePromoCode:  {Bg: "#FCE7F3", Text: "#9D174D"},
	}
	defaultBadgeStyle = BadgeStyle{Bg: "#F3F4F6", Text: "#1F2937"}
)

type currencyFormat struct {
	symbol   string
	decimals int
}

var currencies = map[string]currencyFormat{
	"USD": {"$", 2},
	"EUR": {"€", 2},
	"GBP": {"£", 2},
	"TRY": {"₺", 2},
	"AUD": {"A$", 2},
	"CAD": {"C$", 2},
	"JPY": {"¥", 0},
}

// BadgeColor returns the badge style for an offer type, gray for unknown types.
func BadgeColor(t domain.OfferType) BadgeStyle {
	if s, ok := badgeStyles[t]; ok {
		return s
	}
	return defaultBadgeStyle
}

// DisplayText is the short label for an offer: "20% OFF", "12.5% OFF",
// "$15 OFF", "€7.50 OFF".
func DisplayText(offer *domain.Offer) string {
	if offer == nil || offer.Terms == nil {
		return ""
	}
	v := offer.Terms.Discount()
	if v.Kind == domain.KindFixed {
		return FormatMoney(v.Amount, offer.Currency) + " OFF"
	}
	return formatBasisPoints(v.Amount) + "% OFF"
}

// BadgeText is the featured badge text of a featured offer, else DisplayText.
func BadgeText(offer *domain.Offer) string {
	if offer != nil && offer.IsFeatured && strings.TrimSpace(offer.FeaturedBadgeText) != "" {
		return offer.FeaturedBadgeText
	}
	return DisplayText(offer)
}

// FormatMoney renders minor units with the currency's symbol, dropping
// all-zero fractions: 1500 USD is "$15", 750 EUR is "€7.50". Unknown
// currencies render as "15.00 CHF".
func FormatMoney(minor int64, currency string) string {
	cf, known := currencies[strings.ToUpper(currency)]
	if !known {
		cf = currencyFormat{decimals: 2}
	}

	sign := ""
	if minor < 0 {
		sign, minor = "-", -minor
	}
	var num string
	if cf.decimals == 0 {
		num = strconv.FormatInt(minor, 10)
	} else {
		scale := int64(1)
		for i := 0; i < cf.decimals; i++ {
			scale *= 10
		}
		whole, frac := minor/scale, minor%scale
		num = strconv.FormatInt(whole, 10)
		if frac != 0 || !known {
			num += fmt.Sprintf(".%0*d", cf.decimals, frac)
		}
	}

	if !known {
		return sign + num + " " + strings.ToUpper(currency)
	}
	return sign + cf.symbol + num
}

func formatBasisPoints(bps int64) string {
	s := strconv.FormatFloat(float64(bps)/100, 'f', 2, 64)
	s = strings.TrimRight(s, "0")
	return strings.TrimSuffix(s, ".")
}

// TimeRemaining describes how long an offer ending at end has left:
// "Expired", "Ends today", "1 day left" or "N days left".
func TimeRemaining(end, now time.Time) string {
	if end.IsZero() || now.After(EffectiveEnd(end, now.Location())) {
		return "Expired"
	}
	switch days := CalendarDaysBetween(now, end); days {
	case 0:
		return "Ends today"
	case 1:
		return "1 day left"
	default:
		return fmt.Sprintf("%d days left", days)
	}
}

// ShowUrgency reports whether an offer ending at end is within
// UrgencyWindow of ending and not yet over.
func ShowUrgency(end, now time.Time) bool {
	if end.IsZero() {
		return false
	}
	remaining := EffectiveEnd(end, now.Location()).Sub(now)
	return remaining > 0 && remaining <= UrgencyWindow
}
