package domain

import "time"

// Redemption records one use of an offer by a booking.
type Redemption struct {
	ID             string    `json:"id"`
	TenantID       string    `json:"tenant_id"`
	OfferID        string    `json:"offer_id"`
	BookingID      string    `json:"booking_id"`
	CustomerID     string    `json:"customer_id,omitempty"`
	OriginalPrice  int64     `json:"original_price"`
	DiscountAmount int64     `json:"discount_amount"`
	FinalPrice     int64     `json:"final_price"`
	Currency       string    `json:"currency"`
	RedeemedAt     time.Time `json:"redeemed_at"`
}
