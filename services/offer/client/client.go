// Package client is the Go client booking and catalogue services use to ask
// the offer service for discounts.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/tourhub/offers/pkg/httpclient"
	"github.com/tourhub/offers/pkg/middleware"
)

const serviceName = "offer"

// HTTPDoer is the interface for executing HTTP requests.
// Both httpclient.Client and httpclient.CircuitBreakerClient satisfy this.
type HTTPDoer interface {
	Do(ctx context.Context, req *http.Request) (*http.Response, error)
}

// Booking describes the booking an offer is evaluated against. Money is in
// minor units; TravelDate is YYYY-MM-DD or empty.
type Booking struct {
	TourID     string `json:"tour_id"`
	OptionID   string `json:"option_id,omitempty"`
	TravelDate string `json:"travel_date,omitempty"`
	PartySize  int    `json:"party_size,omitempty"`
	ItemCount  int    `json:"item_count,omitempty"`
	BasePrice  int64  `json:"base_price"`
	PromoCode  string `json:"promo_code,omitempty"`
	CustomerID string `json:"customer_id,omitempty"`
}

// Offer is the subset of an offer callers need to show or record a discount.
type Offer struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Type          string `json:"type"`
	DiscountValue int64  `json:"discount_value"`
	Currency      string `json:"currency"`
}

// Discount is the result of applying one offer to a base price.
type Discount struct {
	OriginalPrice      int64  `json:"original_price"`
	DiscountedPrice    int64  `json:"discounted_price"`
	DiscountAmount     int64  `json:"discount_amount"`
	DiscountPercentage int64  `json:"discount_percentage"`
	Offer              *Offer `json:"offer"`
	IsApplicable       bool   `json:"is_applicable"`
	Reason             string `json:"reason,omitempty"`
}

// Redemption is a recorded use of an offer by a booking.
type Redemption struct {
	ID             string `json:"id"`
	OfferID        string `json:"offer_id"`
	BookingID      string `json:"booking_id"`
	OriginalPrice  int64  `json:"original_price"`
	DiscountAmount int64  `json:"discount_amount"`
	FinalPrice     int64  `json:"final_price"`
	Currency       string `json:"currency"`
}

// RedeemResult is returned by Redeem.
type RedeemResult struct {
	Redemption *Redemption `json:"redemption"`
	Discount   *Discount   `json:"discount"`
	UsedCount  int         `json:"used_count"`
}

// Client calls the offer service over HTTP.
type Client struct {
	http    HTTPDoer
	baseURL string
	logger  *slog.Logger
}

// New creates a Client for the offer service at baseURL.
func New(doer HTTPDoer, baseURL string, logger *slog.Logger) *Client {
	return &Client{http: doer, baseURL: strings.TrimRight(baseURL, "/"), logger: logger}
}

// NewDefault creates a Client with pooled retries behind a circuit breaker
// named "offer". metrics may be nil.
func NewDefault(baseURL string, metrics *httpclient.BreakerMetrics, logger *slog.Logger) *Client {
	cb := httpclient.NewCircuitBreakerClient(
		httpclient.New(httpclient.DefaultConfig()),
		httpclient.DefaultCircuitBreakerConfig(serviceName),
		metrics,
		logger,
	)
	return New(cb, baseURL, logger)
}

// Evaluate returns the best discount for the booking, or nil when no offer
// applies. An unavailable offer service also yields nil: a booking without a
// discount is a normal outcome and must not fail the caller.
func (c *Client) Evaluate(ctx context.Context, tenantID string, b Booking) (*Discount, error) {
	var out struct {
		Applied bool      `json:"applied"`
		Result  *Discount `json:"result"`
	}
	err := c.post(ctx, tenantID, "/api/v1/offers/evaluate", b, http.StatusOK, &out)
	if errors.Is(err, httpclient.ErrCircuitOpen) {
		c.logger.WarnContext(ctx, "offer service circuit open, evaluating without offers",
			slog.String("tour_id", b.TourID),
		)
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if !out.Applied {
		return nil, nil
	}
	return out.Result, nil
}

// Redeem records the offer against a booking. The discount is recomputed by
// the offer service; callers should charge the returned FinalPrice.
func (c *Client) Redeem(ctx context.Context, tenantID, offerID, bookingID string, b Booking) (*RedeemResult, error) {
	body := struct {
		OfferID   string `json:"offer_id"`
		BookingID string `json:"booking_id"`
		Booking
	}{OfferID: offerID, BookingID: bookingID, Booking: b}

	var out RedeemResult
	if err := c.post(ctx, tenantID, "/api/v1/offers/redeem", body, http.StatusCreated, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) post(ctx context.Context, tenantID, path string, in any, want int, out any) error {
	payload, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(middleware.TenantHeader, tenantID)

	resp, err := c.http.Do(ctx, req)
	if err != nil {
		return fmt.Errorf("call offer service: %w", err)
	}
	if resp.StatusCode != want {
		return httpclient.ParseResponseError(resp, serviceName)
	}
	defer func() { _ = resp.Body.Close() }()

	var envelope struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return fmt.Errorf("decode offer response: %w", err)
	}
	if err := json.Unmarshal(envelope.Data, out); err != nil {
		return fmt.Errorf("decode offer response data: %w", err)
	}
	return nil
}
