package http

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	apperrors "github.com/tourhub/offers/pkg/errors"
	"github.com/tourhub/offers/pkg/httputil"
	"github.com/tourhub/offers/pkg/middleware"
	"github.com/tourhub/offers/pkg/pagination"
	"github.com/tourhub/offers/pkg/validator"
	"github.com/tourhub/offers/services/offer/internal/domain"
	"github.com/tourhub/offers/services/offer/internal/service"
)

// dateLayout is the date-only format; such dates are read in the service's
// timezone.
const dateLayout = "2006-01-02"

// OfferHandler handles HTTP requests for offer endpoints.
type OfferHandler struct {
	service *service.OfferService
	logger  *slog.Logger
}

// NewOfferHandler creates a new offer HTTP handler.
func NewOfferHandler(svc *service.OfferService, logger *slog.Logger) *OfferHandler {
	return &OfferHandler{
		service: svc,
		logger:  logger,
	}
}

// --- Request DTOs ---

// TermsRequest carries the type-specific discount terms of an offer.
type TermsRequest struct {
	Type              string `json:"type" validate:"required,oneof=percentage fixed early_bird last_minute group bundle promo_code"`
	DiscountValue     int64  `json:"discount_value" validate:"gt=0"`
	ValueKind         string `json:"value_kind" validate:"omitempty,oneof=percent fixed"`
	MinDaysInAdvance  int    `json:"min_days_in_advance" validate:"gte=0"`
	MaxDaysBeforeTour int    `json:"max_days_before_tour" validate:"gte=0"`
	MinGroupSize      int    `json:"min_group_size" validate:"gte=0"`
	MinItems          int    `json:"min_items" validate:"gte=0"`
	Code              string `json:"code" validate:"omitempty,promocode"`
}

func (t *TermsRequest) flat() domain.FlatTerms {
	return domain.FlatTerms{
		Type:              domain.OfferType(t.Type),
		DiscountValue:     t.DiscountValue,
		ValueKind:         domain.ValueKind(t.ValueKind),
		MinDaysInAdvance:  t.MinDaysInAdvance,
		MaxDaysBeforeTour: t.MaxDaysBeforeTour,
		MinGroupSize:      t.MinGroupSize,
		MinItems:          t.MinItems,
		Code:              t.Code,
	}
}

// TourOptionSelectionRequest restricts an offer to options of one tour.
type TourOptionSelectionRequest struct {
	TourID          string   `json:"tour_id" validate:"required,max=64"`
	SelectedOptions []string `json:"selected_options" validate:"dive,required,max=64"`
	AllOptions      bool     `json:"all_options"`
}

func selections(in []TourOptionSelectionRequest) []domain.TourOptionSelection {
	if in == nil {
		return nil
	}
	out := make([]domain.TourOptionSelection, len(in))
	for i, s := range in {
		out[i] = domain.TourOptionSelection{TourID: s.TourID, SelectedOptions: s.SelectedOptions, AllOptions: s.AllOptions}
	}
	return out
}

// CreateOfferRequest is the JSON request body for creating an offer. Terms
// fields sit at the top level.
type CreateOfferRequest struct {
	Name        string `json:"name" validate:"required,min=1,max=255"`
	Description string `json:"description" validate:"max=2000"`
	TermsRequest
	MaxDiscount          int64                        `json:"max_discount" validate:"gte=0"`
	Currency             string                       `json:"currency" validate:"required,currency"`
	StartDate            string                       `json:"start_date" validate:"required"`
	EndDate              string                       `json:"end_date" validate:"required"`
	IsActive             *bool                        `json:"is_active"`
	UsageLimit           int                          `json:"usage_limit" validate:"gte=0"`
	Priority             int                          `json:"priority"`
	MinBookingValue      int64                        `json:"min_booking_value" validate:"gte=0"`
	ApplicableTours      []string                     `json:"applicable_tours" validate:"dive,required,max=64"`
	ExcludedTours        []string                     `json:"excluded_tours" validate:"dive,required,max=64"`
	TourOptionSelections []TourOptionSelectionRequest `json:"tour_option_selections" validate:"dive"`
	IsFeatured           bool                         `json:"is_featured"`
	FeaturedBadgeText    string                       `json:"featured_badge_text" validate:"max=64"`
	EligibilityRule      string                       `json:"eligibility_rule" validate:"max=1024"`
}

// UpdateOfferRequest is the JSON request body for updating an offer. Terms
// are replaced as a whole: sending any terms field requires type.
type UpdateOfferRequest struct {
	Name          *string `json:"name" validate:"omitempty,min=1,max=255"`
	Description   *string `json:"description" validate:"omitempty,max=2000"`
	*TermsRequest
	MaxDiscount          *int64                        `json:"max_discount" validate:"omitempty,gte=0"`
	Currency             *string                       `json:"currency" validate:"omitempty,currency"`
	StartDate            *string                       `json:"start_date"`
	EndDate              *string                       `json:"end_date"`
	IsActive             *bool                         `json:"is_active"`
	UsageLimit           *int                          `json:"usage_limit" validate:"omitempty,gte=0"`
	Priority             *int                          `json:"priority"`
	MinBookingValue      *int64                        `json:"min_booking_value" validate:"omitempty,gte=0"`
	ApplicableTours      *[]string                     `json:"applicable_tours" validate:"omitempty,dive,required,max=64"`
	ExcludedTours        *[]string                     `json:"excluded_tours" validate:"omitempty,dive,required,max=64"`
	TourOptionSelections *[]TourOptionSelectionRequest `json:"tour_option_selections" validate:"omitempty,dive"`
	IsFeatured           *bool                         `json:"is_featured"`
	FeaturedBadgeText    *string                       `json:"featured_badge_text" validate:"omitempty,max=64"`
	EligibilityRule      *string                       `json:"eligibility_rule" validate:"omitempty,max=1024"`
}

// BookingRequest describes the booking an offer is evaluated against.
type BookingRequest struct {
	TourID     string `json:"tour_id" validate:"required,max=64"`
	OptionID   string `json:"option_id" validate:"max=64"`
	TravelDate string `json:"travel_date"`
	PartySize  int    `json:"party_size" validate:"gte=0"`
	ItemCount  int    `json:"item_count" validate:"gte=0"`
	BasePrice  int64  `json:"base_price" validate:"required,gt=0"`
	PromoCode  string `json:"promo_code" validate:"max=64"`
	CustomerID string `json:"customer_id" validate:"max=64"`
}

// RedeemRequest is the JSON request body for redeeming an offer.
type RedeemRequest struct {
	OfferID   string `json:"offer_id" validate:"required,uuid"`
	BookingID string `json:"booking_id" validate:"required,max=64"`
	BookingRequest
}

// EvaluateResponse is the result of a best-offer evaluation. Result is
// null when no offer applies.
type EvaluateResponse struct {
	Applied bool                   `json:"applied"`
	Result  *domain.DiscountResult `json:"result"`
}

// --- Handlers ---

// CreateOffer handles POST /api/v1/offers
func (h *OfferHandler) CreateOffer(w http.ResponseWriter, r *http.Request) {
	var req CreateOfferRequest
	if err := validator.DecodeAndValidate(w, r, &req); err != nil {
		httputil.WriteValidationError(w, r, err)
		return
	}

	loc := h.service.Location()
	startDate, err := parseTime(req.StartDate, loc)
	if err != nil {
		h.writeError(w, r, apperrors.InvalidInput("start_date must be YYYY-MM-DD or RFC3339"))
		return
	}
	endDate, err := parseTime(req.EndDate, loc)
	if err != nil {
		h.writeError(w, r, apperrors.InvalidInput("end_date must be YYYY-MM-DD or RFC3339"))
		return
	}

	offer, err := h.service.CreateOffer(r.Context(), middleware.TenantFromRequest(r), &service.CreateOfferInput{
		Name:                 req.Name,
		Description:          req.Description,
		Terms:                req.TermsRequest.flat(),
		MaxDiscount:          req.MaxDiscount,
		Currency:             req.Currency,
		StartDate:            startDate,
		EndDate:              endDate,
		IsActive:             req.IsActive,
		UsageLimit:           req.UsageLimit,
		Priority:             req.Priority,
		MinBookingValue:      req.MinBookingValue,
		ApplicableTours:      req.ApplicableTours,
		ExcludedTours:        req.ExcludedTours,
		TourOptionSelections: selections(req.TourOptionSelections),
		IsFeatured:           req.IsFeatured,
		FeaturedBadgeText:    req.FeaturedBadgeText,
		EligibilityRule:      req.EligibilityRule,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	httputil.WriteData(w, http.StatusCreated, offer)
}

// ListOffers handles GET /api/v1/offers
func (h *OfferHandler) ListOffers(w http.ResponseWriter, r *http.Request) {
	page := pagination.FromRequest(r)
	filter := domain.ListFilter{
		Type:    domain.OfferType(r.URL.Query().Get("type")),
		Page:    page.Page,
		PerPage: page.PerPage,
	}

	var err error
	if filter.Active, err = boolQuery(r, "active"); err != nil {
		h.writeError(w, r, err)
		return
	}
	if filter.Featured, err = boolQuery(r, "featured"); err != nil {
		h.writeError(w, r, err)
		return
	}

	offers, total, err := h.service.ListOffers(r.Context(), middleware.TenantFromRequest(r), filter)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.NewPaginatedResponse(offers, total, page.Page, page.PerPage))
}

// GetOffer handles GET /api/v1/offers/{id}
func (h *OfferHandler) GetOffer(w http.ResponseWriter, r *http.Request) {
	id, ok := h.offerID(w, r)
	if !ok {
		return
	}

	offer, err := h.service.GetOffer(r.Context(), middleware.TenantFromRequest(r), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	httputil.WriteData(w, http.StatusOK, offer)
}

// UpdateOffer handles PUT /api/v1/offers/{id}
func (h *OfferHandler) UpdateOffer(w http.ResponseWriter, r *http.Request) {
	id, ok := h.offerID(w, r)
	if !ok {
		return
	}

	var req UpdateOfferRequest
	if err := validator.DecodeAndValidate(w, r, &req); err != nil {
		httputil.WriteValidationError(w, r, err)
		return
	}

	input := &service.UpdateOfferInput{
		Name:              req.Name,
		Description:       req.Description,
		MaxDiscount:       req.MaxDiscount,
		Currency:          req.Currency,
		IsActive:          req.IsActive,
		UsageLimit:        req.UsageLimit,
		Priority:          req.Priority,
		MinBookingValue:   req.MinBookingValue,
		ApplicableTours:   req.ApplicableTours,
		ExcludedTours:     req.ExcludedTours,
		IsFeatured:        req.IsFeatured,
		FeaturedBadgeText: req.FeaturedBadgeText,
		EligibilityRule:   req.EligibilityRule,
	}
	if req.TermsRequest != nil {
		terms := req.TermsRequest.flat()
		input.Terms = &terms
	}
	if req.TourOptionSelections != nil {
		sel := selections(*req.TourOptionSelections)
		input.TourOptionSelections = &sel
	}

	loc := h.service.Location()
	if req.StartDate != nil {
		t, err := parseTime(*req.StartDate, loc)
		if err != nil {
			h.writeError(w, r, apperrors.InvalidInput("start_date must be YYYY-MM-DD or RFC3339"))
			return
		}
		input.StartDate = &t
	}
	if req.EndDate != nil {
		t, err := parseTime(*req.EndDate, loc)
		if err != nil {
			h.writeError(w, r, apperrors.InvalidInput("end_date must be YYYY-MM-DD or RFC3339"))
			return
		}
		input.EndDate = &t
	}

	offer, err := h.service.UpdateOffer(r.Context(), middleware.TenantFromRequest(r), id, input)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	httputil.WriteData(w, http.StatusOK, offer)
}

// DeactivateOffer handles POST /api/v1/offers/{id}/deactivate
func (h *OfferHandler) DeactivateOffer(w http.ResponseWriter, r *http.Request) {
	id, ok := h.offerID(w, r)
	if !ok {
		return
	}

	offer, err := h.service.DeactivateOffer(r.Context(), middleware.TenantFromRequest(r), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	httputil.WriteData(w, http.StatusOK, offer)
}

// ListFeaturedOffers handles GET /api/v1/offers/featured
func (h *OfferHandler) ListFeaturedOffers(w http.ResponseWriter, r *http.Request) {
	views, err := h.service.ListFeaturedOffers(r.Context(), middleware.TenantFromRequest(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	httputil.WriteData(w, http.StatusOK, views)
}

// EvaluateBestOffer handles POST /api/v1/offers/evaluate
func (h *OfferHandler) EvaluateBestOffer(w http.ResponseWriter, r *http.Request) {
	var req BookingRequest
	if err := validator.DecodeAndValidate(w, r, &req); err != nil {
		httputil.WriteValidationError(w, r, err)
		return
	}
	in, err := h.bookingInput(req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	best, err := h.service.EvaluateBestOffer(r.Context(), middleware.TenantFromRequest(r), in)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	httputil.WriteData(w, http.StatusOK, EvaluateResponse{Applied: best != nil, Result: best})
}

// QuoteOffer handles POST /api/v1/offers/{id}/quote
func (h *OfferHandler) QuoteOffer(w http.ResponseWriter, r *http.Request) {
	id, ok := h.offerID(w, r)
	if !ok {
		return
	}

	var req BookingRequest
	if err := validator.DecodeAndValidate(w, r, &req); err != nil {
		httputil.WriteValidationError(w, r, err)
		return
	}
	in, err := h.bookingInput(req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	res, err := h.service.QuoteOffer(r.Context(), middleware.TenantFromRequest(r), id, in)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	httputil.WriteData(w, http.StatusOK, res)
}

// RedeemOffer handles POST /api/v1/offers/redeem
func (h *OfferHandler) RedeemOffer(w http.ResponseWriter, r *http.Request) {
	var req RedeemRequest
	if err := validator.DecodeAndValidate(w, r, &req); err != nil {
		httputil.WriteValidationError(w, r, err)
		return
	}
	in, err := h.bookingInput(req.BookingRequest)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	res, err := h.service.RedeemOffer(r.Context(), middleware.TenantFromRequest(r), service.RedeemInput{
		OfferID:      req.OfferID,
		BookingID:    req.BookingID,
		BookingInput: in,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	httputil.WriteData(w, http.StatusCreated, res)
}

// --- Helpers ---

func (h *OfferHandler) bookingInput(req BookingRequest) (service.BookingInput, error) {
	in := service.BookingInput{
		TourID:     req.TourID,
		OptionID:   req.OptionID,
		PartySize:  req.PartySize,
		ItemCount:  req.ItemCount,
		BasePrice:  req.BasePrice,
		PromoCode:  req.PromoCode,
		CustomerID: req.CustomerID,
	}
	if req.TravelDate != "" {
		t, err := parseTime(req.TravelDate, h.service.Location())
		if err != nil {
			return in, apperrors.InvalidInput("travel_date must be YYYY-MM-DD or RFC3339")
		}
		in.TravelDate = t
	}
	return in, nil
}

func (h *OfferHandler) offerID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := chi.URLParam(r, "id")
	if _, err := uuid.Parse(id); err != nil {
		h.writeError(w, r, apperrors.InvalidInput("invalid offer id format"))
		return "", false
	}
	return id, true
}

func (h *OfferHandler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	httputil.WriteError(w, r, err, h.logger)
}

// parseTime accepts a date-only value, read as midnight in loc, or RFC3339.
func parseTime(s string, loc *time.Location) (time.Time, error) {
	if t, err := time.ParseInLocation(dateLayout, s, loc); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, s)
}

func boolQuery(r *http.Request, name string) (*bool, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return nil, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return nil, apperrors.InvalidInput(fmt.Sprintf("%s must be true or false", name))
	}
	return &b, nil
}
