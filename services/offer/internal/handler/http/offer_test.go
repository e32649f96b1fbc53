package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/tourhub/offers/pkg/clock"
	apperrors "github.com/tourhub/offers/pkg/errors"
	"github.com/tourhub/offers/pkg/health"
	"github.com/tourhub/offers/pkg/httputil"
	pkgkafka "github.com/tourhub/offers/pkg/kafka"
	"github.com/tourhub/offers/pkg/middleware"
	"github.com/tourhub/offers/services/offer/internal/domain"
	"github.com/tourhub/offers/services/offer/internal/event"
	"github.com/tourhub/offers/services/offer/internal/rules"
	"github.com/tourhub/offers/services/offer/internal/service"
)

// ============================================================================
// Mock repository
// ============================================================================

type mockOfferRepository struct {
	mock.Mock
}

func (m *mockOfferRepository) Create(ctx context.Context, offer *domain.Offer) error {
	return m.Called(ctx, offer).Error(0)
}

func (m *mockOfferRepository) GetByID(ctx context.Context, tenantID, id string) (*domain.Offer, error) {
	args := m.Called(ctx, tenantID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Offer), args.Error(1)
}

func (m *mockOfferRepository) List(ctx context.Context, tenantID string, filter domain.ListFilter) ([]*domain.Offer, int, error) {
	args := m.Called(ctx, tenantID, filter)
	return args.Get(0).([]*domain.Offer), args.Int(1), args.Error(2)
}

func (m *mockOfferRepository) ListActive(ctx context.Context, tenantID string, now time.Time) ([]*domain.Offer, error) {
	args := m.Called(ctx, tenantID, now)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Offer), args.Error(1)
}

func (m *mockOfferRepository) Update(ctx context.Context, offer *domain.Offer) error {
	return m.Called(ctx, offer).Error(0)
}

func (m *mockOfferRepository) Redeem(ctx context.Context, r *domain.Redemption, at time.Time) (int, error) {
	args := m.Called(ctx, r, at)
	return args.Int(0), args.Error(1)
}

type discardWriter struct{}

func (discardWriter) WriteMessages(context.Context, ...kafka.Message) error { return nil }
func (discardWriter) Close() error                                          { return nil }

// ============================================================================
// Helpers
// ============================================================================

const (
	tenant  = "acme"
	offerID = "7f1c2a4e-6c1b-4a8e-9a53-0f7d2b9c1e11"
)

var testNow = time.Date(2026, 6, 15, 10, 0, 0, 0, time.UTC)

func setupRouter(t *testing.T) (http.Handler, *mockOfferRepository) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	evaluator, err := rules.NewEvaluator()
	require.NoError(t, err)

	repo := &mockOfferRepository{}
	producer := event.NewProducer(pkgkafka.NewProducerWithWriter(discardWriter{}, nil, nil, logger), logger)
	svc := service.NewOfferService(repo, evaluator, producer, logger, service.WithClock(clock.NewMock(testNow)))

	router := NewRouter(svc, health.NewHandler(), RouterConfig{
		ServiceName:    "offer-test",
		CORS:           middleware.DefaultCORSConfig(),
		FeaturedMaxAge: 60,
		Registry:       prometheus.NewRegistry(),
	}, logger)
	return router, repo
}

func do(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		buf = strings.NewReader(b)
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		buf = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, buf)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(middleware.TenantHeader, tenant)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) *httputil.ErrorResponse {
	t.Helper()
	var resp httputil.Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotNil(t, resp.Error)
	return resp.Error
}

func decodeData(t *testing.T, rec *httptest.ResponseRecorder, dst any) {
	t.Helper()
	var resp struct {
		Data json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NoError(t, json.Unmarshal(resp.Data, dst))
}

func sampleOffer() *domain.Offer {
	return &domain.Offer{
		ID:        offerID,
		TenantID:  tenant,
		Name:      "Summer 10%",
		Terms:     domain.Percentage{BasisPoints: 1000},
		Currency:  "EUR",
		StartDate: time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2026, 8, 31, 0, 0, 0, 0, time.UTC),
		IsActive:  true,
		CreatedAt: testNow,
		UpdatedAt: testNow,
	}
}

func validCreateBody() map[string]any {
	return map[string]any{
		"name":           "Summer 10%",
		"type":           "percentage",
		"discount_value": 1000,
		"currency":       "EUR",
		"start_date":     "2026-06-01",
		"end_date":       "2026-08-31",
	}
}

// ============================================================================
// Tenant
// ============================================================================

func TestOffers_RequireTenant(t *testing.T) {
	router, _ := setupRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/offers", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "MISSING_TENANT", decodeError(t, rec).Code)
}

// ============================================================================
// CreateOffer
// ============================================================================

func TestCreateOffer_Success(t *testing.T) {
	router, repo := setupRouter(t)
	repo.On("Create", mock.Anything, mock.MatchedBy(func(o *domain.Offer) bool {
		return o.TenantID == tenant &&
			o.Terms == domain.Percentage{BasisPoints: 1000} &&
			o.StartDate.Equal(time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC))
	})).Return(nil)

	rec := do(t, router, http.MethodPost, "/api/v1/offers", validCreateBody())
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var got map[string]any
	decodeData(t, rec, &got)
	assert.Equal(t, "percentage", got["type"])
	assert.Equal(t, float64(1000), got["discount_value"])
	assert.Equal(t, tenant, got["tenant_id"])
	repo.AssertExpectations(t)
}

func TestCreateOffer_InvalidJSON(t *testing.T) {
	router, _ := setupRouter(t)
	rec := do(t, router, http.MethodPost, "/api/v1/offers", "{not json")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "INVALID_INPUT", decodeError(t, rec).Code)
}

func TestCreateOffer_UnknownField(t *testing.T) {
	router, _ := setupRouter(t)
	body := validCreateBody()
	body["stackable"] = true
	rec := do(t, router, http.MethodPost, "/api/v1/offers", body)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateOffer_ValidationErrors(t *testing.T) {
	tests := []struct {
		name  string
		field string
		value any
	}{
		{"missing name", "name", ""},
		{"bad type", "type", "buy_x_get_y"},
		{"zero value", "discount_value", 0},
		{"lowercase currency", "currency", "eur"},
		{"bad value kind", "value_kind", "ratio"},
		{"bad promo code", "code", "no spaces allowed"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router, repo := setupRouter(t)
			body := validCreateBody()
			body[tt.field] = tt.value

			rec := do(t, router, http.MethodPost, "/api/v1/offers", body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			e := decodeError(t, rec)
			assert.Equal(t, "VALIDATION_ERROR", e.Code)
			assert.Contains(t, e.Fields, tt.field)
			repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
		})
	}
}

func TestCreateOffer_InvalidDate(t *testing.T) {
	router, _ := setupRouter(t)
	body := validCreateBody()
	body["start_date"] = "01/06/2026"

	rec := do(t, router, http.MethodPost, "/api/v1/offers", body)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decodeError(t, rec).Message, "start_date")
}

func TestCreateOffer_EndBeforeStart(t *testing.T) {
	router, _ := setupRouter(t)
	body := validCreateBody()
	body["end_date"] = "2026-05-01"

	rec := do(t, router, http.MethodPost, "/api/v1/offers", body)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "INVALID_INPUT", decodeError(t, rec).Code)
}

func TestCreateOffer_BadEligibilityRule(t *testing.T) {
	router, _ := setupRouter(t)
	body := validCreateBody()
	body["eligibility_rule"] = "party_size >>> 2"

	rec := do(t, router, http.MethodPost, "/api/v1/offers", body)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decodeError(t, rec).Message, "eligibility rule")
}

func TestCreateOffer_DuplicatePromoCode(t *testing.T) {
	router, repo := setupRouter(t)
	repo.On("Create", mock.Anything, mock.Anything).
		Return(apperrors.AlreadyExists("offer", "code", "SUMMER"))

	body := validCreateBody()
	body["type"] = "promo_code"
	body["code"] = "summer"
	rec := do(t, router, http.MethodPost, "/api/v1/offers", body)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "ALREADY_EXISTS", decodeError(t, rec).Code)
}

// ============================================================================
// ListOffers / GetOffer
// ============================================================================

func TestListOffers_Success(t *testing.T) {
	router, repo := setupRouter(t)
	active := true
	repo.On("List", mock.Anything, tenant, domain.ListFilter{
		Type: domain.TypePercentage, Active: &active, Page: 2, PerPage: 5,
	}).Return([]*domain.Offer{sampleOffer()}, 6, nil)

	rec := do(t, router, http.MethodGet, "/api/v1/offers?type=percentage&active=true&page=2&per_page=5", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp struct {
		Data       []map[string]any `json:"data"`
		TotalCount int              `json:"total_count"`
		TotalPages int              `json:"total_pages"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Len(t, resp.Data, 1)
	assert.Equal(t, 6, resp.TotalCount)
	assert.Equal(t, 2, resp.TotalPages)
}

func TestListOffers_InvalidBool(t *testing.T) {
	router, _ := setupRouter(t)
	rec := do(t, router, http.MethodGet, "/api/v1/offers?featured=maybe", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetOffer_Success(t *testing.T) {
	router, repo := setupRouter(t)
	repo.On("GetByID", mock.Anything, tenant, offerID).Return(sampleOffer(), nil)

	rec := do(t, router, http.MethodGet, "/api/v1/offers/"+offerID, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var got map[string]any
	decodeData(t, rec, &got)
	assert.Equal(t, offerID, got["id"])
}

func TestGetOffer_InvalidUUID(t *testing.T) {
	router, _ := setupRouter(t)
	rec := do(t, router, http.MethodGet, "/api/v1/offers/not-a-uuid", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetOffer_NotFound(t *testing.T) {
	router, repo := setupRouter(t)
	repo.On("GetByID", mock.Anything, tenant, offerID).Return(nil, apperrors.NotFound("offer", offerID))

	rec := do(t, router, http.MethodGet, "/api/v1/offers/"+offerID, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "NOT_FOUND", decodeError(t, rec).Code)
}

// ============================================================================
// UpdateOffer / DeactivateOffer
// ============================================================================

func TestUpdateOffer_Success(t *testing.T) {
	router, repo := setupRouter(t)
	repo.On("GetByID", mock.Anything, tenant, offerID).Return(sampleOffer(), nil)
	repo.On("Update", mock.Anything, mock.MatchedBy(func(o *domain.Offer) bool {
		return o.Name == "Renamed" && o.Terms == domain.Fixed{Amount: 2000}
	})).Return(nil)

	rec := do(t, router, http.MethodPut, "/api/v1/offers/"+offerID, map[string]any{
		"name":           "Renamed",
		"type":           "fixed",
		"discount_value": 2000,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	repo.AssertExpectations(t)
}

func TestUpdateOffer_TermsWithoutType(t *testing.T) {
	router, _ := setupRouter(t)
	rec := do(t, router, http.MethodPut, "/api/v1/offers/"+offerID, map[string]any{
		"discount_value": 2000,
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "VALIDATION_ERROR", decodeError(t, rec).Code)
}

func TestDeactivateOffer_Success(t *testing.T) {
	router, repo := setupRouter(t)
	repo.On("GetByID", mock.Anything, tenant, offerID).Return(sampleOffer(), nil)
	repo.On("Update", mock.Anything, mock.MatchedBy(func(o *domain.Offer) bool { return !o.IsActive })).Return(nil)

	rec := do(t, router, http.MethodPost, "/api/v1/offers/"+offerID+"/deactivate", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var got map[string]any
	decodeData(t, rec, &got)
	assert.Equal(t, false, got["is_active"])
}

// ============================================================================
// Evaluate / Quote / Redeem
// ============================================================================

func TestEvaluateBestOffer_Applied(t *testing.T) {
	router, repo := setupRouter(t)
	repo.On("ListActive", mock.Anything, tenant, testNow).Return([]*domain.Offer{sampleOffer()}, nil)

	rec := do(t, router, http.MethodPost, "/api/v1/offers/evaluate", map[string]any{
		"tour_id":     "tour-1",
		"base_price":  15000,
		"travel_date": "2026-07-10",
		"party_size":  2,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var got EvaluateResponse
	decodeData(t, rec, &got)
	assert.True(t, got.Applied)
	require.NotNil(t, got.Result)
	assert.Equal(t, int64(1500), got.Result.DiscountAmount)
	assert.Equal(t, int64(13500), got.Result.DiscountedPrice)
	assert.Equal(t, int64(10), got.Result.DiscountPercentage)
}

func TestEvaluateBestOffer_NoOffer(t *testing.T) {
	router, repo := setupRouter(t)
	repo.On("ListActive", mock.Anything, tenant, testNow).Return([]*domain.Offer{}, nil)

	rec := do(t, router, http.MethodPost, "/api/v1/offers/evaluate", map[string]any{
		"tour_id":    "tour-1",
		"base_price": 15000,
	})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"data":{"applied":false,"result":null}}`, rec.Body.String())
}

func TestEvaluateBestOffer_MissingBasePrice(t *testing.T) {
	router, _ := setupRouter(t)
	rec := do(t, router, http.MethodPost, "/api/v1/offers/evaluate", map[string]any{"tour_id": "tour-1"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decodeError(t, rec).Fields, "base_price")
}

func TestEvaluateBestOffer_BadTravelDate(t *testing.T) {
	router, _ := setupRouter(t)
	rec := do(t, router, http.MethodPost, "/api/v1/offers/evaluate", map[string]any{
		"tour_id":     "tour-1",
		"base_price":  100,
		"travel_date": "next week",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decodeError(t, rec).Message, "travel_date")
}

func TestQuoteOffer_NotApplicable(t *testing.T) {
	router, repo := setupRouter(t)
	o := sampleOffer()
	o.MinBookingValue = 50000
	repo.On("GetByID", mock.Anything, tenant, offerID).Return(o, nil)

	rec := do(t, router, http.MethodPost, "/api/v1/offers/"+offerID+"/quote", map[string]any{
		"tour_id":    "tour-1",
		"base_price": 15000,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var got domain.DiscountResult
	decodeData(t, rec, &got)
	assert.False(t, got.IsApplicable)
	assert.Contains(t, got.Reason, "below the minimum")
}

func TestRedeemOffer_Success(t *testing.T) {
	router, repo := setupRouter(t)
	repo.On("GetByID", mock.Anything, tenant, offerID).Return(sampleOffer(), nil)
	repo.On("Redeem", mock.Anything, mock.AnythingOfType("*domain.Redemption"), testNow).Return(1, nil)

	rec := do(t, router, http.MethodPost, "/api/v1/offers/redeem", map[string]any{
		"offer_id":   offerID,
		"booking_id": "bk-100",
		"tour_id":    "tour-1",
		"base_price": 20000,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var got service.RedeemResult
	decodeData(t, rec, &got)
	assert.Equal(t, 1, got.UsedCount)
	assert.Equal(t, int64(18000), got.Redemption.FinalPrice)
}

func TestRedeemOffer_LimitReached(t *testing.T) {
	router, repo := setupRouter(t)
	repo.On("GetByID", mock.Anything, tenant, offerID).Return(sampleOffer(), nil)
	repo.On("Redeem", mock.Anything, mock.Anything, testNow).
		Return(0, apperrors.Conflict("offer usage limit reached"))

	rec := do(t, router, http.MethodPost, "/api/v1/offers/redeem", map[string]any{
		"offer_id":   offerID,
		"booking_id": "bk-101",
		"tour_id":    "tour-1",
		"base_price": 20000,
	})
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestRedeemOffer_InvalidOfferID(t *testing.T) {
	router, _ := setupRouter(t)
	rec := do(t, router, http.MethodPost, "/api/v1/offers/redeem", map[string]any{
		"offer_id":   "nope",
		"booking_id": "bk-1",
		"tour_id":    "tour-1",
		"base_price": 100,
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decodeError(t, rec).Fields, "offer_id")
}

// ============================================================================
// Featured
// ============================================================================

func TestListFeaturedOffers(t *testing.T) {
	router, repo := setupRouter(t)
	featured := sampleOffer()
	featured.IsFeatured = true
	featured.FeaturedBadgeText = "Summer deal"
	plain := sampleOffer()
	plain.ID = "other"
	repo.On("ListActive", mock.Anything, tenant, testNow).Return([]*domain.Offer{featured, plain}, nil)

	rec := do(t, router, http.MethodGet, "/api/v1/offers/featured", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "public, max-age=60", rec.Header().Get("Cache-Control"))

	var views []map[string]any
	decodeData(t, rec, &views)
	require.Len(t, views, 1)
	assert.Equal(t, "Summer deal", views[0]["badge_text"])
	assert.Equal(t, "10% OFF", views[0]["display_text"])
}

// ============================================================================
// Health / metrics
// ============================================================================

func TestHealthAndMetrics(t *testing.T) {
	router, _ := setupRouter(t)

	rec := do(t, router, http.MethodGet, "/health/live", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, router, http.MethodGet, "/health/ready", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	do(t, router, http.MethodGet, "/api/v1/offers/not-a-uuid", nil)
	rec = do(t, router, http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "http_requests_total")
}

func TestPprofDisabledByDefault(t *testing.T) {
	router, _ := setupRouter(t)
	rec := do(t, router, http.MethodGet, "/debug/pprof/", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
