package event

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/trace"

	pkgkafka "github.com/tourhub/offers/pkg/kafka"
	"github.com/tourhub/offers/pkg/logger"
	"github.com/tourhub/offers/services/offer/internal/domain"
)

// Kafka topic constants for offer domain events.
const (
	TopicOfferCreated  = "tourhub.offer.created"
	TopicOfferUpdated  = "tourhub.offer.updated"
	TopicOfferRedeemed = "tourhub.offer.redeemed"
)

// AggregateTypeOffer is the aggregate type of every offer event.
const AggregateTypeOffer = "offer"

// SourceOfferService identifies events originating from this service.
const SourceOfferService = "offer-service"

// MetadataTraceID carries the trace of the request that caused the event.
const MetadataTraceID = "trace_id"

// OfferChangedData is the payload of offer.created and offer.updated.
type OfferChangedData struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	Type          string    `json:"type"`
	DiscountValue int64     `json:"discount_value"`
	ValueKind     string    `json:"value_kind"`
	Code          string    `json:"code,omitempty"`
	IsActive      bool      `json:"is_active"`
	IsFeatured    bool      `json:"is_featured"`
	StartDate     time.Time `json:"start_date"`
	EndDate       time.Time `json:"end_date"`
}

// OfferRedeemedData is the payload of offer.redeemed.
type OfferRedeemedData struct {
	RedemptionID   string `json:"redemption_id"`
	OfferID        string `json:"offer_id"`
	BookingID      string `json:"booking_id"`
	CustomerID     string `json:"customer_id,omitempty"`
	OriginalPrice  int64  `json:"original_price"`
	DiscountAmount int64  `json:"discount_amount"`
	FinalPrice     int64  `json:"final_price"`
	Currency       string `json:"currency"`
	UsedCount      int    `json:"used_count"`
}

// Producer publishes offer domain events to Kafka.
type Producer struct {
	kafka  *pkgkafka.Producer
	logger *slog.Logger
}

// NewProducer creates a new event producer for the offer service.
func NewProducer(kafka *pkgkafka.Producer, logger *slog.Logger) *Producer {
	return &Producer{
		kafka:  kafka,
		logger: logger,
	}
}

func changedData(o *domain.Offer) OfferChangedData {
	f := domain.Flatten(o.Terms)
	return OfferChangedData{
		ID:            o.ID,
		Name:          o.Name,
		Type:          string(f.Type),
		DiscountValue: f.DiscountValue,
		ValueKind:     string(f.ValueKind),
		Code:          f.Code,
		IsActive:      o.IsActive,
		IsFeatured:    o.IsFeatured,
		StartDate:     o.StartDate,
		EndDate:       o.EndDate,
	}
}

// PublishOfferCreated publishes an offer.created event.
func (p *Producer) PublishOfferCreated(ctx context.Context, offer *domain.Offer) error {
	return p.publish(ctx, TopicOfferCreated, offer.TenantID, offer.ID, offer.CreatedAt, changedData(offer))
}

// PublishOfferUpdated publishes an offer.updated event.
func (p *Producer) PublishOfferUpdated(ctx context.Context, offer *domain.Offer) error {
	return p.publish(ctx, TopicOfferUpdated, offer.TenantID, offer.ID, offer.UpdatedAt, changedData(offer))
}

// PublishOfferRedeemed publishes an offer.redeemed event.
func (p *Producer) PublishOfferRedeemed(ctx context.Context, r *domain.Redemption, usedCount int) error {
	data := OfferRedeemedData{
		RedemptionID:   r.ID,
		OfferID:        r.OfferID,
		BookingID:      r.BookingID,
		CustomerID:     r.CustomerID,
		OriginalPrice:  r.OriginalPrice,
		DiscountAmount: r.DiscountAmount,
		FinalPrice:     r.FinalPrice,
		Currency:       r.Currency,
		UsedCount:      usedCount,
	}
	return p.publish(ctx, TopicOfferRedeemed, r.TenantID, r.OfferID, r.RedeemedAt, data)
}

func (p *Producer) publish(ctx context.Context, topic, tenantID, offerID string, at time.Time, data any) error {
	event, err := pkgkafka.NewEvent(topic, AggregateTypeOffer, offerID, tenantID, SourceOfferService, at, data)
	if err != nil {
		return fmt.Errorf("create %s event: %w", topic, err)
	}
	if id := logger.CorrelationIDFromContext(ctx); id != "" {
		event.WithCorrelationID(id)
	}
	if sc := trace.SpanContextFromContext(ctx); sc.HasTraceID() {
		event.WithMetadata(MetadataTraceID, sc.TraceID().String())
	}

	if err := p.kafka.Publish(ctx, topic, event); err != nil {
		return fmt.Errorf("publish %s event: %w", topic, err)
	}

	p.logger.DebugContext(ctx, "published offer event",
		slog.String("topic", topic),
		slog.String("offer_id", offerID),
		slog.String("tenant_id", tenantID),
	)
	return nil
}
