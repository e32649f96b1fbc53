// Package metrics holds the offer service's business metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Evaluation outcomes.
const (
	OutcomeApplied  = "applied"
	OutcomeNoOffer  = "no_offer"
	OutcomeError    = "error"
	OutcomeRedeemed = "redeemed"
	OutcomeRejected = "rejected"
	OutcomeLimit    = "limit_reached"
)

// Offers records evaluations, redemptions and cache effectiveness.
// A nil *Offers is a valid no-op recorder.
type Offers struct {
	evaluations *prometheus.CounterVec
	redemptions *prometheus.CounterVec
	discounts   *prometheus.HistogramVec
	cacheHits   prometheus.Counter
	cacheMisses prometheus.Counter
}

// New registers the offer collectors with reg.
func New(reg prometheus.Registerer) *Offers {
	f := promauto.With(reg)
	return &Offers{
		evaluations: f.NewCounterVec(prometheus.CounterOpts{
			Name: "offer_evaluations_total",
			Help: "Best-offer evaluations by outcome.",
		}, []string{"outcome"}),
		redemptions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "offer_redemptions_total",
			Help: "Offer redemptions by outcome.",
		}, []string{"outcome"}),
		discounts: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "offer_discount_amount_minor",
			Help:    "Applied discount amounts in minor currency units.",
			Buckets: prometheus.ExponentialBuckets(100, 2, 12),
		}, []string{"type"}),
		cacheHits: f.NewCounter(prometheus.CounterOpts{
			Name: "offer_active_cache_hits_total",
			Help: "Active offer cache hits.",
		}),
		cacheMisses: f.NewCounter(prometheus.CounterOpts{
			Name: "offer_active_cache_misses_total",
			Help: "Active offer cache misses.",
		}),
	}
}

// Evaluation counts one evaluation.
func (m *Offers) Evaluation(outcome string) {
	if m == nil {
		return
	}
	m.evaluations.WithLabelValues(outcome).Inc()
}

// Redemption counts one redemption attempt.
func (m *Offers) Redemption(outcome string) {
	if m == nil {
		return
	}
	m.redemptions.WithLabelValues(outcome).Inc()
}

// Discount observes an applied discount of an offer type.
func (m *Offers) Discount(offerType string, amount int64) {
	if m == nil {
		return
	}
	m.discounts.WithLabelValues(offerType).Observe(float64(amount))
}

// Cache counts one active offer cache lookup.
func (m *Offers) Cache(hit bool) {
	if m == nil {
		return
	}
	if hit {
		m.cacheHits.Inc()
		return
	}
	m.cacheMisses.Inc()
}
