package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tourhub/offers/pkg/health"
	"github.com/tourhub/offers/pkg/middleware"
	"github.com/tourhub/offers/services/offer/internal/service"
)

// RouterConfig holds the router's non-service dependencies.
type RouterConfig struct {
	ServiceName string
	CORS        middleware.CORSConfig
	// PprofCIDRs enables /debug/pprof for these networks. Empty disables it.
	PprofCIDRs []string
	// FeaturedMaxAge is the Cache-Control max-age of the featured listing in seconds.
	FeaturedMaxAge int
	// Registry backs /metrics and receives the HTTP collectors.
	Registry *prometheus.Registry
	Timeout  time.Duration
	// RateLimitRPS is the per-tenant request rate on the offer API. Zero disables it.
	RateLimitRPS   float64
	RateLimitBurst int
}

// NewRouter creates a chi router with all offer service routes registered.
func NewRouter(
	offerService *service.OfferService,
	healthHandler *health.Handler,
	cfg RouterConfig,
	logger *slog.Logger,
) http.Handler {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	httpMetrics := middleware.NewHTTPMetrics(cfg.Registry, cfg.ServiceName)

	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.RequestLogging(logger))
	r.Use(middleware.Tracing(cfg.ServiceName))
	r.Use(httpMetrics.Handler)
	r.Use(middleware.CORS(cfg.CORS))
	r.Use(chimw.Compress(5))
	r.Use(chimw.Timeout(cfg.Timeout))

	// Health check endpoints
	r.Get("/health/live", healthHandler.LivenessHandler())
	r.Get("/health/ready", healthHandler.ReadinessHandler())
	r.Handle("/metrics", promhttp.HandlerFor(cfg.Registry, promhttp.HandlerOpts{Registry: cfg.Registry}))
	middleware.RegisterPprof(r, cfg.PprofCIDRs, logger)

	// Offer API endpoints
	offerHandler := NewOfferHandler(offerService, logger)

	r.Route("/api/v1/offers", func(r chi.Router) {
		r.Use(middleware.Tenant)
		r.Use(middleware.RequestLogger(logger))
		r.Use(middleware.TenantRateLimit(cfg.RateLimitRPS, cfg.RateLimitBurst, logger))

		r.Post("/", offerHandler.CreateOffer)
		r.Get("/", offerHandler.ListOffers)

		// Static paths must come before /{id}.
		r.With(middleware.CacheControl(cfg.FeaturedMaxAge)).Get("/featured", offerHandler.ListFeaturedOffers)
		r.Post("/evaluate", offerHandler.EvaluateBestOffer)
		r.Post("/redeem", offerHandler.RedeemOffer)

		r.Get("/{id}", offerHandler.GetOffer)
		r.Put("/{id}", offerHandler.UpdateOffer)
		r.Post("/{id}/deactivate", offerHandler.DeactivateOffer)
		r.Post("/{id}/quote", offerHandler.QuoteOffer)
	})

	return r
}
