package middleware

import (
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/tourhub/offers/pkg/httputil"
	"github.com/tourhub/offers/pkg/logger"
)

// tenantLimiter tracks a token bucket per tenant.
type tenantLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// limiterStore holds per-tenant limiters. Idle entries are swept lazily on
// access once per ttl, so the store needs no background goroutine.
type limiterStore struct {
	mu        sync.Mutex
	limiters  map[string]*tenantLimiter
	rps       rate.Limit
	burst     int
	ttl       time.Duration
	lastSweep time.Time
	nowFunc   func() time.Time
}

func newLimiterStore(rps float64, burst int, ttl time.Duration) *limiterStore {
	return &limiterStore{
		limiters: make(map[string]*tenantLimiter),
		rps:      rate.Limit(rps),
		burst:    burst,
		ttl:      ttl,
		nowFunc:  time.Now,
	}
}

func (s *limiterStore) get(key string) *rate.Limiter {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.nowFunc()
	if now.Sub(s.lastSweep) > s.ttl {
		for k, l := range s.limiters {
			if now.Sub(l.lastSeen) > s.ttl {
				delete(s.limiters, k)
			}
		}
		s.lastSweep = now
	}

	l, ok := s.limiters[key]
	if !ok {
		l = &tenantLimiter{limiter: rate.NewLimiter(s.rps, s.burst)}
		s.limiters[key] = l
	}
	l.lastSeen = now
	return l.limiter
}

func (s *limiterStore) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.limiters)
}

// TenantRateLimit enforces a token bucket of rps requests per second with the
// given burst for each tenant. It must run after Tenant. A non-positive rps
// disables limiting. Rejected requests get 429 with a Retry-After hint.
func TenantRateLimit(rps float64, burst int, l *slog.Logger) func(http.Handler) http.Handler {
	if rps <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	if burst < 1 {
		burst = 1
	}
	store := newLimiterStore(rps, burst, 3*time.Minute)
	retryAfter := strconv.Itoa(int(max(1, 1/rps)))

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tenantID := TenantFromRequest(r)
			if !store.get(tenantID).Allow() {
				l.Warn("rate limit exceeded",
					slog.String("tenant_id", tenantID),
					slog.String("path", r.URL.Path),
				)
				w.Header().Set("Retry-After", retryAfter)
				httputil.WriteJSON(w, http.StatusTooManyRequests, httputil.Response{
					Error: &httputil.ErrorResponse{
						Code:      "RATE_LIMITED",
						Message:   "too many requests",
						RequestID: logger.CorrelationIDFromContext(r.Context()),
					},
				})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
