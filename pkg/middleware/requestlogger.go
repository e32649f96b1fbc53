package middleware

import (
	"log/slog"
	"net/http"

	"github.com/tourhub/offers/pkg/logger"
)

// RequestLogger stores a logger enriched with correlation, tenant, user and
// trace ids in the request context. Mount it after RequestLogging, Tracing
// and Tenant.
func RequestLogger(base *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			if userID := r.Header.Get("X-User-ID"); userID != "" {
				ctx = logger.WithUserID(ctx, userID)
			}
			ctx = logger.NewContext(ctx, logger.WithContext(ctx, base))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
