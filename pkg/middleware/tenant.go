package middleware

import (
	"net/http"
	"regexp"
	"strings"

	"github.com/tourhub/offers/pkg/httputil"
	"github.com/tourhub/offers/pkg/logger"
)

// TenantHeader carries the tenant that owns the request.
const TenantHeader = "X-Tenant-ID"

var tenantIDRe = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_.-]{0,63}$`)

// Tenant requires a well-formed X-Tenant-ID header and stores it in the
// request context (see logger.TenantIDFromContext).
func Tenant(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tenantID := strings.TrimSpace(r.Header.Get(TenantHeader))
		if tenantID == "" {
			writeTenantError(w, r, "missing "+TenantHeader+" header")
			return
		}
		if !tenantIDRe.MatchString(tenantID) {
			writeTenantError(w, r, "malformed "+TenantHeader+" header")
			return
		}
		next.ServeHTTP(w, r.WithContext(logger.WithTenantID(r.Context(), tenantID)))
	})
}

// TenantFromRequest returns the tenant set by Tenant.
func TenantFromRequest(r *http.Request) string {
	return logger.TenantIDFromContext(r.Context())
}

func writeTenantError(w http.ResponseWriter, r *http.Request, message string) {
	httputil.WriteJSON(w, http.StatusBadRequest, httputil.Response{
		Error: &httputil.ErrorResponse{
			Code:      "MISSING_TENANT",
			Message:   message,
			RequestID: logger.CorrelationIDFromContext(r.Context()),
		},
	})
}
