package middleware

import (
	"fmt"
	"net/http"
)

// CacheControl marks successful GET responses cacheable for maxAge seconds.
// Responses vary by tenant since every offer listing is tenant scoped.
func CacheControl(maxAge int) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodGet {
				w.Header().Set("Cache-Control", fmt.Sprintf("public, max-age=%d", maxAge))
				w.Header().Add("Vary", TenantHeader)
			}
			next.ServeHTTP(w, r)
		})
	}
}
