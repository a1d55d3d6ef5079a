// Package requesttime pins a single "now" per HTTP request so audit
// timestamps, SLA deadlines, and domain timestamps within one operation never
// disagree.
package requesttime

import (
	"net/http"
	"time"

	"txgate/pkg/requestcontext"
)

// Middleware captures the current time at the start of the request and stores
// it in the context.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		now := time.Now()
		ctx := requestcontext.WithTime(r.Context(), now)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
