package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/jsmemes/internal/metrics"
)

// Instrument records request count and latency per route.
//
// The route label is chi's matched pattern ("/api/snippets/{id}"), not the
// raw path, so snippet IDs don't blow up label cardinality.
func Instrument(m *metrics.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			wrapped := wrap(w)

			next.ServeHTTP(wrapped, r)

			route := "unmatched"
			if rctx := chi.RouteContext(r.Context()); rctx != nil {
				if p := rctx.RoutePattern(); p != "" {
					route = p
				}
			}
			m.ObserveRequest(r.Method, route, strconv.Itoa(wrapped.statusCode), time.Since(start))
		})
	}
}
