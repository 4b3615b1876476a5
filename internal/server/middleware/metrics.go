package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/colonyforge/marketd/internal/metrics"
)

// Metrics returns middleware that records per-request Prometheus metrics:
// a request counter labelled by method, route pattern, and status class, and
// a latency histogram labelled by method and route pattern.
func Metrics(em *metrics.EngineMetrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			rw := &responseWriter{
				ResponseWriter: w,
				statusCode:     http.StatusOK,
			}

			next.ServeHTTP(rw, r)

			// The matched pattern keeps label cardinality bounded; raw
			// paths would blow it up with every market ID.
			route := r.Pattern
			if route == "" {
				route = "unmatched"
			}

			statusClass := strconv.Itoa(rw.statusCode/100) + "xx"
			em.HTTPRequestsTotal.WithLabelValues(r.Method, route, statusClass).Inc()
			em.HTTPRequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
		})
	}
}
