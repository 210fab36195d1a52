package middleware

import (
	"context"
	"net/http"
	"strconv"
	"time"
)

// MetricsRecorder defines the interface for recording HTTP metrics.
type MetricsRecorder interface {
	RecordHTTPRequest(ctx context.Context, method, route, status string, duration time.Duration)
	IncActiveConnections()
	DecActiveConnections()
}

// Metrics returns a middleware that records HTTP metrics. Requests are
// labelled by chi route pattern to keep cardinality bounded; the metrics
// endpoint itself is not recorded.
func Metrics(recorder MetricsRecorder, metricsPath string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == metricsPath {
				next.ServeHTTP(w, r)
				return
			}

			start := time.Now()
			recorder.IncActiveConnections()
			defer recorder.DecActiveConnections()

			wrapped := newStatusRecorder(w)
			record := func() {
				recorder.RecordHTTPRequest(r.Context(), r.Method, routePattern(r), strconv.Itoa(wrapped.status), time.Since(start))
			}

			defer func() {
				if err := recover(); err != nil {
					wrapped.status = http.StatusInternalServerError
					record()
					panic(err)
				}
			}()

			next.ServeHTTP(wrapped, r)
			record()
		})
	}
}
