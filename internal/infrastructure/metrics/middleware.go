package metrics

import (
	"net/http"
	"time"
)

// statusRecorder captures the status code written by the wrapped handler.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// Middleware returns an HTTP middleware that records metrics for each request.
func Middleware(collector *Collector, exporter *PrometheusExporter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			method := r.Method

			// Record request
			collector.RecordRequest(method)
			if exporter != nil {
				exporter.RecordRequest(method)
			}

			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)

			// Record duration
			duration := time.Since(start).Seconds()
			collector.RecordDuration(method, duration)
			if exporter != nil {
				exporter.RecordDuration(method, duration)
			}

			// Record server errors; denials are not errors
			if rec.status >= http.StatusInternalServerError {
				collector.RecordError(method)
				if exporter != nil {
					exporter.RecordError(method)
				}
			}
		})
	}
}
