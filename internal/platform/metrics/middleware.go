package metrics

import (
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
)

// RequestMiddleware returns chi-compatible middleware that records request count
// and error count (status >= 400) in the given Metrics. Scrapes of /metrics
// are not counted.
func RequestMiddleware(m *Metrics) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/metrics" {
				next.ServeHTTP(w, r)
				return
			}
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			m.IncRequests()
			if ww.Status() >= 400 {
				m.IncErrors()
			}
		})
	}
}
