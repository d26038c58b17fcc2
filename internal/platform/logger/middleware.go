package logger

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
)

// RequestLogger returns a chi-compatible middleware that logs each request
// with method, path, status, duration_ms, and response size. Server errors
// are logged at warn, everything else at debug so ingest traffic stays quiet.
func RequestLogger(log *slog.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			dur := time.Since(start)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			lvl := slog.LevelDebug
			if status >= http.StatusInternalServerError {
				lvl = slog.LevelWarn
			}
			log.Log(r.Context(), lvl, "request",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", status),
				slog.Int("duration_ms", int(dur.Milliseconds())),
				slog.Int("size", ww.BytesWritten()),
			)
		})
	}
}
