package middleware

import (
	"log/slog"
	"net/http"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"
)

// NewLogger logs one line per request with its status, size and duration.
func NewLogger(log *slog.Logger) func(next http.Handler) http.Handler {
	log = log.With(slog.String("component", "middleware/logger"))

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			entry := log.With(
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.String("remote_addr", r.RemoteAddr),
				slog.String("request_id", chimw.GetReqID(r.Context())),
			)

			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()

			defer func() {
				status := ww.Status()
				if status == 0 {
					status = http.StatusOK
				}

				attrs := []any{
					slog.Int("status", status),
					slog.Int("bytes", ww.BytesWritten()),
					slog.String("duration", time.Since(start).String()),
				}

				switch {
				case status >= http.StatusInternalServerError:
					entry.Error("request completed", attrs...)
				case status >= http.StatusBadRequest:
					entry.Warn("request completed", attrs...)
				default:
					entry.Info("request completed", attrs...)
				}
			}()

			next.ServeHTTP(ww, r)
		})
	}
}
