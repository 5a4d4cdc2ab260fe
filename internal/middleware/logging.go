// Package middleware holds the HTTP middleware shared by the admin API.
package middleware

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"triggerd/internal/common/logging"
)

// RequestIDHeader carries the request id in and out of the API.
const RequestIDHeader = "X-Request-ID"

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Logging tags every request with an id, stores it in the request context
// and logs method, path, status and duration once the handler returns.
func Logging(logger logging.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			requestID := r.Header.Get(RequestIDHeader)
			if requestID == "" {
				requestID = uuid.NewString()
			}
			w.Header().Set(RequestIDHeader, requestID)
			r = r.WithContext(logging.ContextWithRequestID(r.Context(), requestID))

			wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
			next.ServeHTTP(wrapped, r)

			fields := []logging.Field{
				logging.String("method", r.Method),
				logging.String("path", r.URL.Path),
				logging.Int("status", wrapped.statusCode),
				logging.Int64("duration_ms", time.Since(start).Milliseconds()),
				logging.String("remote_addr", r.RemoteAddr),
			}
			if r.URL.RawQuery != "" {
				fields = append(fields, logging.String("query", r.URL.RawQuery))
			}

			log := logger.WithContext(r.Context())
			switch {
			case wrapped.statusCode >= 500:
				log.Error("HTTP request completed", nil, fields...)
			case wrapped.statusCode >= 400:
				log.Warn("HTTP request completed", fields...)
			default:
				log.Debug("HTTP request completed", fields...)
			}
		})
	}
}

// Recover turns handler panics into 500 responses.
func Recover(logger logging.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					logger.WithContext(r.Context()).Error("Handler panicked", nil,
						logging.Any("panic", rec),
						logging.String("path", r.URL.Path),
					)
					http.Error(w, "Internal server error", http.StatusInternalServerError)
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}
