package middleware

import (
	"net/http"
	"strings"
	"time"

	"storefront-cart/internal/domain"
	"storefront-cart/pkg/logger"

	"github.com/google/uuid"
)

// RequestLogger logs every request with timing, status and the cart identity it ran under
func RequestLogger(ids domain.IdentitySource) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			// Reuse the caller's request ID when it sends one
			requestID := r.Header.Get("X-Request-ID")
			if requestID == "" {
				requestID = uuid.New().String()[:8]
			}

			reqLogger := logger.WithRequestID(requestID)
			ctx := logger.NewContext(r.Context(), &reqLogger)
			r = r.WithContext(ctx)

			w.Header().Set("X-Request-ID", requestID)

			wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
			next.ServeHTTP(wrapped, r)

			duration := time.Since(start)

			identity := domain.Anonymous
			if ids != nil {
				identity = ids.Current(ctx)
			}

			logEvent := reqLogger.Info()
			if wrapped.statusCode >= 500 {
				logEvent = reqLogger.Error()
			} else if wrapped.statusCode >= 400 {
				logEvent = reqLogger.Warn()
			}

			logEvent.
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Str("query", r.URL.RawQuery).
				Int("status", wrapped.statusCode).
				Dur("duration_ms", duration).
				Str("ip", getClientIP(r)).
				Str("origin", r.Header.Get("Origin")).
				Str("user_agent", r.UserAgent()).
				Str("identity", identity.String()).
				Msg("HTTP")
		})
	}
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Flush keeps event streams working behind the logger
func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// getClientIP extracts client IP from request
func getClientIP(r *http.Request) string {
	// First hop of X-Forwarded-For when behind a proxy
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	host := r.RemoteAddr
	if i := strings.LastIndex(host, ":"); i > 0 {
		host = host[:i]
	}
	return host
}
