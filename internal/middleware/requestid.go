package middleware

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/pamaxie/Pamaxie.Scan-API/internal/logging"
)

type contextKey string

const requestIDKey contextKey = "request_id"

// RequestID assigns every inbound request a correlation ID, honoring one
// supplied by an upstream proxy and generating a fresh UUID otherwise. The
// ID is echoed on the response and threaded into the request's logger.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.New().String()
		}

		w.Header().Set("X-Request-ID", requestID)

		ctx := context.WithValue(r.Context(), requestIDKey, requestID)
		ctx = logging.ContextWithRequestID(ctx, requestID)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequestIDFromContext extracts the request ID set by RequestID, if any.
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}
