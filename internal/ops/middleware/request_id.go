// Package middleware provides HTTP middleware for the ops API.
package middleware

import (
	"context"
	"net/http"

	"github.com/google/uuid"
)

// maxInboundRequestID caps host-supplied correlation ids so a misbehaving
// caller cannot inflate every log line.
const maxInboundRequestID = 64

// requestIDKey is the context key for the request ID.
type requestIDKey struct{}

// RequestID attaches a correlation id to the request context and echoes it
// in the X-Request-Id response header. The host app may supply its own id
// to correlate bridge calls with its client-side logs; oversized values are
// replaced, not truncated.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-Id")
		if requestID == "" || len(requestID) > maxInboundRequestID {
			requestID = "req_" + uuid.New().String()[:22]
		}

		w.Header().Set("X-Request-Id", requestID)

		ctx := context.WithValue(r.Context(), requestIDKey{}, requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetRequestID retrieves the request ID from the context.
func GetRequestID(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey{}).(string); ok {
		return id
	}
	return ""
}
