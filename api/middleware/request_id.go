package middleware

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/okabe-dev/bidhouse-backend/pkg/logger"
)

const requestIDHeader = "X-Request-Id"

// RequestID tags each request with an ID, honoring one the caller supplied so
// traders can correlate a bid or buy across their own logs and ours. The ID is
// echoed back in the response header and attached to the request logger.
func RequestID(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			reqID := r.Header.Get(requestIDHeader)
			if reqID == "" {
				reqID = uuid.NewString()
			}
			w.Header().Set(requestIDHeader, reqID)

			ctx := r.Context()
			if logg != nil {
				ctx = logg.WithRequestID(ctx, reqID)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
