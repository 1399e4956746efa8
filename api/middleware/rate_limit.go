package middleware

import (
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/okabe-dev/bidhouse-backend/api/responses"
	pkgerrors "github.com/okabe-dev/bidhouse-backend/pkg/errors"
	"github.com/okabe-dev/bidhouse-backend/pkg/logger"
	pkgredis "github.com/okabe-dev/bidhouse-backend/pkg/redis"
)

// RateLimit applies a fixed-window limit per authenticated address (falling
// back to the caller's IP). A nil client disables the limit.
func RateLimit(client *pkgredis.Client, scope string, limit int64, window time.Duration, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if client == nil || limit <= 0 {
				next.ServeHTTP(w, r)
				return
			}

			who := AddressFromContext(r.Context()).String()
			if who == "" {
				host, _, err := net.SplitHostPort(r.RemoteAddr)
				if err != nil {
					host = r.RemoteAddr
				}
				who = host
			}

			allowed, _, err := client.FixedWindowAllow(r.Context(), fmt.Sprintf("%s:%s", scope, who), limit, window)
			if err != nil {
				// Fail open: the limiter protects capacity, it is not an
				// authorization gate.
				if logg != nil {
					logg.Error(r.Context(), "rate limit check failed", err)
				}
				next.ServeHTTP(w, r)
				return
			}
			if !allowed {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeRateLimit, "too many requests"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
