package middleware

import (
	"net/http"
	"strings"

	"github.com/okabe-dev/bidhouse-backend/api/responses"
	pkgauth "github.com/okabe-dev/bidhouse-backend/pkg/auth"
	"github.com/okabe-dev/bidhouse-backend/pkg/config"
	"github.com/okabe-dev/bidhouse-backend/pkg/enums"
	pkgerrors "github.com/okabe-dev/bidhouse-backend/pkg/errors"
	"github.com/okabe-dev/bidhouse-backend/pkg/logger"
)

// Auth validates a bearer token and seeds the request context with the
// trader's address and role.
func Auth(cfg config.JWTConfig, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := strings.TrimSpace(r.Header.Get("Authorization"))
			if raw == "" {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
				return
			}

			token := raw
			if strings.HasPrefix(strings.ToLower(token), "bearer ") {
				token = strings.TrimSpace(token[7:])
			}
			if token == "" {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
				return
			}

			claims, err := pkgauth.ParseAccessToken(cfg, token)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid token"))
				return
			}
			if claims.Address.IsZero() {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "token carries no address"))
				return
			}

			ctx := WithIdentity(r.Context(), claims.Address, claims.Role)
			if logg != nil {
				ctx = logg.WithFields(ctx, map[string]any{
					"address":    claims.Address.String(),
					"actor_role": string(claims.Role),
				})
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireOperator rejects requests whose token does not carry the operator
// role. Operator identity is still re-checked against the market config by
// the services; this only fences the admin surface.
func RequireOperator(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if RoleFromContext(r.Context()) != enums.ActorRoleOperator {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "operator role required"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
