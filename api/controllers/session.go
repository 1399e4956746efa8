package controllers

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/okabe-dev/bidhouse-backend/api/middleware"
	"github.com/okabe-dev/bidhouse-backend/api/responses"
	"github.com/okabe-dev/bidhouse-backend/api/validators"
	"github.com/okabe-dev/bidhouse-backend/internal/market"
	pkgauth "github.com/okabe-dev/bidhouse-backend/pkg/auth"
	"github.com/okabe-dev/bidhouse-backend/pkg/config"
	"github.com/okabe-dev/bidhouse-backend/pkg/enums"
	pkgerrors "github.com/okabe-dev/bidhouse-backend/pkg/errors"
	"github.com/okabe-dev/bidhouse-backend/pkg/logger"
	pkgredis "github.com/okabe-dev/bidhouse-backend/pkg/redis"
	"github.com/okabe-dev/bidhouse-backend/pkg/types"
)

const refreshTokenTTL = 30 * 24 * time.Hour

type sessionRequest struct {
	Address string `json:"address" validate:"required,min=3"`
}

type refreshRequest struct {
	Address      string `json:"address" validate:"required,min=3"`
	RefreshToken string `json:"refresh_token" validate:"required"`
}

type sessionResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	Role         string `json:"role"`
}

// OpenSession mints a token pair for an address. The configured operator
// address receives the operator role, everyone else trades.
func OpenSession(marketSvc market.Service, redisClient *pkgredis.Client, jwtCfg config.JWTConfig, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body sessionRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		address, err := types.ParseAddress(body.Address)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid address"))
			return
		}

		role := enums.ActorRoleTrader
		if cfg, err := marketSvc.Get(r.Context()); err == nil && cfg.OperatorAddress == address {
			role = enums.ActorRoleOperator
		}

		payload, err := issueTokens(r, redisClient, jwtCfg, address, role)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, payload)
	}
}

// RefreshSession rotates the refresh token and mints a fresh access token.
func RefreshSession(marketSvc market.Service, redisClient *pkgredis.Client, jwtCfg config.JWTConfig, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body refreshRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		address, err := types.ParseAddress(body.Address)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid address"))
			return
		}

		stored, err := redisClient.GetRefreshToken(r.Context(), address.String())
		if err != nil || stored == "" || stored != body.RefreshToken {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "refresh token unknown"))
			return
		}

		role := enums.ActorRoleTrader
		if cfg, err := marketSvc.Get(r.Context()); err == nil && cfg.OperatorAddress == address {
			role = enums.ActorRoleOperator
		}

		payload, err := issueTokens(r, redisClient, jwtCfg, address, role)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, payload)
	}
}

// CloseSession revokes the caller's refresh token.
func CloseSession(redisClient *pkgredis.Client, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		address := middleware.AddressFromContext(r.Context())
		if address.IsZero() {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "not authenticated"))
			return
		}
		if err := redisClient.RevokeRefreshToken(r.Context(), address.String()); err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "revoke refresh token"))
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "logged_out"})
	}
}

func issueTokens(r *http.Request, redisClient *pkgredis.Client, jwtCfg config.JWTConfig, address types.Address, role enums.ActorRole) (*sessionResponse, error) {
	access, err := pkgauth.MintAccessToken(jwtCfg, time.Now(), pkgauth.AccessTokenPayload{
		Address: address,
		Role:    role,
		JTI:     uuid.NewString(),
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mint access token")
	}

	refresh := uuid.NewString()
	if redisClient != nil {
		if err := redisClient.StoreRefreshToken(r.Context(), address.String(), refresh, refreshTokenTTL); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "store refresh token")
		}
	}

	return &sessionResponse{
		AccessToken:  access,
		RefreshToken: refresh,
		Role:         string(role),
	}, nil
}
