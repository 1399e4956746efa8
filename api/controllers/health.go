package controllers

import (
	"net/http"

	"github.com/okabe-dev/bidhouse-backend/api/responses"
	"github.com/okabe-dev/bidhouse-backend/pkg/config"
	"github.com/okabe-dev/bidhouse-backend/pkg/db"
	pkgerrors "github.com/okabe-dev/bidhouse-backend/pkg/errors"
	"github.com/okabe-dev/bidhouse-backend/pkg/logger"
	pkgredis "github.com/okabe-dev/bidhouse-backend/pkg/redis"
)

func HealthLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Bidhouse-Env", cfg.App.Env)
		responses.WriteSuccess(w, map[string]string{"status": "live"})
	}
}

// HealthReady verifies the dependencies a request actually needs. Nil pingers
// are skipped so partial wiring (tests, workers) stays healthy.
func HealthReady(cfg *config.Config, logg *logger.Logger, dbP db.Pinger, redisP pkgredis.Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Bidhouse-Env", cfg.App.Env)

		if dbP != nil {
			if err := dbP.Ping(r.Context()); err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "database unavailable"))
				return
			}
		}
		if redisP != nil {
			if err := redisP.Ping(r.Context()); err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "redis unavailable"))
				return
			}
		}

		responses.WriteSuccess(w, map[string]string{"status": "ready"})
	}
}
