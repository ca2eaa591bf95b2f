package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/angelmondragon/ptm-finance-backend/api/responses"
	"github.com/angelmondragon/ptm-finance-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/ptm-finance-backend/pkg/errors"
	"github.com/angelmondragon/ptm-finance-backend/pkg/logger"
)

const readinessTimeout = 3 * time.Second

// Pinger is a dependency the readiness probe checks.
type Pinger interface {
	Ping(ctx context.Context) error
}

func HealthLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Finance-Env", cfg.App.Env)
		responses.WriteSuccess(w, "OK", map[string]string{"status": "live"})
	}
}

// HealthReady pings every named dependency; nil pingers are skipped.
func HealthReady(cfg *config.Config, logg *logger.Logger, deps map[string]Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Finance-Env", cfg.App.Env)

		ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
		defer cancel()

		checks := make(map[string]string, len(deps))
		for name, dep := range deps {
			if dep == nil {
				continue
			}
			if err := dep.Ping(ctx); err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, name+" unavailable").
					WithDetails(map[string]string{"dependency": name}))
				return
			}
			checks[name] = "up"
		}
		responses.WriteSuccess(w, "OK", map[string]any{"status": "ready", "checks": checks})
	}
}
