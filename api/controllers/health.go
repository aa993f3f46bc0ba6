package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/angelmondragon/agrivet-pos/api/responses"
	"github.com/angelmondragon/agrivet-pos/pkg/config"
	pkgerrors "github.com/angelmondragon/agrivet-pos/pkg/errors"
	"github.com/angelmondragon/agrivet-pos/pkg/logger"
)

const readyTimeout = 2 * time.Second

// Pinger is a dependency the readiness probe checks.
type Pinger interface {
	Ping(ctx context.Context) error
}

// BreakerReporter exposes the transaction sink's circuit state.
type BreakerReporter interface {
	BreakerState() string
}

// ReadyDeps lists what /health/ready inspects. Nil entries are skipped.
type ReadyDeps struct {
	DB      Pinger
	Redis   Pinger
	Breaker BreakerReporter
}

func HealthLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-POS-Env", cfg.App.Env)
		responses.WriteSuccess(w, map[string]string{"status": "live"})
	}
}

// HealthReady fails when the database or Redis is unreachable. An open
// breaker is reported but does not fail the probe; carts keep working.
func HealthReady(cfg *config.Config, deps ReadyDeps, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-POS-Env", cfg.App.Env)
		ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
		defer cancel()

		checks := map[string]string{}
		var failed []string
		probe := func(name string, p Pinger) {
			if p == nil {
				return
			}
			if err := p.Ping(ctx); err != nil {
				checks[name] = "down"
				failed = append(failed, name)
				return
			}
			checks[name] = "up"
		}
		probe("database", deps.DB)
		probe("redis", deps.Redis)
		if deps.Breaker != nil {
			checks["transaction_sink"] = deps.Breaker.BreakerState()
		}

		if len(failed) > 0 {
			responses.WriteError(r.Context(), logg, w,
				pkgerrors.New(pkgerrors.CodeDependency, "dependency unavailable").WithDetails(map[string]any{"failed": failed, "checks": checks}))
			return
		}
		responses.WriteSuccess(w, map[string]any{"status": "ready", "checks": checks})
	}
}
