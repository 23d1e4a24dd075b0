package controllers

import (
	"context"
	"net/http"

	"github.com/angelmondragon/storefront/api/responses"
	"github.com/angelmondragon/storefront/pkg/config"
	pkgerrors "github.com/angelmondragon/storefront/pkg/errors"
	"github.com/angelmondragon/storefront/pkg/logger"
)

// Pinger is satisfied by *db.Client.
type Pinger interface {
	Ping(context.Context) error
}

// Health reports ready once the database answers a ping.
func Health(cfg *config.Config, pinger Pinger, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if logg != nil {
			ctx := logg.WithFields(r.Context(), map[string]any{"env": cfg.App.Env, "path": r.URL.Path})
			logg.Debug(ctx, "health.check")
		}
		w.Header().Set("X-Storefront-Env", cfg.App.Env)
		if pinger != nil {
			if err := pinger.Ping(r.Context()); err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "database unavailable"))
				return
			}
		}
		responses.WriteSuccess(w, map[string]string{"status": "ok"})
	}
}
