package middleware

import (
	"context"
	"net/http"

	"github.com/angelmondragon/ptm-finance-backend/api/responses"
	"github.com/angelmondragon/ptm-finance-backend/api/validators"
	pkgAuth "github.com/angelmondragon/ptm-finance-backend/pkg/auth"
	"github.com/angelmondragon/ptm-finance-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/ptm-finance-backend/pkg/errors"
	"github.com/angelmondragon/ptm-finance-backend/pkg/logger"
)

// Auth validates the session token from the cookie or bearer header and
// seeds the request context with the actor.
func Auth(cfg config.JWTConfig, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := validators.RequestToken(r, cfg.CookieName)
			if token == "" {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "Unauthorized. Token not provided."))
				return
			}

			claims, err := pkgAuth.ParseAccessToken(cfg, token)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "Unauthorized. Invalid token."))
				return
			}

			actorID, err := claims.ActorID()
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "Unauthorized. User not authenticated."))
				return
			}

			ctx := WithActor(r.Context(), actorID, token)
			if claims.Role != "" {
				ctx = context.WithValue(ctx, ctxRole, claims.Role)
			}

			if logg != nil {
				ctx = logg.WithActorID(ctx, actorID)
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
