package middleware

import (
	"net/http"

	"github.com/angelmondragon/materials-ledger/api/validators"
	"github.com/angelmondragon/materials-ledger/pkg/logger"
)

const (
	actorIDHeader = "X-Actor-Id"
	maxActorLen   = 128
)

// Actor copies the caller identity from X-Actor-Id into the request context.
// Authentication happens upstream; the header is trusted as-is.
func Actor(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actorID := validators.SanitizeString(r.Header.Get(actorIDHeader), maxActorLen)
			if actorID == "" {
				next.ServeHTTP(w, r)
				return
			}

			ctx := WithActorID(r.Context(), actorID)
			if logg != nil {
				ctx = logg.WithActorID(ctx, actorID)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
