package middleware

import (
	"net/http"

	"github.com/frahmantamala/thesis-repository/internal"
	"github.com/frahmantamala/thesis-repository/pkg/logger"
)

// UserContext tags the request logger with the authenticated caller. It must
// run after the auth middleware.
func UserContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if p, ok := internal.PrincipalFromContext(ctx); ok {
			ctx = logger.With(ctx, "user_id", p.ID.String(), "username", p.Username)
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
