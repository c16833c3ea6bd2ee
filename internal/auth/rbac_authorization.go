package auth

import (
	"log/slog"
	"net/http"

	"github.com/frahmantamala/thesis-repository/internal"
	"github.com/frahmantamala/thesis-repository/internal/core/role"
	"github.com/frahmantamala/thesis-repository/internal/transport"
)

type RBACAuthorization struct {
	*transport.BaseHandler
	logger *slog.Logger
}

func NewRBACAuthorization(base *transport.BaseHandler, logger *slog.Logger) *RBACAuthorization {
	if logger == nil {
		logger = slog.Default()
	}
	if base == nil {
		base = transport.NewBaseHandler(logger)
	}
	return &RBACAuthorization{
		BaseHandler: base,
		logger:      logger,
	}
}

func (ra *RBACAuthorization) Check(next http.HandlerFunc, roles ...role.Name) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		principal, ok := internal.PrincipalFromContext(r.Context())
		if !ok {
			ra.logger.Warn("authorization check failed: principal not found in context")
			ra.HandleServiceError(w, r, internal.ErrAuthenticationRequired)
			return
		}

		if !principal.Roles.HasAny(roles...) {
			ra.logger.WarnContext(r.Context(), "access denied: missing role",
				"user_id", principal.ID,
				"required_roles", roles,
				"user_roles", principal.Roles.Strings())
			ra.HandleServiceError(w, r, internal.NewPermissionDeniedError("you do not have permission to perform this action"))
			return
		}

		next.ServeHTTP(w, r)
	}
}

// RequireRole admits principals holding at least one of roles.
func (ra *RBACAuthorization) RequireRole(roles ...role.Name) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return ra.Check(next.ServeHTTP, roles...)
	}
}

func (ra *RBACAuthorization) RequireAdmin() func(http.Handler) http.Handler {
	return ra.RequireRole(role.Admin)
}
