package rest

import (
	"log/slog"
	"net/http"

	"github.com/frahmantamala/thesis-repository/internal/audit"
	"github.com/frahmantamala/thesis-repository/internal/auth"
	"github.com/frahmantamala/thesis-repository/internal/observability"
	"github.com/frahmantamala/thesis-repository/internal/thesis"
	"github.com/frahmantamala/thesis-repository/internal/transport/middleware"
	"github.com/frahmantamala/thesis-repository/internal/transport/swagger"
	"github.com/frahmantamala/thesis-repository/internal/user"
	"github.com/go-chi/chi"
)

// Routes bundles everything RegisterAllRoutes mounts. Nil handlers are skipped.
type Routes struct {
	Auth    *auth.Handler
	RBAC    *auth.RBACAuthorization
	User    *user.Handler
	Thesis  *thesis.Handler
	Audit   *audit.Handler
	Health  *HealthHandler
	Media   http.Handler
	Origins []string

	MetricsEnabled bool
	MetricsPath    string
	OpenAPIFile    string
}

func RegisterAllRoutes(router *chi.Mux, rt Routes, logger *slog.Logger) {
	router.Use(middleware.RequestID)
	router.Use(middleware.RecoveryMiddleware(logger))
	router.Use(middleware.CORS(rt.Origins))
	router.Use(middleware.Metrics)
	router.Use(middleware.LoggingMiddleware(logger))

	if rt.MetricsEnabled {
		path := rt.MetricsPath
		if path == "" {
			path = "/metrics"
		}
		router.Handle(path, observability.MetricsHandler())
	}

	if rt.OpenAPIFile != "" {
		router.Get("/openapi.yml", func(w http.ResponseWriter, r *http.Request) {
			http.ServeFile(w, r, rt.OpenAPIFile)
		})
		router.Handle("/swagger/*", swagger.Handler("/openapi.yml"))
	}

	if rt.Media != nil {
		router.Handle("/media/*", http.StripPrefix("/media", rt.Media))
	}

	router.Route("/api/v1", func(r chi.Router) {
		if rt.Health != nil {
			r.Get("/health", rt.Health.healthCheckHandler)
			r.Get("/ping", rt.Health.pingHandler)
		}

		if rt.Auth == nil {
			return
		}

		r.Route("/auth", func(ar chi.Router) {
			ar.Post("/login", rt.Auth.Login)
			ar.Post("/refresh", rt.Auth.RefreshToken)
			ar.Post("/logout", rt.Auth.Logout)
		})

		// Signup is public; the service decides whether the caller may grant ADMIN.
		if rt.User != nil {
			r.With(rt.Auth.OptionalAuth, middleware.UserContext).Post("/users", rt.User.CreateUser)
		}

		r.Group(func(pr chi.Router) {
			pr.Use(rt.Auth.AuthMiddleware)
			pr.Use(middleware.UserContext)

			// Flat paths: a mounted /users subrouter would shadow the public POST above.
			if rt.User != nil {
				pr.Get("/users", rt.User.ListUsers)
				pr.Get("/users/me", rt.User.GetCurrentUser)
				pr.Get("/users/roles", rt.User.ListRoles)
				pr.Patch("/users/{id}", rt.User.UpdateUser)
				pr.Post("/users/{id}/change-password", rt.User.ChangePassword)
			}

			if rt.Thesis != nil {
				pr.Route("/thesis", func(tr chi.Router) {
					tr.Get("/", rt.Thesis.ListThesis)
					tr.Post("/", rt.Thesis.CreateThesis)
					tr.Get("/mine", rt.Thesis.ListMyThesis)
					tr.Get("/{id}", rt.Thesis.GetThesis)
					tr.Patch("/{id}", rt.Thesis.UpdateThesis)
					tr.Delete("/{id}", rt.Thesis.DeleteThesis)
				})
			}

			if rt.Audit != nil && rt.RBAC != nil {
				pr.With(rt.RBAC.RequireAdmin()).Get("/audit-logs", rt.Audit.ListAuditLogs)
			}
		})
	})
}
