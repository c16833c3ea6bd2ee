package rest_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"

	"github.com/frahmantamala/thesis-repository/internal"
	"github.com/frahmantamala/thesis-repository/internal/audit"
	"github.com/frahmantamala/thesis-repository/internal/auth"
	"github.com/frahmantamala/thesis-repository/internal/core/common/pagination"
	"github.com/frahmantamala/thesis-repository/internal/core/role"
	"github.com/frahmantamala/thesis-repository/internal/storage"
	"github.com/frahmantamala/thesis-repository/internal/transport"
	"github.com/frahmantamala/thesis-repository/internal/transport/middleware"
	"github.com/frahmantamala/thesis-repository/internal/transport/rest"
	"github.com/go-chi/chi"
	"github.com/google/uuid"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/spf13/afero"
)

type stubAuthService struct {
	principals map[string]*internal.Principal
}

func (s *stubAuthService) Authenticate(context.Context, auth.LoginDTO, audit.RequestMeta) (auth.LoginResponse, error) {
	return auth.LoginResponse{}, internal.ErrInvalidCredentials
}

func (s *stubAuthService) Refresh(context.Context, auth.RefreshTokenDTO) (auth.TokenPair, error) {
	return auth.TokenPair{}, internal.ErrInvalidToken
}

func (s *stubAuthService) Logout(context.Context, auth.LogoutDTO, string, audit.RequestMeta) error {
	return nil
}

func (s *stubAuthService) VerifyAccessToken(_ context.Context, token string) (*internal.Principal, error) {
	if p, ok := s.principals[token]; ok {
		return p, nil
	}
	return nil, internal.ErrInvalidToken
}

type stubAuditService struct {
	filter audit.ListFilter
}

func (s *stubAuditService) List(_ context.Context, f audit.ListFilter) (pagination.Page[audit.Log], error) {
	s.filter = f
	return pagination.NewPage[audit.Log](nil, 0, f.Params), nil
}

var _ = Describe("RegisterAllRoutes", func() {
	var (
		router   *chi.Mux
		auditSvc *stubAuditService
		dbErr    error
	)

	BeforeEach(func() {
		lg := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
		base := transport.NewBaseHandler(lg)

		authSvc := &stubAuthService{principals: map[string]*internal.Principal{
			"admin-token":   {ID: uuid.New(), Username: "root", Roles: role.NewSet(role.Admin)},
			"student-token": {ID: uuid.New(), Username: "alice", Roles: role.NewSet(role.Student)},
		}}
		auditSvc = &stubAuditService{}
		dbErr = nil

		fs := afero.NewMemMapFs()
		store := storage.New(fs, lg)
		_, err := store.Save(context.Background(), storage.AvatarPath(uuid.MustParse("00000000-0000-0000-0000-000000000001"), "me.txt"), strings.NewReader("hello"))
		Expect(err).NotTo(HaveOccurred())

		router = chi.NewRouter()
		rest.RegisterAllRoutes(router, rest.Routes{
			Auth:  auth.NewHandler(base, authSvc),
			RBAC:  auth.NewRBACAuthorization(base, lg),
			Audit: audit.NewHandler(base, auditSvc, 20),
			Health: rest.NewHealthHandler(map[string]rest.Check{
				"postgres": func(context.Context) error { return dbErr },
			}),
			Media:          store.Handler(),
			MetricsEnabled: true,
		}, lg)
	})

	serve := func(method, path, token string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(method, path, nil)
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		return rec
	}

	It("answers the liveness probe with a trace id", func() {
		rec := serve(http.MethodGet, "/api/v1/ping", "")
		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(rec.Header().Get(middleware.TraceHeader)).NotTo(BeEmpty())
	})

	It("reports readiness from the registered checks", func() {
		rec := serve(http.MethodGet, "/api/v1/health", "")
		Expect(rec.Code).To(Equal(http.StatusOK))

		// Given the database is down
		dbErr = errors.New("connection refused")
		rec = serve(http.MethodGet, "/api/v1/health", "")

		Expect(rec.Code).To(Equal(http.StatusServiceUnavailable))
		var body rest.HealthResponse
		Expect(json.Unmarshal(rec.Body.Bytes(), &body)).To(Succeed())
		Expect(body.Status).To(Equal(rest.HealthUnhealthy))
		Expect(body.Components["postgres"].Message).To(Equal("connection refused"))
	})

	It("limits the audit log to admins", func() {
		Expect(serve(http.MethodGet, "/api/v1/audit-logs", "").Code).To(Equal(http.StatusUnauthorized))
		Expect(serve(http.MethodGet, "/api/v1/audit-logs", "bogus").Code).To(Equal(http.StatusUnauthorized))
		Expect(serve(http.MethodGet, "/api/v1/audit-logs", "student-token").Code).To(Equal(http.StatusForbidden))

		rec := serve(http.MethodGet, "/api/v1/audit-logs?action=delete&page=2", "admin-token")
		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(auditSvc.filter.Action).To(Equal("DELETE"))
		Expect(auditSvc.filter.Params.Page).To(Equal(2))
	})

	It("serves stored media", func() {
		rec := serve(http.MethodGet, "/media/avatars/00000000-0000-0000-0000-000000000001/me.txt", "")
		Expect(rec.Code).To(Equal(http.StatusOK))
		body, _ := io.ReadAll(rec.Body)
		Expect(string(body)).To(Equal("hello"))
	})

	It("exposes prometheus metrics", func() {
		serve(http.MethodGet, "/api/v1/ping", "")

		rec := serve(http.MethodGet, "/metrics", "")
		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(rec.Body.String()).To(ContainSubstring("thesis_http_requests_total"))
	})
})
