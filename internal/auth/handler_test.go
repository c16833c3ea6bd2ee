package auth

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"

	"github.com/frahmantamala/thesis-repository/internal"
	"github.com/frahmantamala/thesis-repository/internal/audit"
	"github.com/frahmantamala/thesis-repository/internal/core/role"
	"github.com/frahmantamala/thesis-repository/internal/transport"
	"github.com/google/uuid"
	"github.com/onsi/ginkgo/v2"
	"github.com/onsi/gomega"
)

type stubService struct {
	principal *internal.Principal
	verifyErr error
	loginErr  error
	lastLogin LoginDTO
	loggedOut string
}

func (s *stubService) Authenticate(_ context.Context, dto LoginDTO, _ audit.RequestMeta) (LoginResponse, error) {
	s.lastLogin = dto
	if s.loginErr != nil {
		return LoginResponse{}, s.loginErr
	}
	return LoginResponse{TokenPair: TokenPair{AccessToken: "a", RefreshToken: "r", TokenType: "Bearer"}}, nil
}

func (s *stubService) Refresh(context.Context, RefreshTokenDTO) (TokenPair, error) {
	return TokenPair{AccessToken: "a2", RefreshToken: "r2"}, nil
}

func (s *stubService) Logout(_ context.Context, _ LogoutDTO, accessToken string, _ audit.RequestMeta) error {
	s.loggedOut = accessToken
	return nil
}

func (s *stubService) VerifyAccessToken(_ context.Context, token string) (*internal.Principal, error) {
	if s.verifyErr != nil {
		return nil, s.verifyErr
	}
	return s.principal, nil
}

var _ = ginkgo.Describe("Handler", func() {
	var (
		stub    *stubService
		handler *Handler
		rbac    *RBACAuthorization
		reached *internal.Principal
		next    http.Handler
	)

	ginkgo.BeforeEach(func() {
		lg := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
		stub = &stubService{principal: &internal.Principal{ID: uuid.New(), Username: "alice", Roles: role.NewSet(role.Student)}}
		base := transport.NewBaseHandler(lg)
		handler = NewHandler(base, stub)
		rbac = NewRBACAuthorization(base, lg)
		reached = nil
		next = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			reached, _ = internal.PrincipalFromContext(r.Context())
			w.WriteHeader(http.StatusOK)
		})
	})

	ginkgo.Describe("Login", func() {
		ginkgo.It("should return the token pair", func() {
			req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(`{"username":"alice","password":"Correct#Pass1"}`))
			rec := httptest.NewRecorder()

			handler.Login(rec, req)

			gomega.Expect(rec.Code).To(gomega.Equal(http.StatusOK))
			gomega.Expect(stub.lastLogin.Username).To(gomega.Equal("alice"))
			var body map[string]interface{}
			gomega.Expect(json.Unmarshal(rec.Body.Bytes(), &body)).To(gomega.Succeed())
			gomega.Expect(body["access_token"]).To(gomega.Equal("a"))
		})

		ginkgo.It("should map invalid credentials to 401", func() {
			stub.loginErr = internal.ErrInvalidCredentials
			req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(`{"username":"alice","password":"nope"}`))
			rec := httptest.NewRecorder()

			handler.Login(rec, req)

			gomega.Expect(rec.Code).To(gomega.Equal(http.StatusUnauthorized))
			gomega.Expect(rec.Body.String()).To(gomega.ContainSubstring("invalid credentials"))
		})

		ginkgo.It("should reject a malformed body", func() {
			rec := httptest.NewRecorder()
			handler.Login(rec, httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(`{`)))

			gomega.Expect(rec.Code).To(gomega.Equal(http.StatusBadRequest))
		})
	})

	ginkgo.Describe("Logout", func() {
		ginkgo.It("should pass the bearer access token along", func() {
			req := httptest.NewRequest(http.MethodPost, "/auth/logout", strings.NewReader(`{"refresh_token":"r"}`))
			req.Header.Set("Authorization", "Bearer access-123")
			rec := httptest.NewRecorder()

			handler.Logout(rec, req)

			gomega.Expect(rec.Code).To(gomega.Equal(http.StatusNoContent))
			gomega.Expect(stub.loggedOut).To(gomega.Equal("access-123"))
		})
	})

	ginkgo.Describe("AuthMiddleware", func() {
		ginkgo.It("should require a bearer token", func() {
			rec := httptest.NewRecorder()
			handler.AuthMiddleware(next).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/users/me", nil))

			gomega.Expect(rec.Code).To(gomega.Equal(http.StatusUnauthorized))
			gomega.Expect(reached).To(gomega.BeNil())
		})

		ginkgo.It("should put the principal into the request context", func() {
			req := httptest.NewRequest(http.MethodGet, "/users/me", nil)
			req.Header.Set("Authorization", "bearer token")
			rec := httptest.NewRecorder()

			handler.AuthMiddleware(next).ServeHTTP(rec, req)

			gomega.Expect(rec.Code).To(gomega.Equal(http.StatusOK))
			gomega.Expect(reached.Username).To(gomega.Equal("alice"))
		})

		ginkgo.It("should answer 401 for inactive users", func() {
			stub.verifyErr = internal.ErrUserInactive
			req := httptest.NewRequest(http.MethodGet, "/users/me", nil)
			req.Header.Set("Authorization", "Bearer token")
			rec := httptest.NewRecorder()

			handler.AuthMiddleware(next).ServeHTTP(rec, req)

			gomega.Expect(rec.Code).To(gomega.Equal(http.StatusUnauthorized))
		})
	})

	ginkgo.Describe("OptionalAuth", func() {
		ginkgo.It("should let anonymous requests through", func() {
			rec := httptest.NewRecorder()
			handler.OptionalAuth(next).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/users", nil))

			gomega.Expect(rec.Code).To(gomega.Equal(http.StatusOK))
			gomega.Expect(reached).To(gomega.BeNil())
		})

		ginkgo.It("should still reject a bad token", func() {
			stub.verifyErr = internal.ErrInvalidToken
			req := httptest.NewRequest(http.MethodPost, "/users", nil)
			req.Header.Set("Authorization", "Bearer broken")
			rec := httptest.NewRecorder()

			handler.OptionalAuth(next).ServeHTTP(rec, req)

			gomega.Expect(rec.Code).To(gomega.Equal(http.StatusUnauthorized))
		})
	})

	ginkgo.Describe("RequireAdmin", func() {
		ginkgo.It("should forbid principals without the ADMIN role", func() {
			req := httptest.NewRequest(http.MethodGet, "/audit-logs", nil)
			req = req.WithContext(internal.ContextWithPrincipal(req.Context(), stub.principal))
			rec := httptest.NewRecorder()

			rbac.RequireAdmin()(next).ServeHTTP(rec, req)

			gomega.Expect(rec.Code).To(gomega.Equal(http.StatusForbidden))
		})

		ginkgo.It("should admit administrators", func() {
			admin := &internal.Principal{ID: uuid.New(), Roles: role.NewSet(role.Admin)}
			req := httptest.NewRequest(http.MethodGet, "/audit-logs", nil)
			req = req.WithContext(internal.ContextWithPrincipal(req.Context(), admin))
			rec := httptest.NewRecorder()

			rbac.RequireAdmin()(next).ServeHTTP(rec, req)

			gomega.Expect(rec.Code).To(gomega.Equal(http.StatusOK))
		})

		ginkgo.It("should answer 401 without a principal", func() {
			rec := httptest.NewRecorder()
			rbac.RequireAdmin()(next).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/audit-logs", nil))

			gomega.Expect(rec.Code).To(gomega.Equal(http.StatusUnauthorized))
		})
	})
})
