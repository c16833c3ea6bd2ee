package user_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"

	"github.com/frahmantamala/thesis-repository/internal"
	"github.com/frahmantamala/thesis-repository/internal/audit"
	"github.com/frahmantamala/thesis-repository/internal/core/role"
	"github.com/frahmantamala/thesis-repository/internal/storage"
	"github.com/frahmantamala/thesis-repository/internal/transport"
	"github.com/frahmantamala/thesis-repository/internal/user"
	"github.com/go-chi/chi"
	"github.com/google/uuid"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

type stubService struct {
	err          error
	requester    *internal.Principal
	created      user.CreateUserDTO
	avatar       *storage.Upload
	updated      user.UpdateUserDTO
	updatedID    uuid.UUID
	listedRole   uuid.UUID
	passwordDTO  user.ChangePasswordDTO
	passwordUser uuid.UUID
}

func (s *stubService) CreateUser(_ context.Context, requester *internal.Principal, dto user.CreateUserDTO, avatar *storage.Upload, _ audit.RequestMeta) (*user.User, error) {
	s.requester, s.created, s.avatar = requester, dto, avatar
	if s.err != nil {
		return nil, s.err
	}
	return &user.User{ID: uuid.New(), Username: dto.Username}, nil
}

func (s *stubService) GetMe(_ context.Context, p *internal.Principal, _ audit.RequestMeta) (*user.Detail, error) {
	return &user.Detail{User: user.User{ID: p.ID, Username: p.Username}}, s.err
}

func (s *stubService) ListActiveUsers(_ context.Context, roleID uuid.UUID, _ audit.RequestMeta) ([]user.Option, error) {
	s.listedRole = roleID
	return []user.Option{{ID: uuid.New(), Name: "Prof X"}}, s.err
}

func (s *stubService) GetRoles(context.Context) ([]user.Role, error) {
	return []user.Role{{Name: "PROFESSOR"}, {Name: "STUDENT"}}, nil
}

func (s *stubService) UpdateUser(_ context.Context, _ *internal.Principal, id uuid.UUID, dto user.UpdateUserDTO, avatar *storage.Upload, _ audit.RequestMeta) (*user.User, error) {
	s.updatedID, s.updated, s.avatar = id, dto, avatar
	if s.err != nil {
		return nil, s.err
	}
	return &user.User{ID: id}, nil
}

func (s *stubService) ChangePassword(_ context.Context, _ *internal.Principal, id uuid.UUID, dto user.ChangePasswordDTO, _ audit.RequestMeta) (*user.User, error) {
	s.passwordUser, s.passwordDTO = id, dto
	if s.err != nil {
		return nil, s.err
	}
	return &user.User{ID: id}, nil
}

var _ = Describe("User Handler", func() {
	var (
		stub      *stubService
		router    chi.Router
		principal *internal.Principal
	)

	BeforeEach(func() {
		lg := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
		stub = &stubService{}
		h := user.NewHandler(transport.NewBaseHandler(lg), stub, 1<<20)
		principal = &internal.Principal{ID: uuid.New(), Username: "alice", Roles: role.NewSet(role.Student)}

		withPrincipal := func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.Header.Get("X-Anonymous") == "" {
					r = r.WithContext(internal.ContextWithPrincipal(r.Context(), principal))
				}
				next.ServeHTTP(w, r)
			})
		}

		router = chi.NewRouter()
		router.Use(withPrincipal)
		router.Get("/users/me", h.GetCurrentUser)
		router.Get("/users/roles", h.ListRoles)
		router.Get("/users", h.ListUsers)
		router.Post("/users", h.CreateUser)
		router.Patch("/users/{id}", h.UpdateUser)
		router.Post("/users/{id}/change-password", h.ChangePassword)
	})

	serve := func(req *http.Request) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		return rec
	}

	Describe("CreateUser", func() {
		It("accepts JSON from an anonymous caller", func() {
			body := `{"username":"carol","email":"carol@uni.edu","password":"Abcd123!","password_confirmation":"Abcd123!","role_id":"` + uuid.NewString() + `"}`
			req := httptest.NewRequest(http.MethodPost, "/users", strings.NewReader(body))
			req.Header.Set("X-Anonymous", "1")

			rec := serve(req)

			Expect(rec.Code).To(Equal(http.StatusCreated))
			Expect(stub.requester).To(BeNil())
			Expect(stub.created.Username).To(Equal("carol"))
		})

		It("accepts multipart with an avatar", func() {
			// Given
			var buf bytes.Buffer
			mw := multipart.NewWriter(&buf)
			Expect(mw.WriteField("username", "dave")).To(Succeed())
			Expect(mw.WriteField("password", "Abcd123!")).To(Succeed())
			part, err := mw.CreateFormFile("avatar", "me.png")
			Expect(err).NotTo(HaveOccurred())
			_, _ = part.Write(pngHeader)
			Expect(mw.Close()).To(Succeed())

			req := httptest.NewRequest(http.MethodPost, "/users", &buf)
			req.Header.Set("Content-Type", mw.FormDataContentType())

			// When
			rec := serve(req)

			// Then
			Expect(rec.Code).To(Equal(http.StatusCreated))
			Expect(stub.requester).To(Equal(principal))
			Expect(stub.created.Username).To(Equal("dave"))
			Expect(stub.avatar).NotTo(BeNil())
			Expect(stub.avatar.Filename).To(Equal("me.png"))
		})

		It("maps service errors", func() {
			stub.err = user.ErrUsernameTaken
			rec := serve(httptest.NewRequest(http.MethodPost, "/users", strings.NewReader(`{"username":"carol"}`)))
			Expect(rec.Code).To(Equal(http.StatusConflict))
		})

		It("rejects a malformed body", func() {
			rec := serve(httptest.NewRequest(http.MethodPost, "/users", strings.NewReader(`{`)))
			Expect(rec.Code).To(Equal(http.StatusBadRequest))
		})
	})

	Describe("ListUsers", func() {
		It("requires a role_id", func() {
			rec := serve(httptest.NewRequest(http.MethodGet, "/users", nil))
			Expect(rec.Code).To(Equal(http.StatusBadRequest))
		})

		It("rejects a malformed role_id", func() {
			rec := serve(httptest.NewRequest(http.MethodGet, "/users?role_id=abc", nil))
			Expect(rec.Code).To(Equal(http.StatusBadRequest))
		})

		It("returns the options for the role", func() {
			roleID := uuid.New()

			rec := serve(httptest.NewRequest(http.MethodGet, "/users?role_id="+roleID.String(), nil))

			Expect(rec.Code).To(Equal(http.StatusOK))
			Expect(stub.listedRole).To(Equal(roleID))
			var out []map[string]interface{}
			Expect(json.Unmarshal(rec.Body.Bytes(), &out)).To(Succeed())
			Expect(out).To(HaveLen(1))
		})
	})

	It("returns the current user", func() {
		rec := serve(httptest.NewRequest(http.MethodGet, "/users/me", nil))
		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(rec.Body.String()).To(ContainSubstring(`"alice"`))
	})

	It("requires authentication for /users/me", func() {
		req := httptest.NewRequest(http.MethodGet, "/users/me", nil)
		req.Header.Set("X-Anonymous", "1")
		Expect(serve(req).Code).To(Equal(http.StatusUnauthorized))
	})

	Describe("UpdateUser", func() {
		It("decodes a JSON patch", func() {
			id := uuid.New()
			rec := serve(httptest.NewRequest(http.MethodPatch, "/users/"+id.String(), strings.NewReader(`{"first_name":"Alicia","is_active":false}`)))

			Expect(rec.Code).To(Equal(http.StatusOK))
			Expect(stub.updatedID).To(Equal(id))
			Expect(*stub.updated.FirstName).To(Equal("Alicia"))
			Expect(*stub.updated.IsActive).To(BeFalse())
			Expect(stub.updated.LastName).To(BeNil())
		})

		It("treats an empty avatar form field as removal", func() {
			var buf bytes.Buffer
			mw := multipart.NewWriter(&buf)
			Expect(mw.WriteField("avatar", "")).To(Succeed())
			Expect(mw.WriteField("last_name", "Smith")).To(Succeed())
			Expect(mw.Close()).To(Succeed())
			req := httptest.NewRequest(http.MethodPatch, "/users/"+principal.ID.String(), &buf)
			req.Header.Set("Content-Type", mw.FormDataContentType())

			rec := serve(req)

			Expect(rec.Code).To(Equal(http.StatusOK))
			Expect(stub.updated.RemoveAvatar).To(BeTrue())
			Expect(*stub.updated.LastName).To(Equal("Smith"))
			Expect(stub.updated.FirstName).To(BeNil())
			Expect(stub.avatar).To(BeNil())
		})

		It("rejects a non-boolean is_active", func() {
			var buf bytes.Buffer
			mw := multipart.NewWriter(&buf)
			Expect(mw.WriteField("is_active", "maybe")).To(Succeed())
			Expect(mw.Close()).To(Succeed())
			req := httptest.NewRequest(http.MethodPatch, "/users/"+principal.ID.String(), &buf)
			req.Header.Set("Content-Type", mw.FormDataContentType())

			Expect(serve(req).Code).To(Equal(http.StatusBadRequest))
		})

		It("rejects an invalid id", func() {
			rec := serve(httptest.NewRequest(http.MethodPatch, "/users/not-a-uuid", strings.NewReader(`{}`)))
			Expect(rec.Code).To(Equal(http.StatusBadRequest))
		})

		It("maps permission errors to 403", func() {
			stub.err = internal.NewPermissionDeniedError("nope")
			rec := serve(httptest.NewRequest(http.MethodPatch, "/users/"+uuid.NewString(), strings.NewReader(`{}`)))
			Expect(rec.Code).To(Equal(http.StatusForbidden))
		})
	})

	It("forwards password changes", func() {
		rec := serve(httptest.NewRequest(http.MethodPost, "/users/"+principal.ID.String()+"/change-password",
			strings.NewReader(`{"current_password":"Abcd123!","new_password":"Xyz789#q","password_confirmation":"Xyz789#q"}`)))

		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(stub.passwordUser).To(Equal(principal.ID))
		Expect(stub.passwordDTO.NewPassword).To(Equal("Xyz789#q"))
	})
})
