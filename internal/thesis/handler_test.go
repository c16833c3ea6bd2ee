package thesis_test

import (
	"bytes"
	"context"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"

	"github.com/frahmantamala/thesis-repository/internal"
	"github.com/frahmantamala/thesis-repository/internal/audit"
	"github.com/frahmantamala/thesis-repository/internal/core/common/pagination"
	"github.com/frahmantamala/thesis-repository/internal/core/role"
	"github.com/frahmantamala/thesis-repository/internal/storage"
	"github.com/frahmantamala/thesis-repository/internal/thesis"
	"github.com/frahmantamala/thesis-repository/internal/transport"
	"github.com/go-chi/chi"
	"github.com/google/uuid"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

type stubThesisService struct {
	err       error
	filter    thesis.CatalogFilter
	mineParam pagination.Params
	created   thesis.CreateThesisDTO
	updated   thesis.UpdateThesisDTO
	file      *storage.Upload
	deleted   uuid.UUID
}

func (s *stubThesisService) Create(_ context.Context, _ *internal.Principal, dto thesis.CreateThesisDTO, file *storage.Upload, _ audit.RequestMeta) (*thesis.Thesis, error) {
	s.created, s.file = dto, file
	if s.err != nil {
		return nil, s.err
	}
	return &thesis.Thesis{ID: uuid.New(), Title: dto.Title, Status: thesis.StatusPending}, nil
}

func (s *stubThesisService) GetByID(_ context.Context, id uuid.UUID, _ audit.RequestMeta) (*thesis.Thesis, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &thesis.Thesis{ID: id}, nil
}

func (s *stubThesisService) ListMine(_ context.Context, _ *internal.Principal, p pagination.Params, _ audit.RequestMeta) (pagination.Page[thesis.Thesis], error) {
	s.mineParam = p
	return pagination.NewPage[thesis.Thesis](nil, 0, p), s.err
}

func (s *stubThesisService) Catalog(_ context.Context, f thesis.CatalogFilter, _ audit.RequestMeta) (pagination.Page[thesis.Thesis], error) {
	s.filter = f
	return pagination.NewPage([]thesis.Thesis{{Title: "Graph Algorithms"}}, 1, f.Params), s.err
}

func (s *stubThesisService) Update(_ context.Context, _ *internal.Principal, id uuid.UUID, dto thesis.UpdateThesisDTO, file *storage.Upload, _ audit.RequestMeta) (*thesis.Thesis, error) {
	s.updated, s.file = dto, file
	if s.err != nil {
		return nil, s.err
	}
	return &thesis.Thesis{ID: id}, nil
}

func (s *stubThesisService) Delete(_ context.Context, _ *internal.Principal, id uuid.UUID, _ audit.RequestMeta) error {
	s.deleted = id
	return s.err
}

var _ = Describe("Thesis Handler", func() {
	var (
		stub   *stubThesisService
		router chi.Router
	)

	BeforeEach(func() {
		lg := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
		stub = &stubThesisService{}
		h := thesis.NewHandler(transport.NewBaseHandler(lg), stub, 1<<20, 10)
		principal := &internal.Principal{ID: uuid.New(), Username: "alice", Roles: role.NewSet(role.Student)}

		router = chi.NewRouter()
		router.Use(func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				next.ServeHTTP(w, r.WithContext(internal.ContextWithPrincipal(r.Context(), principal)))
			})
		})
		router.Get("/thesis", h.ListThesis)
		router.Get("/thesis/mine", h.ListMyThesis)
		router.Get("/thesis/{id}", h.GetThesis)
		router.Post("/thesis", h.CreateThesis)
		router.Patch("/thesis/{id}", h.UpdateThesis)
		router.Delete("/thesis/{id}", h.DeleteThesis)
	})

	serve := func(req *http.Request) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		return rec
	}

	multipartBody := func(fields map[string]string, file string) (*bytes.Buffer, string) {
		var buf bytes.Buffer
		mw := multipart.NewWriter(&buf)
		for k, v := range fields {
			Expect(mw.WriteField(k, v)).To(Succeed())
		}
		if file != "" {
			part, err := mw.CreateFormFile("pdf_file", file)
			Expect(err).NotTo(HaveOccurred())
			_, _ = part.Write([]byte("%PDF-1.4"))
		}
		Expect(mw.Close()).To(Succeed())
		return &buf, mw.FormDataContentType()
	}

	Describe("ListThesis", func() {
		It("forwards the filters", func() {
			rec := serve(httptest.NewRequest(http.MethodGet, "/thesis?title=graph&author_name=ali&context=trees&defense_date=2024-06-10&order_by=-title&page=2", nil))

			Expect(rec.Code).To(Equal(http.StatusOK))
			Expect(stub.filter.Title).To(Equal("graph"))
			Expect(stub.filter.AuthorName).To(Equal("ali"))
			Expect(stub.filter.Context).To(Equal("trees"))
			Expect(stub.filter.OrderBy).To(Equal(thesis.OrderTitleDesc))
			Expect(stub.filter.DefenseDate.Format(thesis.DateLayout)).To(Equal("2024-06-10"))
			Expect(stub.filter.Page).To(Equal(2))
			Expect(stub.filter.PageSize).To(Equal(10))
			Expect(rec.Body.String()).To(ContainSubstring(`"results"`))
		})

		It("rejects an unknown order_by", func() {
			rec := serve(httptest.NewRequest(http.MethodGet, "/thesis?order_by=popularity", nil))
			Expect(rec.Code).To(Equal(http.StatusBadRequest))
			Expect(rec.Body.String()).To(ContainSubstring("INVALID_ORDER_BY"))
		})

		It("rejects a malformed defense_date", func() {
			rec := serve(httptest.NewRequest(http.MethodGet, "/thesis?defense_date=June", nil))
			Expect(rec.Code).To(Equal(http.StatusBadRequest))
		})
	})

	It("lists the caller's theses with the configured page size", func() {
		rec := serve(httptest.NewRequest(http.MethodGet, "/thesis/mine", nil))
		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(stub.mineParam.PageSize).To(Equal(10))
		Expect(stub.mineParam.Page).To(Equal(1))
	})

	It("maps NotFound on GET", func() {
		stub.err = thesis.ErrThesisNotFound
		rec := serve(httptest.NewRequest(http.MethodGet, "/thesis/"+uuid.NewString(), nil))
		Expect(rec.Code).To(Equal(http.StatusNotFound))
	})

	It("rejects a malformed id", func() {
		rec := serve(httptest.NewRequest(http.MethodGet, "/thesis/42", nil))
		Expect(rec.Code).To(Equal(http.StatusBadRequest))
	})

	Describe("CreateThesis", func() {
		It("reads the form and the PDF", func() {
			body, contentType := multipartBody(map[string]string{
				"title":        "Graph Algorithms",
				"author_id":    uuid.NewString(),
				"advisor_id":   uuid.NewString(),
				"defense_date": "2024-06-10",
			}, "thesis.pdf")
			req := httptest.NewRequest(http.MethodPost, "/thesis", body)
			req.Header.Set("Content-Type", contentType)

			rec := serve(req)

			Expect(rec.Code).To(Equal(http.StatusCreated))
			Expect(stub.created.Title).To(Equal("Graph Algorithms"))
			Expect(stub.created.DefenseDate).To(Equal("2024-06-10"))
			Expect(stub.file).NotTo(BeNil())
			Expect(stub.file.Filename).To(Equal("thesis.pdf"))
		})

		It("rejects bodies over the upload limit", func() {
			lg := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
			h := thesis.NewHandler(transport.NewBaseHandler(lg), stub, 16, 10)
			body, contentType := multipartBody(map[string]string{"title": strings.Repeat("x", 256)}, "thesis.pdf")
			req := httptest.NewRequest(http.MethodPost, "/thesis", body)
			req.Header.Set("Content-Type", contentType)
			req = req.WithContext(internal.ContextWithPrincipal(req.Context(), &internal.Principal{ID: uuid.New()}))
			rec := httptest.NewRecorder()

			h.CreateThesis(rec, req)

			Expect(rec.Code).To(Equal(http.StatusBadRequest))
			Expect(stub.created.Title).To(BeEmpty())
		})

		It("maps validation failures to 400", func() {
			stub.err = internal.NewValidationFieldError("author_id", "no", internal.ErrCodeAuthorMismatch)
			body, contentType := multipartBody(map[string]string{"title": "T"}, "thesis.pdf")
			req := httptest.NewRequest(http.MethodPost, "/thesis", body)
			req.Header.Set("Content-Type", contentType)

			rec := serve(req)

			Expect(rec.Code).To(Equal(http.StatusBadRequest))
			Expect(rec.Body.String()).To(ContainSubstring("AUTHOR_MISMATCH"))
		})
	})

	Describe("UpdateThesis", func() {
		It("only sets the fields that were sent", func() {
			body, contentType := multipartBody(map[string]string{"title": "New", "co_advisor_id": "null"}, "")
			req := httptest.NewRequest(http.MethodPatch, "/thesis/"+uuid.NewString(), body)
			req.Header.Set("Content-Type", contentType)

			rec := serve(req)

			Expect(rec.Code).To(Equal(http.StatusOK))
			Expect(*stub.updated.Title).To(Equal("New"))
			Expect(*stub.updated.CoAdvisorID).To(Equal(""))
			Expect(stub.updated.Abstract).To(BeNil())
			Expect(stub.updated.Status).To(BeNil())
			Expect(stub.file).To(BeNil())
		})

		It("accepts JSON", func() {
			rec := serve(httptest.NewRequest(http.MethodPatch, "/thesis/"+uuid.NewString(), strings.NewReader(`{"status":"APPROVED"}`)))

			Expect(rec.Code).To(Equal(http.StatusOK))
			Expect(*stub.updated.Status).To(Equal("APPROVED"))
		})

		It("clears the co-advisor on an explicit JSON null", func() {
			rec := serve(httptest.NewRequest(http.MethodPatch, "/thesis/"+uuid.NewString(), strings.NewReader(`{"title":"New","co_advisor_id":null}`)))

			Expect(rec.Code).To(Equal(http.StatusOK))
			Expect(stub.updated.CoAdvisorID).NotTo(BeNil())
			Expect(*stub.updated.CoAdvisorID).To(Equal(""))
			Expect(*stub.updated.Title).To(Equal("New"))
		})

		It("leaves the co-advisor alone when the JSON key is absent", func() {
			rec := serve(httptest.NewRequest(http.MethodPatch, "/thesis/"+uuid.NewString(), strings.NewReader(`{"title":"New"}`)))

			Expect(rec.Code).To(Equal(http.StatusOK))
			Expect(stub.updated.CoAdvisorID).To(BeNil())
		})

		It("passes a JSON co-advisor id through", func() {
			id := uuid.NewString()
			rec := serve(httptest.NewRequest(http.MethodPatch, "/thesis/"+uuid.NewString(), strings.NewReader(`{"co_advisor_id":"`+id+`"}`)))

			Expect(rec.Code).To(Equal(http.StatusOK))
			Expect(*stub.updated.CoAdvisorID).To(Equal(id))
		})

		It("rejects a co-advisor that is not a string", func() {
			rec := serve(httptest.NewRequest(http.MethodPatch, "/thesis/"+uuid.NewString(), strings.NewReader(`{"co_advisor_id":42}`)))
			Expect(rec.Code).To(Equal(http.StatusBadRequest))
		})

		It("maps permission errors to 403", func() {
			stub.err = internal.NewPermissionDeniedError("no")
			rec := serve(httptest.NewRequest(http.MethodPatch, "/thesis/"+uuid.NewString(), strings.NewReader(`{}`)))
			Expect(rec.Code).To(Equal(http.StatusForbidden))
		})
	})

	It("deletes with 204", func() {
		id := uuid.New()
		rec := serve(httptest.NewRequest(http.MethodDelete, "/thesis/"+id.String(), nil))

		Expect(rec.Code).To(Equal(http.StatusNoContent))
		Expect(stub.deleted).To(Equal(id))
	})
})
