package thesis

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/frahmantamala/thesis-repository/internal"
	"github.com/frahmantamala/thesis-repository/internal/audit"
	"github.com/frahmantamala/thesis-repository/internal/core/common/pagination"
	"github.com/frahmantamala/thesis-repository/internal/storage"
	"github.com/frahmantamala/thesis-repository/internal/transport"
	"github.com/go-chi/chi"
	"github.com/google/uuid"
)

type ServiceAPI interface {
	Create(ctx context.Context, principal *internal.Principal, dto CreateThesisDTO, file *storage.Upload, meta audit.RequestMeta) (*Thesis, error)
	GetByID(ctx context.Context, id uuid.UUID, meta audit.RequestMeta) (*Thesis, error)
	ListMine(ctx context.Context, principal *internal.Principal, p pagination.Params, meta audit.RequestMeta) (pagination.Page[Thesis], error)
	Catalog(ctx context.Context, f CatalogFilter, meta audit.RequestMeta) (pagination.Page[Thesis], error)
	Update(ctx context.Context, principal *internal.Principal, id uuid.UUID, dto UpdateThesisDTO, file *storage.Upload, meta audit.RequestMeta) (*Thesis, error)
	Delete(ctx context.Context, principal *internal.Principal, id uuid.UUID, meta audit.RequestMeta) error
}

type Handler struct {
	*transport.BaseHandler
	Service        ServiceAPI
	maxUploadBytes int64
	pageSize       int
}

func NewHandler(base *transport.BaseHandler, svc ServiceAPI, maxUploadBytes int64, pageSize int) *Handler {
	if base == nil {
		base = transport.NewBaseHandler(slog.Default())
	}
	if pageSize <= 0 {
		pageSize = pagination.DefaultPageSize
	}
	return &Handler{
		BaseHandler:    base,
		Service:        svc,
		maxUploadBytes: maxUploadBytes,
		pageSize:       pageSize,
	}
}

// ListThesis handles GET /thesis, the catalog of approved theses.
func (h *Handler) ListThesis(w http.ResponseWriter, r *http.Request) {
	filter, err := h.catalogFilter(r)
	if err != nil {
		h.HandleServiceError(w, r, err)
		return
	}

	page, err := h.Service.Catalog(r.Context(), filter, audit.MetaFromRequest(r))
	if err != nil {
		h.Logger.Error("ListThesis: service error", "error", err)
		h.HandleServiceError(w, r, err)
		return
	}
	h.WriteJSON(w, r, http.StatusOK, page)
}

func (h *Handler) catalogFilter(r *http.Request) (CatalogFilter, error) {
	q := r.URL.Query()
	orderBy, err := ParseOrderBy(q.Get("order_by"))
	if err != nil {
		return CatalogFilter{}, err
	}

	f := CatalogFilter{
		Title:         q.Get("title"),
		AuthorName:    q.Get("author_name"),
		AdvisorName:   q.Get("advisor_name"),
		CoAdvisorName: q.Get("co_advisor_name"),
		Context:       q.Get("context"),
		OrderBy:       orderBy,
		Params:        pagination.FromRequest(r, h.pageSize),
	}
	if raw := q.Get("defense_date"); raw != "" {
		d, err := time.Parse(DateLayout, raw)
		if err != nil {
			return CatalogFilter{}, internal.NewValidationFieldError("defense_date", "defense_date must use YYYY-MM-DD", internal.ErrCodeValidationFailed)
		}
		f.DefenseDate = &d
	}
	return f, nil
}

// ListMyThesis handles GET /thesis/mine
func (h *Handler) ListMyThesis(w http.ResponseWriter, r *http.Request) {
	principal, ok := internal.PrincipalFromContext(r.Context())
	if !ok {
		h.HandleServiceError(w, r, internal.ErrAuthenticationRequired)
		return
	}

	page, err := h.Service.ListMine(r.Context(), principal, pagination.FromRequest(r, h.pageSize), audit.MetaFromRequest(r))
	if err != nil {
		h.Logger.Error("ListMyThesis: service error", "error", err, "user_id", principal.ID)
		h.HandleServiceError(w, r, err)
		return
	}
	h.WriteJSON(w, r, http.StatusOK, page)
}

// GetThesis handles GET /thesis/{id}
func (h *Handler) GetThesis(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.HandleServiceError(w, r, err)
		return
	}

	t, err := h.Service.GetByID(r.Context(), id, audit.MetaFromRequest(r))
	if err != nil {
		h.HandleServiceError(w, r, err)
		return
	}
	h.WriteJSON(w, r, http.StatusOK, t)
}

// CreateThesis handles POST /thesis as multipart with the PDF under pdf_file.
func (h *Handler) CreateThesis(w http.ResponseWriter, r *http.Request) {
	principal, ok := internal.PrincipalFromContext(r.Context())
	if !ok {
		h.HandleServiceError(w, r, internal.ErrAuthenticationRequired)
		return
	}

	var (
		dto  CreateThesisDTO
		file *storage.Upload
	)
	if transport.IsMultipart(r) {
		if err := transport.ParseMultipart(w, r, h.maxUploadBytes); err != nil {
			h.HandleServiceError(w, r, err)
			return
		}
		dto = CreateThesisDTO{
			Title:       r.FormValue("title"),
			AuthorID:    r.FormValue("author_id"),
			AdvisorID:   r.FormValue("advisor_id"),
			CoAdvisorID: r.FormValue("co_advisor_id"),
			Abstract:    r.FormValue("abstract"),
			Keywords:    r.FormValue("keywords"),
			DefenseDate: r.FormValue("defense_date"),
		}
		var err error
		if file, err = transport.ReadUpload(r, "pdf_file"); err != nil {
			h.HandleServiceError(w, r, err)
			return
		}
	} else if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		h.HandleServiceError(w, r, internal.NewValidationError("invalid request body", internal.ErrCodeInvalidPayload))
		return
	}

	t, err := h.Service.Create(r.Context(), principal, dto, file, audit.MetaFromRequest(r))
	if err != nil {
		h.Logger.Error("CreateThesis: service error", "error", err, "user_id", principal.ID)
		h.HandleServiceError(w, r, err)
		return
	}

	h.Logger.Info("CreateThesis: thesis created", "thesis_id", t.ID, "status", t.Status)
	h.WriteJSON(w, r, http.StatusCreated, t)
}

// UpdateThesis handles PATCH /thesis/{id}
func (h *Handler) UpdateThesis(w http.ResponseWriter, r *http.Request) {
	principal, ok := internal.PrincipalFromContext(r.Context())
	if !ok {
		h.HandleServiceError(w, r, internal.ErrAuthenticationRequired)
		return
	}
	id, err := pathID(r)
	if err != nil {
		h.HandleServiceError(w, r, err)
		return
	}

	var (
		dto  UpdateThesisDTO
		file *storage.Upload
	)
	if transport.IsMultipart(r) {
		if err := transport.ParseMultipart(w, r, h.maxUploadBytes); err != nil {
			h.HandleServiceError(w, r, err)
			return
		}
		dto = updateFromForm(r)
		if file, err = transport.ReadUpload(r, "pdf_file"); err != nil {
			h.HandleServiceError(w, r, err)
			return
		}
	} else if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		h.HandleServiceError(w, r, internal.NewValidationError("invalid request body", internal.ErrCodeInvalidPayload))
		return
	}

	t, err := h.Service.Update(r.Context(), principal, id, dto, file, audit.MetaFromRequest(r))
	if err != nil {
		h.Logger.Error("UpdateThesis: service error", "error", err, "thesis_id", id, "user_id", principal.ID)
		h.HandleServiceError(w, r, err)
		return
	}
	h.WriteJSON(w, r, http.StatusOK, t)
}

func updateFromForm(r *http.Request) UpdateThesisDTO {
	var dto UpdateThesisDTO
	for field, dst := range map[string]**string{
		"title":         &dto.Title,
		"author_id":     &dto.AuthorID,
		"advisor_id":    &dto.AdvisorID,
		"co_advisor_id": &dto.CoAdvisorID,
		"abstract":      &dto.Abstract,
		"keywords":      &dto.Keywords,
		"defense_date":  &dto.DefenseDate,
		"status":        &dto.Status,
	} {
		if v, ok := transport.FormValue(r, field); ok {
			*dst = &v
		}
	}
	if dto.CoAdvisorID != nil && strings.EqualFold(*dto.CoAdvisorID, "null") {
		empty := ""
		dto.CoAdvisorID = &empty
	}
	return dto
}

// DeleteThesis handles DELETE /thesis/{id}
func (h *Handler) DeleteThesis(w http.ResponseWriter, r *http.Request) {
	principal, ok := internal.PrincipalFromContext(r.Context())
	if !ok {
		h.HandleServiceError(w, r, internal.ErrAuthenticationRequired)
		return
	}
	id, err := pathID(r)
	if err != nil {
		h.HandleServiceError(w, r, err)
		return
	}

	if err := h.Service.Delete(r.Context(), principal, id, audit.MetaFromRequest(r)); err != nil {
		h.Logger.Error("DeleteThesis: service error", "error", err, "thesis_id", id, "user_id", principal.ID)
		h.HandleServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func pathID(r *http.Request) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		return uuid.Nil, internal.NewValidationFieldError("id", "id must be a valid UUID", internal.ErrCodeValidationFailed)
	}
	return id, nil
}
