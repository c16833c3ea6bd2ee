package thesis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/frahmantamala/thesis-repository/internal"
	"github.com/frahmantamala/thesis-repository/internal/audit"
	"github.com/frahmantamala/thesis-repository/internal/core/common/pagination"
	"github.com/frahmantamala/thesis-repository/internal/core/common/validation"
	thesisDatamodel "github.com/frahmantamala/thesis-repository/internal/core/datamodel/thesis"
	"github.com/frahmantamala/thesis-repository/internal/core/role"
	"github.com/frahmantamala/thesis-repository/internal/observability"
	"github.com/frahmantamala/thesis-repository/internal/pdf"
	"github.com/frahmantamala/thesis-repository/internal/storage"
	"github.com/google/uuid"
	"gorm.io/datatypes"
)

const (
	auditModule = "thesis"
	auditTable  = "thesis"
)

type Service struct {
	repo      Repository
	inspector pdf.Inspector
	files     storage.FileStore
	audit     *audit.Executor
	logger    *slog.Logger
	mediaURL  string
	now       func() time.Time
}

func NewService(repo Repository, inspector pdf.Inspector, files storage.FileStore, executor *audit.Executor, logger *slog.Logger, mediaURL string) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:      repo,
		inspector: inspector,
		files:     files,
		audit:     executor,
		logger:    logger,
		mediaURL:  mediaURL,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// references lists the user ids a write touches; nil entries are not checked.
type references struct {
	author    *uuid.UUID
	advisor   *uuid.UUID
	coAdvisor *uuid.UUID
}

// Create validates the references against the creator's roles, inspects the
// PDF and stores the thesis with a status derived from the creator's roles.
func (s *Service) Create(ctx context.Context, principal *internal.Principal, dto CreateThesisDTO, file *storage.Upload, meta audit.RequestMeta) (*Thesis, error) {
	op := audit.Operation{Action: audit.ActionCreate, Module: auditModule, Table: auditTable, Meta: meta}

	return audit.Run(ctx, s.audit, op, func(ctx context.Context, _ *audit.Capture) (*Thesis, error) {
		dto.Normalize()
		var failures []*internal.AppError
		if appErr := validation.Struct(dto); appErr != nil {
			failures = append(failures, appErr)
		}
		if file == nil {
			failures = append(failures, internal.NewValidationFieldError("pdf_file", "pdf_file is required", internal.ErrCodeValidationFailed))
		}
		if merged := validation.Merge(failures...); merged != nil {
			return nil, merged
		}

		authorID, advisorID, coAdvisorID, defense := dto.refs()
		if err := s.checkReferences(ctx, principal, references{author: &authorID, advisor: &advisorID, coAdvisor: coAdvisorID}); err != nil {
			return nil, err
		}

		status, err := InitialStatus(principal.Roles)
		if err != nil {
			return nil, err
		}

		doc, err := s.inspect(file)
		if err != nil {
			return nil, err
		}

		t := &thesisDatamodel.Thesis{
			ID:          uuid.New(),
			Title:       dto.Title,
			AuthorID:    authorID,
			AdvisorID:   advisorID,
			CoAdvisorID: coAdvisorID,
			Abstract:    dto.Abstract,
			Keywords:    dto.Keywords,
			DefenseDate: defense,
			PdfSize:     doc.Size,
			PdfPages:    doc.Pages,
			Status:      string(status),
			CreatedByID: principal.ID,
		}
		if t.PdfMetadata, err = encodeMetadata(doc); err != nil {
			return nil, err
		}

		t.PdfFile = storage.ThesisPath(t.ID, file.Filename)
		if _, err := s.files.Save(ctx, t.PdfFile, file.Reader()); err != nil {
			return nil, fmt.Errorf("store pdf: %w", err)
		}

		if err := s.repo.Create(ctx, t); err != nil {
			s.release(ctx, t.PdfFile)
			return nil, err
		}

		observability.ThesisLifecycle().WithLabelValues("create", string(status)).Inc()
		s.logger.Info("thesis created", "thesis_id", t.ID, "created_by", principal.ID, "status", status)
		return s.reload(ctx, t.ID)
	})
}

func (s *Service) GetByID(ctx context.Context, id uuid.UUID, meta audit.RequestMeta) (*Thesis, error) {
	op := audit.Operation{Action: audit.ActionView, Module: auditModule, Table: auditTable, RecordID: id.String(), Meta: meta}

	return audit.Run(ctx, s.audit, op, func(ctx context.Context, _ *audit.Capture) (*Thesis, error) {
		return s.reload(ctx, id)
	})
}

// ListMine returns what the caller authored as a student, or what they
// advise or co-advise otherwise.
func (s *Service) ListMine(ctx context.Context, principal *internal.Principal, p pagination.Params, meta audit.RequestMeta) (pagination.Page[Thesis], error) {
	op := audit.Operation{Action: audit.ActionView, Module: auditModule, Table: auditTable, RecordID: principal.ID.String(), Meta: meta}

	return audit.Run(ctx, s.audit, op, func(ctx context.Context, c *audit.Capture) (pagination.Page[Thesis], error) {
		var (
			rows  []thesisDatamodel.Thesis
			total int64
			err   error
		)
		if principal.Roles.Has(role.Student) {
			rows, total, err = s.repo.ListByAuthor(ctx, principal.ID, p)
		} else {
			rows, total, err = s.repo.ListByAdvisor(ctx, principal.ID, p)
		}
		if err != nil {
			return pagination.Page[Thesis]{}, err
		}

		page := pagination.NewPage(FromDataModelSlice(rows, s.mediaURL), total, p)
		c.SetNewData(map[string]interface{}{"count": page.Count, "page": page.Page})
		return page, nil
	})
}

// Catalog lists approved theses only.
func (s *Service) Catalog(ctx context.Context, f CatalogFilter, meta audit.RequestMeta) (pagination.Page[Thesis], error) {
	op := audit.Operation{Action: audit.ActionView, Module: auditModule, Table: auditTable, Meta: meta}

	return audit.Run(ctx, s.audit, op, func(ctx context.Context, c *audit.Capture) (pagination.Page[Thesis], error) {
		rows, total, err := s.repo.Catalog(ctx, f)
		if err != nil {
			return pagination.Page[Thesis]{}, err
		}

		page := pagination.NewPage(FromDataModelSlice(rows, s.mediaURL), total, f.Params)
		c.SetNewData(map[string]interface{}{"count": page.Count, "page": page.Page, "order_by": string(f.OrderBy)})
		return page, nil
	})
}

// Update applies a partial update. A new PDF replaces the old one and its
// metadata; changed references go through the creation checks again.
func (s *Service) Update(ctx context.Context, principal *internal.Principal, id uuid.UUID, dto UpdateThesisDTO, file *storage.Upload, meta audit.RequestMeta) (*Thesis, error) {
	op := audit.Operation{Action: audit.ActionUpdate, Module: auditModule, Table: auditTable, RecordID: id.String(), Meta: meta}

	return audit.Run(ctx, s.audit, op, func(ctx context.Context, c *audit.Capture) (*Thesis, error) {
		if err := dto.Validate(); err != nil {
			return nil, err
		}

		t, err := s.repo.FindByID(ctx, id)
		if err != nil {
			return nil, err
		}
		if !CanUpdate(principal, t) {
			return nil, internal.NewPermissionDeniedError("you do not have permission to update this thesis")
		}
		if err := ValidateUpdateData(principal.Roles, dto); err != nil {
			return nil, err
		}
		c.SetPrevious(FromDataModel(t, s.mediaURL))

		refs, fields := s.updateFields(t, dto)
		if err := s.checkReferences(ctx, principal, refs); err != nil {
			return nil, err
		}

		var stored string
		if file != nil {
			doc, err := s.inspect(file)
			if err != nil {
				return nil, err
			}
			encoded, err := encodeMetadata(doc)
			if err != nil {
				return nil, err
			}
			stored = storage.ThesisPath(id, file.Filename)
			if _, err := s.files.Save(ctx, stored, file.Reader()); err != nil {
				return nil, fmt.Errorf("store pdf: %w", err)
			}
			fields["pdf_file"] = stored
			fields["pdf_size"] = doc.Size
			fields["pdf_pages"] = doc.Pages
			fields["pdf_metadata"] = encoded
		}

		if len(fields) > 0 {
			fields["updated_at"] = s.now()
			if err := s.repo.Update(ctx, id, fields); err != nil {
				if stored != "" && stored != t.PdfFile {
					s.release(ctx, stored)
				}
				return nil, err
			}
		}
		if stored != "" && t.PdfFile != "" && stored != t.PdfFile {
			s.release(ctx, t.PdfFile)
		}

		updated, err := s.reload(ctx, id)
		if err != nil {
			return nil, err
		}
		observability.ThesisLifecycle().WithLabelValues("update", string(updated.Status)).Inc()
		s.logger.Info("thesis updated", "thesis_id", id, "by", principal.ID, "fields", len(fields))
		return updated, nil
	})
}

func (s *Service) updateFields(t *thesisDatamodel.Thesis, dto UpdateThesisDTO) (references, map[string]interface{}) {
	var refs references
	fields := map[string]interface{}{}

	if dto.Title != nil {
		fields["title"] = strings.TrimSpace(*dto.Title)
	}
	if dto.Abstract != nil {
		fields["abstract"] = strings.TrimSpace(*dto.Abstract)
	}
	if dto.Keywords != nil {
		fields["keywords"] = strings.TrimSpace(*dto.Keywords)
	}
	if dto.DefenseDate != nil {
		d, _ := time.Parse(DateLayout, *dto.DefenseDate)
		fields["defense_date"] = d
	}
	if dto.Status != nil {
		fields["status"] = *dto.Status
	}
	if dto.AuthorID != nil {
		id, _ := uuid.Parse(*dto.AuthorID)
		if id != t.AuthorID {
			refs.author = &id
			fields["author_id"] = id
		}
	}
	if dto.AdvisorID != nil {
		id, _ := uuid.Parse(*dto.AdvisorID)
		if id != t.AdvisorID {
			refs.advisor = &id
			fields["advisor_id"] = id
		}
	}
	if dto.CoAdvisorID != nil {
		if *dto.CoAdvisorID == "" {
			if t.CoAdvisorID != nil {
				fields["co_advisor_id"] = nil
			}
		} else {
			id, _ := uuid.Parse(*dto.CoAdvisorID)
			if t.CoAdvisorID == nil || *t.CoAdvisorID != id {
				refs.coAdvisor = &id
				fields["co_advisor_id"] = id
			}
		}
	}
	return refs, fields
}

// Delete removes the thesis and its PDF. When the file cannot be removed the
// row stays.
func (s *Service) Delete(ctx context.Context, principal *internal.Principal, id uuid.UUID, meta audit.RequestMeta) error {
	op := audit.Operation{Action: audit.ActionDelete, Module: auditModule, Table: auditTable, RecordID: id.String(), Meta: meta}

	_, err := audit.Run(ctx, s.audit, op, func(ctx context.Context, c *audit.Capture) (struct{}, error) {
		t, err := s.repo.FindByID(ctx, id)
		if err != nil {
			return struct{}{}, err
		}
		if !CanDelete(principal, t) {
			s.logger.Warn("thesis delete denied", "thesis_id", id, "user_id", principal.ID)
			return struct{}{}, internal.NewPermissionDeniedError("you do not have permission to delete this thesis")
		}
		c.SetPrevious(FromDataModel(t, s.mediaURL))

		err = s.repo.Delete(ctx, id, func(ctx context.Context) error {
			if t.PdfFile == "" {
				return nil
			}
			return s.files.Delete(ctx, t.PdfFile)
		})
		if err != nil {
			return struct{}{}, err
		}

		observability.ThesisLifecycle().WithLabelValues("delete", t.Status).Inc()
		s.logger.Info("thesis deleted", "thesis_id", id, "by", principal.ID)
		return struct{}{}, nil
	})
	return err
}

// checkReferences applies the creation rules to every non-nil reference.
func (s *Service) checkReferences(ctx context.Context, principal *internal.Principal, refs references) error {
	if refs.author != nil {
		if err := s.checkMember(ctx, "author_id", *refs.author, role.Student, "the author must be a student"); err != nil {
			return err
		}
		if principal.Roles.Has(role.Student) && !principal.Is(*refs.author) {
			return internal.NewValidationFieldError("author_id", "students cannot create a thesis on behalf of another student", internal.ErrCodeAuthorMismatch)
		}
	}
	if refs.advisor != nil {
		if err := s.checkMember(ctx, "advisor_id", *refs.advisor, role.Professor, "the advisor must be a professor"); err != nil {
			return err
		}
	}
	if refs.coAdvisor != nil {
		if err := s.checkMember(ctx, "co_advisor_id", *refs.coAdvisor, role.Professor, "the co-advisor must be a professor"); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) checkMember(ctx context.Context, field string, id uuid.UUID, want role.Name, message string) error {
	_, roles, err := s.repo.FindMember(ctx, id)
	if errors.Is(err, ErrMemberNotFound) {
		return internal.NewValidationFieldError(field, "referenced user does not exist", internal.ErrCodeReferenceNotFound)
	}
	if err != nil {
		return err
	}
	if !roles.Has(want) {
		return internal.NewValidationFieldError(field, message, internal.ErrCodeInvalidRole)
	}
	return nil
}

func (s *Service) inspect(file *storage.Upload) (pdf.Metadata, error) {
	meta, err := s.inspector.Inspect(file.Data)
	if err != nil {
		s.logger.Warn("pdf inspection failed", "filename", file.Filename, "error", err)
		return pdf.Metadata{}, internal.NewValidationFieldError("pdf_file", "the file must be a valid PDF", internal.ErrCodeInvalidFile)
	}
	return meta, nil
}

func encodeMetadata(meta pdf.Metadata) (datatypes.JSON, error) {
	raw, err := json.Marshal(meta)
	if err != nil {
		return nil, fmt.Errorf("encode pdf metadata: %w", err)
	}
	return datatypes.JSON(raw), nil
}

func (s *Service) reload(ctx context.Context, id uuid.UUID) (*Thesis, error) {
	t, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return FromDataModel(t, s.mediaURL), nil
}

func (s *Service) release(ctx context.Context, name string) {
	if err := s.files.Delete(ctx, name); err != nil {
		s.logger.Warn("failed to remove pdf", "path", name, "error", err)
	}
}
