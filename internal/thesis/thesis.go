package thesis

import (
	"context"
	"time"

	"github.com/frahmantamala/thesis-repository/internal"
	"github.com/frahmantamala/thesis-repository/internal/core/common/pagination"
	thesisDatamodel "github.com/frahmantamala/thesis-repository/internal/core/datamodel/thesis"
	userDatamodel "github.com/frahmantamala/thesis-repository/internal/core/datamodel/user"
	"github.com/frahmantamala/thesis-repository/internal/core/role"
	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type Status string

const (
	StatusPending  Status = "PENDING"
	StatusApproved Status = "APPROVED"
	StatusRejected Status = "REJECTED"
)

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected:
		return true
	}
	return false
}

const DateLayout = "2006-01-02"

var (
	ErrThesisNotFound = internal.NewNotFoundError("thesis not found", internal.ErrCodeThesisNotFound)
	ErrMemberNotFound = internal.NewNotFoundError("user not found", internal.ErrCodeUserNotFound)
)

// Member is a user referenced by a thesis.
type Member struct {
	ID        uuid.UUID `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	FirstName string    `json:"first_name"`
	LastName  string    `json:"last_name"`
}

type Thesis struct {
	ID          uuid.UUID      `json:"id"`
	Title       string         `json:"title"`
	Author      Member         `json:"author"`
	Advisor     Member         `json:"advisor"`
	CoAdvisor   *Member        `json:"co_advisor"`
	Abstract    string         `json:"abstract"`
	Keywords    string         `json:"keywords"`
	DefenseDate string         `json:"defense_date"`
	Status      Status         `json:"status"`
	PdfFile     string         `json:"pdf_file"`
	PdfMetadata datatypes.JSON `json:"pdf_metadata"`
	PdfSize     int64          `json:"pdf_size"`
	PdfPages    int            `json:"pdf_pages"`
	CreatedBy   Member         `json:"created_by"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// OrderBy is a catalog ordering. The zero value sorts newest first.
type OrderBy string

const (
	OrderNewest          OrderBy = ""
	OrderTitle           OrderBy = "title"
	OrderTitleDesc       OrderBy = "-title"
	OrderAuthorName      OrderBy = "author_name"
	OrderAuthorNameDesc  OrderBy = "-author_name"
	OrderAdvisorName     OrderBy = "advisor_name"
	OrderAdvisorNameDesc OrderBy = "-advisor_name"
	OrderDefenseDate     OrderBy = "defense_date"
	OrderDefenseDateDesc OrderBy = "-defense_date"
)

func ParseOrderBy(raw string) (OrderBy, error) {
	o := OrderBy(raw)
	switch o {
	case OrderNewest, OrderTitle, OrderTitleDesc, OrderAuthorName, OrderAuthorNameDesc,
		OrderAdvisorName, OrderAdvisorNameDesc, OrderDefenseDate, OrderDefenseDateDesc:
		return o, nil
	}
	return OrderNewest, internal.NewValidationFieldError("order_by", "unsupported order_by value: "+raw, internal.ErrCodeInvalidOrderBy)
}

// Descending reports whether the ordering is reversed, and Field the unsigned key.
func (o OrderBy) Descending() bool { return len(o) > 0 && o[0] == '-' }

func (o OrderBy) Field() string {
	if o.Descending() {
		return string(o[1:])
	}
	return string(o)
}

// CatalogFilter narrows the public catalog. Empty fields do not filter.
type CatalogFilter struct {
	Title         string
	AuthorName    string
	AdvisorName   string
	CoAdvisorName string
	DefenseDate   *time.Time
	Context       string
	OrderBy       OrderBy
	pagination.Params
}

type Repository interface {
	Create(ctx context.Context, t *thesisDatamodel.Thesis) error
	// FindByID loads the thesis with its author, advisors and creator.
	FindByID(ctx context.Context, id uuid.UUID) (*thesisDatamodel.Thesis, error)
	ListByAuthor(ctx context.Context, authorID uuid.UUID, p pagination.Params) ([]thesisDatamodel.Thesis, int64, error)
	ListByAdvisor(ctx context.Context, advisorID uuid.UUID, p pagination.Params) ([]thesisDatamodel.Thesis, int64, error)
	Catalog(ctx context.Context, f CatalogFilter) ([]thesisDatamodel.Thesis, int64, error)
	Update(ctx context.Context, id uuid.UUID, fields map[string]interface{}) error
	// Delete removes the row and calls release inside the same transaction;
	// an error from release rolls the delete back.
	Delete(ctx context.Context, id uuid.UUID, release func(ctx context.Context) error) error
	FindMember(ctx context.Context, id uuid.UUID) (*userDatamodel.User, role.Set, error)
}

func FromDataModel(t *thesisDatamodel.Thesis, mediaURL string) *Thesis {
	out := &Thesis{
		ID:          t.ID,
		Title:       t.Title,
		Author:      memberOf(&t.Author),
		Advisor:     memberOf(&t.Advisor),
		Abstract:    t.Abstract,
		Keywords:    t.Keywords,
		DefenseDate: t.DefenseDate.Format(DateLayout),
		Status:      Status(t.Status),
		PdfMetadata: t.PdfMetadata,
		PdfSize:     t.PdfSize,
		PdfPages:    t.PdfPages,
		CreatedBy:   memberOf(&t.CreatedBy),
		CreatedAt:   t.CreatedAt,
		UpdatedAt:   t.UpdatedAt,
	}
	if t.Author.ID == uuid.Nil {
		out.Author.ID = t.AuthorID
	}
	if t.Advisor.ID == uuid.Nil {
		out.Advisor.ID = t.AdvisorID
	}
	if t.CreatedBy.ID == uuid.Nil {
		out.CreatedBy.ID = t.CreatedByID
	}
	if t.CoAdvisor != nil {
		m := memberOf(t.CoAdvisor)
		out.CoAdvisor = &m
	} else if t.CoAdvisorID != nil {
		out.CoAdvisor = &Member{ID: *t.CoAdvisorID}
	}
	if t.PdfFile != "" {
		out.PdfFile = mediaURL + t.PdfFile
	}
	return out
}

func FromDataModelSlice(rows []thesisDatamodel.Thesis, mediaURL string) []Thesis {
	out := make([]Thesis, len(rows))
	for i := range rows {
		out[i] = *FromDataModel(&rows[i], mediaURL)
	}
	return out
}

func memberOf(u *userDatamodel.User) Member {
	return Member{
		ID:        u.ID,
		Username:  u.Username,
		Email:     u.Email,
		FirstName: u.FirstName,
		LastName:  u.LastName,
	}
}
