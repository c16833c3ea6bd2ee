package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/frahmantamala/thesis-repository/internal/core/common/pagination"
	thesisDatamodel "github.com/frahmantamala/thesis-repository/internal/core/datamodel/thesis"
	userDatamodel "github.com/frahmantamala/thesis-repository/internal/core/datamodel/user"
	"github.com/frahmantamala/thesis-repository/internal/core/role"
	"github.com/frahmantamala/thesis-repository/internal/thesis"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ThesisRepository struct {
	db *gorm.DB
}

func NewThesisRepository(db *gorm.DB) *ThesisRepository {
	return &ThesisRepository{db: db}
}

func (r *ThesisRepository) Create(ctx context.Context, t *thesisDatamodel.Thesis) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Create(t).Error
}

func (r *ThesisRepository) FindByID(ctx context.Context, id uuid.UUID) (*thesisDatamodel.Thesis, error) {
	var t thesisDatamodel.Thesis
	err := r.withPeople(r.db.WithContext(ctx)).First(&t, "thesis.id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, thesis.ErrThesisNotFound
		}
		return nil, err
	}
	return &t, nil
}

func (r *ThesisRepository) ListByAuthor(ctx context.Context, authorID uuid.UUID, p pagination.Params) ([]thesisDatamodel.Thesis, int64, error) {
	return r.page(ctx, func(db *gorm.DB) *gorm.DB {
		return db.Where("thesis.author_id = ?", authorID)
	}, "thesis.created_at DESC", p)
}

func (r *ThesisRepository) ListByAdvisor(ctx context.Context, advisorID uuid.UUID, p pagination.Params) ([]thesisDatamodel.Thesis, int64, error) {
	return r.page(ctx, func(db *gorm.DB) *gorm.DB {
		return db.Where("thesis.advisor_id = ? OR thesis.co_advisor_id = ?", advisorID, advisorID)
	}, "thesis.created_at DESC", p)
}

// Catalog joins the people tables so name filters and name ordering work in SQL.
func (r *ThesisRepository) Catalog(ctx context.Context, f thesis.CatalogFilter) ([]thesisDatamodel.Thesis, int64, error) {
	scope := func(db *gorm.DB) *gorm.DB {
		db = db.
			Joins("JOIN users au ON au.id = thesis.author_id").
			Joins("JOIN users adv ON adv.id = thesis.advisor_id").
			Joins("LEFT JOIN users coadv ON coadv.id = thesis.co_advisor_id").
			Where("thesis.status = ?", string(thesis.StatusApproved))

		if f.Title != "" {
			db = db.Where(contains("thesis.title"), like(f.Title))
		}
		if f.AuthorName != "" {
			db = db.Where(anyContains("au.first_name", "au.last_name"), like(f.AuthorName), like(f.AuthorName))
		}
		if f.AdvisorName != "" {
			db = db.Where(anyContains("adv.first_name", "adv.last_name"), like(f.AdvisorName), like(f.AdvisorName))
		}
		if f.CoAdvisorName != "" {
			db = db.Where(anyContains("coadv.first_name", "coadv.last_name"), like(f.CoAdvisorName), like(f.CoAdvisorName))
		}
		if f.DefenseDate != nil {
			db = db.Where("thesis.defense_date = ?", *f.DefenseDate)
		}
		if f.Context != "" {
			term := like(f.Context)
			db = db.Where(anyContains("thesis.title", "thesis.abstract", "thesis.keywords"), term, term, term)
		}
		return db
	}
	return r.page(ctx, scope, orderClause(f.OrderBy), f.Params)
}

func (r *ThesisRepository) page(ctx context.Context, scope func(*gorm.DB) *gorm.DB, order string, p pagination.Params) ([]thesisDatamodel.Thesis, int64, error) {
	var total int64
	if err := r.db.WithContext(ctx).Model(&thesisDatamodel.Thesis{}).Scopes(scope).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var rows []thesisDatamodel.Thesis
	err := r.withPeople(r.db.WithContext(ctx)).
		Model(&thesisDatamodel.Thesis{}).
		Scopes(scope).
		Select("thesis.*").
		Order(order).
		Limit(p.Limit()).
		Offset(p.Offset()).
		Find(&rows).Error
	return rows, total, err
}

func (r *ThesisRepository) withPeople(db *gorm.DB) *gorm.DB {
	return db.Preload("Author").Preload("Advisor").Preload("CoAdvisor").Preload("CreatedBy")
}

func orderClause(o thesis.OrderBy) string {
	dir := "ASC"
	if o.Descending() {
		dir = "DESC"
	}
	switch o.Field() {
	case "title":
		return fmt.Sprintf("thesis.title %s, thesis.created_at DESC", dir)
	case "author_name":
		return fmt.Sprintf("au.first_name %[1]s, au.last_name %[1]s, thesis.created_at DESC", dir)
	case "advisor_name":
		return fmt.Sprintf("adv.first_name %[1]s, adv.last_name %[1]s, thesis.created_at DESC", dir)
	case "defense_date":
		return fmt.Sprintf("thesis.defense_date %s, thesis.created_at DESC", dir)
	}
	return "thesis.created_at DESC"
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// like turns user input into a substring pattern; wildcards in the input match literally.
func like(term string) string {
	return "%" + likeEscaper.Replace(strings.ToLower(strings.TrimSpace(term))) + "%"
}

func contains(column string) string {
	return "LOWER(" + column + `) LIKE ? ESCAPE '\'`
}

func anyContains(columns ...string) string {
	parts := make([]string, len(columns))
	for i, c := range columns {
		parts[i] = contains(c)
	}
	return "(" + strings.Join(parts, " OR ") + ")"
}

func (r *ThesisRepository) Update(ctx context.Context, id uuid.UUID, fields map[string]interface{}) error {
	res := r.db.WithContext(ctx).Model(&thesisDatamodel.Thesis{}).Where("id = ?", id).Updates(fields)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return thesis.ErrThesisNotFound
	}
	return nil
}

func (r *ThesisRepository) Delete(ctx context.Context, id uuid.UUID, release func(ctx context.Context) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Delete(&thesisDatamodel.Thesis{}, "id = ?", id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return thesis.ErrThesisNotFound
		}
		if err := release(ctx); err != nil {
			return fmt.Errorf("release pdf: %w", err)
		}
		return nil
	})
}

// FindMember loads a referenced user with the roles they hold.
func (r *ThesisRepository) FindMember(ctx context.Context, id uuid.UUID) (*userDatamodel.User, role.Set, error) {
	var u userDatamodel.User
	if err := r.db.WithContext(ctx).First(&u, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, thesis.ErrMemberNotFound
		}
		return nil, nil, err
	}

	var names []string
	err := r.db.WithContext(ctx).
		Model(&userDatamodel.Role{}).
		Joins("JOIN user_roles ur ON ur.role_id = roles.id").
		Where("ur.user_id = ?", id).
		Pluck("roles.name", &names).Error
	if err != nil {
		return nil, nil, err
	}
	return &u, role.ParseSet(names), nil
}
