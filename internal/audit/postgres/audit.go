package postgres

import (
	"context"

	"github.com/frahmantamala/thesis-repository/internal/audit"
	auditDatamodel "github.com/frahmantamala/thesis-repository/internal/core/datamodel/audit"
	"gorm.io/gorm"
)

// AuditRepository appends and lists audit entries. Rows are never updated or deleted.
type AuditRepository struct {
	db *gorm.DB
}

func NewAuditRepository(db *gorm.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

func (r *AuditRepository) Create(ctx context.Context, log *auditDatamodel.AuditLog) error {
	return r.db.WithContext(ctx).Create(log).Error
}

func (r *AuditRepository) List(ctx context.Context, filter audit.ListFilter) ([]auditDatamodel.AuditLog, int64, error) {
	q := r.db.WithContext(ctx).Model(&auditDatamodel.AuditLog{})

	if filter.UserID != nil {
		q = q.Where("user_id = ?", *filter.UserID)
	}
	if filter.Action != "" {
		q = q.Where("action = ?", filter.Action)
	}
	if filter.Module != "" {
		q = q.Where("module = ?", filter.Module)
	}
	if filter.Status != "" {
		q = q.Where("status = ?", filter.Status)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var logs []auditDatamodel.AuditLog
	err := q.Order("timestamp DESC").
		Limit(filter.Limit()).
		Offset(filter.Offset()).
		Find(&logs).Error
	return logs, total, err
}
