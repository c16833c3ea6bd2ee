package thesis

import (
	"time"

	"github.com/frahmantamala/thesis-repository/internal/core/datamodel/user"
	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Thesis struct {
	ID          uuid.UUID      `gorm:"type:uuid;primaryKey"`
	Title       string         `gorm:"column:title;not null"`
	AuthorID    uuid.UUID      `gorm:"type:uuid;column:author_id;index;not null"`
	AdvisorID   uuid.UUID      `gorm:"type:uuid;column:advisor_id;index;not null"`
	CoAdvisorID *uuid.UUID     `gorm:"type:uuid;column:co_advisor_id;index"`
	Abstract    string         `gorm:"column:abstract;not null"`
	Keywords    string         `gorm:"column:keywords"`
	DefenseDate time.Time      `gorm:"column:defense_date;type:date"`
	PdfFile     string         `gorm:"column:pdf_file"`
	PdfSize     int64          `gorm:"column:pdf_size"`
	PdfPages    int            `gorm:"column:pdf_pages"`
	PdfMetadata datatypes.JSON `gorm:"column:pdf_metadata"`
	Status      string         `gorm:"column:status;not null;index"`
	CreatedByID uuid.UUID      `gorm:"type:uuid;column:created_by_id;not null"`
	CreatedAt   time.Time      `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time      `gorm:"column:updated_at;autoUpdateTime"`

	Author    user.User  `gorm:"foreignKey:AuthorID"`
	Advisor   user.User  `gorm:"foreignKey:AdvisorID"`
	CoAdvisor *user.User `gorm:"foreignKey:CoAdvisorID"`
	CreatedBy user.User  `gorm:"foreignKey:CreatedByID"`
}

func (Thesis) TableName() string {
	return "thesis"
}

func (t *Thesis) BeforeCreate(*gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return nil
}
