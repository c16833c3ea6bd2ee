package audit

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type AuditLog struct {
	ID           uuid.UUID      `gorm:"type:uuid;primaryKey"`
	UserID       *uuid.UUID     `gorm:"type:uuid;column:user_id;index"`
	Action       string         `gorm:"column:action;not null;index"`
	Module       string         `gorm:"column:module;not null"`
	Table        string         `gorm:"column:table_name;not null"`
	RecordID     string         `gorm:"column:record_id"`
	PreviousData datatypes.JSON `gorm:"column:previous_data"`
	NewData      datatypes.JSON `gorm:"column:new_data"`
	IPAddress    string         `gorm:"column:ip_address"`
	UserAgent    string         `gorm:"column:user_agent"`
	Status       string         `gorm:"column:status;not null;index"`
	ErrorMessage string         `gorm:"column:error_message"`
	Timestamp    time.Time      `gorm:"column:timestamp;not null;index"`
}

func (AuditLog) TableName() string {
	return "audit_logs"
}

func (a *AuditLog) BeforeCreate(*gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	if a.Timestamp.IsZero() {
		a.Timestamp = time.Now().UTC()
	}
	return nil
}
