package audit

import (
	"context"
	"time"

	auditDatamodel "github.com/frahmantamala/thesis-repository/internal/core/datamodel/audit"
	"github.com/frahmantamala/thesis-repository/internal/core/common/pagination"
	"github.com/google/uuid"
)

type Action string

const (
	ActionCreate         Action = "CREATE"
	ActionUpdate         Action = "UPDATE"
	ActionDelete         Action = "DELETE"
	ActionView           Action = "VIEW"
	ActionLogin          Action = "LOGIN"
	ActionLogout         Action = "LOGOUT"
	ActionPasswordChange Action = "PASSWORD_CHANGE"
)

type Status string

const (
	StatusSuccess Status = "SUCCESS"
	StatusFailure Status = "FAILURE"
	StatusError   Status = "ERROR"
)

// Entry is one audited action before sanitization.
type Entry struct {
	UserID       *uuid.UUID
	Action       Action
	Module       string
	Table        string
	RecordID     string
	PreviousData interface{}
	NewData      interface{}
	IPAddress    string
	UserAgent    string
	Status       Status
	ErrorMessage string
}

type ListFilter struct {
	UserID *uuid.UUID
	Action string
	Module string
	Status string
	pagination.Params
}

type Repository interface {
	Create(ctx context.Context, log *auditDatamodel.AuditLog) error
	List(ctx context.Context, filter ListFilter) ([]auditDatamodel.AuditLog, int64, error)
}

// Log is the read model of a stored entry.
type Log struct {
	ID           uuid.UUID   `json:"id"`
	UserID       *uuid.UUID  `json:"user_id"`
	Action       string      `json:"action"`
	Module       string      `json:"module"`
	TableName    string      `json:"table_name"`
	RecordID     string      `json:"record_id"`
	PreviousData interface{} `json:"previous_data"`
	NewData      interface{} `json:"new_data"`
	IPAddress    string      `json:"ip_address"`
	UserAgent    string      `json:"user_agent"`
	Status       string      `json:"status"`
	ErrorMessage string      `json:"error_message,omitempty"`
	Timestamp    time.Time   `json:"timestamp"`
}

func FromDataModel(m *auditDatamodel.AuditLog) Log {
	return Log{
		ID:           m.ID,
		UserID:       m.UserID,
		Action:       m.Action,
		Module:       m.Module,
		TableName:    m.Table,
		RecordID:     m.RecordID,
		PreviousData: decodeJSON(m.PreviousData),
		NewData:      decodeJSON(m.NewData),
		IPAddress:    m.IPAddress,
		UserAgent:    m.UserAgent,
		Status:       m.Status,
		ErrorMessage: m.ErrorMessage,
		Timestamp:    m.Timestamp,
	}
}
