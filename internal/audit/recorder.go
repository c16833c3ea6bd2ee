package audit

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	auditDatamodel "github.com/frahmantamala/thesis-repository/internal/core/datamodel/audit"
	"github.com/frahmantamala/thesis-repository/internal/core/common/pagination"
	"github.com/frahmantamala/thesis-repository/internal/observability"
)

// Logger is the write side used by the executor and the auth flow.
type Logger interface {
	LogAction(ctx context.Context, entry Entry)
}

type Recorder struct {
	repo   Repository
	logger *slog.Logger
	now    func() time.Time
}

func NewRecorder(repo Repository, logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder{
		repo:   repo,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// LogAction appends one entry. It never fails the caller: problems are logged and counted.
func (r *Recorder) LogAction(ctx context.Context, entry Entry) {
	defer func() {
		if rec := recover(); rec != nil {
			observability.AuditWrites().WithLabelValues("failed").Inc()
			r.logger.Error("audit log panicked",
				"action", entry.Action,
				"table_name", entry.Table,
				"panic", fmt.Sprint(rec))
		}
	}()

	previous, err := Sanitize(entry.PreviousData)
	if err != nil {
		r.logger.Warn("audit previous_data not serializable", "action", entry.Action, "table_name", entry.Table, "error", err)
		previous = nil
	}
	next, err := Sanitize(entry.NewData)
	if err != nil {
		r.logger.Warn("audit new_data not serializable", "action", entry.Action, "table_name", entry.Table, "error", err)
		next = nil
	}

	status := entry.Status
	if status == "" {
		status = StatusSuccess
	}

	row := &auditDatamodel.AuditLog{
		UserID:       entry.UserID,
		Action:       string(entry.Action),
		Module:       entry.Module,
		Table:        entry.Table,
		RecordID:     entry.RecordID,
		PreviousData: previous,
		NewData:      next,
		IPAddress:    entry.IPAddress,
		UserAgent:    entry.UserAgent,
		Status:       string(status),
		ErrorMessage: entry.ErrorMessage,
		Timestamp:    r.now(),
	}

	// the primary operation may already be cancelled; the entry still has to land
	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	if err := r.repo.Create(writeCtx, row); err != nil {
		observability.AuditWrites().WithLabelValues("failed").Inc()
		r.logger.Error("failed to write audit log",
			"action", entry.Action,
			"module", entry.Module,
			"table_name", entry.Table,
			"record_id", entry.RecordID,
			"error", err)
		return
	}
	observability.AuditWrites().WithLabelValues("written").Inc()
}

func (r *Recorder) List(ctx context.Context, filter ListFilter) (pagination.Page[Log], error) {
	rows, total, err := r.repo.List(ctx, filter)
	if err != nil {
		r.logger.Error("failed to list audit logs", "error", err)
		return pagination.Page[Log]{}, err
	}

	logs := make([]Log, len(rows))
	for i := range rows {
		logs[i] = FromDataModel(&rows[i])
	}
	return pagination.NewPage(logs, total, filter.Params), nil
}
