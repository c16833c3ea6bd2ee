package audit

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/frahmantamala/thesis-repository/internal"
	"github.com/frahmantamala/thesis-repository/internal/core/common/pagination"
	"github.com/frahmantamala/thesis-repository/internal/transport"
	"github.com/google/uuid"
)

type ServiceAPI interface {
	List(ctx context.Context, filter ListFilter) (pagination.Page[Log], error)
}

type Handler struct {
	*transport.BaseHandler
	Service  ServiceAPI
	pageSize int
}

func NewHandler(base *transport.BaseHandler, svc ServiceAPI, pageSize int) *Handler {
	if base == nil {
		base = transport.NewBaseHandler(slog.Default())
	}
	return &Handler{BaseHandler: base, Service: svc, pageSize: pageSize}
}

// ListAuditLogs handles GET /audit-logs
func (h *Handler) ListAuditLogs(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := ListFilter{
		Action: strings.ToUpper(q.Get("action")),
		Module: q.Get("module"),
		Status: strings.ToUpper(q.Get("status")),
		Params: pagination.FromRequest(r, h.pageSize),
	}
	if raw := q.Get("user_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			h.HandleServiceError(w, r, internal.NewValidationFieldError("user_id", "user_id must be a valid UUID", internal.ErrCodeValidationFailed))
			return
		}
		filter.UserID = &id
	}

	page, err := h.Service.List(r.Context(), filter)
	if err != nil {
		h.Logger.Error("ListAuditLogs: service error", "error", err)
		h.HandleServiceError(w, r, err)
		return
	}

	h.WriteJSON(w, r, http.StatusOK, page)
}
