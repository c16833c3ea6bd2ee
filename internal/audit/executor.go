package audit

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strings"

	"github.com/frahmantamala/thesis-repository/internal"
	"github.com/google/uuid"
)

// RequestMeta identifies who performed an operation and from where.
type RequestMeta struct {
	ActorID   *uuid.UUID
	IPAddress string
	UserAgent string
}

func MetaFromRequest(r *http.Request) RequestMeta {
	meta := RequestMeta{
		IPAddress: clientIP(r),
		UserAgent: r.UserAgent(),
	}
	if p, ok := internal.PrincipalFromContext(r.Context()); ok {
		id := p.ID
		meta.ActorID = &id
	}
	return meta
}

func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		return strings.TrimSpace(strings.Split(fwd, ",")[0])
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// Operation describes the audited call. RecordID is the explicit path parameter, if any.
type Operation struct {
	Action   Action
	Module   string
	Table    string
	RecordID string
	Meta     RequestMeta
}

// Capture carries state from inside the wrapped call to the audit entry.
type Capture struct {
	previous interface{}
	newData  interface{}
	actor    *uuid.UUID
	recordID string
}

// SetPrevious records the pre-operation snapshot.
func (c *Capture) SetPrevious(v interface{}) { c.previous = v }

// SetNewData overrides the result as new_data, on success and on failure.
func (c *Capture) SetNewData(v interface{}) { c.newData = v }

// SetActor attributes the entry to a user resolved during the call, such as on login.
func (c *Capture) SetActor(id uuid.UUID) { c.actor = &id }

func (c *Capture) SetRecordID(id string) { c.recordID = id }

type Executor struct {
	logger Logger
}

func NewExecutor(logger Logger) *Executor {
	return &Executor{logger: logger}
}

// Run invokes fn and writes exactly one audit entry for its outcome. The error
// returned by fn is passed back unchanged. A panic in fn is recorded as ERROR
// and then re-raised.
func Run[T any](ctx context.Context, ex *Executor, op Operation, fn func(ctx context.Context, c *Capture) (T, error)) (result T, err error) {
	c := &Capture{}
	defer func() {
		if rec := recover(); rec != nil {
			ex.record(ctx, op, c, nil, fmt.Errorf("panic: %v", rec))
			panic(rec)
		}
	}()

	result, err = fn(ctx, c)
	ex.record(ctx, op, c, result, err)
	return result, err
}

func (ex *Executor) record(ctx context.Context, op Operation, c *Capture, result interface{}, err error) {
	entry := Entry{
		UserID:       op.Meta.ActorID,
		Action:       op.Action,
		Module:       op.Module,
		Table:        op.Table,
		PreviousData: c.previous,
		IPAddress:    op.Meta.IPAddress,
		UserAgent:    op.Meta.UserAgent,
	}
	if c.actor != nil {
		entry.UserID = c.actor
	}

	switch {
	case err == nil:
		entry.Status = StatusSuccess
		entry.NewData = result
	case isClientError(err):
		entry.Status = StatusFailure
		entry.ErrorMessage = err.Error()
	default:
		entry.Status = StatusError
		entry.ErrorMessage = err.Error()
	}
	if c.newData != nil {
		entry.NewData = c.newData
	}

	entry.RecordID = resolveRecordID(op.RecordID, c.recordID, entry.NewData)

	if ex != nil && ex.logger != nil {
		ex.logger.LogAction(ctx, entry)
	}
}

func isClientError(err error) bool {
	appErr, ok := internal.IsAppError(err)
	return ok && appErr.Type != internal.ErrorTypeInternal
}

func resolveRecordID(pathParam, captured string, data interface{}) string {
	if pathParam != "" {
		return pathParam
	}
	if captured != "" {
		return captured
	}
	if data != nil {
		if sanitized, err := Sanitize(data); err == nil {
			if id := idOf(sanitized); id != "" {
				return id
			}
		}
	}
	return uuid.NewString()
}
