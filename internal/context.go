package internal

import (
	"context"
	"time"

	"github.com/frahmantamala/thesis-repository/internal/core/role"
	"github.com/google/uuid"
)

type ctxKey string

const ContextPrincipalKey ctxKey = "principal"

// Principal is the authenticated caller resolved by the auth middleware.
type Principal struct {
	ID                 uuid.UUID
	Username           string
	Email              string
	Roles              role.Set
	LastPasswordChange time.Time
}

func (p *Principal) Is(id uuid.UUID) bool {
	return p != nil && p.ID == id
}

func PrincipalFromContext(ctx context.Context) (*Principal, bool) {
	if ctx == nil {
		return nil, false
	}
	p, ok := ctx.Value(ContextPrincipalKey).(*Principal)
	return p, ok && p != nil
}

func ContextWithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, ContextPrincipalKey, p)
}

// WithTimeout returns a context with timeout, defaulting to 5 seconds if duration is zero or negative.
func WithTimeout(ctx context.Context, duration time.Duration) (context.Context, context.CancelFunc) {
	if duration <= 0 {
		duration = 5 * time.Second
	}
	return context.WithTimeout(ctx, duration)
}
