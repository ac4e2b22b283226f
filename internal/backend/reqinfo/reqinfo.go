package reqinfo

import (
	"context"

	"github.com/google/uuid"

	"github.com/ixdlabs/go-backend-template/internal/backend/domain/models"
)

type ctxKey int

const (
	actorKey ctxKey = iota
	metaKey
)

// Actor is the authenticated principal of the current request.
type Actor struct {
	ID       uuid.UUID
	Type     models.UserType
	Username string
	Scopes   []string
}

func (a Actor) HasScope(scope string) bool {
	for _, s := range a.Scopes {
		if s == scope {
			return true
		}
	}

	return false
}

// Meta carries request metadata for audit records.
type Meta struct {
	IP        string
	UserAgent string
	Method    string
	URL       string
}

func WithActor(ctx context.Context, a Actor) context.Context {
	return context.WithValue(ctx, actorKey, a)
}

func ActorFrom(ctx context.Context) (Actor, bool) {
	a, ok := ctx.Value(actorKey).(Actor)

	return a, ok
}

func WithMeta(ctx context.Context, m Meta) context.Context {
	return context.WithValue(ctx, metaKey, m)
}

func MetaFrom(ctx context.Context) (Meta, bool) {
	m, ok := ctx.Value(metaKey).(Meta)

	return m, ok
}
