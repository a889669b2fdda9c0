package executor

import (
	"context"

	"github.com/hexgate/hexgate/internal/core/query/domain"
)

type identityKey struct{}

// WithIdentity attaches an authorized identity to ctx.
func WithIdentity(ctx context.Context, id domain.Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// IdentityFromContext returns the identity attached to ctx, if any.
func IdentityFromContext(ctx context.Context) (domain.Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(domain.Identity)
	if !ok || id.Role.IsZero() {
		return domain.Identity{}, false
	}
	return id, true
}
