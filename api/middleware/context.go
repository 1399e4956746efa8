package middleware

import (
	"context"

	"github.com/okabe-dev/bidhouse-backend/pkg/enums"
	"github.com/okabe-dev/bidhouse-backend/pkg/types"
)

type contextKey string

const (
	ctxAddress contextKey = "address"
	ctxRole    contextKey = "actor_role"
)

// AddressFromContext returns the authenticated trader address, if any.
func AddressFromContext(ctx context.Context) types.Address {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(ctxAddress).(types.Address); ok {
		return v
	}
	return ""
}

// RoleFromContext returns the authenticated actor role, if any.
func RoleFromContext(ctx context.Context) enums.ActorRole {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(ctxRole).(enums.ActorRole); ok {
		return v
	}
	return ""
}

// WithIdentity injects the actor identity into the context. Exposed for
// handler tests.
func WithIdentity(ctx context.Context, address types.Address, role enums.ActorRole) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx = context.WithValue(ctx, ctxAddress, address)
	return context.WithValue(ctx, ctxRole, role)
}
