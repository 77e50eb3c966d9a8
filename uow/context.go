package uow

import (
	"context"
)

type ctxKey struct{}

// FromContext returns the UnitOfWork from ctx, or nil if not set.
func FromContext(ctx context.Context) *UnitOfWork {
	u, _ := ctx.Value(ctxKey{}).(*UnitOfWork)
	return u
}

// WithScope returns a context that carries the given unit of work.
func WithScope(ctx context.Context, u *UnitOfWork) context.Context {
	return context.WithValue(ctx, ctxKey{}, u)
}

// HasScope reports whether ctx contains a unit of work.
func HasScope(ctx context.Context) bool {
	return FromContext(ctx) != nil
}
