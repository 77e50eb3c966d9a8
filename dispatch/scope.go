package dispatch

import (
	"context"

	"github.com/shortlink-org/go-dispatch/mutator"
	"github.com/shortlink-org/go-dispatch/registry"
)

// Participant observes the lifecycle of one processing attempt.
// uow.UnitOfWork satisfies it.
type Participant interface {
	Begin(ctx context.Context) error
	End(ctx context.Context, cause error) error
}

// Scope is one attempt-scoped container built by the surrounding
// dependency-injection integration. Every attempt gets fresh mutator and
// participant instances so state from a failed attempt cannot leak into the
// retry.
type Scope interface {
	// Mutators returns the incoming/outgoing transforms in registration order.
	Mutators() []mutator.Mutator

	// Units returns every unit-of-work participant of the scope.
	Units() []Participant

	// Handler constructs a fresh handler instance for the given identity.
	Handler(id string) (registry.Handler, error)

	// Close disposes the scope and everything it built.
	Close() error
}

// ScopeFactory opens a fresh scope per processing attempt.
type ScopeFactory interface {
	NewScope(ctx context.Context) (Scope, error)
}
