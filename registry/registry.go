// Package registry resolves event types to the handlers that must process
// them and memoizes the result for the lifetime of the process.
package registry

import (
	"context"
	"errors"

	"github.com/shortlink-org/go-dispatch/message"
)

var (
	// ErrRetryRequested is raised by a handler to request another invocation
	// of the same handler with the same envelope. It is handled locally by
	// the dispatch inner retry loop and never escapes the pipeline.
	ErrRetryRequested = errors.New("registry: handler requested retry")

	// ErrNilRegistry indicates that the cache was built without a registry.
	ErrNilRegistry = errors.New("registry: handler registry is nil")
)

// Handler processes one envelope. Implementations may return
// ErrRetryRequested to signal a transient condition.
type Handler interface {
	Handle(ctx context.Context, env message.Envelope) error
}

// HandlerRegistry is the external lookup that knows which handler identities
// are subscribed to an event type, in invocation order.
type HandlerRegistry interface {
	HandlersFor(ctx context.Context, eventType string) ([]string, error)
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(ctx context.Context, env message.Envelope) error

func (f HandlerFunc) Handle(ctx context.Context, env message.Envelope) error {
	return f(ctx, env)
}
