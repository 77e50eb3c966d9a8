// Package mutator defines pluggable transforms applied to envelopes as they
// enter or leave a processing scope.
package mutator

import (
	"context"

	"github.com/shortlink-org/go-dispatch/message"
)

// Mutator transforms an envelope on its way in or out of a scope.
// Implementations return a replacement envelope and never mutate the input.
type Mutator interface {
	MutateIncoming(ctx context.Context, env message.Envelope) (message.Envelope, error)
	MutateOutgoing(ctx context.Context, env message.Envelope) (message.Envelope, error)
}

// Chain applies mutators in registration order.
type Chain []Mutator

// ApplyIncoming runs every mutator's incoming transform in order.
// The first error aborts the chain.
func (c Chain) ApplyIncoming(ctx context.Context, env message.Envelope) (message.Envelope, error) {
	for _, m := range c {
		if m == nil {
			continue
		}

		next, err := m.MutateIncoming(ctx, env)
		if err != nil {
			return env, err
		}
		env = next
	}

	return env, nil
}

// ApplyOutgoing runs every mutator's outgoing transform in order.
func (c Chain) ApplyOutgoing(ctx context.Context, env message.Envelope) (message.Envelope, error) {
	for _, m := range c {
		if m == nil {
			continue
		}

		next, err := m.MutateOutgoing(ctx, env)
		if err != nil {
			return env, err
		}
		env = next
	}

	return env, nil
}
