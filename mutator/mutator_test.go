package mutator

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/shortlink-org/go-dispatch/message"
)

type recordingMutator struct {
	name  string
	calls *[]string
	err   error
}

func (m *recordingMutator) MutateIncoming(_ context.Context, env message.Envelope) (message.Envelope, error) {
	*m.calls = append(*m.calls, m.name+":in")
	if m.err != nil {
		return env, m.err
	}

	return env.WithHeader("seen_by", m.name), nil
}

func (m *recordingMutator) MutateOutgoing(_ context.Context, env message.Envelope) (message.Envelope, error) {
	*m.calls = append(*m.calls, m.name+":out")
	return env, m.err
}

func TestChainAppliesInRegistrationOrder(t *testing.T) {
	var calls []string

	chain := Chain{
		&recordingMutator{name: "first", calls: &calls},
		nil,
		&recordingMutator{name: "second", calls: &calls},
	}

	env, err := chain.ApplyIncoming(context.Background(), message.NewEnvelope("payload", nil, "msg-1"))
	require.NoError(t, err)
	require.Equal(t, []string{"first:in", "second:in"}, calls)

	// the last mutator's replacement wins
	require.Equal(t, "second", env.Descriptor.Header("seen_by"))
}

func TestChainFirstErrorAborts(t *testing.T) {
	var calls []string

	boom := errors.New("boom")
	chain := Chain{
		&recordingMutator{name: "first", calls: &calls, err: boom},
		&recordingMutator{name: "second", calls: &calls},
	}

	_, err := chain.ApplyIncoming(context.Background(), message.Envelope{})
	require.ErrorIs(t, err, boom)
	require.Equal(t, []string{"first:in"}, calls)

	calls = nil

	_, err = chain.ApplyOutgoing(context.Background(), message.Envelope{})
	require.ErrorIs(t, err, boom)
	require.Equal(t, []string{"first:out"}, calls)
}
