package message

import (
	"testing"

	wmmessage "github.com/ThreeDotsLabs/watermill/message"
	"github.com/stretchr/testify/require"
)

func TestCopyDenied(t *testing.T) {
	testCases := []struct {
		name   string
		header string
		denied bool
	}{
		{name: "commit id header", header: HeaderCommitID, denied: true},
		{name: "correlation id", header: "correlation_id", denied: true},
		{name: "causation id", header: "causation_id", denied: true},
		{name: "message id", header: "message_id", denied: true},
		{name: "transport topic", header: "received_topic", denied: true},
		{name: "reserved marker prefix", header: "_watermill_internal", denied: true},
		{name: "application header", header: "tenant_id", denied: false},
		{name: "namespaced type name", header: HeaderTypeName, denied: false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.denied, CopyDenied(tc.header))
		})
	}
}

func TestEnvelopeImmutability(t *testing.T) {
	headers := wmmessage.Metadata{"tenant_id": "t-1"}
	env := NewEnvelope("payload", headers, "msg-1")

	next := env.WithHeader("tenant_id", "t-2")

	require.Equal(t, "t-1", env.Descriptor.Header("tenant_id"))
	require.Equal(t, "t-2", next.Descriptor.Header("tenant_id"))

	// the source map stays untouched as well
	require.Equal(t, "t-1", headers.Get("tenant_id"))
}

func TestFromMessage(t *testing.T) {
	msg := wmmessage.NewMessage("msg-42", []byte(`{"id":1}`))
	msg.Metadata.Set("tenant_id", "t-1")

	env := FromMessage(msg)

	require.Equal(t, "msg-42", env.Descriptor.MessageID)
	require.Equal(t, "t-1", env.Descriptor.Header("tenant_id"))
	require.Equal(t, []byte(`{"id":1}`), env.Payload)

	// headers are a copy, not an alias of the message metadata
	msg.Metadata.Set("tenant_id", "t-2")
	require.Equal(t, "t-1", env.Descriptor.Header("tenant_id"))
}
