package message

import (
	"testing"

	wmmessage "github.com/ThreeDotsLabs/watermill/message"
	"github.com/stretchr/testify/require"
)

type orderPlaced struct {
	OrderID string
}

func TestNameOf(t *testing.T) {
	t.Run("header wins over reflection", func(t *testing.T) {
		env := NewEnvelope(orderPlaced{}, wmmessage.Metadata{
			HeaderTypeName:    "billing.order_placed",
			HeaderTypeVersion: "v2",
		}, "msg-1")

		require.Equal(t, "billing.order_placed.v2", NameOf(env))
	})

	t.Run("header without version", func(t *testing.T) {
		env := NewEnvelope(orderPlaced{}, wmmessage.Metadata{
			HeaderTypeName: "billing.order_placed",
		}, "msg-1")

		require.Equal(t, "billing.order_placed", NameOf(env))
	})

	t.Run("reflected type name", func(t *testing.T) {
		env := NewEnvelope(&orderPlaced{}, nil, "msg-1")

		require.Equal(t, "github.com/shortlink-org/go-dispatch/message.orderPlaced", NameOf(env))
	})

	t.Run("nil payload", func(t *testing.T) {
		env := NewEnvelope(nil, nil, "msg-1")

		require.Empty(t, NameOf(env))
	})
}
