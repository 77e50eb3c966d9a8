package dispatch

import (
	"context"
	"log/slog"

	wmmessage "github.com/ThreeDotsLabs/watermill/message"
	"github.com/pkg/errors"

	"github.com/shortlink-org/go-dispatch/message"
)

// BindSubscriber drains a Watermill subscriber into the pipeline. Messages
// are acked once the job has been queued: from there on, at-least-once
// processing is the pipeline's responsibility. A message that cannot be
// queued (closed pipeline, cancelled context) is nacked back to the
// transport.
func (p *Pipeline) BindSubscriber(ctx context.Context, subscriber wmmessage.Subscriber, topic string) error {
	if subscriber == nil {
		return errNilSubscriber
	}
	if ctx == nil {
		ctx = context.Background()
	}

	messages, err := subscriber.Subscribe(ctx, topic)
	if err != nil {
		return errors.Wrapf(err, "subscribe to %s", topic)
	}

	go func() {
		for msg := range messages {
			env := message.FromMessage(msg)

			msgCtx := msg.Context()
			if msgCtx == nil {
				msgCtx = ctx
			}

			if err := p.Enqueue(msgCtx, env); err != nil {
				p.log.WarnWithContext(msgCtx, "failed to enqueue message",
					slog.String("topic", topic),
					slog.String("message_id", msg.UUID),
					slog.String("error", err.Error()),
				)
				msg.Nack()

				continue
			}

			msg.Ack()
		}
	}()

	return nil
}
