package dispatch

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	wmmessage "github.com/ThreeDotsLabs/watermill/message"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"

	"github.com/shortlink-org/go-dispatch/logger"
	"github.com/shortlink-org/go-dispatch/message"
)

// FailureRecord is the diagnostic emitted exactly once per job that failed
// every processing attempt. The job is dropped afterwards; no requeue or
// dead-lettering happens at this layer.
type FailureRecord struct {
	FailedAt  time.Time         `json:"failed_at"`
	EventType string            `json:"event_type"`
	MessageID string            `json:"message_id,omitempty"`
	Headers   map[string]string `json:"headers,omitempty"`
	Attempts  int               `json:"attempts"`
	Reason    string            `json:"reason"`
	TraceID   string            `json:"trace_id,omitempty"`
	SpanID    string            `json:"span_id,omitempty"`

	Payload any `json:"-"`
}

// MarshalJSON serializes the record together with the event payload. Byte
// payloads that already hold JSON are embedded as-is, other byte payloads
// are base64-encoded, structured payloads are marshaled.
func (r FailureRecord) MarshalJSON() ([]byte, error) {
	type alias struct {
		FailedAt      time.Time         `json:"failed_at"`
		EventType     string            `json:"event_type"`
		MessageID     string            `json:"message_id,omitempty"`
		Headers       map[string]string `json:"headers,omitempty"`
		Attempts      int               `json:"attempts"`
		Reason        string            `json:"reason"`
		TraceID       string            `json:"trace_id,omitempty"`
		SpanID        string            `json:"span_id,omitempty"`
		Payload       json.RawMessage   `json:"payload,omitempty"`
		PayloadBase64 string            `json:"payload_base64,omitempty"`
	}

	out := alias{
		FailedAt:  r.FailedAt,
		EventType: r.EventType,
		MessageID: r.MessageID,
		Headers:   r.Headers,
		Attempts:  r.Attempts,
		Reason:    r.Reason,
		TraceID:   r.TraceID,
		SpanID:    r.SpanID,
	}

	switch payload := r.Payload.(type) {
	case nil:
	case []byte:
		if json.Valid(payload) {
			out.Payload = json.RawMessage(payload)
		} else {
			out.PayloadBase64 = base64.StdEncoding.EncodeToString(payload)
		}
	default:
		raw, err := json.Marshal(payload)
		if err != nil {
			out.Payload = json.RawMessage(fmt.Sprintf("%q", fmt.Sprintf("%+v", payload)))
		} else {
			out.Payload = raw
		}
	}

	return json.Marshal(out)
}

// FailureSink receives failure records. Delivery is fire-and-forget and must
// never affect dispatch outcome.
type FailureSink interface {
	Record(ctx context.Context, record FailureRecord)
}

// LogSink writes failure records through the structured logger.
type LogSink struct {
	log logger.Logger
}

// NewLogSink builds the default sink.
func NewLogSink(log logger.Logger) *LogSink {
	return &LogSink{log: log}
}

func (s *LogSink) Record(ctx context.Context, record FailureRecord) {
	serialized, err := json.Marshal(record)
	if err != nil {
		serialized = []byte(record.Reason)
	}

	s.log.ErrorWithContext(ctx, "event processing failed after all attempts",
		slog.String("event_type", record.EventType),
		slog.String("message_id", record.MessageID),
		slog.Int("attempts", record.Attempts),
		slog.String("record", string(serialized)),
	)
}

// PublisherSink publishes failure records to a diagnostics topic. It emits a
// record, not the original job; the job itself is still dropped.
type PublisherSink struct {
	log       logger.Logger
	publisher wmmessage.Publisher
	topic     string
}

// NewPublisherSink builds a sink over a Watermill publisher.
func NewPublisherSink(log logger.Logger, publisher wmmessage.Publisher, topic string) *PublisherSink {
	return &PublisherSink{
		log:       log,
		publisher: publisher,
		topic:     topic,
	}
}

func (s *PublisherSink) Record(ctx context.Context, record FailureRecord) {
	payload, err := json.Marshal(record)
	if err != nil {
		s.log.ErrorWithContext(ctx, "failed to serialize failure record",
			slog.String("event_type", record.EventType),
			slog.String("error", err.Error()),
		)

		return
	}

	msg := wmmessage.NewMessage(uuid.NewString(), payload)
	msg.Metadata.Set(message.HeaderTypeName, record.EventType)
	msg.Metadata.Set("failure_reason", record.Reason)
	msg.SetContext(ctx)

	if err := s.publisher.Publish(s.topic, msg); err != nil {
		s.log.ErrorWithContext(ctx, "failed to publish failure record",
			slog.String("topic", s.topic),
			slog.String("error", err.Error()),
		)
	}
}

func newFailureRecord(ctx context.Context, env message.Envelope, eventType string, attempts int, cause error) FailureRecord {
	record := FailureRecord{
		FailedAt:  time.Now().UTC(),
		EventType: eventType,
		MessageID: env.Descriptor.MessageID,
		Headers:   env.Descriptor.Headers,
		Attempts:  attempts,
		Payload:   env.Payload,
	}

	if cause != nil {
		record.Reason = cause.Error()
	}

	if spanCtx := trace.SpanContextFromContext(ctx); spanCtx.IsValid() {
		record.TraceID = spanCtx.TraceID().String()
		record.SpanID = spanCtx.SpanID().String()
	}

	return record
}
