package dispatch

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/shortlink-org/go-dispatch/logger"
)

const metricErrorMaxLen = 128

type metrics struct {
	meter metric.Meter

	processed metric.Int64Counter
	failures  metric.Int64Counter
	duration  metric.Float64Histogram
}

func newMetrics(log logger.Logger, provider metric.MeterProvider) (*metrics, error) {
	m := provider.Meter("dispatch")

	processed, err := m.Int64Counter(
		"dispatch_events_processed_total",
		metric.WithDescription("Total number of events that finished processing"),
		metric.WithUnit("1"),
	)
	if err != nil {
		log.Error("Failed to create processed counter metric", slog.String("error", err.Error()))
		return nil, err
	}

	failures, err := m.Int64Counter(
		"dispatch_events_failed_total",
		metric.WithDescription("Total number of events dropped after exhausted retries"),
		metric.WithUnit("1"),
	)
	if err != nil {
		log.Error("Failed to create failures counter metric", slog.String("error", err.Error()))
		return nil, err
	}

	duration, err := m.Float64Histogram(
		"dispatch_processing_duration_seconds",
		metric.WithDescription("End-to-end processing duration per job in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		log.Error("Failed to create duration histogram metric", slog.String("error", err.Error()))
		return nil, err
	}

	return &metrics{
		meter:     m,
		processed: processed,
		failures:  failures,
		duration:  duration,
	}, nil
}

func (m *metrics) observeProcessed(ctx context.Context, eventType string, elapsed time.Duration) {
	attrs := metric.WithAttributes(m.eventAttributes(ctx, eventType)...)

	m.processed.Add(ctx, 1, attrs)
	m.duration.Record(ctx, elapsed.Seconds(), attrs)
}

func (m *metrics) observeFailure(ctx context.Context, eventType string, cause error) {
	attrs := m.eventAttributes(ctx, eventType)
	if cause != nil {
		errStr := cause.Error()
		if len(errStr) > metricErrorMaxLen {
			errStr = errStr[:metricErrorMaxLen]
		}
		attrs = append(attrs, attribute.String("error", errStr))
	}

	m.failures.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// eventAttributes enriches metric points with trace/span ids for exemplars.
func (m *metrics) eventAttributes(ctx context.Context, eventType string) []attribute.KeyValue {
	attrs := []attribute.KeyValue{attribute.String("event_type", eventType)}

	spanCtx := trace.SpanContextFromContext(ctx)
	if spanCtx.IsValid() {
		attrs = append(attrs,
			attribute.String("trace_id", spanCtx.TraceID().String()),
			attribute.String("span_id", spanCtx.SpanID().String()),
		)
	}

	return attrs
}
