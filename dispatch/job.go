package dispatch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/shortlink-org/go-dispatch/message"
	"github.com/shortlink-org/go-dispatch/mutator"
	"github.com/shortlink-org/go-dispatch/registry"
)

// process runs one job to completion: up to MaxAttempts outer attempts, each
// with a fresh scope. Exhausted jobs are reported once and dropped.
func (p *Pipeline) process(ctx context.Context, j job) {
	eventType := message.NameOf(j.env)

	if p.opts.JobTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.opts.JobTimeout)
		defer cancel()
	}

	ctx, span := p.tracer.Start(ctx, "dispatch.job", trace.WithAttributes(
		attribute.String("event_type", eventType),
	))
	defer span.End()

	start := time.Now()

	var (
		lastErr  error
		attempts int
	)

	for attempt := 1; attempt <= p.opts.MaxAttempts; attempt++ {
		attempts = attempt
		lastErr = p.runAttempt(ctx, j.env, eventType)
		if lastErr == nil {
			p.metrics.observeProcessed(ctx, eventType, time.Since(start))
			return
		}

		span.AddEvent("dispatch.attempt.failed", trace.WithAttributes(
			attribute.Int("attempt", attempt),
			attribute.String("error", lastErr.Error()),
		))

		if attempt == p.opts.MaxAttempts {
			break
		}

		select {
		case <-time.After(p.opts.RetryInterval):
		case <-ctx.Done():
			lastErr = fmt.Errorf("job cancelled after attempt %d: %w (last error: %w)", attempt, ctx.Err(), lastErr)
		}

		if ctx.Err() != nil {
			break
		}
	}

	span.RecordError(lastErr)
	p.metrics.observeProcessed(ctx, eventType, time.Since(start))
	p.metrics.observeFailure(ctx, eventType, lastErr)

	record := newFailureRecord(ctx, j.env, eventType, attempts, lastErr)
	p.opts.FailureSink.Record(ctx, record)
}

// runAttempt executes one outer attempt inside a fresh scope. State from a
// failed attempt never leaks into the retry.
func (p *Pipeline) runAttempt(ctx context.Context, env message.Envelope, eventType string) error {
	scope, err := p.scopes.NewScope(ctx)
	if err != nil {
		return fmt.Errorf("open scope: %w", err)
	}
	defer func() {
		if closeErr := scope.Close(); closeErr != nil {
			p.log.WarnWithContext(ctx, "scope close failed: "+closeErr.Error())
		}
	}()

	units := scope.Units()

	if attemptErr := p.runScoped(ctx, scope, units, env, eventType); attemptErr != nil {
		p.endAll(ctx, units, attemptErr)
		return attemptErr
	}

	// Every handler succeeded: End(nil) commits each participant. A commit
	// failure fails the whole attempt; participants not yet committed get
	// the rollback path.
	for i, unit := range units {
		if err := unit.End(ctx, nil); err != nil {
			p.endAll(ctx, units[i+1:], err)
			return err
		}
	}

	return nil
}

func (p *Pipeline) runScoped(ctx context.Context, scope Scope, units []Participant, env message.Envelope, eventType string) error {
	env, err := mutator.Chain(scope.Mutators()).ApplyIncoming(ctx, env)
	if err != nil {
		return fmt.Errorf("apply incoming mutators: %w", err)
	}

	for _, unit := range units {
		if err := unit.Begin(ctx); err != nil {
			return fmt.Errorf("begin unit of work: %w", err)
		}
	}

	handlerIDs, err := p.handlers.Resolve(ctx, eventType)
	if err != nil {
		return fmt.Errorf("resolve handlers for %s: %w", eventType, err)
	}

	// Handlers run strictly in sequence within a job: they share the same
	// scope, and interleaved partial effects must not happen. Parallelism
	// comes from the worker pool across jobs.
	for _, id := range handlerIDs {
		if err := p.invokeWithRetry(ctx, scope, id, env); err != nil {
			return err
		}
	}

	return nil
}

// invokeWithRetry runs the inner per-handler loop: a fresh handler instance
// per attempt, retrying in place (no backoff) only on the transient retry
// signal. Any other failure aborts immediately. An exhausted loop escalates
// as a retry-requested failure of the whole attempt.
func (p *Pipeline) invokeWithRetry(ctx context.Context, scope Scope, id string, env message.Envelope) error {
	for attempt := 1; attempt <= p.opts.HandlerMaxAttempts; attempt++ {
		h, err := scope.Handler(id)
		if err != nil {
			return fmt.Errorf("build handler %s: %w", id, err)
		}

		err = p.invoke(ctx, h, env)
		if err == nil {
			return nil
		}

		if !errors.Is(err, registry.ErrRetryRequested) {
			return fmt.Errorf("handler %s: %w", id, err)
		}
	}

	return fmt.Errorf("handler %s exhausted %d attempts: %w", id, p.opts.HandlerMaxAttempts, registry.ErrRetryRequested)
}

func (p *Pipeline) invoke(ctx context.Context, h registry.Handler, env message.Envelope) error {
	if p.breaker == nil {
		return h.Handle(ctx, env)
	}

	_, err := p.breaker.Execute(func() (any, error) {
		return nil, h.Handle(ctx, env)
	})

	return err
}

// endAll delivers the rollback path to every participant; End errors are
// logged and never mask the attempt error.
func (p *Pipeline) endAll(ctx context.Context, units []Participant, cause error) {
	for _, unit := range units {
		if err := unit.End(ctx, cause); err != nil {
			p.log.WarnWithContext(ctx, "unit of work rollback failed: "+err.Error())
		}
	}
}
