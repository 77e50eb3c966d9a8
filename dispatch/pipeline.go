// Package dispatch implements the consumption-side runtime: a bounded worker
// pool that drains a job queue, opens a fresh unit-of-work scope per attempt,
// invokes the registered handlers with retry and commits or aborts the scope.
package dispatch

import (
	"context"
	"sync"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/shortlink-org/go-dispatch/config"
	"github.com/shortlink-org/go-dispatch/logger"
	"github.com/shortlink-org/go-dispatch/message"
	"github.com/shortlink-org/go-dispatch/registry"
)

type job struct {
	env message.Envelope
}

// Pipeline accepts (event, descriptor) jobs and processes them with bounded
// parallelism. Enqueue exerts backpressure by blocking the caller when the
// queue is full; no job is dropped or buffered unboundedly.
type Pipeline struct {
	log      logger.Logger
	opts     Options
	scopes   ScopeFactory
	handlers *registry.Cache

	metrics *metrics
	tracer  trace.Tracer
	breaker *gobreaker.CircuitBreaker

	queue chan job

	closed    chan struct{}
	closeOnce sync.Once
}

// New builds a pipeline. Configuration defaults come from cfg and can be
// overridden with functional options.
func New(
	log logger.Logger,
	cfg *config.Config,
	scopes ScopeFactory,
	handlers *registry.Cache,
	options ...Option,
) (*Pipeline, error) {
	if log == nil {
		return nil, errNilLogger
	}
	if cfg == nil {
		return nil, errNilConfig
	}
	if scopes == nil {
		return nil, errNilScopeFactory
	}
	if handlers == nil {
		return nil, errNilHandlerCache
	}

	opts := defaultOptions(cfg)
	for _, opt := range options {
		if opt == nil {
			continue
		}
		opt(&opts)
	}

	if opts.FailureSink == nil {
		opts.FailureSink = NewLogSink(log)
	}

	m, err := newMetrics(log, opts.MeterProvider)
	if err != nil {
		return nil, err
	}

	p := &Pipeline{
		log:      log,
		opts:     opts,
		scopes:   scopes,
		handlers: handlers,
		metrics:  m,
		tracer:   opts.TracerProvider.Tracer("dispatch"),
		queue:    make(chan job, opts.QueueCapacity),
		closed:   make(chan struct{}),
	}

	if opts.CircuitBreaker.Enabled {
		settings := opts.CircuitBreaker.Settings
		if settings == nil {
			defaultCfg := defaultCircuitBreakerSettings(cfg)
			settings = &defaultCfg
		}
		p.breaker = gobreaker.NewCircuitBreaker(*settings)
	}

	return p, nil
}

// Enqueue accepts one envelope for processing. It returns once the job has
// been queued, not once it has been processed, and blocks while the queue is
// at capacity. Cancelling ctx unblocks the caller.
func (p *Pipeline) Enqueue(ctx context.Context, env message.Envelope) error {
	if ctx == nil {
		ctx = context.Background()
	}

	select {
	case <-p.closed:
		return ErrPipelineClosed
	default:
	}

	select {
	case p.queue <- job{env: env}:
		return nil
	case <-p.closed:
		return ErrPipelineClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run starts the worker pool and blocks until ctx is cancelled or Close is
// called, then waits for in-flight jobs to finish. Jobs still parked in the
// queue at shutdown are abandoned.
func (p *Pipeline) Run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	group, gctx := errgroup.WithContext(ctx)

	for i := 0; i < p.opts.MaxParallelism; i++ {
		group.Go(func() error {
			return p.worker(gctx)
		})
	}

	return group.Wait()
}

func (p *Pipeline) worker(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-p.closed:
			return nil
		case j := <-p.queue:
			p.process(ctx, j)
		}
	}
}

// Close stops the pipeline: Enqueue starts failing and workers exit after
// their current job. Safe to call more than once.
func (p *Pipeline) Close() error {
	p.closeOnce.Do(func() {
		close(p.closed)
	})

	return nil
}
