package dispatch

import (
	"runtime"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/shortlink-org/go-dispatch/config"
)

// Option configures pipeline behavior.
type Option func(*Options)

// Options describe pipeline configuration that can be tweaked via functional options.
type Options struct {
	// MaxParallelism bounds concurrent job processing.
	MaxParallelism int

	// QueueCapacity bounds queue depth before Enqueue blocks.
	QueueCapacity int

	// MaxAttempts bounds outer processing attempts per job (1 initial + retries).
	MaxAttempts int

	// HandlerMaxAttempts bounds inner per-handler attempts on a transient
	// retry signal.
	HandlerMaxAttempts int

	// RetryInterval is the fixed sleep between failed outer attempts.
	RetryInterval time.Duration

	// JobTimeout caps how long one job may stay in flight, 0 disables it.
	JobTimeout time.Duration

	// FailureSink receives a diagnostic record when retries are exhausted.
	FailureSink FailureSink

	CircuitBreaker CircuitBreakerOptions

	MeterProvider  metric.MeterProvider
	TracerProvider trace.TracerProvider
}

// CircuitBreakerOptions configure the optional breaker around handler invocations.
type CircuitBreakerOptions struct {
	Enabled  bool
	Settings *gobreaker.Settings
}

func defaultOptions(cfg *config.Config) Options {
	cfg.SetDefault("DISPATCH_MAX_PARALLELISM", runtime.GOMAXPROCS(0))
	cfg.SetDefault("DISPATCH_QUEUE_CAPACITY", 10000)
	cfg.SetDefault("DISPATCH_MAX_ATTEMPTS", 4)
	cfg.SetDefault("DISPATCH_HANDLER_MAX_ATTEMPTS", 4)
	cfg.SetDefault("DISPATCH_RETRY_INTERVAL", "50ms")
	cfg.SetDefault("DISPATCH_JOB_TIMEOUT", "0s")
	cfg.SetDefault("DISPATCH_CB_ENABLED", false)
	cfg.SetDefault("DISPATCH_CB_TIMEOUT", "30s")
	cfg.SetDefault("DISPATCH_CB_FAILURE_THRESHOLD", 5)
	cfg.SetDefault("DISPATCH_CB_HALFOPEN_MAX_REQUESTS", 1)

	opts := Options{
		MaxParallelism:     cfg.GetInt("DISPATCH_MAX_PARALLELISM"),
		QueueCapacity:      cfg.GetInt("DISPATCH_QUEUE_CAPACITY"),
		MaxAttempts:        cfg.GetInt("DISPATCH_MAX_ATTEMPTS"),
		HandlerMaxAttempts: cfg.GetInt("DISPATCH_HANDLER_MAX_ATTEMPTS"),
		RetryInterval:      cfg.GetDuration("DISPATCH_RETRY_INTERVAL"),
		JobTimeout:         cfg.GetDuration("DISPATCH_JOB_TIMEOUT"),
		MeterProvider:      otel.GetMeterProvider(),
		TracerProvider:     otel.GetTracerProvider(),
	}

	if opts.MaxParallelism <= 0 {
		opts.MaxParallelism = runtime.GOMAXPROCS(0)
	}
	if opts.QueueCapacity <= 0 {
		opts.QueueCapacity = 10000
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 1
	}
	if opts.HandlerMaxAttempts <= 0 {
		opts.HandlerMaxAttempts = 1
	}
	if opts.RetryInterval < 0 {
		opts.RetryInterval = 0
	}

	if cfg.GetBool("DISPATCH_CB_ENABLED") {
		settings := defaultCircuitBreakerSettings(cfg)
		opts.CircuitBreaker = CircuitBreakerOptions{
			Enabled:  true,
			Settings: &settings,
		}
	}

	return opts
}

func defaultCircuitBreakerSettings(cfg *config.Config) gobreaker.Settings {
	failureThreshold := cfg.GetInt("DISPATCH_CB_FAILURE_THRESHOLD")
	if failureThreshold <= 0 {
		failureThreshold = 5
	}

	serviceName := strings.TrimSpace(cfg.GetString("SERVICE_NAME"))
	cbName := "dispatch_handler"
	if serviceName != "" {
		cbName = serviceName + "_dispatch_handler"
	}

	settings := gobreaker.Settings{
		Name:        cbName,
		Timeout:     cfg.GetDuration("DISPATCH_CB_TIMEOUT"),
		MaxRequests: uint32(cfg.GetInt("DISPATCH_CB_HALFOPEN_MAX_REQUESTS")),
	}
	if settings.Timeout <= 0 {
		settings.Timeout = 30 * time.Second
	}
	if settings.MaxRequests == 0 {
		settings.MaxRequests = 1
	}
	settings.ReadyToTrip = func(counts gobreaker.Counts) bool {
		return counts.ConsecutiveFailures >= uint32(failureThreshold)
	}

	return settings
}

// WithMaxParallelism overrides the worker count.
func WithMaxParallelism(n int) Option {
	return func(o *Options) {
		if n > 0 {
			o.MaxParallelism = n
		}
	}
}

// WithQueueCapacity overrides the queue depth.
func WithQueueCapacity(n int) Option {
	return func(o *Options) {
		if n > 0 {
			o.QueueCapacity = n
		}
	}
}

// WithMaxAttempts overrides the outer attempt bound.
func WithMaxAttempts(n int) Option {
	return func(o *Options) {
		if n > 0 {
			o.MaxAttempts = n
		}
	}
}

// WithHandlerMaxAttempts overrides the inner per-handler attempt bound.
func WithHandlerMaxAttempts(n int) Option {
	return func(o *Options) {
		if n > 0 {
			o.HandlerMaxAttempts = n
		}
	}
}

// WithRetryInterval overrides the sleep between failed outer attempts.
func WithRetryInterval(d time.Duration) Option {
	return func(o *Options) {
		if d >= 0 {
			o.RetryInterval = d
		}
	}
}

// WithJobTimeout sets a per-job deadline.
func WithJobTimeout(d time.Duration) Option {
	return func(o *Options) {
		o.JobTimeout = d
	}
}

// WithFailureSink overrides the diagnostics destination for exhausted jobs.
func WithFailureSink(sink FailureSink) Option {
	return func(o *Options) {
		o.FailureSink = sink
	}
}

// WithCircuitBreaker enables the breaker around handler invocations.
func WithCircuitBreaker(settings *gobreaker.Settings) Option {
	return func(o *Options) {
		o.CircuitBreaker = CircuitBreakerOptions{
			Enabled:  true,
			Settings: settings,
		}
	}
}

// WithMeterProvider overrides the metrics provider.
func WithMeterProvider(provider metric.MeterProvider) Option {
	return func(o *Options) {
		if provider != nil {
			o.MeterProvider = provider
		}
	}
}

// WithTracerProvider overrides the tracing provider.
func WithTracerProvider(provider trace.TracerProvider) Option {
	return func(o *Options) {
		if provider != nil {
			o.TracerProvider = provider
		}
	}
}
