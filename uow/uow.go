// Package uow implements the per-message transactional scope: a registry of
// aggregate repositories, an accumulated header map and the commit lifecycle
// bracketing one processing attempt.
package uow

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/shortlink-org/go-dispatch/message"
)

// Repository persists one aggregate type. Implementations are supplied by
// the storage integration and created through a RepositoryFactory.
type Repository interface {
	Commit(ctx context.Context, commitID string, headers map[string]string) error

	io.Closer
}

// RepositoryFactory creates repositories on first access within a scope.
type RepositoryFactory interface {
	ForAggregate(ctx context.Context, kind string) (Repository, error)
}

// UnitOfWork is one per-job scope. It is exclusively owned by the worker
// processing the job and never shared, so its maps need no locking; only
// disposal is guarded so Close is safe to call once from teardown paths.
type UnitOfWork struct {
	factory   RepositoryFactory
	carryOver []string

	repos   map[string]Repository
	headers map[string]string
	current *message.Envelope

	startedAt time.Time
	failed    bool

	closeOnce sync.Once
	closeErr  error
	closed    bool
}

// Option configures a UnitOfWork.
type Option func(*UnitOfWork)

// WithCarryOver overrides the recognized carry-over header names.
func WithCarryOver(names ...string) Option {
	return func(u *UnitOfWork) {
		u.carryOver = names
	}
}

// New creates a fresh unit of work bound to a repository factory.
func New(factory RepositoryFactory, opts ...Option) (*UnitOfWork, error) {
	if factory == nil {
		return nil, ErrNilFactory
	}

	u := &UnitOfWork{
		factory:   factory,
		carryOver: message.DefaultCarryOver,
		repos:     make(map[string]Repository),
		headers:   make(map[string]string),
	}

	for _, opt := range opts {
		if opt != nil {
			opt(u)
		}
	}

	return u, nil
}

// RepositoryFor returns the repository for an aggregate kind, creating it on
// first request and caching it for the life of the scope.
func (u *UnitOfWork) RepositoryFor(ctx context.Context, kind string) (Repository, error) {
	if u.closed {
		return nil, ErrClosed
	}

	if repo, ok := u.repos[kind]; ok {
		return repo, nil
	}

	repo, err := u.factory.ForAggregate(ctx, kind)
	if err != nil {
		return nil, fmt.Errorf("create repository for aggregate %s: %w", kind, err)
	}

	u.repos[kind] = repo

	return repo, nil
}

// Begin opens the lifecycle of one processing attempt.
func (u *UnitOfWork) Begin(_ context.Context) error {
	if u.closed {
		return ErrClosed
	}

	u.startedAt = time.Now()
	u.failed = false

	return nil
}

// End closes the attempt: a nil error commits every owned repository, a
// non-nil error marks the scope failed and skips the commit.
func (u *UnitOfWork) End(ctx context.Context, cause error) error {
	if u.closed {
		return ErrClosed
	}

	if cause != nil {
		u.failed = true
		return nil
	}

	return u.commit(ctx)
}

// Duration reports how long the current attempt has been running.
func (u *UnitOfWork) Duration() time.Duration {
	if u.startedAt.IsZero() {
		return 0
	}
	return time.Since(u.startedAt)
}

// Failed reports whether the scope ended with an error.
func (u *UnitOfWork) Failed() bool {
	return u.failed
}

// Headers returns a snapshot copy of the accumulated header map.
func (u *UnitOfWork) Headers() map[string]string {
	snapshot := make(map[string]string, len(u.headers))
	for k, v := range u.headers {
		snapshot[k] = v
	}

	return snapshot
}

// MutateIncoming folds the envelope's headers into the accumulated map and
// records the envelope as the current message.
//
// Recognized carry-over headers are copied under the carry prefix, absent
// ones with the missing-value sentinel. Every other header is copied
// verbatim unless its name is denylisted. The fold is idempotent for
// identical input headers.
func (u *UnitOfWork) MutateIncoming(_ context.Context, env message.Envelope) (message.Envelope, error) {
	if u.closed {
		return env, ErrClosed
	}

	for _, name := range u.carryOver {
		value := env.Descriptor.Header(name)
		if value == "" {
			value = message.MissingValue
		}
		u.headers[message.CarryPrefix+name] = value
	}

	for name, value := range env.Descriptor.Headers {
		if message.CopyDenied(name) {
			continue
		}
		u.headers[name] = value
	}

	u.current = &env

	return env, nil
}

// MutateOutgoing copies every accumulated header onto the outgoing envelope,
// unconditionally overwriting same-named keys.
func (u *UnitOfWork) MutateOutgoing(_ context.Context, env message.Envelope) (message.Envelope, error) {
	if u.closed {
		return env, ErrClosed
	}

	for name, value := range u.headers {
		env = env.WithHeader(name, value)
	}

	return env, nil
}

// Close disposes every repository created within the scope. Safe to call
// once; it must not run concurrently with an in-flight commit.
func (u *UnitOfWork) Close() error {
	u.closeOnce.Do(func() {
		u.closed = true
		u.closeErr = u.closeRepositories()
	})

	return u.closeErr
}
