package uow

import "errors"

var (
	// ErrPersistence marks a storage-layer commit failure. It is
	// distinguishable from generic attempt failures but still handled by the
	// dispatch retry loop.
	ErrPersistence = errors.New("uow: persistence failure")

	// ErrNilFactory indicates that New received no repository factory.
	ErrNilFactory = errors.New("uow: repository factory is required")

	// ErrClosed indicates use of a disposed unit of work.
	ErrClosed = errors.New("uow: scope is closed")
)
