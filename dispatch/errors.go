package dispatch

import "errors"

var (
	// ErrPipelineClosed is returned by Enqueue after Close.
	ErrPipelineClosed = errors.New("dispatch: pipeline is closed")

	errNilLogger       = errors.New("dispatch: logger is required")
	errNilConfig       = errors.New("dispatch: config is required")
	errNilScopeFactory = errors.New("dispatch: scope factory is required")
	errNilHandlerCache = errors.New("dispatch: handler cache is required")
	errNilSubscriber   = errors.New("dispatch: subscriber is required")
)
