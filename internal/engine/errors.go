package engine

import "errors"

var (
	// ErrSessionNotFound indicates the engine has no state for the session.
	ErrSessionNotFound = errors.New("engine: session not found")

	// ErrExecutionFailed indicates the model call failed mid-turn.
	ErrExecutionFailed = errors.New("engine: execution failed")

	// ErrModelUnavailable indicates the upstream provider is unreachable.
	ErrModelUnavailable = errors.New("engine: model unavailable")

	// ErrEmptyMessage indicates the user message was empty.
	ErrEmptyMessage = errors.New("engine: empty message")
)
