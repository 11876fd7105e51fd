package session

import "errors"

// Sentinel errors for session operations, checked with errors.Is().
var (
	// ErrSessionNotFound indicates the requested session does not exist.
	ErrSessionNotFound = errors.New("session not found")

	// ErrInvalidSessionID indicates the session id is not a valid UUID.
	ErrInvalidSessionID = errors.New("invalid session id")
)

// History window constraints. These match internal/config for consistency.
const (
	// DefaultHistoryLimit is the default number of messages to load.
	DefaultHistoryLimit int32 = 100

	// MaxHistoryLimit is the absolute maximum to prevent OOM.
	MaxHistoryLimit int32 = 10000

	// MinHistoryLimit is the minimum allowed history window.
	MinHistoryLimit int32 = 10
)

// NormalizeHistoryLimit clamps the history window to its allowed range.
// Zero or negative values get the default.
func NormalizeHistoryLimit(limit int32) int32 {
	if limit <= 0 {
		return DefaultHistoryLimit
	}
	if limit < MinHistoryLimit {
		return MinHistoryLimit
	}
	if limit > MaxHistoryLimit {
		return MaxHistoryLimit
	}
	return limit
}
