// Package engine defines the turn engine boundary: the component that owns
// conversation state and produces raw events for a single turn.
//
// The orchestration layer (internal/turn) treats the engine as opaque. It
// never inspects conversation history and only drives the engine through
// this interface, so implementations can be swapped (see [Manager]) without
// touching turn bookkeeping.
package engine

import "context"

// Event is a raw engine event emitted during a turn. Implementations are
// the variant structs below; the translator in internal/wire maps them to
// client-facing records.
type Event interface {
	isEvent()
}

// TextFragment is a streamed piece of model output text.
type TextFragment struct {
	Text string
}

// ToolCall reports that the model invoked a tool.
type ToolCall struct {
	Name  string
	Agent string
	Args  map[string]any
}

// ToolResult reports a completed tool invocation. Result is the raw value
// the tool returned (stringified by the translator).
type ToolResult struct {
	Name   string
	Agent  string
	Result string
}

// TurnComplete marks the natural end of a turn.
type TurnComplete struct{}

func (TextFragment) isEvent() {}
func (ToolCall) isEvent()     {}
func (ToolResult) isEvent()   {}
func (TurnComplete) isEvent() {}

// SealToken proves that a synthetic completion has been appended to a
// session's history. Forced cancellation of a turn requires one, which
// pins the append-before-cancel order at the type level: there is no way
// to hard-kill a task without first obtaining the token from Reconcile.
type SealToken struct {
	sessionID string
}

// NewSealToken is used by Engine implementations after a successful
// reconcile append.
func NewSealToken(sessionID string) SealToken {
	return SealToken{sessionID: sessionID}
}

// Covers reports whether the token was issued for sessionID.
func (t SealToken) Covers(sessionID string) bool {
	return t.sessionID != "" && t.sessionID == sessionID
}

// Engine produces turns for sessions. Implementations must be safe for
// concurrent use across sessions; the orchestrator guarantees at most one
// running turn per session.
type Engine interface {
	// EnsureSession creates session state if it does not exist.
	// Idempotent.
	EnsureSession(ctx context.Context, sessionID string) error

	// RunTurn executes one turn for the user message, calling emit for
	// every raw event in order. emit is called from the turn's goroutine;
	// it must not be retained after RunTurn returns. RunTurn returning nil
	// means the turn completed naturally.
	RunTurn(ctx context.Context, sessionID, message string, emit func(Event)) error

	// Reconcile appends a synthetic model-authored completion to the
	// session history so an interrupted turn leaves the session in a
	// well-formed state. It returns a token that authorizes forced
	// cancellation of the session's running task.
	Reconcile(ctx context.Context, sessionID, text string) (SealToken, error)

	// DeleteSession removes all engine-side state for the session.
	// Idempotent.
	DeleteSession(ctx context.Context, sessionID string) error
}
