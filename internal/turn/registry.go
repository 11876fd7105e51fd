package turn

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/ferrite-ai/ferrite/internal/chatlog"
	"github.com/ferrite-ai/ferrite/internal/engine"
	"github.com/ferrite-ai/ferrite/internal/log"
	"github.com/ferrite-ai/ferrite/internal/wire"
)

// State of a session's turn bookkeeping. Absence from the registry map is
// the idle state; entries exist only while a turn is in flight.
type State int

const (
	StateIdle State = iota
	StateStreaming
	StateSealing
)

func (s State) String() string {
	switch s {
	case StateStreaming:
		return "streaming"
	case StateSealing:
		return "sealing"
	default:
		return "idle"
	}
}

// Seal result reasons.
const (
	ReasonSessionNotFound = "session_not_found"
	ReasonSealInProgress  = "seal_in_progress"
	ReasonReconcileFailed = "reconcile_failed"
)

const (
	// DefaultSupersedeWait bounds how long a new turn waits for the turn
	// it supersedes to acknowledge its stop signal.
	DefaultSupersedeWait = time.Second

	// DefaultSealWait bounds how long a seal waits for the running task to
	// finish on its own before forcing cancellation.
	DefaultSealWait = 2500 * time.Millisecond

	// InterruptionMarker is appended to captured partial output in the
	// synthetic completion.
	InterruptionMarker = "\n... [response interrupted by user]"

	// SealPlaceholder is the synthetic completion text when a turn was
	// stopped before producing any text.
	SealPlaceholder = "(The user stopped the current turn.)"
)

// EngineProvider yields the engine to drive a turn with. The registry asks
// per operation, so the engine instance can be swapped between turns
// without touching bookkeeping (which is keyed by session id).
type EngineProvider interface {
	Current() engine.Engine
}

// SealResult is the outcome of a Seal call. Preserved is true iff the
// synthetic completion was appended to the session history.
type SealResult struct {
	Preserved bool
	Reason    string
}

// Config holds the registry's dependencies.
type Config struct {
	Engines EngineProvider
	Audit   *chatlog.Writer
	Logger  log.Logger
}

// Registry enforces single-writer-per-session and orchestrates cooperative
// cancellation and sealing. Safe for concurrent use.
type Registry struct {
	engines EngineProvider
	audit   *chatlog.Writer
	logger  log.Logger

	supersedeWait time.Duration
	sealWait      time.Duration

	mu       sync.Mutex
	sessions map[string]*entry
}

// entry is a session's in-flight turn bookkeeping.
type entry struct {
	state State
	task  *task
}

// NewRegistry creates a registry with default timeouts.
func NewRegistry(cfg Config) (*Registry, error) {
	if cfg.Engines == nil {
		return nil, fmt.Errorf("turn: engine provider is required")
	}
	if cfg.Audit == nil {
		return nil, fmt.Errorf("turn: audit writer is required")
	}
	if cfg.Logger == nil {
		return nil, fmt.Errorf("turn: logger is required")
	}
	return &Registry{
		engines:       cfg.Engines,
		audit:         cfg.Audit,
		logger:        cfg.Logger.With("component", "turn"),
		supersedeWait: DefaultSupersedeWait,
		sealWait:      DefaultSealWait,
		sessions:      make(map[string]*entry),
	}, nil
}

// StartTurn dispatches one turn for the session and returns its event
// stream. An in-flight turn for the same session is superseded: its stop
// signal is set and the new turn waits briefly for it to drain before the
// engine is driven again. The engine is never hard-cancelled here; a turn
// that misses the wait window is abandoned with its stop flag set and
// drains harmlessly.
func (r *Registry) StartTurn(ctx context.Context, sessionID, message string) (*Stream, error) {
	if strings.TrimSpace(message) == "" {
		return nil, engine.ErrEmptyMessage
	}

	eng := r.engines.Current()
	if err := eng.EnsureSession(ctx, sessionID); err != nil {
		return nil, err
	}

	taskCtx, cancel := context.WithCancel(context.Background())
	t := newTask(ulid.Make().String(), cancel)
	logger := r.logger.With("session_id", sessionID, "turn_id", t.id)

	r.mu.Lock()
	var old *task
	if e := r.sessions[sessionID]; e != nil && e.task != nil {
		old = e.task
		// Both supersession signals together: the stop flag (old producer
		// quits enqueueing) and the bounded wait below (new turn holds off).
		// Setting only one livelocks the single-writer slot.
		old.stop.Set()
	}
	r.sessions[sessionID] = &entry{state: StateStreaming, task: t}
	r.mu.Unlock()

	if old != nil {
		if !old.wait(r.supersedeWait) {
			logger.Warn("superseded turn still draining, proceeding", "old_turn_id", old.id)
		}
	}

	if err := r.audit.Append(ctx, sessionID, chatlog.Record{
		Role:    chatlog.RoleUser,
		Content: message,
	}); err != nil {
		logger.Warn("audit append failed", "error", err)
	}

	q := make(chan wire.Event, queueSize)
	go r.produce(taskCtx, eng, sessionID, message, t, q, logger)

	logger.Debug("turn started")
	return &Stream{q: q, stop: t.stop}, nil
}

// produce drives the engine for one turn, translating raw events onto the
// delivery queue and into the audit log. It runs in its own goroutine and
// owns the queue's closing.
func (r *Registry) produce(ctx context.Context, eng engine.Engine, sessionID, message string, t *task, q chan<- wire.Event, logger log.Logger) {
	defer close(t.done)
	defer close(q)

	translator := &wire.Translator{}
	emit := func(ev engine.Event) {
		// Cooperative stop: once set, keep consuming engine events but
		// translate and deliver nothing. The engine call itself continues.
		if t.stop.Stopped() {
			return
		}
		tr := translator.Translate(ev)
		t.setPartial(translator.PartialText())

		for _, rec := range tr.Audit {
			if err := r.audit.Append(ctx, sessionID, rec); err != nil {
				logger.Warn("audit append failed", "error", err)
			}
		}
		for _, we := range tr.Events {
			select {
			case q <- we:
			case <-t.stop.Done():
				return
			case <-ctx.Done():
				return
			}
		}
	}

	err := eng.RunTurn(ctx, sessionID, message, emit)
	r.finishTurn(sessionID, t)

	if err != nil {
		if t.stop.Stopped() || ctx.Err() != nil {
			logger.Debug("turn ended after stop", "error", err)
			return
		}
		logger.Error("turn failed", "error", err)
		select {
		case q <- wire.Error{Text: err.Error()}:
		case <-t.stop.Done():
		}
		return
	}
	logger.Debug("turn completed")
}

// finishTurn retires the task's bookkeeping if it is still the session's
// current task. A superseded task finds a newer entry and leaves it alone.
func (r *Registry) finishTurn(sessionID string, t *task) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e := r.sessions[sessionID]; e != nil && e.task == t {
		delete(r.sessions, sessionID)
	}
}

// Seal forces an in-flight turn to a consistent completed state. The order
// is load-bearing: stop first, append the synthetic completion, and only
// after that append may the task be hard-cancelled (enforced by the seal
// token). A failed append leaves the session in place — losing it would
// silently lose all context, which is worse than leaving it inconsistent.
func (r *Registry) Seal(ctx context.Context, sessionID string) SealResult {
	r.mu.Lock()
	e := r.sessions[sessionID]
	if e == nil {
		r.mu.Unlock()
		return SealResult{Preserved: false, Reason: ReasonSessionNotFound}
	}
	if e.state == StateSealing {
		r.mu.Unlock()
		return SealResult{Preserved: false, Reason: ReasonSealInProgress}
	}
	e.state = StateSealing
	t := e.task
	t.stop.Set()
	r.mu.Unlock()

	logger := r.logger.With("session_id", sessionID, "turn_id", t.id)

	text := t.partialText()
	if text == "" {
		text = SealPlaceholder
	} else {
		text += InterruptionMarker
	}

	token, err := r.engines.Current().Reconcile(ctx, sessionID, text)
	if err != nil {
		logger.Error("seal reconcile failed", "error", err)
		r.mu.Lock()
		if cur := r.sessions[sessionID]; cur == e {
			e.state = StateStreaming
		}
		r.mu.Unlock()
		return SealResult{Preserved: false, Reason: ReasonReconcileFailed}
	}

	if err := r.audit.Append(ctx, sessionID, chatlog.Record{
		Role:    chatlog.RoleAssistant,
		Content: text,
	}); err != nil {
		logger.Warn("audit append failed", "error", err)
	}

	if !t.wait(r.sealWait) {
		// Safe now: the synthetic completion is durably appended, so the
		// session stays consistent whatever the cancelled task does.
		logger.Warn("sealed turn still running, forcing cancellation")
		t.forceCancel(token, sessionID)
	}

	r.mu.Lock()
	if cur := r.sessions[sessionID]; cur == e {
		delete(r.sessions, sessionID)
	}
	r.mu.Unlock()

	logger.Info("turn sealed", "captured", len(t.partialText()) > 0)
	return SealResult{Preserved: true}
}

// DeleteSession removes all state for the session: turn bookkeeping, engine
// history, and the audit log. Idempotent; internal errors are logged, never
// returned.
func (r *Registry) DeleteSession(ctx context.Context, sessionID string) {
	r.mu.Lock()
	if e := r.sessions[sessionID]; e != nil && e.task != nil {
		e.task.discard()
	}
	delete(r.sessions, sessionID)
	r.mu.Unlock()

	logger := r.logger.With("session_id", sessionID)
	if err := r.engines.Current().DeleteSession(ctx, sessionID); err != nil {
		logger.Warn("deleting engine session", "error", err)
	}
	if err := r.audit.Delete(sessionID); err != nil {
		logger.Warn("deleting audit log", "error", err)
	}
	logger.Info("session deleted")
}

// State reports the session's current turn state.
func (r *Registry) State(sessionID string) State {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e := r.sessions[sessionID]; e != nil {
		return e.state
	}
	return StateIdle
}
