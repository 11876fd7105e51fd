package turn

import (
	"context"
	"sync"
	"time"

	"github.com/ferrite-ai/ferrite/internal/engine"
)

// StopSignal tells a running task to stop producing observable output. It
// is set at most once and never reset; a new turn allocates a fresh signal.
type StopSignal struct {
	once sync.Once
	ch   chan struct{}
}

// NewStopSignal returns an unset signal.
func NewStopSignal() *StopSignal {
	return &StopSignal{ch: make(chan struct{})}
}

// Set marks the signal. Safe to call from multiple goroutines; idempotent.
func (s *StopSignal) Set() {
	s.once.Do(func() { close(s.ch) })
}

// Stopped reports whether the signal has been set.
func (s *StopSignal) Stopped() bool {
	select {
	case <-s.ch:
		return true
	default:
		return false
	}
}

// Done returns a channel closed when the signal is set.
func (s *StopSignal) Done() <-chan struct{} {
	return s.ch
}

// task is one in-flight turn. The registry owns exactly one live task per
// session.
type task struct {
	id     string // turn id, for log correlation
	stop   *StopSignal
	cancel context.CancelFunc
	done   chan struct{} // closed by the producer goroutine on exit

	mu      sync.Mutex
	partial string // text streamed so far, snapshotted after each event
}

func newTask(id string, cancel context.CancelFunc) *task {
	return &task{
		id:     id,
		stop:   NewStopSignal(),
		cancel: cancel,
		done:   make(chan struct{}),
	}
}

// setPartial records the text streamed so far. Called by the producer after
// each translated event, stopping once the stop signal is observed, so the
// seal snapshot matches what the client actually received.
func (t *task) setPartial(text string) {
	t.mu.Lock()
	t.partial = text
	t.mu.Unlock()
}

// partialText returns the captured partial output.
func (t *task) partialText() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.partial
}

// wait blocks until the task finishes or d elapses. Reports whether the
// task finished.
func (t *task) wait(d time.Duration) bool {
	select {
	case <-t.done:
		return true
	case <-time.After(d):
		return false
	}
}

// forceCancel hard-cancels the task's context. It requires a seal token
// covering the session: the only way to obtain one is a successful
// Reconcile, so the synthetic completion is durably appended before any
// hard interrupt can happen. Returns false (and does nothing) for a token
// issued for another session.
func (t *task) forceCancel(token engine.SealToken, sessionID string) bool {
	if !token.Covers(sessionID) {
		return false
	}
	t.cancel()
	return true
}

// discard hard-cancels the task without a token. Only session deletion may
// use it: the session's state is being destroyed, so consistency of the
// engine's history no longer matters.
func (t *task) discard() {
	t.stop.Set()
	t.cancel()
}
