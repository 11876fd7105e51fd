// Package chatlog provides an append-only JSONL audit trail of conversation
// activity, one file per session.
//
// Appends take an exclusive file lock via [github.com/gofrs/flock] so
// multiple server processes can share a log directory without interleaving
// records.
//
// Audit logging is best-effort: a failed append must never break a turn.
// Callers log the returned error at warn level and continue.
package chatlog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/gofrs/flock"
)

// MaxContentLength caps the stored content of a record. Longer content is
// truncated with a trailing ellipsis; the audit trail records activity, not
// full transcripts (those live in PostgreSQL).
const MaxContentLength = 2000

// Roles recorded in the audit trail.
const (
	RoleUser       = "user"
	RoleAssistant  = "assistant"
	RoleToolCall   = "tool_call"
	RoleToolResult = "tool_result"
)

// ErrInvalidSessionID reports a session id that cannot name a log file.
var ErrInvalidSessionID = errors.New("invalid session id")

// Record is one audit entry.
type Record struct {
	TS      time.Time `json:"ts"`
	Role    string    `json:"role"`
	Content string    `json:"content"`
}

// Writer appends audit records to per-session JSONL files.
// Safe for concurrent use within a process (mutex) and across processes
// (flock).
type Writer struct {
	dir string

	mu sync.Mutex
}

// NewWriter creates the log directory if needed and returns a Writer.
func NewWriter(dir string) (*Writer, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("creating chat log directory: %w", err)
	}
	return &Writer{dir: dir}, nil
}

// Append writes one record as a single JSON line to the session's file.
// A zero TS is set to now; Content is truncated to MaxContentLength.
func (w *Writer) Append(ctx context.Context, sessionID string, rec Record) error {
	path, err := w.pathFor(sessionID)
	if err != nil {
		return err
	}

	if rec.TS.IsZero() {
		rec.TS = time.Now().UTC()
	}
	rec.Content = Truncate(rec.Content, MaxContentLength)

	line, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal chat log record: %w", err)
	}
	line = append(line, '\n')

	w.mu.Lock()
	defer w.mu.Unlock()

	lock := flock.New(path + ".lock")
	locked, err := lock.TryLockContext(ctx, 50*time.Millisecond)
	if err != nil {
		return fmt.Errorf("locking chat log: %w", err)
	}
	if !locked {
		return fmt.Errorf("locking chat log: lock not acquired")
	}
	defer func() { _ = lock.Unlock() }()

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o640)
	if err != nil {
		return fmt.Errorf("opening chat log: %w", err)
	}
	defer func() { _ = f.Close() }()

	if _, err := f.Write(line); err != nil {
		return fmt.Errorf("appending chat log record: %w", err)
	}
	return nil
}

// Delete removes the session's log file. Idempotent: a missing file is not
// an error.
func (w *Writer) Delete(sessionID string) error {
	path, err := w.pathFor(sessionID)
	if err != nil {
		return err
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing chat log: %w", err)
	}
	if err := os.Remove(path + ".lock"); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing chat log lock: %w", err)
	}
	return nil
}

// pathFor maps a session id to its log file, rejecting ids that would
// escape the log directory.
func (w *Writer) pathFor(sessionID string) (string, error) {
	if sessionID == "" || strings.ContainsAny(sessionID, `/\`) || sessionID != filepath.Base(sessionID) {
		return "", fmt.Errorf("%w: %q", ErrInvalidSessionID, sessionID)
	}
	return filepath.Join(w.dir, sessionID+".jsonl"), nil
}

// Truncate shortens s to at most max runes, appending "…" when cut.
func Truncate(s string, max int) string {
	if max <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max]) + "…"
}
