package tools

import (
	"sync"
	"testing"

	"github.com/ferrite-ai/ferrite/internal/log"
	"github.com/ferrite-ai/ferrite/internal/security"
)

// recordingEmitter captures lifecycle events for assertions.
type recordingEmitter struct {
	mu       sync.Mutex
	started  []startedEvent
	finished []finishedEvent
}

type startedEvent struct {
	name string
	args map[string]any
}

type finishedEvent struct {
	name   string
	result string
}

func (r *recordingEmitter) ToolStarted(name string, args map[string]any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.started = append(r.started, startedEvent{name: name, args: args})
}

func (r *recordingEmitter) ToolFinished(name string, result string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.finished = append(r.finished, finishedEvent{name: name, result: result})
}

// newTestKit builds a Kit rooted in a temp directory.
func newTestKit(t *testing.T, extraRoots ...string) *Kit {
	t.Helper()

	pathVal, err := security.NewPath(extraRoots...)
	if err != nil {
		t.Fatalf("NewPath: %v", err)
	}
	kit, err := NewKit(Config{
		ProjectsDir: t.TempDir(),
		PathVal:     pathVal,
		Logger:      log.NewNop(),
	})
	if err != nil {
		t.Fatalf("NewKit: %v", err)
	}
	return kit
}
