package api

import (
	"bufio"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/ferrite-ai/ferrite/internal/chatlog"
	"github.com/ferrite-ai/ferrite/internal/engine"
	"github.com/ferrite-ai/ferrite/internal/log"
	"github.com/ferrite-ai/ferrite/internal/turn"
)

// fakeEngine is a scriptable engine.Engine for handler tests.
type fakeEngine struct {
	mu         sync.Mutex
	runFn      func(ctx context.Context, sessionID, message string, emit func(engine.Event)) error
	reconciled []string
	deleted    []string
}

func (f *fakeEngine) EnsureSession(context.Context, string) error { return nil }

func (f *fakeEngine) RunTurn(ctx context.Context, sessionID, message string, emit func(engine.Event)) error {
	if f.runFn != nil {
		return f.runFn(ctx, sessionID, message, emit)
	}
	emit(engine.TextFragment{Text: "Hello"})
	emit(engine.TurnComplete{})
	return nil
}

func (f *fakeEngine) Reconcile(_ context.Context, sessionID, text string) (engine.SealToken, error) {
	f.mu.Lock()
	f.reconciled = append(f.reconciled, text)
	f.mu.Unlock()
	return engine.NewSealToken(sessionID), nil
}

func (f *fakeEngine) DeleteSession(_ context.Context, sessionID string) error {
	f.mu.Lock()
	f.deleted = append(f.deleted, sessionID)
	f.mu.Unlock()
	return nil
}

// testServer bundles the server with the pieces tests poke at directly.
type testServer struct {
	srv      *Server
	eng      *fakeEngine
	registry *turn.Registry
	engines  *engine.Manager
	auditDir string
}

func newTestServer(t *testing.T, eng *fakeEngine) *testServer {
	t.Helper()

	auditDir := t.TempDir()
	audit, err := chatlog.NewWriter(auditDir)
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}

	mgr, err := engine.NewManager(context.Background(), func(context.Context) (engine.Engine, error) {
		return eng, nil
	}, "", log.NewNop())
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}

	registry, err := turn.NewRegistry(turn.Config{
		Engines: mgr,
		Audit:   audit,
		Logger:  log.NewNop(),
	})
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}

	srv, err := NewServer(ServerConfig{
		Logger:   log.NewNop(),
		Registry: registry,
		Engines:  mgr,
	})
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}

	return &testServer{srv: srv, eng: eng, registry: registry, engines: mgr, auditDir: auditDir}
}

// auditRoles reads the role column of the session's JSONL audit file.
func (ts *testServer) auditRoles(t *testing.T, sessionID string) []string {
	t.Helper()

	f, err := os.Open(filepath.Join(ts.auditDir, sessionID+".jsonl"))
	if err != nil {
		t.Fatalf("open audit file: %v", err)
	}
	defer f.Close()

	var roles []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var rec chatlog.Record
		if err := json.Unmarshal(sc.Bytes(), &rec); err != nil {
			t.Fatalf("decode audit record: %v", err)
		}
		roles = append(roles, rec.Role)
	}
	return roles
}

// decodeFrames parses SSE "data:" frames from a response body into generic
// JSON objects.
func decodeFrames(t *testing.T, body string) []map[string]any {
	t.Helper()

	var frames []map[string]any
	for _, line := range strings.Split(body, "\n") {
		data, ok := strings.CutPrefix(line, "data: ")
		if !ok {
			continue
		}
		var m map[string]any
		if err := json.Unmarshal([]byte(data), &m); err != nil {
			t.Fatalf("decode frame %q: %v", data, err)
		}
		frames = append(frames, m)
	}
	return frames
}
