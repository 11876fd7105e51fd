package api

import (
	"context"
	"net/http"
	"slices"
	"testing"

	"github.com/ferrite-ai/ferrite/internal/engine"
)

// TestStreamToolScenario runs a full turn over the SSE endpoint: the model
// calls a tool, receives the result, and answers. Verifies both the frame
// order on the wire and the audit trail on disk.
func TestStreamToolScenario(t *testing.T) {
	eng := &fakeEngine{}
	eng.runFn = func(_ context.Context, _, _ string, emit func(engine.Event)) error {
		emit(engine.ToolCall{
			Name:  "list_projects",
			Agent: "ferrite",
			Args:  map[string]any{},
		})
		emit(engine.ToolResult{
			Name:   "list_projects",
			Agent:  "ferrite",
			Result: `{"projects":[]}`,
		})
		emit(engine.TextFragment{Text: "You have no projects yet."})
		emit(engine.TurnComplete{})
		return nil
	}
	ts := newTestServer(t, eng)

	w := getStream(t, ts, "what projects do I have?", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	sid := w.Header().Get("X-Session-Id")

	frames := decodeFrames(t, w.Body.String())
	var types []string
	for _, f := range frames {
		types = append(types, f["type"].(string))
	}
	wantTypes := []string{"tool_start", "tool_result", "text", "text"}
	if !slices.Equal(types, wantTypes) {
		t.Fatalf("frame types = %v, want %v", types, wantTypes)
	}

	if frames[0]["name"] != "list_projects" || frames[0]["agent"] != "ferrite" {
		t.Fatalf("tool_start frame = %v", frames[0])
	}
	if frames[1]["result"] != `{"projects":[]}` {
		t.Fatalf("tool_result frame = %v", frames[1])
	}
	if frames[2]["chunk"] != "You have no projects yet." || frames[2]["done"] != false {
		t.Fatalf("text frame = %v", frames[2])
	}
	if frames[3]["done"] != true {
		t.Fatalf("terminal frame = %v", frames[3])
	}

	roles := ts.auditRoles(t, sid)
	wantRoles := []string{"user", "tool_call", "tool_result", "assistant"}
	if !slices.Equal(roles, wantRoles) {
		t.Fatalf("audit roles = %v, want %v", roles, wantRoles)
	}
}
