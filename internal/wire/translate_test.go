package wire

import (
	"strings"
	"testing"

	"github.com/ferrite-ai/ferrite/internal/chatlog"
	"github.com/ferrite-ai/ferrite/internal/engine"
)

func TestTranslateTextAccumulates(t *testing.T) {
	var tr Translator

	out := tr.Translate(engine.TextFragment{Text: "Hello"})
	if len(out.Events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(out.Events))
	}
	if text, ok := out.Events[0].(Text); !ok || text.Chunk != "Hello" || text.Done {
		t.Errorf("unexpected event: %#v", out.Events[0])
	}

	tr.Translate(engine.TextFragment{Text: " world"})

	if got := tr.PartialText(); got != "Hello world" {
		t.Errorf("PartialText() = %q, want %q", got, "Hello world")
	}
	if tr.Done() {
		t.Error("turn must not be done before TurnComplete")
	}
}

func TestTranslateEmptyFragmentSkipped(t *testing.T) {
	var tr Translator
	out := tr.Translate(engine.TextFragment{Text: ""})
	if len(out.Events) != 0 {
		t.Errorf("empty fragment should produce no events, got %v", out.Events)
	}
}

func TestTranslateToolCall(t *testing.T) {
	var tr Translator

	out := tr.Translate(engine.ToolCall{Name: "list_projects", Agent: "ferrite", Args: map[string]any{"limit": 5}})

	start, ok := out.Events[0].(ToolStart)
	if !ok {
		t.Fatalf("expected ToolStart, got %#v", out.Events[0])
	}
	if start.Name != "list_projects" || start.Args["limit"] != 5 {
		t.Errorf("unexpected ToolStart: %#v", start)
	}
	if len(out.Audit) != 1 || out.Audit[0].Role != chatlog.RoleToolCall {
		t.Errorf("expected one tool_call audit record, got %#v", out.Audit)
	}
}

func TestTranslateToolCallNilArgs(t *testing.T) {
	var tr Translator
	out := tr.Translate(engine.ToolCall{Name: "list_projects", Agent: "ferrite"})
	if start := out.Events[0].(ToolStart); start.Args == nil {
		t.Error("nil args must marshal as {} not null")
	}
}

func TestTranslateToolResultTruncation(t *testing.T) {
	var tr Translator
	long := strings.Repeat("r", WireResultLimit+50)

	out := tr.Translate(engine.ToolResult{Name: "read_file", Agent: "ferrite", Result: long})

	res := out.Events[0].(ToolResult)
	if n := len([]rune(res.Result)); n != WireResultLimit+1 {
		t.Errorf("wire result length = %d, want %d", n, WireResultLimit+1)
	}
	if !strings.HasSuffix(res.Result, "…") {
		t.Error("expected ellipsis on truncated wire result")
	}
	// Audit keeps the full result; chatlog truncates at append time.
	if !strings.Contains(out.Audit[0].Content, long) {
		t.Error("audit record should carry the untruncated result")
	}
}

func TestTranslateFormResult(t *testing.T) {
	var tr Translator
	payload := FormMarker + `{"form_id":"ab12","title":"Progress","description":"pick one","buttons":[{"label":"OK","value":"ok"}],"fields":[]}`

	out := tr.Translate(engine.ToolResult{Name: "send_form", Agent: "ferrite", Result: payload})

	form, ok := out.Events[0].(Form)
	if !ok {
		t.Fatalf("expected Form event, got %#v", out.Events[0])
	}
	if form.FormID != "ab12" || form.Title != "Progress" {
		t.Errorf("unexpected form: %#v", form)
	}
	if len(form.Buttons) != 1 || form.Buttons[0].Value != "ok" {
		t.Errorf("unexpected buttons: %#v", form.Buttons)
	}
}

func TestTranslateFormResultInvalidJSON(t *testing.T) {
	var tr Translator

	out := tr.Translate(engine.ToolResult{Name: "send_form", Agent: "ferrite", Result: FormMarker + "{not json"})

	if _, ok := out.Events[0].(ToolResult); !ok {
		t.Errorf("invalid form JSON should fall back to a plain tool result, got %#v", out.Events[0])
	}
}

func TestTranslateTurnComplete(t *testing.T) {
	var tr Translator
	tr.Translate(engine.TextFragment{Text: "final answer"})

	out := tr.Translate(engine.TurnComplete{})

	end, ok := out.Events[0].(Text)
	if !ok || !end.Done || end.Chunk != "" {
		t.Fatalf("expected terminal Text{done:true}, got %#v", out.Events[0])
	}
	if !tr.Done() {
		t.Error("Done() must report true after TurnComplete")
	}
	if len(out.Audit) != 1 || out.Audit[0].Role != chatlog.RoleAssistant || out.Audit[0].Content != "final answer" {
		t.Errorf("expected assistant audit record with full text, got %#v", out.Audit)
	}
}

func TestTranslateTurnCompleteWithoutText(t *testing.T) {
	var tr Translator
	out := tr.Translate(engine.TurnComplete{})
	if len(out.Audit) != 0 {
		t.Errorf("no text streamed, expected no audit record, got %#v", out.Audit)
	}
}
