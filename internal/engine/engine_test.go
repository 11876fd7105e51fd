package engine

import (
	"testing"

	"github.com/firebase/genkit/go/ai"
)

func TestSealTokenCovers(t *testing.T) {
	token := NewSealToken("abc")
	if !token.Covers("abc") {
		t.Error("token should cover its own session")
	}
	if token.Covers("def") {
		t.Error("token must not cover another session")
	}

	var zero SealToken
	if zero.Covers("") {
		t.Error("zero token must not cover anything, even the empty id")
	}
}

func TestEventEmitterAttributesAgent(t *testing.T) {
	var events []Event
	em := &eventEmitter{emit: func(e Event) { events = append(events, e) }}

	em.ToolStarted("list_projects", map[string]any{"x": 1})
	em.ToolFinished("list_projects", `{"projects":{}}`)

	if len(events) != 2 {
		t.Fatalf("events = %d, want 2", len(events))
	}
	call, ok := events[0].(ToolCall)
	if !ok {
		t.Fatalf("events[0] = %T, want ToolCall", events[0])
	}
	if call.Agent != AgentName || call.Name != "list_projects" {
		t.Errorf("call = %+v", call)
	}
	result, ok := events[1].(ToolResult)
	if !ok {
		t.Fatalf("events[1] = %T, want ToolResult", events[1])
	}
	if result.Agent != AgentName || result.Result != `{"projects":{}}` {
		t.Errorf("result = %+v", result)
	}
}

func TestDeepCopyMessagesIndependent(t *testing.T) {
	original := []*ai.Message{
		ai.NewUserMessage(ai.NewTextPart("hello")),
		{
			Role: ai.RoleModel,
			Content: []*ai.Part{
				{Kind: ai.PartToolRequest, ToolRequest: &ai.ToolRequest{Name: "read_file", Input: map[string]any{"path": "a"}}},
			},
			Metadata: map[string]any{"k": "v"},
		},
	}

	copied := deepCopyMessages(original)
	if len(copied) != len(original) {
		t.Fatalf("len = %d, want %d", len(copied), len(original))
	}

	// Mutating the copy's content slice must not touch the original.
	copied[0].Content[0] = ai.NewTextPart("mutated")
	if original[0].Content[0].Text != "hello" {
		t.Error("original message mutated through copy")
	}

	copied[1].Metadata["k"] = "changed"
	if original[1].Metadata["k"] != "v" {
		t.Error("original metadata mutated through copy")
	}

	if copied[1].Content[0].ToolRequest.Name != "read_file" {
		t.Errorf("tool request not carried over: %+v", copied[1].Content[0])
	}
}

func TestDeepCopyMessagesNil(t *testing.T) {
	if deepCopyMessages(nil) != nil {
		t.Error("nil input should stay nil")
	}
}
