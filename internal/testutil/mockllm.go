package testutil

import (
	"context"
	"strings"
	"sync"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
)

// MockModelName is the fully-qualified name the mock registers under.
const MockModelName = "mock/test-model"

// MockLLM is a scripted genkit model. Each registered rule pairs a
// case-insensitive substring of the user message with a canned reply;
// the first matching rule wins and unmatched messages get the fallback.
// Replies stream through the model callback in one chunk, so streaming
// code paths are exercised too.
type MockLLM struct {
	mu       sync.Mutex
	rules    []mockRule
	fallback string
	calls    []MockCall
}

type mockRule struct {
	needle string
	reply  string
	tools  []*ai.ToolRequest
}

// MockCall records one generation request seen by the mock.
type MockCall struct {
	UserMessage string
	Response    string
}

func NewMockLLM(fallback string) *MockLLM {
	return &MockLLM{fallback: fallback}
}

// AddResponse scripts a text reply for user messages containing pattern.
func (m *MockLLM) AddResponse(pattern, response string) {
	m.addRule(mockRule{needle: strings.ToLower(pattern), reply: response})
}

// AddToolResponse scripts a reply that also requests tool calls.
func (m *MockLLM) AddToolResponse(pattern string, tools []*ai.ToolRequest, textResponse string) {
	m.addRule(mockRule{needle: strings.ToLower(pattern), reply: textResponse, tools: tools})
}

func (m *MockLLM) addRule(r mockRule) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rules = append(m.rules, r)
}

// Calls returns a snapshot of every request the mock has served.
func (m *MockLLM) Calls() []MockCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]MockCall(nil), m.calls...)
}

// RegisterModel defines the mock on g under MockModelName.
func (m *MockLLM) RegisterModel(g *genkit.Genkit) ai.Model {
	return genkit.DefineModel(g, MockModelName, &ai.ModelOptions{
		Label: "Mock Test Model",
		Supports: &ai.ModelSupports{
			Multiturn:  true,
			Tools:      true,
			SystemRole: true,
		},
	}, m.generate)
}

// lastUserText extracts the newest user message from the request, which is
// what the rule matching keys on even when history is attached.
func lastUserText(req *ai.ModelRequest) string {
	for i := len(req.Messages) - 1; i >= 0; i-- {
		if req.Messages[i].Role == ai.RoleUser {
			return req.Messages[i].Text()
		}
	}
	return ""
}

func (m *MockLLM) match(userText string) mockRule {
	m.mu.Lock()
	defer m.mu.Unlock()

	hit := mockRule{reply: m.fallback}
	lower := strings.ToLower(userText)
	for _, r := range m.rules {
		if strings.Contains(lower, r.needle) {
			hit = r
			break
		}
	}
	m.calls = append(m.calls, MockCall{UserMessage: userText, Response: hit.reply})
	return hit
}

func (m *MockLLM) generate(ctx context.Context, req *ai.ModelRequest, cb ai.ModelStreamCallback) (*ai.ModelResponse, error) {
	userText := lastUserText(req)
	hit := m.match(userText)

	if cb != nil {
		if err := cb(ctx, &ai.ModelResponseChunk{
			Content: []*ai.Part{ai.NewTextPart(hit.reply)},
		}); err != nil {
			return nil, err
		}
	}

	parts := make([]*ai.Part, 0, len(hit.tools)+1)
	for _, tr := range hit.tools {
		parts = append(parts, &ai.Part{Kind: ai.PartToolRequest, ToolRequest: tr})
	}
	parts = append(parts, ai.NewTextPart(hit.reply))

	return &ai.ModelResponse{
		Request: req,
		Message: &ai.Message{Role: ai.RoleModel, Content: parts},
	}, nil
}
