package engine

import (
	"context"
	"fmt"
	"strings"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"github.com/firebase/genkit/go/plugins/compat_oai/openai"
	"github.com/firebase/genkit/go/plugins/googlegenai"
	"github.com/firebase/genkit/go/plugins/ollama"
	"github.com/google/uuid"

	"github.com/ferrite-ai/ferrite/internal/config"
	"github.com/ferrite-ai/ferrite/internal/log"
	"github.com/ferrite-ai/ferrite/internal/security"
	"github.com/ferrite-ai/ferrite/internal/session"
	"github.com/ferrite-ai/ferrite/internal/tools"
)

// AgentName attributes tool events on the wire.
const AgentName = "ferrite"

// PromptName is the dotprompt loaded from the prompt directory
// (prompts/ferrite.prompt).
const PromptName = "ferrite"

// fallbackResponse is returned when the model produces no text and made no
// tool requests.
const fallbackResponse = "I apologize, but I couldn't generate a response. Please try rephrasing your question."

// GenkitConfig holds the dependencies for the Genkit-backed engine.
type GenkitConfig struct {
	Config   *config.Config
	Sessions *session.Store
	Logger   log.Logger
}

// Genkit is the production Engine implementation: one genkit runtime, a
// dotprompt, the built-in tool kit, and the Postgres session store for
// history.
type Genkit struct {
	g            *genkit.Genkit
	prompt       ai.Prompt
	sessions     *session.Store
	toolRefs     []ai.ToolRef
	modelName    string
	maxTurns     int
	historyLimit int32
	logger       log.Logger
}

// NewGenkit initializes the genkit runtime for the configured provider,
// registers the built-in tools and loads the dotprompt.
func NewGenkit(ctx context.Context, cfg GenkitConfig) (*Genkit, error) {
	if cfg.Config == nil {
		return nil, fmt.Errorf("engine: config is required")
	}
	if cfg.Sessions == nil {
		return nil, fmt.Errorf("engine: session store is required")
	}
	if cfg.Logger == nil {
		return nil, fmt.Errorf("engine: logger is required")
	}
	logger := cfg.Logger.With("component", "engine")

	promptDir := cfg.Config.PromptDir
	if promptDir == "" {
		promptDir = "prompts"
	}

	var g *genkit.Genkit
	switch cfg.Config.Provider {
	case config.ProviderOllama:
		plugin := &ollama.Ollama{ServerAddress: "http://" + cfg.Config.UpstreamAddr}
		g = genkit.Init(ctx,
			genkit.WithPlugins(plugin),
			genkit.WithPromptDir(promptDir),
		)
		if g == nil {
			return nil, fmt.Errorf("%w: initializing genkit with ollama provider", ErrModelUnavailable)
		}
		// Ollama requires explicit model registration.
		plugin.DefineModel(g, ollama.ModelDefinition{
			Name: cfg.Config.ModelName,
			Type: "chat",
		}, nil)

	case config.ProviderOpenAI:
		g = genkit.Init(ctx,
			genkit.WithPlugins(&openai.OpenAI{}),
			genkit.WithPromptDir(promptDir),
		)
		if g == nil {
			return nil, fmt.Errorf("%w: initializing genkit with openai provider", ErrModelUnavailable)
		}

	default: // gemini / googleai
		g = genkit.Init(ctx,
			genkit.WithPlugins(&googlegenai.GoogleAI{}),
			genkit.WithPromptDir(promptDir),
		)
		if g == nil {
			return nil, fmt.Errorf("%w: initializing genkit with gemini provider", ErrModelUnavailable)
		}
	}

	pathVal, err := security.NewPath(cfg.Config.ProjectsDir)
	if err != nil {
		return nil, fmt.Errorf("creating path validator: %w", err)
	}
	kit, err := tools.NewKit(tools.Config{
		ProjectsDir: cfg.Config.ProjectsDir,
		PathVal:     pathVal,
		Logger:      cfg.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("creating tool kit: %w", err)
	}
	toolRefs, err := kit.Register(g)
	if err != nil {
		return nil, fmt.Errorf("registering tools: %w", err)
	}

	prompt := genkit.LookupPrompt(g, PromptName)
	if prompt == nil {
		return nil, fmt.Errorf("dotprompt %q not found in %s", PromptName, promptDir)
	}

	e := &Genkit{
		g:            g,
		prompt:       prompt,
		sessions:     cfg.Sessions,
		toolRefs:     toolRefs,
		modelName:    cfg.Config.FullModelName(),
		maxTurns:     cfg.Config.MaxTurns,
		historyLimit: config.NormalizeMaxHistoryMessages(cfg.Config.MaxHistoryMessages),
		logger:       logger,
	}
	logger.Info("engine initialized",
		"provider", cfg.Config.Provider,
		"model", e.modelName,
		"tools", len(toolRefs),
	)
	return e, nil
}

// EnsureSession creates the session row if it does not exist.
func (e *Genkit) EnsureSession(ctx context.Context, sessionID string) error {
	id, err := parseSessionID(sessionID)
	if err != nil {
		return err
	}
	return e.sessions.EnsureSession(ctx, id)
}

// RunTurn executes one turn. The user message is persisted before
// generation so a turn interrupted mid-stream still leaves the question in
// history; the model reply is persisted on natural completion, and
// Reconcile covers the interrupted case.
func (e *Genkit) RunTurn(ctx context.Context, sessionID, message string, emit func(Event)) error {
	if strings.TrimSpace(message) == "" {
		return ErrEmptyMessage
	}
	id, err := parseSessionID(sessionID)
	if err != nil {
		return err
	}

	history, err := e.sessions.History(ctx, id, e.historyLimit)
	if err != nil {
		return fmt.Errorf("loading history: %w", err)
	}
	if err := e.sessions.AddMessages(ctx, id, []*session.Message{
		session.TextMessage(session.RoleUser, message),
	}); err != nil {
		return fmt.Errorf("recording user message: %w", err)
	}

	ctx = tools.ContextWithEmitter(ctx, &eventEmitter{emit: emit})

	// Deep copy: genkit's renderMessages mutates message content in place,
	// so concurrent turns must not share history structs.
	messages := deepCopyMessages(history)
	messages = append(messages, ai.NewUserMessage(ai.NewTextPart(message)))

	opts := []ai.PromptExecuteOption{
		ai.WithMessagesFn(func(_ context.Context, _ any) ([]*ai.Message, error) {
			return messages, nil
		}),
		ai.WithTools(e.toolRefs...),
		ai.WithMaxTurns(e.maxTurns),
		ai.WithStreaming(func(_ context.Context, chunk *ai.ModelResponseChunk) error {
			if text := chunk.Text(); text != "" {
				emit(TextFragment{Text: text})
			}
			return nil
		}),
	}
	if e.modelName != "" {
		opts = append(opts, ai.WithModelName(e.modelName))
	}

	resp, err := e.prompt.Execute(ctx, opts...)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrExecutionFailed, err)
	}

	text := resp.Text()
	if strings.TrimSpace(text) == "" && len(resp.ToolRequests()) == 0 {
		e.logger.Warn("model returned empty response", "session_id", sessionID)
		text = fallbackResponse
		emit(TextFragment{Text: text})
	}

	if err := e.sessions.AddMessages(ctx, id, []*session.Message{
		session.TextMessage(session.RoleModel, text),
	}); err != nil {
		return fmt.Errorf("recording model message: %w", err)
	}

	emit(TurnComplete{})
	return nil
}

// Reconcile appends a synthetic model-authored completion. The part is
// marked interrupted so later readers can tell it from a natural reply.
func (e *Genkit) Reconcile(ctx context.Context, sessionID, text string) (SealToken, error) {
	id, err := parseSessionID(sessionID)
	if err != nil {
		return SealToken{}, err
	}

	part := ai.NewTextPart(text)
	part.Metadata = map[string]any{"interrupted": true}
	msg := &session.Message{
		Role:    session.RoleModel,
		Content: []*ai.Part{part},
	}
	if err := e.sessions.AddMessages(ctx, id, []*session.Message{msg}); err != nil {
		return SealToken{}, fmt.Errorf("reconciling session: %w", err)
	}
	return NewSealToken(sessionID), nil
}

// DeleteSession removes the session and its messages. Idempotent.
func (e *Genkit) DeleteSession(ctx context.Context, sessionID string) error {
	id, err := parseSessionID(sessionID)
	if err != nil {
		return err
	}
	return e.sessions.DeleteSession(ctx, id)
}

func parseSessionID(sessionID string) (uuid.UUID, error) {
	id, err := uuid.Parse(sessionID)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: %q", ErrSessionNotFound, sessionID)
	}
	return id, nil
}

// eventEmitter adapts the tool lifecycle callbacks to raw engine events.
type eventEmitter struct {
	emit func(Event)
}

func (t *eventEmitter) ToolStarted(name string, args map[string]any) {
	t.emit(ToolCall{Name: name, Agent: AgentName, Args: args})
}

func (t *eventEmitter) ToolFinished(name, result string) {
	t.emit(ToolResult{Name: name, Agent: AgentName, Result: result})
}

// deepCopyMessages copies history structs before handing them to genkit,
// which mutates msg.Content during rendering (observed through v1.4.0).
func deepCopyMessages(msgs []*ai.Message) []*ai.Message {
	if msgs == nil {
		return nil
	}
	copied := make([]*ai.Message, len(msgs))
	for i, msg := range msgs {
		parts := make([]*ai.Part, len(msg.Content))
		for j, part := range msg.Content {
			parts[j] = deepCopyPart(part)
		}
		copied[i] = &ai.Message{
			Role:     msg.Role,
			Content:  parts,
			Metadata: shallowCopyMap(msg.Metadata),
		}
	}
	return copied
}

// deepCopyPart copies one part. ToolRequest.Input and ToolResponse.Output
// are reference-copied: rendering only mutates the content slice itself.
func deepCopyPart(p *ai.Part) *ai.Part {
	if p == nil {
		return nil
	}
	cp := &ai.Part{
		Kind:        p.Kind,
		ContentType: p.ContentType,
		Text:        p.Text,
		Custom:      shallowCopyMap(p.Custom),
		Metadata:    shallowCopyMap(p.Metadata),
	}
	if p.ToolRequest != nil {
		cp.ToolRequest = &ai.ToolRequest{
			Input: p.ToolRequest.Input,
			Name:  p.ToolRequest.Name,
			Ref:   p.ToolRequest.Ref,
		}
	}
	if p.ToolResponse != nil {
		cp.ToolResponse = &ai.ToolResponse{
			Name:   p.ToolResponse.Name,
			Output: p.ToolResponse.Output,
			Ref:    p.ToolResponse.Ref,
		}
	}
	if p.Resource != nil {
		cp.Resource = &ai.ResourcePart{Uri: p.Resource.Uri}
	}
	return cp
}

func shallowCopyMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	cp := make(map[string]any, len(m))
	for k, v := range m {
		cp[k] = v
	}
	return cp
}
