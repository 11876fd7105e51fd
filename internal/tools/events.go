package tools

import (
	"encoding/json"

	"github.com/firebase/genkit/go/ai"
)

// WithEvents wraps a typed tool handler so it reports lifecycle events to
// the Emitter in the request context. Without an emitter the wrapper passes
// straight through.
func WithEvents[In any](name string, fn func(*ai.ToolContext, In) (string, error)) func(*ai.ToolContext, In) (string, error) {
	return func(ctx *ai.ToolContext, input In) (string, error) {
		emitter := EmitterFromContext(ctx.Context)
		if emitter != nil {
			emitter.ToolStarted(name, argsMap(input))
		}

		result, err := fn(ctx, input)

		if emitter != nil {
			if err != nil {
				emitter.ToolFinished(name, errorPayload(err))
			} else {
				emitter.ToolFinished(name, result)
			}
		}
		return result, err
	}
}

// argsMap converts a tool input struct to a generic map via its JSON form.
// Returns nil when the input has no representable fields.
func argsMap(input any) map[string]any {
	raw, err := json.Marshal(input)
	if err != nil {
		return nil
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil || len(m) == 0 {
		return nil
	}
	return m
}

// errorPayload renders an error the same way expected tool failures are
// rendered, so the transport sees a uniform shape.
func errorPayload(err error) string {
	raw, _ := json.Marshal(map[string]string{"error": err.Error()})
	return string(raw)
}
