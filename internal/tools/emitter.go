package tools

import "context"

// emitterKey is an empty struct for a zero-allocation context key.
type emitterKey struct{}

// Emitter receives tool lifecycle events. The engine binds one per turn;
// it carries no UI concerns, only what happened.
type Emitter interface {
	// ToolStarted signals that a tool began executing with the given
	// arguments. args may be nil when the tool takes no input.
	ToolStarted(name string, args map[string]any)

	// ToolFinished signals that a tool finished, successfully or not.
	// result is the raw string handed back to the model (or an error
	// payload).
	ToolFinished(name string, result string)
}

// EmitterFromContext retrieves the Emitter from ctx. Returns nil when none
// is set; callers must treat a nil emitter as "emit nothing".
func EmitterFromContext(ctx context.Context) Emitter {
	emitter, _ := ctx.Value(emitterKey{}).(Emitter)
	return emitter
}

// ContextWithEmitter stores an Emitter in ctx for the duration of a turn.
func ContextWithEmitter(ctx context.Context, emitter Emitter) context.Context {
	return context.WithValue(ctx, emitterKey{}, emitter)
}
