// Package api exposes the chat backend over HTTP: a synchronous chat
// endpoint, an SSE streaming endpoint, session management (seal, delete,
// list, messages), and maintenance hooks for the engine manager.
//
// Streaming uses plain SSE "data:" frames, one JSON wire event per frame.
// Client disconnects are detected through the request context; they set the
// turn's stop signal and never interrupt the engine directly.
package api
