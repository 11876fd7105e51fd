// Package tools provides the built-in tools exposed to the model and the
// emitter plumbing that surfaces tool lifecycle events to the transport
// layer.
//
// Tools never return an error to the model for expected failures (missing
// file, unknown project); they return a JSON payload with an "error" field
// so the model can recover within the same turn. Handler errors are
// reserved for programming mistakes.
//
// Lifecycle events flow through an Emitter carried in the request context:
// the engine binds an emitter per turn, WithEvents-wrapped handlers report
// start and finish, and code paths without an emitter degrade to silent
// execution.
package tools
