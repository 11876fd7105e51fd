// Package turn orchestrates streaming conversation turns: per-session
// bookkeeping of the in-flight task, cooperative cancellation, and the seal
// protocol that forces an interrupted turn into a consistent completed
// state.
//
// The engine driving a turn is never interrupted mid-call on the normal
// paths. Stopping is cooperative: a stop signal is observed between engine
// events, after which the producer drains the engine silently and no
// further wire events reach the client. Hard cancellation of a task
// requires a seal token from the engine, which proves a synthetic
// completion was already appended to the session history — the one ordering
// that keeps the session usable afterwards.
//
// Sessions are fully independent; the registry's map is the only structure
// shared across handler goroutines and every per-key update happens under
// one mutex.
package turn
