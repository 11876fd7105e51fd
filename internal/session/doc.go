// Package session provides conversation history persistence with PostgreSQL.
//
// A session represents a conversation context containing ordered messages
// exchanged between user and model. The [Store] handles persistence while
// the engine handles conversation logic.
//
// # Transaction Safety
//
// [Store.AddMessages] uses SELECT ... FOR UPDATE to lock the session row,
// preventing race conditions on sequence numbers during concurrent writes.
// If any step fails, the entire transaction rolls back.
//
// # Concurrency
//
// Store is safe for concurrent use. All state lives in PostgreSQL; no
// shared Go-side state exists.
//
// # Local State
//
// [SaveCurrentSessionID] and [LoadCurrentSessionID] persist the CLI's
// active session to ~/.ferrite/current_session using an atomic write (temp
// file + rename) guarded by [github.com/gofrs/flock].
package session
