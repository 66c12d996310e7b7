// Package engine implements the turn orchestration layer for Threadpilot.
//
// The Engine drives one full submit-and-await-reply cycle per turn against
// the remote conversation gateway:
//
//	resolve thread → compose outgoing text → append message → create run
//	→ poll run status → fetch assistant reply
//
// # Core responsibilities
//
//   - Session resolution: lazily mapping chat sessions to remote threads via
//     the session store, with at-most-one thread creation per session
//   - Context injection: prefixing the first turn that references a context
//     key with the full context block, exactly once per (session, key)
//   - Run supervision: polling on a fixed interval, bounded by a wall-clock
//     timeout, retrying transient transport failures on reads only
//   - Concurrency control: bounded concurrent turns, per-session turn
//     serialization, and caller-initiated cancellation of in-flight turns
//
// # Ordering invariant
//
// The user message is always appended before the run is created. The remote
// side rejects runs on empty threads, so append-before-run is a correctness
// requirement, not an optimization.
//
// # Error handling
//
// Gateway errors propagate unmodified to the caller. Write operations
// (append message, create run) are never retried because they are not
// idempotent; a retried turn continues the conversation rather than redoing
// it. Status polls and message listings may be retried on transient
// transport failure with bounded attempts.
package engine
