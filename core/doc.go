// Package core provides the foundational domain types and interfaces used by
// Threadpilot. It defines the core abstractions for:
//
//   - Gateway (the remote conversation protocol: threads, messages, runs)
//   - SessionStore (chat session → remote thread mapping)
//   - ContextTracker (one-shot project-context injection bookkeeping)
//   - The error taxonomy shared by the gateway and the engine
//
// The package intentionally keeps implementation concerns (HTTP transport,
// persistence, turn orchestration) out of scope, exposing small interfaces to
// enable custom backends and fakes in tests.
package core
