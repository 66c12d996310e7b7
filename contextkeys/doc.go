// Package contextkeys houses the in-memory implementation of
// core.ContextTracker. Injection bookkeeping is scoped per session, so two
// chats referencing the same file each get the file's content injected into
// their own first referencing turn.
package contextkeys
