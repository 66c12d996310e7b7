package core

import "context"

// Gateway is the narrow interface to the remote conversation service. Each
// method is a single request/response exchange; the gateway holds no
// conversational state of its own.
//
// All operations are remote and billable, and none are idempotent: retrying
// AppendMessage creates a duplicate message, retrying CreateRun starts a
// second run. Callers must not blindly retry write operations. Read
// operations (GetRunStatus, ListMessages, ListAssistants) are safe to retry
// on transient transport failure.
type Gateway interface {
	// CreateThread creates an empty remote thread and returns its id.
	CreateThread(ctx context.Context) (string, error)

	// AppendMessage appends one message with the given role and text to the
	// thread and returns the message id. Returns a NotFound error when the
	// thread is unknown to the remote side.
	AppendMessage(ctx context.Context, threadID, role, text string) (string, error)

	// CreateRun starts processing of all messages on the thread using the
	// named assistant configuration. At least one message must already exist
	// on the thread; the remote side rejects runs against empty threads, and
	// callers are expected to always append before running.
	CreateRun(ctx context.Context, threadID, assistantID string) (string, error)

	// GetRunStatus returns the current status of a run.
	GetRunStatus(ctx context.Context, threadID, runID string) (RunStatus, error)

	// ListMessages lists the thread's messages in the requested order,
	// scoped to those produced by runID when runID is non-empty.
	ListMessages(ctx context.Context, threadID, runID string, order Order) ([]Message, error)

	// ListAssistants returns the assistant configurations available to the
	// configured credential, newest first.
	ListAssistants(ctx context.Context) ([]Assistant, error)
}
