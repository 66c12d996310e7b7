package core

// Message roles as they appear on the wire. The engine only ever appends
// user messages and reads assistant messages; everything else belongs to the
// remote side.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Order selects the sort direction for message listings.
type Order string

const (
	// OrderAsc lists messages oldest first.
	OrderAsc Order = "asc"
	// OrderDesc lists messages newest first.
	OrderDesc Order = "desc"
)

// RunStatus is the remote processing state of a run. Any status outside the
// terminal set counts as "still running"; unknown non-terminal statuses are
// polled like any other.
type RunStatus string

const (
	// RunStatusQueued means the run is waiting to be picked up remotely.
	RunStatusQueued RunStatus = "queued"
	// RunStatusInProgress means the run is being processed.
	RunStatusInProgress RunStatus = "in_progress"
	// RunStatusCompleted is the successful terminal status.
	RunStatusCompleted RunStatus = "completed"
	// RunStatusFailed is the terminal status for remote processing failure.
	RunStatusFailed RunStatus = "failed"
	// RunStatusCancelled is the terminal status for a remotely cancelled run.
	RunStatusCancelled RunStatus = "cancelled"
)

// Terminal reports whether no further processing will occur for this status.
func (s RunStatus) Terminal() bool {
	switch s {
	case RunStatusCompleted, RunStatusFailed, RunStatusCancelled:
		return true
	default:
		return false
	}
}

// Message is a single turn of text in a thread.
type Message struct {
	ID   string `json:"id"`
	Role string `json:"role"`
	Text string `json:"text"`
}

// Assistant describes a remotely configured assistant identity.
type Assistant struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Description  string `json:"description"`
	Model        string `json:"model"`
	Instructions string `json:"instructions"`
}

// ContextPayload is an optional piece of project context attached to a turn.
// Content is injected into the outgoing message text the first time Key is
// seen for a session; later turns referencing the same key send the raw user
// text only, even if Content changed in the meantime.
type ContextPayload struct {
	// Key identifies the context piece, typically a file name.
	Key string
	// Content is the full context text, typically file contents.
	Content string
}
