package engine

import "context"

// CallbackType defines the lifecycle points where callbacks execute.
//
// Callbacks hook into the engine's turn pipeline without modifying core
// logic. They are invoked synchronously from the turn worker, so
// implementations should be fast and must not panic; a slow callback delays
// the turn that triggered it.
type CallbackType string

const (
	// CallbackBeforeTurn is triggered after a turn acquired its session
	// lock, before any remote call. Use for instrumentation or auditing.
	CallbackBeforeTurn CallbackType = "before_turn"

	// CallbackAfterTurn is triggered after a turn finishes, whether it
	// produced a reply or failed. Use for metrics or logging.
	CallbackAfterTurn CallbackType = "after_turn"
)

// TurnInfo carries the details of the turn a callback fires for. Reply and
// Err are only populated for CallbackAfterTurn.
type TurnInfo struct {
	SessionID int64
	Text      string
	Reply     string
	Err       error
}

// Callback is a turn lifecycle hook.
type Callback func(ctx context.Context, info *TurnInfo)

// CallbackManager holds registered callbacks per lifecycle point and invokes
// them in registration order.
//
// Registration is not thread-safe; register all callbacks before submitting
// turns. Invocation is safe for concurrent use once registration is done.
type CallbackManager struct {
	callbacks map[CallbackType][]Callback
}

// NewCallbackManager creates an empty callback manager.
func NewCallbackManager() *CallbackManager {
	return &CallbackManager{callbacks: make(map[CallbackType][]Callback)}
}

// Register adds a callback for the given lifecycle point.
func (m *CallbackManager) Register(t CallbackType, cb Callback) {
	m.callbacks[t] = append(m.callbacks[t], cb)
}

func (m *CallbackManager) beforeTurn(ctx context.Context, info *TurnInfo) {
	for _, cb := range m.callbacks[CallbackBeforeTurn] {
		cb(ctx, info)
	}
}

func (m *CallbackManager) afterTurn(ctx context.Context, info *TurnInfo) {
	for _, cb := range m.callbacks[CallbackAfterTurn] {
		cb(ctx, info)
	}
}
