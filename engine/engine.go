package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/threadpilot/threadpilot/contextkeys"
	"github.com/threadpilot/threadpilot/core"
	"github.com/threadpilot/threadpilot/logging"
	"github.com/threadpilot/threadpilot/session"
)

// Config defines tuning parameters for the engine's operational behavior.
type Config struct {
	// PollInterval is the delay between run status polls.
	PollInterval time.Duration

	// PollTimeout bounds the wall-clock duration of the poll loop for one
	// turn. When it elapses the turn fails with a Timeout error. Zero means
	// DefaultConfig.PollTimeout.
	PollTimeout time.Duration

	// MaxConcurrentTurns limits the number of turns that can execute
	// simultaneously across all sessions. Each in-flight turn occupies one
	// worker for the full duration of its poll loop. Set to 0 for unlimited
	// (not recommended).
	MaxConcurrentTurns int

	// ReadRetryAttempts is the total number of attempts (including the
	// first) for read operations that fail with a transport error. Write
	// operations are never retried.
	ReadRetryAttempts int

	// ReadRetryBackoff is the initial delay before a read retry; it doubles
	// after each failed attempt.
	ReadRetryBackoff time.Duration
}

// DefaultConfig provides production-ready default configuration values.
var DefaultConfig = Config{
	PollInterval:       500 * time.Millisecond,
	PollTimeout:        2 * time.Minute,
	MaxConcurrentTurns: 10,
	ReadRetryAttempts:  3,
	ReadRetryBackoff:   250 * time.Millisecond,
}

// Options configures an Engine instance using the functional options pattern.
type Options struct {
	// Config contains operational parameters. Defaults to DefaultConfig.
	Config Config

	// Gateway is the remote conversation gateway. Required; an engine
	// without one rejects every turn with a Config error.
	Gateway core.Gateway

	// SessionStore maps chat sessions to remote threads. Defaults to the
	// in-memory implementation.
	SessionStore core.SessionStore

	// ContextTracker records injected context keys per session. Defaults to
	// the in-memory implementation.
	ContextTracker core.ContextTracker

	// AssistantID is the remote assistant identity used for runs. May also
	// be supplied later via SetAssistantID.
	AssistantID string

	// Logger provides structured logging. Defaults to NoOp logger if nil.
	Logger logging.Logger

	// Callbacks receive turn lifecycle notifications. Optional.
	Callbacks *CallbackManager
}

// Engine orchestrates turns against the remote conversation gateway.
//
// All public methods are safe for concurrent use. Turns for distinct
// sessions execute concurrently (bounded by MaxConcurrentTurns); turns for
// the same session are serialized so their messages land on the remote
// thread in submission order.
type Engine struct {
	gateway   core.Gateway
	sessions  core.SessionStore
	contexts  core.ContextTracker
	logger    logging.Logger
	callbacks *CallbackManager
	config    Config

	assistantMu sync.RWMutex
	assistantID string

	// sem bounds concurrent turns; nil means unlimited.
	sem chan struct{}

	sessionLocksMu sync.Mutex
	sessionLocks   map[int64]*sync.Mutex

	activeTurnsMu sync.Mutex
	activeTurns   map[string]context.CancelFunc
}

// New creates a new Engine with sensible defaults and optional configuration.
func New(optFns ...func(o *Options)) *Engine {
	opts := Options{
		Config:         DefaultConfig,
		SessionStore:   session.NewInMemoryStore(),
		ContextTracker: contextkeys.NewInMemoryTracker(),
		Logger:         logging.NoOpLogger{},
		Callbacks:      NewCallbackManager(),
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Config.PollInterval <= 0 {
		opts.Config.PollInterval = DefaultConfig.PollInterval
	}
	if opts.Config.PollTimeout <= 0 {
		opts.Config.PollTimeout = DefaultConfig.PollTimeout
	}
	if opts.Config.ReadRetryAttempts <= 0 {
		opts.Config.ReadRetryAttempts = 1
	}
	if opts.Callbacks == nil {
		opts.Callbacks = NewCallbackManager()
	}

	var sem chan struct{}
	if opts.Config.MaxConcurrentTurns > 0 {
		sem = make(chan struct{}, opts.Config.MaxConcurrentTurns)
	}

	return &Engine{
		gateway:      opts.Gateway,
		sessions:     opts.SessionStore,
		contexts:     opts.ContextTracker,
		logger:       opts.Logger,
		callbacks:    opts.Callbacks,
		config:       opts.Config,
		assistantID:  opts.AssistantID,
		sem:          sem,
		sessionLocks: make(map[int64]*sync.Mutex),
		activeTurns:  make(map[string]context.CancelFunc),
	}
}

// SetAssistantID replaces the assistant identity used for subsequent runs.
func (e *Engine) SetAssistantID(id string) {
	e.assistantMu.Lock()
	defer e.assistantMu.Unlock()
	e.assistantID = id
}

// AssistantID returns the currently configured assistant identity.
func (e *Engine) AssistantID() string {
	e.assistantMu.RLock()
	defer e.assistantMu.RUnlock()
	return e.assistantID
}

// SubmitTurn executes one full turn synchronously: it resolves the session's
// thread, appends the (possibly context-prefixed) user message, creates a
// run, polls it to a terminal status and returns the assistant's reply text.
//
// It returns core.ErrNoReply when the terminal run produced no assistant
// message, a Timeout-kind error when the poll loop exceeds PollTimeout, and
// any gateway error unmodified. On failure no partial state is rolled back:
// the thread mapping and an already appended user message remain, so a
// retried turn continues the conversation rather than redoing it.
func (e *Engine) SubmitTurn(ctx context.Context, sessionID int64, text string, payload *core.ContextPayload) (string, error) {
	if e.gateway == nil {
		return "", core.NewError(core.ErrConfig, "submit_turn", "gateway not configured")
	}
	assistantID := e.AssistantID()
	if assistantID == "" {
		return "", core.NewError(core.ErrConfig, "submit_turn", "assistant id not configured")
	}

	if e.sem != nil {
		select {
		case e.sem <- struct{}{}:
			defer func() { <-e.sem }()
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}

	// Serialize turns for the same session so concurrent submissions cannot
	// interleave their append calls on the remote thread.
	lock := e.sessionLock(sessionID)
	lock.Lock()
	defer lock.Unlock()

	e.callbacks.beforeTurn(ctx, &TurnInfo{SessionID: sessionID, Text: text})
	reply, err := e.runTurn(ctx, sessionID, assistantID, text, payload)
	e.callbacks.afterTurn(ctx, &TurnInfo{SessionID: sessionID, Text: text, Reply: reply, Err: err})
	return reply, err
}

// Submit starts an asynchronous turn. It returns a stable turn id usable with
// Cancel, a reply channel carrying at most one reply, and an error channel
// carrying at most one terminal error; exactly one of the two channels
// receives a value before both are closed.
func (e *Engine) Submit(ctx context.Context, sessionID int64, text string, payload *core.ContextPayload) (string, <-chan string, <-chan error) {
	turnID := uuid.NewString()
	replyCh := make(chan string, 1)
	errorsCh := make(chan error, 1)

	turnCtx, cancel := context.WithCancel(ctx)
	e.activeTurnsMu.Lock()
	e.activeTurns[turnID] = cancel
	e.activeTurnsMu.Unlock()

	go func() {
		reply, err := e.SubmitTurn(turnCtx, sessionID, text, payload)

		// Untrack before delivering so a caller that received the result
		// never observes the turn as still cancellable.
		e.activeTurnsMu.Lock()
		delete(e.activeTurns, turnID)
		e.activeTurnsMu.Unlock()
		cancel()

		if err != nil {
			errorsCh <- err
		} else {
			replyCh <- reply
		}
		close(replyCh)
		close(errorsCh)
	}()

	return turnID, replyCh, errorsCh
}

// Cancel requests cooperative termination of an in-flight turn. The turn's
// poll loop is abandoned and its worker released; the remote run keeps
// whatever state it reached. Cancelling an unknown or already finished turn
// returns an error describing the condition.
func (e *Engine) Cancel(turnID string) error {
	e.activeTurnsMu.Lock()
	cancel, ok := e.activeTurns[turnID]
	e.activeTurnsMu.Unlock()
	if !ok {
		return fmt.Errorf("turn %s not found or already finished", turnID)
	}
	cancel()
	return nil
}

// ClearSession drops the session's thread mapping and its injected context
// keys. The remote thread is not deleted; the next turn for the same session
// id starts a brand-new conversation.
func (e *Engine) ClearSession(ctx context.Context, sessionID int64) error {
	if err := e.sessions.Clear(ctx, sessionID); err != nil {
		return err
	}
	e.contexts.Reset(sessionID)
	e.logger.Debug("Session cleared", "session_id", sessionID)
	return nil
}

// runTurn drives the per-turn state machine. The caller holds the session
// lock.
func (e *Engine) runTurn(ctx context.Context, sessionID int64, assistantID, text string, payload *core.ContextPayload) (string, error) {
	threadID, err := e.sessions.GetOrCreateThread(ctx, sessionID, e.gateway.CreateThread)
	if err != nil {
		return "", err
	}

	outgoing := e.composeOutgoing(sessionID, text, payload)

	// Append before run: the remote side rejects runs on empty threads.
	if _, err := e.gateway.AppendMessage(ctx, threadID, core.RoleUser, outgoing); err != nil {
		return "", err
	}

	runID, err := e.gateway.CreateRun(ctx, threadID, assistantID)
	if err != nil {
		return "", err
	}

	status, err := e.awaitRun(ctx, threadID, runID)
	if err != nil {
		return "", err
	}
	e.logger.Debug("Run reached terminal status",
		"session_id", sessionID, "thread_id", threadID, "run_id", runID, "status", string(status))

	// Failed and cancelled runs are not special-cased: messages are fetched
	// for every terminal status and the no-reply sentinel covers runs that
	// produced nothing.
	return e.fetchReply(ctx, threadID, runID)
}

// composeOutgoing prepends the project context block when the payload's key
// has not yet been injected for this session.
func (e *Engine) composeOutgoing(sessionID int64, text string, payload *core.ContextPayload) string {
	if payload == nil || payload.Key == "" {
		return text
	}
	if !e.contexts.ShouldInject(sessionID, payload.Key) {
		return text
	}
	e.contexts.MarkInjected(sessionID, payload.Key)
	e.logger.Debug("Injecting project context", "session_id", sessionID, "context_key", payload.Key)
	return fmt.Sprintf("Project context:\n%s\n\nUser: %s", payload.Content, text)
}

// awaitRun polls the run on PollInterval until it reaches a terminal status,
// bounded by PollTimeout.
func (e *Engine) awaitRun(ctx context.Context, threadID, runID string) (core.RunStatus, error) {
	timeout := time.NewTimer(e.config.PollTimeout)
	defer timeout.Stop()
	ticker := time.NewTicker(e.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-timeout.C:
			return "", core.NewError(core.ErrTimeout, "await_run",
				fmt.Sprintf("run %s did not reach a terminal status within %s", runID, e.config.PollTimeout))
		case <-ticker.C:
			var status core.RunStatus
			err := e.withReadRetry(ctx, func() error {
				var err error
				status, err = e.gateway.GetRunStatus(ctx, threadID, runID)
				return err
			})
			if err != nil {
				return "", err
			}
			if status.Terminal() {
				return status, nil
			}
		}
	}
}

// fetchReply lists the run's messages newest first and returns the text of
// the first assistant message, or core.ErrNoReply when there is none.
func (e *Engine) fetchReply(ctx context.Context, threadID, runID string) (string, error) {
	var messages []core.Message
	err := e.withReadRetry(ctx, func() error {
		var err error
		messages, err = e.gateway.ListMessages(ctx, threadID, runID, core.OrderDesc)
		return err
	})
	if err != nil {
		return "", err
	}

	for _, m := range messages {
		if m.Role == core.RoleAssistant {
			return m.Text, nil
		}
	}
	return "", core.ErrNoReply
}

// withReadRetry retries fn on transport-kind failures with exponential
// backoff, up to ReadRetryAttempts total attempts. Only reads go through
// here; writes are not idempotent and must not be retried.
func (e *Engine) withReadRetry(ctx context.Context, fn func() error) error {
	backoff := e.config.ReadRetryBackoff
	var err error
	for attempt := 0; attempt < e.config.ReadRetryAttempts; attempt++ {
		if attempt > 0 {
			e.logger.Warn("Retrying gateway read after transport failure",
				"attempt", attempt+1, "backoff", backoff, "error", err)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= 2
		}
		if err = fn(); err == nil || !errors.Is(err, core.ErrTransport) {
			return err
		}
	}
	return err
}

// sessionLock returns the mutex serializing turns for sessionID, allocating
// it on first use. Locks are never removed; a session's lock is a few dozen
// bytes and chat ids are not unbounded in practice.
func (e *Engine) sessionLock(sessionID int64) *sync.Mutex {
	e.sessionLocksMu.Lock()
	defer e.sessionLocksMu.Unlock()
	lock, ok := e.sessionLocks[sessionID]
	if !ok {
		lock = &sync.Mutex{}
		e.sessionLocks[sessionID] = lock
	}
	return lock
}
