// Package threadpilot provides a high-level façade over the turn engine and
// service abstractions (gateway, session store, context tracker & logging)
// for driving a remote thread-based assistant from a chat frontend. Most
// applications interact with this package by:
//  1. Creating a Threadpilot via New() (optionally overriding the default
//     in-memory services or the gateway)
//  2. Calling Configure() with the API credential and assistant identity
//  3. Submitting turns synchronously (SubmitTurn) or asynchronously (Submit)
//
// The façade delegates orchestration to engine.Engine while keeping setup and
// usage ergonomics concise. All defaults are safe for local development and
// testing; multi-process deployments typically supply the Redis session store
// and a structured logger.
package threadpilot

import (
	"context"
	"net/http"

	"github.com/threadpilot/threadpilot/contextkeys"
	"github.com/threadpilot/threadpilot/core"
	"github.com/threadpilot/threadpilot/engine"
	"github.com/threadpilot/threadpilot/gateway/openai"
	"github.com/threadpilot/threadpilot/logging"
	"github.com/threadpilot/threadpilot/session"
)

// Options configures the Threadpilot instance.
type Options struct {
	// EngineConfig tunes polling, timeouts and concurrency.
	EngineConfig engine.Config

	// Gateway overrides the default OpenAI gateway. When set, Configure's
	// credential argument is ignored (the custom gateway owns its own
	// credentials).
	Gateway core.Gateway

	// BaseURL overrides the default gateway's endpoint (tests, proxies).
	// Ignored when Gateway is set.
	BaseURL string

	// HTTPClient overrides the default gateway's HTTP client. Ignored when
	// Gateway is set.
	HTTPClient *http.Client

	// Stores (default to in-memory implementations if not provided)
	SessionStore   core.SessionStore
	ContextTracker core.ContextTracker

	// Callbacks receive turn lifecycle notifications. Optional.
	Callbacks *engine.CallbackManager

	// Logger (defaults to NoOp logger if nil)
	Logger logging.Logger
}

// Threadpilot is the high-level façade aggregating the turn engine and its
// services.
type Threadpilot struct {
	opts    Options
	engine  *engine.Engine
	gateway core.Gateway

	// defaultGW is non-nil when the façade owns the OpenAI gateway and may
	// forward credentials to it.
	defaultGW *openai.Gateway
}

// New creates a new Threadpilot instance with optional overrides. Any unset
// service is initialized with an in-memory implementation.
func New(optFns ...func(o *Options)) *Threadpilot {
	opts := Options{
		EngineConfig:   engine.DefaultConfig,
		SessionStore:   session.NewInMemoryStore(),
		ContextTracker: contextkeys.NewInMemoryTracker(),
		Logger:         logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	gw := opts.Gateway
	var defaultGW *openai.Gateway
	if gw == nil {
		defaultGW = openai.New(func(o *openai.Options) {
			if opts.BaseURL != "" {
				o.BaseURL = opts.BaseURL
			}
			if opts.HTTPClient != nil {
				o.HTTPClient = opts.HTTPClient
			}
			o.Logger = opts.Logger
		})
		gw = defaultGW
	}

	eng := engine.New(func(o *engine.Options) {
		o.Config = opts.EngineConfig
		o.Gateway = gw
		o.SessionStore = opts.SessionStore
		o.ContextTracker = opts.ContextTracker
		o.Callbacks = opts.Callbacks
		o.Logger = opts.Logger
	})

	return &Threadpilot{opts: opts, engine: eng, gateway: gw, defaultGW: defaultGW}
}

// Configure sets the API credential and the assistant identity used for
// runs. It may be called again at any time to swap either one; in-flight
// turns keep the values they started with.
func (t *Threadpilot) Configure(credential, assistantID string) {
	if t.defaultGW != nil {
		t.defaultGW.SetAPIKey(credential)
	}
	t.engine.SetAssistantID(assistantID)
}

// SubmitTurn submits one user turn for the session and blocks until the
// assistant's reply is available or the turn fails. See engine.SubmitTurn
// for the full semantics.
func (t *Threadpilot) SubmitTurn(ctx context.Context, sessionID int64, text string, payload *core.ContextPayload) (string, error) {
	return t.engine.SubmitTurn(ctx, sessionID, text, payload)
}

// Submit starts an asynchronous turn, returning a turn id usable with Cancel
// plus result channels. Exactly one of the channels receives a value.
func (t *Threadpilot) Submit(ctx context.Context, sessionID int64, text string, payload *core.ContextPayload) (string, <-chan string, <-chan error) {
	return t.engine.Submit(ctx, sessionID, text, payload)
}

// Cancel aborts an in-flight turn started with Submit.
func (t *Threadpilot) Cancel(turnID string) error {
	return t.engine.Cancel(turnID)
}

// ClearSession forgets the session's remote thread and its injected context
// keys, so the next turn starts a fresh conversation.
func (t *Threadpilot) ClearSession(ctx context.Context, sessionID int64) error {
	return t.engine.ClearSession(ctx, sessionID)
}

// ListAssistants returns the assistant configurations available to the
// configured credential.
func (t *Threadpilot) ListAssistants(ctx context.Context) ([]core.Assistant, error) {
	return t.gateway.ListAssistants(ctx)
}
