// Package openai implements core.Gateway against the OpenAI Assistants v2
// wire protocol. Every exchange carries the bearer credential and the
// "OpenAI-Beta: assistants=v2" protocol version header; request and response
// bodies are plain JSON.
//
// The gateway holds no conversational state. The credential is the only
// mutable field and may be swapped at runtime via SetAPIKey.
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/threadpilot/threadpilot/core"
	"github.com/threadpilot/threadpilot/logging"
)

const (
	// DefaultBaseURL is the production API endpoint.
	DefaultBaseURL = "https://api.openai.com/v1"

	betaHeader = "assistants=v2"
)

// Options configure the OpenAI gateway.
type Options struct {
	// APIKey is the bearer credential. May also be supplied later via
	// SetAPIKey; every operation fails with a Config error until one is set.
	APIKey string
	// BaseURL overrides the API endpoint, mainly for tests and proxies.
	BaseURL string
	// HTTPClient overrides the underlying client. Defaults to a client with
	// a 30 second request timeout.
	HTTPClient *http.Client
	// Logger receives per-exchange debug logging. Defaults to NoOpLogger.
	Logger logging.Logger
}

// Gateway is the HTTP implementation of core.Gateway.
type Gateway struct {
	baseURL    string
	httpClient *http.Client
	logger     logging.Logger

	mu     sync.RWMutex
	apiKey string
}

// New creates a new OpenAI gateway.
func New(optFns ...func(o *Options)) *Gateway {
	opts := Options{
		BaseURL:    DefaultBaseURL,
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
		Logger:     logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Gateway{
		baseURL:    opts.BaseURL,
		httpClient: opts.HTTPClient,
		logger:     opts.Logger,
		apiKey:     opts.APIKey,
	}
}

// SetAPIKey replaces the bearer credential used for subsequent exchanges.
func (g *Gateway) SetAPIKey(key string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.apiKey = key
}

// CreateThread creates an empty remote thread and returns its id.
func (g *Gateway) CreateThread(ctx context.Context) (string, error) {
	var resp idResponse
	if err := g.do(ctx, http.MethodPost, "/threads", "create_thread", struct{}{}, &resp); err != nil {
		return "", err
	}
	if resp.ID == "" {
		return "", core.NewError(core.ErrProtocol, "create_thread", "response missing thread id")
	}
	return resp.ID, nil
}

// AppendMessage appends one message to the thread and returns the message id.
func (g *Gateway) AppendMessage(ctx context.Context, threadID, role, text string) (string, error) {
	body := map[string]string{"role": role, "content": text}
	var resp idResponse
	if err := g.do(ctx, http.MethodPost, "/threads/"+url.PathEscape(threadID)+"/messages", "append_message", body, &resp); err != nil {
		return "", err
	}
	if resp.ID == "" {
		return "", core.NewError(core.ErrProtocol, "append_message", "response missing message id")
	}
	return resp.ID, nil
}

// CreateRun starts processing of the thread's messages with the named
// assistant configuration.
func (g *Gateway) CreateRun(ctx context.Context, threadID, assistantID string) (string, error) {
	if assistantID == "" {
		return "", core.NewError(core.ErrConfig, "create_run", "assistant id not configured")
	}
	body := map[string]string{"assistant_id": assistantID}
	var resp idResponse
	if err := g.do(ctx, http.MethodPost, "/threads/"+url.PathEscape(threadID)+"/runs", "create_run", body, &resp); err != nil {
		return "", err
	}
	if resp.ID == "" {
		return "", core.NewError(core.ErrProtocol, "create_run", "response missing run id")
	}
	return resp.ID, nil
}

// GetRunStatus returns the current status of a run.
func (g *Gateway) GetRunStatus(ctx context.Context, threadID, runID string) (core.RunStatus, error) {
	path := "/threads/" + url.PathEscape(threadID) + "/runs/" + url.PathEscape(runID)
	var resp runResponse
	if err := g.do(ctx, http.MethodGet, path, "get_run_status", nil, &resp); err != nil {
		return "", err
	}
	if resp.Status == "" {
		return "", core.NewError(core.ErrProtocol, "get_run_status", "response missing run status")
	}
	return core.RunStatus(resp.Status), nil
}

// ListMessages lists the thread's messages in the requested order, scoped to
// runID when non-empty.
func (g *Gateway) ListMessages(ctx context.Context, threadID, runID string, order core.Order) ([]core.Message, error) {
	q := url.Values{}
	if order != "" {
		q.Set("order", string(order))
	}
	if runID != "" {
		q.Set("run_id", runID)
	}
	path := "/threads/" + url.PathEscape(threadID) + "/messages"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var resp listResponse[messagePayload]
	if err := g.do(ctx, http.MethodGet, path, "list_messages", nil, &resp); err != nil {
		return nil, err
	}

	messages := make([]core.Message, 0, len(resp.Data))
	for _, m := range resp.Data {
		messages = append(messages, core.Message{ID: m.ID, Role: m.Role, Text: m.text()})
	}
	return messages, nil
}

// ListAssistants returns the assistant configurations available to the
// credential, newest first.
func (g *Gateway) ListAssistants(ctx context.Context) ([]core.Assistant, error) {
	var resp listResponse[assistantPayload]
	if err := g.do(ctx, http.MethodGet, "/assistants?order=desc", "list_assistants", nil, &resp); err != nil {
		return nil, err
	}

	assistants := make([]core.Assistant, 0, len(resp.Data))
	for _, a := range resp.Data {
		assistants = append(assistants, core.Assistant{
			ID:           a.ID,
			Name:         a.Name,
			Description:  a.Description,
			Model:        a.Model,
			Instructions: a.Instructions,
		})
	}
	return assistants, nil
}

// do performs one authenticated exchange and decodes a 2xx response into out.
func (g *Gateway) do(ctx context.Context, method, path, op string, body, out any) error {
	g.mu.RLock()
	apiKey := g.apiKey
	g.mu.RUnlock()
	if apiKey == "" {
		return core.NewError(core.ErrConfig, op, "api key not configured")
	}

	var reqBody io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return core.WrapError(core.ErrProtocol, op, "encode request body", err)
		}
		reqBody = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, g.baseURL+path, reqBody)
	if err != nil {
		return core.WrapError(core.ErrTransport, op, "build request", err)
	}
	req.Header.Set("Authorization", "Bearer "+apiKey)
	req.Header.Set("OpenAI-Beta", betaHeader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := g.httpClient.Do(req)
	logging.LogGatewayCall(g.logger, op, time.Since(start), err)
	if err != nil {
		return core.WrapError(core.ErrTransport, op, "request failed", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return core.WrapError(core.ErrTransport, op, "read response body", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return g.statusError(op, resp.StatusCode, raw)
	}

	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			return core.WrapError(core.ErrProtocol, op, "decode response body", err)
		}
	}
	return nil
}

// statusError maps a non-2xx response onto the error taxonomy, surfacing the
// API's own message when the body carries one.
func (g *Gateway) statusError(op string, status int, raw []byte) error {
	message := fmt.Sprintf("unexpected status %d", status)
	var body errorResponse
	if err := json.Unmarshal(raw, &body); err == nil && body.Error.Message != "" {
		message = fmt.Sprintf("status %d: %s", status, body.Error.Message)
	}

	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		return core.NewError(core.ErrAuth, op, message)
	case http.StatusNotFound:
		return core.NewError(core.ErrNotFound, op, message)
	default:
		return core.NewError(core.ErrProtocol, op, message)
	}
}

type idResponse struct {
	ID string `json:"id"`
}

type runResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

type listResponse[T any] struct {
	Data []T `json:"data"`
}

type messagePayload struct {
	ID      string `json:"id"`
	Role    string `json:"role"`
	Content []struct {
		Type string `json:"type"`
		Text struct {
			Value string `json:"value"`
		} `json:"text"`
	} `json:"content"`
}

// text returns the first text block's value; assistant replies carry their
// text in content[0].text.value.
func (m messagePayload) text() string {
	for _, c := range m.Content {
		if c.Text.Value != "" {
			return c.Text.Value
		}
	}
	return ""
}

type assistantPayload struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Description  string `json:"description"`
	Model        string `json:"model"`
	Instructions string `json:"instructions"`
}

type errorResponse struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

var _ core.Gateway = (*Gateway)(nil)
