package openai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/threadpilot/threadpilot/core"
)

func newTestGateway(t *testing.T, handler http.HandlerFunc) *Gateway {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New(func(o *Options) {
		o.APIKey = "sk-test"
		o.BaseURL = srv.URL
	})
}

func TestGateway_RequestHeaders(t *testing.T) {
	var gotAuth, gotBeta, gotContentType string
	gw := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotBeta = r.Header.Get("OpenAI-Beta")
		gotContentType = r.Header.Get("Content-Type")
		_ = json.NewEncoder(w).Encode(map[string]string{"id": "thread_abc"})
	})

	id, err := gw.CreateThread(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "thread_abc", id)
	assert.Equal(t, "Bearer sk-test", gotAuth)
	assert.Equal(t, "assistants=v2", gotBeta)
	assert.Equal(t, "application/json", gotContentType)
}

func TestGateway_MissingAPIKeyFailsFast(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer srv.Close()

	gw := New(func(o *Options) { o.BaseURL = srv.URL })
	_, err := gw.CreateThread(context.Background())
	assert.True(t, errors.Is(err, core.ErrConfig))
	assert.False(t, called, "no remote call may happen without a credential")
}

func TestGateway_AppendMessageBody(t *testing.T) {
	var gotPath string
	var gotBody map[string]string
	gw := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		_ = json.NewEncoder(w).Encode(map[string]string{"id": "msg_1"})
	})

	id, err := gw.AppendMessage(context.Background(), "thread_abc", core.RoleUser, "hello")
	require.NoError(t, err)
	assert.Equal(t, "msg_1", id)
	assert.Equal(t, "/threads/thread_abc/messages", gotPath)
	assert.Equal(t, map[string]string{"role": "user", "content": "hello"}, gotBody)
}

func TestGateway_CreateRunRequiresAssistantID(t *testing.T) {
	gw := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected")
	})

	_, err := gw.CreateRun(context.Background(), "thread_abc", "")
	assert.True(t, errors.Is(err, core.ErrConfig))
}

func TestGateway_GetRunStatus(t *testing.T) {
	gw := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/threads/thread_abc/runs/run_1", r.URL.Path)
		_ = json.NewEncoder(w).Encode(map[string]string{"id": "run_1", "status": "in_progress"})
	})

	status, err := gw.GetRunStatus(context.Background(), "thread_abc", "run_1")
	require.NoError(t, err)
	assert.Equal(t, core.RunStatusInProgress, status)
	assert.False(t, status.Terminal())
}

func TestGateway_ListMessages(t *testing.T) {
	var gotQuery string
	gw := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		_, _ = w.Write([]byte(`{
			"data": [
				{"id": "msg_2", "role": "assistant", "content": [{"type": "text", "text": {"value": "the reply"}}]},
				{"id": "msg_1", "role": "user", "content": [{"type": "text", "text": {"value": "the question"}}]}
			]
		}`))
	})

	msgs, err := gw.ListMessages(context.Background(), "thread_abc", "run_1", core.OrderDesc)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, core.RoleAssistant, msgs[0].Role)
	assert.Equal(t, "the reply", msgs[0].Text)
	assert.Contains(t, gotQuery, "order=desc")
	assert.Contains(t, gotQuery, "run_id=run_1")
}

func TestGateway_ListAssistants(t *testing.T) {
	gw := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/assistants", r.URL.Path)
		assert.Equal(t, "order=desc", r.URL.RawQuery)
		_, _ = w.Write([]byte(`{"data": [{"id": "asst_1", "name": "Helper", "model": "gpt-4o"}]}`))
	})

	assistants, err := gw.ListAssistants(context.Background())
	require.NoError(t, err)
	require.Len(t, assistants, 1)
	assert.Equal(t, "asst_1", assistants[0].ID)
	assert.Equal(t, "Helper", assistants[0].Name)
}

func TestGateway_StatusMapping(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		kind   error
	}{
		{"unauthorized", http.StatusUnauthorized, `{"error": {"message": "bad key"}}`, core.ErrAuth},
		{"forbidden", http.StatusForbidden, `{}`, core.ErrAuth},
		{"not found", http.StatusNotFound, `{"error": {"message": "no thread"}}`, core.ErrNotFound},
		{"server error", http.StatusInternalServerError, `{}`, core.ErrProtocol},
		{"bad request", http.StatusBadRequest, `{"error": {"message": "thread has no messages"}}`, core.ErrProtocol},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gw := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})
			_, err := gw.CreateThread(context.Background())
			assert.True(t, errors.Is(err, tt.kind), "got %v", err)
		})
	}
}

func TestGateway_MalformedResponse(t *testing.T) {
	gw := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("not json"))
	})
	_, err := gw.CreateThread(context.Background())
	assert.True(t, errors.Is(err, core.ErrProtocol))
}

func TestGateway_MissingIDIsProtocolError(t *testing.T) {
	gw := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"object": "thread"}`))
	})
	_, err := gw.CreateThread(context.Background())
	assert.True(t, errors.Is(err, core.ErrProtocol))
}

func TestGateway_TransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // connection refused from here on

	gw := New(func(o *Options) {
		o.APIKey = "sk-test"
		o.BaseURL = srv.URL
	})
	_, err := gw.CreateThread(context.Background())
	assert.True(t, errors.Is(err, core.ErrTransport))
}

func TestGateway_SetAPIKey(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		_ = json.NewEncoder(w).Encode(map[string]string{"id": "thread_abc"})
	}))
	defer srv.Close()

	gw := New(func(o *Options) { o.BaseURL = srv.URL })
	gw.SetAPIKey("sk-later")

	_, err := gw.CreateThread(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Bearer sk-later", gotAuth)
}
