package threadpilot

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/threadpilot/threadpilot/core"
	"github.com/threadpilot/threadpilot/engine"
)

// MockGateway for testing the façade wiring.
type MockGateway struct {
	mock.Mock
}

func (m *MockGateway) CreateThread(ctx context.Context) (string, error) {
	args := m.Called(ctx)
	return args.String(0), args.Error(1)
}

func (m *MockGateway) AppendMessage(ctx context.Context, threadID, role, text string) (string, error) {
	args := m.Called(ctx, threadID, role, text)
	return args.String(0), args.Error(1)
}

func (m *MockGateway) CreateRun(ctx context.Context, threadID, assistantID string) (string, error) {
	args := m.Called(ctx, threadID, assistantID)
	return args.String(0), args.Error(1)
}

func (m *MockGateway) GetRunStatus(ctx context.Context, threadID, runID string) (core.RunStatus, error) {
	args := m.Called(ctx, threadID, runID)
	return args.Get(0).(core.RunStatus), args.Error(1)
}

func (m *MockGateway) ListMessages(ctx context.Context, threadID, runID string, order core.Order) ([]core.Message, error) {
	args := m.Called(ctx, threadID, runID, order)
	return args.Get(0).([]core.Message), args.Error(1)
}

func (m *MockGateway) ListAssistants(ctx context.Context) ([]core.Assistant, error) {
	args := m.Called(ctx)
	return args.Get(0).([]core.Assistant), args.Error(1)
}

var _ core.Gateway = (*MockGateway)(nil)

func TestThreadpilot_SubmitTurnWithCustomGateway(t *testing.T) {
	gw := new(MockGateway)
	gw.On("CreateThread", mock.Anything).Return("thread_1", nil).Once()
	gw.On("AppendMessage", mock.Anything, "thread_1", core.RoleUser, "hi").Return("msg_1", nil).Once()
	gw.On("CreateRun", mock.Anything, "thread_1", "asst_1").Return("run_1", nil).Once()
	gw.On("GetRunStatus", mock.Anything, "thread_1", "run_1").Return(core.RunStatusCompleted, nil).Once()
	gw.On("ListMessages", mock.Anything, "thread_1", "run_1", core.OrderDesc).
		Return([]core.Message{{ID: "msg_2", Role: core.RoleAssistant, Text: "hello"}}, nil).Once()

	tp := New(func(o *Options) {
		o.Gateway = gw
		o.EngineConfig.PollInterval = time.Millisecond
	})
	tp.Configure("", "asst_1")

	reply, err := tp.SubmitTurn(context.Background(), 1, "hi", nil)
	require.NoError(t, err)
	assert.Equal(t, "hello", reply)
	gw.AssertExpectations(t)
}

func TestThreadpilot_ListAssistants(t *testing.T) {
	gw := new(MockGateway)
	gw.On("ListAssistants", mock.Anything).
		Return([]core.Assistant{{ID: "asst_1", Name: "Helper"}}, nil).Once()

	tp := New(func(o *Options) { o.Gateway = gw })

	assistants, err := tp.ListAssistants(context.Background())
	require.NoError(t, err)
	require.Len(t, assistants, 1)
	assert.Equal(t, "Helper", assistants[0].Name)
	gw.AssertExpectations(t)
}

// TestThreadpilot_EndToEnd exercises the default gateway against a stub of
// the remote API: thread creation, message append, run polling and reply
// extraction, driven entirely through the façade.
func TestThreadpilot_EndToEnd(t *testing.T) {
	polls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer sk-test" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error": {"message": "invalid api key"}}`))
			return
		}
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/threads":
			_ = json.NewEncoder(w).Encode(map[string]string{"id": "thread_1"})
		case r.Method == http.MethodPost && r.URL.Path == "/threads/thread_1/messages":
			_ = json.NewEncoder(w).Encode(map[string]string{"id": "msg_1"})
		case r.Method == http.MethodPost && r.URL.Path == "/threads/thread_1/runs":
			_ = json.NewEncoder(w).Encode(map[string]string{"id": "run_1"})
		case r.Method == http.MethodGet && r.URL.Path == "/threads/thread_1/runs/run_1":
			polls++
			status := "in_progress"
			if polls >= 2 {
				status = "completed"
			}
			_ = json.NewEncoder(w).Encode(map[string]string{"id": "run_1", "status": status})
		case r.Method == http.MethodGet && r.URL.Path == "/threads/thread_1/messages":
			_, _ = w.Write([]byte(`{
				"data": [{"id": "msg_2", "role": "assistant", "content": [{"type": "text", "text": {"value": "42"}}]}]
			}`))
		default:
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	tp := New(func(o *Options) {
		o.BaseURL = srv.URL
		o.EngineConfig.PollInterval = time.Millisecond
	})
	tp.Configure("sk-test", "asst_1")

	reply, err := tp.SubmitTurn(context.Background(), 99, "what is the answer?", nil)
	require.NoError(t, err)
	assert.Equal(t, "42", reply)
	assert.Equal(t, 2, polls)
}

func TestThreadpilot_CallbacksAreWired(t *testing.T) {
	gw := new(MockGateway)
	gw.On("CreateThread", mock.Anything).Return("thread_1", nil)
	gw.On("AppendMessage", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return("msg_1", nil)
	gw.On("CreateRun", mock.Anything, mock.Anything, mock.Anything).Return("run_1", nil)
	gw.On("GetRunStatus", mock.Anything, mock.Anything, mock.Anything).Return(core.RunStatusCompleted, nil)
	gw.On("ListMessages", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return([]core.Message{{Role: core.RoleAssistant, Text: "hello"}}, nil)

	cbs := engine.NewCallbackManager()
	var seen []string
	cbs.Register(engine.CallbackAfterTurn, func(_ context.Context, info *engine.TurnInfo) {
		seen = append(seen, info.Reply)
	})

	tp := New(func(o *Options) {
		o.Gateway = gw
		o.Callbacks = cbs
		o.EngineConfig.PollInterval = time.Millisecond
	})
	tp.Configure("", "asst_1")

	_, err := tp.SubmitTurn(context.Background(), 1, "hi", nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"hello"}, seen)
}

func TestThreadpilot_ContextPayloadFlowsThrough(t *testing.T) {
	gw := new(MockGateway)
	gw.On("CreateThread", mock.Anything).Return("thread_1", nil)
	gw.On("AppendMessage", mock.Anything, "thread_1", core.RoleUser, mock.MatchedBy(func(text string) bool {
		return strings.HasPrefix(text, "Project context:\n")
	})).Return("msg_1", nil).Once()
	gw.On("CreateRun", mock.Anything, mock.Anything, mock.Anything).Return("run_1", nil)
	gw.On("GetRunStatus", mock.Anything, mock.Anything, mock.Anything).Return(core.RunStatusCompleted, nil)
	gw.On("ListMessages", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return([]core.Message{{Role: core.RoleAssistant, Text: "ok"}}, nil)

	tp := New(func(o *Options) {
		o.Gateway = gw
		o.EngineConfig.PollInterval = time.Millisecond
	})
	tp.Configure("", "asst_1")

	_, err := tp.SubmitTurn(context.Background(), 1, "explain", &core.ContextPayload{Key: "a.go", Content: "package a"})
	require.NoError(t, err)
	gw.AssertExpectations(t)
}
