package a2a

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// rpcHandler decodes a JSONRPCRequest and writes back fn's response.
func rpcHandler(t *testing.T, fn func(req JSONRPCRequest) JSONRPCResponse) http.HandlerFunc {
	t.Helper()
	return func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var req JSONRPCRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, JSONRPCVersion, req.JSONRPC)

		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(fn(req)))
	}
}

func resultOf(t *testing.T, id any, v any) JSONRPCResponse {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	return JSONRPCResponse{JSONRPC: JSONRPCVersion, ID: id, Result: data}
}

func TestSendMessage_HappyPath(t *testing.T) {
	ts := httptest.NewServer(rpcHandler(t, func(req JSONRPCRequest) JSONRPCResponse {
		assert.Equal(t, MethodSendMessage, req.Method)

		var params SendMessageRequest
		require.NoError(t, json.Unmarshal(req.Params, &params))
		assert.True(t, params.Blocking)
		assert.Equal(t, "draft design", params.Message.Parts[0].Text)

		return resultOf(t, req.ID, Task{
			ID:     "task-1",
			Status: TaskStatus{State: TaskStateCompleted},
			Artifacts: []Artifact{{
				ArtifactID: "a1",
				Name:       "design",
				Parts:      []Part{TextPart("line one"), TextPart("line two")},
			}},
		})
	}))
	defer ts.Close()

	c := NewHTTPClient()
	task, err := c.SendMessage(context.Background(), ts.URL, SendMessageRequest{
		Message:  Message{MessageID: "m1", Role: RoleUser, Parts: []Part{TextPart("draft design")}},
		Blocking: true,
	})
	require.NoError(t, err)
	assert.Equal(t, "task-1", task.ID)
	assert.Equal(t, TaskStateCompleted, task.Status.State)
	require.Len(t, task.Artifacts, 1)
	assert.Equal(t, "line one\nline two", task.Artifacts[0].Text())
}

func TestSendMessage_RPCError(t *testing.T) {
	ts := httptest.NewServer(rpcHandler(t, func(req JSONRPCRequest) JSONRPCResponse {
		return JSONRPCResponse{
			JSONRPC: JSONRPCVersion,
			ID:      req.ID,
			Error:   &JSONRPCError{Code: ErrCodeInternal, Message: "agent crashed"},
		}
	}))
	defer ts.Close()

	_, err := NewHTTPClient().SendMessage(context.Background(), ts.URL, SendMessageRequest{})
	require.Error(t, err)

	var rpcErr *RPCError
	require.True(t, errors.As(err, &rpcErr))
	assert.Equal(t, ErrCodeInternal, rpcErr.Code)
	assert.Equal(t, MethodSendMessage, rpcErr.Method)
	assert.Contains(t, err.Error(), "agent crashed")
}

func TestGetTaskAndCancelTask_SendID(t *testing.T) {
	ts := httptest.NewServer(rpcHandler(t, func(req JSONRPCRequest) JSONRPCResponse {
		var params TaskIDRequest
		require.NoError(t, json.Unmarshal(req.Params, &params))
		assert.Equal(t, "task-9", params.ID)

		state := TaskStateWorking
		if req.Method == MethodCancelTask {
			state = TaskStateCanceled
		}
		return resultOf(t, req.ID, Task{ID: params.ID, Status: TaskStatus{State: state}})
	}))
	defer ts.Close()

	c := NewHTTPClient()
	task, err := c.GetTask(context.Background(), ts.URL, "task-9")
	require.NoError(t, err)
	assert.Equal(t, TaskStateWorking, task.Status.State)

	task, err = c.CancelTask(context.Background(), ts.URL, "task-9")
	require.NoError(t, err)
	assert.Equal(t, TaskStateCanceled, task.Status.State)
}

func TestDiscoverAgent(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, AgentCardPath, r.URL.Path)
		json.NewEncoder(w).Encode(AgentCard{Name: "drafter", Version: "1.0.0"})
	}))
	defer ts.Close()

	card, err := NewHTTPClient().DiscoverAgent(context.Background(), ts.URL+"/")
	require.NoError(t, err)
	assert.Equal(t, "drafter", card.Name)
}

func TestDiscoverAgent_Non200(t *testing.T) {
	ts := httptest.NewServer(http.NotFoundHandler())
	defer ts.Close()

	_, err := NewHTTPClient().DiscoverAgent(context.Background(), ts.URL)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
}

func TestCall_Non200IsNotRPCError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad gateway", http.StatusBadGateway)
	}))
	defer ts.Close()

	_, err := NewHTTPClient().GetTask(context.Background(), ts.URL, "x")
	require.Error(t, err)
	var rpcErr *RPCError
	assert.False(t, errors.As(err, &rpcErr))
	assert.Contains(t, err.Error(), "502")
}

func TestCall_ContextDeadline(t *testing.T) {
	release := make(chan struct{})
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer ts.Close()
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := NewHTTPClient().SendMessage(ctx, ts.URL, SendMessageRequest{})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestWithTimeout_Option(t *testing.T) {
	c := NewHTTPClient(WithTimeout(3 * time.Second))
	assert.Equal(t, 3*time.Second, c.http.Timeout)

	hc := &http.Client{}
	c = NewHTTPClient(WithHTTPClient(hc))
	assert.Same(t, hc, c.http)
}
