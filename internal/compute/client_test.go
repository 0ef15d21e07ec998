package compute

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- Client Tests ---

func TestClient_ExecuteNode(t *testing.T) {
	var gotBody map[string]any

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/v1/flows/flow-1/nodes/node-1/execute", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"success","outputs":{"response":"hi"},"metadata":{"model":"gpt-4"}}`))
	}))
	defer srv.Close()

	c := NewClient(ClientConfig{BaseURL: srv.URL + "/", Token: "secret"})

	resp, err := c.ExecuteNode(context.Background(), NodeRequest{
		FlowID:   "flow-1",
		NodeID:   "node-1",
		TypeID:   "ai-chat",
		Inputs:   map[string]any{"input_text": "hello"},
		Settings: map[string]any{"model": "gpt-4"},
	})
	require.NoError(t, err)

	assert.True(t, resp.OK())
	assert.Equal(t, "hi", resp.Outputs["response"])
	assert.Equal(t, "gpt-4", resp.Metadata["model"])

	assert.Equal(t, "ai-chat", gotBody["node_type"])
	assert.Equal(t, map[string]any{"input_text": "hello"}, gotBody["inputs"])
}

func TestClient_ExecuteNode_LogicalError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status":"error","outputs":{},"error":"boom"}`))
	}))
	defer srv.Close()

	resp, err := NewClient(ClientConfig{BaseURL: srv.URL}).ExecuteNode(context.Background(), NodeRequest{FlowID: "f", NodeID: "n"})
	require.NoError(t, err)
	assert.False(t, resp.OK())
	assert.Equal(t, "boom", resp.Error)
}

func TestClient_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "internal failure", http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := NewClient(ClientConfig{BaseURL: srv.URL}).ExecuteNode(context.Background(), NodeRequest{FlowID: "f", NodeID: "n"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRequest)

	var statusErr *HTTPStatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusInternalServerError, statusErr.StatusCode)
	assert.Contains(t, statusErr.Body, "internal failure")
}

func TestClient_ContextCancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewClient(ClientConfig{BaseURL: srv.URL}).ExecuteNode(ctx, NodeRequest{FlowID: "f", NodeID: "n"})
	assert.ErrorIs(t, err, ErrRequest)
}

func TestClient_ExecuteFlow(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/flows/flow-9/execute", r.URL.Path)

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, map[string]any{"user_input": "hey"}, body["trigger_inputs"])

		_, _ = w.Write([]byte(`{
			"status": "completed",
			"execution_results": {
				"in": {"status": "success", "outputs": {"message_data": {"input_text": "hey"}}},
				"ai": {"status": "error", "outputs": {}, "error": "quota"}
			}
		}`))
	}))
	defer srv.Close()

	resp, err := NewClient(ClientConfig{BaseURL: srv.URL}).ExecuteFlow(context.Background(), "flow-9",
		map[string]any{"user_input": "hey"})
	require.NoError(t, err)

	assert.Equal(t, "flow-9", resp.FlowID)
	require.Len(t, resp.ExecutionResults, 2)
	assert.True(t, resp.ExecutionResults["in"].OK())
	assert.False(t, resp.ExecutionResults["ai"].OK())
	assert.Equal(t, "quota", resp.ExecutionResults["ai"].Error)
}

func TestNodeResponse_OK(t *testing.T) {
	assert.True(t, (&NodeResponse{}).OK())
	assert.True(t, (&NodeResponse{Status: "completed"}).OK())
	assert.False(t, (&NodeResponse{Status: StatusError}).OK())
	assert.False(t, (&NodeResponse{Status: StatusSuccess, Error: "x"}).OK())
}
