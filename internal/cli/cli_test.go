package cli

import (
	"bytes"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shaiso/nodeflow/internal/api"
	"github.com/shaiso/nodeflow/internal/catalog"
	"github.com/shaiso/nodeflow/internal/compute"
	"github.com/shaiso/nodeflow/internal/executor"
	"github.com/shaiso/nodeflow/internal/orchestrator"
	"github.com/shaiso/nodeflow/internal/status"
)

const chatGraphYAML = `
flow_id: greeting
nodes:
  - id: in
    type_id: chat_input
  - id: ai
    type_id: ai-chat
edges:
  - source: in
    source_port: out__message_data
    target: ai
    target_port: in__message_data
`

// triggerOnlyYAML выполняет только trigger: AI-узел выключен.
const triggerOnlyYAML = `
nodes:
  - id: in
    type_id: chat_input
  - id: ai
    type_id: ai-chat
    disabled: true
edges:
  - source: in
    target: ai
`

func writeGraph(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "flow.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

// newServer поднимает настоящий API с локальным сервисом вычислений.
func newServer(t *testing.T) (*httptest.Server, *status.Store) {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := compute.NewLocal(compute.LocalConfig{Logger: logger})
	store := status.NewStore()
	types := catalog.Default()

	orch := orchestrator.New(orchestrator.Config{
		Registry: executor.DefaultRegistry(svc, logger),
		Store:    store,
		Types:    types,
		Logger:   logger,
	})

	h := api.NewHandler(api.Config{
		Runner:   orch,
		Catalog:  types,
		Store:    store,
		Gatherer: prometheus.NewRegistry(),
		Logger:   logger,
	})

	srv := httptest.NewServer(h.Routes())
	t.Cleanup(srv.Close)
	return srv, store
}

// execute выполняет команду с аргументами.
func execute(t *testing.T, cmd *cobra.Command, args ...string) error {
	t.Helper()
	cmd.SetArgs(args)
	cmd.SetOut(io.Discard)
	cmd.SetErr(io.Discard)
	cmd.SilenceUsage = true
	cmd.SilenceErrors = true
	return cmd.Execute()
}

// --- Client Tests ---

func TestClient_CreateRun(t *testing.T) {
	srv, store := newServer(t)
	client := NewClient(srv.URL)

	run, err := client.CreateRun("f1", CreateRunRequest{
		TriggerInputs: map[string]any{"input_text": "hello there"},
		Graph: map[string]any{
			"nodes": []map[string]any{
				{"id": "in", "type_id": "chat_input"},
				{"id": "ai", "type_id": "ai-chat", "disabled": true},
			},
			"edges": []map[string]any{{"id": "e1", "source_node_id": "in", "target_node_id": "ai"}},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, "SUCCESS", run.Status)
	require.Contains(t, run.Results, "in")
	assert.True(t, run.Results["in"].Success)
	assert.Contains(t, run.Results["in"].Outputs, "message_data")
	assert.Equal(t, "SUCCESS", string(store.GetState("in").Status))
}

func TestClient_APIError(t *testing.T) {
	srv, _ := newServer(t)
	client := NewClient(srv.URL)

	_, err := client.CreateRun("f1", CreateRunRequest{
		Graph: map[string]any{
			"nodes": []map[string]any{{"id": "ai", "type_id": "ai-chat"}},
		},
	})

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusUnprocessableEntity, apiErr.StatusCode)
	assert.Equal(t, "INVALID_CONFIGURATION", apiErr.Code)
	assert.Contains(t, apiErr.Message, "No trigger node found")
}

func TestClient_NodeTypes(t *testing.T) {
	srv, _ := newServer(t)
	client := NewClient(srv.URL)

	types, err := client.ListNodeTypes("trigger")
	require.NoError(t, err)
	require.NotEmpty(t, types)
	for _, nt := range types {
		assert.Equal(t, "trigger", nt.Category)
	}

	nt, err := client.GetNodeType(catalog.TypeAIChat)
	require.NoError(t, err)
	assert.Equal(t, catalog.TypeAIChat, nt.ID)
	require.NotEmpty(t, nt.Ports.Outputs)
	assert.Equal(t, "ai_response", nt.Ports.Outputs[0].Name)
}

func TestClient_NodeStatus(t *testing.T) {
	srv, store := newServer(t)
	require.NoError(t, store.SetError("n1", "boom"))

	s, err := NewClient(srv.URL).NodeStatus("n1")
	require.NoError(t, err)
	assert.Equal(t, "ERROR", s.Status)
	assert.Equal(t, "boom", s.Error)
}

func TestClient_NonJSONError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "bad gateway", http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL).FlowStatus("f")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "HTTP 502")
}

// --- Command Tests ---

func TestRunStartCmd(t *testing.T) {
	srv, _ := newServer(t)
	var stdout, stderr bytes.Buffer

	cmd := NewRunCmd(
		func() *Client { return NewClient(srv.URL) },
		func() *Output { return NewOutputTo(false, &stdout, &stderr) },
	)

	path := writeGraph(t, triggerOnlyYAML)
	err := execute(t, cmd, "start", "f1", "--graph", path, "--input", "input_text=hi")
	require.NoError(t, err)

	assert.Contains(t, stderr.String(), "Run finished: SUCCESS")
	assert.Contains(t, stdout.String(), "NODE_ID")
	assert.Contains(t, stdout.String(), "message_data")
}

func TestGraphOrderCmd(t *testing.T) {
	var stdout bytes.Buffer
	cmd := NewGraphCmd(func() *Output { return NewOutputTo(true, &stdout, io.Discard) })

	err := execute(t, cmd, "order", writeGraph(t, chatGraphYAML))
	require.NoError(t, err)

	var resp struct {
		FlowID  string   `json:"flow_id"`
		Trigger string   `json:"trigger_node_id"`
		Order   []string `json:"order"`
	}
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &resp))
	assert.Equal(t, "greeting", resp.FlowID)
	assert.Equal(t, "in", resp.Trigger)
	assert.Equal(t, []string{"in", "ai"}, resp.Order)
}

func TestGraphOrderCmd_Table(t *testing.T) {
	var stdout bytes.Buffer
	cmd := NewGraphCmd(func() *Output { return NewOutputTo(false, &stdout, io.Discard) })

	require.NoError(t, execute(t, cmd, "order", writeGraph(t, chatGraphYAML)))
	assert.Contains(t, stdout.String(), "chat_input")
	assert.Contains(t, stdout.String(), "ai-chat")
}

func TestGraphOrderCmd_InvalidGraph(t *testing.T) {
	cmd := NewGraphCmd(func() *Output { return NewOutputTo(false, io.Discard, io.Discard) })

	err := execute(t, cmd, "order", writeGraph(t, "nodes:\n  - id: a\n    type_id: nope\n"))
	assert.Error(t, err)
}

func TestConnectionValidateCmd(t *testing.T) {
	var stdout bytes.Buffer
	outputFn := func() *Output { return NewOutputTo(true, &stdout, io.Discard) }

	err := execute(t, NewConnectionCmd(outputFn), "validate", "chat_input:message_data", "ai-chat")
	require.NoError(t, err)
	assert.Contains(t, stdout.String(), `"is_valid": true`)

	stdout.Reset()
	err = execute(t, NewConnectionCmd(outputFn), "validate", "ai-chat", "chat_input")
	assert.ErrorIs(t, err, ErrInvalidConnection)
	assert.Contains(t, stdout.String(), `"is_valid": false`)
}

// --- Helper Tests ---

func TestParseInputs(t *testing.T) {
	inputs, err := parseInputs([]string{"input_text=hello=world", "session=1"})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"input_text": "hello=world", "session": "1"}, inputs)

	_, err = parseInputs([]string{"novalue"})
	assert.Error(t, err)

	_, err = parseInputs([]string{"=x"})
	assert.Error(t, err)
}

func TestSplitTypePort(t *testing.T) {
	typeID, port := splitTypePort("ai-chat:ai_response")
	assert.Equal(t, "ai-chat", typeID)
	assert.Equal(t, "ai_response", port)

	typeID, port = splitTypePort("chat_input")
	assert.Equal(t, "chat_input", typeID)
	assert.Empty(t, port)
}

func TestOutput_Table(t *testing.T) {
	var buf bytes.Buffer
	out := NewOutputTo(false, &buf, io.Discard)

	out.Print([]string{"ID", "NAME"}, [][]string{{"1", "first"}}, nil)

	assert.Contains(t, buf.String(), "ID")
	assert.Contains(t, buf.String(), "--")
	assert.Contains(t, buf.String(), "first")
}

func TestOutput_Details(t *testing.T) {
	var buf bytes.Buffer
	out := NewOutputTo(false, &buf, io.Discard)

	out.Details([][2]string{{"STATUS", "ERROR"}, {"MESSAGE", ""}, {"ERROR", "boom"}}, nil)

	assert.Contains(t, buf.String(), "STATUS:")
	assert.Contains(t, buf.String(), "boom")
	assert.NotContains(t, buf.String(), "MESSAGE")
}

func TestOutput_EmptyAndJSONMode(t *testing.T) {
	var stdout, stderr bytes.Buffer

	NewOutputTo(false, &stdout, &stderr).Print([]string{"ID"}, nil, nil)
	assert.Empty(t, stdout.String())
	assert.Contains(t, stderr.String(), "(no results)")

	stderr.Reset()
	out := NewOutputTo(true, &stdout, &stderr)
	out.Success("Run finished: SUCCESS")
	out.Print(nil, nil, map[string]int{"n": 1})
	assert.Empty(t, stderr.String())
	assert.JSONEq(t, `{"n": 1}`, stdout.String())
}

func TestCell(t *testing.T) {
	assert.Equal(t, "multi line text", cell("multi\nline   text"))

	long := cell(strings.Repeat("я", 100))
	assert.Equal(t, maxCellWidth, utf8.RuneCountInString(long))
	assert.True(t, strings.HasSuffix(long, "..."))
}
