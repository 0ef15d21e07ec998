package repo

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shaiso/nodeflow/internal/domain"
	"github.com/shaiso/nodeflow/internal/status"
)

func strPtr(s string) *string { return &s }

// --- assembleGraph Tests ---

func TestAssembleGraph(t *testing.T) {
	nodes := []nodeRow{
		{ID: "in", TypeID: "chat_input", Label: strPtr("Chat")},
		{ID: "ai", TypeID: "ai-chat", Settings: []byte(`{"model":"gpt-4"}`),
			Data: []byte(`{"last_execution":{"status":"SUCCESS","outputs":{"ai_response":"hi"}}}`)},
		{ID: "off", TypeID: "telegram_message", Disabled: true},
	}
	conns := []connectionRow{
		{ID: "c1", SourceNodeID: "in", SourcePortID: strPtr("out__message_data"), TargetNodeID: "ai", TargetPortID: strPtr("in__input_text")},
		{ID: "c2", SourceNodeID: "ai", TargetNodeID: "off"},
	}

	g, err := assembleGraph("7", nodes, conns)
	require.NoError(t, err)

	assert.Equal(t, "7", g.FlowID)
	require.Len(t, g.Nodes, 2)
	assert.Equal(t, "Chat", g.Nodes[0].Label)
	assert.Nil(t, g.Nodes[0].Settings)
	assert.Equal(t, "gpt-4", g.Nodes[1].Settings["model"])
	require.NotNil(t, g.Nodes[1].LastExecution)
	assert.Equal(t, domain.StatusSuccess, g.Nodes[1].LastExecution.Status)

	require.Len(t, g.Edges, 1)
	assert.Equal(t, "c1", g.Edges[0].ID)
	assert.Equal(t, "in__input_text", g.Edges[0].TargetPortID)
}

func TestAssembleGraph_NullJSON(t *testing.T) {
	g, err := assembleGraph("1", []nodeRow{{ID: "a", TypeID: "chat_input", Settings: []byte("null"), Data: []byte(" null ")}}, nil)
	require.NoError(t, err)
	require.Len(t, g.Nodes, 1)
	assert.Nil(t, g.Nodes[0].Settings)
	assert.Nil(t, g.Nodes[0].LastExecution)
}

func TestAssembleGraph_BadSettings(t *testing.T) {
	_, err := assembleGraph("1", []nodeRow{{ID: "a", TypeID: "chat_input", Settings: []byte("{")}}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "node a")
}

// --- ExecutionRecorder Tests ---

type fakeSaver struct {
	mu    sync.Mutex
	saved map[string]domain.ExecutionRecord
	err   error
	calls int
}

func (f *fakeSaver) SaveExecution(_ context.Context, nodeID string, rec domain.ExecutionRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return f.err
	}
	if f.saved == nil {
		f.saved = make(map[string]domain.ExecutionRecord)
	}
	f.saved[nodeID] = rec
	return nil
}

func (f *fakeSaver) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *fakeSaver) get(nodeID string) (domain.ExecutionRecord, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.saved[nodeID]
	return rec, ok
}

func startRecorder(t *testing.T, saver *fakeSaver, logger *slog.Logger) *status.Store {
	t.Helper()

	store := status.NewStore()
	rec := NewExecutionRecorder(saver, logger)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = rec.Run(ctx, store)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	// Дожидаемся подписки: события до неё не сохраняются.
	probes := 0
	require.Eventually(t, func() bool {
		probes++
		id := fmt.Sprintf("probe-%d", probes)
		_ = store.SetError(id, "probe")
		return saver.callCount() > 0
	}, time.Second, 10*time.Millisecond)
	return store
}

func TestExecutionRecorder_SavesTerminalRecords(t *testing.T) {
	saver := &fakeSaver{}
	store := startRecorder(t, saver, nil)

	require.NoError(t, store.SetStatus("a", domain.StatusRunning, "Processing..."))
	require.NoError(t, store.SetOutputs("a", map[string]any{"text": "ok"}, nil))

	require.Eventually(t, func() bool {
		_, ok := saver.get("a")
		return ok
	}, time.Second, 5*time.Millisecond)

	rec, _ := saver.get("a")
	assert.Equal(t, domain.StatusSuccess, rec.Status)
	assert.Equal(t, "ok", rec.Outputs["text"])
}

func TestExecutionRecorder_IgnoresRunning(t *testing.T) {
	saver := &fakeSaver{}
	store := startRecorder(t, saver, nil)

	require.NoError(t, store.SetStatus("a", domain.StatusRunning, ""))
	require.NoError(t, store.SetStatus("b", domain.StatusSkipped, "Skipped due to previous error"))

	require.Eventually(t, func() bool {
		_, ok := saver.get("b")
		return ok
	}, time.Second, 5*time.Millisecond)

	_, ok := saver.get("a")
	assert.False(t, ok)
}

func TestExecutionRecorder_NotFoundIsQuiet(t *testing.T) {
	var buf syncBuffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	saver := &fakeSaver{err: fmt.Errorf("node x: %w", ErrNotFound)}
	_ = startRecorder(t, saver, logger)

	require.Eventually(t, func() bool {
		return bytes.Contains(buf.Bytes(), []byte("node not persisted"))
	}, time.Second, 5*time.Millisecond)
	assert.NotContains(t, buf.String(), "level=WARN")
}

// syncBuffer — bytes.Buffer с блокировкой для логов из горутин.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) Bytes() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	return bytes.Clone(b.buf.Bytes())
}

func (b *syncBuffer) String() string {
	return string(b.Bytes())
}
