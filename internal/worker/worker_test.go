package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shaiso/nodeflow/internal/domain"
	"github.com/shaiso/nodeflow/internal/mq"
	"github.com/shaiso/nodeflow/internal/orchestrator"
)

// fakeRunner отвечает заранее заданными ошибками по очереди.
type fakeRunner struct {
	mu       sync.Mutex
	errs     []error
	runs     int
	graphs   []*domain.Graph
	flowIDs  []string
	triggers []string
}

func (r *fakeRunner) next() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.runs++
	if len(r.errs) == 0 {
		return nil
	}
	err := r.errs[0]
	r.errs = r.errs[1:]
	return err
}

func (r *fakeRunner) Run(_ context.Context, g *domain.Graph, trigger string, _ map[string]any) (map[string]*domain.ExecutionResult, error) {
	r.mu.Lock()
	r.graphs = append(r.graphs, g)
	r.triggers = append(r.triggers, trigger)
	r.mu.Unlock()
	if err := r.next(); err != nil {
		return nil, err
	}
	return map[string]*domain.ExecutionResult{"in": domain.NewSuccessResult(map[string]any{"text": "ok"}, nil)}, nil
}

func (r *fakeRunner) RunFlow(_ context.Context, flowID, _ string, _ map[string]any) (map[string]*domain.ExecutionResult, error) {
	r.mu.Lock()
	r.flowIDs = append(r.flowIDs, flowID)
	r.mu.Unlock()
	return nil, r.next()
}

type recordingPublisher struct {
	mu       sync.Mutex
	payloads []mq.RunCompletedPayload
}

func (p *recordingPublisher) PublishRunCompleted(_ context.Context, payload mq.RunCompletedPayload) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.payloads = append(p.payloads, payload)
	return nil
}

func fastRetry() RetryPolicy {
	return RetryPolicy{MaxAttempts: 3, InitialDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond}
}

// --- Process Tests ---

func TestProcess_InlineGraph(t *testing.T) {
	runner := &fakeRunner{}
	pub := &recordingPublisher{}
	w := New(Config{Runner: runner, Publisher: pub})

	err := w.Process(context.Background(), mq.RunRequestedPayload{
		RunID:         "r1",
		FlowID:        "f1",
		TriggerNodeID: "in",
		Graph:         &domain.Graph{Nodes: []domain.NodeInstance{{ID: "in", TypeID: "chat_input"}}},
	})
	require.NoError(t, err)

	require.Len(t, runner.graphs, 1)
	assert.Equal(t, "f1", runner.graphs[0].FlowID)
	assert.Equal(t, []string{"in"}, runner.triggers)

	require.Len(t, pub.payloads, 1)
	completed := pub.payloads[0]
	assert.Equal(t, "r1", completed.RunID)
	assert.Equal(t, domain.StatusSuccess, completed.Status)
	assert.Contains(t, completed.Results, "in")
}

func TestProcess_LoadsGraphByFlowID(t *testing.T) {
	runner := &fakeRunner{errs: []error{errors.New("B exploded")}}
	pub := &recordingPublisher{}
	w := New(Config{Runner: runner, Publisher: pub})

	require.NoError(t, w.Process(context.Background(), mq.RunRequestedPayload{FlowID: "f2"}))

	assert.Equal(t, []string{"f2"}, runner.flowIDs)
	require.Len(t, pub.payloads, 1)
	assert.NotEmpty(t, pub.payloads[0].RunID)
	assert.Equal(t, domain.StatusError, pub.payloads[0].Status)
	assert.Equal(t, "B exploded", pub.payloads[0].Error)
}

func TestProcess_InvalidRequest(t *testing.T) {
	w := New(Config{Runner: &fakeRunner{}})

	err := w.Process(context.Background(), mq.RunRequestedPayload{})
	assert.ErrorIs(t, err, ErrInvalidRequest)
	assert.ErrorIs(t, err, mq.ErrPermanent)
}

func TestProcess_RetriesWhileFlowBusy(t *testing.T) {
	runner := &fakeRunner{errs: []error{orchestrator.ErrRunInProgress, orchestrator.ErrRunInProgress}}
	pub := &recordingPublisher{}
	w := New(Config{Runner: runner, Publisher: pub, Retry: fastRetry()})

	require.NoError(t, w.Process(context.Background(), mq.RunRequestedPayload{FlowID: "busy"}))
	assert.Equal(t, 3, runner.runs)
	require.Len(t, pub.payloads, 1)
	assert.Equal(t, domain.StatusSuccess, pub.payloads[0].Status)
}

func TestProcess_RetryExhausted(t *testing.T) {
	runner := &fakeRunner{errs: []error{
		orchestrator.ErrRunInProgress, orchestrator.ErrRunInProgress, orchestrator.ErrRunInProgress,
	}}
	pub := &recordingPublisher{}
	w := New(Config{Runner: runner, Publisher: pub, Retry: fastRetry()})

	err := w.Process(context.Background(), mq.RunRequestedPayload{FlowID: "busy"})
	assert.ErrorIs(t, err, ErrRetryExhausted)
	assert.ErrorIs(t, err, orchestrator.ErrRunInProgress)
	assert.Equal(t, 3, runner.runs)
	assert.Empty(t, pub.payloads)
}

func TestProcess_NoPublisher(t *testing.T) {
	w := New(Config{Runner: &fakeRunner{}})
	assert.NoError(t, w.Process(context.Background(), mq.RunRequestedPayload{FlowID: "f"}))
}

func TestHandleRunRequested_BadPayload(t *testing.T) {
	w := New(Config{Runner: &fakeRunner{}})

	err := w.handleRunRequested(context.Background(), &mq.Delivery{Message: mq.Message{Payload: "garbage"}})
	assert.ErrorIs(t, err, mq.ErrPermanent)
}

// --- Backoff Tests ---

func TestCalculateBackoff_Exponential(t *testing.T) {
	policy := RetryPolicy{
		Backoff:      "exponential",
		InitialDelay: time.Second,
		MaxDelay:     10 * time.Second,
	}

	tests := []struct {
		attempt  int
		expected time.Duration
	}{
		{1, 1 * time.Second},
		{2, 2 * time.Second},
		{3, 4 * time.Second},
		{4, 8 * time.Second},
		{5, 10 * time.Second}, // capped at max
		{6, 10 * time.Second}, // stays at max
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, calculateBackoff(tt.attempt, policy), "attempt %d", tt.attempt)
	}
}

func TestCalculateBackoff_Fixed(t *testing.T) {
	policy := RetryPolicy{
		Backoff:      "fixed",
		InitialDelay: 2 * time.Second,
		MaxDelay:     10 * time.Second,
	}

	for attempt := 1; attempt <= 5; attempt++ {
		assert.Equal(t, 2*time.Second, calculateBackoff(attempt, policy))
	}
}

func TestCalculateBackoff_ZeroValues(t *testing.T) {
	assert.Equal(t, time.Second, calculateBackoff(1, RetryPolicy{Backoff: "exponential"}))
}

// --- Worker Tests ---

func TestNew_DefaultConfig(t *testing.T) {
	w := New(Config{})

	assert.Equal(t, defaultPrefetch, w.prefetch)
	assert.Equal(t, 3, w.retry.MaxAttempts)
	assert.Equal(t, "exponential", w.retry.Backoff)
	assert.NotNil(t, w.logger)
}

func TestStart_NoConnection(t *testing.T) {
	assert.ErrorIs(t, New(Config{}).Start(context.Background()), ErrNoConnection)
}

func TestWorker_IsStopped(t *testing.T) {
	w := New(Config{})
	assert.False(t, w.IsStopped())

	w.Stop()
	assert.True(t, w.IsStopped())
}
