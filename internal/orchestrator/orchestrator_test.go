package orchestrator

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shaiso/nodeflow/internal/catalog"
	"github.com/shaiso/nodeflow/internal/compute"
	"github.com/shaiso/nodeflow/internal/domain"
	"github.com/shaiso/nodeflow/internal/engine"
	"github.com/shaiso/nodeflow/internal/executor"
	"github.com/shaiso/nodeflow/internal/status"
	"github.com/shaiso/nodeflow/internal/telemetry"
)

// fakeService отвечает функцией по ID узла.
type fakeService struct {
	mu       sync.Mutex
	calls    []string
	respond  func(ctx context.Context, req compute.NodeRequest) (*compute.NodeResponse, error)
	flowResp *compute.FlowResponse
	flowErr  error
}

func (f *fakeService) ExecuteNode(ctx context.Context, req compute.NodeRequest) (*compute.NodeResponse, error) {
	f.mu.Lock()
	f.calls = append(f.calls, req.NodeID)
	f.mu.Unlock()
	return f.respond(ctx, req)
}

func (f *fakeService) ExecuteFlow(context.Context, string, map[string]any) (*compute.FlowResponse, error) {
	return f.flowResp, f.flowErr
}

func (f *fakeService) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

// typeMap — простой TypeResolver для тестов.
type typeMap map[string]domain.NodeType

func (m typeMap) NodeType(id string) (domain.NodeType, bool) {
	t, ok := m[id]
	return t, ok
}

func chainTypes() typeMap {
	return typeMap{
		"start": {ID: "start", Category: domain.CategoryTrigger},
		"step":  {ID: "step", Category: domain.CategoryProcessor},
	}
}

// chain строит граф A → B → C ... с trigger первым.
func chain(flowID string, ids ...string) *domain.Graph {
	g := &domain.Graph{FlowID: flowID}
	for i, id := range ids {
		typeID := "step"
		if i == 0 {
			typeID = "start"
		}
		g.Nodes = append(g.Nodes, domain.NodeInstance{ID: id, TypeID: typeID})
		if i > 0 {
			g.Edges = append(g.Edges, domain.Edge{ID: ids[i-1] + "-" + id, SourceNodeID: ids[i-1], TargetNodeID: id})
		}
	}
	return g
}

func newOrchestrator(svc compute.Service, types engine.TypeResolver, cfg Config) *Orchestrator {
	cfg.Registry = executor.DefaultRegistry(svc, nil)
	cfg.Types = types
	cfg.Compute = svc
	if cfg.Store == nil {
		cfg.Store = status.NewStore()
	}
	return New(cfg)
}

func echo(_ context.Context, req compute.NodeRequest) (*compute.NodeResponse, error) {
	return compute.Success(map[string]any{"output": req.NodeID}), nil
}

// --- Config Tests ---

func TestNew_Defaults(t *testing.T) {
	o := New(Config{})

	assert.Equal(t, DefaultNodeTimeout, o.nodeTimeout)
	assert.Equal(t, DefaultRunTimeout, o.runTimeout)
	assert.Equal(t, ModeLocal, o.mode)
	assert.NotNil(t, o.Store())
	assert.Zero(t, o.ActiveRunsCount())
}

func TestParseMode(t *testing.T) {
	assert.Equal(t, ModeServer, ParseMode("server"))
	assert.Equal(t, ModeLocal, ParseMode("local"))
	assert.Equal(t, ModeLocal, ParseMode(""))
}

// --- Run Tests ---

func TestRun_ChatToAI(t *testing.T) {
	rawShapes := map[string]map[string]any{
		"ai_response field": {"ai_response": map[string]any{"ai_response": "Hi there!", "session_id": "s1"}},
		"response field":    {"response": "Hi there!"},
	}

	for name, aiOutputs := range rawShapes {
		t.Run(name, func(t *testing.T) {
			svc := &fakeService{respond: func(_ context.Context, req compute.NodeRequest) (*compute.NodeResponse, error) {
				switch req.TypeID {
				case catalog.TypeChatInput:
					return compute.Success(map[string]any{"message_data": map[string]any{
						"session_id": "s1", "input_text": req.Inputs["user_input"], "input_type": "text",
					}}), nil
				default:
					assert.Equal(t, "Hello", req.Inputs["input_text"])
					return compute.Success(aiOutputs), nil
				}
			}}

			o := newOrchestrator(svc, catalog.Default(), Config{})
			g := &domain.Graph{
				FlowID: "flow-a",
				Nodes: []domain.NodeInstance{
					{ID: "in", TypeID: catalog.TypeChatInput},
					{ID: "ai", TypeID: catalog.TypeAIChat},
				},
				Edges: []domain.Edge{{ID: "e1", SourceNodeID: "in", TargetNodeID: "ai"}},
			}

			results, err := o.Run(context.Background(), g, "", map[string]any{"user_input": "Hello"})
			require.NoError(t, err)

			require.Contains(t, results, "ai")
			assert.Equal(t, "Hi there!", results["ai"].Outputs["ai_response"])

			store := o.Store()
			assert.Equal(t, domain.StatusSuccess, store.GetState("in").Status)
			ai := store.GetState("ai")
			assert.Equal(t, domain.StatusSuccess, ai.Status)
			assert.Equal(t, "Hi there!", ai.Outputs["ai_response"])
			assert.False(t, o.Active("flow-a"))
		})
	}
}

func TestRun_MiddleNodeFails(t *testing.T) {
	svc := &fakeService{respond: func(ctx context.Context, req compute.NodeRequest) (*compute.NodeResponse, error) {
		if req.NodeID == "B" {
			return compute.Failure("B exploded"), nil
		}
		return echo(ctx, req)
	}}
	o := newOrchestrator(svc, chainTypes(), Config{})

	_, err := o.Run(context.Background(), chain("flow-b", "A", "B", "C"), "", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, executor.ErrNodeFailed)
	assert.Equal(t, "B exploded", err.Error())

	store := o.Store()
	assert.Equal(t, domain.StatusSuccess, store.GetState("A").Status)
	b := store.GetState("B")
	assert.Equal(t, domain.StatusError, b.Status)
	assert.Equal(t, "B exploded", b.Error)
	c := store.GetState("C")
	assert.Equal(t, domain.StatusSkipped, c.Status)
	assert.Equal(t, "Skipped due to previous error", c.Message)

	assert.Equal(t, []string{"A", "B"}, svc.Calls())
}

func TestRun_FailureAtPositionK(t *testing.T) {
	ids := []string{"n0", "n1", "n2", "n3", "n4", "n5"}

	for k := 1; k < len(ids)-1; k++ {
		failing := ids[k]
		svc := &fakeService{respond: func(ctx context.Context, req compute.NodeRequest) (*compute.NodeResponse, error) {
			if req.NodeID == failing {
				return nil, errors.New("connection refused")
			}
			return echo(ctx, req)
		}}
		o := newOrchestrator(svc, chainTypes(), Config{})

		_, err := o.Run(context.Background(), chain("flow-k", ids...), "", nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "connection refused")

		for i, id := range ids {
			st := o.Store().GetState(id).Status
			switch {
			case i < k:
				assert.Equal(t, domain.StatusSuccess, st, id)
			case i == k:
				assert.Equal(t, domain.StatusError, st, id)
			default:
				assert.Equal(t, domain.StatusSkipped, st, id)
			}
		}
	}
}

func TestRun_ValidationError(t *testing.T) {
	svc := &fakeService{respond: echo}
	o := newOrchestrator(svc, catalog.Default(), Config{})

	g := &domain.Graph{
		FlowID: "flow-v",
		Nodes: []domain.NodeInstance{
			{ID: "in", TypeID: catalog.TypeChatInput},
			{ID: "ai", TypeID: catalog.TypeAIChat},
		},
		Edges: []domain.Edge{{SourceNodeID: "in", TargetNodeID: "ai"}},
	}

	_, err := o.Run(context.Background(), g, "", map[string]any{})
	var valErr *engine.ValidationError
	require.True(t, errors.As(err, &valErr))
	assert.ErrorIs(t, err, engine.ErrMissingInput)

	in := o.Store().GetState("in")
	assert.Equal(t, domain.StatusError, in.Status)
	assert.Equal(t, "No user input provided", in.Error)
	assert.Equal(t, domain.StatusSkipped, o.Store().GetState("ai").Status)
	assert.Empty(t, svc.Calls())
}

func TestRun_ConfigurationErrors(t *testing.T) {
	o := newOrchestrator(&fakeService{respond: echo}, chainTypes(), Config{})

	_, err := o.Run(context.Background(), &domain.Graph{
		FlowID: "f",
		Nodes:  []domain.NodeInstance{{ID: "x", TypeID: "step"}},
	}, "", nil)
	assert.ErrorIs(t, err, engine.ErrNoTrigger)

	_, err = o.Run(context.Background(), &domain.Graph{
		FlowID: "f",
		Nodes:  []domain.NodeInstance{{ID: "a", TypeID: "start"}, {ID: "b", TypeID: "start"}},
	}, "", nil)
	assert.ErrorIs(t, err, engine.ErrMultipleTriggers)

	_, err = o.Run(context.Background(), chain("f", "A", "B"), "B", nil)
	assert.ErrorIs(t, err, engine.ErrNotTrigger)

	_, err = o.Run(context.Background(), nil, "", nil)
	var cfgErr *engine.ConfigurationError
	assert.True(t, errors.As(err, &cfgErr))
}

func TestRun_NoEdges(t *testing.T) {
	svc := &fakeService{respond: echo}
	o := newOrchestrator(svc, chainTypes(), Config{})

	_, err := o.Run(context.Background(), chain("flow-single", "A"), "", nil)
	assert.ErrorIs(t, err, engine.ErrEmptyOrder)
	var cfgErr *engine.ConfigurationError
	assert.True(t, errors.As(err, &cfgErr))

	assert.Empty(t, svc.Calls())
	assert.False(t, o.Active("flow-single"))
}

func TestRun_UnreachableNodesUntouched(t *testing.T) {
	o := newOrchestrator(&fakeService{respond: echo}, chainTypes(), Config{})

	g := chain("flow-u", "A", "B")
	g.Nodes = append(g.Nodes, domain.NodeInstance{ID: "orphan", TypeID: "step"})

	results, err := o.Run(context.Background(), g, "", nil)
	require.NoError(t, err)
	assert.Len(t, results, 2)
	assert.NotContains(t, results, "orphan")
	assert.Empty(t, o.Store().Snapshot()["orphan"].Status)
}

func TestRun_MapsUpstreamOutputs(t *testing.T) {
	svc := &fakeService{respond: func(ctx context.Context, req compute.NodeRequest) (*compute.NodeResponse, error) {
		if req.NodeID == "B" {
			assert.Equal(t, "A", req.Inputs["input"])
		}
		return echo(ctx, req)
	}}
	o := newOrchestrator(svc, chainTypes(), Config{})

	_, err := o.Run(context.Background(), chain("flow-m", "A", "B"), "", nil)
	require.NoError(t, err)
}

// --- Timeout Tests ---

func TestRun_NodeTimeout(t *testing.T) {
	release := make(chan struct{})
	defer close(release)

	svc := &fakeService{respond: func(ctx context.Context, req compute.NodeRequest) (*compute.NodeResponse, error) {
		if req.NodeID == "B" {
			<-release
		}
		return echo(ctx, req)
	}}
	o := newOrchestrator(svc, chainTypes(), Config{NodeTimeout: 50 * time.Millisecond})

	_, err := o.Run(context.Background(), chain("flow-t", "A", "B", "C"), "", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTimeout)

	var timeoutErr *TimeoutError
	require.True(t, errors.As(err, &timeoutErr))
	assert.Equal(t, ScopeNode, timeoutErr.Scope)
	assert.Equal(t, "B", timeoutErr.NodeID)

	b := o.Store().GetState("B")
	assert.Equal(t, domain.StatusError, b.Status)
	assert.Equal(t, "Node execution timed out after 50ms", b.Error)
	assert.Equal(t, domain.StatusSkipped, o.Store().GetState("C").Status)
}

func TestRun_LateResultDiscarded(t *testing.T) {
	release := make(chan struct{})
	finished := make(chan struct{})

	svc := &fakeService{respond: func(ctx context.Context, req compute.NodeRequest) (*compute.NodeResponse, error) {
		if req.NodeID == "B" {
			<-release
			defer close(finished)
			return compute.Success(map[string]any{"output": "late"}), nil
		}
		return echo(ctx, req)
	}}
	o := newOrchestrator(svc, chainTypes(), Config{NodeTimeout: 30 * time.Millisecond})

	_, err := o.Run(context.Background(), chain("flow-late", "A", "B", "C"), "", nil)
	require.ErrorIs(t, err, ErrTimeout)

	close(release)
	<-finished
	time.Sleep(20 * time.Millisecond)

	b := o.Store().GetState("B")
	assert.Equal(t, domain.StatusError, b.Status)
	assert.Nil(t, b.Outputs)
	assert.Equal(t, domain.StatusSkipped, o.Store().GetState("C").Status)
}

func TestRun_RunTimeout(t *testing.T) {
	release := make(chan struct{})
	defer close(release)

	svc := &fakeService{respond: func(ctx context.Context, req compute.NodeRequest) (*compute.NodeResponse, error) {
		if req.NodeID == "B" {
			<-release
		}
		return echo(ctx, req)
	}}
	o := newOrchestrator(svc, chainTypes(), Config{
		NodeTimeout: time.Second,
		RunTimeout:  50 * time.Millisecond,
	})

	_, err := o.Run(context.Background(), chain("flow-rt", "A", "B", "C"), "", nil)
	require.ErrorIs(t, err, ErrTimeout)

	var timeoutErr *TimeoutError
	require.True(t, errors.As(err, &timeoutErr))
	assert.Equal(t, ScopeRun, timeoutErr.Scope)
	assert.Equal(t, "Flow execution is taking longer than expected", err.Error())

	store := o.Store()
	assert.Equal(t, domain.StatusSuccess, store.GetState("A").Status)
	b := store.GetState("B")
	assert.Equal(t, domain.StatusError, b.Status)
	assert.Equal(t, "Flow execution is taking longer than expected", b.Error)
	assert.Equal(t, domain.StatusSkipped, store.GetState("C").Status)
	assert.False(t, o.Active("flow-rt"))
}

func TestRun_ContextCancelled(t *testing.T) {
	svc := &fakeService{respond: func(ctx context.Context, req compute.NodeRequest) (*compute.NodeResponse, error) {
		if req.NodeID == "B" {
			<-ctx.Done()
			return nil, ctx.Err()
		}
		return echo(ctx, req)
	}}
	o := newOrchestrator(svc, chainTypes(), Config{})

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(30 * time.Millisecond)
		cancel()
	}()

	_, err := o.Run(ctx, chain("flow-c", "A", "B", "C"), "", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, domain.StatusError, o.Store().GetState("B").Status)
	assert.Equal(t, domain.StatusSkipped, o.Store().GetState("C").Status)
}

// --- Guard Tests ---

func TestRun_GuardRejectsConcurrentRun(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})

	svc := &fakeService{respond: func(ctx context.Context, req compute.NodeRequest) (*compute.NodeResponse, error) {
		if req.NodeID == "B" {
			close(started)
			<-release
		}
		return echo(ctx, req)
	}}
	o := newOrchestrator(svc, chainTypes(), Config{})

	done := make(chan error, 1)
	go func() {
		_, err := o.Run(context.Background(), chain("flow-g", "A", "B"), "", nil)
		done <- err
	}()

	<-started
	assert.True(t, o.Active("flow-g"))
	stats, ok := o.GetActiveRunStats("flow-g")
	require.True(t, ok)
	assert.Equal(t, 2, stats.TotalNodes)
	assert.Equal(t, "B", stats.CurrentNode)

	_, err := o.Run(context.Background(), chain("flow-g", "A", "B"), "", nil)
	assert.ErrorIs(t, err, ErrRunInProgress)

	// Другой flow не блокируется.
	_, err = o.Run(context.Background(), chain("flow-other", "X", "Y"), "", nil)
	assert.NoError(t, err)

	close(release)
	require.NoError(t, <-done)
	assert.False(t, o.Active("flow-g"))

	_, err = o.Run(context.Background(), chain("flow-g", "A", "C"), "", nil)
	assert.NoError(t, err)
}

func TestRun_ResetsPreviousRun(t *testing.T) {
	fail := true
	svc := &fakeService{respond: func(ctx context.Context, req compute.NodeRequest) (*compute.NodeResponse, error) {
		if req.NodeID == "B" && fail {
			return compute.Failure("boom"), nil
		}
		return echo(ctx, req)
	}}
	o := newOrchestrator(svc, chainTypes(), Config{})
	g := chain("flow-r", "A", "B", "C")

	_, err := o.Run(context.Background(), g, "", nil)
	require.Error(t, err)

	fail = false
	_, err = o.Run(context.Background(), g, "", nil)
	require.NoError(t, err)

	for _, id := range []string{"A", "B", "C"} {
		assert.Equal(t, domain.StatusSuccess, o.Store().GetState(id).Status, id)
	}
}

// --- RunFlow Tests ---

type loaderFunc func(ctx context.Context, flowID string) (*domain.Graph, error)

func (f loaderFunc) LoadGraph(ctx context.Context, flowID string) (*domain.Graph, error) {
	return f(ctx, flowID)
}

func TestRunFlow(t *testing.T) {
	loader := loaderFunc(func(_ context.Context, flowID string) (*domain.Graph, error) {
		if flowID != "known" {
			return nil, errors.New("not found")
		}
		g := chain("", "A", "B")
		return g, nil
	})
	o := newOrchestrator(&fakeService{respond: echo}, chainTypes(), Config{Loader: loader})

	results, err := o.RunFlow(context.Background(), "known", "", nil)
	require.NoError(t, err)
	assert.Len(t, results, 2)

	_, err = o.RunFlow(context.Background(), "missing", "", nil)
	assert.ErrorContains(t, err, "load graph missing")

	_, err = New(Config{}).RunFlow(context.Background(), "known", "", nil)
	assert.ErrorIs(t, err, ErrNoLoader)
}

// --- Server Mode Tests ---

func TestRun_ServerMode(t *testing.T) {
	svc := &fakeService{
		respond: echo,
		flowResp: &compute.FlowResponse{
			Status: "completed",
			ExecutionResults: map[string]*compute.NodeResponse{
				"A": compute.Success(map[string]any{"message_data": "x"}),
				"B": compute.Failure("B failed on server"),
			},
		},
	}
	o := newOrchestrator(svc, chainTypes(), Config{Mode: ModeServer})

	_, err := o.Run(context.Background(), chain("flow-s", "A", "B", "C"), "", nil)
	require.Error(t, err)
	assert.Equal(t, "B failed on server", err.Error())
	assert.Empty(t, svc.Calls())

	store := o.Store()
	assert.Equal(t, domain.StatusSuccess, store.GetState("A").Status)
	assert.Equal(t, domain.StatusError, store.GetState("B").Status)
	assert.Equal(t, domain.StatusSkipped, store.GetState("C").Status)
}

func TestRun_ServerModeTransportError(t *testing.T) {
	svc := &fakeService{flowErr: compute.ErrRequest}
	o := newOrchestrator(svc, chainTypes(), Config{Mode: ModeServer})

	_, err := o.Run(context.Background(), chain("flow-se", "A", "B"), "", nil)
	require.ErrorIs(t, err, compute.ErrRequest)
	assert.Equal(t, domain.StatusError, o.Store().GetState("A").Status)
	assert.Equal(t, domain.StatusSkipped, o.Store().GetState("B").Status)
}

func TestReconcile(t *testing.T) {
	o := New(Config{})

	results, err := o.Reconcile([]string{"A", "B", "C"}, &compute.FlowResponse{
		ExecutionResults: map[string]*compute.NodeResponse{
			"A": compute.Success(map[string]any{"text": "a"}),
			"C": compute.Success(map[string]any{"text": "c"}),
		},
	})
	require.NoError(t, err)
	assert.Len(t, results, 2)

	store := o.Store()
	assert.Equal(t, domain.StatusSuccess, store.GetState("A").Status)
	assert.Equal(t, "a", store.GetState("A").Outputs["text"])
	assert.Equal(t, domain.StatusSkipped, store.GetState("B").Status)
	assert.Equal(t, domain.StatusSuccess, store.GetState("C").Status)

	_, err = o.Reconcile([]string{"A"}, nil)
	assert.ErrorIs(t, err, ErrEmptyResponse)
}

func TestReconcile_FlowErrorWithoutResults(t *testing.T) {
	o := New(Config{})

	_, err := o.Reconcile([]string{"A", "B"}, &compute.FlowResponse{Status: "error", Error: "No trigger node found"})
	require.Error(t, err)
	assert.Equal(t, "No trigger node found", err.Error())
	assert.Equal(t, domain.StatusError, o.Store().GetState("A").Status)
	assert.Equal(t, domain.StatusSkipped, o.Store().GetState("B").Status)
}

// --- RunState Tests ---

func TestRunState_DropsStaleWrites(t *testing.T) {
	store := status.NewStore()
	state := NewRunState("run-1", chain("f", "A", "B"), "A", []string{"A", "B"}, store)

	genA := state.Begin("A")
	ok, err := state.apply("A", genA, func(s status.Writer) error {
		return s.SetStatus("A", domain.StatusRunning, "")
	})
	require.NoError(t, err)
	assert.True(t, ok)
	state.End(genA)

	ok, _ = state.apply("A", genA, func(s status.Writer) error {
		return s.SetStatus("A", domain.StatusRunning, "stale")
	})
	assert.False(t, ok)
	assert.Empty(t, store.GetState("A").Message)

	genB := state.Begin("B")
	assert.True(t, state.Close(nil))
	assert.False(t, state.Close(nil))

	ok, _ = state.apply("B", genB, func(s status.Writer) error {
		return s.SetStatus("B", domain.StatusRunning, "")
	})
	assert.False(t, ok)
	ok, _ = state.applyRun(func(status.Writer) error { return nil })
	assert.False(t, ok)
	assert.True(t, state.Closed())
}

func TestRunState_ListenerMayWrite(t *testing.T) {
	store := status.NewStore()
	state := NewRunState("run-2", chain("f", "A", "B"), "A", []string{"A", "B"}, store)

	var got []string
	store.SubscribeAll(func(ev status.Event) {
		got = append(got, ev.NodeID+":"+string(ev.Record.Status))
		assert.Equal(t, "A", state.Current())
		if ev.NodeID == "A" {
			_, err := state.applyRun(func(s status.Writer) error {
				return s.SetStatus("B", domain.StatusSkipped, skippedMessage)
			})
			assert.NoError(t, err)
		}
	})

	gen := state.Begin("A")
	ok, err := state.apply("A", gen, func(s status.Writer) error {
		return s.SetStatus("A", domain.StatusRunning, "")
	})
	require.NoError(t, err)
	assert.True(t, ok)

	assert.Equal(t, []string{
		"A:" + string(domain.StatusRunning),
		"B:" + string(domain.StatusSkipped),
	}, got)
}

func TestRun_ListenerReadsRunStats(t *testing.T) {
	store := status.NewStore()
	o := newOrchestrator(&fakeService{respond: echo}, chainTypes(), Config{Store: store})

	var (
		mu    sync.Mutex
		stats []RunStats
	)
	store.SubscribeAll(func(status.Event) {
		if st, ok := o.GetActiveRunStats("flow-l"); ok {
			mu.Lock()
			stats = append(stats, st)
			mu.Unlock()
		}
	})

	done := make(chan error, 1)
	go func() {
		_, err := o.Run(context.Background(), chain("flow-l", "A", "B", "C"), "", nil)
		done <- err
	}()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("run blocked by status listener")
	}

	mu.Lock()
	defer mu.Unlock()
	require.NotEmpty(t, stats)
	assert.Equal(t, 3, stats[0].TotalNodes)
}

// --- Metrics Tests ---

func TestRun_Metrics(t *testing.T) {
	m := telemetry.NewMetrics(prometheus.NewRegistry())
	svc := &fakeService{respond: func(ctx context.Context, req compute.NodeRequest) (*compute.NodeResponse, error) {
		if req.NodeID == "bad" {
			return compute.Failure("nope"), nil
		}
		return echo(ctx, req)
	}}
	o := newOrchestrator(svc, chainTypes(), Config{Metrics: m})

	_, err := o.Run(context.Background(), chain("m1", "A", "B"), "", nil)
	require.NoError(t, err)
	_, err = o.Run(context.Background(), chain("m2", "A", "bad"), "", nil)
	require.Error(t, err)
	_, err = o.Run(context.Background(), &domain.Graph{FlowID: "m3", Nodes: []domain.NodeInstance{{ID: "x", TypeID: "step"}}}, "", nil)
	require.Error(t, err)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.RunsTotal.WithLabelValues(telemetry.OutcomeSuccess)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RunsTotal.WithLabelValues(telemetry.OutcomeFailed)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RunsTotal.WithLabelValues(telemetry.OutcomeRejected)))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.ActiveRuns))
}
