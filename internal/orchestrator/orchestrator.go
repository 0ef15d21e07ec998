package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/nodeflow/internal/compute"
	"github.com/shaiso/nodeflow/internal/domain"
	"github.com/shaiso/nodeflow/internal/engine"
	"github.com/shaiso/nodeflow/internal/executor"
	"github.com/shaiso/nodeflow/internal/mapper"
	"github.com/shaiso/nodeflow/internal/status"
	"github.com/shaiso/nodeflow/internal/telemetry"
)

// Default configuration values.
const (
	DefaultNodeTimeout = 30 * time.Second
	DefaultRunTimeout  = 60 * time.Second
)

// Mode — где выполняются узлы.
type Mode string

const (
	// ModeLocal — узлы выполняются по одному через реестр исполнителей.
	ModeLocal Mode = "local"

	// ModeServer — весь flow выполняет сервис вычислений,
	// результаты сверяются со Store.
	ModeServer Mode = "server"
)

// ParseMode парсит режим выполнения. Неизвестные значения — ModeLocal.
func ParseMode(s string) Mode {
	if Mode(s) == ModeServer {
		return ModeServer
	}
	return ModeLocal
}

// GraphLoader загружает граф flow по ID.
type GraphLoader interface {
	LoadGraph(ctx context.Context, flowID string) (*domain.Graph, error)
}

// Orchestrator координирует запуски flow.
//
// Orchestrator:
//   - Определяет trigger и порядок выполнения
//   - Не даёт запустить flow, пока идёт предыдущий запуск
//   - Выполняет узлы по одному с дедлайнами узла и запуска
//   - Каскадно пропускает узлы после первой ошибки
//   - Пишет статусы узлов в status.Store
type Orchestrator struct {
	registry *executor.Registry
	store    *status.Store
	mapper   *mapper.Mapper
	types    engine.TypeResolver
	compute  compute.Service
	loader   GraphLoader
	metrics  *telemetry.Metrics

	nodeTimeout time.Duration
	runTimeout  time.Duration
	mode        Mode

	// Active runs — запуски в процессе выполнения (flowID → state)
	activeRuns map[string]*RunState
	mu         sync.RWMutex

	logger *slog.Logger
}

// Config — конфигурация Orchestrator.
type Config struct {
	Registry *executor.Registry
	Store    *status.Store
	Mapper   *mapper.Mapper
	Types    engine.TypeResolver

	// Compute — сервис вычислений для ModeServer.
	Compute compute.Service

	// Loader — источник графов для RunFlow.
	Loader GraphLoader

	NodeTimeout time.Duration // дедлайн узла (default: 30s)
	RunTimeout  time.Duration // дедлайн запуска (default: 60s)
	Mode        Mode          // default: ModeLocal

	// Metrics — опционально.
	Metrics *telemetry.Metrics

	Logger *slog.Logger
}

// New создаёт новый Orchestrator.
func New(cfg Config) *Orchestrator {
	nodeTimeout := cfg.NodeTimeout
	if nodeTimeout <= 0 {
		nodeTimeout = DefaultNodeTimeout
	}

	runTimeout := cfg.RunTimeout
	if runTimeout <= 0 {
		runTimeout = DefaultRunTimeout
	}

	mode := cfg.Mode
	if mode == "" {
		mode = ModeLocal
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	store := cfg.Store
	if store == nil {
		store = status.NewStore()
	}

	m := cfg.Mapper
	if m == nil {
		m = mapper.New(mapper.Config{Logger: logger})
	}

	return &Orchestrator{
		registry:    cfg.Registry,
		store:       store,
		mapper:      m,
		types:       cfg.Types,
		compute:     cfg.Compute,
		loader:      cfg.Loader,
		metrics:     cfg.Metrics,
		nodeTimeout: nodeTimeout,
		runTimeout:  runTimeout,
		mode:        mode,
		activeRuns:  make(map[string]*RunState),
		logger:      logger,
	}
}

// Store возвращает хранилище статусов.
func (o *Orchestrator) Store() *status.Store {
	return o.store
}

// Run выполняет flow от trigger-узла.
//
// Пустой triggerNodeID означает единственный trigger графа.
// Возвращает результаты узлов по ID. При ошибке узла возвращает ровно
// одну ошибку: ошибку этого узла (ValidationError, TimeoutError, NodeError
// или ошибку сервиса вычислений).
func (o *Orchestrator) Run(ctx context.Context, graph *domain.Graph, triggerNodeID string, triggerInputs map[string]any) (map[string]*domain.ExecutionResult, error) {
	if graph == nil {
		return nil, engine.NewConfigurationError("", "", "flow has no nodes", engine.ErrEmptyGraph)
	}

	triggerID, order, err := engine.ResolveRunOrder(graph, triggerNodeID, o.types)
	if err != nil {
		o.rejected()
		return nil, err
	}

	state := NewRunState(uuid.NewString(), graph, triggerID, order, o.store)
	if err := o.addActiveRun(state); err != nil {
		o.rejected()
		return nil, err
	}
	defer o.removeActiveRun(state)

	logger := telemetry.WithRunID(telemetry.WithFlowID(o.logger, graph.FlowID), state.RunID)
	logger.Info("run started",
		slog.String("trigger", triggerID),
		slog.Int("nodes", len(order)),
		slog.String("mode", string(o.mode)),
	)
	if o.metrics != nil {
		o.metrics.RunStarted()
	}

	results, err := o.race(ctx, state, triggerInputs, logger)

	outcome := telemetry.OutcomeSuccess
	switch {
	case errors.Is(err, ErrTimeout):
		outcome = telemetry.OutcomeTimeout
	case err != nil:
		outcome = telemetry.OutcomeFailed
	}
	if o.metrics != nil {
		o.metrics.RunFinished(outcome, time.Since(state.StartedAt))
	}

	if err != nil {
		logger.Warn("run failed",
			slog.String("error", err.Error()),
			slog.Duration("duration", time.Since(state.StartedAt)),
		)
		return nil, err
	}

	logger.Info("run succeeded", slog.Duration("duration", time.Since(state.StartedAt)))
	return results, nil
}

// RunFlow загружает граф через GraphLoader и выполняет его.
func (o *Orchestrator) RunFlow(ctx context.Context, flowID, triggerNodeID string, triggerInputs map[string]any) (map[string]*domain.ExecutionResult, error) {
	if o.loader == nil {
		return nil, ErrNoLoader
	}

	graph, err := o.loader.LoadGraph(ctx, flowID)
	if err != nil {
		return nil, fmt.Errorf("load graph %s: %w", flowID, err)
	}
	if graph.FlowID == "" {
		graph.FlowID = flowID
	}

	return o.Run(ctx, graph, triggerNodeID, triggerInputs)
}

// runOutcome — итог тела запуска.
type runOutcome struct {
	results map[string]*domain.ExecutionResult
	err     error
}

// race выполняет тело запуска против дедлайна запуска и отмены контекста.
// Тело не прерывается: после закрытия RunState его записи отбрасываются.
func (o *Orchestrator) race(ctx context.Context, state *RunState, triggerInputs map[string]any, logger *slog.Logger) (map[string]*domain.ExecutionResult, error) {
	done := make(chan runOutcome, 1)
	go func() {
		var out runOutcome
		if o.mode == ModeServer {
			out.results, out.err = o.executeOnServer(ctx, state, triggerInputs, logger)
		} else {
			out.results, out.err = o.execute(ctx, state, triggerInputs, logger)
		}
		done <- out
	}()

	timer := time.NewTimer(o.runTimeout)
	defer timer.Stop()

	select {
	case out := <-done:
		state.Close(nil)
		return out.results, out.err

	case <-timer.C:
		var current string
		state.Close(func(store status.Writer, cur string) {
			current = cur
			o.abort(store, state.Order, cur, runTimeoutMessage, logger)
		})
		logger.Warn("run timed out",
			slog.String("node_id", current),
			slog.Duration("after", o.runTimeout),
		)
		return nil, &TimeoutError{
			Scope:   ScopeRun,
			NodeID:  current,
			After:   o.runTimeout,
			Message: runTimeoutMessage,
		}

	case <-ctx.Done():
		state.Close(func(store status.Writer, cur string) {
			o.abort(store, state.Order, cur, cancelledMessage, logger)
		})
		return nil, fmt.Errorf("%w: %w", ErrCancelled, ctx.Err())
	}
}

// abort помечает текущий узел ERROR, остальные незавершённые — SKIPPED.
func (o *Orchestrator) abort(store status.Writer, order []string, current, message string, logger *slog.Logger) {
	if current != "" && !store.GetState(current).Status.IsTerminal() {
		if err := store.SetError(current, message); err != nil {
			logger.Debug("status write rejected", slog.String("node_id", current), slog.String("error", err.Error()))
		}
	}
	for _, id := range order {
		if store.GetState(id).Status.IsTerminal() {
			continue
		}
		if err := store.SetStatus(id, domain.StatusSkipped, skippedMessage); err != nil {
			logger.Debug("status write rejected", slog.String("node_id", id), slog.String("error", err.Error()))
		}
	}
}

// Active проверяет, выполняется ли запуск flow.
func (o *Orchestrator) Active(flowID string) bool {
	o.mu.RLock()
	defer o.mu.RUnlock()
	_, exists := o.activeRuns[flowID]
	return exists
}

// ActiveRunsCount возвращает количество активных запусков.
func (o *Orchestrator) ActiveRunsCount() int {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return len(o.activeRuns)
}

// GetActiveRunStats возвращает статистику по активному запуску flow.
func (o *Orchestrator) GetActiveRunStats(flowID string) (RunStats, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()

	state, exists := o.activeRuns[flowID]
	if !exists {
		return RunStats{}, false
	}
	return state.Stats(), true
}

// addActiveRun занимает flow для запуска.
func (o *Orchestrator) addActiveRun(state *RunState) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if _, exists := o.activeRuns[state.FlowID]; exists {
		return fmt.Errorf("%w: flow %s", ErrRunInProgress, state.FlowID)
	}

	o.activeRuns[state.FlowID] = state
	return nil
}

// removeActiveRun освобождает flow.
func (o *Orchestrator) removeActiveRun(state *RunState) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.activeRuns[state.FlowID] == state {
		delete(o.activeRuns, state.FlowID)
	}
}

func (o *Orchestrator) rejected() {
	if o.metrics != nil {
		o.metrics.RunRejected()
	}
}
