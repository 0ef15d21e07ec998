package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"time"

	"github.com/shaiso/nodeflow/internal/compute"
	"github.com/shaiso/nodeflow/internal/domain"
	"github.com/shaiso/nodeflow/internal/engine"
	"github.com/shaiso/nodeflow/internal/executor"
	"github.com/shaiso/nodeflow/internal/status"
	"github.com/shaiso/nodeflow/internal/telemetry"
)

// execute выполняет узлы по порядку, по одному.
func (o *Orchestrator) execute(ctx context.Context, state *RunState, triggerInputs map[string]any, logger *slog.Logger) (map[string]*domain.ExecutionResult, error) {
	o.resetNodes(state)

	for i, nodeID := range state.Order {
		if state.Closed() {
			return nil, ErrCancelled
		}

		node, ok := state.Graph.Node(nodeID)
		if !ok {
			return nil, engine.NewConfigurationError(state.FlowID, nodeID, "node not found in flow", engine.ErrUnknownNode)
		}

		var inputs map[string]any
		if i == 0 {
			inputs = maps.Clone(triggerInputs)
		} else {
			inputs = o.mapper.MapInputs(nodeID, state.Graph.Incoming(nodeID), state.Results())
		}

		res, err := o.executeNode(ctx, state, *node, inputs, telemetry.WithNodeID(logger, nodeID))
		if err != nil {
			o.skipRemaining(state, state.Order[i+1:], logger)
			return nil, err
		}
		state.AddResult(nodeID, res)
	}

	return state.Results(), nil
}

// nodeOutcome — итог исполнителя узла.
type nodeOutcome struct {
	result *domain.ExecutionResult
	err    error
}

// executeNode выполняет один узел с дедлайном узла.
func (o *Orchestrator) executeNode(ctx context.Context, state *RunState, node domain.NodeInstance, inputs map[string]any, logger *slog.Logger) (*domain.ExecutionResult, error) {
	gen := state.Begin(node.ID)
	defer state.End(gen)

	write := func(fn func(status.Writer) error) {
		if _, err := state.apply(node.ID, gen, fn); err != nil {
			logger.Debug("status write rejected", slog.String("error", err.Error()))
		}
	}
	update := func(st domain.ExecutionStatus, message string) {
		write(func(s status.Writer) error { return s.SetStatus(node.ID, st, message) })
	}
	fail := func(err error) error {
		msg := errorMessage(err)
		write(func(s status.Writer) error { return s.SetError(node.ID, msg) })
		logger.Warn("node failed", slog.String("error", msg))
		return err
	}

	nodeType, ok := o.types.NodeType(node.TypeID)
	if !ok {
		nodeType = domain.NodeType{ID: node.TypeID}
	}

	exec, ok := o.registry.Create(node.ID, node, nodeType, update)
	if !ok {
		logger.Info("executor not registered, using generic path",
			slog.String("error", fmt.Errorf("%w: %s", executor.ErrExecutorNotFound, node.TypeID).Error()),
		)
		exec = o.registry.Generic(node.ID, node, nodeType, update)
	}

	update(domain.StatusRunning, "")

	ec, err := executor.NewContext(state.FlowID, node, nodeType, inputs)
	if err != nil {
		return nil, fail(err)
	}

	done := make(chan nodeOutcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- nodeOutcome{err: &executor.NodeError{
					NodeID:  node.ID,
					Message: fmt.Sprintf("executor panic: %v", r),
					Err:     executor.ErrNodeFailed,
				}}
			}
		}()
		res, err := exec.Execute(ctx, ec)
		done <- nodeOutcome{result: res, err: err}
	}()

	timer := time.NewTimer(o.nodeTimeout)
	defer timer.Stop()

	select {
	case out := <-done:
		if out.err != nil {
			return nil, fail(out.err)
		}
		if out.result == nil || !out.result.Success {
			msg := nodeFailedFallback
			if out.result != nil && out.result.Error != "" {
				msg = out.result.Error
			}
			return nil, fail(&executor.NodeError{NodeID: node.ID, Message: msg, Err: executor.ErrNodeFailed})
		}

		write(func(s status.Writer) error {
			return s.SetOutputs(node.ID, out.result.Outputs, out.result.Metadata)
		})
		logger.Debug("node succeeded")
		return out.result, nil

	case <-timer.C:
		return nil, fail(&TimeoutError{
			Scope:   ScopeNode,
			NodeID:  node.ID,
			After:   o.nodeTimeout,
			Message: fmt.Sprintf("Node execution timed out after %s", o.nodeTimeout),
		})
	}
}

// resetNodes сбрасывает все узлы порядка в PENDING.
func (o *Orchestrator) resetNodes(state *RunState) {
	_, _ = state.applyRun(func(s status.Writer) error {
		for _, id := range state.Order {
			s.Reset(id)
		}
		return nil
	})
}

// skipRemaining помечает оставшиеся узлы SKIPPED.
func (o *Orchestrator) skipRemaining(state *RunState, remaining []string, logger *slog.Logger) {
	_, _ = state.applyRun(func(s status.Writer) error {
		for _, id := range remaining {
			if err := s.SetStatus(id, domain.StatusSkipped, skippedMessage); err != nil {
				logger.Debug("status write rejected", slog.String("node_id", id), slog.String("error", err.Error()))
			}
		}
		return nil
	})
}

// errorMessage возвращает сообщение ошибки для UI, без префиксов обёрток.
func errorMessage(err error) string {
	var (
		valErr     *engine.ValidationError
		nodeErr    *executor.NodeError
		timeoutErr *TimeoutError
	)
	switch {
	case errors.As(err, &valErr):
		return valErr.Message
	case errors.As(err, &nodeErr):
		return nodeErr.Message
	case errors.As(err, &timeoutErr):
		return timeoutErr.Message
	default:
		return err.Error()
	}
}

// executeOnServer выполняет весь flow в сервисе вычислений и сверяет результаты.
func (o *Orchestrator) executeOnServer(ctx context.Context, state *RunState, triggerInputs map[string]any, logger *slog.Logger) (map[string]*domain.ExecutionResult, error) {
	o.resetNodes(state)

	gen := state.Begin(state.TriggerID)
	defer state.End(gen)

	if _, err := state.apply(state.TriggerID, gen, func(s status.Writer) error {
		return s.SetStatus(state.TriggerID, domain.StatusRunning, "Processing...")
	}); err != nil {
		logger.Debug("status write rejected", slog.String("error", err.Error()))
	}

	resp, err := o.compute.ExecuteFlow(ctx, state.FlowID, triggerInputs)
	if err != nil {
		err = fmt.Errorf("execute flow %s: %w", state.FlowID, err)
		_, _ = state.applyRun(func(s status.Writer) error {
			o.abort(s, state.Order, state.TriggerID, err.Error(), logger)
			return nil
		})
		return nil, err
	}

	var (
		results map[string]*domain.ExecutionResult
		runErr  error
	)
	applied, _ := state.applyRun(func(s status.Writer) error {
		results, runErr = reconcile(s, state.Order, resp, logger)
		return nil
	})
	if !applied {
		return nil, ErrCancelled
	}
	for id, res := range results {
		state.AddResult(id, res)
	}
	return results, runErr
}

// Reconcile переносит execution_results ответа сервиса в Store
// в порядке order. Возвращает ошибку первого упавшего узла.
func (o *Orchestrator) Reconcile(order []string, resp *compute.FlowResponse) (map[string]*domain.ExecutionResult, error) {
	return reconcile(o.store, order, resp, o.logger)
}

// reconcile: узел с результатом получает SUCCESS/ERROR; после первой ошибки
// и при отсутствии результата узлы пропускаются.
func reconcile(store status.Writer, order []string, resp *compute.FlowResponse, logger *slog.Logger) (map[string]*domain.ExecutionResult, error) {
	if resp == nil {
		return nil, ErrEmptyResponse
	}

	results := make(map[string]*domain.ExecutionResult, len(order))
	var firstErr error

	settle := func(id string, write func() error) {
		if err := write(); err != nil {
			logger.Debug("status write rejected", slog.String("node_id", id), slog.String("error", err.Error()))
		}
	}
	toRunning := func(id string) {
		if store.GetState(id).Status == domain.StatusPending {
			settle(id, func() error { return store.SetStatus(id, domain.StatusRunning, "") })
		}
	}

	for i, id := range order {
		if firstErr != nil {
			settle(id, func() error { return store.SetStatus(id, domain.StatusSkipped, skippedMessage) })
			continue
		}

		nr, ok := resp.ExecutionResults[id]
		if !ok || nr == nil {
			// Сервис упал до первого узла: ошибка flow относится к trigger.
			if i == 0 && resp.Error != "" {
				toRunning(id)
				settle(id, func() error { return store.SetError(id, resp.Error) })
				firstErr = &executor.NodeError{NodeID: id, Message: resp.Error, Err: executor.ErrNodeFailed}
				continue
			}
			settle(id, func() error { return store.SetStatus(id, domain.StatusSkipped, missingMessage) })
			continue
		}

		toRunning(id)
		if !nr.OK() {
			msg := nr.Error
			if msg == "" {
				msg = nodeFailedFallback
			}
			settle(id, func() error { return store.SetError(id, msg) })
			firstErr = &executor.NodeError{NodeID: id, Message: msg, Err: executor.ErrNodeFailed}
			continue
		}

		res := domain.NewSuccessResult(maps.Clone(nr.Outputs), maps.Clone(nr.Metadata))
		settle(id, func() error { return store.SetOutputs(id, res.Outputs, res.Metadata) })
		results[id] = res
	}

	if firstErr != nil {
		return nil, firstErr
	}
	return results, nil
}
