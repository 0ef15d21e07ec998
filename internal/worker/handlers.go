package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/nodeflow/internal/domain"
	"github.com/shaiso/nodeflow/internal/mq"
	"github.com/shaiso/nodeflow/internal/orchestrator"
)

// handleRunRequested обрабатывает сообщение из очереди runs.requested.
func (w *Worker) handleRunRequested(ctx context.Context, delivery *mq.Delivery) error {
	payload, err := mq.ParsePayload[mq.RunRequestedPayload](&delivery.Message)
	if err != nil {
		w.logger.Error("failed to parse run.requested payload", "error", err)
		return fmt.Errorf("%w: %w", mq.ErrPermanent, err)
	}

	w.logger.Debug("received run.requested event",
		"run_id", payload.RunID,
		"flow_id", payload.FlowID,
	)

	return w.Process(ctx, payload)
}

// Process выполняет запрос на запуск и публикует итог.
//
// Ошибка выполнения flow — это итог запуска: публикуется run.completed
// со статусом ERROR, сообщение подтверждается. Ошибка возвращается только
// для некорректного запроса и для исчерпанных повторов.
func (w *Worker) Process(ctx context.Context, payload mq.RunRequestedPayload) error {
	if payload.Graph == nil && payload.FlowID == "" {
		return fmt.Errorf("%w: %w: graph or flow_id required", mq.ErrPermanent, ErrInvalidRequest)
	}
	if payload.RunID == "" {
		payload.RunID = uuid.NewString()
	}
	if payload.Graph != nil && payload.Graph.FlowID == "" {
		payload.Graph.FlowID = payload.FlowID
	}
	if payload.FlowID == "" {
		payload.FlowID = payload.Graph.FlowID
	}

	w.logger.Info("run started",
		"run_id", payload.RunID,
		"flow_id", payload.FlowID,
	)

	start := time.Now()
	results, err := w.runWithRetry(ctx, payload)
	if errors.Is(err, ErrRetryExhausted) {
		w.logger.Warn("run rejected", "run_id", payload.RunID, "flow_id", payload.FlowID, "error", err)
		return err
	}

	completed := mq.RunCompletedPayload{
		RunID:      payload.RunID,
		FlowID:     payload.FlowID,
		Status:     domain.StatusSuccess,
		Results:    results,
		DurationMs: time.Since(start).Milliseconds(),
	}
	if err != nil {
		completed.Status = domain.StatusError
		completed.Error = err.Error()
		w.logger.Warn("run failed",
			"run_id", payload.RunID,
			"flow_id", payload.FlowID,
			"error", err,
		)
	} else {
		w.logger.Info("run succeeded",
			"run_id", payload.RunID,
			"flow_id", payload.FlowID,
			"duration", time.Since(start),
		)
	}

	w.publishCompletion(ctx, completed)
	return nil
}

// runWithRetry выполняет запуск, повторяя его, пока flow занят другим запуском.
func (w *Worker) runWithRetry(ctx context.Context, payload mq.RunRequestedPayload) (map[string]*domain.ExecutionResult, error) {
	for attempt := 1; ; attempt++ {
		results, err := w.run(ctx, payload)
		if !errors.Is(err, orchestrator.ErrRunInProgress) {
			return results, err
		}

		if attempt >= w.retry.MaxAttempts {
			return nil, fmt.Errorf("%w: %w", ErrRetryExhausted, err)
		}

		delay := calculateBackoff(attempt, w.retry)
		w.logger.Debug("flow busy, retrying run",
			"run_id", payload.RunID,
			"attempt", attempt,
			"delay", delay,
		)

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

func (w *Worker) run(ctx context.Context, payload mq.RunRequestedPayload) (map[string]*domain.ExecutionResult, error) {
	if payload.Graph != nil {
		return w.runner.Run(ctx, payload.Graph, payload.TriggerNodeID, payload.TriggerInputs)
	}
	return w.runner.RunFlow(ctx, payload.FlowID, payload.TriggerNodeID, payload.TriggerInputs)
}

// publishCompletion публикует событие run.completed.
func (w *Worker) publishCompletion(ctx context.Context, payload mq.RunCompletedPayload) {
	if w.publisher == nil {
		w.logger.Warn("publisher not available, skipping run.completed publish",
			"run_id", payload.RunID,
		)
		return
	}

	if err := w.publisher.PublishRunCompleted(ctx, payload); err != nil {
		// Не возвращаем ошибку — статусы узлов уже в Store и в nodeflow.status
		w.logger.Warn("failed to publish run.completed",
			"run_id", payload.RunID,
			"error", err,
		)
	}
}

// calculateBackoff вычисляет задержку перед retry.
func calculateBackoff(attempt int, policy RetryPolicy) time.Duration {
	initialDelay := policy.InitialDelay
	if initialDelay <= 0 {
		initialDelay = time.Second
	}

	maxDelay := policy.MaxDelay
	if maxDelay <= 0 {
		maxDelay = 30 * time.Second
	}

	var delay time.Duration
	switch policy.Backoff {
	case "exponential":
		// delay = initialDelay * 2^(attempt-1)
		delay = initialDelay
		for i := 1; i < attempt; i++ {
			delay *= 2
			if delay > maxDelay {
				delay = maxDelay
				break
			}
		}
	default:
		// "fixed" или неизвестный — используем initialDelay
		delay = initialDelay
	}

	if delay > maxDelay {
		delay = maxDelay
	}

	return delay
}
