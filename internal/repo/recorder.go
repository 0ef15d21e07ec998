package repo

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/shaiso/nodeflow/internal/domain"
	"github.com/shaiso/nodeflow/internal/status"
)

// ExecutionSaver сохраняет записи выполнения узлов. Реализуется GraphRepo.
type ExecutionSaver interface {
	SaveExecution(ctx context.Context, nodeID string, rec domain.ExecutionRecord) error
}

// ExecutionRecorder сохраняет терминальные записи Store в БД,
// чтобы GET графа показывал последнее выполнение после рестарта.
type ExecutionRecorder struct {
	saver   ExecutionSaver
	timeout time.Duration
	logger  *slog.Logger
	events  chan status.Event
}

// NewExecutionRecorder создаёт новый ExecutionRecorder.
func NewExecutionRecorder(saver ExecutionSaver, logger *slog.Logger) *ExecutionRecorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &ExecutionRecorder{
		saver:   saver,
		timeout: 5 * time.Second,
		logger:  logger,
		events:  make(chan status.Event, 256),
	}
}

// Run подписывается на Store и пишет записи до отмены ctx.
func (r *ExecutionRecorder) Run(ctx context.Context, store *status.Store) error {
	unsubscribe := store.SubscribeAll(r.enqueue)
	defer unsubscribe()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev := <-r.events:
			r.save(ctx, ev)
		}
	}
}

func (r *ExecutionRecorder) enqueue(ev status.Event) {
	if !ev.Record.Status.IsTerminal() {
		return
	}
	select {
	case r.events <- ev:
	default:
		r.logger.Warn("execution recorder queue full, dropping record", "node_id", ev.NodeID)
	}
}

func (r *ExecutionRecorder) save(ctx context.Context, ev status.Event) {
	saveCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	err := r.saver.SaveExecution(saveCtx, ev.NodeID, ev.Record)
	switch {
	case err == nil:
	case errors.Is(err, ErrNotFound):
		// Граф пришёл в запросе и не хранится в БД
		r.logger.Debug("node not persisted, skipping execution record", "node_id", ev.NodeID)
	default:
		r.logger.Warn("failed to save execution record", "node_id", ev.NodeID, "error", err)
	}
}
