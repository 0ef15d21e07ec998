package worker

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/shaiso/nodeflow/internal/domain"
	"github.com/shaiso/nodeflow/internal/mq"
)

// Default configuration values.
const (
	defaultPrefetch = 1
)

// Runner выполняет flow. Реализуется orchestrator.Orchestrator.
type Runner interface {
	Run(ctx context.Context, graph *domain.Graph, triggerNodeID string, triggerInputs map[string]any) (map[string]*domain.ExecutionResult, error)
	RunFlow(ctx context.Context, flowID, triggerNodeID string, triggerInputs map[string]any) (map[string]*domain.ExecutionResult, error)
}

// CompletionPublisher публикует итоги запусков.
type CompletionPublisher interface {
	PublishRunCompleted(ctx context.Context, payload mq.RunCompletedPayload) error
}

// RetryPolicy — повтор запуска, отклонённого из-за уже идущего запуска flow.
type RetryPolicy struct {
	MaxAttempts  int           // default: 3
	InitialDelay time.Duration // default: 1s
	MaxDelay     time.Duration // default: 30s
	Backoff      string        // "exponential" (default) или "fixed"
}

// Worker выполняет запросы на запуск flow из очереди.
//
// Worker — stateless компонент системы, который:
//   - Получает run.requested из очереди RabbitMQ
//   - Выполняет flow через Runner (граф из сообщения или из БД)
//   - Повторяет запуск с backoff, если flow уже выполняется
//   - Публикует run.completed с результатами или ошибкой
//
// Workers масштабируются горизонтально — несколько экземпляров
// могут потреблять из одной очереди.
type Worker struct {
	runner    Runner
	publisher CompletionPublisher
	conn      *mq.Connection
	retry     RetryPolicy
	prefetch  int

	// Consumer
	consumer *mq.Consumer

	// Lifecycle
	logger     *slog.Logger
	cancelFunc context.CancelFunc
	wg         sync.WaitGroup
	stopped    bool
	stoppedMu  sync.RWMutex
}

// Config — конфигурация Worker.
type Config struct {
	Runner    Runner
	Publisher CompletionPublisher

	// MQ
	Conn *mq.Connection

	// Prefetch — сообщений в обработке одновременно (default: 1).
	Prefetch int

	Retry RetryPolicy

	// Logger
	Logger *slog.Logger
}

// New создаёт новый Worker.
func New(cfg Config) *Worker {
	prefetch := cfg.Prefetch
	if prefetch <= 0 {
		prefetch = defaultPrefetch
	}

	retry := cfg.Retry
	if retry.MaxAttempts <= 0 {
		retry.MaxAttempts = 3
	}
	if retry.InitialDelay <= 0 {
		retry.InitialDelay = time.Second
	}
	if retry.MaxDelay <= 0 {
		retry.MaxDelay = 30 * time.Second
	}
	if retry.Backoff == "" {
		retry.Backoff = "exponential"
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Worker{
		runner:    cfg.Runner,
		publisher: cfg.Publisher,
		conn:      cfg.Conn,
		retry:     retry,
		prefetch:  prefetch,
		logger:    logger,
	}
}

// Start запускает consumer очереди runs.requested.
func (w *Worker) Start(ctx context.Context) error {
	if w.conn == nil {
		return ErrNoConnection
	}

	ctx, cancel := context.WithCancel(ctx)
	w.cancelFunc = cancel

	w.logger.Info("starting worker", "prefetch", w.prefetch)

	w.consumer = mq.NewConsumer(w.conn, w.logger, mq.ConsumerConfig{
		Queue:    string(mq.QueueRunsRequested),
		Handler:  w.handleRunRequested,
		Prefetch: w.prefetch,
		Name:     "nodeflow-worker",
	})

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		if err := w.consumer.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			w.logger.Error("run consumer error", "error", err)
		}
	}()

	w.logger.Info("worker started")
	return nil
}

// Stop останавливает Worker.
func (w *Worker) Stop() {
	w.stoppedMu.Lock()
	w.stopped = true
	w.stoppedMu.Unlock()

	w.logger.Info("stopping worker...")

	if w.cancelFunc != nil {
		w.cancelFunc()
	}

	if w.consumer != nil {
		w.consumer.Stop()
	}

	// Ждём завершения горутин
	w.wg.Wait()

	w.logger.Info("worker stopped")
}

// IsStopped проверяет, остановлен ли Worker.
func (w *Worker) IsStopped() bool {
	w.stoppedMu.RLock()
	defer w.stoppedMu.RUnlock()
	return w.stopped
}
