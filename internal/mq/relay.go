package mq

import (
	"context"
	"log/slog"
	"time"

	"github.com/shaiso/nodeflow/internal/status"
)

// StatusPublisher публикует события статусов узлов.
type StatusPublisher interface {
	PublishNodeStatus(ctx context.Context, payload NodeStatusPayload) error
}

// StatusRelay пересылает события status.Store в nodeflow.status.
//
// Слушатель Store только кладёт событие в буфер; публикация идёт
// в отдельной горутине, чтобы брокер не задерживал запуск.
// При переполнении буфера события отбрасываются с предупреждением.
type StatusRelay struct {
	publisher StatusPublisher
	events    chan status.Event
	timeout   time.Duration
	logger    *slog.Logger
}

// RelayConfig — конфигурация StatusRelay.
type RelayConfig struct {
	Publisher StatusPublisher
	Buffer    int           // default: 256
	Timeout   time.Duration // таймаут публикации (default: 5s)
	Logger    *slog.Logger
}

// NewStatusRelay создаёт ретранслятор.
func NewStatusRelay(cfg RelayConfig) *StatusRelay {
	buffer := cfg.Buffer
	if buffer <= 0 {
		buffer = 256
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &StatusRelay{
		publisher: cfg.Publisher,
		events:    make(chan status.Event, buffer),
		timeout:   timeout,
		logger:    logger,
	}
}

// Run подписывается на store и публикует события до отмены ctx.
func (r *StatusRelay) Run(ctx context.Context, store *status.Store) error {
	unsubscribe := store.SubscribeAll(r.enqueue)
	defer unsubscribe()

	r.logger.Info("status relay started")

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("status relay stopped")
			return nil
		case ev := <-r.events:
			r.publish(ctx, ev)
		}
	}
}

func (r *StatusRelay) enqueue(ev status.Event) {
	select {
	case r.events <- ev:
	default:
		r.logger.Warn("status relay buffer full, dropping event",
			slog.String("node_id", ev.NodeID),
			slog.String("status", string(ev.Record.Status)),
		)
	}
}

func (r *StatusRelay) publish(ctx context.Context, ev status.Event) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	if err := r.publisher.PublishNodeStatus(ctx, NodeStatusPayloadFrom(ev)); err != nil {
		r.logger.Warn("failed to publish node status",
			slog.String("node_id", ev.NodeID),
			slog.String("error", err.Error()),
		)
	}
}

// NodeStatusPayloadFrom строит payload из события Store.
func NodeStatusPayloadFrom(ev status.Event) NodeStatusPayload {
	return NodeStatusPayload{
		NodeID:   ev.NodeID,
		Previous: ev.Previous,
		Status:   ev.Record.Status,
		Message:  ev.Record.Message,
		Error:    ev.Record.Error,
		Outputs:  ev.Record.Outputs,
	}
}
