package mq

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
)

// Handler обрабатывает одно сообщение.
//
// nil — ack. Ошибка с ErrPermanent — сообщение уходит в DLQ.
// Остальные ошибки возвращают сообщение в очередь один раз:
// повторная неудача после redelivery тоже отправляет его в DLQ.
type Handler func(ctx context.Context, msg *Delivery) error

// Delivery — доставленное сообщение.
type Delivery struct {
	Message Message
	Raw     amqp.Delivery
}

// Redelivered сообщает, что брокер уже доставлял это сообщение.
func (d *Delivery) Redelivered() bool {
	return d.Raw.Redelivered
}

// Consumer читает очередь и передаёт сообщения Handler по одному.
type Consumer struct {
	conn     *Connection
	logger   *slog.Logger
	queue    string
	tag      string
	handler  Handler
	prefetch int
	retry    time.Duration

	cancelFunc context.CancelFunc
}

// ConsumerConfig — конфигурация consumer.
type ConsumerConfig struct {
	Queue   string
	Handler Handler

	// Prefetch — сообщений без ack одновременно (default: 1).
	Prefetch int

	// Name — префикс consumer tag (default: имя очереди).
	Name string

	// RetryInterval — пауза между попытками подписки без канала (default: 2s).
	RetryInterval time.Duration
}

// NewConsumer создаёт новый Consumer.
func NewConsumer(conn *Connection, logger *slog.Logger, cfg ConsumerConfig) *Consumer {
	prefetch := cfg.Prefetch
	if prefetch <= 0 {
		prefetch = 1
	}
	retry := cfg.RetryInterval
	if retry <= 0 {
		retry = 2 * time.Second
	}
	name := cfg.Name
	if name == "" {
		name = cfg.Queue
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Consumer{
		conn:     conn,
		logger:   logger.With("queue", cfg.Queue),
		queue:    cfg.Queue,
		tag:      name + "-" + uuid.NewString()[:8],
		handler:  cfg.Handler,
		prefetch: prefetch,
		retry:    retry,
	}
}

// Start потребляет сообщения до отмены ctx или закрытия соединения.
// После разрыва подписка восстанавливается на новом канале.
func (c *Consumer) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	c.cancelFunc = cancel
	defer cancel()

	for {
		deliveries, err := c.subscribe()
		if err == nil {
			c.logger.Info("consumer started", "tag", c.tag, "prefetch", c.prefetch)
			err = c.drain(ctx, deliveries)
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		c.logger.Warn("consumer interrupted, waiting for channel", "error", err)
		if err := c.await(ctx); err != nil {
			return err
		}
	}
}

// subscribe выставляет prefetch и подписывается на очередь.
func (c *Consumer) subscribe() (<-chan amqp.Delivery, error) {
	ch := c.conn.Channel()
	if ch == nil {
		return nil, ErrNoChannel
	}

	if err := ch.Qos(c.prefetch, 0, false); err != nil {
		return nil, fmt.Errorf("set qos: %w", err)
	}

	// autoAck=false: ack после обработки
	deliveries, err := ch.Consume(c.queue, c.tag, false, false, false, false, nil)
	if err != nil {
		return nil, fmt.Errorf("consume %s: %w", c.queue, err)
	}
	return deliveries, nil
}

// await ждёт переподключения или следующей попытки подписки.
func (c *Consumer) await(ctx context.Context) error {
	timer := time.NewTimer(c.retry)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-c.conn.Done():
		return ErrConnectionClosed
	case <-c.conn.ReconnectNotify():
		c.logger.Info("channel restored, resubscribing")
	case <-timer.C:
	}
	return nil
}

// drain обрабатывает доставки, пока канал открыт.
func (c *Consumer) drain(ctx context.Context, deliveries <-chan amqp.Delivery) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case raw, ok := <-deliveries:
			if !ok {
				return ErrDeliveriesClosed
			}
			c.handle(ctx, raw)
		}
	}
}

// handle обрабатывает одно сообщение и решает ack/requeue/DLQ.
func (c *Consumer) handle(ctx context.Context, raw amqp.Delivery) {
	start := time.Now()

	msg, err := decodeMessage(raw.Body)
	if err != nil {
		c.logger.Error("malformed message, dead-lettering",
			"delivery_tag", raw.DeliveryTag,
			"error", err,
		)
		c.settle(raw, outcomeDeadLetter)
		return
	}

	logger := c.logger.With("message_id", msg.ID, "type", msg.Type)
	logger.Debug("received message", "redelivered", raw.Redelivered)

	err = c.invoke(ctx, &Delivery{Message: msg, Raw: raw})
	outcome := decide(err, raw.Redelivered)

	if err != nil {
		logger.Error("handler failed",
			"error", err,
			"outcome", outcome,
			"duration", time.Since(start),
		)
	} else {
		logger.Debug("message handled", "duration", time.Since(start))
	}

	c.settle(raw, outcome)
}

// invoke вызывает Handler; panic превращается в постоянную ошибку.
func (c *Consumer) invoke(ctx context.Context, d *Delivery) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: handler panic: %v", ErrPermanent, r)
		}
	}()
	return c.handler(ctx, d)
}

type outcome string

const (
	outcomeAck        outcome = "ack"
	outcomeRequeue    outcome = "requeue"
	outcomeDeadLetter outcome = "dead_letter"
)

func decide(err error, redelivered bool) outcome {
	switch {
	case err == nil:
		return outcomeAck
	case errors.Is(err, ErrPermanent), redelivered:
		return outcomeDeadLetter
	default:
		return outcomeRequeue
	}
}

func (c *Consumer) settle(raw amqp.Delivery, o outcome) {
	var err error
	switch o {
	case outcomeAck:
		err = raw.Ack(false)
	case outcomeRequeue:
		err = raw.Nack(false, true)
	default:
		// Очереди объявлены с x-dead-letter-exchange
		err = raw.Nack(false, false)
	}
	if err != nil {
		c.logger.Warn("failed to settle delivery", "outcome", o, "error", err)
	}
}

// Stop останавливает consumer.
func (c *Consumer) Stop() {
	if c.cancelFunc != nil {
		c.cancelFunc()
	}
}

// decodeMessage разбирает конверт, оставляя payload сырым JSON.
func decodeMessage(body []byte) (Message, error) {
	var env struct {
		ID        string          `json:"id"`
		Type      MessageType     `json:"type"`
		Payload   json.RawMessage `json:"payload"`
		Timestamp time.Time       `json:"timestamp"`
	}
	if err := json.Unmarshal(body, &env); err != nil {
		return Message{}, fmt.Errorf("decode message: %w", err)
	}
	if env.Type == "" {
		return Message{}, fmt.Errorf("decode message: %w", ErrMissingType)
	}

	return Message{
		ID:        env.ID,
		Type:      env.Type,
		Payload:   env.Payload,
		Timestamp: env.Timestamp,
	}, nil
}

// ParsePayload декодирует payload сообщения в T.
func ParsePayload[T any](msg *Message) (T, error) {
	var result T

	var data []byte
	switch p := msg.Payload.(type) {
	case json.RawMessage:
		data = p
	case []byte:
		data = p
	default:
		// Payload собран в памяти (map или структура)
		b, err := json.Marshal(p)
		if err != nil {
			return result, fmt.Errorf("marshal payload: %w", err)
		}
		data = b
	}

	if err := json.Unmarshal(data, &result); err != nil {
		return result, fmt.Errorf("unmarshal payload: %w", err)
	}
	return result, nil
}
