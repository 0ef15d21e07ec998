package mq

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/shaiso/nodeflow/internal/domain"
)

// MessageType — тип сообщения в очереди.
type MessageType string

// Типы сообщений.
const (
	MessageTypeRunRequested MessageType = "run.requested"
	MessageTypeRunCompleted MessageType = "run.completed"
	MessageTypeNodeStatus   MessageType = "node.status"
)

// Publisher публикует сообщения в RabbitMQ.
type Publisher struct {
	conn   *Connection
	logger *slog.Logger
}

// NewPublisher создаёт новый Publisher.
func NewPublisher(conn *Connection, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{
		conn:   conn,
		logger: logger,
	}
}

// Message — сообщение для публикации.
type Message struct {
	// ID — уникальный идентификатор сообщения.
	ID string `json:"id"`

	// Type — тип сообщения.
	Type MessageType `json:"type"`

	// Payload — полезная нагрузка.
	Payload any `json:"payload"`

	// Timestamp — время создания.
	Timestamp time.Time `json:"timestamp"`
}

// NewMessage создаёт сообщение с новым ID.
func NewMessage(msgType MessageType, payload any) *Message {
	return &Message{
		ID:        uuid.New().String(),
		Type:      msgType,
		Payload:   payload,
		Timestamp: time.Now(),
	}
}

// RunRequestedPayload — запрос на выполнение flow.
// Graph опционален: без него worker загружает граф из БД.
type RunRequestedPayload struct {
	RunID         string         `json:"run_id"`
	FlowID        string         `json:"flow_id"`
	TriggerNodeID string         `json:"trigger_node_id,omitempty"`
	TriggerInputs map[string]any `json:"trigger_inputs,omitempty"`
	Graph         *domain.Graph  `json:"graph,omitempty"`
}

// RunCompletedPayload — итог выполнения flow.
type RunCompletedPayload struct {
	RunID      string                             `json:"run_id"`
	FlowID     string                             `json:"flow_id"`
	Status     domain.ExecutionStatus             `json:"status"` // SUCCESS или ERROR
	Error      string                             `json:"error,omitempty"`
	Results    map[string]*domain.ExecutionResult `json:"results,omitempty"`
	DurationMs int64                              `json:"duration_ms"`
}

// NodeStatusPayload — изменение статуса узла.
type NodeStatusPayload struct {
	NodeID   string                 `json:"node_id"`
	Previous domain.ExecutionStatus `json:"previous"`
	Status   domain.ExecutionStatus `json:"status"`
	Message  string                 `json:"message,omitempty"`
	Error    string                 `json:"error,omitempty"`
	Outputs  map[string]any         `json:"outputs,omitempty"`
}

// Publish публикует сообщение в указанный exchange с routing key.
func (p *Publisher) Publish(ctx context.Context, exchange Exchange, routingKey RoutingKey, msg *Message) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	return p.conn.WithChannel(ctx, func(ch *amqp.Channel) error {
		err := ch.PublishWithContext(
			ctx,
			string(exchange),   // exchange
			string(routingKey), // routing key
			false,
			false,
			amqp.Publishing{
				ContentType:  "application/json",
				DeliveryMode: amqp.Persistent, // сообщение переживёт рестарт RabbitMQ
				MessageId:    msg.ID,
				Timestamp:    msg.Timestamp,
				Body:         body,
			},
		)
		if err != nil {
			return fmt.Errorf("publish to %s/%s: %w", exchange, routingKey, err)
		}

		p.logger.Debug("published message",
			"exchange", exchange,
			"routing_key", routingKey,
			"message_id", msg.ID,
			"type", msg.Type,
		)

		return nil
	})
}

// PublishRunRequested публикует запрос на выполнение flow.
// Потребитель: Worker.
func (p *Publisher) PublishRunRequested(ctx context.Context, payload RunRequestedPayload) error {
	return p.Publish(ctx, ExchangeRuns, RoutingKeyRequested, NewMessage(MessageTypeRunRequested, payload))
}

// PublishRunCompleted публикует итог выполнения flow.
func (p *Publisher) PublishRunCompleted(ctx context.Context, payload RunCompletedPayload) error {
	return p.Publish(ctx, ExchangeRuns, RoutingKeyCompleted, NewMessage(MessageTypeRunCompleted, payload))
}

// PublishNodeStatus публикует изменение статуса узла в nodeflow.status.
func (p *Publisher) PublishNodeStatus(ctx context.Context, payload NodeStatusPayload) error {
	return p.Publish(ctx, ExchangeStatus, StatusRoutingKey(payload.Status), NewMessage(MessageTypeNodeStatus, payload))
}

// PublishJSON публикует произвольный JSON payload.
func (p *Publisher) PublishJSON(ctx context.Context, exchange Exchange, routingKey RoutingKey, msgType MessageType, payload any) error {
	return p.Publish(ctx, exchange, routingKey, NewMessage(msgType, payload))
}
