package mq

import (
	"context"
	"fmt"
	"strings"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/shaiso/nodeflow/internal/domain"
)

// Exchange — тип для имени обменника.
type Exchange string

// Queue — тип для имени очереди.
type Queue string

// RoutingKey — тип для ключа маршрутизации.
type RoutingKey string

// Exchanges — имена обменников.
const (
	ExchangeRuns   Exchange = "nodeflow.runs"
	ExchangeStatus Exchange = "nodeflow.status"
	ExchangeDLQ    Exchange = "nodeflow.dlq"
)

// Queues — имена очередей.
const (
	QueueRunsRequested Queue = "runs.requested"
	QueueRunsCompleted Queue = "runs.completed"
	QueueDLQRuns       Queue = "dlq.runs"
)

// Routing keys.
const (
	RoutingKeyRequested RoutingKey = "requested"
	RoutingKeyCompleted RoutingKey = "completed"
	RoutingKeyDLQRuns   RoutingKey = "runs"
)

// StatusRoutingKey возвращает ключ события статуса узла: node.<status>.
func StatusRoutingKey(status domain.ExecutionStatus) RoutingKey {
	return RoutingKey("node." + strings.ToLower(string(status)))
}

// ExchangeSpec — объявление обменника.
type ExchangeSpec struct {
	Name Exchange
	Kind string // direct | topic
	Note string
}

// QueueSpec — объявление durable очереди и её привязки.
type QueueSpec struct {
	Name       Queue
	Exchange   Exchange
	RoutingKey RoutingKey
	DeadLetter bool // отклонённые сообщения уходят в nodeflow.dlq
	Consumer   string
}

// Topology — обменники и очереди nodeflow.
type Topology struct {
	Exchanges []ExchangeSpec
	Queues    []QueueSpec
}

// DefaultTopology возвращает топологию nodeflow.
//
// События статусов публикуются в topic exchange без собственной очереди:
// подписчики привязывают свои очереди по шаблону node.* или node.error.
func DefaultTopology() Topology {
	return Topology{
		Exchanges: []ExchangeSpec{
			{Name: ExchangeRuns, Kind: amqp.ExchangeDirect, Note: "run requests and results"},
			{Name: ExchangeStatus, Kind: amqp.ExchangeTopic, Note: "node.<status> events"},
			{Name: ExchangeDLQ, Kind: amqp.ExchangeDirect, Note: "rejected run requests"},
		},
		Queues: []QueueSpec{
			{
				Name:       QueueRunsRequested,
				Exchange:   ExchangeRuns,
				RoutingKey: RoutingKeyRequested,
				DeadLetter: true,
				Consumer:   "nodeflow-worker",
			},
			{
				Name:       QueueRunsCompleted,
				Exchange:   ExchangeRuns,
				RoutingKey: RoutingKeyCompleted,
				Consumer:   "external",
			},
			{
				Name:       QueueDLQRuns,
				Exchange:   ExchangeDLQ,
				RoutingKey: RoutingKeyDLQRuns,
				Consumer:   "manual",
			},
		},
	}
}

// SetupTopology объявляет DefaultTopology.
func SetupTopology(ctx context.Context, conn *Connection) error {
	return conn.WithChannel(ctx, DefaultTopology().Declare)
}

// Declare объявляет обменники, затем очереди с привязками. Идемпотентно.
func (t Topology) Declare(ch *amqp.Channel) error {
	for _, ex := range t.Exchanges {
		// durable, не auto-delete, не internal
		if err := ch.ExchangeDeclare(string(ex.Name), ex.Kind, true, false, false, false, nil); err != nil {
			return fmt.Errorf("declare exchange %s: %w", ex.Name, err)
		}
	}

	for _, q := range t.Queues {
		if _, err := ch.QueueDeclare(string(q.Name), true, false, false, false, q.args()); err != nil {
			return fmt.Errorf("declare queue %s: %w", q.Name, err)
		}
		if err := ch.QueueBind(string(q.Name), string(q.RoutingKey), string(q.Exchange), false, nil); err != nil {
			return fmt.Errorf("bind queue %s to %s: %w", q.Name, q.Exchange, err)
		}
	}

	return nil
}

func (q QueueSpec) args() amqp.Table {
	if !q.DeadLetter {
		return nil
	}
	return amqp.Table{
		"x-dead-letter-exchange":    string(ExchangeDLQ),
		"x-dead-letter-routing-key": string(RoutingKeyDLQRuns),
	}
}

// Validate проверяет, что привязки ссылаются на объявленные обменники.
func (t Topology) Validate() error {
	declared := make(map[Exchange]bool, len(t.Exchanges))
	for _, ex := range t.Exchanges {
		declared[ex.Name] = true
	}
	for _, q := range t.Queues {
		if !declared[q.Exchange] {
			return fmt.Errorf("queue %s bound to undeclared exchange %s", q.Name, q.Exchange)
		}
		if q.DeadLetter && !declared[ExchangeDLQ] {
			return fmt.Errorf("queue %s dead-letters to undeclared exchange %s", q.Name, ExchangeDLQ)
		}
	}
	return nil
}

// String описывает топологию для логов.
func (t Topology) String() string {
	var b strings.Builder
	for _, ex := range t.Exchanges {
		fmt.Fprintf(&b, "%s (%s): %s\n", ex.Name, ex.Kind, ex.Note)
		for _, q := range t.Queues {
			if q.Exchange != ex.Name {
				continue
			}
			fmt.Fprintf(&b, "  %s [routing: %s, consumer: %s", q.Name, q.RoutingKey, q.Consumer)
			if q.DeadLetter {
				fmt.Fprintf(&b, ", dlq: %s", QueueDLQRuns)
			}
			b.WriteString("]\n")
		}
	}
	return b.String()
}

// TopologyInfo возвращает описание DefaultTopology.
func TopologyInfo() string {
	return DefaultTopology().String()
}
