package worker

import "errors"

// Ошибки воркера.
var (
	// ErrNoConnection — Start вызван без соединения с RabbitMQ.
	ErrNoConnection = errors.New("rabbitmq connection not configured")

	// ErrInvalidRequest — в запросе нет ни графа, ни flow_id.
	ErrInvalidRequest = errors.New("invalid run request")

	// ErrRetryExhausted — все попытки retry исчерпаны.
	ErrRetryExhausted = errors.New("retry attempts exhausted")
)
