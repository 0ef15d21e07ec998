// Package mq предоставляет инфраструктуру для работы с RabbitMQ.
//
// Структура:
//   - connection.go — управление соединением с RabbitMQ (reconnect, graceful shutdown)
//   - topology.go   — объявление exchanges, queues, bindings
//   - publisher.go  — публикация сообщений в очереди
//   - consumer.go   — потребление сообщений из очередей
//   - relay.go      — пересылка событий status.Store в nodeflow.status
//
// Типы сообщений:
//   - run.requested  — запрос на выполнение flow
//   - run.completed  — flow выполнен (успешно или с ошибкой)
//   - node.status    — изменение статуса узла
//
// Exchanges:
//   - nodeflow.runs    — события runs
//   - nodeflow.status  — статусы узлов (topic, node.<status>)
//   - nodeflow.dlq     — dead letter queue
package mq
