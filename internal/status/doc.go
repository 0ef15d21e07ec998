// Package status хранит записи выполнения узлов и рассылает события
// об их изменении.
//
// Store создаётся явно и передаётся в orchestrator, API, метрики
// и ретранслятор статусов в RabbitMQ.
package status
