// Package repo содержит доступ к PostgreSQL.
//
// GraphRepo читает граф flow из таблиц node_instances и node_connections
// и хранит последнюю запись выполнения узла в колонке data.
// ExecutionRecorder переносит терминальные статусы из status.Store в БД.
package repo
