// Package engine содержит логику графа flow, не зависящую от выполнения.
//
// Включает:
//   - order.go      — порядок выполнения (обход в ширину от trigger)
//   - trigger.go    — поиск единственного trigger и подготовка порядка запуска
//   - parser.go     — парсинг графа из JSON/YAML и структурная валидация
//   - connection.go — проверка совместимости портов при редактировании
//
// Engine отвечает за понимание структуры flow. Выполнение узлов
// живёт в пакетах executor и orchestrator.
package engine
