// Package api содержит HTTP API сервер.
//
// Структура:
//   - handler.go           — Handler с DI (runner, loader, каталог, store, logger)
//   - routes.go            — регистрация маршрутов
//   - middleware.go        — middleware (logging, recovery, CORS)
//   - response.go          — JSON-конверты {data} / {error} и отображение ошибок в HTTP статусы
//   - dto.go               — Data Transfer Objects (request/response)
//   - run_handler.go       — запуск flow
//   - flow_handler.go      — граф, порядок выполнения, статусы flow
//   - status_handler.go    — статус узла и WebSocket поток статусов
//   - node_type_handler.go — каталог типов узлов, проверка соединений, healthz
//
// Запуск flow синхронный: ответ приходит после завершения запуска.
// Асинхронные запуски идут через очередь runs.requested и worker.
package api
