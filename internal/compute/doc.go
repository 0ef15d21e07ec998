// Package compute содержит клиентов сервиса вычислений, выполняющего узлы.
//
// Service — интерфейс, который используют исполнители узлов и координатор:
//   - Client — HTTP-клиент внешнего сервиса (JSON, Bearer-токен)
//   - Local  — выполнение узлов в текущем процессе: триггеры, AI-чат
//     через langchaingo (OpenAI, DeepSeek), распознавание речи, Telegram Bot API
//
// Логическая ошибка узла возвращается в NodeResponse со статусом error,
// а error из методов Service означает сбой транспорта.
package compute
