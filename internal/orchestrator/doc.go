// Package orchestrator координирует запуски flow.
//
// Orchestrator отвечает за:
//   - Поиск trigger и порядок выполнения (через engine)
//   - Защиту от параллельного запуска одного flow
//   - Последовательное выполнение узлов с дедлайнами узла и запуска
//   - Каскад пропусков после первой ошибки
//   - Сверку результатов сервера в режиме ModeServer
//
// Дедлайны реализованы гонкой результата и таймера: исполнитель
// не прерывается, его поздние результаты отбрасывает RunState.
package orchestrator
