// Package worker выполняет запросы на запуск flow из очереди.
//
// # Обзор
//
// Worker — stateless компонент системы Nodeflow. Он потребляет
// run.requested из очереди runs.requested, выполняет flow через
// orchestrator и публикует run.completed.
//
//	w := worker.New(worker.Config{
//	    Runner:    orch,
//	    Publisher: publisher,
//	    Conn:      mqConn,
//	    Logger:    logger,
//	})
//
//	if err := w.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer w.Stop()
//
// # Обработка запроса
//
//  1. Парсинг payload (ошибка → DLQ)
//  2. Граф из сообщения или загрузка по flow_id
//  3. Запуск; если flow уже выполняется — повтор с backoff
//  4. Публикация run.completed (SUCCESS или ERROR)
//
// Ошибка выполнения flow не является ошибкой обработки сообщения:
// сообщение подтверждается, ошибка уходит в run.completed.
//
// # Retry
//
// Стратегии backoff:
//   - "exponential": delay = initialDelay * 2^(attempt-1), capped at maxDelay
//   - "fixed": delay = initialDelay
package worker
