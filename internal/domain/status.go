package domain

// ExecutionStatus — статус выполнения узла.
//
// Жизненный цикл:
//
//	PENDING → RUNNING → SUCCESS
//	                  ↘ ERROR
//	                  ↘ SKIPPED
//	(или) PENDING → SKIPPED / ERROR (узел не был запущен)
//
// Финальные статусы не меняются до явного сброса.
type ExecutionStatus string

const (
	// StatusPending — узел ожидает выполнения.
	StatusPending ExecutionStatus = "PENDING"

	// StatusRunning — узел выполняется.
	StatusRunning ExecutionStatus = "RUNNING"

	// StatusSuccess — узел успешно выполнен.
	StatusSuccess ExecutionStatus = "SUCCESS"

	// StatusError — узел завершился с ошибкой или по таймауту.
	StatusError ExecutionStatus = "ERROR"

	// StatusSkipped — узел пропущен из-за ошибки выше по цепочке.
	StatusSkipped ExecutionStatus = "SKIPPED"
)

// IsTerminal возвращает true, если статус финальный.
func (s ExecutionStatus) IsTerminal() bool {
	switch s {
	case StatusSuccess, StatusError, StatusSkipped:
		return true
	default:
		return false
	}
}

// CanTransition проверяет, допустим ли переход s → next.
//
// RUNNING → RUNNING допускается только для обновления сообщения о прогрессе.
func (s ExecutionStatus) CanTransition(next ExecutionStatus) bool {
	switch s {
	case StatusPending:
		return next == StatusRunning || next == StatusSkipped || next == StatusError
	case StatusRunning:
		return next == StatusRunning || next.IsTerminal()
	default:
		return false
	}
}

// ParseExecutionStatus парсит строку (в любом регистре) в ExecutionStatus.
// Неизвестные значения трактуются как PENDING.
func ParseExecutionStatus(s string) ExecutionStatus {
	switch s {
	case "RUNNING", "running":
		return StatusRunning
	case "SUCCESS", "success", "SUCCEEDED", "succeeded", "completed":
		return StatusSuccess
	case "ERROR", "error", "FAILED", "failed":
		return StatusError
	case "SKIPPED", "skipped":
		return StatusSkipped
	default:
		return StatusPending
	}
}
