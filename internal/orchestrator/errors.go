package orchestrator

import (
	"errors"
	"time"
)

// Ошибки оркестратора.
var (
	// ErrRunInProgress — для flow уже выполняется запуск.
	ErrRunInProgress = errors.New("run already in progress")

	// ErrTimeout — истёк дедлайн узла или всего запуска.
	ErrTimeout = errors.New("execution timed out")

	// ErrCancelled — контекст вызывающего отменён во время запуска.
	ErrCancelled = errors.New("run cancelled")

	// ErrNoLoader — RunFlow вызван без GraphLoader.
	ErrNoLoader = errors.New("graph loader not configured")

	// ErrEmptyResponse — сервис вычислений вернул пустой ответ на выполнение flow.
	ErrEmptyResponse = errors.New("empty flow response")
)

// Сообщения для UI.
const (
	skippedMessage     = "Skipped due to previous error"
	runTimeoutMessage  = "Flow execution is taking longer than expected"
	missingMessage     = "No result returned for node"
	cancelledMessage   = "Flow execution cancelled"
	nodeFailedFallback = "Node execution failed"
)

// TimeoutScope — к чему относится таймаут.
type TimeoutScope string

const (
	ScopeNode TimeoutScope = "node"
	ScopeRun  TimeoutScope = "run"
)

// TimeoutError — истёк дедлайн узла или запуска.
type TimeoutError struct {
	Scope   TimeoutScope
	NodeID  string        // узел, выполнявшийся в момент истечения
	After   time.Duration // сработавший дедлайн
	Message string
}

// Error реализует интерфейс error.
func (e *TimeoutError) Error() string {
	return e.Message
}

// Unwrap позволяет проверять errors.Is(err, ErrTimeout).
func (e *TimeoutError) Unwrap() error {
	return ErrTimeout
}
