package executor

import "errors"

// Ошибки исполнителей.
var (
	// ErrExecutorNotFound — для типа узла нет зарегистрированного исполнителя.
	// Вызывающий переходит на универсальный исполнитель.
	ErrExecutorNotFound = errors.New("executor not found")

	// ErrNodeFailed — сервис вычислений вернул логическую ошибку узла.
	ErrNodeFailed = errors.New("node execution failed")

	// ErrInvalidOutput — ответ сервиса не содержит ожидаемых данных.
	ErrInvalidOutput = errors.New("invalid node output")
)

// NodeError — ошибка выполнения узла с сообщением для пользователя.
type NodeError struct {
	NodeID  string // ID узла
	Message string // текст ошибки, показываемый в UI
	Err     error  // базовая ошибка
}

// Error возвращает сообщение для пользователя.
func (e *NodeError) Error() string {
	return e.Message
}

// Unwrap возвращает базовую ошибку.
func (e *NodeError) Unwrap() error {
	return e.Err
}
