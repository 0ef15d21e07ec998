package compute

import (
	"errors"
	"fmt"
)

var (
	// ErrRequest — сбой HTTP-запроса к сервису вычислений.
	ErrRequest = errors.New("compute request failed")

	// ErrNoHandler — для типа узла нет обработчика.
	ErrNoHandler = errors.New("no execution handler for node type")

	// ErrUnsupported — операция не поддерживается реализацией.
	ErrUnsupported = errors.New("operation not supported")

	// ErrMissingAPIKey — не задан ключ API провайдера модели.
	ErrMissingAPIKey = errors.New("api key is not configured")
)

// HTTPStatusError — сервис ответил HTTP-статусом >= 400.
type HTTPStatusError struct {
	StatusCode int
	Body       string
}

// Error реализует интерфейс error.
func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("compute service returned HTTP %d: %s", e.StatusCode, e.Body)
}

// Unwrap позволяет errors.Is(err, ErrRequest).
func (e *HTTPStatusError) Unwrap() error {
	return ErrRequest
}
