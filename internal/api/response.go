package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/goccy/go-json"

	"github.com/shaiso/nodeflow/internal/catalog"
	"github.com/shaiso/nodeflow/internal/engine"
	"github.com/shaiso/nodeflow/internal/executor"
	"github.com/shaiso/nodeflow/internal/orchestrator"
	"github.com/shaiso/nodeflow/internal/repo"
)

// ErrorCode — код ошибки API.
type ErrorCode string

const (
	ErrCodeBadRequest       ErrorCode = "BAD_REQUEST"
	ErrCodeNotFound         ErrorCode = "NOT_FOUND"
	ErrCodeConflict         ErrorCode = "RUN_IN_PROGRESS"
	ErrCodeInvalidConfig    ErrorCode = "INVALID_CONFIGURATION"
	ErrCodeValidationFailed ErrorCode = "VALIDATION_FAILED"
	ErrCodeNodeFailed       ErrorCode = "NODE_FAILED"
	ErrCodeTimeout          ErrorCode = "TIMEOUT"
	ErrCodeCancelled        ErrorCode = "CANCELLED"
	ErrCodeUnavailable      ErrorCode = "UNAVAILABLE"
	ErrCodeInternalError    ErrorCode = "INTERNAL_ERROR"
)

// ErrorResponse — структура ответа с ошибкой.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail — детали ошибки.
type ErrorDetail struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	NodeID  string    `json:"node_id,omitempty"`
}

// DataResponse — структура успешного ответа.
type DataResponse struct {
	Data any `json:"data"`
}

// ListResponse — структура ответа со списком.
type ListResponse struct {
	Data  any `json:"data"`
	Total int `json:"total"`
}

// JSON отправляет JSON ответ.
func JSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// Success отправляет успешный ответ с данными.
func Success(w http.ResponseWriter, data any) {
	JSON(w, http.StatusOK, DataResponse{Data: data})
}

// List отправляет ответ со списком.
func List(w http.ResponseWriter, data any, total int) {
	JSON(w, http.StatusOK, ListResponse{Data: data, Total: total})
}

// Error отправляет ответ с ошибкой.
func Error(w http.ResponseWriter, status int, code ErrorCode, message string) {
	JSON(w, status, ErrorResponse{
		Error: ErrorDetail{
			Code:    code,
			Message: message,
		},
	})
}

// BadRequest отправляет ошибку 400.
func BadRequest(w http.ResponseWriter, message string) {
	Error(w, http.StatusBadRequest, ErrCodeBadRequest, message)
}

// NotFound отправляет ошибку 404.
func NotFound(w http.ResponseWriter, message string) {
	Error(w, http.StatusNotFound, ErrCodeNotFound, message)
}

// InternalError отправляет ошибку 500.
func InternalError(w http.ResponseWriter, logger *slog.Logger, err error) {
	logger.Error("internal error", "error", err)
	Error(w, http.StatusInternalServerError, ErrCodeInternalError, "internal server error")
}

// HandleError преобразует ошибку запуска или загрузки графа в HTTP ответ.
//
//	409 — flow уже выполняется
//	422 — ошибка конфигурации, валидации или узла
//	504 — превышено время запуска
func HandleError(w http.ResponseWriter, logger *slog.Logger, err error) bool {
	if err == nil {
		return false
	}

	var (
		cfgErr     *engine.ConfigurationError
		validErr   *engine.ValidationError
		nodeErr    *executor.NodeError
		timeoutErr *orchestrator.TimeoutError
	)

	switch {
	case errors.Is(err, orchestrator.ErrRunInProgress):
		Error(w, http.StatusConflict, ErrCodeConflict, "flow is already running")
	case errors.As(err, &timeoutErr):
		status := http.StatusUnprocessableEntity
		if timeoutErr.Scope == orchestrator.ScopeRun {
			status = http.StatusGatewayTimeout
		}
		writeNodeError(w, status, ErrCodeTimeout, timeoutErr.Message, timeoutErr.NodeID)
	case errors.As(err, &cfgErr):
		writeNodeError(w, http.StatusUnprocessableEntity, ErrCodeInvalidConfig, cfgErr.Message, cfgErr.NodeID)
	case errors.As(err, &validErr):
		writeNodeError(w, http.StatusUnprocessableEntity, ErrCodeValidationFailed, validErr.Message, validErr.NodeID)
	case errors.As(err, &nodeErr):
		writeNodeError(w, http.StatusUnprocessableEntity, ErrCodeNodeFailed, nodeErr.Message, nodeErr.NodeID)
	case errors.Is(err, repo.ErrNotFound):
		NotFound(w, "flow not found")
	case errors.Is(err, catalog.ErrNodeTypeNotFound):
		NotFound(w, err.Error())
	case errors.Is(err, orchestrator.ErrNoLoader):
		BadRequest(w, "graph is required: flow storage is not configured")
	case errors.Is(err, orchestrator.ErrCancelled):
		Error(w, http.StatusServiceUnavailable, ErrCodeCancelled, "Flow execution cancelled")
	default:
		InternalError(w, logger, err)
	}
	return true
}

func writeNodeError(w http.ResponseWriter, status int, code ErrorCode, message, nodeID string) {
	JSON(w, status, ErrorResponse{
		Error: ErrorDetail{
			Code:    code,
			Message: message,
			NodeID:  nodeID,
		},
	})
}
