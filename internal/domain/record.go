package domain

import (
	"maps"
	"time"
)

// ExecutionRecord — состояние выполнения одного узла.
//
// Хранится в status.Store по ID узла. Изменяется только координатором
// запуска через Store; после финального статуса заморожен до Reset.
type ExecutionRecord struct {
	// Status — текущий статус.
	Status ExecutionStatus `json:"status"`

	// Message — сообщение для UI (прогресс, причина пропуска, таймаут).
	Message string `json:"message,omitempty"`

	// StartedAt — время перехода в RUNNING.
	StartedAt *time.Time `json:"started_at,omitempty"`

	// CompletedAt — время перехода в финальный статус.
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	// Outputs — нормализованные выходные данные узла.
	Outputs map[string]any `json:"outputs,omitempty"`

	// Error — текст ошибки.
	Error string `json:"error,omitempty"`

	// Metadata — дополнительные данные (модель, токены, длительность).
	Metadata map[string]any `json:"metadata,omitempty"`
}

// NewPendingRecord возвращает запись в статусе PENDING.
func NewPendingRecord() ExecutionRecord {
	return ExecutionRecord{Status: StatusPending}
}

// Duration возвращает продолжительность выполнения.
func (r *ExecutionRecord) Duration() time.Duration {
	if r.StartedAt == nil || r.CompletedAt == nil {
		return 0
	}
	return r.CompletedAt.Sub(*r.StartedAt)
}

// IsFinished возвращает true, если узел в финальном статусе.
func (r *ExecutionRecord) IsFinished() bool {
	return r.Status.IsTerminal()
}

// Apply переводит запись в статус next с сообщением.
// Проставляет StartedAt при входе в RUNNING и CompletedAt при финальном статусе.
// Вызывающий проверяет допустимость перехода через CanTransition.
func (r *ExecutionRecord) Apply(next ExecutionStatus, message string) {
	now := time.Now()
	if next == StatusRunning && r.Status != StatusRunning {
		r.StartedAt = &now
	}
	if next.IsTerminal() {
		r.CompletedAt = &now
	}
	r.Status = next
	r.Message = message
}

// MarkFailed переводит запись в ERROR с текстом ошибки.
func (r *ExecutionRecord) MarkFailed(errMsg string) {
	r.Apply(StatusError, errMsg)
	r.Error = errMsg
}

// Clone возвращает копию записи, не разделяющую maps и указатели на время.
func (r ExecutionRecord) Clone() ExecutionRecord {
	out := r
	if r.StartedAt != nil {
		t := *r.StartedAt
		out.StartedAt = &t
	}
	if r.CompletedAt != nil {
		t := *r.CompletedAt
		out.CompletedAt = &t
	}
	out.Outputs = maps.Clone(r.Outputs)
	out.Metadata = maps.Clone(r.Metadata)
	return out
}

// ExecutionResult — нормализованный результат исполнителя узла.
type ExecutionResult struct {
	// Success — узел выполнен успешно.
	Success bool `json:"success"`

	// Outputs — выходные данные по именам портов.
	Outputs map[string]any `json:"outputs"`

	// Metadata — служебные данные выполнения.
	Metadata map[string]any `json:"metadata,omitempty"`

	// Error — текст логической ошибки при Success=false.
	Error string `json:"error,omitempty"`
}

// NewSuccessResult создаёт успешный результат.
func NewSuccessResult(outputs, metadata map[string]any) *ExecutionResult {
	if outputs == nil {
		outputs = make(map[string]any)
	}
	if metadata == nil {
		metadata = make(map[string]any)
	}
	return &ExecutionResult{Success: true, Outputs: outputs, Metadata: metadata}
}

// NewErrorResult создаёт результат с ошибкой.
func NewErrorResult(errMsg string) *ExecutionResult {
	return &ExecutionResult{
		Outputs:  make(map[string]any),
		Metadata: make(map[string]any),
		Error:    errMsg,
	}
}
