package compute

import (
	"context"
	"time"
)

// Статусы ответа сервиса вычислений.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Service — внешний сервис вычислений, выполняющий узлы.
//
// Исполнители узлов вызывают ExecuteNode; координатор в серверном режиме
// вызывает ExecuteFlow и сверяет execution_results со своим порядком.
type Service interface {
	// ExecuteNode выполняет один узел.
	// Логическая ошибка узла возвращается в NodeResponse (Status=error),
	// error — только для сбоев транспорта.
	ExecuteNode(ctx context.Context, req NodeRequest) (*NodeResponse, error)

	// ExecuteFlow выполняет весь flow на стороне сервиса.
	ExecuteFlow(ctx context.Context, flowID string, triggerInputs map[string]any) (*FlowResponse, error)
}

// NodeRequest — запрос на выполнение узла.
type NodeRequest struct {
	FlowID   string         `json:"flow_id"`
	NodeID   string         `json:"node_id"`
	TypeID   string         `json:"node_type"`
	Inputs   map[string]any `json:"inputs"`
	Settings map[string]any `json:"settings"`
}

// NodeResponse — ответ сервиса на выполнение узла.
type NodeResponse struct {
	Status      string         `json:"status"`
	Outputs     map[string]any `json:"outputs"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	Error       string         `json:"error,omitempty"`
	Logs        []string       `json:"logs,omitempty"`
	StartedAt   *time.Time     `json:"started_at,omitempty"`
	CompletedAt *time.Time     `json:"completed_at,omitempty"`
}

// OK возвращает true, если узел выполнен успешно.
func (r *NodeResponse) OK() bool {
	if r.Error != "" {
		return false
	}
	return r.Status == "" || r.Status == StatusSuccess || r.Status == "completed"
}

// FlowResponse — ответ сервиса на выполнение всего flow.
type FlowResponse struct {
	FlowID           string                   `json:"flow_id"`
	Status           string                   `json:"status"`
	ExecutionResults map[string]*NodeResponse `json:"execution_results"`
	Error            string                   `json:"error,omitempty"`
}

// Success создаёт успешный ответ.
func Success(outputs map[string]any, logs ...string) *NodeResponse {
	if outputs == nil {
		outputs = make(map[string]any)
	}
	now := time.Now().UTC()
	return &NodeResponse{
		Status:      StatusSuccess,
		Outputs:     outputs,
		Metadata:    make(map[string]any),
		Logs:        logs,
		CompletedAt: &now,
	}
}

// Failure создаёт ответ с логической ошибкой узла.
func Failure(msg string) *NodeResponse {
	now := time.Now().UTC()
	return &NodeResponse{
		Status:      StatusError,
		Outputs:     make(map[string]any),
		Error:       msg,
		CompletedAt: &now,
	}
}
