package api

import (
	"github.com/shaiso/nodeflow/internal/domain"
	"github.com/shaiso/nodeflow/internal/orchestrator"
)

// Run DTOs

// CreateRunRequest — запрос на запуск flow.
//
// Если Graph не задан, граф загружается из хранилища по ID flow.
type CreateRunRequest struct {
	TriggerNodeID string         `json:"trigger_node_id,omitempty"`
	TriggerInputs map[string]any `json:"trigger_inputs"`
	Graph         *domain.Graph  `json:"graph,omitempty"`
}

// RunResponse — итог успешного запуска.
type RunResponse struct {
	FlowID  string                             `json:"flow_id"`
	Status  domain.ExecutionStatus             `json:"status"`
	Results map[string]*domain.ExecutionResult `json:"results"`
}

// Flow DTOs

// OrderResponse — предпросмотр порядка выполнения.
type OrderResponse struct {
	FlowID        string   `json:"flow_id"`
	TriggerNodeID string   `json:"trigger_node_id"`
	Order         []string `json:"order"`
}

// FlowStatusResponse — статусы узлов flow.
type FlowStatusResponse struct {
	FlowID  string                            `json:"flow_id"`
	Running bool                              `json:"running"`
	Run     *orchestrator.RunStats            `json:"run,omitempty"`
	Nodes   map[string]domain.ExecutionRecord `json:"nodes"`
}

// NodeStatusResponse — статус одного узла.
type NodeStatusResponse struct {
	NodeID string `json:"node_id"`
	domain.ExecutionRecord
}

// Node type DTOs

// CategoryResponse — категория типов узлов.
type CategoryResponse struct {
	ID    domain.Category `json:"id"`
	Count int             `json:"count"`
}

// ValidateConnectionRequest — запрос на проверку соединения портов.
type ValidateConnectionRequest struct {
	SourceType string `json:"source_type"`
	SourcePort string `json:"source_port"`
	TargetType string `json:"target_type"`
	TargetPort string `json:"target_port"`
}

// HealthResponse — ответ /healthz.
type HealthResponse struct {
	Status     string `json:"status"`
	ActiveRuns int    `json:"active_runs"`
	NodeTypes  int    `json:"node_types"`
}
