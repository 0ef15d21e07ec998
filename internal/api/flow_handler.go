package api

import (
	"net/http"

	"github.com/shaiso/nodeflow/internal/domain"
	"github.com/shaiso/nodeflow/internal/engine"
)

// GetGraph возвращает граф flow с последними записями выполнения узлов.
// GET /api/v1/flows/{id}/graph
func (h *Handler) GetGraph(w http.ResponseWriter, r *http.Request) {
	graph, ok := h.loadGraph(w, r)
	if !ok {
		return
	}

	// Записи текущего процесса свежее сохранённых в БД
	known := make(map[string]bool)
	for _, id := range h.store.NodeIDs() {
		known[id] = true
	}
	for i := range graph.Nodes {
		if known[graph.Nodes[i].ID] {
			rec := h.store.GetState(graph.Nodes[i].ID)
			graph.Nodes[i].LastExecution = &rec
		}
	}

	Success(w, graph)
}

// GetOrder возвращает порядок выполнения flow без запуска.
// GET /api/v1/flows/{id}/order?trigger=...
func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	graph, ok := h.loadGraph(w, r)
	if !ok {
		return
	}

	triggerID, order, err := engine.ResolveRunOrder(graph, r.URL.Query().Get("trigger"), h.catalog)
	if HandleError(w, requestLogger(r, h.logger), err) {
		return
	}

	Success(w, OrderResponse{
		FlowID:        graph.FlowID,
		TriggerNodeID: triggerID,
		Order:         order,
	})
}

// GetFlowStatus возвращает статусы узлов flow и прогресс текущего запуска.
// GET /api/v1/flows/{id}/status
func (h *Handler) GetFlowStatus(w http.ResponseWriter, r *http.Request) {
	graph, ok := h.loadGraph(w, r)
	if !ok {
		return
	}

	resp := FlowStatusResponse{
		FlowID: graph.FlowID,
		Nodes:  h.store.Snapshot(graph.NodeIDs()...),
	}
	if resp.Nodes == nil {
		resp.Nodes = make(map[string]domain.ExecutionRecord)
	}
	if h.runner != nil {
		if stats, running := h.runner.GetActiveRunStats(graph.FlowID); running {
			resp.Running = true
			resp.Run = &stats
		}
	}

	Success(w, resp)
}

// loadGraph загружает граф flow из пути запроса. При ошибке пишет ответ.
func (h *Handler) loadGraph(w http.ResponseWriter, r *http.Request) (*domain.Graph, bool) {
	if h.loader == nil {
		Error(w, http.StatusServiceUnavailable, ErrCodeUnavailable, "flow storage is not configured")
		return nil, false
	}

	flowID := r.PathValue("id")
	graph, err := h.loader.LoadGraph(r.Context(), flowID)
	if HandleError(w, requestLogger(r, h.logger), err) {
		return nil, false
	}
	if graph.FlowID == "" {
		graph.FlowID = flowID
	}
	return graph, true
}
