package api

import (
	"net/http"

	"github.com/goccy/go-json"

	"github.com/shaiso/nodeflow/internal/domain"
)

// CreateRun запускает flow и ждёт завершения.
// POST /api/v1/flows/{id}/runs
func (h *Handler) CreateRun(w http.ResponseWriter, r *http.Request) {
	flowID := r.PathValue("id")

	var req CreateRunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "invalid request body")
		return
	}

	var (
		results map[string]*domain.ExecutionResult
		err     error
	)
	if req.Graph != nil {
		req.Graph.FlowID = flowID
		results, err = h.runner.Run(r.Context(), req.Graph, req.TriggerNodeID, req.TriggerInputs)
	} else {
		results, err = h.runner.RunFlow(r.Context(), flowID, req.TriggerNodeID, req.TriggerInputs)
	}
	if HandleError(w, requestLogger(r, h.logger), err) {
		return
	}

	Success(w, RunResponse{
		FlowID:  flowID,
		Status:  domain.StatusSuccess,
		Results: results,
	})
}
