package api

import (
	"net/http"

	"github.com/goccy/go-json"

	"github.com/shaiso/nodeflow/internal/domain"
)

// ListNodeTypes возвращает каталог типов узлов.
// GET /api/v1/node-types?category=...
func (h *Handler) ListNodeTypes(w http.ResponseWriter, r *http.Request) {
	var types []domain.NodeType
	if category := r.URL.Query().Get("category"); category != "" {
		types = h.catalog.ByCategory(domain.Category(category))
	} else {
		types = h.catalog.All()
	}
	if types == nil {
		types = []domain.NodeType{}
	}

	List(w, types, len(types))
}

// GetNodeType возвращает определение типа узла.
// GET /api/v1/node-types/{id}
func (h *Handler) GetNodeType(w http.ResponseWriter, r *http.Request) {
	t, err := h.catalog.Get(r.PathValue("id"))
	if HandleError(w, requestLogger(r, h.logger), err) {
		return
	}
	Success(w, t)
}

// ListCategories возвращает категории типов узлов с количеством типов.
// GET /api/v1/node-types/categories
func (h *Handler) ListCategories(w http.ResponseWriter, _ *http.Request) {
	categories := domain.Categories()
	result := make([]CategoryResponse, len(categories))
	for i, c := range categories {
		result[i] = CategoryResponse{ID: c, Count: len(h.catalog.ByCategory(c))}
	}
	List(w, result, len(result))
}

// ValidateConnection проверяет совместимость портов двух типов узлов.
// POST /api/v1/connections/validate
func (h *Handler) ValidateConnection(w http.ResponseWriter, r *http.Request) {
	var req ValidateConnectionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "invalid request body")
		return
	}
	if req.SourceType == "" || req.TargetType == "" {
		BadRequest(w, "source_type and target_type are required")
		return
	}

	Success(w, h.validator.Validate(req.SourceType, req.SourcePort, req.TargetType, req.TargetPort))
}

// Health отвечает на проверку живости.
// GET /healthz
func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	resp := HealthResponse{Status: "ok", NodeTypes: h.catalog.Count()}
	if h.runner != nil {
		resp.ActiveRuns = h.runner.ActiveRunsCount()
	}
	JSON(w, http.StatusOK, resp)
}
