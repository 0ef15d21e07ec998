package api

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RegisterRoutes регистрирует все маршруты API.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	// Middleware chain
	chain := Chain(
		Recovery(h.logger),
		Logging(h.logger),
	)

	// Runs
	mux.Handle("POST /api/v1/flows/{id}/runs", chain(http.HandlerFunc(h.CreateRun)))

	// Flows
	mux.Handle("GET /api/v1/flows/{id}/graph", chain(http.HandlerFunc(h.GetGraph)))
	mux.Handle("GET /api/v1/flows/{id}/order", chain(http.HandlerFunc(h.GetOrder)))
	mux.Handle("GET /api/v1/flows/{id}/status", chain(http.HandlerFunc(h.GetFlowStatus)))

	// Node status
	mux.Handle("GET /api/v1/nodes/{id}/status", chain(http.HandlerFunc(h.GetNodeStatus)))
	mux.Handle("GET /api/v1/status/stream", chain(http.HandlerFunc(h.StreamStatus)))

	// Node types
	mux.Handle("GET /api/v1/node-types", chain(http.HandlerFunc(h.ListNodeTypes)))
	mux.Handle("GET /api/v1/node-types/categories", chain(http.HandlerFunc(h.ListCategories)))
	mux.Handle("GET /api/v1/node-types/{id}", chain(http.HandlerFunc(h.GetNodeType)))

	// Connections
	mux.Handle("POST /api/v1/connections/validate", chain(http.HandlerFunc(h.ValidateConnection)))

	// Service
	mux.Handle("GET /healthz", http.HandlerFunc(h.Health))
	mux.Handle("GET /metrics", promhttp.HandlerFor(h.gatherer, promhttp.HandlerOpts{}))
}

// Routes возвращает готовый к обслуживанию http.Handler.
func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()
	h.RegisterRoutes(mux)
	return CORS(h.origins)(mux)
}
