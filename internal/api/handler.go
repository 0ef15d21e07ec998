package api

import (
	"context"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/shaiso/nodeflow/internal/catalog"
	"github.com/shaiso/nodeflow/internal/domain"
	"github.com/shaiso/nodeflow/internal/engine"
	"github.com/shaiso/nodeflow/internal/orchestrator"
	"github.com/shaiso/nodeflow/internal/status"
)

// Runner запускает flow. Реализуется orchestrator.Orchestrator.
type Runner interface {
	Run(ctx context.Context, graph *domain.Graph, triggerNodeID string, triggerInputs map[string]any) (map[string]*domain.ExecutionResult, error)
	RunFlow(ctx context.Context, flowID, triggerNodeID string, triggerInputs map[string]any) (map[string]*domain.ExecutionResult, error)
	Active(flowID string) bool
	ActiveRunsCount() int
	GetActiveRunStats(flowID string) (orchestrator.RunStats, bool)
}

// Handler — главный обработчик API с зависимостями.
type Handler struct {
	runner    Runner
	loader    orchestrator.GraphLoader
	catalog   *catalog.Catalog
	store     *status.Store
	validator *engine.ConnectionValidator
	gatherer  prometheus.Gatherer
	origins   []string
	logger    *slog.Logger
}

// Config — конфигурация для создания Handler.
type Config struct {
	Runner Runner

	// Loader — источник сохранённых графов. Без него запуск возможен
	// только с графом в теле запроса.
	Loader orchestrator.GraphLoader

	Catalog *catalog.Catalog
	Store   *status.Store

	// Gatherer — источник метрик для /metrics (default: prometheus.DefaultGatherer).
	Gatherer prometheus.Gatherer

	// CORSOrigins — разрешённые origin. Пустой список разрешает все.
	CORSOrigins []string

	Logger *slog.Logger
}

// NewHandler создаёт новый Handler.
func NewHandler(cfg Config) *Handler {
	if cfg.Catalog == nil {
		cfg.Catalog = catalog.Default()
	}
	if cfg.Store == nil {
		cfg.Store = status.NewStore()
	}
	if cfg.Gatherer == nil {
		cfg.Gatherer = prometheus.DefaultGatherer
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &Handler{
		runner:    cfg.Runner,
		loader:    cfg.Loader,
		catalog:   cfg.Catalog,
		store:     cfg.Store,
		validator: engine.NewConnectionValidator(cfg.Catalog),
		gatherer:  cfg.Gatherer,
		origins:   cfg.CORSOrigins,
		logger:    cfg.Logger,
	}
}
