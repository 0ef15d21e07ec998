package config

import (
	"log/slog"

	"github.com/shaiso/nodeflow/internal/catalog"
	"github.com/shaiso/nodeflow/internal/compute"
	"github.com/shaiso/nodeflow/internal/executor"
	"github.com/shaiso/nodeflow/internal/orchestrator"
	"github.com/shaiso/nodeflow/internal/status"
	"github.com/shaiso/nodeflow/internal/telemetry"
)

// NewComputeService создаёт сервис вычислений по COMPUTE_MODE.
func (c Config) NewComputeService(logger *slog.Logger) compute.Service {
	if c.ComputeMode == ComputeRemote {
		return compute.NewClient(compute.ClientConfig{
			BaseURL: c.ComputeURL,
			Token:   c.ComputeToken,
			Logger:  logger,
		})
	}

	local := compute.LocalConfig{
		Models: compute.NewModelFactory(compute.ProviderConfig{
			OpenAIKey:       c.OpenAIKey,
			OpenAIBaseURL:   c.OpenAIBaseURL,
			DeepSeekKey:     c.DeepSeekKey,
			DeepSeekBaseURL: c.DeepSeekBaseURL,
		}),
		Telegram: compute.NewTelegram(compute.TelegramConfig{APIURL: c.TelegramAPIURL}),
		Logger:   logger,
	}
	if c.OpenAIKey != "" {
		local.Transcriber = compute.NewOpenAITranscriber(compute.OpenAITranscriberConfig{
			APIKey:  c.OpenAIKey,
			BaseURL: c.OpenAIBaseURL,
		})
	}
	return compute.NewLocal(local)
}

// Deps — зависимости Orchestrator, которые создаёт вызывающий процесс.
type Deps struct {
	Compute compute.Service
	Catalog *catalog.Catalog
	Store   *status.Store
	Loader  orchestrator.GraphLoader
	Metrics *telemetry.Metrics
	Logger  *slog.Logger
}

// NewOrchestrator собирает Orchestrator с реестром встроенных исполнителей.
func (c Config) NewOrchestrator(d Deps) *orchestrator.Orchestrator {
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	if d.Catalog == nil {
		d.Catalog = catalog.Default()
	}
	if d.Compute == nil {
		d.Compute = c.NewComputeService(d.Logger)
	}

	return orchestrator.New(orchestrator.Config{
		Registry:    executor.DefaultRegistry(d.Compute, d.Logger),
		Store:       d.Store,
		Types:       d.Catalog,
		Compute:     d.Compute,
		Loader:      d.Loader,
		NodeTimeout: c.NodeTimeout,
		RunTimeout:  c.RunTimeout,
		Mode:        c.ExecutionMode,
		Metrics:     d.Metrics,
		Logger:      d.Logger,
	})
}
