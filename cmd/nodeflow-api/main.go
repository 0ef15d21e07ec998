// Nodeflow API — HTTP API запуска flows и наблюдения за статусами узлов.
//
// API:
//   - Принимает запросы на запуск flow (граф из тела или из БД)
//   - Выполняет узлы через orchestrator в процессе
//   - Отдаёт статусы узлов по REST и WebSocket
//   - Сохраняет итоги выполнения узлов в PostgreSQL
//   - Публикует события статусов в RabbitMQ
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/shaiso/nodeflow/internal/api"
	"github.com/shaiso/nodeflow/internal/config"
	"github.com/shaiso/nodeflow/internal/mq"
	"github.com/shaiso/nodeflow/internal/orchestrator"
	"github.com/shaiso/nodeflow/internal/repo"
	"github.com/shaiso/nodeflow/internal/status"
	"github.com/shaiso/nodeflow/internal/telemetry"
)

func main() {
	// Логгер по окружению до чтения .env, чтобы сообщить об ошибке конфигурации
	logger := telemetry.SetupLogger()

	cfg, err := config.Load()
	if err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	// Инициализируем structured logging
	logger = telemetry.NewLogger(telemetry.LoggerOptions{
		Level:   cfg.LogLevel,
		Format:  cfg.LogFormat,
		Service: "nodeflow-api",
	})
	logger.Info("starting nodeflow-api")

	// graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("nodeflow-api failed", "error", err)
		os.Exit(1)
	}
	logger.Info("nodeflow-api stopped")
}

func run(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	store := status.NewStore()
	metrics := telemetry.NewMetrics(nil)
	detach := metrics.Attach(store)
	defer detach()

	g, gctx := errgroup.WithContext(ctx)

	// База данных необязательна: без неё доступен запуск графа из тела запроса.
	var loader orchestrator.GraphLoader
	pool, err := repo.NewPool(ctx, cfg.DBURL)
	if err != nil {
		logger.Warn("database not available, stored flows disabled", "error", err)
	} else {
		defer pool.Close()
		logger.Info("database connected")

		graphs := repo.NewGraphRepo(pool)
		loader = graphs

		recorder := repo.NewExecutionRecorder(graphs, logger)
		g.Go(func() error { return recorder.Run(gctx, store) })
	}

	mqConn, err := mq.Dial(mq.ConnectionConfig{
		URL:    cfg.RabbitMQURL,
		Name:   "nodeflow-api",
		Logger: logger,
	})
	if err != nil {
		logger.Warn("RabbitMQ not available, status events are not published", "error", err)
	} else {
		defer mqConn.Close()
		logger.Info("RabbitMQ connected")

		if err := mq.SetupTopology(ctx, mqConn); err != nil {
			logger.Warn("failed to setup topology", "error", err)
		}

		relay := mq.NewStatusRelay(mq.RelayConfig{
			Publisher: mq.NewPublisher(mqConn, logger),
			Logger:    logger,
		})
		g.Go(func() error { return relay.Run(gctx, store) })
	}

	orch := cfg.NewOrchestrator(config.Deps{
		Store:   store,
		Loader:  loader,
		Metrics: metrics,
		Logger:  logger,
	})

	handler := api.NewHandler(api.Config{
		Runner:      orch,
		Loader:      loader,
		Store:       store,
		CORSOrigins: cfg.CORSOrigins,
		Logger:      logger,
	})

	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           handler.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g.Go(func() error {
		logger.Info("listening", "addr", cfg.HTTPAddr, "execution_mode", cfg.ExecutionMode, "compute_mode", cfg.ComputeMode)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")

		// Graceful shutdown с таймаутом 10 секунд
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		return server.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
