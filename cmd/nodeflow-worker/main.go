// Nodeflow Worker — выполняет запросы на запуск flow из очереди.
//
// Worker:
//   - Получает run.requested из RabbitMQ
//   - Загружает граф из сообщения или из PostgreSQL
//   - Выполняет flow через orchestrator
//   - Публикует run.completed и события статусов узлов
//
// Workers масштабируются горизонтально.
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

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/shaiso/nodeflow/internal/config"
	"github.com/shaiso/nodeflow/internal/mq"
	"github.com/shaiso/nodeflow/internal/orchestrator"
	"github.com/shaiso/nodeflow/internal/repo"
	"github.com/shaiso/nodeflow/internal/status"
	"github.com/shaiso/nodeflow/internal/telemetry"
	"github.com/shaiso/nodeflow/internal/worker"
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
		Service: "nodeflow-worker",
	})
	logger.Info("starting nodeflow-worker")

	// graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("nodeflow-worker failed", "error", err)
		os.Exit(1)
	}
	logger.Info("nodeflow-worker stopped")
}

func run(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	// RabbitMQ обязателен: без очереди worker не получает запусков.
	mqConn, err := mq.Dial(mq.ConnectionConfig{
		URL:    cfg.RabbitMQURL,
		Name:   "nodeflow-worker",
		Logger: logger,
	})
	if err != nil {
		return err
	}
	defer mqConn.Close()
	logger.Info("RabbitMQ connected")

	if err := mq.SetupTopology(ctx, mqConn); err != nil {
		logger.Warn("failed to setup topology", "error", err)
	} else {
		logger.Debug("topology declared", "topology", mq.TopologyInfo())
	}
	publisher := mq.NewPublisher(mqConn, logger)

	store := status.NewStore()
	metrics := telemetry.NewMetrics(nil)
	detach := metrics.Attach(store)
	defer detach()

	g, gctx := errgroup.WithContext(ctx)

	var loader orchestrator.GraphLoader
	pool, err := repo.NewPool(ctx, cfg.DBURL)
	if err != nil {
		logger.Warn("database not available, only inline graphs are accepted", "error", err)
	} else {
		defer pool.Close()
		logger.Info("database connected")

		graphs := repo.NewGraphRepo(pool)
		loader = graphs

		recorder := repo.NewExecutionRecorder(graphs, logger)
		g.Go(func() error { return recorder.Run(gctx, store) })
	}

	relay := mq.NewStatusRelay(mq.RelayConfig{Publisher: publisher, Logger: logger})
	g.Go(func() error { return relay.Run(gctx, store) })

	orch := cfg.NewOrchestrator(config.Deps{
		Store:   store,
		Loader:  loader,
		Metrics: metrics,
		Logger:  logger,
	})

	w := worker.New(worker.Config{
		Runner:    orch,
		Publisher: publisher,
		Conn:      mqConn,
		Logger:    logger,
	})
	if err := w.Start(gctx); err != nil {
		return err
	}

	// HTTP mux: /healthz + /metrics
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, _ *http.Request) {
		if w.IsStopped() || !mqConn.IsConnected() {
			rw.WriteHeader(http.StatusServiceUnavailable)
			rw.Write([]byte("unavailable"))
			return
		}
		rw.WriteHeader(http.StatusOK)
		rw.Write([]byte("ok"))
	})
	mux.Handle("/metrics", promhttp.HandlerFor(prometheus.DefaultGatherer, promhttp.HandlerOpts{}))

	server := &http.Server{
		Addr:              cfg.MetricsAddr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g.Go(func() error {
		logger.Info("listening", "addr", cfg.MetricsAddr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()

		// Останавливаем worker до закрытия соединения с брокером
		w.Stop()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		return server.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
