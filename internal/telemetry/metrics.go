package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/shaiso/nodeflow/internal/status"
)

// Исходы запуска для метки outcome.
const (
	OutcomeSuccess  = "success"
	OutcomeFailed   = "failed"
	OutcomeTimeout  = "timeout"
	OutcomeRejected = "rejected"
)

// Metrics — Prometheus метрики выполнения flow.
type Metrics struct {
	NodeTransitions *prometheus.CounterVec
	NodeDuration    *prometheus.HistogramVec
	RunsTotal       *prometheus.CounterVec
	RunDuration     prometheus.Histogram
	ActiveRuns      prometheus.Gauge
}

// NewMetrics регистрирует метрики в reg.
// nil — prometheus.DefaultRegisterer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		NodeTransitions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "nodeflow_node_transitions_total",
				Help: "Total number of node status transitions",
			},
			[]string{"status"},
		),
		NodeDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "nodeflow_node_duration_seconds",
				Help:    "Duration of node executions in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"status"},
		),
		RunsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "nodeflow_runs_total",
				Help: "Total number of flow runs by outcome",
			},
			[]string{"outcome"},
		),
		RunDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "nodeflow_run_duration_seconds",
				Help:    "Duration of flow runs in seconds",
				Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
			},
		),
		ActiveRuns: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "nodeflow_active_runs",
				Help: "Number of flow runs in progress",
			},
		),
	}
}

// Attach подписывает метрики на события Store. Возвращает функцию отписки.
func (m *Metrics) Attach(store *status.Store) func() {
	return store.SubscribeAll(m.observeEvent)
}

func (m *Metrics) observeEvent(ev status.Event) {
	if ev.Previous == ev.Record.Status {
		return
	}
	st := string(ev.Record.Status)
	m.NodeTransitions.WithLabelValues(st).Inc()

	if ev.Record.Status.IsTerminal() && ev.Record.StartedAt != nil {
		m.NodeDuration.WithLabelValues(st).Observe(ev.Record.Duration().Seconds())
	}
}

// RunStarted отмечает начало запуска.
func (m *Metrics) RunStarted() {
	m.ActiveRuns.Inc()
}

// RunFinished отмечает завершение запуска с исходом outcome.
func (m *Metrics) RunFinished(outcome string, d time.Duration) {
	m.ActiveRuns.Dec()
	m.RunsTotal.WithLabelValues(outcome).Inc()
	m.RunDuration.Observe(d.Seconds())
}

// RunRejected отмечает запуск, отклонённый до начала выполнения.
func (m *Metrics) RunRejected() {
	m.RunsTotal.WithLabelValues(OutcomeRejected).Inc()
}
