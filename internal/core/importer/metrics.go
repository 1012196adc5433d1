package importer

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics 匯入管線的 Prometheus 指標；nil 時所有方法皆為 no-op
type Metrics struct {
	imports         *prometheus.CounterVec
	duration        *prometheus.HistogramVec
	abstains        *prometheus.CounterVec
	strategyFailure *prometheus.CounterVec
	reconciles      *prometheus.CounterVec
}

// NewMetrics 建立並註冊指標；reg 為 nil 時不註冊（測試用）
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		imports: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "recipe_import_total",
				Help: "Total number of smart import calls by source, extraction method and outcome",
			},
			[]string{"source", "method", "outcome"},
		),
		duration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "recipe_import_duration_seconds",
				Help:    "Duration of smart import calls in seconds",
				Buckets: []float64{0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 60, 120, 300},
			},
			[]string{"source"},
		),
		abstains: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "recipe_import_abstain_total",
				Help: "Total number of imports rejected for insufficient evidence",
			},
			[]string{"source", "reason"},
		),
		strategyFailure: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "recipe_import_strategy_failures_total",
				Help: "Total number of evidence acquisition strategies that failed or returned too little text",
			},
			[]string{"strategy"},
		),
		reconciles: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "recipe_import_reconcile_total",
				Help: "Total number of AI reconciliation attempts by outcome",
			},
			[]string{"outcome"},
		),
	}
}

func (m *Metrics) observeImport(source Source, method, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	if method == "" {
		method = "none"
	}
	m.imports.WithLabelValues(string(source), method, outcome).Inc()
	m.duration.WithLabelValues(string(source)).Observe(elapsed.Seconds())
}

func (m *Metrics) observeAbstain(source Source, reason string) {
	if m == nil {
		return
	}
	m.abstains.WithLabelValues(string(source), reason).Inc()
}

func (m *Metrics) observeStrategyFailure(strategy string) {
	if m == nil {
		return
	}
	m.strategyFailure.WithLabelValues(strategy).Inc()
}

func (m *Metrics) observeReconcile(outcome string) {
	if m == nil {
		return
	}
	m.reconciles.WithLabelValues(outcome).Inc()
}
