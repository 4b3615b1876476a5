// Package metrics provides Prometheus metrics for the market engine. A
// single EngineMetrics instance is created per process and shared by the
// HTTP layer, the maintenance loops, and the Collector, which derives the
// engine-level series from signal-bus events so the services themselves
// stay metrics-free.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// EngineMetrics collects and exposes engine-level Prometheus metrics.
type EngineMetrics struct {
	registry *prometheus.Registry

	// Operation metrics
	OperationsTotal   *prometheus.CounterVec
	OperationDuration *prometheus.HistogramVec
	OperationErrors   *prometheus.CounterVec

	// Market metrics
	MarketsByStatus  *prometheus.GaugeVec
	TotalValueStaked prometheus.Gauge
	ProtocolFees     prometheus.Gauge

	// Bet metrics
	BetsTotal *prometheus.CounterVec
	BetAmount *prometheus.HistogramVec

	// AMM metrics
	SwapsTotal      prometheus.Counter
	LiquidityEvents *prometheus.CounterVec

	// Dispute metrics
	DisputesTotal *prometheus.CounterVec

	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
}

// New creates an engine metrics collector backed by its own registry.
func New() *EngineMetrics {
	registry := prometheus.NewRegistry()

	em := &EngineMetrics{
		registry: registry,

		OperationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "marketd_operations_total",
				Help: "Total engine operations by kind and result",
			},
			[]string{"op", "result"},
		),
		OperationDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "marketd_operation_duration_seconds",
				Help:    "Engine operation latency",
				Buckets: prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~4s
			},
			[]string{"op"},
		),
		OperationErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "marketd_operation_errors_total",
				Help: "Engine operation failures by kind",
			},
			[]string{"op"},
		),

		MarketsByStatus: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "marketd_markets",
				Help: "Current number of markets by lifecycle status",
			},
			[]string{"status"},
		),
		TotalValueStaked: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "marketd_total_value_staked",
				Help: "Sum of all open market pools in base units",
			},
		),
		ProtocolFees: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "marketd_protocol_fees_accrued",
				Help: "Accrued protocol fees in base units",
			},
		),

		BetsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "marketd_bets_total",
				Help: "Total bets placed by market type",
			},
			[]string{"market_type"},
		),
		BetAmount: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "marketd_bet_amount",
				Help:    "Bet stake size in base units",
				Buckets: []float64{10, 50, 100, 500, 1000, 5000, 10000, 50000, 100000},
			},
			[]string{"market_type"},
		),

		SwapsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "marketd_swaps_total",
				Help: "Total share swaps executed through the AMM",
			},
		),
		LiquidityEvents: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "marketd_liquidity_events_total",
				Help: "AMM liquidity additions and removals",
			},
			[]string{"direction"},
		),

		DisputesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "marketd_disputes_total",
				Help: "Dispute outcomes by result",
			},
			[]string{"result"},
		),

		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "marketd_http_requests_total",
				Help: "HTTP requests by method, route, and status class",
			},
			[]string{"method", "route", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "marketd_http_request_duration_seconds",
				Help:    "HTTP request latency by route",
				Buckets: prometheus.ExponentialBuckets(0.0005, 2, 14), // 0.5ms to ~8s
			},
			[]string{"method", "route"},
		),
	}

	em.registerAll()
	return em
}

func (em *EngineMetrics) registerAll() {
	em.registry.MustRegister(
		em.OperationsTotal,
		em.OperationDuration,
		em.OperationErrors,
		em.MarketsByStatus,
		em.TotalValueStaked,
		em.ProtocolFees,
		em.BetsTotal,
		em.BetAmount,
		em.SwapsTotal,
		em.LiquidityEvents,
		em.DisputesTotal,
		em.HTTPRequestsTotal,
		em.HTTPRequestDuration,
	)
}

// Registry returns the prometheus registry for exposition.
func (em *EngineMetrics) Registry() *prometheus.Registry {
	return em.registry
}

// RecordOperation records one engine operation with its latency and result.
func (em *EngineMetrics) RecordOperation(op string, durationSec float64, err error) {
	result := "ok"
	if err != nil {
		result = "error"
		em.OperationErrors.WithLabelValues(op).Inc()
	}
	em.OperationsTotal.WithLabelValues(op, result).Inc()
	em.OperationDuration.WithLabelValues(op).Observe(durationSec)
}

// RecordBet records a placed bet.
func (em *EngineMetrics) RecordBet(marketType string, amount uint64) {
	em.BetsTotal.WithLabelValues(marketType).Inc()
	em.BetAmount.WithLabelValues(marketType).Observe(float64(amount))
}

// RecordDispute records a settled dispute outcome.
func (em *EngineMetrics) RecordDispute(upheld bool) {
	result := "rejected"
	if upheld {
		result = "upheld"
	}
	em.DisputesTotal.WithLabelValues(result).Inc()
}
