package engine

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	// Latency: сколько времени заняла обработка (включая failover)
	RequestDuration *prometheus.HistogramVec

	// Traffic: общее кол-во запросов по процессорам
	TotalRequests *prometheus.CounterVec

	// Errors: классификация отказов
	ErrorTotal *prometheus.CounterVec

	// Saturation: состояние Circuit Breaker (0 - ок, 1 - выбило)
	CircuitBreakerState *prometheus.GaugeVec

	// Audit: заполненность буфера (backpressure)
	AuditBufferFill prometheus.Gauge

	// Cache: попадания и промахи кэша валидации
	CacheOps *prometheus.CounterVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	// Null Object Pattern - Если рег не передан, используем локальный, который никуда не подключен
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	return &Metrics{
		RequestDuration: promauto.With(reg).NewHistogramVec(prometheus.HistogramOpts{
			Name:    "strictgate_request_duration_seconds",
			Help:    "Histogram of processing latencies.",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		}, []string{"processor", "status"}),

		TotalRequests: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "strictgate_requests_total",
			Help: "Total number of processed requests.",
		}, []string{"processor"}),

		ErrorTotal: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "strictgate_errors_total",
			Help: "Total number of errors by type.",
		}, []string{"type"}), // типы: validation, backend, rate_limit, circuit_open, failover

		CircuitBreakerState: promauto.With(reg).NewGaugeVec(prometheus.GaugeOpts{
			Name: "strictgate_circuit_breaker_state",
			Help: "Current state of the circuit breaker (0=closed, 1=open).",
		}, []string{"processor"}),

		AuditBufferFill: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Name: "strictgate_audit_buffer_utilization",
			Help: "Current number of events in audit buffer.",
		}),

		CacheOps: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "strictgate_cache_operations_total",
			Help: "Validation cache operations by outcome.",
		}, []string{"outcome"}), // hit, miss, error
	}
}
