package engine

import (
	"context"
	"time"

	"github.com/xela07ax/strictgate/internal/integrity"
	"github.com/xela07ax/strictgate/internal/processors"
	"go.uber.org/zap"
)

// HealthView — срез здоровья процессоров для диспетчера.
// Реализуется HealthManager, в тестах — заглушкой.
type HealthView interface {
	IsDegraded(name string) bool
}

type alwaysHealthy struct{}

func (alwaysHealthy) IsDegraded(string) bool { return false }

// Manager — диспетчер процессоров: маршрутизация запроса по порогу
// токенов, учет здоровья бэкендов и один failover-повтор на
// противоположную сторону.
type Manager struct {
	cloud    processors.Processor
	local    processors.Processor
	failover integrity.FailoverConfig
	health   HealthView
	metrics  *Metrics
	logger   *zap.Logger
}

func NewManager(cloud, local processors.Processor, failover integrity.FailoverConfig, health HealthView, metrics *Metrics, logger *zap.Logger) *Manager {
	if health == nil {
		health = alwaysHealthy{}
	}
	if metrics == nil {
		metrics = NewMetrics(nil)
	}
	return &Manager{
		cloud:    cloud,
		local:    local,
		failover: failover,
		health:   health,
		metrics:  metrics,
		logger:   logger.Named("manager"),
	}
}

// FailoverConfig — активные параметры резервирования.
func (m *Manager) FailoverConfig() integrity.FailoverConfig { return m.failover }

func (m *Manager) processorFor(pt integrity.ProcessorType) processors.Processor {
	if pt == integrity.ProcessorCloud {
		return m.cloud
	}
	return m.local
}

func opposite(pt integrity.ProcessorType) integrity.ProcessorType {
	if pt == integrity.ProcessorCloud {
		return integrity.ProcessorLocal
	}
	return integrity.ProcessorCloud
}

// Route — чистое решение маршрутизации плюс поправка на здоровье:
// деградировавшая сторона при включенном failover уступает противоположной.
func (m *Manager) Route(req integrity.ProcessingRequest) integrity.ProcessorType {
	target := RouteRequest(req)
	if m.failover.EnableFailover && m.health.IsDegraded(string(target)) && !m.health.IsDegraded(string(opposite(target))) {
		m.logger.Warn("routing target degraded, diverting",
			zap.String("from", string(target)),
			zap.String("to", string(opposite(target))))
		return opposite(target)
	}
	return target
}

// Process выполняет запрос с маршрутизацией и failover.
// Наружу всегда уходит валидный конверт, повторы отражены в retries_attempted.
func (m *Manager) Process(ctx context.Context, req integrity.ProcessingRequest) integrity.OutputSchema {
	start := time.Now()
	target := m.Route(req)

	out := m.processorFor(target).Process(ctx, req)
	if out.Validation.IsValid || !m.failover.EnableFailover {
		m.observe(target, out, start)
		return out
	}

	// Первый процессор отказал — единственный повтор на противоположную
	// сторону, ограниченный failover_timeout_ms.
	fallback := opposite(target)
	m.logger.Warn("processor failed, failing over",
		zap.String("from", string(target)),
		zap.String("to", string(fallback)),
		zap.Strings("reasons", out.Validation.Errors()))
	m.metrics.ErrorTotal.WithLabelValues("failover").Inc()

	foCtx, cancel := context.WithTimeout(ctx, time.Duration(m.failover.FailoverTimeoutMs)*time.Millisecond)
	defer cancel()

	retried := m.processorFor(fallback).Process(foCtx, req)
	retried.RetriesAttempted++
	if !retried.Validation.IsValid {
		m.logger.Error("failover processor also failed",
			zap.String("processor", string(fallback)),
			zap.Strings("reasons", retried.Validation.Errors()))
	}
	m.observe(fallback, retried, start)
	return retried
}

// StreamProcess маршрутизирует стриминг. Failover на полуотданном потоке
// невозможен: часть контента уже ушла клиенту, повтор дал бы дубль.
func (m *Manager) StreamProcess(ctx context.Context, req integrity.ProcessingRequest) <-chan processors.StreamChunk {
	target := m.Route(req)
	return m.processorFor(target).StreamProcess(ctx, req)
}

func (m *Manager) observe(target integrity.ProcessorType, out integrity.OutputSchema, start time.Time) {
	status := "success"
	if !out.Validation.IsValid {
		status = "failure"
	}
	m.metrics.TotalRequests.WithLabelValues(string(target)).Inc()
	m.metrics.RequestDuration.WithLabelValues(string(target), status).Observe(time.Since(start).Seconds())
}
