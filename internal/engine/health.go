package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/xela07ax/strictgate/internal/infra"
	"github.com/xela07ax/strictgate/internal/integrity"
	"go.uber.org/zap"
)

// HealthManager держит множество деградировавших процессоров.
// L1 — локальная мапа под RWMutex, L2 — Redis set, синхронизация
// через Pub/Sub с живучей переподпиской.
type HealthManager struct {
	mu       sync.RWMutex
	degraded map[string]struct{}
	rdb      *redis.Client
	logger   *zap.Logger
}

// healthSignal — кадр Pub/Sub о смене здоровья процессора.
type healthSignal struct {
	Processor string `json:"processor"`
	Degraded  bool   `json:"degraded"`
}

func parseHealthSignal(payload []byte) (healthSignal, error) {
	var sig healthSignal
	if err := json.Unmarshal(payload, &sig); err != nil {
		return healthSignal{}, fmt.Errorf("malformed health signal: %w", err)
	}
	if _, err := integrity.ParseProcessorType(sig.Processor); err != nil {
		return healthSignal{}, fmt.Errorf("health signal for unknown processor %q", sig.Processor)
	}
	return sig, nil
}

func NewHealthManager(rdb *redis.Client, logger *zap.Logger) *HealthManager {
	return &HealthManager{
		degraded: make(map[string]struct{}),
		rdb:      rdb,
		logger:   logger.Named("health"),
	}
}

// Init загружает текущее состояние деградаций при старте сервиса
func (m *HealthManager) Init(ctx context.Context) error {
	names, err := m.rdb.SMembers(ctx, infra.RedisKeyDegradedProcessors).Result()
	if err != nil {
		return err
	}

	m.mu.Lock()
	m.degraded = make(map[string]struct{}, len(names))
	for _, name := range names {
		m.degraded[name] = struct{}{}
	}
	m.mu.Unlock()
	return nil
}

// StartListener — живучая подписка на сигналы здоровья: при каждом
// (пере)подключении множество деградаций ресинхронизируется из Redis,
// дальше L1 ведется по кадрам healthSignal.
func (m *HealthManager) StartListener(ctx context.Context) {
	for {
		pubsub := m.rdb.Subscribe(ctx, infra.RedisChanProcessorHealth)

		if _, err := pubsub.Receive(ctx); err != nil {
			m.logger.Error("health subscribe failed", zap.Error(err))
			pubsub.Close()
			select {
			case <-ctx.Done():
				return
			case <-time.After(5 * time.Second):
			}
			continue
		}

		// Пока подписки не было, сигналы могли пройти мимо — ресинхронизация.
		if err := m.Init(ctx); err != nil {
			m.logger.Error("health resync failed on reconnect", zap.Error(err))
		}

		ch := pubsub.Channel()

	consume:
		for {
			select {
			case <-ctx.Done():
				pubsub.Close()
				return
			case msg, ok := <-ch:
				if !ok {
					break consume // канал закрыт, идем на переподписку
				}
				sig, err := parseHealthSignal([]byte(msg.Payload))
				if err != nil {
					m.logger.Error("health signal dropped",
						zap.String("payload", msg.Payload), zap.Error(err))
					continue
				}
				m.apply(sig.Processor, sig.Degraded)
				m.logger.Info("processor health signal",
					zap.String("processor", sig.Processor), zap.Bool("degraded", sig.Degraded))
			}
		}

		pubsub.Close()
		select {
		case <-ctx.Done():
			return
		case <-time.After(time.Second):
		}
	}
}

// MarkDegraded фиксирует деградацию в L1+L2 и оповещает остальные инстансы.
func (m *HealthManager) MarkDegraded(ctx context.Context, name string) error {
	return m.publish(ctx, name, true)
}

// MarkHealthy возвращает процессор в строй.
func (m *HealthManager) MarkHealthy(ctx context.Context, name string) error {
	return m.publish(ctx, name, false)
}

func (m *HealthManager) publish(ctx context.Context, name string, degraded bool) error {
	m.apply(name, degraded)

	var err error
	if degraded {
		err = m.rdb.SAdd(ctx, infra.RedisKeyDegradedProcessors, name).Err()
	} else {
		err = m.rdb.SRem(ctx, infra.RedisKeyDegradedProcessors, name).Err()
	}
	if err != nil {
		return err
	}

	payload, err := json.Marshal(healthSignal{Processor: name, Degraded: degraded})
	if err != nil {
		return err
	}
	return m.rdb.Publish(ctx, infra.RedisChanProcessorHealth, payload).Err()
}

func (m *HealthManager) apply(name string, degraded bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if degraded {
		m.degraded[name] = struct{}{}
	} else {
		delete(m.degraded, name)
	}
}

func (m *HealthManager) IsDegraded(name string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, bad := m.degraded[name]
	return bad
}

// Degraded — снимок множества деградировавших процессоров.
func (m *HealthManager) Degraded() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.degraded))
	for name := range m.degraded {
		out = append(out, name)
	}
	return out
}

// Warmup поднимает известные деградации (например, из журнала аудита)
// в L1 и, под распределенной блокировкой, в пустой Redis set —
// чтобы после полного рестарта кластера история не терялась.
func (m *HealthManager) Warmup(ctx context.Context, known []string) error {
	if len(known) == 0 {
		return nil
	}

	m.mu.Lock()
	for _, name := range known {
		m.degraded[name] = struct{}{}
	}
	m.mu.Unlock()

	// SetNX: только один инстанс заливает Redis после холодного старта.
	ok, err := m.rdb.SetNX(ctx, infra.GetWarmupLockKey("degraded"), "processing", 30*time.Second).Result()
	if err != nil || !ok {
		return nil // либо сеть, либо другой инстанс уже греет
	}

	count, err := m.rdb.SCard(ctx, infra.RedisKeyDegradedProcessors).Result()
	if err != nil {
		count = 0
		m.logger.Warn("could not check degraded set size, proceeding with warm-up", zap.Error(err))
	}
	if count > 0 {
		return nil // Redis уже знает больше нас
	}

	m.logger.Info("degraded set is empty, warming up from audit history",
		zap.Int("count", len(known)))

	members := make([]any, len(known))
	for i, n := range known {
		members[i] = n
	}
	return m.rdb.SAdd(ctx, infra.RedisKeyDegradedProcessors, members...).Err()
}
