package cache

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Stats — потокобезопасный счетчик эффективности кэша.
// ops (опционально) дублирует исходы во внешний счетчик Prometheus.
type Stats struct {
	mu     sync.Mutex
	hits   uint64
	misses uint64
	errs   uint64
	ops    *prometheus.CounterVec
}

type StatsSnapshot struct {
	Hits    uint64  `json:"hits"`
	Misses  uint64  `json:"misses"`
	Errors  uint64  `json:"errors"`
	HitRate float64 `json:"hit_rate"`
}

func (s *Stats) hit() {
	s.mu.Lock()
	s.hits++
	s.mu.Unlock()
	s.observe("hit")
}

func (s *Stats) miss() {
	s.mu.Lock()
	s.misses++
	s.mu.Unlock()
	s.observe("miss")
}

func (s *Stats) err() {
	s.mu.Lock()
	s.errs++
	s.mu.Unlock()
	s.observe("error")
}

func (s *Stats) observe(outcome string) {
	if s.ops != nil {
		s.ops.WithLabelValues(outcome).Inc()
	}
}

// Snapshot — согласованный срез счетчиков. hit_rate = hits / (hits + misses).
func (s *Stats) Snapshot() StatsSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := StatsSnapshot{Hits: s.hits, Misses: s.misses, Errors: s.errs}
	if total := s.hits + s.misses; total > 0 {
		snap.HitRate = float64(s.hits) / float64(total)
	}
	return snap
}

// Client — JSON-кэш поверх Redis с TTL. Ошибки Redis не фатальны:
// кэш деградирует до промахов, счетчик errors растет.
type Client struct {
	rdb    *redis.Client
	ttl    time.Duration
	stats  *Stats
	logger *zap.Logger
}

// New создает клиент. ops — счетчик Prometheus по исходам (hit/miss/error),
// nil допустим: тогда ведется только локальная статистика.
func New(rdb *redis.Client, ttl time.Duration, ops *prometheus.CounterVec, logger *zap.Logger) *Client {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Client{
		rdb:    rdb,
		ttl:    ttl,
		stats:  &Stats{ops: ops},
		logger: logger.Named("cache"),
	}
}

// Get читает значение в dest. false — промах (или ошибка Redis).
func (c *Client) Get(ctx context.Context, key string, dest any) bool {
	raw, err := c.rdb.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.stats.err()
			c.logger.Warn("cache read failed", zap.String("key", key), zap.Error(err))
		} else {
			c.stats.miss()
		}
		return false
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		c.stats.err()
		c.logger.Warn("cache entry malformed, dropping", zap.String("key", key), zap.Error(err))
		c.rdb.Del(ctx, key)
		return false
	}
	c.stats.hit()
	return true
}

// Set сохраняет значение с TTL клиента.
func (c *Client) Set(ctx context.Context, key string, value any) {
	raw, err := json.Marshal(value)
	if err != nil {
		c.stats.err()
		c.logger.Warn("cache value not serializable", zap.String("key", key), zap.Error(err))
		return
	}
	if err := c.rdb.Set(ctx, key, raw, c.ttl).Err(); err != nil {
		c.stats.err()
		c.logger.Warn("cache write failed", zap.String("key", key), zap.Error(err))
	}
}

// Stats — срез счетчиков клиента.
func (c *Client) Stats() StatsSnapshot { return c.stats.Snapshot() }

// Memoize оборачивает чистую функцию кэшем: ключ строится из prefix
// и детерминированного отпечатка аргумента.
func Memoize[A any, R any](c *Client, prefix string, keyFn func(A) string, fn func(context.Context, A) (R, error)) func(context.Context, A) (R, error) {
	return func(ctx context.Context, arg A) (R, error) {
		key := prefix + keyFn(arg)

		var cached R
		if c.Get(ctx, key, &cached) {
			return cached, nil
		}

		result, err := fn(ctx, arg)
		if err != nil {
			return result, err
		}
		c.Set(ctx, key, result)
		return result, nil
	}
}
