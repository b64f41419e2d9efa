package infra

import "fmt"

const (
	// RedisNamespace Базовый префикс для изоляции данных проекта в Redis
	RedisNamespace = "strictgate"
)

// Ключи для Sets и кэша (состояние)
const (
	RedisKeyDegradedProcessors = RedisNamespace + ":processors:degraded_set"
	RedisKeyValidationCache    = RedisNamespace + ":cache:validation:"
	RedisKeyProcessingCache    = RedisNamespace + ":cache:processing:"
	RedisKeyLockDegraded       = RedisNamespace + ":lock:warmup:degraded"
)

// Каналы Pub/Sub (события)
const (
	// RedisChanProcessorHealth — канал трансляции сигналов здоровья процессоров.
	RedisChanProcessorHealth = RedisNamespace + ":processors:health-signal"
)

// GetWarmupLockKey Генератор ключей для блокировок (если нужны динамические)
func GetWarmupLockKey(resource string) string {
	return fmt.Sprintf("%s:lock:warmup:%s", RedisNamespace, resource)
}
