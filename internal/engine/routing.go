package engine

import (
	"math"

	"github.com/xela07ax/strictgate/internal/integrity"
)

// Чистое ядро маршрутизации и расчетов надежности.
// Никакого I/O и скрытого состояния: одинаковый вход — одинаковый выход,
// функции безопасны для любого числа конкурентных вызовов.

// DetermineProcessor выбирает сторону исполнения по числу токенов.
// Граница включается в local: input_tokens == threshold остается локальным.
func DetermineProcessor(inputTokens, tokenThreshold int) integrity.ProcessorType {
	if inputTokens > tokenThreshold {
		return integrity.ProcessorCloud
	}
	return integrity.ProcessorLocal
}

// RouteRequest маршрутизирует валидированный запрос.
// Явно закрепленный процессор (cloud/local) уважается безусловно;
// только hybrid проваливается в пороговую логику.
func RouteRequest(req integrity.ProcessingRequest) integrity.ProcessorType {
	switch req.ProcessorType {
	case integrity.ProcessorCloud:
		return integrity.ProcessorCloud
	case integrity.ProcessorLocal:
		return integrity.ProcessorLocal
	}
	return DetermineProcessor(int(req.InputTokens), int(req.TokenThreshold))
}

// CalculateSystemSuccessProbability: с failover система отказывает, только
// когда отказывают ОБА процессора; без failover локальная вероятность
// игнорируется целиком.
func CalculateSystemSuccessProbability(cloudFailureProbability, localFailureProbability float64, failoverEnabled bool) float64 {
	if failoverEnabled {
		return 1.0 - cloudFailureProbability*localFailureProbability
	}
	return 1.0 - cloudFailureProbability
}

// CalculateAvailability: классическое MTBF / (MTBF + MTTR).
func CalculateAvailability(mtbf, mttr float64) float64 {
	return mtbf / (mtbf + mttr)
}

// CalculateCombinedAvailability комбинирует доступности компонентов.
// Параллель (резервирование): 1 - П(1 - a_i). Последовательно: П(a_i).
// Пустой вход по соглашению дает 0.0 — нет компонентов, нет гарантий.
func CalculateCombinedAvailability(availabilities []float64, parallel bool) float64 {
	if len(availabilities) == 0 {
		return 0.0
	}

	if parallel {
		failure := 1.0
		for _, a := range availabilities {
			failure *= 1.0 - a
		}
		return 1.0 - failure
	}

	combined := 1.0
	for _, a := range availabilities {
		combined *= a
	}
	return combined
}

// CalculateNyquistFrequency — половина частоты дискретизации.
func CalculateNyquistFrequency(samplingRate float64) float64 {
	return samplingRate / 2.0
}

// DefaultSamplingMargin — запас 10% сверх критерия Найквиста.
const DefaultSamplingMargin = 1.1

// CalculateRequiredSamplingRate: 2 * max_frequency * margin.
func CalculateRequiredSamplingRate(maxFrequency, margin float64) float64 {
	return 2.0 * maxFrequency * margin
}

// CalculateSampleCount: round(duration * sampling_rate).
func CalculateSampleCount(duration, samplingRate float64) int {
	return int(math.Round(duration * samplingRate))
}
