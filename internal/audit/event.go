package audit

import "time"

// ProcessingEvent — одна запись журнала обработки.
type ProcessingEvent struct {
	ID        string `json:"id"`         // UUID события
	TraceID   string `json:"trace_id"`   // Сквозной ID запроса
	InputHash string `json:"input_hash"` // Отпечаток входных данных
	Operation string `json:"operation"`  // process / stream / validate_signal / validate_ml

	// Маршрутизация
	ProcessorUsed string `json:"processor_used"` // cloud или local
	FailedOver    bool   `json:"failed_over"`    // сработал ли failover

	// Результат
	Status           string    `json:"status"` // success / failure
	Errors           []string  `json:"errors"`
	RetriesAttempted int       `json:"retries_attempted"`
	ProcessingTimeMs float64   `json:"processing_time_ms"`
	Timestamp        time.Time `json:"timestamp"`
}
