package processors

import (
	"context"
	"fmt"
	"time"

	"github.com/xela07ax/strictgate/internal/integrity"
)

// Processor — единый контракт всех бэкендов (облачных и локального).
// Ровно две операции. Process никогда не возвращает ошибку наружу:
// любой отказ бэкенда превращается в конверт с validation.status=failure.
type Processor interface {
	// Process — одиночный запрос. Всегда возвращает структурно валидный
	// OutputSchema: processing_time_ms — фактическое время, processor_used —
	// исполнившая сторона.
	Process(ctx context.Context, req integrity.ProcessingRequest) integrity.OutputSchema

	// StreamProcess отдает ответ кусками. Конец потока и ошибка — разные
	// сигналы (Done / Err в чанке); канал закрывается после финального чанка.
	StreamProcess(ctx context.Context, req integrity.ProcessingRequest) <-chan StreamChunk
}

// Invoker — внутренний контракт "сырого" вызова бэкенда (с ошибкой).
// Поверх него base.go строит конвертную семантику Process, а
// ReliableProcessor — ретраи и circuit breaker.
type Invoker interface {
	Invoke(ctx context.Context, req integrity.ProcessingRequest) (string, error)
}

// StreamChunk — один кадр потокового ответа.
type StreamChunk struct {
	Content string
	Err     error
	Done    bool
}

// ThrottleError — бэкенд попросил притормозить (429 / Retry-After).
type ThrottleError struct {
	RetryAfter time.Duration
	Cause      error
}

func (e *ThrottleError) Error() string {
	return fmt.Sprintf("throttled: retry after %v (cause: %v)", e.RetryAfter, e.Cause)
}

func (e *ThrottleError) Unwrap() error { return e.Cause }

// Registry — реестр процессоров, собираемый на старте приложения.
// Замена динамической загрузке плагинов: возможности резолвятся один раз
// при инициализации, в рантайме состав не меняется.
type Registry struct {
	byName map[string]Processor
	names  []string
}

func NewRegistry() *Registry {
	return &Registry{byName: make(map[string]Processor)}
}

func (r *Registry) Register(name string, p Processor) error {
	if _, exists := r.byName[name]; exists {
		return fmt.Errorf("processor %q already registered", name)
	}
	r.byName[name] = p
	r.names = append(r.names, name)
	return nil
}

func (r *Registry) Get(name string) (Processor, bool) {
	p, ok := r.byName[name]
	return p, ok
}

// Names — имена в порядке регистрации.
func (r *Registry) Names() []string {
	out := make([]string, len(r.names))
	copy(out, r.names)
	return out
}
