package processors

import (
	"context"
	"time"

	"github.com/xela07ax/strictgate/internal/integrity"
)

// Общая конвертная логика бэкендов: замер времени, перевод ошибок
// в failed-конверт, дефолтная деградация стриминга до одиночного ответа.

// RequestContext ограничивает вызов бэкенда таймаутом запроса.
// timeout_seconds — верхняя граница блокирующего вызова.
func RequestContext(ctx context.Context, req integrity.ProcessingRequest) (context.Context, context.CancelFunc) {
	timeout := time.Duration(float64(req.TimeoutSeconds) * float64(time.Second))
	return context.WithTimeout(ctx, timeout)
}

// RunProcess выполняет сырой вызов и упаковывает итог в OutputSchema.
// Ошибка бэкенда НЕ пробрасывается: наружу всегда уходит валидный конверт.
func RunProcess(ctx context.Context, req integrity.ProcessingRequest, used integrity.ProcessorType, inv Invoker) integrity.OutputSchema {
	start := time.Now()

	callCtx, cancel := RequestContext(ctx, req)
	defer cancel()

	result, err := inv.Invoke(callCtx, req)
	elapsed := float64(time.Since(start)) / float64(time.Millisecond)

	if err != nil {
		return FailedOutput(req, used, elapsed, 0, err.Error())
	}
	return SuccessOutput(req, used, elapsed, 0, result)
}

// SuccessOutput собирает "зеленый" конверт.
func SuccessOutput(req integrity.ProcessingRequest, used integrity.ProcessorType, elapsedMs float64, retries int, result any) integrity.OutputSchema {
	out, err := integrity.NewOutputSchema(integrity.OutputSchemaParams{
		Result:           result,
		Validation:       integrity.SuccessResult(req.Hash()),
		ProcessorUsed:    used,
		ProcessingTimeMs: elapsedMs,
		RetriesAttempted: retries,
	})
	if err != nil {
		// Достижимо только при отрицательном времени — защищаемся нулем.
		out, _ = integrity.NewOutputSchema(integrity.OutputSchemaParams{
			Result:        result,
			Validation:    integrity.SuccessResult(req.Hash()),
			ProcessorUsed: used,
		})
	}
	return out
}

// FailedOutput собирает "красный" конверт с человекочитаемой причиной.
func FailedOutput(req integrity.ProcessingRequest, used integrity.ProcessorType, elapsedMs float64, retries int, reasons ...string) integrity.OutputSchema {
	out, err := integrity.NewOutputSchema(integrity.OutputSchemaParams{
		Result:           "",
		Validation:       integrity.FailureResult(req.Hash(), reasons...),
		ProcessorUsed:    used,
		ProcessingTimeMs: elapsedMs,
		RetriesAttempted: retries,
	})
	if err != nil {
		out, _ = integrity.NewOutputSchema(integrity.OutputSchemaParams{
			Result:        "",
			Validation:    integrity.FailureResult(req.Hash(), reasons...),
			ProcessorUsed: used,
		})
	}
	return out
}

// trySend доставляет кадр потребителю либо сдается, когда потребитель ушел
// (контекст отменен). Блокироваться на брошенном канале нельзя: зависшая
// горутина держит открытым тело ответа бэкенда.
func trySend(ctx context.Context, ch chan<- StreamChunk, c StreamChunk) bool {
	select {
	case ch <- c:
		return true
	case <-ctx.Done():
		return false
	}
}

// SingleShotStream — дефолтный стриминг: один полный ответ от Process,
// затем явный сигнал конца потока. Бэкенды с настоящим инкрементальным
// выводом заменяют его своим StreamProcess.
func SingleShotStream(ctx context.Context, p Processor, req integrity.ProcessingRequest) <-chan StreamChunk {
	ch := make(chan StreamChunk, 2)
	go func() {
		defer close(ch)

		out := p.Process(ctx, req)
		if !out.Validation.IsValid {
			errs := out.Validation.Errors()
			msg := "processing failed"
			if len(errs) > 0 {
				msg = errs[0]
			}
			ch <- StreamChunk{Err: &BackendError{Message: msg}}
			return
		}

		if text, ok := out.Result.(string); ok && text != "" {
			ch <- StreamChunk{Content: text}
		}
		ch <- StreamChunk{Done: true}
	}()
	return ch
}

// BackendError — ожидаемый отказ бэкенда (сеть, таймаут, кривой ответ).
type BackendError struct {
	Message string
	Cause   error
}

func (e *BackendError) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *BackendError) Unwrap() error { return e.Cause }
