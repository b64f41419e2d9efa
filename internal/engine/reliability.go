package engine

import (
	"context"
	"errors"
	"time"

	"github.com/avast/retry-go/v5"
	"github.com/sony/gobreaker"
	"github.com/xela07ax/strictgate/internal/integrity"
	"github.com/xela07ax/strictgate/internal/processors"
	"golang.org/x/time/rate"
)

// ReliableInvoker оборачивает сырой вызов бэкенда тремя слоями:
// rate limiter -> circuit breaker -> retry с учетом Retry-After.
// Количество фактических повторов отдается наружу для retries_attempted.
type ReliableInvoker struct {
	next    processors.Invoker
	cb      *gobreaker.CircuitBreaker
	limiter *rate.Limiter
	metrics *Metrics
	name    string
}

type ReliabilityOptions struct {
	Name        string
	RateLimit   rate.Limit // запросов в секунду, 0 -> 100
	Burst       int        // 0 -> 20
	MaxFailures uint32     // подряд до размыкания, 0 -> 5
}

func NewReliableInvoker(next processors.Invoker, opts ReliabilityOptions, metrics *Metrics) *ReliableInvoker {
	if opts.Name == "" {
		opts.Name = "processor"
	}
	if opts.RateLimit == 0 {
		opts.RateLimit = 100
	}
	if opts.Burst == 0 {
		opts.Burst = 20
	}
	if opts.MaxFailures == 0 {
		opts.MaxFailures = 5
	}
	if metrics == nil {
		metrics = NewMetrics(nil)
	}

	name := opts.Name
	maxFailures := opts.MaxFailures
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 3,
		Interval:    5 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > maxFailures
		},
		OnStateChange: func(_ string, _ gobreaker.State, to gobreaker.State) {
			v := 0.0
			if to == gobreaker.StateOpen {
				v = 1.0
			}
			metrics.CircuitBreakerState.WithLabelValues(name).Set(v)
		},
	})

	return &ReliableInvoker{
		next:    next,
		cb:      cb,
		limiter: rate.NewLimiter(opts.RateLimit, opts.Burst),
		metrics: metrics,
		name:    name,
	}
}

// InvokeCounted — как Invoke, но дополнительно возвращает количество
// ПОВТОРОВ (не попыток): 0 означает успех с первого раза.
func (w *ReliableInvoker) InvokeCounted(ctx context.Context, req integrity.ProcessingRequest) (string, int, error) {
	if err := w.limiter.Wait(ctx); err != nil {
		w.metrics.ErrorTotal.WithLabelValues("rate_limit").Inc()
		return "", 0, errors.New("rate limit exceeded: " + err.Error())
	}

	attempts := 0
	maxAttempts := int(req.MaxRetries) + 1

	cbResult, err := w.cb.Execute(func() (interface{}, error) {
		r := retry.New(
			retry.Context(ctx),
			retry.Attempts(uint(maxAttempts)),
			// Троттлинг бэкенда несет собственную задержку, остальное — бэкофф.
			retry.DelayType(func(n uint, err error, config retry.DelayContext) time.Duration {
				var tErr *processors.ThrottleError
				if errors.As(err, &tErr) {
					return tErr.RetryAfter
				}
				return retry.BackOffDelay(n, err, config)
			}),
		)

		var result string
		retryErr := r.Do(func() error {
			attempts++
			var callErr error
			result, callErr = w.next.Invoke(ctx, req)
			return callErr
		})
		return result, retryErr
	})

	retries := attempts - 1
	if retries < 0 {
		retries = 0
	}
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			w.metrics.ErrorTotal.WithLabelValues("circuit_open").Inc()
		} else {
			w.metrics.ErrorTotal.WithLabelValues("backend").Inc()
		}
		return "", retries, err
	}
	return cbResult.(string), retries, nil
}

// Invoke удовлетворяет processors.Invoker.
func (w *ReliableInvoker) Invoke(ctx context.Context, req integrity.ProcessingRequest) (string, error) {
	result, _, err := w.InvokeCounted(ctx, req)
	return result, err
}

// ReliableProcessor — процессор с обвязкой надежности поверх сырого бэкенда.
// Повторы попадают в retries_attempted конверта. Стриминг идет мимо обвязки:
// повтор полуотданного потока невозможен.
type ReliableProcessor struct {
	raw  processors.Processor
	inv  *ReliableInvoker
	used integrity.ProcessorType
}

func NewReliableProcessor(raw processors.Processor, rawInv processors.Invoker, used integrity.ProcessorType, opts ReliabilityOptions, metrics *Metrics) *ReliableProcessor {
	return &ReliableProcessor{
		raw:  raw,
		inv:  NewReliableInvoker(rawInv, opts, metrics),
		used: used,
	}
}

func (p *ReliableProcessor) Process(ctx context.Context, req integrity.ProcessingRequest) integrity.OutputSchema {
	start := time.Now()

	callCtx, cancel := processors.RequestContext(ctx, req)
	defer cancel()

	result, retries, err := p.inv.InvokeCounted(callCtx, req)
	elapsed := float64(time.Since(start)) / float64(time.Millisecond)

	if err != nil {
		return processors.FailedOutput(req, p.used, elapsed, retries, err.Error())
	}
	return processors.SuccessOutput(req, p.used, elapsed, retries, result)
}

func (p *ReliableProcessor) StreamProcess(ctx context.Context, req integrity.ProcessingRequest) <-chan processors.StreamChunk {
	return p.raw.StreamProcess(ctx, req)
}
