package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xela07ax/strictgate/internal/integrity"
	"github.com/xela07ax/strictgate/internal/processors"
)

// stubInvoker считает вызовы и отдает заранее заданную последовательность ошибок.
type stubInvoker struct {
	calls  int
	errs   []error
	result string
}

func (s *stubInvoker) Invoke(_ context.Context, _ integrity.ProcessingRequest) (string, error) {
	var err error
	if s.calls < len(s.errs) {
		err = s.errs[s.calls]
	}
	s.calls++
	if err != nil {
		return "", err
	}
	return s.result, nil
}

func retryRequest(t *testing.T, maxRetries int) integrity.ProcessingRequest {
	t.Helper()
	return mustRequest(t, integrity.ProcessingRequestParams{
		InputData:   "x",
		InputTokens: 10,
		MaxRetries:  maxRetries,
	})
}

func TestReliableInvoker_SuccessFirstTry(t *testing.T) {
	inv := &stubInvoker{result: "ok"}
	w := NewReliableInvoker(inv, ReliabilityOptions{Name: "test"}, nil)

	result, retries, err := w.InvokeCounted(context.Background(), retryRequest(t, 3))
	require.NoError(t, err)
	assert.Equal(t, "ok", result)
	assert.Equal(t, 0, retries)
	assert.Equal(t, 1, inv.calls)
}

func TestReliableInvoker_RetriesUpToMax(t *testing.T) {
	boom := errors.New("backend down")
	inv := &stubInvoker{errs: []error{boom, boom, boom, boom, boom}}
	w := NewReliableInvoker(inv, ReliabilityOptions{Name: "test"}, nil)

	_, retries, err := w.InvokeCounted(context.Background(), retryRequest(t, 2))
	require.Error(t, err)
	assert.Equal(t, 2, retries, "retries are attempts minus one")
	assert.Equal(t, 3, inv.calls, "max_retries=2 means three attempts total")
}

func TestReliableInvoker_RecoversMidway(t *testing.T) {
	inv := &stubInvoker{errs: []error{errors.New("transient")}, result: "ok"}
	w := NewReliableInvoker(inv, ReliabilityOptions{Name: "test"}, nil)

	result, retries, err := w.InvokeCounted(context.Background(), retryRequest(t, 3))
	require.NoError(t, err)
	assert.Equal(t, "ok", result)
	assert.Equal(t, 1, retries)
	assert.Equal(t, 2, inv.calls)
}

// Retry-After из троттлинга используется вместо экспоненциального бэкоффа.
func TestReliableInvoker_HonorsThrottleDelay(t *testing.T) {
	throttle := &processors.ThrottleError{RetryAfter: 5 * time.Millisecond}
	inv := &stubInvoker{errs: []error{throttle, throttle}, result: "ok"}
	w := NewReliableInvoker(inv, ReliabilityOptions{Name: "test"}, nil)

	start := time.Now()
	result, retries, err := w.InvokeCounted(context.Background(), retryRequest(t, 3))
	require.NoError(t, err)
	assert.Equal(t, "ok", result)
	assert.Equal(t, 2, retries)
	assert.Less(t, time.Since(start), time.Second, "throttle delay must replace backoff")
}

func TestReliableProcessor_FailureEnvelope(t *testing.T) {
	inv := &stubInvoker{errs: []error{errors.New("backend down")}}
	raw := &stubProcessor{}
	p := NewReliableProcessor(raw, inv, integrity.ProcessorCloud, ReliabilityOptions{Name: "cloud"}, nil)

	out := p.Process(context.Background(), retryRequest(t, 0))
	assert.False(t, out.Validation.IsValid)
	assert.Equal(t, integrity.ProcessorCloud, out.ProcessorUsed)
	assert.Contains(t, out.Validation.Errors()[0], "backend down")
	assert.Equal(t, integrity.NonNegativeInt(0), out.RetriesAttempted)
}

func TestReliableProcessor_SuccessEnvelope(t *testing.T) {
	inv := &stubInvoker{result: "answer"}
	p := NewReliableProcessor(&stubProcessor{}, inv, integrity.ProcessorLocal, ReliabilityOptions{Name: "local"}, nil)

	out := p.Process(context.Background(), retryRequest(t, 1))
	require.True(t, out.Validation.IsValid)
	assert.Equal(t, "answer", out.Result)
	assert.Equal(t, integrity.ProcessorLocal, out.ProcessorUsed)
	assert.GreaterOrEqual(t, float64(out.ProcessingTimeMs), 0.0)
}

// stubProcessor without chunks still yields a closed stream channel.
func TestReliableProcessor_StreamBypassesWrapper(t *testing.T) {
	raw := &stubProcessor{chunks: []processors.StreamChunk{{Content: "a"}, {Done: true}}}
	p := NewReliableProcessor(raw, &stubInvoker{}, integrity.ProcessorLocal, ReliabilityOptions{Name: "local"}, nil)

	var chunks []processors.StreamChunk
	for c := range p.StreamProcess(context.Background(), retryRequest(t, 0)) {
		chunks = append(chunks, c)
	}
	require.Len(t, chunks, 2)
	assert.Equal(t, "a", chunks[0].Content)
	assert.True(t, chunks[1].Done)
}
