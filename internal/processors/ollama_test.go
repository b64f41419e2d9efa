package processors

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func ollamaMock(t *testing.T, handler http.HandlerFunc) *OllamaProcessor {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewOllamaProcessor(srv.URL, "llama3", zap.NewNop())
}

func TestOllamaInvoke_Success(t *testing.T) {
	p := ollamaMock(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/generate", r.URL.Path)

		var req ollamaGenerateRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "llama3", req.Model)
		assert.Equal(t, "hello", req.Prompt)
		assert.False(t, req.Stream)

		json.NewEncoder(w).Encode(ollamaGenerateResponse{Response: "world", Done: true})
	})

	result, err := p.Invoke(context.Background(), testRequest(t))
	require.NoError(t, err)
	assert.Equal(t, "world", result)
}

func TestOllamaInvoke_ThrottleIs429(t *testing.T) {
	p := ollamaMock(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	})

	_, err := p.Invoke(context.Background(), testRequest(t))
	var throttle *ThrottleError
	require.ErrorAs(t, err, &throttle)
	assert.Greater(t, throttle.RetryAfter.Milliseconds(), int64(0))
}

func TestOllamaInvoke_ServerErrorSnippet(t *testing.T) {
	p := ollamaMock(t, func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "model llama3 not found", http.StatusNotFound)
	})

	_, err := p.Invoke(context.Background(), testRequest(t))
	var backend *BackendError
	require.ErrorAs(t, err, &backend)
	assert.Contains(t, backend.Message, "404")
	assert.Contains(t, backend.Message, "model llama3 not found")
}

func TestOllamaInvoke_DaemonUnreachable(t *testing.T) {
	p := NewOllamaProcessor("http://127.0.0.1:1", "llama3", zap.NewNop())

	_, err := p.Invoke(context.Background(), testRequest(t))
	var backend *BackendError
	require.ErrorAs(t, err, &backend)
	assert.Contains(t, backend.Message, "unreachable")
}

func TestOllamaStream_NDJSON(t *testing.T) {
	p := ollamaMock(t, func(w http.ResponseWriter, _ *http.Request) {
		enc := json.NewEncoder(w)
		enc.Encode(ollamaGenerateResponse{Response: "hel"})
		enc.Encode(ollamaGenerateResponse{Response: "lo"})
		enc.Encode(ollamaGenerateResponse{Done: true})
	})

	var content string
	var done bool
	for chunk := range p.StreamProcess(context.Background(), testRequest(t)) {
		require.NoError(t, chunk.Err)
		if chunk.Done {
			done = true
			continue
		}
		content += chunk.Content
	}
	assert.Equal(t, "hello", content)
	assert.True(t, done)
}

// Обрыв потока без done-кадра трактуется как штатное завершение.
func TestOllamaStream_EOFWithoutDone(t *testing.T) {
	p := ollamaMock(t, func(w http.ResponseWriter, _ *http.Request) {
		json.NewEncoder(w).Encode(ollamaGenerateResponse{Response: "partial"})
	})

	var chunks []StreamChunk
	for c := range p.StreamProcess(context.Background(), testRequest(t)) {
		chunks = append(chunks, c)
	}
	require.Len(t, chunks, 2)
	assert.Equal(t, "partial", chunks[0].Content)
	assert.True(t, chunks[1].Done)
}

// Ушедший потребитель не должен навечно блокировать продюсера на отправке
// финального кадра: горутина обязана выйти и закрыть канал сама.
func TestOllamaStream_ConsumerGoneUnblocksProducer(t *testing.T) {
	p := ollamaMock(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(ollamaGenerateResponse{Response: "a"})
		w.(http.Flusher).Flush()
		<-r.Context().Done()
	})

	ctx, cancel := context.WithCancel(context.Background())
	ch := p.StreamProcess(ctx, testRequest(t))

	first := <-ch
	require.NoError(t, first.Err)
	require.Equal(t, "a", first.Content)

	cancel()
	time.Sleep(200 * time.Millisecond) // без читателя: продюсер обязан выйти сам

	select {
	case c, ok := <-ch:
		assert.False(t, ok, "producer must exit without a reader, got frame: %+v", c)
	case <-time.After(time.Second):
		t.Fatal("stream channel never closed after cancel")
	}
}

func TestOllamaClassify_Timeout(t *testing.T) {
	p := NewOllamaProcessor("", "", zap.NewNop())
	err := p.classify(context.DeadlineExceeded)
	var backend *BackendError
	require.ErrorAs(t, err, &backend)
	assert.Contains(t, backend.Message, "timed out")

	err = p.classify(errors.New("dial tcp: refused"))
	require.ErrorAs(t, err, &backend)
	assert.Contains(t, backend.Message, "unreachable")
}
