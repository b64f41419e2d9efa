package processors

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/xela07ax/strictgate/internal/integrity"
	"go.uber.org/zap"
)

// OllamaProcessor — локальный inference-демон. Обычный HTTP + NDJSON,
// SDK у Ollama нет, поэтому клиент ручной.
type OllamaProcessor struct {
	httpClient *http.Client
	baseURL    string
	model      string
	logger     *zap.Logger
}

func NewOllamaProcessor(baseURL, model string, logger *zap.Logger) *OllamaProcessor {
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	if model == "" {
		model = "llama3"
	}
	return &OllamaProcessor{
		// Таймаут конкретного запроса задается контекстом, клиент без лимита.
		httpClient: &http.Client{},
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		model:      model,
		logger:     logger.Named("ollama"),
	}
}

type ollamaGenerateRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
}

type ollamaGenerateResponse struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
}

// Invoke — одиночная генерация без стриминга.
func (p *OllamaProcessor) Invoke(ctx context.Context, req integrity.ProcessingRequest) (string, error) {
	body, err := p.post(ctx, ollamaGenerateRequest{Model: p.model, Prompt: req.InputData, Stream: false})
	if err != nil {
		return "", err
	}
	defer body.Close()

	var parsed ollamaGenerateResponse
	if err := json.NewDecoder(body).Decode(&parsed); err != nil {
		return "", &BackendError{Message: "ollama returned malformed response", Cause: err}
	}
	return parsed.Response, nil
}

func (p *OllamaProcessor) Process(ctx context.Context, req integrity.ProcessingRequest) integrity.OutputSchema {
	return RunProcess(ctx, req, integrity.ProcessorLocal, p)
}

// StreamProcess читает NDJSON-поток демона и отдает кусочки по мере прихода.
func (p *OllamaProcessor) StreamProcess(ctx context.Context, req integrity.ProcessingRequest) <-chan StreamChunk {
	ch := make(chan StreamChunk)
	go func() {
		defer close(ch)

		streamCtx, cancel := RequestContext(ctx, req)
		defer cancel()

		body, err := p.post(streamCtx, ollamaGenerateRequest{Model: p.model, Prompt: req.InputData, Stream: true})
		if err != nil {
			trySend(streamCtx, ch, StreamChunk{Err: err})
			return
		}
		defer body.Close()

		scanner := bufio.NewScanner(body)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			line := scanner.Bytes()
			if len(bytes.TrimSpace(line)) == 0 {
				continue
			}
			var parsed ollamaGenerateResponse
			if err := json.Unmarshal(line, &parsed); err != nil {
				trySend(streamCtx, ch, StreamChunk{Err: &BackendError{Message: "ollama stream frame malformed", Cause: err}})
				return
			}
			if parsed.Response != "" {
				if !trySend(streamCtx, ch, StreamChunk{Content: parsed.Response}) {
					return
				}
			}
			if parsed.Done {
				trySend(streamCtx, ch, StreamChunk{Done: true})
				return
			}
		}
		if err := scanner.Err(); err != nil {
			trySend(streamCtx, ch, StreamChunk{Err: p.classify(err)})
			return
		}
		// Демон закрыл поток без done-кадра — считаем штатным завершением.
		trySend(streamCtx, ch, StreamChunk{Done: true})
	}()
	return ch
}

func (p *OllamaProcessor) post(ctx context.Context, payload ollamaGenerateRequest) (io.ReadCloser, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, &BackendError{Message: "failed to encode ollama request", Cause: err}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/api/generate", bytes.NewReader(raw))
	if err != nil {
		return nil, &BackendError{Message: "failed to build ollama request", Cause: err}
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return nil, p.classify(err)
	}
	if resp.StatusCode == http.StatusTooManyRequests {
		resp.Body.Close()
		return nil, &ThrottleError{RetryAfter: time.Second, Cause: fmt.Errorf("ollama responded %d", resp.StatusCode)}
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, &BackendError{Message: fmt.Sprintf("ollama responded %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))}
	}
	return resp.Body, nil
}

func (p *OllamaProcessor) classify(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return &BackendError{Message: "ollama request timed out", Cause: err}
	}
	return &BackendError{Message: "ollama daemon unreachable", Cause: err}
}
