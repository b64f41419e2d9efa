package processors

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"github.com/xela07ax/strictgate/internal/integrity"
	"go.uber.org/zap"
)

const cloudSystemPrompt = "You are a high-integrity processing engine."

// OpenAIProcessor — облачный бэкенд поверх OpenAI-совместимого API.
// Через него же подключается Groq (тот же протокол, другой BaseURL).
type OpenAIProcessor struct {
	client *openai.Client
	model  string
	name   string
	logger *zap.Logger
}

func NewOpenAIProcessor(apiKey, model string, logger *zap.Logger) *OpenAIProcessor {
	if model == "" {
		model = "gpt-4o-mini"
	}
	return &OpenAIProcessor{
		client: openai.NewClient(apiKey),
		model:  model,
		name:   "openai",
		logger: logger.Named("openai"),
	}
}

// NewGroqProcessor — второй облачный провайдер. Groq отдает
// OpenAI-совместимый API, поэтому клиент общий, меняется только endpoint.
// Выбор провайдера — явное решение конфигурации, не свойство входных данных.
func NewGroqProcessor(apiKey, model string, logger *zap.Logger) *OpenAIProcessor {
	if model == "" {
		model = "llama-3.3-70b-versatile"
	}
	cfg := openai.DefaultConfig(apiKey)
	cfg.BaseURL = "https://api.groq.com/openai/v1"
	return &OpenAIProcessor{
		client: openai.NewClientWithConfig(cfg),
		model:  model,
		name:   "groq",
		logger: logger.Named("groq"),
	}
}

// Invoke — сырой вызов chat completion. 429 превращается в ThrottleError,
// чтобы внешний ретрай мог уважать Retry-After.
func (p *OpenAIProcessor) Invoke(ctx context.Context, req integrity.ProcessingRequest) (string, error) {
	resp, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: p.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: cloudSystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: req.InputData},
		},
	})
	if err != nil {
		return "", p.classify(err)
	}
	if len(resp.Choices) == 0 {
		return "", &BackendError{Message: fmt.Sprintf("%s returned no choices", p.name)}
	}
	return resp.Choices[0].Message.Content, nil
}

func (p *OpenAIProcessor) Process(ctx context.Context, req integrity.ProcessingRequest) integrity.OutputSchema {
	return RunProcess(ctx, req, integrity.ProcessorCloud, p)
}

// StreamProcess — настоящий инкрементальный вывод токенов.
func (p *OpenAIProcessor) StreamProcess(ctx context.Context, req integrity.ProcessingRequest) <-chan StreamChunk {
	ch := make(chan StreamChunk)
	go func() {
		defer close(ch)

		streamCtx, cancel := RequestContext(ctx, req)
		defer cancel()

		stream, err := p.client.CreateChatCompletionStream(streamCtx, openai.ChatCompletionRequest{
			Model:  p.model,
			Stream: true,
			Messages: []openai.ChatCompletionMessage{
				{Role: openai.ChatMessageRoleSystem, Content: cloudSystemPrompt},
				{Role: openai.ChatMessageRoleUser, Content: req.InputData},
			},
		})
		if err != nil {
			trySend(streamCtx, ch, StreamChunk{Err: p.classify(err)})
			return
		}
		defer stream.Close()

		for {
			resp, err := stream.Recv()
			if errors.Is(err, io.EOF) {
				trySend(streamCtx, ch, StreamChunk{Done: true})
				return
			}
			if err != nil {
				trySend(streamCtx, ch, StreamChunk{Err: p.classify(err)})
				return
			}
			if len(resp.Choices) > 0 && resp.Choices[0].Delta.Content != "" {
				if !trySend(streamCtx, ch, StreamChunk{Content: resp.Choices[0].Delta.Content}) {
					return
				}
			}
		}
	}()
	return ch
}

func (p *OpenAIProcessor) classify(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) && apiErr.HTTPStatusCode == 429 {
		// Точный Retry-After клиент не пробрасывает — берем консервативную паузу.
		return &ThrottleError{RetryAfter: 2 * time.Second, Cause: err}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &BackendError{Message: fmt.Sprintf("%s request timed out", p.name), Cause: err}
	}
	return &BackendError{Message: fmt.Sprintf("%s api error", p.name), Cause: err}
}
