package providers

import (
	"context"
	"errors"
	"fmt"
	"strings"

	openaisdk "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/ragflow-go/ragflow/collection"
	"github.com/ragflow-go/ragflow/flow"
)

// OpenAIEmbedding implements collection.EmbeddingService over OpenAI's
// embeddings API.
type OpenAIEmbedding struct {
	apiKey    string
	modelName string
	client    openaisdk.Client
}

// NewOpenAIEmbedding builds an OpenAIEmbedding. An empty modelName defaults
// to "text-embedding-3-small".
func NewOpenAIEmbedding(apiKey, modelName string) *OpenAIEmbedding {
	if modelName == "" {
		modelName = "text-embedding-3-small"
	}
	return &OpenAIEmbedding{
		apiKey:    apiKey,
		modelName: modelName,
		client:    openaisdk.NewClient(option.WithAPIKey(apiKey)),
	}
}

func (e *OpenAIEmbedding) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.EmbedDocuments(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 {
		return nil, flow.ErrEmptyInput
	}
	return vectors[0], nil
}

func (e *OpenAIEmbedding) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	if e.apiKey == "" {
		return nil, flow.ErrProviderNotConfigured
	}
	if len(texts) == 0 {
		return nil, flow.ErrEmptyInput
	}

	resp, err := e.client.Embeddings.New(ctx, openaisdk.EmbeddingNewParams{
		Model: openaisdk.EmbeddingModel(e.modelName),
		Input: openaisdk.EmbeddingNewParamsInputUnion{OfArrayOfStrings: texts},
	})
	if err != nil {
		return nil, translateOpenAIError(err)
	}

	out := make([][]float32, len(resp.Data))
	for i, d := range resp.Data {
		vec := make([]float32, len(d.Embedding))
		for j, f := range d.Embedding {
			vec[j] = float32(f)
		}
		out[i] = vec
	}
	return out, nil
}

var _ collection.EmbeddingService = (*OpenAIEmbedding)(nil)

// OpenAICompletion implements collection.CompletionService by streaming
// chat completion chunks, converting each delta to a flow.Token in order.
type OpenAICompletion struct {
	apiKey      string
	modelName   string
	temperature float64
	client      openaisdk.Client
}

// NewOpenAICompletion builds an OpenAICompletion. An empty modelName
// defaults to "gpt-4o".
func NewOpenAICompletion(apiKey, modelName string, temperature float64) *OpenAICompletion {
	if modelName == "" {
		modelName = "gpt-4o"
	}
	return &OpenAICompletion{
		apiKey:      apiKey,
		modelName:   modelName,
		temperature: temperature,
		client:      openaisdk.NewClient(option.WithAPIKey(apiKey)),
	}
}

func (c *OpenAICompletion) GenerateStream(ctx context.Context, history []collection.Message, prompt string, memory collection.Memory) (<-chan flow.Token, error) {
	if c.apiKey == "" {
		return nil, flow.ErrProviderNotConfigured
	}

	messages := make([]openaisdk.ChatCompletionMessageParamUnion, 0, len(history)+len(memory.Messages)+1)
	for _, m := range memory.Messages {
		messages = append(messages, convertOpenAIMessage(m.Role, m.Content))
	}
	for _, m := range history {
		messages = append(messages, convertOpenAIMessage(m.Role, m.Content))
	}
	messages = append(messages, openaisdk.UserMessage(prompt))

	stream := c.client.Chat.Completions.NewStreaming(ctx, openaisdk.ChatCompletionNewParams{
		Model:       openaisdk.ChatModel(c.modelName),
		Messages:    messages,
		Temperature: openaisdk.Float(c.temperature),
	})

	out := make(chan flow.Token)
	go func() {
		defer close(out)
		defer stream.Close()
		for stream.Next() {
			chunk := stream.Current()
			if len(chunk.Choices) == 0 {
				continue
			}
			delta := chunk.Choices[0].Delta.Content
			if delta == "" {
				continue
			}
			select {
			case out <- flow.Token{Text: delta}:
			case <-ctx.Done():
				return
			}
		}
		if err := stream.Err(); err != nil {
			select {
			case out <- flow.Token{Err: translateOpenAIError(err)}:
			case <-ctx.Done():
			}
		}
	}()
	return out, nil
}

var _ collection.CompletionService = (*OpenAICompletion)(nil)

func convertOpenAIMessage(role, content string) openaisdk.ChatCompletionMessageParamUnion {
	switch role {
	case "system":
		return openaisdk.SystemMessage(content)
	case "assistant", "ai":
		return openaisdk.AssistantMessage(content)
	default:
		return openaisdk.UserMessage(content)
	}
}

// translateOpenAIError maps an SDK error to the shared taxonomy in
// flow/errors.go by inspecting its message, matching the teacher's
// string-pattern classification (graph/model/openai.go isTransientError)
// since the SDK does not expose a typed error hierarchy for every case.
func translateOpenAIError(err error) error {
	if err == nil {
		return nil
	}
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "rate limit") || strings.Contains(msg, "429"):
		return fmt.Errorf("%w: %v", flow.ErrRateLimited, err)
	case strings.Contains(msg, "timeout"):
		return fmt.Errorf("%w: %v", flow.ErrTimeout, err)
	case strings.Contains(msg, "503") || strings.Contains(msg, "502") || strings.Contains(msg, "unavailable"):
		return fmt.Errorf("%w: %v", flow.ErrServiceUnavailable, err)
	case strings.Contains(msg, "401") || strings.Contains(msg, "authentication") || strings.Contains(msg, "api key"):
		return fmt.Errorf("%w: %v", flow.ErrAuthFailure, err)
	case strings.Contains(msg, "quota") || strings.Contains(msg, "insufficient_quota"):
		return fmt.Errorf("%w: %v", flow.ErrQuotaExceeded, err)
	case strings.Contains(msg, "model") && strings.Contains(msg, "not found"):
		return fmt.Errorf("%w: %v", flow.ErrModelNotFound, err)
	default:
		return errors.New(err.Error())
	}
}
