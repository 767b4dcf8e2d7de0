package providers

import (
	"context"

	anthropicsdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/ragflow-go/ragflow/collection"
	"github.com/ragflow-go/ragflow/flow"
)

// AnthropicCompletion implements collection.CompletionService over
// Anthropic's Messages streaming API. Anthropic has no embeddings
// endpoint, so this package pairs it with an OpenAIEmbedding or
// MockEmbedding for the embedding side of a bot configuration.
type AnthropicCompletion struct {
	apiKey      string
	modelName   string
	maxTokens   int64
	temperature float64
	client      anthropicsdk.Client
}

// NewAnthropicCompletion builds an AnthropicCompletion. An empty modelName
// defaults to "claude-sonnet-4-5-20250929".
func NewAnthropicCompletion(apiKey, modelName string, maxTokens int64, temperature float64) *AnthropicCompletion {
	if modelName == "" {
		modelName = "claude-sonnet-4-5-20250929"
	}
	if maxTokens <= 0 {
		maxTokens = 1024
	}
	return &AnthropicCompletion{
		apiKey:      apiKey,
		modelName:   modelName,
		maxTokens:   maxTokens,
		temperature: temperature,
		client:      anthropicsdk.NewClient(option.WithAPIKey(apiKey)),
	}
}

func (c *AnthropicCompletion) GenerateStream(ctx context.Context, history []collection.Message, prompt string, memory collection.Memory) (<-chan flow.Token, error) {
	if c.apiKey == "" {
		return nil, flow.ErrProviderNotConfigured
	}

	systemPrompt, messages := extractSystemPrompt(history, memory)
	messages = append(messages, anthropicsdk.NewUserMessage(anthropicsdk.NewTextBlock(prompt)))

	params := anthropicsdk.MessageNewParams{
		Model:       anthropicsdk.Model(c.modelName),
		MaxTokens:   c.maxTokens,
		Temperature: anthropicsdk.Float(c.temperature),
		Messages:    messages,
	}
	if systemPrompt != "" {
		params.System = []anthropicsdk.TextBlockParam{{Text: systemPrompt}}
	}

	stream := c.client.Messages.NewStreaming(ctx, params)

	out := make(chan flow.Token)
	go func() {
		defer close(out)
		for stream.Next() {
			event := stream.Current()
			delta, ok := event.AsAny().(anthropicsdk.ContentBlockDeltaEvent)
			if !ok {
				continue
			}
			text := delta.Delta.Text
			if text == "" {
				continue
			}
			select {
			case out <- flow.Token{Text: text}:
			case <-ctx.Done():
				return
			}
		}
		if err := stream.Err(); err != nil {
			select {
			case out <- flow.Token{Err: translateAnthropicError(err)}:
			case <-ctx.Done():
			}
		}
	}()
	return out, nil
}

var _ collection.CompletionService = (*AnthropicCompletion)(nil)

// extractSystemPrompt separates system-role entries (concatenated, since
// Anthropic accepts exactly one system parameter) from the conversation
// history and memory, converting the rest to Anthropic message params in
// memory-then-history order.
func extractSystemPrompt(history []collection.Message, memory collection.Memory) (string, []anthropicsdk.MessageParam) {
	var system string
	var out []anthropicsdk.MessageParam

	appendMsg := func(m collection.Message) {
		if m.Role == "system" {
			if system != "" {
				system += "\n\n"
			}
			system += m.Content
			return
		}
		block := anthropicsdk.NewTextBlock(m.Content)
		if m.Role == "assistant" || m.Role == "ai" {
			out = append(out, anthropicsdk.NewAssistantMessage(block))
		} else {
			out = append(out, anthropicsdk.NewUserMessage(block))
		}
	}

	for _, m := range memory.Messages {
		appendMsg(m)
	}
	for _, m := range history {
		appendMsg(m)
	}
	return system, out
}

// translateAnthropicError maps an SDK error to the shared taxonomy,
// following the teacher's graph/model/anthropic.go translateAnthropicError
// pass-through shape but mapping into flow.Kind sentinels instead of a
// bespoke anthropicError type.
func translateAnthropicError(err error) error {
	if err == nil {
		return nil
	}
	var apiErr *anthropicsdk.Error
	if ok := asAnthropicError(err, &apiErr); ok {
		switch apiErr.StatusCode {
		case 401, 403:
			return flow.ErrAuthFailure
		case 404:
			return flow.ErrModelNotFound
		case 429:
			return flow.ErrRateLimited
		case 500, 502, 503, 529:
			return flow.ErrServiceUnavailable
		}
	}
	return err
}

func asAnthropicError(err error, target **anthropicsdk.Error) bool {
	apiErr, ok := err.(*anthropicsdk.Error)
	if !ok {
		return false
	}
	*target = apiErr
	return true
}
