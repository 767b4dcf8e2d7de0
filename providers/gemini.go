package providers

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"github.com/ragflow-go/ragflow/collection"
	"github.com/ragflow-go/ragflow/flow"
)

// GeminiEmbedding implements collection.EmbeddingService over Google's
// Gemini embedding API, grounded on graph/model/google.go's
// genai.NewClient(ctx, option.WithAPIKey(...)) client construction.
type GeminiEmbedding struct {
	apiKey    string
	modelName string
}

// NewGeminiEmbedding builds a GeminiEmbedding. An empty modelName defaults
// to "embedding-001".
func NewGeminiEmbedding(apiKey, modelName string) *GeminiEmbedding {
	if modelName == "" {
		modelName = "embedding-001"
	}
	return &GeminiEmbedding{apiKey: apiKey, modelName: modelName}
}

func (e *GeminiEmbedding) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.EmbedDocuments(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 {
		return nil, flow.ErrEmptyInput
	}
	return vectors[0], nil
}

func (e *GeminiEmbedding) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	if e.apiKey == "" {
		return nil, flow.ErrProviderNotConfigured
	}
	if len(texts) == 0 {
		return nil, flow.ErrEmptyInput
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(e.apiKey))
	if err != nil {
		return nil, translateGeminiError(err)
	}
	defer client.Close()

	em := client.EmbeddingModel(e.modelName)
	batch := em.NewBatch()
	for _, t := range texts {
		batch.AddContent(genai.Text(t))
	}

	resp, err := em.BatchEmbedContents(ctx, batch)
	if err != nil {
		return nil, translateGeminiError(err)
	}

	out := make([][]float32, len(resp.Embeddings))
	for i, emb := range resp.Embeddings {
		out[i] = emb.Values
	}
	return out, nil
}

var _ collection.EmbeddingService = (*GeminiEmbedding)(nil)

// GeminiCompletion implements collection.CompletionService by streaming
// Gemini's GenerateContentStream, converting each candidate chunk to a
// flow.Token in order. Grounded on graph/model/google.go's ChatModel
// adapter, generalized from its single-shot GenerateContent call to the
// streaming iterator the completion node runner requires.
type GeminiCompletion struct {
	apiKey      string
	modelName   string
	temperature float64
}

// NewGeminiCompletion builds a GeminiCompletion. An empty modelName
// defaults to "gemini-2.5-flash", matching the teacher's default.
func NewGeminiCompletion(apiKey, modelName string, temperature float64) *GeminiCompletion {
	if modelName == "" {
		modelName = "gemini-2.5-flash"
	}
	return &GeminiCompletion{apiKey: apiKey, modelName: modelName, temperature: temperature}
}

func (c *GeminiCompletion) GenerateStream(ctx context.Context, history []collection.Message, prompt string, memory collection.Memory) (<-chan flow.Token, error) {
	if c.apiKey == "" {
		return nil, flow.ErrProviderNotConfigured
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(c.apiKey))
	if err != nil {
		return nil, translateGeminiError(err)
	}

	genModel := client.GenerativeModel(c.modelName)
	genModel.SetTemperature(float32(c.temperature))

	var parts []genai.Part
	for _, m := range memory.Messages {
		if m.Content != "" {
			parts = append(parts, genai.Text(m.Content))
		}
	}
	for _, m := range history {
		if m.Content != "" {
			parts = append(parts, genai.Text(m.Content))
		}
	}
	parts = append(parts, genai.Text(prompt))

	iter := genModel.GenerateContentStream(ctx, parts...)

	out := make(chan flow.Token)
	go func() {
		defer close(out)
		defer client.Close()
		for {
			resp, err := iter.Next()
			if errors.Is(err, iterator.Done) {
				return
			}
			if err != nil {
				select {
				case out <- flow.Token{Err: translateGeminiError(err)}:
				case <-ctx.Done():
				}
				return
			}
			for _, text := range extractGeminiText(resp) {
				select {
				case out <- flow.Token{Text: text}:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

var _ collection.CompletionService = (*GeminiCompletion)(nil)

func extractGeminiText(resp *genai.GenerateContentResponse) []string {
	var texts []string
	for _, cand := range resp.Candidates {
		if cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if t, ok := part.(genai.Text); ok {
				texts = append(texts, string(t))
			}
		}
	}
	return texts
}

// translateGeminiError maps an SDK error to the shared taxonomy in
// flow/errors.go, following the same string-pattern classification
// OpenAI's adapter uses since the genai SDK likewise exposes no typed
// error hierarchy for every case.
func translateGeminiError(err error) error {
	if err == nil {
		return nil
	}
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "rate limit") || strings.Contains(msg, "429") || strings.Contains(msg, "resource_exhausted"):
		return fmt.Errorf("%w: %v", flow.ErrRateLimited, err)
	case strings.Contains(msg, "deadline") || strings.Contains(msg, "timeout"):
		return fmt.Errorf("%w: %v", flow.ErrTimeout, err)
	case strings.Contains(msg, "unavailable"):
		return fmt.Errorf("%w: %v", flow.ErrServiceUnavailable, err)
	case strings.Contains(msg, "api key") || strings.Contains(msg, "unauthenticated") || strings.Contains(msg, "permission"):
		return fmt.Errorf("%w: %v", flow.ErrAuthFailure, err)
	case strings.Contains(msg, "quota"):
		return fmt.Errorf("%w: %v", flow.ErrQuotaExceeded, err)
	case strings.Contains(msg, "not found") && strings.Contains(msg, "model"):
		return fmt.Errorf("%w: %v", flow.ErrModelNotFound, err)
	default:
		return errors.New(err.Error())
	}
}
