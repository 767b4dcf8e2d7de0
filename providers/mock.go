// Package providers adapts third-party embedding, completion, and rerank
// APIs to the collection package's service interfaces, plus a mock
// implementation of all three for tests and local development without
// network access.
package providers

import (
	"context"
	"fmt"
	"sync"

	"github.com/ragflow-go/ragflow/collection"
	"github.com/ragflow-go/ragflow/flow"
)

// MockEmbedding returns deterministic vectors derived from input length,
// useful for exercising fan-out and dimension-probe logic without a
// network dependency.
type MockEmbedding struct {
	Dimension int
}

func (m *MockEmbedding) dim() int {
	if m.Dimension > 0 {
		return m.Dimension
	}
	return 8
}

func (m *MockEmbedding) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	return mockVector(text, m.dim()), nil
}

func (m *MockEmbedding) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = mockVector(t, m.dim())
	}
	return out, nil
}

func mockVector(text string, dim int) []float32 {
	v := make([]float32, dim)
	for i, r := range text {
		v[i%dim] += float32(r % 31)
	}
	return v
}

var _ collection.EmbeddingService = (*MockEmbedding)(nil)

// MockCompletion streams back a canned response one word at a time,
// honoring context cancellation.
type MockCompletion struct {
	Response string
}

func (m *MockCompletion) GenerateStream(ctx context.Context, history []collection.Message, prompt string, memory collection.Memory) (<-chan flow.Token, error) {
	response := m.Response
	if response == "" {
		response = "this is a mock completion response"
	}
	out := make(chan flow.Token)
	go func() {
		defer close(out)
		words := splitWords(response)
		for _, w := range words {
			if err := ctx.Err(); err != nil {
				out <- flow.Token{Err: err}
				return
			}
			select {
			case <-ctx.Done():
				out <- flow.Token{Err: ctx.Err()}
				return
			case out <- flow.Token{Text: w}:
			}
		}
	}()
	return out, nil
}

func splitWords(s string) []string {
	var words []string
	start := 0
	for i, r := range s {
		if r == ' ' {
			if i > start {
				words = append(words, s[start:i]+" ")
			}
			start = i + 1
		}
	}
	if start < len(s) {
		words = append(words, s[start:])
	}
	return words
}

var _ collection.CompletionService = (*MockCompletion)(nil)

// MockRerank returns the identity permutation, leaving document order
// unchanged; useful as a no-op rerank stage in tests.
type MockRerank struct{}

func (m *MockRerank) Rank(ctx context.Context, query string, texts []string) ([]int, error) {
	order := make([]int, len(texts))
	for i := range order {
		order[i] = i
	}
	return order, nil
}

var _ collection.RerankService = (*MockRerank)(nil)

// DimensionRegistry is a process-wide (provider, model) dimension cache.
// The provider adapters in this package do not consult it.
var DimensionRegistry = newDimensionRegistry()

type dimensionRegistry struct {
	mu    sync.Mutex
	cache map[string]int
}

func newDimensionRegistry() *dimensionRegistry {
	return &dimensionRegistry{cache: make(map[string]int)}
}

func (r *dimensionRegistry) probe(ctx context.Context, provider, model string, embedQuery func(context.Context) ([]float32, error)) (int, error) {
	key := fmt.Sprintf("%s/%s", provider, model)

	r.mu.Lock()
	if dim, ok := r.cache[key]; ok {
		r.mu.Unlock()
		return dim, nil
	}
	r.mu.Unlock()

	vec, err := embedQuery(ctx)
	if err != nil {
		return 0, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.cache[key] = len(vec)
	return len(vec), nil
}
