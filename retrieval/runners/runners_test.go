package runners

import (
	"context"
	"errors"
	"testing"

	"github.com/ragflow-go/ragflow/collection"
	"github.com/ragflow-go/ragflow/flow"
	"github.com/ragflow-go/ragflow/retrieval"
)

type fakeEmbedding struct {
	vector []float32
	err    error
}

func (f *fakeEmbedding) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	return f.vector, f.err
}
func (f *fakeEmbedding) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	return nil, nil
}

type fakeVectorStore struct {
	docs []retrieval.Document
	err  error
}

func (f *fakeVectorStore) Search(ctx context.Context, coll string, vector []float32, topK int, threshold float64, filter collection.Filter) ([]retrieval.Document, error) {
	return f.docs, f.err
}
func (f *fakeVectorStore) Add(ctx context.Context, coll string, nodes []collection.VectorNode) ([]string, error) {
	return nil, nil
}
func (f *fakeVectorStore) Delete(ctx context.Context, coll string, filter collection.Filter) error {
	return nil
}

func TestStartRunner_SurfacesQuery(t *testing.T) {
	result, err := StartRunner.Run(context.Background(), nil, flow.SystemInput{Query: "what is a widget"})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if result.Outputs["query"] != "what is a widget" {
		t.Errorf("expected query surfaced, got %v", result.Outputs["query"])
	}
}

func TestVectorSearchRunner_NoCollectionIDsReturnsEmpty(t *testing.T) {
	result, err := VectorSearchRunner.Run(context.Background(), map[string]any{"query": "x"}, flow.SystemInput{})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	docs := result.Outputs["docs"].([]retrieval.Document)
	if len(docs) != 0 {
		t.Errorf("expected no docs, got %d", len(docs))
	}
}

func TestVectorSearchRunner_EmptyQueryIsPayloadError(t *testing.T) {
	_, err := VectorSearchRunner.Run(context.Background(), map[string]any{"query": ""}, flow.SystemInput{})
	if !errors.Is(err, flow.ErrEmptyInput) {
		t.Fatalf("expected ErrEmptyInput, got %v", err)
	}
}

func TestVectorSearchRunner_TagsRecallType(t *testing.T) {
	col := collection.Collection{
		Embedding: &fakeEmbedding{vector: []float32{0.1, 0.2}},
		Vectors:   &fakeVectorStore{docs: []retrieval.Document{{Text: "hit", Score: 0.9}}},
	}
	system := flow.SystemInput{Query: "widget", Collection: col}
	inputs := map[string]any{"query": "widget", "collection_ids": []string{"c1"}}

	result, err := VectorSearchRunner.Run(context.Background(), inputs, system)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	docs := result.Outputs["docs"].([]retrieval.Document)
	if len(docs) != 1 {
		t.Fatalf("expected 1 doc, got %d", len(docs))
	}
	if docs[0].Metadata["recall_type"] != retrieval.RecallVector {
		t.Errorf("expected recall_type vector_search, got %v", docs[0].Metadata["recall_type"])
	}
}

func TestGraphSearchRunner_NoGraphReturnsEmpty(t *testing.T) {
	result, err := GraphSearchRunner.Run(context.Background(), nil, flow.SystemInput{Query: "x"})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	docs := result.Outputs["docs"].([]retrieval.Document)
	if len(docs) != 0 {
		t.Errorf("expected no docs without graph capability, got %d", len(docs))
	}
}

func TestGraphSearchDefinition_HasNoQueryInput(t *testing.T) {
	if flow.FieldByName(GraphSearchDefinition.InputSchema, "query") != nil {
		t.Errorf("expected graph_search to have no query field, it reads system.Query like start does")
	}
}

func TestGraphSearchRunner_ReadsQueryFromSystemInput(t *testing.T) {
	col := collection.Collection{Graph: fakeGraphStore{text: "graph context"}}
	system := flow.SystemInput{Query: "how are things related", Collection: col}

	result, err := GraphSearchRunner.Run(context.Background(), map[string]any{"top_k": 5}, system)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	docs := result.Outputs["docs"].([]retrieval.Document)
	if len(docs) != 1 || docs[0].Text != "graph context" {
		t.Fatalf("expected graph context doc, got %+v", docs)
	}
}

type fakeGraphStore struct{ text string }

func (f fakeGraphStore) Query(ctx context.Context, text string, mode collection.GraphMode, topK int, contextOnly bool) (string, error) {
	return f.text, nil
}

func TestMergeRunner_UnionPreservesBindingOrderAndDedups(t *testing.T) {
	inputs := map[string]any{
		"vector_search_docs":  []retrieval.Document{{Text: "X"}, {Text: "A"}},
		"keyword_search_docs": []retrieval.Document{{Text: "X"}, {Text: "B"}},
	}
	result, err := MergeRunner.Run(context.Background(), inputs, flow.SystemInput{})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	docs := result.Outputs["docs"].([]retrieval.Document)
	if len(docs) != 3 {
		t.Fatalf("expected 3 deduplicated docs, got %d (%+v)", len(docs), docs)
	}
	if docs[0].Text != "X" || docs[1].Text != "A" || docs[2].Text != "B" {
		t.Errorf("expected [X A B] in vector-first binding order, got %+v", docs)
	}
}

func TestMergeRunner_UnknownStrategyIsStructuralError(t *testing.T) {
	inputs := map[string]any{"merge_strategy": "intersect"}
	_, err := MergeRunner.Run(context.Background(), inputs, flow.SystemInput{})
	if !errors.Is(err, flow.ErrUnknownMergeStrat) {
		t.Fatalf("expected ErrUnknownMergeStrat, got %v", err)
	}
}

func TestRerankRunner_EmptyDocsShortCircuits(t *testing.T) {
	result, err := RerankRunner.Run(context.Background(), map[string]any{}, flow.SystemInput{})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	docs := result.Outputs["docs"].([]retrieval.Document)
	if len(docs) != 0 {
		t.Errorf("expected no docs, got %d", len(docs))
	}
}

type fakeRerank struct {
	order []int
}

func (f *fakeRerank) Rank(ctx context.Context, query string, texts []string) ([]int, error) {
	return f.order, nil
}

func TestRerankRunner_ReordersAndDropsInvalidIndices(t *testing.T) {
	docs := []retrieval.Document{{Text: "a"}, {Text: "b"}, {Text: "c"}}
	system := flow.SystemInput{Rerank: &fakeRerank{order: []int{2, 99, 0}}}

	result, err := RerankRunner.Run(context.Background(), map[string]any{"docs": docs}, system)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	got := result.Outputs["docs"].([]retrieval.Document)
	if len(got) != 2 {
		t.Fatalf("expected 2 docs after dropping invalid index, got %d", len(got))
	}
	if got[0].Text != "c" || got[1].Text != "a" {
		t.Errorf("expected [c a], got %+v", got)
	}
}

type fakeCompletion struct {
	tokens chan flow.Token
}

func (f *fakeCompletion) GenerateStream(ctx context.Context, history []collection.Message, prompt string, memory collection.Memory) (<-chan flow.Token, error) {
	return f.tokens, nil
}

func TestRerankRunner_TruncatesToTopK(t *testing.T) {
	docs := []retrieval.Document{{Text: "a"}, {Text: "b"}, {Text: "c"}, {Text: "d"}}
	system := flow.SystemInput{Rerank: &fakeRerank{order: []int{3, 2, 1, 0}}}

	result, err := RerankRunner.Run(context.Background(), map[string]any{"docs": docs, "top_k": 2}, system)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	got := result.Outputs["docs"].([]retrieval.Document)
	if len(got) != 2 {
		t.Fatalf("expected top_k truncation to 2 docs, got %d", len(got))
	}
	if got[0].Text != "d" || got[1].Text != "c" {
		t.Errorf("expected [d c], got %+v", got)
	}
}

func TestRerankRunner_NoProviderTruncatesPassthrough(t *testing.T) {
	docs := []retrieval.Document{{Text: "a"}, {Text: "b"}, {Text: "c"}}
	result, err := RerankRunner.Run(context.Background(), map[string]any{"docs": docs, "top_k": 1}, flow.SystemInput{})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	got := result.Outputs["docs"].([]retrieval.Document)
	if len(got) != 1 || got[0].Text != "a" {
		t.Errorf("expected passthrough truncated to [a], got %+v", got)
	}
}

func TestCompletionRunner_RendersPromptAndStreams(t *testing.T) {
	ch := make(chan flow.Token, 1)
	ch <- flow.Token{Text: "hi"}
	close(ch)

	system := flow.SystemInput{Query: "what is a widget", Completion: &fakeCompletion{tokens: ch}}
	inputs := map[string]any{
		"prompt_template": "Q: {query}\nC: {context}",
		"max_tokens":      1000,
		"docs":            []retrieval.Document{{Text: "widgets are small", Metadata: map[string]any{"url": "https://x/doc"}}},
	}

	result, err := CompletionRunner.Run(context.Background(), inputs, system)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	prompt := result.Outputs["prompt"].(string)
	if prompt == "" {
		t.Fatalf("expected a rendered prompt")
	}
	if result.Tokens == nil {
		t.Fatalf("expected a token stream")
	}
	urls := result.Side["urls"].([]string)
	if len(urls) != 1 || urls[0] != "https://x/doc" {
		t.Errorf("expected one deduplicated url, got %+v", urls)
	}
}

func TestCompletionRunner_PromptTooLong(t *testing.T) {
	system := flow.SystemInput{Completion: &fakeCompletion{}}
	inputs := map[string]any{
		"prompt_template": "this is a long template that will exceed the tiny max_tokens budget we set below",
		"max_tokens":      1,
	}
	_, err := CompletionRunner.Run(context.Background(), inputs, system)
	if !errors.Is(err, flow.ErrPromptTooLong) {
		t.Fatalf("expected ErrPromptTooLong, got %v", err)
	}
}

func TestCompletionRunner_NoProviderConfigured(t *testing.T) {
	inputs := map[string]any{"prompt_template": "{query}", "max_tokens": 1000}
	_, err := CompletionRunner.Run(context.Background(), inputs, flow.SystemInput{})
	if !errors.Is(err, flow.ErrProviderNotConfigured) {
		t.Fatalf("expected ErrProviderNotConfigured, got %v", err)
	}
}
