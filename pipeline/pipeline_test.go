package pipeline

import (
	"context"
	"strings"
	"testing"

	"github.com/ragflow-go/ragflow/collection"
	"github.com/ragflow-go/ragflow/flow"
	"github.com/ragflow-go/ragflow/flow/emit"
	"github.com/ragflow-go/ragflow/memory"
	"github.com/ragflow-go/ragflow/retrieval"
	"github.com/ragflow-go/ragflow/retrieval/runners"
)

func newTestEngine() *flow.Engine {
	reg := flow.NewRegistry()
	runners.Register(reg)
	return flow.NewEngine(reg, emit.NewBus(emit.NullEmitter{}))
}

type fakeEmbedding struct{ vector []float32 }

func (f *fakeEmbedding) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	return f.vector, nil
}
func (f *fakeEmbedding) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	return nil, nil
}

type fakeVectorStore struct{ docs []retrieval.Document }

func (f *fakeVectorStore) Search(ctx context.Context, coll string, vector []float32, topK int, threshold float64, filter collection.Filter) ([]retrieval.Document, error) {
	return f.docs, nil
}
func (f *fakeVectorStore) Add(ctx context.Context, coll string, nodes []collection.VectorNode) ([]string, error) {
	return nil, nil
}
func (f *fakeVectorStore) Delete(ctx context.Context, coll string, filter collection.Filter) error {
	return nil
}

type fakeCompletion struct{ response string }

func (f *fakeCompletion) GenerateStream(ctx context.Context, history []collection.Message, prompt string, mem collection.Memory) (<-chan flow.Token, error) {
	ch := make(chan flow.Token, len(strings.Fields(f.response))+1)
	for _, w := range strings.Fields(f.response) {
		ch <- flow.Token{Text: w + " "}
	}
	close(ch)
	return ch, nil
}

type fakeSink struct {
	tokens    []string
	sentinels []string
}

func (s *fakeSink) Token(text string) error {
	s.tokens = append(s.tokens, text)
	return nil
}
func (s *fakeSink) Sentinel(frame string) error {
	s.sentinels = append(s.sentinels, frame)
	return nil
}

func TestPipeline_ClassicModeProducesAnswerAndSentinels(t *testing.T) {
	engine := newTestEngine()
	p := New(engine)

	col := collection.Collection{
		Embedding: &fakeEmbedding{vector: []float32{0.1, 0.2}},
		Vectors:   &fakeVectorStore{docs: []retrieval.Document{{Text: "widgets are small", Metadata: map[string]any{"url": "https://x/doc"}}}},
	}
	history := memory.NewInMemoryHistory()

	in := Input{
		Bot: BotConfig{
			ID:            "bot-1",
			RetrieveMode:  RetrieveClassic,
			CollectionIDs: []string{"c1"},
			TopK:          3,
			Completion:    CompletionConfig{PromptTemplate: "Q: {query}\nC: {context}", MaxTokens: 1000},
		},
		Collection: col,
		Completion: &fakeCompletion{response: "widgets are great"},
		History:    history,
		Query:      "what is a widget",
		MessageID:  "turn-1",
	}

	sink := &fakeSink{}
	result, err := p.Run(context.Background(), in, sink)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if result.Response == "" {
		t.Fatalf("expected a non-empty response")
	}
	if len(sink.tokens) == 0 {
		t.Errorf("expected streamed tokens")
	}
	if len(sink.sentinels) < 2 {
		t.Fatalf("expected at least references+urls sentinels, got %d", len(sink.sentinels))
	}
	if !strings.HasPrefix(sink.sentinels[0], SentinelReferences+"|") {
		t.Errorf("expected first sentinel to be references, got %q", sink.sentinels[0])
	}
	if !strings.HasPrefix(sink.sentinels[1], SentinelURLs+"|") {
		t.Errorf("expected second sentinel to be urls, got %q", sink.sentinels[1])
	}

	messages, err := history.Messages(context.Background())
	if err != nil {
		t.Fatalf("Messages failed: %v", err)
	}
	if len(messages) != 2 {
		t.Fatalf("expected human+ai messages persisted, got %d", len(messages))
	}
	if messages[0].Role != "human" || messages[1].Role != "ai" {
		t.Errorf("expected [human ai] order, got [%s %s]", messages[0].Role, messages[1].Role)
	}
	if messages[1].Provenance.CollectionID != "bot-1" {
		t.Errorf("expected provenance collection id bot-1, got %q", messages[1].Provenance.CollectionID)
	}
}

func TestPipeline_EmptyRetrievalUsesOops(t *testing.T) {
	engine := newTestEngine()
	p := New(engine)

	in := Input{
		Bot: BotConfig{
			ID:            "bot-1",
			RetrieveMode:  RetrieveClassic,
			CollectionIDs: nil, // no collection ids -> vector_search returns no docs
			Welcome:       WelcomeConfig{Oops: "I don't know that one.", FAQ: []FAQ{{Question: "What is a widget?"}}},
		},
		Collection: collection.Collection{},
		History:    memory.NewInMemoryHistory(),
		Query:      "what is a gadget",
	}

	sink := &fakeSink{}
	result, err := p.Run(context.Background(), in, sink)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if result.Response != "I don't know that one." {
		t.Errorf("expected oops response, got %q", result.Response)
	}
	if len(result.RelatedQuestions) != 1 || result.RelatedQuestions[0] != "What is a widget?" {
		t.Errorf("expected welcome FAQ as related question, got %+v", result.RelatedQuestions)
	}
}

func TestPipeline_SensitiveFilterRedactsDocumentText(t *testing.T) {
	engine := newTestEngine()
	p := New(engine)

	col := collection.Collection{
		Embedding: &fakeEmbedding{vector: []float32{0.1, 0.2}},
		Vectors: &fakeVectorStore{docs: []retrieval.Document{
			{Text: "here is a key: sk-abcdefghijklmnop123456"},
		}},
	}

	in := Input{
		Bot: BotConfig{
			RetrieveMode:          RetrieveClassic,
			CollectionIDs:         []string{"c1"},
			TopK:                  3,
			EnableSensitiveFilter: true,
			Completion:            CompletionConfig{PromptTemplate: "{context}", MaxTokens: 1000},
		},
		Collection: col,
		Completion: &fakeCompletion{response: "ok"},
		History:    memory.NewInMemoryHistory(),
		Query:      "what is the key",
	}

	sink := &fakeSink{}
	if _, err := p.Run(context.Background(), in, sink); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
}

func TestRedactDocs_MasksEachDocumentIndependently(t *testing.T) {
	docs := []retrieval.Document{
		{Text: "password: hunter2"},
		{Text: "nothing sensitive here"},
	}
	got := redactDocs(docs)
	if got[0].Text == docs[0].Text {
		t.Errorf("expected first doc's text to be redacted")
	}
	if got[1].Text != docs[1].Text {
		t.Errorf("expected second doc's text unchanged, got %q", got[1].Text)
	}
}

func TestPipeline_KeywordFilterDropsNonMatchingSourcedDocs(t *testing.T) {
	engine := newTestEngine()
	p := New(engine)

	col := collection.Collection{
		Embedding: &fakeEmbedding{vector: []float32{0.1, 0.2}},
		Vectors: &fakeVectorStore{docs: []retrieval.Document{
			{Text: "widgets are small", Metadata: map[string]any{"source": "widget_manual.md"}},
			{Text: "prices change monthly", Metadata: map[string]any{"source": "pricing_sheet.pdf"}},
		}},
	}

	in := Input{
		Bot: BotConfig{
			RetrieveMode:     RetrieveClassic,
			CollectionIDs:    []string{"c1"},
			TopK:             5,
			UseKeywordFilter: true,
			Completion:       CompletionConfig{PromptTemplate: "{context}", MaxTokens: 1000},
		},
		Collection: col,
		Completion: &fakeCompletion{response: "ok"},
		History:    memory.NewInMemoryHistory(),
		Query:      "what is a widget",
	}

	sink := &fakeSink{}
	result, err := p.Run(context.Background(), in, sink)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(result.References) != 1 || result.References[0] != "widget_manual.md" {
		t.Errorf("expected only the widget-sourced doc to survive the keyword filter, got %+v", result.References)
	}
}

func TestPipeline_KeywordFilterOffKeepsAllDocs(t *testing.T) {
	engine := newTestEngine()
	p := New(engine)

	col := collection.Collection{
		Embedding: &fakeEmbedding{vector: []float32{0.1, 0.2}},
		Vectors: &fakeVectorStore{docs: []retrieval.Document{
			{Text: "widgets are small", Metadata: map[string]any{"source": "widget_manual.md"}},
			{Text: "prices change monthly", Metadata: map[string]any{"source": "pricing_sheet.pdf"}},
		}},
	}

	in := Input{
		Bot: BotConfig{
			RetrieveMode:  RetrieveClassic,
			CollectionIDs: []string{"c1"},
			TopK:          5,
			Completion:    CompletionConfig{PromptTemplate: "{context}", MaxTokens: 1000},
		},
		Collection: col,
		Completion: &fakeCompletion{response: "ok"},
		History:    memory.NewInMemoryHistory(),
		Query:      "what is a widget",
	}

	sink := &fakeSink{}
	result, err := p.Run(context.Background(), in, sink)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(result.References) != 2 {
		t.Errorf("expected both docs without keyword filtering, got %+v", result.References)
	}
}

func TestPipeline_GraphModeUsesGraphBranch(t *testing.T) {
	engine := newTestEngine()
	p := New(engine)

	col := collection.Collection{Graph: fakeGraphStore{text: "graph context"}}
	in := Input{
		Bot: BotConfig{
			RetrieveMode:  RetrieveGraph,
			CollectionIDs: []string{"c1"},
			Completion:    CompletionConfig{PromptTemplate: "{context}", MaxTokens: 1000},
		},
		Collection: col,
		Completion: &fakeCompletion{response: "answer from graph"},
		History:    memory.NewInMemoryHistory(),
		Query:      "how are things related",
	}

	sink := &fakeSink{}
	result, err := p.Run(context.Background(), in, sink)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if result.Response == "" {
		t.Fatalf("expected a non-empty response")
	}
}

type fakeGraphStore struct{ text string }

func (f fakeGraphStore) Query(ctx context.Context, text string, mode collection.GraphMode, topK int, contextOnly bool) (string, error) {
	return f.text, nil
}

func TestCapHistory_CountLimit(t *testing.T) {
	history := make([]memory.ConversationMessage, 0, 5)
	for i := 0; i < 5; i++ {
		history = append(history, memory.ConversationMessage{Role: "human", Query: "q"})
	}
	got := capHistory(history, BotConfig{MemoryLimitCount: 2})
	if len(got) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(got))
	}
}

func TestCapHistory_ExcludesAIMemoryWhenDisabled(t *testing.T) {
	history := []memory.ConversationMessage{
		{Role: "human", Query: "q1"},
		{Role: "ai", Response: "r1"},
		{Role: "human", Query: "q2"},
	}
	got := capHistory(history, BotConfig{UseAIMemory: false})
	for _, m := range got {
		if m.Role == "ai" {
			t.Fatalf("expected ai messages excluded, got %+v", got)
		}
	}
}

func TestComposeQueryWithHistory(t *testing.T) {
	history := []memory.ConversationMessage{
		{Role: "human", Query: "what is a widget"},
		{Role: "ai", Response: "a small thing"},
	}
	got := composeQueryWithHistory(history, "how much does it cost")
	want := "what is a widget\nhow much does it cost"
	if got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
}

func TestParseRelatedQuestions_StripsListPrefixesAndCaps(t *testing.T) {
	text := "1. What is a widget?\n- How does it work?\n3) Why use one?\nExtra question that should be dropped"
	got := parseRelatedQuestions(text, 3)
	if len(got) != 3 {
		t.Fatalf("expected 3 questions, got %d (%+v)", len(got), got)
	}
	if got[0] != "What is a widget?" {
		t.Errorf("expected prefix stripped, got %q", got[0])
	}
}
