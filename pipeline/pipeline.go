// Package pipeline implements the top-level per-turn orchestrator (spec.md
// §4.9, C9): load capped history, compose and embed query_with_history,
// run the bot's retrieve mode, stream the completion node's output to a
// transport-agnostic Sink, emit the reference/url/related-question
// sentinels, and persist the turn to conversation history.
package pipeline

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"strings"
	"time"

	"github.com/ragflow-go/ragflow/collection"
	"github.com/ragflow-go/ragflow/flow"
	"github.com/ragflow-go/ragflow/memory"
	"github.com/ragflow-go/ragflow/retrieval"
)

// Sink receives a turn's output as it streams: token chunks first, then
// sentinel frames (spec.md §4.9 step 5). A transport adapts its own wire
// frames from these calls; this package has no dependency on any
// transport.
type Sink interface {
	Token(text string) error
	Sentinel(frame string) error
}

// Input gathers everything one Run call needs beyond BotConfig (spec.md
// §4.9: "Inputs: bot_config, collection, history_handle, query,
// message_id").
type Input struct {
	Bot        BotConfig
	Collection collection.Collection
	Rerank     collection.RerankService
	Completion collection.CompletionService
	History    memory.HistoryHandle

	User      string
	Query     string
	MessageID string
}

// Result is what a completed turn produced, independent of how the sink
// rendered it as wire frames.
type Result struct {
	Response         string
	References       []string
	URLs             []string
	RelatedQuestions []string
}

// Pipeline is the top-level per-turn orchestrator (spec.md §4.9, C9).
type Pipeline struct {
	engine *flow.Engine
	policy retrieval.Policy

	dimensions *retrieval.DimensionCache
}

// New builds a Pipeline driven by engine, using the default retrieval
// oversampling policy. Use WithPolicy to override it.
func New(engine *flow.Engine) *Pipeline {
	return &Pipeline{engine: engine, policy: retrieval.DefaultPolicy(), dimensions: retrieval.NewDimensionCache()}
}

// WithPolicy overrides the retrieval oversampling policy a Pipeline uses
// when sizing search nodes ahead of rerank.
func (p *Pipeline) WithPolicy(policy retrieval.Policy) *Pipeline {
	p.policy = policy
	return p
}

// Run drives one user turn end to end.
func (p *Pipeline) Run(ctx context.Context, in Input, sink Sink) (*Result, error) {
	history, err := p.loadHistory(ctx, in)
	if err != nil {
		return nil, err
	}
	queryWithHistory := composeQueryWithHistory(history, in.Query)

	system := flow.SystemInput{
		User:          in.User,
		Query:         queryWithHistory,
		MessageID:     in.MessageID,
		HistoryHandle: in.History,
		Collection:    in.Collection,
		Rerank:        in.Rerank,
		Completion:    in.Completion,
	}

	mode := in.Bot.RetrieveMode
	if mode == "" {
		mode = RetrieveClassic
	}

	docs, err := p.retrieve(ctx, in.Bot, mode, system)
	if err != nil {
		return nil, err
	}
	if in.Bot.EnableSensitiveFilter {
		docs = redactDocs(docs)
	}

	result := &Result{}

	if len(docs) == 0 && in.Bot.Welcome.Oops != "" {
		result.Response = in.Bot.Welcome.Oops
		if err := sink.Token(result.Response); err != nil {
			return nil, err
		}
		result.RelatedQuestions = welcomeFAQQuestions(in.Bot.Welcome.FAQ)
	} else {
		response, references, urls, err := p.complete(ctx, in.Bot, system, docs, sink)
		if err != nil {
			return nil, err
		}
		result.Response = response
		result.References = references
		result.URLs = urls

		switch {
		case len(docs) == 0:
			result.RelatedQuestions = welcomeFAQQuestions(in.Bot.Welcome.FAQ)
		case in.Bot.RelatedQuestions && (mode == RetrieveClassic || mode == RetrieveMix):
			qs, err := generateRelatedQuestions(ctx, in.Completion, in.Query, response, in.Bot.Completion.RelatedQuestionTemplate)
			if err != nil {
				return nil, err
			}
			result.RelatedQuestions = qs
		}
	}

	if err := emitSentinels(sink, result); err != nil {
		return nil, err
	}
	if err := p.persist(ctx, in, result); err != nil {
		return nil, err
	}
	return result, nil
}

func (p *Pipeline) retrieve(ctx context.Context, cfg BotConfig, mode RetrieveMode, system flow.SystemInput) ([]retrieval.Document, error) {
	plan := buildRetrievalFlow(mode, cfg, p.policy)

	exec, err := p.engine.Execute(ctx, plan.Flow, system, nil)
	if err != nil {
		return nil, err
	}

	var classicDocs, graphDocs []retrieval.Document
	if plan.ClassicNode != "" {
		classicDocs = docsFromOutput(exec.Context, plan.ClassicNode)
		if cfg.UseKeywordFilter {
			classicDocs = retrieval.FilterByKeywords(classicDocs, keywordsForFilter(system.Query))
		}
	}
	if plan.GraphNode != "" {
		graphDocs = docsFromOutput(exec.Context, plan.GraphNode)
	}

	switch mode {
	case RetrieveGraph:
		return graphDocs, nil
	case RetrieveMix:
		return mixDocs(classicDocs, graphDocs, cfg.Completion.ContextWindow), nil
	default:
		return classicDocs, nil
	}
}

// keywordCap bounds how many terms keywordsForFilter extracts from the raw
// query, matching ExtractKeywords's general-purpose limit param rather than
// passing every token in a long message through the filter.
const keywordCap = 8

// keywordsForFilter extracts the terms the keyword-intersection filter
// matches document sources against. queryWithHistory carries the prior
// turns' queries newline-joined ahead of the current one (see
// composeQueryWithHistory); filter_by_keywords in the original pipeline
// uses "the original message" for extraction, so only the last line is
// considered here.
func keywordsForFilter(queryWithHistory string) []string {
	lines := strings.Split(queryWithHistory, "\n")
	return retrieval.ExtractKeywords(lines[len(lines)-1], keywordCap)
}

// redactDocs replaces credential-shaped spans in each document's text
// before it reaches the completion prompt (SPEC_FULL.md §10).
func redactDocs(docs []retrieval.Document) []retrieval.Document {
	out := make([]retrieval.Document, len(docs))
	for i, d := range docs {
		masked, _ := retrieval.RedactSensitive(d.Text)
		d.Text = masked
		out[i] = d
	}
	return out
}

func docsFromOutput(ec *flow.ExecutionContext, nodeID string) []retrieval.Document {
	v, ok := ec.GetOutput(nodeID, "docs")
	if !ok {
		return nil
	}
	docs, _ := v.([]retrieval.Document)
	return docs
}

// mixDocs applies spec.md §4.9's mix fallback rule (KG error/empty falls
// back to classic alone; classic empty falls back to KG alone) and, when
// both sides have content, formats each side as an explicitly labelled
// section (spec.md §4.9 step 3).
func mixDocs(classicDocs, graphDocs []retrieval.Document, contextWindow int) []retrieval.Document {
	if len(graphDocs) == 0 {
		return classicDocs
	}
	if len(classicDocs) == 0 {
		return graphDocs
	}

	budget := contextWindow
	if budget <= 0 {
		budget = defaultContextWindow
	}
	half := budget / 2

	kg := retrieval.PackContext(graphDocs, retrieval.PackOptions{MaxChars: half})
	dc := retrieval.PackContext(classicDocs, retrieval.PackOptions{MaxChars: half, AttributeSource: true})

	return []retrieval.Document{
		{Text: "From Knowledge Graph (KG):\n" + kg},
		{Text: "From Document Chunks (DC):\n" + dc},
	}
}

const defaultContextWindow = 8000

func (p *Pipeline) complete(ctx context.Context, cfg BotConfig, system flow.SystemInput, docs []retrieval.Document, sink Sink) (string, []string, []string, error) {
	flowInst := buildCompletionFlow(cfg)
	globals := map[string]any{"docs": docs}

	exec, err := p.engine.Execute(ctx, flowInst, system, globals)
	if err != nil {
		return "", nil, nil, err
	}

	tokens, ok := exec.Context.StreamHandle("llm")
	if !ok {
		return "", nil, nil, errors.New("pipeline: completion node produced no token stream")
	}

	var sb strings.Builder
	for tok := range tokens {
		if tok.Err != nil {
			return "", nil, nil, tok.Err
		}
		sb.WriteString(tok.Text)
		if err := sink.Token(tok.Text); err != nil {
			return "", nil, nil, err
		}
	}

	side, _ := exec.Context.Side("llm")
	references, _ := side["references"].([]string)
	urls, _ := side["urls"].([]string)

	return sb.String(), references, urls, nil
}

func emitSentinels(sink Sink, result *Result) error {
	refFrame, err := encodeSentinel(SentinelReferences, result.References)
	if err != nil {
		return err
	}
	if err := sink.Sentinel(refFrame); err != nil {
		return err
	}

	urlFrame, err := encodeSentinel(SentinelURLs, result.URLs)
	if err != nil {
		return err
	}
	if err := sink.Sentinel(urlFrame); err != nil {
		return err
	}

	if result.RelatedQuestions == nil {
		return nil
	}
	rqFrame, err := encodeSentinel(SentinelRelatedQuestions, result.RelatedQuestions)
	if err != nil {
		return err
	}
	return sink.Sentinel(rqFrame)
}

func (p *Pipeline) loadHistory(ctx context.Context, in Input) ([]memory.ConversationMessage, error) {
	if in.History == nil {
		return nil, nil
	}
	all, err := in.History.Messages(ctx)
	if err != nil {
		return nil, err
	}
	return capHistory(all, in.Bot), nil
}

// capHistory applies the memory_limit_count/memory_limit_length caps and
// the use_ai_memory exclusion (spec.md §4.9 step 1), keeping the most
// recent messages that fit.
func capHistory(all []memory.ConversationMessage, cfg BotConfig) []memory.ConversationMessage {
	filtered := all
	if !cfg.UseAIMemory {
		filtered = make([]memory.ConversationMessage, 0, len(all))
		for _, m := range all {
			if m.Role == "ai" {
				continue
			}
			filtered = append(filtered, m)
		}
	}

	limit := cfg.memoryLimitCount()
	if len(filtered) > limit {
		filtered = filtered[len(filtered)-limit:]
	}

	if cfg.MemoryLimitLength <= 0 {
		return filtered
	}

	total := 0
	start := len(filtered)
	for i := len(filtered) - 1; i >= 0; i-- {
		length := len(filtered[i].Query) + len(filtered[i].Response)
		if total+length > cfg.MemoryLimitLength {
			break
		}
		total += length
		start = i
	}
	return filtered[start:]
}

// composeQueryWithHistory prepends the last N human messages' Query text
// to query, newline-separated (spec.md §4.9 step 2). history has already
// been capped by capHistory.
func composeQueryWithHistory(history []memory.ConversationMessage, query string) string {
	var parts []string
	for _, m := range history {
		if m.Role != "human" || m.Query == "" {
			continue
		}
		parts = append(parts, m.Query)
	}
	parts = append(parts, query)
	return strings.Join(parts, "\n")
}

func welcomeFAQQuestions(faqs []FAQ) []string {
	out := make([]string, 0, 3)
	for i, f := range faqs {
		if i >= 3 {
			break
		}
		out = append(out, f.Question)
	}
	return out
}

func (p *Pipeline) persist(ctx context.Context, in Input, result *Result) error {
	if in.History == nil {
		return nil
	}

	humanID := in.MessageID
	if humanID == "" {
		id, err := newMessageID()
		if err != nil {
			return err
		}
		humanID = id
	}
	now := time.Now().Unix()

	if err := in.History.Append(ctx, memory.ConversationMessage{
		ID:        humanID,
		Role:      "human",
		Query:     in.Query,
		Timestamp: now,
	}); err != nil {
		return err
	}

	return in.History.Append(ctx, memory.ConversationMessage{
		ID:         humanID + "-response",
		Role:       "ai",
		Query:      in.Query,
		Response:   result.Response,
		References: result.References,
		URLs:       result.URLs,
		Timestamp:  now,
		Provenance: memory.Provenance{
			CollectionID:    in.Bot.ID,
			EmbeddingModel:  in.Bot.Embedding.Model,
			VectorDimension: p.probeDimension(ctx, in),
			TopK:            in.Bot.topK(),
			ScoreThreshold:  in.Bot.ScoreThreshold,
			CompletionModel: in.Bot.Completion.Model,
			PromptTemplate:  in.Bot.Completion.PromptTemplate,
			ContextWindow:   in.Bot.Completion.ContextWindow,
		},
	})
}

// probeDimension records the embedding vector length for the bot's
// (provider, model) pair the first time it is needed, reusing the same
// process-wide cache shape spec.md §5 describes for the embedding layer
// itself, rather than issuing a fresh probe call on every turn.
func (p *Pipeline) probeDimension(ctx context.Context, in Input) int {
	if in.Collection.Embedding == nil {
		return 0
	}
	dim, err := p.dimensions.Probe(ctx, in.Bot.Embedding.Provider, in.Bot.Embedding.Model, func(ctx context.Context) ([]float32, error) {
		return in.Collection.Embedding.EmbedQuery(ctx, retrieval.DimensionProbeText())
	})
	if err != nil {
		return 0
	}
	return dim
}

func newMessageID() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
