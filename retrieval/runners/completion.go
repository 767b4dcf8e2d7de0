package runners

import (
	"context"
	"strings"

	"github.com/ragflow-go/ragflow/collection"
	"github.com/ragflow-go/ragflow/flow"
	"github.com/ragflow-go/ragflow/retrieval"
)

// defaultContextBudget is the fixed character budget PackContext packs
// docs into before prompt substitution, used when no collection-level
// context window is configured on the node instance.
const defaultContextBudget = 8000

// CompletionDefinition is the llm (completion) node type (spec.md §4.6.7).
var CompletionDefinition = flow.NodeDefinition{
	TypeKey: TypeCompletion,
	InputSchema: []flow.FieldDefinition{
		{Name: "model_service_provider", Type: flow.FieldTypeString},
		{Name: "model_name", Type: flow.FieldTypeString},
		{Name: "prompt_template", Type: flow.FieldTypeString, Required: true},
		{Name: "temperature", Type: flow.FieldTypeFloat, Default: 0.7},
		{Name: "max_tokens", Type: flow.FieldTypeInteger, Default: 1024},
		{Name: "context_window", Type: flow.FieldTypeInteger, Default: defaultContextBudget},
		{Name: "docs", Type: flow.FieldTypeArray},
	},
	OutputSchema: []flow.FieldDefinition{
		{Name: "prompt", Type: flow.FieldTypeString},
	},
}

// CompletionRunner packs docs into a context string, renders the prompt
// template, checks the output token budget, and starts a streaming
// completion. It returns immediately with the rendered prompt as its
// resolved output; the token stream travels on RunResult.Tokens and the
// reference/URL sentinels travel on RunResult.Side, per spec.md §4.6.7 and
// the engine's first-class streaming result (flow/registry.go RunResult).
//
// History persistence is deliberately not performed here: the pipeline
// layer owns it exclusively (DESIGN.md, Open Questions).
var CompletionRunner flow.RunnerFunc = func(ctx context.Context, inputs map[string]any, system flow.SystemInput) (flow.RunResult, error) {
	docs := getDocs(inputs, "docs")
	template := getString(inputs, "prompt_template", "")
	maxTokens := getInt(inputs, "max_tokens", 1024)
	budget := getInt(inputs, "context_window", defaultContextBudget)

	packed := retrieval.PackContext(docs, retrieval.PackOptions{MaxChars: budget, AttributeSource: true})
	prompt := renderTemplate(template, system.Query, packed)

	outputBudget := maxTokens - len(prompt)
	if outputBudget < 0 {
		return flow.RunResult{}, flow.ErrPromptTooLong
	}

	completion := completionFromSystem(system)
	if completion == nil {
		return flow.RunResult{}, flow.ErrProviderNotConfigured
	}

	tokens, err := completion.GenerateStream(ctx, nil, prompt, collection.Memory{})
	if err != nil {
		return flow.RunResult{}, err
	}

	references := referencesOf(docs)
	urls := dedupURLsOf(docs)

	return flow.RunResult{
		Outputs: map[string]any{"prompt": prompt},
		Side: map[string]any{
			"references": references,
			"urls":       urls,
		},
		Tokens: tokens,
	}, nil
}

// renderTemplate substitutes {query} and {context} into template, the
// prompt-assembly step spec.md §4.6.7 step 2 describes.
func renderTemplate(template, query, context string) string {
	r := strings.NewReplacer("{query}", query, "{context}", context)
	return r.Replace(template)
}

// referencesOf returns one reference per doc (llm.py builds a
// {text, metadata, score} entry per doc regardless of source), preferring
// the doc's recorded source but falling back to its URL or a text snippet
// so a doc with no source metadata — the synthetic KG/DC section documents
// mix mode builds, for instance — still produces a reference rather than
// being silently dropped.
func referencesOf(docs []retrieval.Document) []string {
	refs := make([]string, 0, len(docs))
	for _, d := range docs {
		switch {
		case d.Source() != "":
			refs = append(refs, d.Source())
		case d.URL() != "":
			refs = append(refs, d.URL())
		default:
			refs = append(refs, textSnippet(d.Text, 120))
		}
	}
	return refs
}

func textSnippet(text string, maxLen int) string {
	if len(text) <= maxLen {
		return text
	}
	return text[:maxLen]
}

// dedupURLsOf collects each doc's URL, deduplicated and in encounter order.
// It runs docs through retrieval.DedupByURL rather than reimplementing the
// same dedup, then drops the docs that had no URL to begin with.
func dedupURLsOf(docs []retrieval.Document) []string {
	deduped := retrieval.DedupByURL(docs)
	urls := make([]string, 0, len(deduped))
	for _, d := range deduped {
		if u := d.URL(); u != "" {
			urls = append(urls, u)
		}
	}
	return urls
}
