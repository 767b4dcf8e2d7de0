package pipeline

import (
	"context"
	"strings"

	"github.com/ragflow-go/ragflow/collection"
)

// generateRelatedQuestions issues a second, lightweight completion call
// using template, gated by the caller to classic/mix retrieve modes
// (SPEC_FULL.md §10 supplemented feature): a knowledge-graph-only context
// block rarely yields the kind of chunk-grounded follow-up question this
// feature is meant to surface. A nil completion or empty template is
// treated as "feature disabled" rather than an error.
func generateRelatedQuestions(ctx context.Context, completion collection.CompletionService, query, answer, template string) ([]string, error) {
	if template == "" || completion == nil {
		return nil, nil
	}

	prompt := strings.NewReplacer("{query}", query, "{answer}", answer).Replace(template)
	tokens, err := completion.GenerateStream(ctx, nil, prompt, collection.Memory{})
	if err != nil {
		return nil, err
	}

	var sb strings.Builder
	for tok := range tokens {
		if tok.Err != nil {
			return nil, tok.Err
		}
		sb.WriteString(tok.Text)
	}
	return parseRelatedQuestions(sb.String(), 3), nil
}

// parseRelatedQuestions treats the completion's response as one candidate
// question per line, stripping common list-item prefixes, and caps the
// result at limit to match the welcome-FAQ degradation cap.
func parseRelatedQuestions(text string, limit int) []string {
	var out []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(strings.TrimLeft(strings.TrimSpace(line), "-*0123456789. "))
		if line == "" {
			continue
		}
		out = append(out, line)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out
}
