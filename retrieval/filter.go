package retrieval

import (
	"regexp"
	"strings"
)

// FilterByKeywords drops documents whose Source() does not contain at
// least one of keywords (case-insensitive substring match), implementing
// the keyword-intersection filter spec.md §4.6.3 describes: reranked
// classic-mode candidates pass through this once UseKeywordFilter is set,
// matching the original's _run_classic_rag/filter_by_keywords step.
// Documents with no recorded source always pass, since there is nothing to
// intersect against.
func FilterByKeywords(docs []Document, keywords []string) []Document {
	if len(keywords) == 0 {
		return docs
	}
	lower := make([]string, len(keywords))
	for i, k := range keywords {
		lower[i] = strings.ToLower(k)
	}

	out := make([]Document, 0, len(docs))
	for _, d := range docs {
		source := d.Source()
		if source == "" {
			out = append(out, d)
			continue
		}
		sourceLower := strings.ToLower(source)
		for _, k := range lower {
			if strings.Contains(sourceLower, k) {
				out = append(out, d)
				break
			}
		}
	}
	return out
}

// DedupByURL removes documents whose URL has already been seen, keeping
// the first (highest-ranked, assuming docs arrives score-sorted)
// occurrence. Documents without a URL are never deduplicated against one
// another.
func DedupByURL(docs []Document) []Document {
	seen := make(map[string]bool, len(docs))
	out := make([]Document, 0, len(docs))
	for _, d := range docs {
		url := d.URL()
		if url == "" {
			out = append(out, d)
			continue
		}
		if seen[url] {
			continue
		}
		seen[url] = true
		out = append(out, d)
	}
	return out
}

var wordPattern = regexp.MustCompile(`[\p{L}\p{N}]+`)

// stopwords is a minimal English stopword set; ExtractKeywords drops these
// before returning the remaining distinct tokens, lowercased and in the
// order first seen.
var stopwords = map[string]bool{
	"the": true, "a": true, "an": true, "is": true, "are": true, "was": true,
	"were": true, "be": true, "been": true, "being": true, "to": true,
	"of": true, "in": true, "on": true, "for": true, "and": true, "or": true,
	"but": true, "with": true, "as": true, "by": true, "at": true, "from": true,
	"that": true, "this": true, "these": true, "those": true, "it": true,
	"what": true, "which": true, "who": true, "whom": true, "how": true,
	"do": true, "does": true, "did": true, "can": true, "could": true,
	"will": true, "would": true, "should": true, "i": true, "you": true,
	"he": true, "she": true, "we": true, "they": true, "my": true, "your": true,
}

// ExtractKeywords tokenizes query into lowercase word runs, drops
// stopwords, and returns up to limit distinct terms in first-seen order.
// It grounds the ApeRAG keyword_extractor.py lexical pass (a query passed
// to keyword_search needs terms, not a sentence) without pulling in an
// NLP dependency: this is pure tokenization, no stemming or POS tagging.
func ExtractKeywords(query string, limit int) []string {
	words := wordPattern.FindAllString(strings.ToLower(query), -1)
	seen := make(map[string]bool, len(words))
	out := make([]string, 0, len(words))
	for _, w := range words {
		if stopwords[w] || seen[w] {
			continue
		}
		seen[w] = true
		out = append(out, w)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out
}
