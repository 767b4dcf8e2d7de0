package retrieval

// Policy exposes the retrieval oversampling factors that spec.md's Design
// Notes flagged as hard-coded magic numbers worth promoting to
// configuration: keyword_search's 3x recall oversample (spec.md §4.6.2)
// and the rerank stage's oversample factor applied before truncating to
// top_k (spec.md §4.7 "reranked in its entirety... then the top-k are
// kept"). Callers that don't need to tune these can use DefaultPolicy.
type Policy struct {
	KeywordOversample int
	RerankOversample  int
}

// DefaultPolicy matches the factors named directly in spec.md: 3x for
// keyword recall, 6x for the candidate pool handed to rerank before
// truncation to top_k.
func DefaultPolicy() Policy {
	return Policy{KeywordOversample: 3, RerankOversample: 6}
}
