// Package retrieval implements the candidate-assembly primitives shared by
// every search/merge/rerank runner: embedding fan-out, dimension probing,
// keyword intersection filtering, context packing, and URL deduplication.
package retrieval

// Document is the currency of retrieval: every search/merge/rerank runner
// consumes and produces sequences of these (spec.md §3, Document-With-Score).
type Document struct {
	Text     string
	Score    float64
	Metadata map[string]any
}

// RecallType tags in Metadata["recall_type"] identify which runner produced
// a Document.
const (
	RecallVector  = "vector_search"
	RecallKeyword = "keyword_search"
	RecallSummary = "summary_search"
	RecallGraph   = "graph_search"
)

// Source returns Metadata["source"], the document-name key used by the
// keyword-intersection filter, or "" if absent.
func (d Document) Source() string {
	if d.Metadata == nil {
		return ""
	}
	s, _ := d.Metadata["source"].(string)
	return s
}

// URL returns Metadata["url"], or "" if absent.
func (d Document) URL() string {
	if d.Metadata == nil {
		return ""
	}
	u, _ := d.Metadata["url"].(string)
	return u
}

// WithRecallType returns a copy of d tagged with the given recall type.
func (d Document) WithRecallType(recallType string) Document {
	md := make(map[string]any, len(d.Metadata)+1)
	for k, v := range d.Metadata {
		md[k] = v
	}
	md["recall_type"] = recallType
	d.Metadata = md
	return d
}
