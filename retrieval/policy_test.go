package retrieval

import "testing"

func TestDefaultPolicy(t *testing.T) {
	p := DefaultPolicy()
	if p.KeywordOversample != 3 {
		t.Errorf("expected KeywordOversample 3, got %d", p.KeywordOversample)
	}
	if p.RerankOversample != 6 {
		t.Errorf("expected RerankOversample 6, got %d", p.RerankOversample)
	}
}
