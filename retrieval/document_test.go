package retrieval

import "testing"

func TestDocument_SourceAndURL(t *testing.T) {
	t.Run("absent metadata returns empty string", func(t *testing.T) {
		d := Document{Text: "hello"}
		if d.Source() != "" {
			t.Errorf("expected empty Source, got %q", d.Source())
		}
		if d.URL() != "" {
			t.Errorf("expected empty URL, got %q", d.URL())
		}
	})

	t.Run("present metadata returns values", func(t *testing.T) {
		d := Document{Metadata: map[string]any{"source": "manual.pdf", "url": "https://example.com/manual.pdf"}}
		if d.Source() != "manual.pdf" {
			t.Errorf("expected Source = manual.pdf, got %q", d.Source())
		}
		if d.URL() != "https://example.com/manual.pdf" {
			t.Errorf("expected URL = https://example.com/manual.pdf, got %q", d.URL())
		}
	})
}

func TestDocument_WithRecallType(t *testing.T) {
	orig := Document{Text: "x", Metadata: map[string]any{"source": "a.txt"}}
	tagged := orig.WithRecallType(RecallVector)

	if tagged.Metadata["recall_type"] != RecallVector {
		t.Errorf("expected recall_type = %q, got %v", RecallVector, tagged.Metadata["recall_type"])
	}
	if _, ok := orig.Metadata["recall_type"]; ok {
		t.Errorf("expected original document's metadata to be untouched")
	}
	if tagged.Metadata["source"] != "a.txt" {
		t.Errorf("expected source to survive tagging, got %v", tagged.Metadata["source"])
	}
}
