package retrieval

import (
	"fmt"
	"strings"
)

// PackOptions controls how PackContext assembles a completion prompt's
// context block from ranked documents.
type PackOptions struct {
	// MaxChars caps the packed context's total length. Documents are
	// appended in the given order until the next one would exceed the
	// budget; that document and all following it are dropped.
	MaxChars int

	// Delimiter separates consecutive documents in the packed output.
	// Defaults to "\n\n---\n\n".
	Delimiter string

	// AttributeSource prefixes each document with its source URL, when
	// present, so the model can cite it (spec.md §4.6.6).
	AttributeSource bool
}

// PackContext joins docs into a single string under a character budget,
// in the given order, never truncating a document mid-text: the first
// document that would overflow the budget and everything after it is
// dropped whole (P4 — the Document is the unit of packing).
func PackContext(docs []Document, opts PackOptions) string {
	delim := opts.Delimiter
	if delim == "" {
		delim = "\n\n---\n\n"
	}

	var b strings.Builder
	used := 0
	wrote := false
	for _, d := range docs {
		text := d.Text
		if opts.AttributeSource {
			if url := d.URL(); url != "" {
				text = fmt.Sprintf("[source: %s]\n%s", url, text)
			}
		}

		add := len(text)
		if wrote {
			add += len(delim)
		}
		if opts.MaxChars > 0 && used+add > opts.MaxChars {
			break
		}

		if wrote {
			b.WriteString(delim)
		}
		b.WriteString(text)
		used += add
		wrote = true
	}
	return b.String()
}
