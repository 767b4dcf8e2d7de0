package retrieval

import "regexp"

// SensitiveMatch records one redacted span: the original text, the rule
// that matched it, and its position in the original (pre-redaction) text.
type SensitiveMatch struct {
	Text  string
	Type  string
	Start int
	End   int
}

// sensitivePattern pairs a detection regex with the Type label recorded on
// every match it produces.
type sensitivePattern struct {
	Type string
	Re   *regexp.Regexp
}

// defaultSensitivePatterns catches the credential shapes the ApeRAG DLP
// pass treats as always-sensitive (API keys, bearer tokens, inline
// passwords) without shelling out to an external scanner: this is a
// conservative regex pass, not a full DLP classifier, and callers that
// need broader coverage should run RedactSensitive's output through their
// own provider-side moderation too.
var defaultSensitivePatterns = []sensitivePattern{
	{Type: "api_key", Re: regexp.MustCompile(`(?i)\b(sk|pk|api)[-_][A-Za-z0-9]{16,}\b`)},
	{Type: "bearer_token", Re: regexp.MustCompile(`(?i)\bBearer\s+[A-Za-z0-9._-]{16,}\b`)},
	{Type: "password_assignment", Re: regexp.MustCompile(`(?i)\b(password|passwd|pwd)\s*[:=]\s*\S+`)},
}

// RedactSensitive replaces every span matched by the default sensitive
// patterns with asterisks of equal length, returning the masked text
// alongside the matches found (empty if none). It never shells out and
// never calls an LLM; it is the always-on first pass the original's
// sensitive_filter.py runs before an optional LLM classification step.
func RedactSensitive(text string) (string, []SensitiveMatch) {
	var matches []SensitiveMatch
	out := []byte(text)

	for _, p := range defaultSensitivePatterns {
		locs := p.Re.FindAllStringIndex(text, -1)
		for _, loc := range locs {
			start, end := loc[0], loc[1]
			matches = append(matches, SensitiveMatch{
				Text:  text[start:end],
				Type:  p.Type,
				Start: start,
				End:   end,
			})
			for i := start; i < end; i++ {
				out[i] = '*'
			}
		}
	}
	return string(out), matches
}
