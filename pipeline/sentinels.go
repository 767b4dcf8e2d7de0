package pipeline

import "encoding/json"

// Sentinel frame prefixes a completion stream is followed by, each emitted
// as a discrete "<prefix>|<json>" frame (spec.md §4.9 step 5).
const (
	SentinelReferences       = "DOC_QA_REFERENCES"
	SentinelURLs             = "DOCUMENT_URLS"
	SentinelRelatedQuestions = "RELATED_QUESTIONS"
)

// encodeSentinel renders one sentinel frame.
func encodeSentinel(prefix string, payload any) (string, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	return prefix + "|" + string(b), nil
}
