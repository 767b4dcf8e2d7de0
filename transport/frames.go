// Package transport implements the bidirectional websocket session that
// fronts a pipeline.Pipeline (spec.md §4.10, C10): client frames carry a
// query and an optional attachment, server frames stream the completion
// token by token and close with a stop frame carrying sentinel payloads.
package transport

// Client frame types (spec.md §4.10: "message" carries the query and an
// optional binary attachment, "ping" is a liveness probe).
const (
	ClientMessage = "message"
	ClientPing    = "ping"
)

// Server frame types.
const (
	ServerStart   = "start"
	ServerWelcome = "welcome"
	ServerMessage = "message"
	ServerStop    = "stop"
	ServerError   = "error"
	ServerPong    = "pong"
)

// ClientFrame is what a session reads off the websocket connection.
type ClientFrame struct {
	Type string `json:"type"`
	Data string `json:"data,omitempty"`

	// FileName names an attached file, decoded by extension against the
	// session's reader table and appended to Data before the query is
	// run. Empty means no attachment.
	FileName string `json:"file_name,omitempty"`
	FileData string `json:"file_data,omitempty"`
}

// ServerFrame is what a session writes to the websocket connection.
type ServerFrame struct {
	Type      string `json:"type"`
	MessageID string `json:"message_id,omitempty"`
	Data      string `json:"data,omitempty"`

	Welcome *WelcomeData `json:"welcome,omitempty"`
	Stop    *StopData    `json:"stop,omitempty"`
	Error   string       `json:"error,omitempty"`
}

// WelcomeData is the payload of the welcome frame sent once per
// connection, before any message frame is processed.
type WelcomeData struct {
	Hello string   `json:"hello"`
	FAQ   []string `json:"faq"`
}

// StopData is the payload of the stop frame that always closes out a
// turn, success or failure (spec.md §4.10: "the session always sends a
// stop frame, carrying references, urls and related questions when the
// turn succeeded, empty otherwise").
type StopData struct {
	References       []string `json:"references"`
	URLs             []string `json:"urls"`
	RelatedQuestions []string `json:"related_questions"`
}
