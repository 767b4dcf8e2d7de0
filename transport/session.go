package transport

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/ragflow-go/ragflow/collection"
	"github.com/ragflow-go/ragflow/memory"
	"github.com/ragflow-go/ragflow/pipeline"
)

// Session drives one websocket connection's turns, grounded on
// common_consumer.py's receive() handler: welcome frame first, then for
// each message frame a start frame, an optional attachment decode, a
// quota check, the pipeline run streaming message frames, and a stop
// frame that always fires regardless of how the turn ended.
type Session struct {
	Conn     *websocket.Conn
	Pipeline *pipeline.Pipeline
	Bot      pipeline.BotConfig

	Collection collection.Collection
	Rerank     collection.RerankService
	Completion collection.CompletionService
	History    memory.HistoryHandle

	User  string
	Quota *Quota

	writeMu sync.Mutex
}

// Serve reads client frames until the connection closes or ctx is
// cancelled. It sends the welcome frame before the first read.
func (s *Session) Serve(ctx context.Context) error {
	if err := s.sendWelcome(); err != nil {
		return err
	}

	for {
		var frame ClientFrame
		if err := s.Conn.ReadJSON(&frame); err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return err
		}

		switch frame.Type {
		case ClientPing:
			if err := s.writeFrame(ServerFrame{Type: ServerPong}); err != nil {
				return err
			}
		case ClientMessage:
			s.handleMessage(ctx, frame)
		default:
			s.sendError("", "unknown frame type: "+frame.Type)
		}
	}
}

func (s *Session) sendWelcome() error {
	faq := make([]string, 0, len(s.Bot.Welcome.FAQ))
	for _, f := range s.Bot.Welcome.FAQ {
		faq = append(faq, f.Question)
	}
	return s.writeFrame(ServerFrame{
		Type:    ServerWelcome,
		Welcome: &WelcomeData{Hello: s.Bot.Welcome.Hello, FAQ: faq},
	})
}

// handleMessage runs one turn end to end. Like common_consumer.py's
// finally block, the stop frame is sent no matter how the turn ends.
func (s *Session) handleMessage(ctx context.Context, frame ClientFrame) {
	messageID := uuid.NewString()
	if err := s.writeFrame(ServerFrame{Type: ServerStart, MessageID: messageID}); err != nil {
		log.Printf("transport: session %s: writing start frame: %v", s.User, err)
		return
	}

	stop := StopData{}
	defer func() {
		if err := s.writeFrame(ServerFrame{Type: ServerStop, MessageID: messageID, Stop: &stop}); err != nil {
			log.Printf("transport: session %s: writing stop frame: %v", s.User, err)
		}
	}()

	query := frame.Data
	if frame.FileName != "" {
		text, err := decodeAttachment(frame.FileName, frame.FileData)
		if err != nil {
			s.sendError(messageID, err.Error())
			return
		}
		query = strings.TrimSpace(query + "\n" + text)
	}

	if s.Quota != nil && !s.Quota.Allow(s.User) {
		s.sendError(messageID, "daily message quota exceeded")
		return
	}

	sink := &wsSink{session: s, messageID: messageID, stop: &stop}
	_, err := s.Pipeline.Run(ctx, pipeline.Input{
		Bot:        s.Bot,
		Collection: s.Collection,
		Rerank:     s.Rerank,
		Completion: s.Completion,
		History:    s.History,
		User:       s.User,
		Query:      query,
		MessageID:  messageID,
	}, sink)
	if err != nil && !errors.Is(err, context.Canceled) {
		s.sendError(messageID, err.Error())
		return
	}

	if s.Quota != nil {
		s.Quota.Increment(s.User)
	}
}

func (s *Session) sendError(messageID, message string) {
	if err := s.writeFrame(ServerFrame{Type: ServerError, MessageID: messageID, Error: message}); err != nil {
		log.Printf("transport: session %s: writing error frame: %v", s.User, err)
	}
}

func (s *Session) writeFrame(frame ServerFrame) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.Conn.WriteJSON(frame)
}

// wsSink adapts a pipeline.Sink to a Session's websocket connection. It
// intercepts sentinel frames instead of forwarding them verbatim: their
// payload fills the stop frame's fields rather than appearing as a
// message chunk (common_consumer.py parses KUBE_CHAT_RELATED_QUESTIONS
// out of the token stream the same way).
type wsSink struct {
	session   *Session
	messageID string
	stop      *StopData
}

func (w *wsSink) Token(text string) error {
	return w.session.writeFrame(ServerFrame{Type: ServerMessage, MessageID: w.messageID, Data: text})
}

func (w *wsSink) Sentinel(frame string) error {
	prefix, payload, ok := strings.Cut(frame, "|")
	if !ok {
		return nil
	}
	switch prefix {
	case pipeline.SentinelReferences:
		return json.Unmarshal([]byte(payload), &w.stop.References)
	case pipeline.SentinelURLs:
		return json.Unmarshal([]byte(payload), &w.stop.URLs)
	case pipeline.SentinelRelatedQuestions:
		return json.Unmarshal([]byte(payload), &w.stop.RelatedQuestions)
	default:
		return nil
	}
}
