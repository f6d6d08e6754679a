package sqlchain

import (
	"context"
	"encoding/json"
	"unicode/utf8"
)

// EventType tags a streamed event.
type EventType string

const (
	EventChatID    EventType = "chatId"
	EventText      EventType = "text"
	EventSQLQuery  EventType = "sqlquery"
	EventMessageID EventType = "messageId"
	EventError     EventType = "error"
)

// StreamChunkSize is the number of runes per text event.
const StreamChunkSize = 4

// Event is one message of a streamed answer.
type Event struct {
	Type    EventType `json:"type"`
	Content string    `json:"content"`
}

// JSON encodes the event as a single JSON object.
func (e Event) JSON() string {
	b, _ := json.Marshal(e)
	return string(b)
}

// ChunkText splits s into pieces of at most n runes, counting each invalid
// UTF-8 byte as one rune. Joining the pieces yields s.
func ChunkText(s string, n int) []string {
	if s == "" {
		return nil
	}
	if n <= 0 {
		return []string{s}
	}
	var chunks []string
	start, count := 0, 0
	for i := 0; i < len(s); {
		_, size := utf8.DecodeRuneInString(s[i:])
		i += size
		if count++; count == n {
			chunks = append(chunks, s[start:i])
			start, count = i, 0
		}
	}
	if start < len(s) {
		chunks = append(chunks, s[start:])
	}
	return chunks
}

// ResultEvents renders a completed run as the event sequence: chatId, the
// answer in text chunks, sqlquery and messageId.
func ResultEvents(chatID string, res *Result) []Event {
	chunks := ChunkText(res.Output, StreamChunkSize)
	events := make([]Event, 0, len(chunks)+3)
	events = append(events, Event{Type: EventChatID, Content: chatID})
	for _, c := range chunks {
		events = append(events, Event{Type: EventText, Content: c})
	}
	if res.SQL != "" {
		events = append(events, Event{Type: EventSQLQuery, Content: res.SQL})
	}
	events = append(events, Event{Type: EventMessageID, Content: res.MessageID})
	return events
}

// Emit sends events on a new channel that is closed after the last event or
// when ctx is done.
func Emit(ctx context.Context, events []Event) <-chan Event {
	ch := make(chan Event)
	go func() {
		defer close(ch)
		for _, e := range events {
			select {
			case ch <- e:
			case <-ctx.Done():
				return
			}
		}
	}()
	return ch
}

// Stream runs the chain to completion and then emits its events. Chain
// failures are returned before any event is sent.
func (c *Chain) Stream(ctx context.Context, req Request, chatID string) (*Result, <-chan Event, error) {
	res, err := c.Run(ctx, req)
	if err != nil {
		return nil, nil, err
	}
	return res, Emit(ctx, ResultEvents(chatID, res)), nil
}
