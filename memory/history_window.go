package memory

import (
	"sort"
	"strings"
)

const (
	// DefaultMaxTurns is the number of question/answer exchanges kept.
	DefaultMaxTurns = 3
	// DefaultTokenLimit bounds the rendered history.
	DefaultTokenLimit = 1500
	// NoHistory is rendered when there is nothing to show.
	NoHistory = "No previous conversation chat history"
)

// HistoryWindow selects the most recent exchanges of a conversation that fit
// a token budget and renders them for a prompt. It holds no conversation
// state, so one window can serve concurrent requests.
type HistoryWindow struct {
	maxTurns    int
	tokenLimit  int
	tokenizerFn TokenizerFunc
}

// HistoryWindowOption configures a HistoryWindow.
type HistoryWindowOption func(*HistoryWindow)

// WithMaxTurns sets how many exchanges are kept.
func WithMaxTurns(n int) HistoryWindowOption {
	return func(w *HistoryWindow) {
		w.maxTurns = n
	}
}

// WithTokenLimit sets the token limit.
func WithTokenLimit(limit int) HistoryWindowOption {
	return func(w *HistoryWindow) {
		w.tokenLimit = limit
	}
}

// WithTokenizer sets the tokenizer function.
func WithTokenizer(fn TokenizerFunc) HistoryWindowOption {
	return func(w *HistoryWindow) {
		w.tokenizerFn = fn
	}
}

// NewHistoryWindow creates a new HistoryWindow.
func NewHistoryWindow(opts ...HistoryWindowOption) *HistoryWindow {
	w := &HistoryWindow{
		maxTurns:    DefaultMaxTurns,
		tokenLimit:  DefaultTokenLimit,
		tokenizerFn: DefaultTokenizer,
	}

	for _, opt := range opts {
		opt(w)
	}

	return w
}

// MaxTurns returns the number of exchanges kept.
func (w *HistoryWindow) MaxTurns() int {
	return w.maxTurns
}

// Recent returns the tail of turns that fits the window: at most MaxTurns
// user messages with their answers, trimmed from the oldest end until the
// token limit holds. The window never starts with an assistant message.
func (w *HistoryWindow) Recent(turns []ChatTurn) []ChatTurn {
	if len(turns) == 0 || w.maxTurns <= 0 {
		return nil
	}

	ordered := make([]ChatTurn, len(turns))
	copy(ordered, turns)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Timestamp.Before(ordered[j].Timestamp)
	})

	start := len(ordered)
	users := 0
	for i := len(ordered) - 1; i >= 0; i-- {
		if ordered[i].Sender == SenderUser {
			if users == w.maxTurns {
				break
			}
			users++
		}
		start = i
	}
	window := ordered[start:]

	for len(window) > 0 && w.tokenLimit > 0 && w.tokenizerFn(render(window)) > w.tokenLimit {
		window = window[1:]
		for len(window) > 0 && window[0].Sender != SenderUser {
			window = window[1:]
		}
	}

	for len(window) > 0 && window[0].Sender != SenderUser {
		window = window[1:]
	}
	return window
}

// Format renders the recent history, or NoHistory when nothing remains.
func (w *HistoryWindow) Format(turns []ChatTurn) string {
	recent := w.Recent(turns)
	if len(recent) == 0 {
		return NoHistory
	}
	return render(recent)
}

func render(turns []ChatTurn) string {
	var b strings.Builder
	for i, t := range turns {
		if i > 0 {
			b.WriteByte('\n')
		}
		switch t.Sender {
		case SenderUser:
			b.WriteString("User: ")
		default:
			b.WriteString("Assistant: ")
		}
		b.WriteString(strings.TrimSpace(t.Message))
	}
	return b.String()
}
