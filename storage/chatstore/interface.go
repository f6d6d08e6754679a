// Package chatstore keeps chat sessions keyed by (user_id, chat_id).
package chatstore

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/aanchal1903/BusinessOps-Chatbot/memory"
)

const (
	// DefaultPageLimit is the page size when none is given.
	DefaultPageLimit = 10
	// MaxPageLimit bounds the page size.
	MaxPageLimit = 100
	// TitleLength bounds titles derived from the first question of a chat.
	TitleLength = 50
)

var (
	// ErrChatNotFound is returned when no chat matches (user_id, chat_id).
	ErrChatNotFound = errors.New("chat with the provided ID does not exist")
	// ErrInvalidTitle is returned when renaming a chat to a blank title.
	ErrInvalidTitle = errors.New("invalid title format: the title must be a non-empty string")
	// ErrInvalidPagination is returned for a page below 1 or a limit outside 1..100.
	ErrInvalidPagination = errors.New("invalid pagination parameters")
)

// ChatSession is one conversation of a user.
type ChatSession struct {
	ChatID      string            `json:"chat_id"`
	UserID      string            `json:"user_id"`
	TenantID    string            `json:"tenant_id,omitempty"`
	Title       string            `json:"title"`
	CreatedAt   time.Time         `json:"created_at"`
	LastUpdated time.Time         `json:"last_updated"`
	Bookmarked  bool              `json:"bookmarked"`
	Messages    []memory.ChatTurn `json:"messages,omitempty"`
}

// ListOptions selects a page of a user's chats. Zero Page and Limit mean
// the first page of DefaultPageLimit items.
type ListOptions struct {
	UserID   string
	TenantID string
	Page     int
	Limit    int
}

// Normalize applies defaults and validates the bounds.
func (o ListOptions) Normalize() (ListOptions, error) {
	if o.Page == 0 {
		o.Page = 1
	}
	if o.Limit == 0 {
		o.Limit = DefaultPageLimit
	}
	if o.Page < 1 || o.Limit < 1 || o.Limit > MaxPageLimit {
		return o, ErrInvalidPagination
	}
	return o, nil
}

// Pagination describes the returned page.
type Pagination struct {
	CurrentPage int `json:"current_page"`
	TotalPages  int `json:"total_pages"`
	TotalItems  int `json:"total_items"`
}

// NewPagination computes the page count for total items.
func NewPagination(page, limit, total int) Pagination {
	pages := total / limit
	if total%limit != 0 {
		pages++
	}
	return Pagination{CurrentPage: page, TotalPages: pages, TotalItems: total}
}

// ChatStore persists chat sessions.
type ChatStore interface {
	// ListChats returns a page of sessions without messages, most recently
	// updated first.
	ListChats(ctx context.Context, opts ListOptions) ([]ChatSession, Pagination, error)
	// GetChat returns one session with its messages.
	GetChat(ctx context.Context, userID, chatID string) (*ChatSession, error)
	// RenameChat sets the title of a session.
	RenameChat(ctx context.Context, userID, chatID, title string) error
	// DeleteChat removes a session.
	DeleteChat(ctx context.Context, userID, chatID string) error
	// ToggleBookmark flips the bookmark flag and returns the new state.
	ToggleBookmark(ctx context.Context, userID, chatID string) (bool, error)
	// AppendTurns appends turns to a session, creating it when missing.
	AppendTurns(ctx context.Context, userID, chatID string, turns ...memory.ChatTurn) error
	// RecentTurns returns up to n of the newest turns in timestamp order.
	// A missing session yields no turns.
	RecentTurns(ctx context.Context, userID, chatID string, n int) ([]memory.ChatTurn, error)
}

// TitleFrom derives a session title from the first user turn.
func TitleFrom(turns []memory.ChatTurn) string {
	for _, t := range turns {
		if t.Sender != memory.SenderUser {
			continue
		}
		title := strings.Join(strings.Fields(t.Message), " ")
		if utf8.RuneCountInString(title) > TitleLength {
			title = string([]rune(title)[:TitleLength]) + "..."
		}
		if title != "" {
			return title
		}
	}
	return "New chat"
}

func lastTurns(turns []memory.ChatTurn, n int) []memory.ChatTurn {
	if n <= 0 || len(turns) == 0 {
		return nil
	}
	if len(turns) > n {
		turns = turns[len(turns)-n:]
	}
	out := make([]memory.ChatTurn, len(turns))
	copy(out, turns)
	return out
}
