package chatstore

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/aanchal1903/BusinessOps-Chatbot/memory"
)

const (
	// DefaultPersistDir is the default directory for persistence.
	DefaultPersistDir = "./storage"
	// DefaultPersistFilename is the default filename for persistence.
	DefaultPersistFilename = "chat_store.json"
)

// SimpleChatStore is an in-memory chat store with optional persistence.
type SimpleChatStore struct {
	mu    sync.RWMutex
	store map[string]*ChatSession
	now   func() time.Time
}

// NewSimpleChatStore creates a new SimpleChatStore.
func NewSimpleChatStore() *SimpleChatStore {
	return &SimpleChatStore{
		store: make(map[string]*ChatSession),
		now:   func() time.Time { return time.Now().UTC() },
	}
}

func sessionKey(userID, chatID string) string {
	return userID + "\x00" + chatID
}

// ListChats returns a page of the user's sessions.
func (s *SimpleChatStore) ListChats(ctx context.Context, opts ListOptions) ([]ChatSession, Pagination, error) {
	opts, err := opts.Normalize()
	if err != nil {
		return nil, Pagination{}, err
	}

	s.mu.RLock()
	var matched []ChatSession
	for _, sess := range s.store {
		if sess.UserID != opts.UserID {
			continue
		}
		if opts.TenantID != "" && sess.TenantID != opts.TenantID {
			continue
		}
		summary := *sess
		summary.Messages = nil
		matched = append(matched, summary)
	}
	s.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		if matched[i].LastUpdated.Equal(matched[j].LastUpdated) {
			return matched[i].ChatID < matched[j].ChatID
		}
		return matched[i].LastUpdated.After(matched[j].LastUpdated)
	})

	page := NewPagination(opts.Page, opts.Limit, len(matched))
	start := (opts.Page - 1) * opts.Limit
	if start >= len(matched) {
		return []ChatSession{}, page, nil
	}
	end := min(start+opts.Limit, len(matched))
	return matched[start:end], page, nil
}

// GetChat returns a copy of one session.
func (s *SimpleChatStore) GetChat(ctx context.Context, userID, chatID string) (*ChatSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.store[sessionKey(userID, chatID)]
	if !ok {
		return nil, ErrChatNotFound
	}

	// Return a copy to prevent external mutation
	out := *sess
	out.Messages = make([]memory.ChatTurn, len(sess.Messages))
	copy(out.Messages, sess.Messages)
	return &out, nil
}

// RenameChat sets the title of a session.
func (s *SimpleChatStore) RenameChat(ctx context.Context, userID, chatID, title string) error {
	title = strings.TrimSpace(title)
	if title == "" {
		return ErrInvalidTitle
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.store[sessionKey(userID, chatID)]
	if !ok {
		return ErrChatNotFound
	}
	sess.Title = title
	sess.LastUpdated = s.now()
	return nil
}

// DeleteChat removes a session.
func (s *SimpleChatStore) DeleteChat(ctx context.Context, userID, chatID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := sessionKey(userID, chatID)
	if _, ok := s.store[key]; !ok {
		return ErrChatNotFound
	}
	delete(s.store, key)
	return nil
}

// ToggleBookmark flips the bookmark flag.
func (s *SimpleChatStore) ToggleBookmark(ctx context.Context, userID, chatID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.store[sessionKey(userID, chatID)]
	if !ok {
		return false, ErrChatNotFound
	}
	sess.Bookmarked = !sess.Bookmarked
	sess.LastUpdated = s.now()
	return sess.Bookmarked, nil
}

// AppendTurns appends turns, creating the session on first use.
func (s *SimpleChatStore) AppendTurns(ctx context.Context, userID, chatID string, turns ...memory.ChatTurn) error {
	if len(turns) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	key := sessionKey(userID, chatID)
	sess, ok := s.store[key]
	if !ok {
		sess = &ChatSession{
			ChatID:    chatID,
			UserID:    userID,
			Title:     TitleFrom(turns),
			CreatedAt: now,
		}
		s.store[key] = sess
	}
	sess.Messages = append(sess.Messages, turns...)
	sess.LastUpdated = now
	return nil
}

// RecentTurns returns up to n of the newest turns.
func (s *SimpleChatStore) RecentTurns(ctx context.Context, userID, chatID string, n int) ([]memory.ChatTurn, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.store[sessionKey(userID, chatID)]
	if !ok {
		return nil, nil
	}
	return lastTurns(sess.Messages, n), nil
}

// Persist saves the chat store to disk.
func (s *SimpleChatStore) Persist(ctx context.Context, persistPath string) error {
	if persistPath == "" {
		persistPath = filepath.Join(DefaultPersistDir, DefaultPersistFilename)
	}

	dirPath := filepath.Dir(persistPath)
	if err := os.MkdirAll(dirPath, 0755); err != nil {
		return err
	}

	s.mu.RLock()
	sessions := make([]*ChatSession, 0, len(s.store))
	for _, sess := range s.store {
		sessions = append(sessions, sess)
	}
	jsonData, err := json.MarshalIndent(sessions, "", "  ")
	s.mu.RUnlock()
	if err != nil {
		return err
	}

	return os.WriteFile(persistPath, jsonData, 0644)
}

// SimpleChatStoreFromPersistPath loads a SimpleChatStore from a persist path.
// A missing file yields an empty store.
func SimpleChatStoreFromPersistPath(ctx context.Context, persistPath string) (*SimpleChatStore, error) {
	if persistPath == "" {
		persistPath = filepath.Join(DefaultPersistDir, DefaultPersistFilename)
	}

	store := NewSimpleChatStore()

	// Check if file exists
	if _, err := os.Stat(persistPath); os.IsNotExist(err) {
		return store, nil
	}

	data, err := os.ReadFile(persistPath)
	if err != nil {
		return nil, err
	}

	var sessions []*ChatSession
	if err := json.Unmarshal(data, &sessions); err != nil {
		return nil, err
	}

	for _, sess := range sessions {
		store.store[sessionKey(sess.UserID, sess.ChatID)] = sess
	}
	return store, nil
}

// Ensure SimpleChatStore implements ChatStore.
var _ ChatStore = (*SimpleChatStore)(nil)
