package chatstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/aanchal1903/BusinessOps-Chatbot/memory"
	"github.com/surrealdb/surrealdb.go"
	"github.com/surrealdb/surrealdb.go/contrib/rews"
	"github.com/surrealdb/surrealdb.go/pkg/connection"
	"github.com/surrealdb/surrealdb.go/pkg/connection/gorillaws"
	"github.com/surrealdb/surrealdb.go/pkg/logger"
	"github.com/surrealdb/surrealdb.go/surrealcbor"
)

// chatSchemaSQL defines the chat_session table.
const chatSchemaSQL = `
    DEFINE TABLE IF NOT EXISTS chat_session SCHEMALESS;
    DEFINE INDEX IF NOT EXISTS chat_session_key ON chat_session FIELDS user_id, chat_id UNIQUE;
    DEFINE INDEX IF NOT EXISTS chat_session_updated ON chat_session FIELDS user_id, last_updated;
`

// SurrealConfig holds SurrealDB connection configuration.
type SurrealConfig struct {
	URL       string `json:"url" yaml:"url"`
	Namespace string `json:"namespace" yaml:"namespace"`
	Database  string `json:"database" yaml:"database"`
	Username  string `json:"username" yaml:"username"`
	Password  string `json:"-" yaml:"-"`
}

// SurrealChatStore keeps chat sessions in SurrealDB.
type SurrealChatStore struct {
	db     *surrealdb.DB
	closer func(context.Context) error
	logger *slog.Logger
}

// NewSurrealChatStore connects with an auto-reconnecting WebSocket, signs
// in as root, selects namespace/database and defines the schema.
func NewSurrealChatStore(ctx context.Context, cfg SurrealConfig, log *slog.Logger) (*SurrealChatStore, error) {
	if log == nil {
		log = slog.New(slog.NewJSONHandler(os.Stdout, nil))
	}
	sdkLogger := logger.New(log.Handler())
	codec := surrealcbor.New()

	// gorillaws appends /rpc itself
	baseURL := strings.TrimSuffix(cfg.URL, "/rpc")

	conn := rews.New(
		func(ctx context.Context) (*gorillaws.Connection, error) {
			return gorillaws.New(&connection.Config{
				BaseURL:     baseURL,
				Marshaler:   codec,
				Unmarshaler: codec,
				Logger:      sdkLogger,
			}), nil
		},
		5*time.Second,
		codec,
		sdkLogger,
	)

	retryer := rews.NewExponentialBackoffRetryer()
	retryer.InitialDelay = 1 * time.Second
	retryer.MaxDelay = 30 * time.Second
	retryer.MaxRetries = 5
	conn.Retryer = retryer

	if err := conn.Connect(ctx); err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}

	db, err := surrealdb.FromConnection(ctx, conn)
	if err != nil {
		_ = conn.Close(ctx)
		return nil, fmt.Errorf("from connection: %w", err)
	}

	if _, err := db.SignIn(ctx, surrealdb.Auth{Username: cfg.Username, Password: cfg.Password}); err != nil {
		_ = conn.Close(ctx)
		return nil, fmt.Errorf("signin: %w", err)
	}
	if err := db.Use(ctx, cfg.Namespace, cfg.Database); err != nil {
		_ = conn.Close(ctx)
		return nil, fmt.Errorf("use: %w", err)
	}

	s := &SurrealChatStore{db: db, closer: conn.Close, logger: log}
	if err := s.InitSchema(ctx); err != nil {
		_ = conn.Close(ctx)
		return nil, err
	}
	log.Info("surrealdb chat store ready", "url", cfg.URL, "namespace", cfg.Namespace, "database", cfg.Database)
	return s, nil
}

// InitSchema defines the chat_session table and its indexes.
func (s *SurrealChatStore) InitSchema(ctx context.Context) error {
	if _, err := surrealdb.Query[any](ctx, s.db, chatSchemaSQL, nil); err != nil {
		return fmt.Errorf("init chat schema: %w", err)
	}
	return nil
}

// Close closes the connection.
func (s *SurrealChatStore) Close(ctx context.Context) error {
	if s.closer == nil {
		return nil
	}
	return s.closer(ctx)
}

type countRow struct {
	Count int `json:"count"`
}

// ListChats returns a page of the user's sessions.
func (s *SurrealChatStore) ListChats(ctx context.Context, opts ListOptions) ([]ChatSession, Pagination, error) {
	opts, err := opts.Normalize()
	if err != nil {
		return nil, Pagination{}, err
	}

	where := "user_id = $user_id"
	vars := map[string]any{
		"user_id": opts.UserID,
		"limit":   opts.Limit,
		"start":   (opts.Page - 1) * opts.Limit,
	}
	if opts.TenantID != "" {
		where += " AND tenant_id = $tenant_id"
		vars["tenant_id"] = opts.TenantID
	}

	counts, err := surrealdb.Query[[]countRow](ctx, s.db,
		"SELECT count() AS count FROM chat_session WHERE "+where+" GROUP ALL", vars)
	if err != nil {
		return nil, Pagination{}, fmt.Errorf("count chats: %w", err)
	}
	total := 0
	if counts != nil && len(*counts) > 0 && len((*counts)[0].Result) > 0 {
		total = (*counts)[0].Result[0].Count
	}

	results, err := surrealdb.Query[[]ChatSession](ctx, s.db, `
		SELECT chat_id, user_id, tenant_id, title, created_at, last_updated, bookmarked
		FROM chat_session WHERE `+where+`
		ORDER BY last_updated DESC LIMIT $limit START $start`, vars)
	if err != nil {
		return nil, Pagination{}, fmt.Errorf("list chats: %w", err)
	}

	sessions := []ChatSession{}
	if results != nil && len(*results) > 0 {
		sessions = (*results)[0].Result
	}
	return sessions, NewPagination(opts.Page, opts.Limit, total), nil
}

// GetChat returns one session with its messages.
func (s *SurrealChatStore) GetChat(ctx context.Context, userID, chatID string) (*ChatSession, error) {
	results, err := surrealdb.Query[[]ChatSession](ctx, s.db, `
		SELECT chat_id, user_id, tenant_id, title, created_at, last_updated, bookmarked, messages
		FROM chat_session WHERE user_id = $user_id AND chat_id = $chat_id LIMIT 1`,
		map[string]any{"user_id": userID, "chat_id": chatID})
	if err != nil {
		return nil, fmt.Errorf("get chat: %w", err)
	}
	if results == nil || len(*results) == 0 || len((*results)[0].Result) == 0 {
		return nil, ErrChatNotFound
	}
	return &(*results)[0].Result[0], nil
}

// update runs an UPDATE on one session and maps "no rows" to ErrChatNotFound.
func (s *SurrealChatStore) update(ctx context.Context, set string, vars map[string]any) ([]ChatSession, error) {
	results, err := surrealdb.Query[[]ChatSession](ctx, s.db,
		"UPDATE chat_session SET "+set+" WHERE user_id = $user_id AND chat_id = $chat_id RETURN AFTER", vars)
	if err != nil {
		return nil, err
	}
	if results == nil || len(*results) == 0 || len((*results)[0].Result) == 0 {
		return nil, ErrChatNotFound
	}
	return (*results)[0].Result, nil
}

// RenameChat sets the title of a session.
func (s *SurrealChatStore) RenameChat(ctx context.Context, userID, chatID, title string) error {
	title = strings.TrimSpace(title)
	if title == "" {
		return ErrInvalidTitle
	}
	_, err := s.update(ctx, "title = $title, last_updated = $now", map[string]any{
		"user_id": userID,
		"chat_id": chatID,
		"title":   title,
		"now":     time.Now().UTC(),
	})
	if err != nil && !errors.Is(err, ErrChatNotFound) {
		return fmt.Errorf("rename chat: %w", err)
	}
	return err
}

// DeleteChat removes a session.
func (s *SurrealChatStore) DeleteChat(ctx context.Context, userID, chatID string) error {
	results, err := surrealdb.Query[[]ChatSession](ctx, s.db,
		"DELETE chat_session WHERE user_id = $user_id AND chat_id = $chat_id RETURN BEFORE",
		map[string]any{"user_id": userID, "chat_id": chatID})
	if err != nil {
		return fmt.Errorf("delete chat: %w", err)
	}
	if results == nil || len(*results) == 0 || len((*results)[0].Result) == 0 {
		return ErrChatNotFound
	}
	return nil
}

// ToggleBookmark flips the bookmark flag.
func (s *SurrealChatStore) ToggleBookmark(ctx context.Context, userID, chatID string) (bool, error) {
	rows, err := s.update(ctx, "bookmarked = !bookmarked, last_updated = $now", map[string]any{
		"user_id": userID,
		"chat_id": chatID,
		"now":     time.Now().UTC(),
	})
	if errors.Is(err, ErrChatNotFound) {
		return false, err
	}
	if err != nil {
		return false, fmt.Errorf("bookmark chat: %w", err)
	}
	return rows[0].Bookmarked, nil
}

// AppendTurns appends turns, creating the session on first use.
func (s *SurrealChatStore) AppendTurns(ctx context.Context, userID, chatID string, turns ...memory.ChatTurn) error {
	if len(turns) == 0 {
		return nil
	}
	now := time.Now().UTC()

	_, err := s.update(ctx, "messages += $turns, last_updated = $now", map[string]any{
		"user_id": userID,
		"chat_id": chatID,
		"turns":   turns,
		"now":     now,
	})
	if err == nil {
		return nil
	}
	if !errors.Is(err, ErrChatNotFound) {
		return fmt.Errorf("append turns: %w", err)
	}

	_, err = surrealdb.Query[any](ctx, s.db, "CREATE chat_session CONTENT $session", map[string]any{
		"session": ChatSession{
			ChatID:      chatID,
			UserID:      userID,
			Title:       TitleFrom(turns),
			CreatedAt:   now,
			LastUpdated: now,
			Messages:    turns,
		},
	})
	if err != nil {
		return fmt.Errorf("create chat: %w", err)
	}
	return nil
}

// RecentTurns returns up to n of the newest turns.
func (s *SurrealChatStore) RecentTurns(ctx context.Context, userID, chatID string, n int) ([]memory.ChatTurn, error) {
	sess, err := s.GetChat(ctx, userID, chatID)
	if errors.Is(err, ErrChatNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return lastTurns(sess.Messages, n), nil
}

var _ ChatStore = (*SurrealChatStore)(nil)
