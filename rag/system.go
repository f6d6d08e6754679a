// Package rag is the top level of the chatbot: it routes each question to the
// structured SQL chain or the candidate matcher and turns every failure into
// a user-facing answer.
package rag

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/aanchal1903/BusinessOps-Chatbot/matcher"
	"github.com/aanchal1903/BusinessOps-Chatbot/memory"
	"github.com/aanchal1903/BusinessOps-Chatbot/rag/reader"
	"github.com/aanchal1903/BusinessOps-Chatbot/router"
	"github.com/aanchal1903/BusinessOps-Chatbot/sqlchain"
	"github.com/aanchal1903/BusinessOps-Chatbot/storage/chatstore"
	"github.com/google/uuid"
)

const (
	// NoSQLGenerated fills SQLQuery when a structured run produced no statement.
	NoSQLGenerated = "No SQL query generated"
	// NoAnswerGenerated fills Answer when a pipeline produced no text.
	NoAnswerGenerated = "No answer generated"
	// ErrorAnswerPrefix starts the answer of every failed query.
	ErrorAnswerPrefix = "Error processing query: "
)

// ErrEmptyQuestion is returned for a blank question without a document.
var ErrEmptyQuestion = errors.New("question is empty")

// Query is one user request.
type Query struct {
	Question string `json:"question"`
	// DocumentPath points at a job description to match candidates against.
	DocumentPath string   `json:"document_path,omitempty"`
	UserID       string   `json:"user_id,omitempty"`
	ChatID       string   `json:"chat_id,omitempty"`
	Language     string   `json:"language,omitempty"`
	AllowList    []string `json:"allow_list,omitempty"`
}

// Response is the outcome of ProcessQuery. A failed query still carries a
// readable Answer; Err holds the cause.
type Response struct {
	ChainType  router.Decision     `json:"chain_type"`
	Query      string              `json:"query"`
	SQLQuery   string              `json:"sql_query,omitempty"`
	Answer     string              `json:"answer"`
	MessageID  string              `json:"message_id"`
	ChatID     string              `json:"chat_id"`
	Candidates []matcher.Candidate `json:"candidates,omitempty"`
	Err        error               `json:"-"`
}

// Failed reports whether the query ended in an error.
func (r *Response) Failed() bool {
	return r.Err != nil
}

// System routes questions to the structured chain or the candidate matcher.
type System struct {
	router       Router
	chain        StructuredChain
	matcher      CandidateMatcher
	chats        chatstore.ChatStore
	observer     Observer
	allowList    []string
	historyTurns int
	language     string
	logger       *slog.Logger
}

// SystemOption configures a System.
type SystemOption func(*System)

// WithChatStore enables conversation history. Turns are read before and
// written after each query that names a user.
func WithChatStore(store chatstore.ChatStore) SystemOption {
	return func(s *System) {
		s.chats = store
	}
}

// WithObserver sets the routing observer.
func WithObserver(observer Observer) SystemOption {
	return func(s *System) {
		s.observer = observer
	}
}

// WithAllowList sets the tables used when a query names none.
func WithAllowList(tables []string) SystemOption {
	return func(s *System) {
		s.allowList = tables
	}
}

// WithHistoryTurns sets how many question/answer exchanges are loaded from
// the chat store.
func WithHistoryTurns(n int) SystemOption {
	return func(s *System) {
		if n >= 0 {
			s.historyTurns = n
		}
	}
}

// WithLanguage sets the answer language used when a query names none.
func WithLanguage(language string) SystemOption {
	return func(s *System) {
		s.language = language
	}
}

// WithSystemLogger sets the logger.
func WithSystemLogger(logger *slog.Logger) SystemOption {
	return func(s *System) {
		s.logger = logger
	}
}

// NewSystem creates a System.
func NewSystem(r Router, chain StructuredChain, m CandidateMatcher, opts ...SystemOption) *System {
	s := &System{
		router:       r,
		chain:        chain,
		matcher:      m,
		historyTurns: memory.DefaultMaxTurns,
		language:     "ENGLISH",
		logger:       slog.New(slog.NewJSONHandler(os.Stdout, nil)),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ProcessQuery routes the question once and runs the chosen pipeline. It
// never returns a nil Response; failures are reported through Response.Err
// and an answer starting with ErrorAnswerPrefix.
func (s *System) ProcessQuery(ctx context.Context, q Query) *Response {
	if s.observer != nil {
		defer s.observer.QueryStarted()()
	}

	resp := &Response{Query: q.Question, ChatID: q.ChatID}
	if resp.ChatID == "" {
		resp.ChatID = uuid.NewString()
	}

	question := strings.TrimSpace(q.Question)
	document := strings.TrimSpace(q.DocumentPath)

	if document != "" {
		if err := reader.CheckDocument(document); err != nil {
			return s.fail(resp, err)
		}
	}

	switch {
	case question == "" && document == "":
		return s.fail(resp, ErrEmptyQuestion)
	case question == "":
		// A bare job description has nothing to classify.
		resp.ChainType = router.Unstructured
	default:
		decision, err := s.router.RouteQuery(ctx, question)
		if err != nil {
			return s.fail(resp, err)
		}
		resp.ChainType = decision
	}
	if s.observer != nil {
		s.observer.ObserveRoute(string(resp.ChainType))
	}
	s.logger.Info("Router decision", "chain_type", resp.ChainType, "chat_id", resp.ChatID)

	var err error
	if resp.ChainType == router.Unstructured {
		err = s.runUnstructured(ctx, q, question, document, resp)
	} else {
		err = s.runStructured(ctx, q, question, resp)
	}
	if err != nil {
		return s.fail(resp, err)
	}

	s.record(ctx, q.UserID, resp.ChatID, question, resp.Answer)
	return resp
}

func (s *System) runStructured(ctx context.Context, q Query, question string, resp *Response) error {
	allow := q.AllowList
	if len(allow) == 0 {
		allow = s.allowList
	}
	language := q.Language
	if language == "" {
		language = s.language
	}

	res, err := s.chain.Run(ctx, sqlchain.Request{
		Question:  question,
		AllowList: allow,
		History:   s.history(ctx, q.UserID, resp.ChatID),
		Language:  language,
	})
	if err != nil {
		return err
	}

	resp.SQLQuery = res.SQL
	if resp.SQLQuery == "" {
		resp.SQLQuery = NoSQLGenerated
	}
	resp.Answer = res.Output
	if strings.TrimSpace(resp.Answer) == "" {
		resp.Answer = NoAnswerGenerated
	}
	resp.MessageID = res.MessageID
	return nil
}

func (s *System) runUnstructured(ctx context.Context, q Query, question, document string, resp *Response) error {
	if s.matcher == nil {
		return errors.New("candidate matcher is not configured")
	}

	var (
		rec *matcher.Recommendation
		err error
	)
	if document != "" {
		rec, err = s.matcher.MatchDocument(ctx, document, question)
	} else {
		rec, err = s.matcher.Match(ctx, question)
	}
	if err != nil {
		return err
	}

	resp.Answer = rec.Answer
	if strings.TrimSpace(resp.Answer) == "" {
		resp.Answer = NoAnswerGenerated
	}
	resp.Candidates = rec.Candidates
	resp.MessageID = uuid.NewString()
	return nil
}

// history loads the recent conversation. A store failure only costs context.
func (s *System) history(ctx context.Context, userID, chatID string) []memory.ChatTurn {
	if s.chats == nil || userID == "" || s.historyTurns == 0 {
		return nil
	}
	turns, err := s.chats.RecentTurns(ctx, userID, chatID, 2*s.historyTurns)
	if err != nil {
		s.logger.Warn("Failed to load chat history", "chat_id", chatID, "error", err)
		return nil
	}
	return turns
}

func (s *System) record(ctx context.Context, userID, chatID, question, answer string) {
	if s.chats == nil || userID == "" {
		return
	}
	if question == "" {
		question = "(job description)"
	}
	err := s.chats.AppendTurns(ctx, userID, chatID,
		memory.NewUserTurn(question),
		memory.NewAssistantTurn(answer))
	if err != nil {
		s.logger.Error("Failed to save chat turns", "chat_id", chatID, "error", err)
	}
}

func (s *System) fail(resp *Response, err error) *Response {
	s.logger.Error("Query failed",
		"chain_type", resp.ChainType,
		"chat_id", resp.ChatID,
		"error", err)
	resp.Err = err
	resp.Answer = ErrorAnswer(err)
	resp.SQLQuery = ""
	resp.Candidates = nil
	return resp
}

// ErrorAnswer renders err for the end user. Execution errors only carry
// their sanitized reason, so no driver text reaches the answer.
func ErrorAnswer(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrorAnswerPrefix + "the request timed out"
	}
	return fmt.Sprintf("%s%v", ErrorAnswerPrefix, err)
}

// ProcessQueryStream runs ProcessQuery and replays the response as events:
// the chat ID, the answer in text chunks, the SQL query for structured
// answers and the message ID. A failed query emits the chat ID and one error
// event.
func (s *System) ProcessQueryStream(ctx context.Context, q Query) (*Response, <-chan sqlchain.Event) {
	resp := s.ProcessQuery(ctx, q)
	return resp, sqlchain.Emit(ctx, ResponseEvents(resp))
}

// ResponseEvents renders resp as stream events.
func ResponseEvents(resp *Response) []sqlchain.Event {
	if resp.Failed() {
		return []sqlchain.Event{
			{Type: sqlchain.EventChatID, Content: resp.ChatID},
			{Type: sqlchain.EventError, Content: resp.Answer},
		}
	}
	res := &sqlchain.Result{Output: resp.Answer, MessageID: resp.MessageID}
	if resp.ChainType == router.Structured {
		res.SQL = resp.SQLQuery
	}
	return sqlchain.ResultEvents(resp.ChatID, res)
}
