package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"

	"github.com/aanchal1903/BusinessOps-Chatbot/memory"
	"github.com/aanchal1903/BusinessOps-Chatbot/metrics"
	"github.com/aanchal1903/BusinessOps-Chatbot/rag"
	"github.com/aanchal1903/BusinessOps-Chatbot/router"
	"github.com/aanchal1903/BusinessOps-Chatbot/sqlchain"
	"github.com/aanchal1903/BusinessOps-Chatbot/storage/chatstore"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeProcessor answers every query with a canned response.
type fakeProcessor struct {
	mu      sync.Mutex
	queries []rag.Query
	respond func(q rag.Query) *rag.Response
}

func (f *fakeProcessor) ProcessQuery(_ context.Context, q rag.Query) *rag.Response {
	f.mu.Lock()
	f.queries = append(f.queries, q)
	f.mu.Unlock()
	if f.respond != nil {
		return f.respond(q)
	}
	return &rag.Response{
		ChainType: router.Structured,
		Query:     q.Question,
		SQLQuery:  "SELECT COUNT(id) FROM company WHERE is_active = 1",
		Answer:    "There are 6 active companies.",
		MessageID: "m1",
		ChatID:    q.ChatID,
	}
}

func (f *fakeProcessor) ProcessQueryStream(ctx context.Context, q rag.Query) (*rag.Response, <-chan sqlchain.Event) {
	resp := f.ProcessQuery(ctx, q)
	return resp, sqlchain.Emit(ctx, rag.ResponseEvents(resp))
}

func (f *fakeProcessor) last() rag.Query {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.queries[len(f.queries)-1]
}

func newTestServer(t *testing.T, opts ...ServerOption) (*Server, *fakeProcessor, *chatstore.SimpleChatStore) {
	t.Helper()
	proc := &fakeProcessor{}
	chats := chatstore.NewSimpleChatStore()
	opts = append([]ServerOption{WithServerLogger(quietLogger())}, opts...)
	return NewServer(proc, chats, opts...), proc, chats
}

func do(t *testing.T, s *Server, method, path, body string, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestHealth(t *testing.T) {
	s, _, _ := newTestServer(t)
	rec := do(t, s, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "healthy", decode(t, rec)["status"])
}

func TestQuery(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		s, proc, _ := newTestServer(t)
		rec := do(t, s, http.MethodPost, "/query", `{"question":"How many companies are active?","chat_id":"c1"}`,
			UserHeader, "alice@company.com")
		require.Equal(t, http.StatusOK, rec.Code)

		body := decode(t, rec)
		assert.Equal(t, "success", body["status"])
		data := body["data"].(map[string]any)
		assert.Equal(t, "structured", data["chain_type"])
		assert.Equal(t, "There are 6 active companies.", data["answer"])
		assert.Equal(t, "c1", data["chat_id"])

		q := proc.last()
		assert.Equal(t, "alice@company.com", q.UserID)
		assert.Empty(t, q.DocumentPath)
	})

	t.Run("default user", func(t *testing.T) {
		s, proc, _ := newTestServer(t, WithDefaultUser("ops@company.com"))
		rec := do(t, s, http.MethodPost, "/query", `{"question":"hi"}`)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "ops@company.com", proc.last().UserID)
	})

	t.Run("blank question", func(t *testing.T) {
		s, proc, _ := newTestServer(t)
		rec := do(t, s, http.MethodPost, "/query", `{"question":"  "}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Empty(t, proc.queries)
	})

	t.Run("invalid body", func(t *testing.T) {
		s, _, _ := newTestServer(t)
		rec := do(t, s, http.MethodPost, "/query", `{"question":`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("failed query", func(t *testing.T) {
		s, proc, _ := newTestServer(t)
		err := &sqlchain.ChainError{Stage: sqlchain.StageExecuting, Err: errors.New("query execution failed: unknown column")}
		proc.respond = func(q rag.Query) *rag.Response {
			return &rag.Response{ChainType: router.Structured, Query: q.Question, Answer: rag.ErrorAnswer(err), Err: err}
		}

		rec := do(t, s, http.MethodPost, "/query", `{"question":"What is the headcount?"}`)
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		body := decode(t, rec)
		assert.Equal(t, "error", body["status"])
		assert.Equal(t, "Error processing query: executing: query execution failed: unknown column", body["detail"])
	})
}

func multipartBody(t *testing.T, filename, content string, fields map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	if filename != "" {
		part, err := w.CreateFormFile("file", filename)
		require.NoError(t, err)
		_, err = part.Write([]byte(content))
		require.NoError(t, err)
	}
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	require.NoError(t, w.Close())
	return &buf, w.FormDataContentType()
}

func TestQueryJobDescription(t *testing.T) {
	t.Run("upload", func(t *testing.T) {
		s, proc, _ := newTestServer(t)
		var seen string
		proc.respond = func(q rag.Query) *rag.Response {
			b, err := os.ReadFile(q.DocumentPath)
			require.NoError(t, err)
			seen = string(b)
			return &rag.Response{ChainType: router.Unstructured, Query: q.Question, Answer: "Aditya Sharma", ChatID: "c1"}
		}

		body, contentType := multipartBody(t, "role.txt", "Go engineer with Kafka", map[string]string{"question": "Immediate joiners"})
		req := httptest.NewRequest(http.MethodPost, "/query/jd", body)
		req.Header.Set("Content-Type", contentType)
		rec := httptest.NewRecorder()
		s.Handler().ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "Go engineer with Kafka", seen)
		q := proc.last()
		assert.Equal(t, "Immediate joiners", q.Question)
		assert.True(t, strings.HasSuffix(q.DocumentPath, ".txt"))

		_, err := os.Stat(q.DocumentPath)
		assert.True(t, os.IsNotExist(err))
	})

	t.Run("missing file", func(t *testing.T) {
		s, _, _ := newTestServer(t)
		body, contentType := multipartBody(t, "", "", map[string]string{"question": "x"})
		req := httptest.NewRequest(http.MethodPost, "/query/jd", body)
		req.Header.Set("Content-Type", contentType)
		rec := httptest.NewRecorder()
		s.Handler().ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestQueryStream(t *testing.T) {
	s, proc, _ := newTestServer(t)
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	header := http.Header{}
	header.Set(UserHeader, "bob@company.com")
	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http")+"/query/stream", header)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteJSON(QueryRequest{Question: "How many companies are active?", ChatID: "c7"}))

	var (
		events []sqlchain.Event
		text   strings.Builder
	)
	for {
		var e sqlchain.Event
		require.NoError(t, conn.ReadJSON(&e))
		events = append(events, e)
		if e.Type == sqlchain.EventText {
			text.WriteString(e.Content)
		}
		if e.Type == sqlchain.EventMessageID || e.Type == sqlchain.EventError {
			break
		}
	}

	assert.Equal(t, sqlchain.Event{Type: sqlchain.EventChatID, Content: "c7"}, events[0])
	assert.Equal(t, "There are 6 active companies.", text.String())
	assert.Equal(t, sqlchain.Event{Type: sqlchain.EventMessageID, Content: "m1"}, events[len(events)-1])
	assert.Equal(t, "bob@company.com", proc.last().UserID)
}

func seedChats(t *testing.T, chats *chatstore.SimpleChatStore) {
	t.Helper()
	ctx := context.Background()
	for _, id := range []string{"c1", "c2", "c3"} {
		require.NoError(t, chats.AppendTurns(ctx, DefaultUserID, id,
			memory.NewUserTurn("Question for "+id),
			memory.NewAssistantTurn("Answer for "+id)))
	}
}

func TestChatHistory(t *testing.T) {
	t.Run("get chats", func(t *testing.T) {
		s, _, chats := newTestServer(t)
		seedChats(t, chats)

		rec := do(t, s, http.MethodGet, "/chat_history/get_chats?page=1&limit=2", "")
		require.Equal(t, http.StatusOK, rec.Code)
		body := decode(t, rec)
		assert.Equal(t, "success", body["status"])
		assert.Len(t, body["data"], 2)

		pagination := body["pagination"].(map[string]any)
		assert.Equal(t, float64(1), pagination["current_page"])
		assert.Equal(t, float64(2), pagination["total_pages"])
		assert.Equal(t, float64(3), pagination["total_items"])

		item := body["data"].([]any)[0].(map[string]any)
		assert.NotContains(t, item, "messages")
	})

	t.Run("no chats", func(t *testing.T) {
		s, _, chats := newTestServer(t)
		seedChats(t, chats)
		rec := do(t, s, http.MethodGet, "/chat_history/get_chats", "", UserHeader, "nobody@company.com")
		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.Equal(t, "No chat sessions found.", decode(t, rec)["detail"])
	})

	t.Run("invalid pagination", func(t *testing.T) {
		s, _, chats := newTestServer(t)
		seedChats(t, chats)
		for _, q := range []string{"page=0", "limit=0", "limit=101", "page=abc", "limit=-1"} {
			rec := do(t, s, http.MethodGet, "/chat_history/get_chats?"+q, "")
			assert.Equal(t, http.StatusBadRequest, rec.Code, q)
		}
	})

	t.Run("get specific chat", func(t *testing.T) {
		s, _, chats := newTestServer(t)
		seedChats(t, chats)

		rec := do(t, s, http.MethodGet, "/chat_history/get_specific_chat/c2", "")
		require.Equal(t, http.StatusOK, rec.Code)
		data := decode(t, rec)["data"].(map[string]any)
		assert.Equal(t, "c2", data["chat_id"])
		assert.Equal(t, "Question for c2", data["title"])
		assert.Len(t, data["messages"], 2)

		rec = do(t, s, http.MethodGet, "/chat_history/get_specific_chat/missing", "")
		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.Equal(t, "Chat with the provided ID does not exist.", decode(t, rec)["detail"])
	})

	t.Run("rename", func(t *testing.T) {
		s, _, chats := newTestServer(t)
		seedChats(t, chats)

		rec := do(t, s, http.MethodPut, "/chat_history/rename_chat/c1", `{"new_title":"Hiring plan"}`)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "Chat renamed successfully.", decode(t, rec)["message"])

		chat, err := chats.GetChat(context.Background(), DefaultUserID, "c1")
		require.NoError(t, err)
		assert.Equal(t, "Hiring plan", chat.Title)

		rec = do(t, s, http.MethodPut, "/chat_history/rename_chat/c1", `{"new_title":"  "}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)

		rec = do(t, s, http.MethodPut, "/chat_history/rename_chat/missing", `{"new_title":"x"}`)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("delete", func(t *testing.T) {
		s, _, chats := newTestServer(t)
		seedChats(t, chats)

		rec := do(t, s, http.MethodDelete, "/chat_history/delete_chat/c1", "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "Chat deleted successfully.", decode(t, rec)["message"])

		rec = do(t, s, http.MethodDelete, "/chat_history/delete_chat/c1", "")
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("bookmark", func(t *testing.T) {
		s, _, chats := newTestServer(t)
		seedChats(t, chats)

		rec := do(t, s, http.MethodPost, "/chat_history/bookmark_chat/c3", "")
		require.Equal(t, http.StatusOK, rec.Code)
		body := decode(t, rec)
		assert.Equal(t, "Chat bookmarked successfully.", body["message"])
		assert.Equal(t, true, body["data"].(map[string]any)["bookmarked"])

		rec = do(t, s, http.MethodPost, "/chat_history/bookmark_chat/c3", "")
		assert.Equal(t, false, decode(t, rec)["data"].(map[string]any)["bookmarked"])

		rec = do(t, s, http.MethodPost, "/chat_history/bookmark_chat/missing", "")
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestMetricsEndpoint(t *testing.T) {
	reg := prometheus.NewRegistry()
	s, _, _ := newTestServer(t, WithMetrics(metrics.NewMetrics(reg), reg))

	do(t, s, http.MethodGet, "/health", "")
	do(t, s, http.MethodGet, "/chat_history/get_chats", "")

	rec := do(t, s, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	out := rec.Body.String()
	assert.Contains(t, out, `businessops_http_requests_total{method="GET",path="/health",status="200"} 1`)
	assert.Contains(t, out, `businessops_http_requests_total{method="GET",path="/chat_history/get_chats",status="404"} 1`)
}
