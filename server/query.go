package server

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/aanchal1903/BusinessOps-Chatbot/rag"
	"github.com/aanchal1903/BusinessOps-Chatbot/rag/reader"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
)

// QueryRequest is the body of POST /query and of each websocket message.
type QueryRequest struct {
	Question string `json:"question"`
	ChatID   string `json:"chat_id,omitempty"`
	Language string `json:"language,omitempty"`
}

// response is the envelope of every JSON reply.
type response struct {
	Status     string `json:"status"`
	Message    string `json:"message,omitempty"`
	Detail     string `json:"detail,omitempty"`
	Data       any    `json:"data,omitempty"`
	Pagination any    `json:"pagination,omitempty"`
}

func success(data any) response {
	return response{Status: "success", Data: data}
}

func failure(detail string) response {
	return response{Status: "error", Detail: detail}
}

func (s *Server) query(c echo.Context, req QueryRequest, documentPath string) error {
	resp := s.queries.ProcessQuery(c.Request().Context(), rag.Query{
		Question:     req.Question,
		DocumentPath: documentPath,
		UserID:       s.userID(c),
		ChatID:       req.ChatID,
		Language:     req.Language,
	})
	if resp.Failed() {
		return c.JSON(queryStatus(resp.Err), response{Status: "error", Detail: resp.Answer, Data: resp})
	}
	return c.JSON(http.StatusOK, success(resp))
}

// Query answers one question.
// POST /query
func (s *Server) Query(c echo.Context) error {
	var req QueryRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, failure("invalid request body"))
	}
	if strings.TrimSpace(req.Question) == "" {
		return c.JSON(http.StatusBadRequest, failure("question is required"))
	}
	return s.query(c, req, "")
}

// QueryJobDescription matches candidates against an uploaded job
// description. The multipart form carries the document in "file" and an
// optional "question".
// POST /query/jd
func (s *Server) QueryJobDescription(c echo.Context) error {
	file, err := c.FormFile("file")
	if err != nil {
		return c.JSON(http.StatusBadRequest, failure("file is required"))
	}

	src, err := file.Open()
	if err != nil {
		return c.JSON(http.StatusBadRequest, failure("failed to read upload"))
	}
	defer src.Close()

	ext := strings.ToLower(filepath.Ext(file.Filename))
	if ext != ".pdf" {
		ext = ".txt"
	}
	tmp, err := os.CreateTemp("", "job-description-*"+ext)
	if err != nil {
		s.logger.Error("Failed to create upload file", "error", err)
		return c.JSON(http.StatusInternalServerError, failure("failed to store upload"))
	}
	defer os.Remove(tmp.Name())

	_, err = io.Copy(tmp, src)
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		s.logger.Error("Failed to write upload file", "error", err)
		return c.JSON(http.StatusInternalServerError, failure("failed to store upload"))
	}

	return s.query(c, QueryRequest{
		Question: c.FormValue("question"),
		ChatID:   c.FormValue("chat_id"),
		Language: c.FormValue("language"),
	}, tmp.Name())
}

// queryStatus maps a query failure to an HTTP status.
func queryStatus(err error) int {
	switch {
	case errors.Is(err, rag.ErrEmptyQuestion),
		errors.Is(err, reader.ErrDocumentNotFound),
		errors.Is(err, reader.ErrExtraction):
		return http.StatusBadRequest
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// QueryStream answers questions over a websocket. Every text message is a
// QueryRequest; every reply is a sequence of JSON events.
// GET /query/stream
func (s *Server) QueryStream(c echo.Context) error {
	conn, err := s.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		s.logger.Warn("Failed to upgrade websocket", "error", err)
		return nil
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(c.Request().Context())
	defer cancel()
	userID := s.userID(c)
	for {
		var req QueryRequest
		if err := conn.ReadJSON(&req); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Warn("Websocket read failed", "error", err)
			}
			return nil
		}

		_, events := s.queries.ProcessQueryStream(ctx, rag.Query{
			Question: req.Question,
			UserID:   userID,
			ChatID:   req.ChatID,
			Language: req.Language,
		})
		for e := range events {
			if err := conn.WriteMessage(websocket.TextMessage, []byte(e.JSON())); err != nil {
				s.logger.Warn("Websocket write failed", "error", err)
				return nil
			}
		}
	}
}
