package server

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/aanchal1903/BusinessOps-Chatbot/storage/chatstore"
	"github.com/labstack/echo/v4"
)

// ChatItem is one entry of the chat list.
type ChatItem struct {
	ChatID      string    `json:"chat_id"`
	Title       string    `json:"title"`
	CreatedAt   time.Time `json:"created_at"`
	LastUpdated time.Time `json:"last_updated"`
	Bookmarked  bool      `json:"bookmarked"`
}

// RenameRequest is the body of PUT /chat_history/rename_chat/:chat_id.
type RenameRequest struct {
	NewTitle string `json:"new_title"`
}

func intParam(c echo.Context, name string) (int, error) {
	raw := c.QueryParam(name)
	if raw == "" {
		return 0, nil
	}
	return strconv.Atoi(raw)
}

// chatError maps a chat store error to a reply.
func (s *Server) chatError(c echo.Context, err error, action string) error {
	switch {
	case errors.Is(err, chatstore.ErrChatNotFound):
		return c.JSON(http.StatusNotFound, failure("Chat with the provided ID does not exist."))
	case errors.Is(err, chatstore.ErrInvalidTitle):
		return c.JSON(http.StatusBadRequest, failure("Invalid title format. The title must be a non-empty string."))
	case errors.Is(err, chatstore.ErrInvalidPagination):
		return c.JSON(http.StatusBadRequest, failure("page must be at least 1 and limit between 1 and 100"))
	}
	s.logger.Error("Chat store request failed", "action", action, "error", err)
	return c.JSON(http.StatusInternalServerError, failure("Server issue while "+action+"."))
}

// GetChats lists the caller's chats, most recently updated first.
// GET /chat_history/get_chats?tenant_id=&page=&limit=
func (s *Server) GetChats(c echo.Context) error {
	page, err := intParam(c, "page")
	if err != nil {
		return c.JSON(http.StatusBadRequest, failure("page must be an integer"))
	}
	limit, err := intParam(c, "limit")
	if err != nil {
		return c.JSON(http.StatusBadRequest, failure("limit must be an integer"))
	}
	if c.QueryParam("page") != "" && page < 1 || c.QueryParam("limit") != "" && limit < 1 {
		return s.chatError(c, chatstore.ErrInvalidPagination, "fetching chats")
	}

	sessions, pagination, err := s.chats.ListChats(c.Request().Context(), chatstore.ListOptions{
		UserID:   s.userID(c),
		TenantID: c.QueryParam("tenant_id"),
		Page:     page,
		Limit:    limit,
	})
	if err != nil {
		return s.chatError(c, err, "fetching chats")
	}
	if len(sessions) == 0 {
		return c.JSON(http.StatusNotFound, failure("No chat sessions found."))
	}

	items := make([]ChatItem, len(sessions))
	for i, sess := range sessions {
		items[i] = ChatItem{
			ChatID:      sess.ChatID,
			Title:       sess.Title,
			CreatedAt:   sess.CreatedAt,
			LastUpdated: sess.LastUpdated,
			Bookmarked:  sess.Bookmarked,
		}
	}
	return c.JSON(http.StatusOK, response{Status: "success", Data: items, Pagination: pagination})
}

// GetSpecificChat returns one chat with its messages.
// GET /chat_history/get_specific_chat/:chat_id
func (s *Server) GetSpecificChat(c echo.Context) error {
	sess, err := s.chats.GetChat(c.Request().Context(), s.userID(c), c.Param("chat_id"))
	if err != nil {
		return s.chatError(c, err, "retrieving the chat")
	}
	return c.JSON(http.StatusOK, success(sess))
}

// RenameChat sets a chat title.
// PUT /chat_history/rename_chat/:chat_id
func (s *Server) RenameChat(c echo.Context) error {
	var req RenameRequest
	if err := c.Bind(&req); err != nil {
		return s.chatError(c, chatstore.ErrInvalidTitle, "renaming the chat")
	}
	if err := s.chats.RenameChat(c.Request().Context(), s.userID(c), c.Param("chat_id"), req.NewTitle); err != nil {
		return s.chatError(c, err, "renaming the chat")
	}
	return c.JSON(http.StatusOK, response{Status: "success", Message: "Chat renamed successfully."})
}

// DeleteChat removes a chat.
// DELETE /chat_history/delete_chat/:chat_id
func (s *Server) DeleteChat(c echo.Context) error {
	if err := s.chats.DeleteChat(c.Request().Context(), s.userID(c), c.Param("chat_id")); err != nil {
		return s.chatError(c, err, "deleting the chat")
	}
	return c.JSON(http.StatusOK, response{Status: "success", Message: "Chat deleted successfully."})
}

// BookmarkChat toggles the bookmark flag of a chat.
// POST /chat_history/bookmark_chat/:chat_id
func (s *Server) BookmarkChat(c echo.Context) error {
	bookmarked, err := s.chats.ToggleBookmark(c.Request().Context(), s.userID(c), c.Param("chat_id"))
	if err != nil {
		return s.chatError(c, err, "bookmarking the chat")
	}
	return c.JSON(http.StatusOK, response{
		Status:  "success",
		Message: "Chat bookmarked successfully.",
		Data:    map[string]bool{"bookmarked": bookmarked},
	})
}
