// Package server exposes the chatbot and its chat history over HTTP.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/aanchal1903/BusinessOps-Chatbot/metrics"
	"github.com/aanchal1903/BusinessOps-Chatbot/rag"
	"github.com/aanchal1903/BusinessOps-Chatbot/sqlchain"
	"github.com/aanchal1903/BusinessOps-Chatbot/storage/chatstore"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	// UserHeader carries the caller's user ID.
	UserHeader = "X-User-ID"
	// DefaultUserID owns requests without a UserHeader.
	DefaultUserID = "demo_user@company.com"
	// DefaultMaxUploadBytes bounds job description uploads.
	DefaultMaxUploadBytes = 10 << 20
)

// QueryProcessor answers chatbot queries.
type QueryProcessor interface {
	ProcessQuery(ctx context.Context, q rag.Query) *rag.Response
	ProcessQueryStream(ctx context.Context, q rag.Query) (*rag.Response, <-chan sqlchain.Event)
}

var _ QueryProcessor = (*rag.System)(nil)

// Server serves the query and chat history endpoints.
type Server struct {
	echo           *echo.Echo
	queries        QueryProcessor
	chats          chatstore.ChatStore
	metrics        *metrics.Metrics
	gatherer       prometheus.Gatherer
	allowedOrigins []string
	defaultUser    string
	maxUpload      int64
	upgrader       websocket.Upgrader
	logger         *slog.Logger
}

// ServerOption configures a Server.
type ServerOption func(*Server)

// WithMetrics records HTTP metrics on m and serves gatherer on /metrics.
func WithMetrics(m *metrics.Metrics, gatherer prometheus.Gatherer) ServerOption {
	return func(s *Server) {
		s.metrics = m
		s.gatherer = gatherer
	}
}

// WithAllowedOrigins limits CORS and websocket origins. Empty allows any.
func WithAllowedOrigins(origins []string) ServerOption {
	return func(s *Server) {
		s.allowedOrigins = origins
	}
}

// WithDefaultUser sets the user of requests without a UserHeader.
func WithDefaultUser(userID string) ServerOption {
	return func(s *Server) {
		if userID != "" {
			s.defaultUser = userID
		}
	}
}

// WithMaxUploadBytes bounds job description uploads.
func WithMaxUploadBytes(n int64) ServerOption {
	return func(s *Server) {
		if n > 0 {
			s.maxUpload = n
		}
	}
}

// WithServerLogger sets the logger.
func WithServerLogger(logger *slog.Logger) ServerOption {
	return func(s *Server) {
		s.logger = logger
	}
}

// NewServer creates a Server and registers its routes.
func NewServer(queries QueryProcessor, chats chatstore.ChatStore, opts ...ServerOption) *Server {
	s := &Server{
		echo:        echo.New(),
		queries:     queries,
		chats:       chats,
		gatherer:    prometheus.DefaultGatherer,
		defaultUser: DefaultUserID,
		maxUpload:   DefaultMaxUploadBytes,
		logger:      slog.New(slog.NewJSONHandler(os.Stdout, nil)),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     s.checkOrigin,
	}

	s.echo.HideBanner = true
	s.echo.HidePort = true
	s.echo.Use(middleware.Recover())
	s.echo.Use(s.requestLogger())
	s.echo.Use(s.observeRequests)
	if len(s.allowedOrigins) > 0 {
		s.echo.Use(middleware.CORSWithConfig(middleware.CORSConfig{AllowOrigins: s.allowedOrigins}))
	} else {
		s.echo.Use(middleware.CORS())
	}

	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.echo.GET("/health", s.Health)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})))

	s.echo.POST("/query", s.Query)
	s.echo.POST("/query/jd", s.QueryJobDescription, middleware.BodyLimit(strconv.FormatInt(s.maxUpload, 10)+"B"))
	s.echo.GET("/query/stream", s.QueryStream)

	history := s.echo.Group("/chat_history")
	history.GET("/get_chats", s.GetChats)
	history.GET("/get_specific_chat/:chat_id", s.GetSpecificChat)
	history.PUT("/rename_chat/:chat_id", s.RenameChat)
	history.DELETE("/delete_chat/:chat_id", s.DeleteChat)
	history.POST("/bookmark_chat/:chat_id", s.BookmarkChat)
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Start serves on addr until Shutdown is called.
func (s *Server) Start(addr string) error {
	s.logger.Info("HTTP server listening", "addr", addr)
	if err := s.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting connections and waits for in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

// Health returns health status.
func (s *Server) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "healthy"})
}

func (s *Server) userID(c echo.Context) string {
	if id := c.Request().Header.Get(UserHeader); id != "" {
		return id
	}
	return s.defaultUser
}

func (s *Server) checkOrigin(r *http.Request) bool {
	if len(s.allowedOrigins) == 0 {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, o := range s.allowedOrigins {
		if o == "*" || o == origin {
			return true
		}
	}
	return false
}

// observeRequests records the count and latency of every request by route.
func (s *Server) observeRequests(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		start := time.Now()
		err := next(c)
		if err != nil {
			c.Error(err)
		}
		s.metrics.RecordHTTPRequest(
			c.Request().Method,
			c.Path(),
			strconv.Itoa(c.Response().Status),
			time.Since(start))
		return nil
	}
}

func (s *Server) requestLogger() echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:  true,
		LogURIPath: true,
		LogStatus:  true,
		LogLatency: true,
		LogError:   true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			level := slog.LevelInfo
			if v.Error != nil || v.Status >= http.StatusInternalServerError {
				level = slog.LevelError
			}
			s.logger.LogAttrs(c.Request().Context(), level, "HTTP request",
				slog.String("method", v.Method),
				slog.String("path", v.URIPath),
				slog.Int("status", v.Status),
				slog.Duration("latency", v.Latency))
			return nil
		},
	})
}
