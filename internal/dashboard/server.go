package dashboard

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"postgate/internal/api"
	"postgate/internal/config"
	"postgate/internal/logging"
	"postgate/internal/queue"
	"postgate/internal/services"
)

//go:embed static/index.html
var indexHTML []byte

// Server is the dashboard HTTP server.
type Server struct {
	bind       string
	queueLimit int
	logger     *slog.Logger
	queueSvc   *api.QueueService
	now        func() time.Time

	router   *gin.Engine
	listener net.Listener
	server   *http.Server
}

// New builds the router. It does not start listening.
func New(cfg *config.Config, reader api.QueueReader, logger *slog.Logger) *Server {
	s := &Server{
		bind:       cfg.Dashboard.Bind,
		queueLimit: cfg.Dashboard.QueueLimit,
		logger:     logging.NewComponentLogger(logger, "dashboard"),
		queueSvc:   api.NewQueueService(reader),
		now:        time.Now,
	}

	router := gin.New()
	router.Use(gin.Recovery(), s.requestLogger())
	router.GET("/health", s.handleHealth)

	protected := router.Group("/", authMiddleware(cfg.Dashboard.AuthToken))
	protected.GET("/", s.handleIndex)
	protected.GET("/api/stats", s.handleStats)
	protected.GET("/api/queue", s.handleQueue)
	protected.GET("/api/queue/:id", s.handleItem)

	s.router = router
	s.server = &http.Server{
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

// Handler exposes the router for tests and embedding.
func (s *Server) Handler() http.Handler { return s.router }

// Addr reports the bound address once Start has succeeded.
func (s *Server) Addr() string {
	if s.listener == nil {
		return s.bind
	}
	return s.listener.Addr().String()
}

// Start listens on the configured address and serves until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("dashboard listen: %w", err)
	}
	s.listener = listener

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("dashboard server error", logging.Error(err))
		}
	}()
	go func() {
		<-ctx.Done()
		s.Stop()
	}()

	s.logger.Info("dashboard listening", logging.String("address", listener.Addr().String()))
	return nil
}

// Stop shuts the server down gracefully.
func (s *Server) Stop() {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = s.server.Shutdown(shutdownCtx)
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, api.NewHealthResponse(s.now()))
}

func (s *Server) handleIndex(c *gin.Context) {
	c.Data(http.StatusOK, "text/html; charset=utf-8", indexHTML)
}

func (s *Server) handleStats(c *gin.Context) {
	stats, err := s.queueSvc.Stats(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (s *Server) handleQueue(c *gin.Context) {
	items, err := s.queueSvc.Recent(c.Request.Context(), s.queueLimit)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, items)
}

func (s *Server) handleItem(c *gin.Context) {
	item, err := s.queueSvc.Describe(c.Request.Context(), c.Param("id"))
	if queue.IsNotFound(err) {
		c.JSON(http.StatusNotFound, api.ErrorResponse{Error: "not found"})
		return
	}
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, item)
}

func (s *Server) fail(c *gin.Context, err error) {
	logging.ErrorWithContext(logging.WithContext(c.Request.Context(), s.logger), "dashboard query failed", "dashboard_query_failed",
		logging.String("path", c.Request.URL.Path),
		logging.String(logging.FieldErrorHint, "check queue directory permissions"),
		logging.Error(err),
	)
	c.JSON(http.StatusInternalServerError, api.ErrorResponse{Error: "failed to read queue"})
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		ctx := services.WithRequestID(c.Request.Context(), uuid.NewString())
		c.Request = c.Request.WithContext(ctx)
		c.Next()
		logging.WithContext(ctx, s.logger).Debug("request",
			logging.String("method", c.Request.Method),
			logging.String("path", c.Request.URL.Path),
			logging.Int("status", c.Writer.Status()),
			logging.Duration("duration", time.Since(start)),
		)
	}
}
