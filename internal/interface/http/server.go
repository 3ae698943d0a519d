// Package http exposes the gamification core over a JSON API.
package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/obe-hub/gamification-core/internal/application/command"
	"github.com/obe-hub/gamification-core/internal/application/query"
	"github.com/obe-hub/gamification-core/internal/interface/http/handlers"
	"github.com/obe-hub/gamification-core/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// SERVER CONFIGURATION
// ══════════════════════════════════════════════════════════════════════════════

// Config contains HTTP server configuration.
type Config struct {
	// Host - address to bind (default: "0.0.0.0").
	Host string

	// Port - port to listen on (default: 8080).
	Port int

	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration

	// MaxHeaderBytes - maximum size of request headers.
	MaxHeaderBytes int

	// MaxBodyBytes - maximum size of request bodies.
	MaxBodyBytes int64

	// AllowedOrigins - allowed origins for CORS. Empty disables CORS headers.
	AllowedOrigins []string

	// EnableRebuild exposes POST /api/v1/gamification/rebuild.
	EnableRebuild bool

	// Mode is the gin mode: debug, release or test.
	Mode string
}

// DefaultConfig returns default server configuration.
func DefaultConfig() Config {
	return Config{
		Host:           "0.0.0.0",
		Port:           8080,
		ReadTimeout:    15 * time.Second,
		WriteTimeout:   30 * time.Second,
		IdleTimeout:    60 * time.Second,
		MaxHeaderBytes: 1 << 20,
		MaxBodyBytes:   64 << 10,
		AllowedOrigins: []string{"*"},
		Mode:           gin.ReleaseMode,
	}
}

// Address returns the server address string.
func (c Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// ══════════════════════════════════════════════════════════════════════════════
// DEPENDENCIES
// ══════════════════════════════════════════════════════════════════════════════

// Dependencies contains all dependencies required by HTTP handlers.
type Dependencies struct {
	// Command Handlers (CQRS Write Side)
	AwardXP        *command.AwardXPHandler
	ProcessStreak  *command.ProcessStreakHandler
	RollUp         *command.RollUpHandler
	RebuildXPState *command.RebuildXPStateHandler

	// Query Handlers (CQRS Read Side)
	GetGamificationState *query.GetGamificationStateHandler
	GetStudentAttainment *query.GetStudentAttainmentHandler
	GetLeaderboard       *query.GetLeaderboardHandler

	// Health Check Dependencies
	HealthChecker handlers.HealthChecker

	Logger *logger.Logger
}

// ══════════════════════════════════════════════════════════════════════════════
// SERVER
// ══════════════════════════════════════════════════════════════════════════════

// Server represents the HTTP server.
type Server struct {
	config     Config
	deps       Dependencies
	engine     *gin.Engine
	httpServer *http.Server
	logger     *logger.Logger

	mu        sync.RWMutex
	running   bool
	startedAt time.Time
}

// NewServer creates a new HTTP server with the given configuration and dependencies.
func NewServer(config Config, deps Dependencies) *Server {
	if config.Mode != "" {
		gin.SetMode(config.Mode)
	}
	if deps.Logger == nil {
		deps.Logger = logger.Nop()
	}
	if deps.HealthChecker == nil {
		deps.HealthChecker = handlers.NewCompositeHealthChecker("")
	}

	s := &Server{
		config: config,
		deps:   deps,
		engine: gin.New(),
		logger: deps.Logger.With(logger.Component("http")),
	}

	s.setupMiddleware()
	s.setupRoutes()

	s.httpServer = &http.Server{
		Addr:           config.Address(),
		Handler:        s.engine,
		ReadTimeout:    config.ReadTimeout,
		WriteTimeout:   config.WriteTimeout,
		IdleTimeout:    config.IdleTimeout,
		MaxHeaderBytes: config.MaxHeaderBytes,
	}

	return s
}

// Handler returns the root handler. Tests drive it through httptest.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// ══════════════════════════════════════════════════════════════════════════════
// ROUTING
// ══════════════════════════════════════════════════════════════════════════════

func (s *Server) setupMiddleware() {
	// Recovery must wrap everything after RequestID so the panic log carries the ID.
	s.engine.Use(handlers.RequestID(s.logger))
	s.engine.Use(handlers.Recovery(s.logger))
	s.engine.Use(handlers.RequestLogger(s.logger))
	s.engine.Use(handlers.SecurityHeaders())
	if len(s.config.AllowedOrigins) > 0 {
		s.engine.Use(handlers.CORS(s.config.AllowedOrigins))
	}
	if s.config.MaxBodyBytes > 0 {
		s.engine.Use(handlers.BodyLimit(s.config.MaxBodyBytes))
	}
}

func (s *Server) setupRoutes() {
	// ─────────────────────────────────────────────────────────────────────────
	// Health & Status Endpoints
	// ─────────────────────────────────────────────────────────────────────────
	s.engine.GET("/health", handlers.Health(s.deps.HealthChecker))
	s.engine.GET("/healthz", handlers.Health(s.deps.HealthChecker)) // Kubernetes alias
	s.engine.GET("/live", s.handleLive)

	// ─────────────────────────────────────────────────────────────────────────
	// API v1 - Operations
	// ─────────────────────────────────────────────────────────────────────────
	v1 := s.engine.Group("/api/v1")
	v1.POST("/xp/award", s.handleAwardXP)
	v1.POST("/streak/process", s.handleProcessStreak)
	v1.POST("/attainment/rollup", s.handleRollUp)
	if s.config.EnableRebuild {
		v1.POST("/gamification/rebuild", s.handleRebuild)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// API v1 - Reads
	// ─────────────────────────────────────────────────────────────────────────
	v1.GET("/students/:id/gamification", s.handleGetGamification)
	v1.GET("/students/:id/attainment", s.handleGetAttainment)
	v1.GET("/leaderboard", s.handleGetLeaderboard)

	s.engine.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, errorBody{Error: "route not found"})
	})
}

// ══════════════════════════════════════════════════════════════════════════════
// SERVER LIFECYCLE
// ══════════════════════════════════════════════════════════════════════════════

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return errors.New("server already running")
	}
	s.running = true
	s.startedAt = time.Now()
	s.mu.Unlock()

	s.logger.Info("starting HTTP server", logger.String("address", s.config.Address()))

	err := s.httpServer.ListenAndServe()
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// StartAsync starts the server in a goroutine.
func (s *Server) StartAsync() <-chan error {
	errCh := make(chan error, 1)
	go func() {
		if err := s.Start(); err != nil {
			errCh <- err
		}
		close(errCh)
	}()
	return errCh
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	s.mu.Unlock()

	s.logger.Info("shutting down HTTP server")
	return s.httpServer.Shutdown(ctx)
}

// IsRunning returns true if the server is running.
func (s *Server) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

// Uptime returns the server uptime.
func (s *Server) Uptime() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.running {
		return 0
	}
	return time.Since(s.startedAt)
}

func (s *Server) handleLive(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "alive", "uptime": s.Uptime().Round(time.Second).String()})
}
