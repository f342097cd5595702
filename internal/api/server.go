// Package api exposes the bot's status over HTTP for dashboards and
// operators. The surface is read-mostly: status, position state, trade
// history and a live event stream; the only mutation is a stop request.
package api

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"crypto-trading-bot/config"
	"crypto-trading-bot/internal/bot"
	"crypto-trading-bot/internal/database"
	"crypto-trading-bot/internal/events"
	"crypto-trading-bot/internal/logging"
	"crypto-trading-bot/internal/position"
)

// BotAPI is the surface the bot exposes to the HTTP layer.
type BotAPI interface {
	Status() bot.Status
	State() position.State
	Stop()
}

// RateLimiter provides simple in-memory rate limiting per endpoint.
type RateLimiter struct {
	requests map[string][]time.Time
	mu       sync.Mutex
	limit    int
	window   time.Duration
}

func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		requests: make(map[string][]time.Time),
		limit:    limit,
		window:   window,
	}
}

// Allow checks if a request is allowed for the given key
func (r *RateLimiter) Allow(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	windowStart := now.Add(-r.window)

	var recent []time.Time
	for _, t := range r.requests[key] {
		if t.After(windowStart) {
			recent = append(recent, t)
		}
	}

	if len(recent) >= r.limit {
		r.requests[key] = recent
		return false
	}

	r.requests[key] = append(recent, now)
	return true
}

// Server is the HTTP API server.
type Server struct {
	router      *gin.Engine
	httpServer  *http.Server
	cfg         *config.Config
	botAPI      BotAPI
	repo        *database.Repository
	hub         *WSHub
	rateLimiter *RateLimiter
	logger      *logging.Logger
}

// NewServer wires the router. repo may be nil when the database is
// disabled; the history endpoints then answer 503.
func NewServer(cfg *config.Config, botAPI BotAPI, repo *database.Repository, eventBus *events.EventBus, logger *logging.Logger) *Server {
	if logger == nil {
		logger = logging.Default()
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	corsConfig := cors.DefaultConfig()
	if cfg.ServerConfig.AllowedOrigins != "" {
		corsConfig.AllowOrigins = strings.Split(cfg.ServerConfig.AllowedOrigins, ",")
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type"}
	router.Use(cors.New(corsConfig))

	server := &Server{
		router:      router,
		cfg:         cfg,
		botAPI:      botAPI,
		repo:        repo,
		hub:         NewWSHub(logger),
		rateLimiter: NewRateLimiter(120, time.Minute),
		logger:      logger.WithComponent("api"),
	}

	server.setupRoutes()

	if eventBus != nil {
		eventBus.SubscribeAll(server.hub.BroadcastEvent)
	}
	go server.hub.Run()

	return server
}

func (s *Server) rateLimitMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		if !s.rateLimiter.Allow(path) {
			c.JSON(http.StatusTooManyRequests, gin.H{
				"error": "rate limit exceeded",
				"path":  path,
			})
			c.Abort()
			return
		}
		c.Next()
	}
}

func (s *Server) setupRoutes() {
	s.router.GET("/health", s.handleHealth)
	s.router.GET("/ws", s.handleWebSocket)

	api := s.router.Group("/api")
	api.Use(s.rateLimitMiddleware())
	{
		api.GET("/bot/status", s.handleBotStatus)
		api.GET("/bot/state", s.handleBotState)
		api.GET("/bot/decision", s.handleLastDecision)
		api.GET("/bot/config", s.handleBotConfig)
		api.POST("/bot/stop", s.handleBotStop)

		api.GET("/trades", s.handleListTrades)
		api.GET("/stats", s.handleSessionStats)
	}
}

// Start runs the HTTP server until Shutdown is called.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.cfg.ServerConfig.Host, s.cfg.ServerConfig.Port)

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  time.Duration(s.cfg.ServerConfig.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(s.cfg.ServerConfig.WriteTimeout) * time.Second,
	}

	s.logger.Info("API server starting", "addr", addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("api server failed: %w", err)
	}
	return nil
}

// Shutdown stops the HTTP server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	s.logger.Info("API server shutting down")
	return s.httpServer.Shutdown(ctx)
}

// Router exposes the gin engine for tests.
func (s *Server) Router() *gin.Engine {
	return s.router
}
