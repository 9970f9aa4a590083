package api

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/zzhtl/biga/internal/backtest"
	"github.com/zzhtl/biga/internal/cache"
	"github.com/zzhtl/biga/internal/engine"
	"github.com/zzhtl/biga/internal/history"
	"github.com/zzhtl/biga/internal/logging"
)

// RateLimiter provides simple in-memory rate limiting per client and
// endpoint.
type RateLimiter struct {
	requests map[string][]time.Time
	mu       sync.Mutex
	limit    int           // max requests
	window   time.Duration // time window
}

func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		requests: make(map[string][]time.Time),
		limit:    limit,
		window:   window,
	}
}

// Allow checks if a request is allowed for the given key.
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

// ServerConfig holds server configuration.
type ServerConfig struct {
	Host           string   `json:"host"`
	Port           int      `json:"port"`
	ProductionMode bool     `json:"production_mode"`
	AllowOrigins   []string `json:"allow_origins"`

	JWTSecret   string `json:"jwt_secret"`
	AuthEnabled bool   `json:"auth_enabled"`

	RateLimit       int `json:"rate_limit"`        // requests per window per client
	RateWindowSecs  int `json:"rate_window_secs"`  // window length
	MaxBacktestDays int `json:"max_backtest_days"` // span guard for the sync endpoint
}

// ReportStore persists backtest reports past the cache TTL. The
// Postgres history provider implements it; providers without durable
// storage simply don't.
type ReportStore interface {
	SaveReport(ctx context.Context, report *backtest.Report) error
	LoadReport(ctx context.Context, runID string) (*backtest.Report, error)
}

// Server is the HTTP API surface over the analysis engine.
type Server struct {
	router      *gin.Engine
	httpServer  *http.Server
	engine      *engine.Engine
	provider    history.Provider
	runner      *backtest.Runner
	cache       *cache.Cache
	reports     ReportStore // nil when the provider has no durable storage
	config      ServerConfig
	rateLimiter *RateLimiter
	log         zerolog.Logger
}

func NewServer(cfg ServerConfig, eng *engine.Engine, provider history.Provider, store *cache.Cache, log zerolog.Logger) *Server {
	if cfg.ProductionMode {
		gin.SetMode(gin.ReleaseMode)
	}
	if cfg.RateLimit <= 0 {
		cfg.RateLimit = 120
	}
	if cfg.RateWindowSecs <= 0 {
		cfg.RateWindowSecs = 60
	}

	router := gin.New()
	router.Use(gin.Recovery())

	corsConfig := cors.DefaultConfig()
	if len(cfg.AllowOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.AllowOrigins
	} else {
		corsConfig.AllowOrigins = []string{"http://localhost:5173"}
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization"}
	corsConfig.ExposeHeaders = []string{"Content-Length"}
	corsConfig.AllowCredentials = true
	router.Use(cors.New(corsConfig))

	s := &Server{
		router:      router,
		engine:      eng,
		provider:    provider,
		runner:      backtest.NewRunner(engine.BacktestPredictor{Engine: eng}, log),
		cache:       store,
		config:      cfg,
		rateLimiter: NewRateLimiter(cfg.RateLimit, time.Duration(cfg.RateWindowSecs)*time.Second),
		log:         logging.Component(log, "api"),
	}
	if rs, ok := provider.(ReportStore); ok {
		s.reports = rs
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.GET("/api/health", s.handleHealth)

	api := s.router.Group("/api")
	api.Use(s.rateLimitMiddleware())
	if s.config.AuthEnabled {
		api.Use(s.authMiddleware())
	}
	api.POST("/analyze", s.handleAnalyze)
	api.POST("/predict", s.handlePredict)
	api.POST("/backtest", s.handleBacktest)
	api.GET("/backtest/ws", s.handleBacktestWS)
	api.GET("/backtest/:run_id", s.handleBacktestReport)
}

func (s *Server) rateLimitMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.ClientIP() + ":" + c.FullPath()
		if !s.rateLimiter.Allow(key) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": "rate limit exceeded, try again later",
			})
			return
		}
		c.Next()
	}
}

// Router exposes the gin engine for tests.
func (s *Server) Router() *gin.Engine {
	return s.router
}

func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.log.Info().Str("addr", addr).Msg("API server listening")
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("api: server failed: %w", err)
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}
