// Package cache provides Redis-backed caching for analysis results and
// backtest reports. When Redis is unavailable, operations return
// ErrCacheUnavailable and callers fall back to recomputation.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/zzhtl/biga/internal/backtest"
	"github.com/zzhtl/biga/internal/engine"
	"github.com/zzhtl/biga/internal/logging"
)

var (
	ErrCacheMiss        = errors.New("cache: miss")
	ErrCacheUnavailable = errors.New("cache: unavailable")
)

// Key formats per cached record type.
const (
	keyAnalysis   = "analysis:%s:%s"   // symbol, date
	keyPrediction = "prediction:%s:%d" // symbol, days
	keyReport     = "report:%s"        // run id
)

// Config holds Redis connection settings.
type Config struct {
	Enabled  bool   `json:"enabled"`
	Address  string `json:"address"`
	Password string `json:"password"`
	DB       int    `json:"db"`
	PoolSize int    `json:"pool_size"`

	TTL time.Duration `json:"ttl"`
}

// Cache wraps the Redis client. A disabled or unreachable cache still
// constructs; every operation then reports ErrCacheUnavailable.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
	log    zerolog.Logger
}

func New(cfg Config, log zerolog.Logger) *Cache {
	c := &Cache{
		ttl: cfg.TTL,
		log: logging.Component(log, "cache"),
	}
	if c.ttl <= 0 {
		c.ttl = time.Hour
	}
	if !cfg.Enabled {
		return c
	}

	c.client = redis.NewClient(&redis.Options{
		Addr:         cfg.Address,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: 2,
		MaxRetries:   3,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := c.client.Ping(ctx).Err(); err != nil {
		c.log.Warn().Err(err).Msg("redis unreachable, caching degraded")
	}
	return c
}

func (c *Cache) Close() error {
	if c.client == nil {
		return nil
	}
	return c.client.Close()
}

// AnalysisKey builds the cache key for one symbol's analysis on a date.
func AnalysisKey(symbol string, date time.Time) string {
	return fmt.Sprintf(keyAnalysis, symbol, date.Format("2006-01-02"))
}

// PredictionKey builds the cache key for one symbol's forward prediction.
func PredictionKey(symbol string, days int) string {
	return fmt.Sprintf(keyPrediction, symbol, days)
}

// ReportKey builds the cache key for a backtest report.
func ReportKey(runID string) string {
	return fmt.Sprintf(keyReport, runID)
}

func (c *Cache) getJSON(ctx context.Context, key string, dst any) error {
	if c.client == nil {
		return ErrCacheUnavailable
	}
	payload, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return ErrCacheMiss
	}
	if err != nil {
		return fmt.Errorf("%w: %v", ErrCacheUnavailable, err)
	}
	if err := json.Unmarshal(payload, dst); err != nil {
		// poisoned entry, drop it
		c.client.Del(ctx, key)
		return ErrCacheMiss
	}
	return nil
}

func (c *Cache) setJSON(ctx context.Context, key string, v any) error {
	if c.client == nil {
		return ErrCacheUnavailable
	}
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("cache: marshal %s: %w", key, err)
	}
	if err := c.client.Set(ctx, key, payload, c.ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrCacheUnavailable, err)
	}
	return nil
}

func (c *Cache) GetAnalysis(ctx context.Context, symbol string, date time.Time) (*engine.ProfessionalPrediction, error) {
	var out engine.ProfessionalPrediction
	if err := c.getJSON(ctx, AnalysisKey(symbol, date), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Cache) PutAnalysis(ctx context.Context, symbol string, date time.Time, p *engine.ProfessionalPrediction) error {
	return c.setJSON(ctx, AnalysisKey(symbol, date), p)
}

func (c *Cache) GetPrediction(ctx context.Context, symbol string, days int) (*engine.PredictionResponse, error) {
	var out engine.PredictionResponse
	if err := c.getJSON(ctx, PredictionKey(symbol, days), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Cache) PutPrediction(ctx context.Context, symbol string, days int, p *engine.PredictionResponse) error {
	return c.setJSON(ctx, PredictionKey(symbol, days), p)
}

func (c *Cache) GetReport(ctx context.Context, runID string) (*backtest.Report, error) {
	var out backtest.Report
	if err := c.getJSON(ctx, ReportKey(runID), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Cache) PutReport(ctx context.Context, report *backtest.Report) error {
	return c.setJSON(ctx, ReportKey(report.RunID), report)
}
