package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/zzhtl/biga/internal/api"
	"github.com/zzhtl/biga/internal/cache"
	"github.com/zzhtl/biga/internal/ensemble"
	"github.com/zzhtl/biga/internal/history"
	"github.com/zzhtl/biga/internal/logging"
	"github.com/zzhtl/biga/internal/scoring"
)

// HistoryConfig selects where bar history comes from.
type HistoryConfig struct {
	// Source is one of "memory", "csv", "http", "postgres".
	Source string `json:"source"`

	// CSVDir holds one <symbol>.csv file per instrument when Source is "csv".
	CSVDir string `json:"csv_dir"`

	HTTPBaseURL string `json:"http_base_url"`
	HTTPToken   string `json:"http_token"`
}

// EngineConfig is the tunable surface of the analysis engine.
type EngineConfig struct {
	EnsembleStrategy string `json:"ensemble_strategy"`
	MinModels        int    `json:"min_models"`
	RemoveOutliers   bool   `json:"remove_outliers"`

	// FactorWeights overrides the default scorer weights when non-empty.
	// The map must cover all factors and sum to 1.0.
	FactorWeights map[string]float64 `json:"factor_weights"`

	DefaultPredictDays int `json:"default_predict_days"`
}

type Config struct {
	Logging  logging.Config         `json:"logging"`
	Server   api.ServerConfig       `json:"server"`
	Redis    cache.Config           `json:"redis"`
	Postgres history.PostgresConfig `json:"postgres"`
	History  HistoryConfig          `json:"history"`
	Engine   EngineConfig           `json:"engine"`
}

// Load reads config.json when present, then applies environment variable
// overrides. Environment always wins. A .env file in the working directory
// is loaded first so both sources behave the same in development.
func Load() (*Config, error) {
	return LoadFile("config.json")
}

func LoadFile(filename string) (*Config, error) {
	// Missing .env is the normal case in production.
	_ = godotenv.Load()

	cfg, err := loadFromFile(filename)
	if err != nil {
		cfg = &Config{}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadFromFile(filename string) (*Config, error) {
	file, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	var config Config
	if err := json.Unmarshal(file, &config); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	return &config, nil
}

func applyEnvOverrides(cfg *Config) {
	// Logging
	cfg.Logging.Level = getEnvOrDefault("LOG_LEVEL", defaultStr(cfg.Logging.Level, "info"))
	cfg.Logging.Format = getEnvOrDefault("LOG_FORMAT", defaultStr(cfg.Logging.Format, "json"))
	cfg.Logging.Output = getEnvOrDefault("LOG_OUTPUT", defaultStr(cfg.Logging.Output, "stdout"))

	// Server
	cfg.Server.Host = getEnvOrDefault("SERVER_HOST", defaultStr(cfg.Server.Host, "0.0.0.0"))
	cfg.Server.Port = getEnvIntOrDefault("SERVER_PORT", defaultInt(cfg.Server.Port, 8080))
	cfg.Server.ProductionMode = getEnvBoolOrDefault("SERVER_PRODUCTION", cfg.Server.ProductionMode)
	cfg.Server.RateLimit = getEnvIntOrDefault("SERVER_RATE_LIMIT", cfg.Server.RateLimit)
	cfg.Server.MaxBacktestDays = getEnvIntOrDefault("SERVER_MAX_BACKTEST_DAYS", cfg.Server.MaxBacktestDays)

	// Auth secrets always come from the environment when set there.
	cfg.Server.AuthEnabled = getEnvBoolOrDefault("AUTH_ENABLED", cfg.Server.AuthEnabled)
	cfg.Server.JWTSecret = getEnvOrDefault("AUTH_JWT_SECRET", cfg.Server.JWTSecret)

	// Redis
	cfg.Redis.Enabled = getEnvBoolOrDefault("REDIS_ENABLED", cfg.Redis.Enabled)
	cfg.Redis.Address = getEnvOrDefault("REDIS_ADDRESS", defaultStr(cfg.Redis.Address, "localhost:6379"))
	cfg.Redis.Password = getEnvOrDefault("REDIS_PASSWORD", cfg.Redis.Password)
	cfg.Redis.DB = getEnvIntOrDefault("REDIS_DB", cfg.Redis.DB)
	cfg.Redis.TTL = getEnvDurationOrDefault("REDIS_TTL", cfg.Redis.TTL)

	// Postgres
	cfg.Postgres.Host = getEnvOrDefault("POSTGRES_HOST", cfg.Postgres.Host)
	cfg.Postgres.Port = getEnvIntOrDefault("POSTGRES_PORT", defaultInt(cfg.Postgres.Port, 5432))
	cfg.Postgres.User = getEnvOrDefault("POSTGRES_USER", cfg.Postgres.User)
	cfg.Postgres.Password = getEnvOrDefault("POSTGRES_PASSWORD", cfg.Postgres.Password)
	cfg.Postgres.Database = getEnvOrDefault("POSTGRES_DB", cfg.Postgres.Database)
	cfg.Postgres.SSLMode = getEnvOrDefault("POSTGRES_SSLMODE", defaultStr(cfg.Postgres.SSLMode, "disable"))

	// History source
	cfg.History.Source = getEnvOrDefault("HISTORY_SOURCE", defaultStr(cfg.History.Source, "memory"))
	cfg.History.CSVDir = getEnvOrDefault("HISTORY_CSV_DIR", cfg.History.CSVDir)
	cfg.History.HTTPBaseURL = getEnvOrDefault("HISTORY_HTTP_URL", cfg.History.HTTPBaseURL)
	cfg.History.HTTPToken = getEnvOrDefault("HISTORY_HTTP_TOKEN", cfg.History.HTTPToken)

	// Engine
	cfg.Engine.EnsembleStrategy = getEnvOrDefault("ENSEMBLE_STRATEGY", defaultStr(cfg.Engine.EnsembleStrategy, string(ensemble.Hybrid)))
	cfg.Engine.MinModels = getEnvIntOrDefault("ENSEMBLE_MIN_MODELS", cfg.Engine.MinModels)
	cfg.Engine.RemoveOutliers = getEnvBoolOrDefault("ENSEMBLE_REMOVE_OUTLIERS", cfg.Engine.RemoveOutliers)
	cfg.Engine.DefaultPredictDays = getEnvIntOrDefault("PREDICT_DEFAULT_DAYS", defaultInt(cfg.Engine.DefaultPredictDays, 5))
}

// Validate rejects configurations the engine would reject later anyway,
// so misconfiguration surfaces at startup instead of on the first request.
func (c *Config) Validate() error {
	switch ensemble.Strategy(c.Engine.EnsembleStrategy) {
	case ensemble.WeightedAverage, ensemble.Voting, ensemble.Stacking,
		ensemble.DynamicSelection, ensemble.Hybrid:
	default:
		return fmt.Errorf("config: unknown ensemble strategy %q", c.Engine.EnsembleStrategy)
	}

	if len(c.Engine.FactorWeights) > 0 {
		if err := scoring.Weights(c.Engine.FactorWeights).Validate(); err != nil {
			return fmt.Errorf("config: factor_weights: %w", err)
		}
	}

	switch c.History.Source {
	case "memory", "csv", "http", "postgres":
	default:
		return fmt.Errorf("config: unknown history source %q", c.History.Source)
	}
	if c.History.Source == "csv" && c.History.CSVDir == "" {
		return fmt.Errorf("config: history source csv requires csv_dir")
	}
	if c.History.Source == "http" && c.History.HTTPBaseURL == "" {
		return fmt.Errorf("config: history source http requires http_base_url")
	}
	if c.History.Source == "postgres" && c.Postgres.Host == "" {
		return fmt.Errorf("config: history source postgres requires postgres.host")
	}

	if c.Server.AuthEnabled && c.Server.JWTSecret == "" {
		return fmt.Errorf("config: auth enabled without AUTH_JWT_SECRET")
	}
	return nil
}

// EnsembleConfig translates the flat engine section into the fusion config.
func (c *Config) EnsembleConfig() ensemble.Config {
	ec := ensemble.DefaultConfig()
	ec.Strategy = ensemble.Strategy(c.Engine.EnsembleStrategy)
	if c.Engine.MinModels > 0 {
		ec.MinModels = c.Engine.MinModels
	}
	ec.RemoveOutliers = c.Engine.RemoveOutliers
	return ec
}

func defaultStr(current, fallback string) string {
	if current != "" {
		return current
	}
	return fallback
}

func defaultInt(current, fallback int) int {
	if current != 0 {
		return current
	}
	return fallback
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
