package history

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/zzhtl/biga/internal/backtest"
	"github.com/zzhtl/biga/internal/logging"
	"github.com/zzhtl/biga/internal/market"
)

// PostgresConfig holds connection settings.
type PostgresConfig struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
	Database string `json:"database"`
	SSLMode  string `json:"ssl_mode"`
}

// Postgres serves bar history from PostgreSQL and persists backtest
// reports. It implements Provider.
type Postgres struct {
	pool *pgxpool.Pool
	log  zerolog.Logger
}

func NewPostgres(ctx context.Context, cfg PostgresConfig, log zerolog.Logger) (*Postgres, error) {
	dsn := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Database, cfg.SSLMode,
	)
	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("history: parse postgres config: %w", err)
	}
	poolConfig.MaxConns = 25
	poolConfig.MinConns = 5
	poolConfig.MaxConnLifetime = time.Hour
	poolConfig.MaxConnIdleTime = 30 * time.Minute
	poolConfig.HealthCheckPeriod = time.Minute

	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(connectCtx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("history: create connection pool: %w", err)
	}
	if err := pool.Ping(connectCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("history: ping database: %w", err)
	}

	log = logging.Component(log, "postgres")
	log.Info().Str("database", cfg.Database).Msg("connected to PostgreSQL")
	return &Postgres{pool: pool, log: log}, nil
}

func (p *Postgres) Close() {
	p.pool.Close()
}

// Migrate creates the bars and reports tables when missing.
func (p *Postgres) Migrate(ctx context.Context) error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS bars (
			symbol      TEXT             NOT NULL,
			date        DATE             NOT NULL,
			open        DOUBLE PRECISION NOT NULL,
			high        DOUBLE PRECISION NOT NULL,
			low         DOUBLE PRECISION NOT NULL,
			close       DOUBLE PRECISION NOT NULL,
			volume      DOUBLE PRECISION NOT NULL,
			amount      DOUBLE PRECISION NOT NULL DEFAULT 0,
			PRIMARY KEY (symbol, date)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_bars_symbol_date ON bars (symbol, date)`,
		`CREATE TABLE IF NOT EXISTS backtest_reports (
			run_id      TEXT PRIMARY KEY,
			symbol      TEXT        NOT NULL,
			created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
			report      JSONB       NOT NULL
		)`,
	}
	for _, m := range migrations {
		if _, err := p.pool.Exec(ctx, m); err != nil {
			return fmt.Errorf("history: migration failed: %w", err)
		}
	}
	p.log.Info().Msg("migrations applied")
	return nil
}

func (p *Postgres) Bars(ctx context.Context, symbol string, start, end time.Time) ([]market.Bar, error) {
	query := `SELECT symbol, date, open, high, low, close, volume, amount
		FROM bars
		WHERE symbol = $1 AND ($2::date IS NULL OR date >= $2) AND ($3::date IS NULL OR date <= $3)
		ORDER BY date ASC`

	var startArg, endArg any
	if !start.IsZero() {
		startArg = start
	}
	if !end.IsZero() {
		endArg = end
	}

	rows, err := p.pool.Query(ctx, query, symbol, startArg, endArg)
	if err != nil {
		return nil, fmt.Errorf("history: query bars: %w", err)
	}
	defer rows.Close()

	var bars []market.Bar
	for rows.Next() {
		var b market.Bar
		if err := rows.Scan(&b.Symbol, &b.Date, &b.Open, &b.High, &b.Low, &b.Close, &b.Volume, &b.Amount); err != nil {
			return nil, fmt.Errorf("history: scan bar: %w", err)
		}
		bars = append(bars, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("history: iterate bars: %w", err)
	}
	if len(bars) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrSymbolNotFound, symbol)
	}
	return market.Derive(bars), nil
}

// SaveBars upserts a series in one batch.
func (p *Postgres) SaveBars(ctx context.Context, bars []market.Bar) error {
	batch := &pgx.Batch{}
	for _, b := range bars {
		batch.Queue(`INSERT INTO bars (symbol, date, open, high, low, close, volume, amount)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			ON CONFLICT (symbol, date) DO UPDATE SET
				open = EXCLUDED.open, high = EXCLUDED.high, low = EXCLUDED.low,
				close = EXCLUDED.close, volume = EXCLUDED.volume, amount = EXCLUDED.amount`,
			b.Symbol, b.Date, b.Open, b.High, b.Low, b.Close, b.Volume, b.Amount)
	}
	results := p.pool.SendBatch(ctx, batch)
	defer results.Close()
	for range bars {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("history: upsert bar: %w", err)
		}
	}
	p.log.Debug().Int("bars", len(bars)).Msg("bars saved")
	return nil
}

// SaveReport persists a backtest report as JSONB keyed by run ID.
func (p *Postgres) SaveReport(ctx context.Context, report *backtest.Report) error {
	payload, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("history: marshal report: %w", err)
	}
	_, err = p.pool.Exec(ctx,
		`INSERT INTO backtest_reports (run_id, symbol, report) VALUES ($1, $2, $3)
		 ON CONFLICT (run_id) DO UPDATE SET report = EXCLUDED.report`,
		report.RunID, report.Symbol, payload)
	if err != nil {
		return fmt.Errorf("history: save report: %w", err)
	}
	return nil
}

// LoadReport fetches a persisted backtest report by run ID.
func (p *Postgres) LoadReport(ctx context.Context, runID string) (*backtest.Report, error) {
	var payload []byte
	err := p.pool.QueryRow(ctx,
		`SELECT report FROM backtest_reports WHERE run_id = $1`, runID).Scan(&payload)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrReportNotFound, runID)
	}
	if err != nil {
		return nil, fmt.Errorf("history: load report %s: %w", runID, err)
	}
	var report backtest.Report
	if err := json.Unmarshal(payload, &report); err != nil {
		return nil, fmt.Errorf("history: decode report %s: %w", runID, err)
	}
	return &report, nil
}
