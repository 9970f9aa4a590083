// Command ingest loads CSV bar history into PostgreSQL so the API
// server can run with HISTORY_SOURCE=postgres.
//
// Usage:
//
//	ingest -csv data/600519.csv -symbol 600519
//	ingest -dir data
//
// Connection settings come from the same POSTGRES_* environment
// variables the server reads.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/zzhtl/biga/config"
	"github.com/zzhtl/biga/internal/history"
	"github.com/zzhtl/biga/internal/logging"
	"github.com/zzhtl/biga/internal/market"
)

func main() {
	godotenv.Load()

	var (
		csvPath  = flag.String("csv", "", "single CSV file to ingest")
		symbol   = flag.String("symbol", "", "symbol for -csv (defaults to filename)")
		dir      = flag.String("dir", "", "directory of <symbol>.csv files to ingest")
		logLevel = flag.String("log-level", "info", "log level")
	)
	flag.Parse()

	if *csvPath == "" && *dir == "" {
		flag.Usage()
		os.Exit(2)
	}

	log, err := logging.New(logging.Config{Level: *logLevel, Format: "console"})
	if err != nil {
		fmt.Fprintf(os.Stderr, "logging: %v\n", err)
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("config")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pg, err := history.NewPostgres(ctx, cfg.Postgres, log)
	if err != nil {
		log.Fatal().Err(err).Msg("postgres connect failed")
	}
	defer pg.Close()

	if err := pg.Migrate(ctx); err != nil {
		log.Fatal().Err(err).Msg("migrate failed")
	}

	if *csvPath != "" {
		sym := *symbol
		if sym == "" {
			sym = strings.TrimSuffix(filepath.Base(*csvPath), ".csv")
		}
		if err := ingestFile(ctx, pg, *csvPath, sym); err != nil {
			log.Fatal().Err(err).Str("file", *csvPath).Msg("ingest failed")
		}
		log.Info().Str("symbol", sym).Msg("ingested")
	}

	if *dir != "" {
		entries, err := os.ReadDir(*dir)
		if err != nil {
			log.Fatal().Err(err).Str("dir", *dir).Msg("read dir")
		}
		for _, entry := range entries {
			if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".csv") {
				continue
			}
			sym := strings.TrimSuffix(entry.Name(), ".csv")
			if err := ingestFile(ctx, pg, filepath.Join(*dir, entry.Name()), sym); err != nil {
				log.Warn().Err(err).Str("file", entry.Name()).Msg("skipping")
				continue
			}
			log.Info().Str("symbol", sym).Msg("ingested")
		}
	}
}

func ingestFile(ctx context.Context, pg *history.Postgres, path, symbol string) error {
	bars, err := history.LoadCSVFile(path, symbol)
	if err != nil {
		return err
	}
	return saveInChunks(ctx, pg, bars)
}

// saveInChunks keeps individual batches small enough that a mid-file
// failure doesn't discard hours of progress on large histories.
func saveInChunks(ctx context.Context, pg *history.Postgres, bars []market.Bar) error {
	const chunk = 1000
	for i := 0; i < len(bars); i += chunk {
		end := i + chunk
		if end > len(bars) {
			end = len(bars)
		}
		if err := pg.SaveBars(ctx, bars[i:end]); err != nil {
			return err
		}
	}
	return nil
}
