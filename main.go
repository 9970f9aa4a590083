package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/zzhtl/biga/config"
	"github.com/zzhtl/biga/internal/api"
	"github.com/zzhtl/biga/internal/cache"
	"github.com/zzhtl/biga/internal/engine"
	"github.com/zzhtl/biga/internal/history"
	"github.com/zzhtl/biga/internal/logging"
	"github.com/zzhtl/biga/internal/scoring"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	log, err := logging.New(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logging: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	provider, cleanup, err := buildProvider(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Str("source", cfg.History.Source).Msg("history provider init failed")
	}
	defer cleanup()

	store := cache.New(cfg.Redis, log)
	defer store.Close()

	eng := engine.New(engineConfig(cfg), log)

	server := api.NewServer(cfg.Server, eng, provider, store, log)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	log.Info().
		Str("host", cfg.Server.Host).
		Int("port", cfg.Server.Port).
		Str("history_source", cfg.History.Source).
		Msg("server started")

	select {
	case <-ctx.Done():
		log.Info().Msg("shutting down")
	case err := <-errCh:
		if err != nil {
			log.Error().Err(err).Msg("server stopped")
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("shutdown error")
	}
	log.Info().Msg("shutdown complete")
}

func engineConfig(cfg *config.Config) engine.Config {
	ec := engine.DefaultConfig()
	ec.Ensemble = cfg.EnsembleConfig()
	if len(cfg.Engine.FactorWeights) > 0 {
		ec.Weights = scoring.Weights(cfg.Engine.FactorWeights)
	}
	return ec
}

// buildProvider wires the configured history source. The returned cleanup
// releases whatever the source holds open.
func buildProvider(ctx context.Context, cfg *config.Config, log zerolog.Logger) (history.Provider, func(), error) {
	noop := func() {}

	switch cfg.History.Source {
	case "postgres":
		pg, err := history.NewPostgres(ctx, cfg.Postgres, log)
		if err != nil {
			return nil, noop, err
		}
		if err := pg.Migrate(ctx); err != nil {
			pg.Close()
			return nil, noop, err
		}
		return pg, pg.Close, nil

	case "http":
		return history.NewHTTPProvider(cfg.History.HTTPBaseURL, cfg.History.HTTPToken), noop, nil

	case "csv":
		mem, err := loadCSVDir(cfg.History.CSVDir, log)
		if err != nil {
			return nil, noop, err
		}
		return mem, noop, nil

	default:
		log.Warn().Msg("memory history source selected, no bars loaded")
		return history.NewMemoryProvider(), noop, nil
	}
}

// loadCSVDir reads every <symbol>.csv in dir into a memory provider.
func loadCSVDir(dir string, log zerolog.Logger) (*history.MemoryProvider, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read csv dir: %w", err)
	}

	mem := history.NewMemoryProvider()
	loaded := 0
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".csv") {
			continue
		}
		symbol := strings.TrimSuffix(entry.Name(), ".csv")
		bars, err := history.LoadCSVFile(filepath.Join(dir, entry.Name()), symbol)
		if err != nil {
			log.Warn().Err(err).Str("file", entry.Name()).Msg("skipping csv file")
			continue
		}
		if err := mem.Put(symbol, bars); err != nil {
			log.Warn().Err(err).Str("symbol", symbol).Msg("skipping symbol")
			continue
		}
		loaded++
		log.Info().Str("symbol", symbol).Int("bars", len(bars)).Msg("loaded history")
	}
	if loaded == 0 {
		return nil, fmt.Errorf("no usable csv files in %s", dir)
	}
	return mem, nil
}
