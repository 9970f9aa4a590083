// Command backtest walks an engine forward over CSV history and writes
// the accuracy report as JSON or XLSX.
//
// Usage:
//
//	backtest -csv data/600519.csv -symbol 600519 -start 2023-01-01 -end 2024-01-01 -out report.xlsx
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/zzhtl/biga/internal/backtest"
	"github.com/zzhtl/biga/internal/engine"
	"github.com/zzhtl/biga/internal/history"
	"github.com/zzhtl/biga/internal/logging"
	"github.com/zzhtl/biga/internal/report"
)

const dateLayout = "2006-01-02"

func main() {
	godotenv.Load()

	var (
		csvPath  = flag.String("csv", "", "CSV file with bar history (required)")
		symbol   = flag.String("symbol", "", "instrument symbol (required)")
		startStr = flag.String("start", "", "first prediction date, YYYY-MM-DD (required)")
		endStr   = flag.String("end", "", "last prediction date, YYYY-MM-DD (required)")
		step     = flag.Int("step", 1, "days between prediction points")
		horizon  = flag.Int("horizon", 1, "prediction horizon in days")
		workers  = flag.Int("workers", 4, "parallel prediction workers")
		out      = flag.String("out", "report.json", "output path, .json or .xlsx")
		logLevel = flag.String("log-level", "info", "log level")
	)
	flag.Parse()

	if *csvPath == "" || *symbol == "" || *startStr == "" || *endStr == "" {
		flag.Usage()
		os.Exit(2)
	}

	log, err := logging.New(logging.Config{Level: *logLevel, Format: "console"})
	if err != nil {
		fmt.Fprintf(os.Stderr, "logging: %v\n", err)
		os.Exit(1)
	}

	start, err := time.Parse(dateLayout, *startStr)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid -start")
	}
	end, err := time.Parse(dateLayout, *endStr)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid -end")
	}

	bars, err := history.LoadCSVFile(*csvPath, *symbol)
	if err != nil {
		log.Fatal().Err(err).Str("file", *csvPath).Msg("load csv")
	}
	log.Info().Int("bars", len(bars)).Str("symbol", *symbol).Msg("history loaded")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	eng := engine.New(engine.DefaultConfig(), log)
	runner := backtest.NewRunner(engine.BacktestPredictor{Engine: eng}, log)

	cfg := backtest.Config{
		Symbol:      *symbol,
		Start:       start,
		End:         end,
		StepDays:    *step,
		HorizonDays: *horizon,
		MinHistory:  engine.MinAnalysisBars,
		Workers:     *workers,
		Progress: func(completed, total int) {
			if completed%25 == 0 || completed == total {
				log.Info().Int("completed", completed).Int("total", total).Msg("progress")
			}
		},
	}

	rep, err := runner.Run(ctx, bars, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("backtest failed")
	}

	if err := save(*out, rep); err != nil {
		log.Fatal().Err(err).Str("path", *out).Msg("write report")
	}

	log.Info().
		Int("predictions", rep.TotalPredictions).
		Float64("price_accuracy", rep.PriceAccuracy).
		Float64("direction_accuracy", rep.DirectionAccuracy).
		Str("path", *out).
		Msg("report written")
}

func save(path string, rep *backtest.Report) error {
	if strings.HasSuffix(strings.ToLower(path), ".xlsx") {
		return report.SaveXLSX(path, rep)
	}
	return report.SaveJSON(path, rep)
}
