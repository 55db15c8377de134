// cmd/backfill downloads historical candles from Gate.io and stores them in
// SQLite for later backtesting.
//
// Usage:
//
//	go run ./cmd/backfill --config configs/gatebot.toml \
//	    --from 2024-01-01 --to 2024-06-30
package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"gatebotv1/config"
	"gatebotv1/internal/gateio"
	"gatebotv1/internal/logger"
	sqlitestore "gatebotv1/internal/store/sqlite"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds | log.Lshortfile)

	configPath := flag.String("config", "configs/gatebot.toml", "Path to TOML config file")
	pair := flag.String("pair", "", "Single pair to backfill (default: all configured pairs)")
	fromStr := flag.String("from", "", "Start date YYYY-MM-DD (required)")
	toStr := flag.String("to", "", "End date YYYY-MM-DD inclusive (default: now)")
	flag.Parse()

	if *fromStr == "" {
		log.Fatal("[backfill] --from is required")
	}
	from, err := time.Parse("2006-01-02", *fromStr)
	if err != nil {
		log.Fatalf("[backfill] bad --from date: %v", err)
	}
	to := time.Now().UTC()
	if *toStr != "" {
		t, err := time.Parse("2006-01-02", *toStr)
		if err != nil {
			log.Fatalf("[backfill] bad --to date: %v", err)
		}
		to = t.Add(24*time.Hour - time.Second)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("[backfill] %v", err)
	}
	slg := logger.Init("backfill", logger.ParseLevel(cfg.Log.Level))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	os.MkdirAll(filepath.Dir(cfg.Store.SQLitePath), 0o755)
	store, err := sqlitestore.New(sqlitestore.Config{DBPath: cfg.Store.SQLitePath}, nil)
	if err != nil {
		log.Fatalf("[backfill] sqlite init failed: %v", err)
	}
	defer store.Close()

	client := gateio.NewClient(cfg.Gateio.BaseURL, cfg.FetchTimeout())

	for _, pc := range cfg.Pairs {
		if *pair != "" && pc.Pair != *pair {
			continue
		}
		slg.Info("backfilling",
			slog.String("pair", pc.Pair),
			slog.String("interval", pc.Interval),
			slog.Time("from", from),
			slog.Time("to", to))

		candles, err := client.HistoricalCandles(ctx, pc.Pair, pc.Interval, from, to)
		if err != nil {
			log.Fatalf("[backfill] fetch %s failed: %v", pc.Pair, err)
		}
		if err := store.WriteCandles(ctx, candles); err != nil {
			log.Fatalf("[backfill] store %s failed: %v", pc.Pair, err)
		}
		slg.Info("backfill complete",
			slog.String("pair", pc.Pair),
			slog.Int("candles", len(candles)))
	}
}
