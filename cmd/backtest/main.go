// cmd/backtest replays stored candle history through the live signal
// pipeline and prints a performance report.
//
// Usage:
//
//	go run ./cmd/backtest --config configs/gatebot.toml --pair BTC_USDT \
//	    --from 2024-01-01 --to 2024-06-30 --capital 10000 --fee 0.001
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"time"

	"gatebotv1/config"
	"gatebotv1/internal/backtest"
	"gatebotv1/internal/engine"
	"gatebotv1/internal/logger"
	sqlitestore "gatebotv1/internal/store/sqlite"
	"gatebotv1/internal/strategy"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds | log.Lshortfile)

	configPath := flag.String("config", "configs/gatebot.toml", "Path to TOML config file")
	pair := flag.String("pair", "", "Pair to backtest (default: first configured pair)")
	fromStr := flag.String("from", "", "Start date YYYY-MM-DD (default: all history)")
	toStr := flag.String("to", "", "End date YYYY-MM-DD inclusive (default: now)")
	capital := flag.Float64("capital", 10000, "Initial capital in quote currency")
	fee := flag.Float64("fee", 0.001, "Taker fee per side")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("[backtest] %v", err)
	}
	slg := logger.Init("backtest", logger.ParseLevel(cfg.Log.Level))

	pc := cfg.Pairs[0]
	if *pair != "" {
		found := false
		for _, p := range cfg.Pairs {
			if p.Pair == *pair {
				pc, found = p, true
				break
			}
		}
		if !found {
			log.Fatalf("[backtest] pair %s not in config", *pair)
		}
	}

	from, to := parseRange(*fromStr, *toStr)

	store, err := sqlitestore.New(sqlitestore.Config{DBPath: cfg.Store.SQLitePath}, nil)
	if err != nil {
		log.Fatalf("[backtest] sqlite open failed: %v", err)
	}
	defer store.Close()

	candles, err := store.ReadCandles(context.Background(), pc.Pair, pc.Interval, from, to)
	if err != nil {
		log.Fatalf("[backtest] read candles failed: %v", err)
	}
	slg.Info("loaded history",
		slog.String("pair", pc.Pair),
		slog.String("interval", pc.Interval),
		slog.Int("candles", len(candles)))

	strat, err := strategy.New(cfg.Strategy.Name, cfg.StrategyParams())
	if err != nil {
		log.Fatalf("[backtest] strategy init failed: %v", err)
	}
	pipe := engine.NewPipeline(pc.Pair, cfg.IndicatorParams(), strat, cfg.PositionConfig())
	port := backtest.NewPortfolio(backtest.PortfolioConfig{
		InitialCapital: *capital,
		FeeRate:        *fee,
	})

	report, err := backtest.NewReplayer(pipe, port, slg).Run(candles)
	if err != nil {
		log.Fatalf("[backtest] %v", err)
	}
	fmt.Print(report)
}

func parseRange(fromStr, toStr string) (time.Time, time.Time) {
	from := time.Unix(0, 0)
	to := time.Now().UTC()
	if fromStr != "" {
		t, err := time.Parse("2006-01-02", fromStr)
		if err != nil {
			log.Fatalf("[backtest] bad --from date: %v", err)
		}
		from = t
	}
	if toStr != "" {
		t, err := time.Parse("2006-01-02", toStr)
		if err != nil {
			log.Fatalf("[backtest] bad --to date: %v", err)
		}
		to = t.Add(24*time.Hour - time.Second) // inclusive end of day
	}
	return from, to
}
