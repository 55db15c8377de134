// cmd/bot runs the live trading-signal bot: it polls Gate.io candles (or
// streams them over WebSocket), evaluates the strategy per pair, and emits
// BUY/SELL signals to the journal, Redis, and notification channels.
//
// Usage:
//
//	go run ./cmd/bot --config configs/gatebot.toml
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
	"gatebotv1/internal/engine"
	"gatebotv1/internal/gateio"
	"gatebotv1/internal/logger"
	"gatebotv1/internal/metrics"
	"gatebotv1/internal/notification"
	"gatebotv1/internal/ringbuf"
	redisstore "gatebotv1/internal/store/redis"
	sqlitestore "gatebotv1/internal/store/sqlite"
	"gatebotv1/internal/strategy"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds | log.Lshortfile)

	configPath := flag.String("config", "configs/gatebot.toml", "Path to TOML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("[bot] %v", err)
	}

	slg := logger.InitRotating("gatebot", logger.ParseLevel(cfg.Log.Level), logger.FileConfig{
		Path:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
	})

	// ---- Metrics & health ----
	prom := metrics.NewMetrics()
	health := metrics.NewHealthStatus()
	pairs := make([]string, 0, len(cfg.Pairs))
	for _, p := range cfg.Pairs {
		pairs = append(pairs, p.Pair)
	}
	health.SetActivePairs(pairs)
	metricsSrv := metrics.NewServer(cfg.Metrics.Addr, health)
	metricsSrv.Start()

	// ---- Graceful shutdown ----
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		slg.Info("shutdown signal received")
		cancel()
	}()

	// ---- Signal journal (SQLite) ----
	os.MkdirAll(filepath.Dir(cfg.Store.SQLitePath), 0o755)
	store, err := sqlitestore.New(sqlitestore.Config{DBPath: cfg.Store.SQLitePath}, prom)
	if err != nil {
		log.Fatalf("[bot] sqlite init failed: %v", err)
	}
	defer store.Close()

	// ---- Redis publisher (optional) ----
	var publisher engine.SignalPublisher
	if cfg.Store.RedisEnabled {
		pub, err := redisstore.New(redisstore.Config{
			Addr:         cfg.Store.RedisAddr,
			Password:     cfg.Store.RedisPassword,
			DB:           cfg.Store.RedisDB,
			StreamMaxLen: cfg.Store.StreamMaxLen,
		}, prom)
		if err != nil {
			slg.Warn("redis init failed, continuing without publisher", slog.Any("err", err))
		} else {
			defer pub.Close()
			publisher = pub
			health.StartLivenessChecker(ctx, pub.Client(), store.DB(), 10*time.Second)
		}
	}
	if publisher == nil {
		health.StartLivenessChecker(ctx, nil, store.DB(), 10*time.Second)
	}

	// ---- Notifier chain ----
	backends := []notification.Notifier{notification.NewLogNotifier()}
	if cfg.Notify.PushPlusEnabled {
		backends = append(backends, notification.NewPushPlusNotifier(cfg.Notify.PushPlusToken))
	}
	if cfg.Notify.WebhookURL != "" {
		backends = append(backends, notification.NewWebhookNotifier(cfg.Notify.WebhookURL))
	}
	multi := notification.NewMulti(backends...)
	multi.OnFailure = func(channel string) {
		prom.NotifyFailures.WithLabelValues(channel).Inc()
	}
	async := notification.NewAsync(multi, cfg.Notify.QueueDepth)
	go async.Run(ctx)

	// ---- Candle sources ----
	rest := gateio.NewClient(cfg.Gateio.BaseURL, cfg.FetchTimeout())

	// ---- One worker per pair ----
	workers := make([]*engine.Worker, 0, len(cfg.Pairs))
	for _, pc := range cfg.Pairs {
		strat, err := strategy.New(cfg.Strategy.Name, cfg.StrategyParams())
		if err != nil {
			log.Fatalf("[bot] strategy init failed: %v", err)
		}
		pipe := engine.NewPipeline(pc.Pair, cfg.IndicatorParams(), strat, cfg.PositionConfig())

		var src engine.CandleSource = rest
		pollEvery := cfg.PollInterval()
		if cfg.Gateio.UseWebsocket {
			ring := ringbuf.New(1024)
			feed := gateio.NewWSFeed(cfg.Gateio.WSURL, pc.Pair, pc.Interval, ring, prom, slg)
			src = engine.NewRingSource(ring)
			// Streamed candles arrive as they close; drain frequently.
			pollEvery = time.Second

			// Warm the indicators from REST history. The feed starts
			// streaming only after the history is in the ring, so warm
			// candles always reach the worker before live ones.
			warm, err := rest.Candles(ctx, pc.Pair, pc.Interval, pipe.MinHistory()+50)
			if err != nil {
				slg.Warn("history warmup failed", slog.String("pair", pc.Pair), slog.Any("err", err))
			}
			feed.Start(ctx, warm)
			health.SetFeedConnected(true)
		}

		workers = append(workers, engine.NewWorker(engine.WorkerConfig{
			Pair:         pc.Pair,
			Interval:     pc.Interval,
			PollEvery:    pollEvery,
			FetchTimeout: cfg.FetchTimeout(),
			Lookback:     cfg.Gateio.Lookback,
			Health:       health,
		}, src, pipe, async, store, publisher, prom, slg))
	}

	engine.New(workers, slg).Run(ctx)

	// Alerts queued by the final ticks are flushed before the process exits.
	async.Wait()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	metricsSrv.Stop(shutdownCtx)
	slg.Info("bot exited")
}
