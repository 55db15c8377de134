package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"gatebotv1/internal/logger"
	"gatebotv1/internal/metrics"
	"gatebotv1/internal/model"
	"gatebotv1/internal/notification"
	"gatebotv1/internal/position"
	"gatebotv1/internal/strategy"
)

// CandleSource supplies ordered closed candles for a pair/interval. Live
// implementations fail with a data-fetch error on network, rate-limit, or
// parse problems; the worker skips that tick and retries on the next one.
type CandleSource interface {
	Candles(ctx context.Context, pair, interval string, limit int) ([]model.Candle, error)
}

// SignalJournal persists emitted BUY/SELL signals. Optional.
type SignalJournal interface {
	RecordSignal(pair string, sig strategy.Signal) error
}

// SignalPublisher forwards emitted BUY/SELL signals to downstream consumers.
// Optional; failures never affect the tick.
type SignalPublisher interface {
	Publish(ctx context.Context, pair string, sig strategy.Signal) error
}

// WorkerConfig configures one pair's live worker.
type WorkerConfig struct {
	Pair         string
	Interval     string        // kline interval, e.g. "1h"
	PollEvery    time.Duration // run interval between fetches
	FetchTimeout time.Duration // bound on one candle fetch
	Lookback     int           // candles requested per fetch

	Health *metrics.HealthStatus // optional; updated with feed liveness
}

// Worker polls candles for a single pair and drives its private Pipeline.
// All mutable state (indicator windows, lookback snapshot, position) is owned
// by this worker alone; nothing is shared across pairs.
type Worker struct {
	cfg  WorkerConfig
	src  CandleSource
	pipe *Pipeline

	notifier  notification.Notifier // shared, concurrency-safe; may be nil
	journal   SignalJournal         // may be nil
	publisher SignalPublisher       // may be nil
	met       *metrics.Metrics      // may be nil
	log       *slog.Logger

	lastOpen time.Time // newest candle already processed
}

// NewWorker creates a live worker. notifier, journal, publisher, and met are
// optional sinks; a nil sink is skipped.
func NewWorker(cfg WorkerConfig, src CandleSource, pipe *Pipeline, notifier notification.Notifier,
	journal SignalJournal, publisher SignalPublisher, met *metrics.Metrics, log *slog.Logger) *Worker {
	if cfg.Lookback <= 0 {
		// Enough history to warm every indicator, plus slack for gaps.
		cfg.Lookback = pipe.MinHistory() + 50
	}
	return &Worker{
		cfg:       cfg,
		src:       src,
		pipe:      pipe,
		notifier:  notifier,
		journal:   journal,
		publisher: publisher,
		met:       met,
		log:       log.With(slog.String("pair", cfg.Pair)),
	}
}

// Run polls until ctx is cancelled. The current tick always completes before
// Run returns — cancellation is only observed between ticks, so no partial
// state mutation is ever exposed.
func (w *Worker) Run(ctx context.Context) {
	w.log.Info("worker started",
		slog.String("interval", w.cfg.Interval),
		slog.Duration("poll_every", w.cfg.PollEvery),
		slog.Int("lookback", w.cfg.Lookback))

	ticker := time.NewTicker(w.cfg.PollEvery)
	defer ticker.Stop()

	w.tick(ctx)
	for {
		select {
		case <-ctx.Done():
			w.log.Info("worker stopped")
			return
		case <-ticker.C:
			w.tick(ctx)
		}
	}
}

func (w *Worker) tick(ctx context.Context) {
	start := time.Now()
	tctx := logger.WithTraceID(ctx, logger.GenerateTraceID(w.cfg.Pair, start))

	fctx, cancel := context.WithTimeout(tctx, w.cfg.FetchTimeout)
	candles, err := w.src.Candles(fctx, w.cfg.Pair, w.cfg.Interval, w.cfg.Lookback)
	cancel()
	if err != nil {
		// Recoverable: skip this tick, keep prior state, retry next interval.
		if w.met != nil {
			w.met.FetchErrors.WithLabelValues(w.cfg.Pair).Inc()
		}
		if w.cfg.Health != nil {
			w.cfg.Health.SetFeedConnected(false)
		}
		w.log.Warn("candle fetch failed, skipping tick", slog.Any("err", err))
		return
	}
	if w.cfg.Health != nil {
		w.cfg.Health.SetFeedConnected(true)
	}

	// Validate the whole batch before any of it reaches the state machine.
	// One malformed candle poisons the fetch: processing the candles around
	// it would leave a permanent gap in the indicator history, so the tick
	// is skipped like a failed fetch and the next interval retries.
	var fresh []model.Candle
	for _, c := range candles {
		if !c.OpenTime.After(w.lastOpen) {
			continue // already processed in a previous poll
		}
		if err := c.Validate(); err != nil {
			if w.met != nil {
				w.met.FetchErrors.WithLabelValues(w.cfg.Pair).Inc()
			}
			w.log.Warn("malformed candle in batch, skipping tick", slog.Any("err", err))
			return
		}
		fresh = append(fresh, c)
	}
	for _, c := range fresh {
		w.process(tctx, c)
	}

	if w.met != nil {
		w.met.TickDuration.Observe(time.Since(start).Seconds())
		w.met.TicksTotal.WithLabelValues(w.cfg.Pair).Inc()
	}
}

func (w *Worker) process(ctx context.Context, c model.Candle) {
	sig, pos := w.pipe.ProcessCandle(c)
	w.lastOpen = c.OpenTime

	if w.cfg.Health != nil {
		w.cfg.Health.SetLastCandleTime(c.OpenTime)
	}

	if w.met != nil {
		w.met.CandlesTotal.WithLabelValues(w.cfg.Pair).Inc()
		w.met.SignalsTotal.WithLabelValues(w.cfg.Pair, string(sig.Kind)).Inc()
		if pos.State == position.Long {
			w.met.PositionOpen.WithLabelValues(w.cfg.Pair).Set(1)
		} else {
			w.met.PositionOpen.WithLabelValues(w.cfg.Pair).Set(0)
		}
	}

	attrs := []any{
		slog.String("kind", string(sig.Kind)),
		slog.String("reason", sig.Reason),
		slog.Float64("close", c.Close),
		slog.String("position", string(pos.State)),
		slog.Time("candle", c.OpenTime),
	}
	attrs = append(attrs, logger.LogWithTrace(ctx)...)

	if sig.Kind == strategy.Wait {
		w.log.Debug("tick", attrs...)
		return
	}
	w.log.Info("signal", attrs...)

	if w.journal != nil {
		if err := w.journal.RecordSignal(w.cfg.Pair, sig); err != nil {
			w.log.Warn("signal journal write failed", slog.Any("err", err))
		}
	}
	if w.publisher != nil {
		if err := w.publisher.Publish(ctx, w.cfg.Pair, sig); err != nil {
			w.log.Warn("signal publish failed", slog.Any("err", err))
		}
	}
	if w.notifier != nil {
		alert := notification.Alert{
			Level:   notification.AlertInfo,
			Title:   fmt.Sprintf("%s %s (%s)", sig.Kind, w.cfg.Pair, sig.Reason),
			Message: fmt.Sprintf("price %.4f at %s", sig.Price, sig.Time.UTC().Format(time.RFC3339)),
		}
		// Fire-and-forget: delivery failures never affect the tick.
		_ = w.notifier.Send(ctx, alert)
	}
}

// Engine runs one worker per monitored pair.
type Engine struct {
	workers []*Worker
	log     *slog.Logger
}

// New creates an Engine over the given workers.
func New(workers []*Worker, log *slog.Logger) *Engine {
	return &Engine{workers: workers, log: log}
}

// Run starts all workers and blocks until every worker has finished its
// current tick after ctx is cancelled.
func (e *Engine) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for _, w := range e.workers {
		wg.Add(1)
		go func(w *Worker) {
			defer wg.Done()
			w.Run(ctx)
		}(w)
	}
	e.log.Info("engine running", slog.Int("workers", len(e.workers)))
	wg.Wait()
	e.log.Info("engine stopped")
}
