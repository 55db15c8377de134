package backtest

import (
	"fmt"
	"log/slog"
	"sort"

	"gatebotv1/internal/engine"
	"gatebotv1/internal/model"
	"gatebotv1/internal/strategy"
)

// Replayer drives stored candles through the live decision pipeline and
// fills the resulting signals against a simulated portfolio.
type Replayer struct {
	pipe *engine.Pipeline
	port *Portfolio
	log  *slog.Logger
}

// NewReplayer creates a replayer around a fresh pipeline and portfolio.
func NewReplayer(pipe *engine.Pipeline, port *Portfolio, log *slog.Logger) *Replayer {
	return &Replayer{pipe: pipe, port: port, log: log}
}

// Run replays candles in time order and returns the performance report.
// Candles are validated and sorted; malformed rows abort the run since a
// backtest over corrupt history is worthless.
func (r *Replayer) Run(candles []model.Candle) (*Report, error) {
	if len(candles) == 0 {
		return nil, fmt.Errorf("backtest: no candles to replay")
	}

	sorted := make([]model.Candle, len(candles))
	copy(sorted, candles)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].OpenTime.Before(sorted[j].OpenTime) })

	for i, c := range sorted {
		if err := c.Validate(); err != nil {
			return nil, fmt.Errorf("backtest: candle %d (%s): %w", i, c.OpenTime, err)
		}
		if i > 0 && !sorted[i-1].OpenTime.Before(c.OpenTime) {
			return nil, fmt.Errorf("backtest: duplicate candle at %s", c.OpenTime)
		}
	}

	equity := make([]equityPoint, 0, len(sorted))
	for _, c := range sorted {
		sig, _ := r.pipe.ProcessCandle(c)

		switch sig.Kind {
		case strategy.Buy:
			r.port.Buy(sig.Price, sig.Time)
			r.log.Debug("backtest buy",
				slog.Time("candle", c.OpenTime),
				slog.Float64("price", sig.Price),
				slog.String("reason", sig.Reason))
		case strategy.Sell:
			r.port.Sell(sig.Price, sig.Time, sig.Reason)
			r.log.Debug("backtest sell",
				slog.Time("candle", c.OpenTime),
				slog.Float64("price", sig.Price),
				slog.String("reason", sig.Reason))
		}

		equity = append(equity, equityPoint{
			Time:   c.OpenTime,
			Equity: r.port.Equity(c.Close),
		})
	}

	// An open position at the end of history is marked to the last close but
	// not force-sold: it never becomes a trade row.
	return buildReport(r.pipe.Pair(), r.port, equity), nil
}
