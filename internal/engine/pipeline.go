// Package engine wires candles through the indicator computer, the signal
// generator, and the position manager, and drives that pipeline in live mode.
//
// The same pipeline runs identically under the live poller and the backtest
// replayer: one candle in, one final signal out, strictly in candle time
// order.
package engine

import (
	"gatebotv1/internal/indicator"
	"gatebotv1/internal/model"
	"gatebotv1/internal/position"
	"gatebotv1/internal/strategy"
)

// Pipeline is the per-pair fetch-free decision core. It owns the indicator
// state, the one-snapshot lookback for crossover detection, and the position
// manager. Side-effect-free except for its own state: an identical candle
// sequence always produces an identical signal sequence.
type Pipeline struct {
	pair     string
	computer *indicator.Computer
	strat    strategy.Strategy
	risk     *position.Manager

	prev     indicator.Snapshot
	havePrev bool
}

// NewPipeline builds the decision core for one pair.
func NewPipeline(pair string, params indicator.Params, strat strategy.Strategy, riskCfg position.Config) *Pipeline {
	return &Pipeline{
		pair:     pair,
		computer: indicator.NewComputer(params),
		strat:    strat,
		risk:     position.NewManager(riskCfg),
	}
}

// Pair returns the trading pair this pipeline decides for.
func (p *Pipeline) Pair() string { return p.pair }

// MinHistory returns the candle count needed before signals can fire.
func (p *Pipeline) MinHistory() int { return p.computer.MinHistory() }

// Position returns a read-only copy of the current position state.
func (p *Pipeline) Position() position.Snapshot { return p.risk.Snapshot() }

// ProcessCandle consumes the next closed candle in time order and returns the
// final actionable signal plus the updated position snapshot. The caller must
// have validated the candle.
func (p *Pipeline) ProcessCandle(c model.Candle) (strategy.Signal, position.Snapshot) {
	snap := p.computer.Update(c)

	raw := strategy.Signal{Kind: strategy.Wait, Reason: "warmup", Price: snap.Close, Time: snap.Time}
	if p.havePrev {
		raw = p.strat.Evaluate(p.prev, snap)
	}
	p.prev = snap
	p.havePrev = true

	final := p.risk.Apply(raw, c.Close, c.OpenTime)
	return final, p.risk.Snapshot()
}
