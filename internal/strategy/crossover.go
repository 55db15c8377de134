package strategy

import (
	"gatebotv1/internal/indicator"
)

// CrossoverName is the registry key for the MA crossover strategy.
const CrossoverName = "ma_crossover"

func init() {
	Register(CrossoverName, func(p Params) Strategy {
		return NewCrossover(p.RSIOverbought)
	})
}

// Crossover is an MA crossover signal generator with entry gating.
//
// Entry (BUY) requires all of:
//   - golden cross: previous short MA ≤ long MA, current short MA > long MA
//   - trend filter: close above the filter MA
//   - momentum: MACD line above its signal line
//   - overbought guard: RSI below the configured threshold
//
// Exit (SELL) fires on the death cross alone — deliberately permissive, no
// filter/MACD/RSI gating, to cut losses early.
//
// Stateless across ticks; the caller supplies the previous snapshot.
type Crossover struct {
	rsiOverbought float64
}

// NewCrossover creates a crossover generator with the given RSI ceiling.
func NewCrossover(rsiOverbought float64) *Crossover {
	return &Crossover{rsiOverbought: rsiOverbought}
}

func (c *Crossover) Name() string { return CrossoverName }

func (c *Crossover) Evaluate(prev, curr indicator.Snapshot) Signal {
	// Crossover detection needs both MAs in both snapshots.
	if !prev.CrossReady || !curr.CrossReady {
		return wait("warmup", curr)
	}

	goldenCross := prev.ShortMA <= prev.LongMA && curr.ShortMA > curr.LongMA
	deathCross := prev.ShortMA >= prev.LongMA && curr.ShortMA < curr.LongMA

	switch {
	case deathCross:
		return Signal{Kind: Sell, Reason: "death_cross", Price: curr.Close, Time: curr.Time}

	case goldenCross:
		// Entry gates: every required indicator must be defined.
		if !curr.FilterReady || !curr.MACDReady || !curr.RSIReady {
			return wait("warmup", curr)
		}
		if curr.Close <= curr.FilterMA {
			return wait("entry_filtered:trend", curr)
		}
		if curr.MACD <= curr.MACDSignal {
			return wait("entry_filtered:macd", curr)
		}
		if curr.RSI >= c.rsiOverbought {
			return wait("entry_filtered:rsi", curr)
		}
		return Signal{Kind: Buy, Reason: "golden_cross", Price: curr.Close, Time: curr.Time}

	default:
		return wait("no_signal", curr)
	}
}
