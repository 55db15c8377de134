// Package backtest replays stored candle history through the exact live
// signal pipeline and simulates fills against a single-position portfolio.
package backtest

import (
	"time"
)

// allocFraction is the share of cash committed on each buy. A small reserve
// stays in cash so fees never overdraw the account.
const allocFraction = 0.99

// Trade is one completed round trip.
type Trade struct {
	EntryTime  time.Time
	ExitTime   time.Time
	EntryPrice float64
	ExitPrice  float64
	ExitReason string
	ReturnPct  float64 // net of fees
}

// PortfolioConfig configures the fill simulator.
type PortfolioConfig struct {
	InitialCapital float64
	FeeRate        float64 // taker fee per side, e.g. 0.001
}

// Portfolio simulates all-in spot fills: each buy commits almost all cash,
// each sell liquidates the whole position. Fees are charged per side.
type Portfolio struct {
	cfg PortfolioConfig

	cash  float64
	units float64

	entryTime  time.Time
	entryPrice float64

	trades []Trade
}

// NewPortfolio creates a portfolio holding only cash.
func NewPortfolio(cfg PortfolioConfig) *Portfolio {
	return &Portfolio{cfg: cfg, cash: cfg.InitialCapital}
}

// Buy fills an entry at price. No-op if a position is already held.
func (p *Portfolio) Buy(price float64, ts time.Time) {
	if p.units > 0 {
		return
	}
	spend := p.cash * allocFraction
	p.units = spend * (1 - p.cfg.FeeRate) / price
	p.cash -= spend
	p.entryTime = ts
	p.entryPrice = price
}

// Sell liquidates the position at price. No-op when flat.
func (p *Portfolio) Sell(price float64, ts time.Time, reason string) {
	if p.units == 0 {
		return
	}
	proceeds := p.units * price * (1 - p.cfg.FeeRate)
	p.cash += proceeds

	gross := p.entryPrice * p.units / (1 - p.cfg.FeeRate) // what the entry cost
	p.trades = append(p.trades, Trade{
		EntryTime:  p.entryTime,
		ExitTime:   ts,
		EntryPrice: p.entryPrice,
		ExitPrice:  price,
		ExitReason: reason,
		ReturnPct:  (proceeds - gross) / gross * 100,
	})
	p.units = 0
	p.entryPrice = 0
	p.entryTime = time.Time{}
}

// Equity is cash plus the position marked at price.
func (p *Portfolio) Equity(price float64) float64 {
	return p.cash + p.units*price
}

// Holding reports whether a position is open.
func (p *Portfolio) Holding() bool { return p.units > 0 }

// Trades returns completed round trips in order.
func (p *Portfolio) Trades() []Trade { return p.trades }
