package position

import (
	"time"

	"gatebotv1/internal/strategy"
)

// Manager is the per-pair position/risk state machine. Exactly one Manager
// exists per monitored pair, owned exclusively by that pair's worker — no
// locks needed. Created FLAT, reset to FLAT on every exit, never destroyed
// mid-run.
//
// Manager performs no I/O and never fails on well-formed numeric input;
// malformed candles are rejected upstream and never reach it.
type Manager struct {
	cfg Config

	state State
	entry float64
	stop  float64
	peak  float64
	armed bool
}

// NewManager creates a Manager in the FLAT state.
func NewManager(cfg Config) *Manager {
	return &Manager{cfg: cfg, state: Flat}
}

// Snapshot returns a copy of the current position state.
func (m *Manager) Snapshot() Snapshot {
	return Snapshot{
		State:         m.state,
		EntryPrice:    m.entry,
		StopLoss:      m.stop,
		TrailingPeak:  m.peak,
		TrailingArmed: m.armed,
	}
}

// Apply consumes the raw signal for one tick together with the tick's close
// price and returns the final actionable signal.
//
// While FLAT a raw SELL is suppressed (no naked shorting) and a raw BUY opens
// the position. While LONG the risk exits are evaluated every tick in fixed
// order — fixed stop, trailing stop, death-cross exit — regardless of the raw
// signal, and a raw BUY is ignored (one position at a time).
func (m *Manager) Apply(raw strategy.Signal, price float64, ts time.Time) strategy.Signal {
	switch m.state {
	case Flat:
		if raw.Kind == strategy.Buy {
			m.open(price)
			return strategy.Signal{Kind: strategy.Buy, Reason: raw.Reason, Price: price, Time: ts}
		}
		reason := raw.Reason
		if raw.Kind == strategy.Sell {
			reason = "sell_suppressed_flat"
		}
		return strategy.Signal{Kind: strategy.Wait, Reason: reason, Price: price, Time: ts}

	default: // Long
		// Peak is monotonically non-decreasing while LONG.
		if price > m.peak {
			m.peak = price
		}
		trailingStop := m.peak * (1 - m.cfg.TrailingStopPct)

		// Arming latches permanently once the close has risen enough above entry.
		if !m.armed && price >= m.entry*(1+m.cfg.TrailingCallbackPct) {
			m.armed = true
		}

		switch {
		case price <= m.stop:
			m.close()
			return strategy.Signal{Kind: strategy.Sell, Reason: "stop_loss", Price: price, Time: ts}

		case m.armed && price <= trailingStop:
			m.close()
			return strategy.Signal{Kind: strategy.Sell, Reason: "trailing_stop", Price: price, Time: ts}

		case raw.Kind == strategy.Sell:
			m.close()
			return strategy.Signal{Kind: strategy.Sell, Reason: "signal_exit", Price: price, Time: ts}

		default:
			return strategy.Signal{Kind: strategy.Wait, Reason: "hold", Price: price, Time: ts}
		}
	}
}

func (m *Manager) open(price float64) {
	m.state = Long
	m.entry = price
	m.stop = price * (1 - m.cfg.StopLossPct)
	m.peak = price
	m.armed = false
}

func (m *Manager) close() {
	m.state = Flat
	m.entry = 0
	m.stop = 0
	m.peak = 0
	m.armed = false
}
