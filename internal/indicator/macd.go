package indicator

import "gatebotv1/internal/model"

// MACD calculates Moving Average Convergence Divergence:
// the difference of a fast and a slow EMA of closes, plus a signal line that
// is an EMA of the MACD series itself. The signal EMA is seeded with a simple
// average of the first signalPeriod MACD values.
//
// Both lines are undefined until at least slowPeriod+signalPeriod candles
// have been seen.
type MACD struct {
	slowPeriod   int
	signalPeriod int

	fast *EMA
	slow *EMA
	sig  *EMA

	count   int
	current float64 // MACD line
}

// NewMACD creates a MACD indicator with the given fast/slow/signal periods.
func NewMACD(fastPeriod, slowPeriod, signalPeriod int) *MACD {
	return &MACD{
		slowPeriod:   slowPeriod,
		signalPeriod: signalPeriod,
		fast:         NewEMA(fastPeriod),
		slow:         NewEMA(slowPeriod),
		sig:          NewEMA(signalPeriod),
	}
}

func (m *MACD) Name() string { return "MACD" }

func (m *MACD) Update(candle model.Candle) {
	m.count++
	m.fast.Update(candle)
	m.slow.Update(candle)

	if m.count < m.slowPeriod {
		return
	}

	// The MACD series starts once the slow EMA is seeded.
	m.current = m.fast.Value() - m.slow.Value()
	m.sig.update(m.current)
}

// Value returns the MACD line (fast EMA − slow EMA).
func (m *MACD) Value() float64 { return m.current }

// Signal returns the signal line (EMA of the MACD series).
func (m *MACD) Signal() float64 { return m.sig.Value() }

func (m *MACD) Ready() bool { return m.count >= m.slowPeriod+m.signalPeriod }
