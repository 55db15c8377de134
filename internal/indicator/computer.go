package indicator

import (
	"time"

	"gatebotv1/internal/model"
)

// Params is the fixed parameter set for one pair's indicator stack.
type Params struct {
	ShortWindow  int // short SMA period
	LongWindow   int // long SMA period
	FilterWindow int // trend-filter SMA period
	MACDFast     int
	MACDSlow     int
	MACDSignal   int
	RSIWindow    int
}

// Snapshot is the set of indicator values derived from the candle history
// ending at one candle's close. Fields are meaningful only when the matching
// readiness flag is true; consumers must treat a not-ready value as undefined,
// never as zero.
type Snapshot struct {
	Time  time.Time
	Close float64

	ShortMA    float64
	LongMA     float64
	FilterMA   float64
	MACD       float64
	MACDSignal float64
	RSI        float64

	CrossReady  bool // ShortMA and LongMA defined
	FilterReady bool
	MACDReady   bool // MACD and MACDSignal defined
	RSIReady    bool
}

// Complete reports whether every field in the snapshot is defined.
func (s Snapshot) Complete() bool {
	return s.CrossReady && s.FilterReady && s.MACDReady && s.RSIReady
}

// Computer derives one Snapshot per appended candle for a single pair.
// Owned by exactly one worker — no locks needed.
type Computer struct {
	params Params

	shortMA  *SMA
	longMA   *SMA
	filterMA *SMA
	macd     *MACD
	rsi      *RSI
}

// NewComputer creates a Computer with the given parameter set.
func NewComputer(p Params) *Computer {
	return &Computer{
		params:   p,
		shortMA:  NewSMA(p.ShortWindow),
		longMA:   NewSMA(p.LongWindow),
		filterMA: NewSMA(p.FilterWindow),
		macd:     NewMACD(p.MACDFast, p.MACDSlow, p.MACDSignal),
		rsi:      NewRSI(p.RSIWindow),
	}
}

// MinHistory returns the number of candles required before every snapshot
// field is defined.
func (c *Computer) MinHistory() int {
	min := c.params.LongWindow
	if c.params.FilterWindow > min {
		min = c.params.FilterWindow
	}
	if n := c.params.MACDSlow + c.params.MACDSignal; n > min {
		min = n
	}
	if n := c.params.RSIWindow + 1; n > min {
		min = n
	}
	return min
}

// Update feeds the next candle (in time order) and returns the snapshot for
// its close. Snapshots are never revised retroactively.
func (c *Computer) Update(candle model.Candle) Snapshot {
	c.shortMA.Update(candle)
	c.longMA.Update(candle)
	c.filterMA.Update(candle)
	c.macd.Update(candle)
	c.rsi.Update(candle)

	return Snapshot{
		Time:  candle.OpenTime,
		Close: candle.Close,

		ShortMA:    c.shortMA.Value(),
		LongMA:     c.longMA.Value(),
		FilterMA:   c.filterMA.Value(),
		MACD:       c.macd.Value(),
		MACDSignal: c.macd.Signal(),
		RSI:        c.rsi.Value(),

		CrossReady:  c.shortMA.Ready() && c.longMA.Ready(),
		FilterReady: c.filterMA.Ready(),
		MACDReady:   c.macd.Ready(),
		RSIReady:    c.rsi.Ready(),
	}
}
