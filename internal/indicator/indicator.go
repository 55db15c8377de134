// Package indicator provides streaming technical indicator calculations over
// candle data.
//
// All indicators implement the Indicator interface, receiving candles and
// producing float64 values. Updates are O(1) per candle — bounded ring buffers
// or recurrence state only, no history scans.
package indicator

import "gatebotv1/internal/model"

// Indicator is the interface for all technical indicators.
type Indicator interface {
	// Name returns the indicator name (e.g., "SMA", "RSI").
	Name() string

	// Update feeds a new closed candle and recalculates.
	Update(candle model.Candle)

	// Value returns the current calculated value. Returns 0 if not enough data.
	Value() float64

	// Ready returns true when enough data has been accumulated.
	// A not-ready indicator is in warm-up, which is a normal state, not an error.
	Ready() bool
}
