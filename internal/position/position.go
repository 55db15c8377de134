// Package position owns the per-pair position state machine: it consumes raw
// strategy signals and live prices, applies stop-loss and trailing-stop
// rules, and emits the final actionable signal.
package position

// State is the position lifecycle state. Short selling is not supported, so
// the machine only ever moves between FLAT and LONG.
type State string

const (
	Flat State = "FLAT"
	Long State = "LONG"
)

// Snapshot is a read-only copy of the position state, exposed to drivers for
// logging and persistence. Price fields are meaningful only while State is
// LONG; on exit they are cleared.
type Snapshot struct {
	State         State   `json:"state"`
	EntryPrice    float64 `json:"entry_price,omitempty"`
	StopLoss      float64 `json:"stop_loss,omitempty"`
	TrailingPeak  float64 `json:"trailing_peak,omitempty"`
	TrailingArmed bool    `json:"trailing_armed,omitempty"`
}

// Config holds the risk parameters for one pair.
type Config struct {
	StopLossPct         float64 // fixed stop distance below entry, e.g. 0.02
	TrailingStopPct     float64 // drawdown from peak that triggers the trailing stop
	TrailingCallbackPct float64 // gain above entry that arms the trailing stop
}
