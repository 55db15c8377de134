package engine

import (
	"context"

	"gatebotv1/internal/model"
	"gatebotv1/internal/ringbuf"
)

// RingSource adapts a ring buffer fed by a streaming candle feed (the
// WebSocket client) to the CandleSource interface. Draining is non-blocking:
// an empty ring yields an empty slice, which the worker treats as a tick with
// no new candles.
//
// The ring is pre-scoped to one pair/interval by whoever fills it, so the
// pair, interval, and limit arguments are ignored.
type RingSource struct {
	ring *ringbuf.Ring
}

// NewRingSource wraps a ring buffer as a CandleSource.
func NewRingSource(ring *ringbuf.Ring) *RingSource {
	return &RingSource{ring: ring}
}

func (r *RingSource) Candles(ctx context.Context, pair, interval string, limit int) ([]model.Candle, error) {
	var out []model.Candle
	for {
		c, ok := r.ring.Pop()
		if !ok {
			return out, nil
		}
		out = append(out, c)
	}
}
