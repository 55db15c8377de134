// Package model defines the shared market-data types used across the bot.
package model

import (
	"fmt"
	"math"
	"time"
)

// Candle represents one OHLCV candle for a trading pair.
// Immutable once produced; sequences are ordered by strictly increasing OpenTime.
type Candle struct {
	Pair     string    `json:"pair"`
	Interval string    `json:"interval"`
	OpenTime time.Time `json:"open_time"` // bucket start (UTC)
	Open     float64   `json:"open"`
	High     float64   `json:"high"`
	Low      float64   `json:"low"`
	Close    float64   `json:"close"`
	Volume   float64   `json:"volume"`
}

// Validate rejects candles with non-finite or non-positive prices.
// Drivers call this before a candle enters the signal pipeline; a bad candle
// counts as a data-fetch failure, not a pipeline error.
func (c *Candle) Validate() error {
	for _, v := range []float64{c.Open, c.High, c.Low, c.Close} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("candle %s @ %s: non-finite price", c.Pair, c.OpenTime.Format(time.RFC3339))
		}
		if v <= 0 {
			return fmt.Errorf("candle %s @ %s: non-positive price %v", c.Pair, c.OpenTime.Format(time.RFC3339), v)
		}
	}
	if math.IsNaN(c.Volume) || math.IsInf(c.Volume, 0) || c.Volume < 0 {
		return fmt.Errorf("candle %s @ %s: invalid volume", c.Pair, c.OpenTime.Format(time.RFC3339))
	}
	return nil
}
