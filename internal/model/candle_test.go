package model

import (
	"math"
	"testing"
	"time"
)

func validCandle() Candle {
	return Candle{
		Pair:     "BTC_USDT",
		Interval: "1h",
		OpenTime: time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
		Open:     100, High: 105, Low: 99, Close: 104, Volume: 12.5,
	}
}

func TestCandle_Validate_OK(t *testing.T) {
	c := validCandle()
	if err := c.Validate(); err != nil {
		t.Fatalf("valid candle rejected: %v", err)
	}
}

func TestCandle_Validate_Rejects(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Candle)
	}{
		{"nan close", func(c *Candle) { c.Close = math.NaN() }},
		{"inf high", func(c *Candle) { c.High = math.Inf(1) }},
		{"zero open", func(c *Candle) { c.Open = 0 }},
		{"negative low", func(c *Candle) { c.Low = -1 }},
		{"negative volume", func(c *Candle) { c.Volume = -3 }},
		{"nan volume", func(c *Candle) { c.Volume = math.NaN() }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := validCandle()
			tc.mutate(&c)
			if err := c.Validate(); err == nil {
				t.Errorf("expected validation error")
			}
		})
	}
}
