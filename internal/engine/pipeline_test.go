package engine

import (
	"testing"
	"time"

	"gatebotv1/internal/indicator"
	"gatebotv1/internal/model"
	"gatebotv1/internal/position"
	"gatebotv1/internal/strategy"
)

// Small windows keep the fixtures hand-checkable:
// MinHistory = max(3, 3, 3+2, 2+1) = 5.
func testPipeline(t *testing.T) *Pipeline {
	t.Helper()
	params := indicator.Params{
		ShortWindow: 2, LongWindow: 3, FilterWindow: 3,
		MACDFast: 2, MACDSlow: 3, MACDSignal: 2,
		RSIWindow: 2,
	}
	strat, err := strategy.New(strategy.CrossoverName, strategy.Params{RSIOverbought: 90})
	if err != nil {
		t.Fatalf("strategy: %v", err)
	}
	risk := position.Config{StopLossPct: 0.02, TrailingStopPct: 0.04, TrailingCallbackPct: 0.01}
	return NewPipeline("BTC_USDT", params, strat, risk)
}

func series(closes ...float64) []model.Candle {
	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	out := make([]model.Candle, len(closes))
	for i, c := range closes {
		out[i] = model.Candle{
			Pair: "BTC_USDT", Interval: "1h",
			OpenTime: base.Add(time.Duration(i) * time.Hour),
			Open:     c, High: c + 1, Low: c - 1, Close: c, Volume: 1,
		}
	}
	return out
}

func TestPipeline_ShortHistoryWaits(t *testing.T) {
	p := testPipeline(t)
	if p.MinHistory() != 5 {
		t.Fatalf("MinHistory = %d, want 5", p.MinHistory())
	}

	for i, c := range series(100, 101, 102, 101) { // one short of MinHistory
		sig, pos := p.ProcessCandle(c)
		if sig.Kind != strategy.Wait {
			t.Errorf("candle %d: got %s during warm-up, want WAIT", i, sig.Kind)
		}
		if pos.State != position.Flat {
			t.Errorf("candle %d: position changed during warm-up", i)
		}
	}
}

// End-to-end scenario, pinned to the cent:
//
//	closes: 100, 101, 102, 101, 99, 104, 112, 107
//
// Candle 5 (99) makes a death cross while FLAT — suppressed.
// Candle 6 (104) makes a golden cross with every gate passing
// (close 104 > filter SMA3 101.3333, MACD 0.57407 > signal 0.35802,
// RSI 80.77 < 90) → BUY, entry 104, stop 101.92.
// Candle 7 (112) arms the trailing stop (≥ 104×1.01) and sets peak 112.
// Candle 8 (107) is below 112×0.96 = 107.52 → SELL trailing_stop.
func TestPipeline_EndToEnd(t *testing.T) {
	p := testPipeline(t)

	want := []struct {
		kind   strategy.Kind
		reason string
	}{
		{strategy.Wait, "warmup"},
		{strategy.Wait, "warmup"},
		{strategy.Wait, "warmup"},
		{strategy.Wait, "no_signal"},
		{strategy.Wait, "sell_suppressed_flat"},
		{strategy.Buy, "golden_cross"},
		{strategy.Wait, "hold"},
		{strategy.Sell, "trailing_stop"},
	}

	candles := series(100, 101, 102, 101, 99, 104, 112, 107)
	for i, c := range candles {
		sig, pos := p.ProcessCandle(c)
		if sig.Kind != want[i].kind || sig.Reason != want[i].reason {
			t.Fatalf("candle %d (close %.0f): got %s/%s, want %s/%s",
				i, c.Close, sig.Kind, sig.Reason, want[i].kind, want[i].reason)
		}

		switch i {
		case 5: // just bought
			if pos.State != position.Long {
				t.Fatal("not LONG after BUY")
			}
			if diff := pos.StopLoss - 101.92; diff > 1e-9 || diff < -1e-9 {
				t.Errorf("stop loss = %v, want 101.92", pos.StopLoss)
			}
		case 6:
			if !pos.TrailingArmed {
				t.Error("trailing not armed at peak")
			}
			if pos.TrailingPeak != 112 {
				t.Errorf("peak = %v, want 112", pos.TrailingPeak)
			}
		case 7:
			if pos.State != position.Flat {
				t.Error("not FLAT after trailing stop")
			}
		}
	}
}

func TestPipeline_Deterministic(t *testing.T) {
	// The same candle sequence must produce the same signal sequence on every
	// run — this is what makes backtest and live behavior identical.
	candles := series(100, 101, 102, 101, 99, 104, 112, 107, 103, 99, 105, 111)

	run := func() []strategy.Signal {
		p := testPipeline(t)
		out := make([]strategy.Signal, 0, len(candles))
		for _, c := range candles {
			sig, _ := p.ProcessCandle(c)
			out = append(out, sig)
		}
		return out
	}

	a, b := run(), run()
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("run divergence at candle %d: %+v vs %+v", i, a[i], b[i])
		}
	}
}
