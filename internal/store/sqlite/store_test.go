package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"gatebotv1/internal/model"
	"gatebotv1/internal/strategy"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(Config{DBPath: filepath.Join(t.TempDir(), "test.db")}, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func candle(ts int64, close float64) model.Candle {
	return model.Candle{
		Pair:     "BTC_USDT",
		Interval: "1h",
		OpenTime: time.Unix(ts, 0).UTC(),
		Open:     close - 0.5,
		High:     close + 1,
		Low:      close - 1,
		Close:    close,
		Volume:   10,
	}
}

func TestStore_WriteReadCandles(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	in := []model.Candle{candle(7200, 102), candle(3600, 101), candle(10800, 103)}
	if err := s.WriteCandles(ctx, in); err != nil {
		t.Fatalf("WriteCandles: %v", err)
	}

	got, err := s.ReadCandles(ctx, "BTC_USDT", "1h", time.Unix(0, 0), time.Unix(20000, 0))
	if err != nil {
		t.Fatalf("ReadCandles: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("got %d candles, want 3", len(got))
	}
	// Ordered ascending regardless of insert order.
	for i, wantTS := range []int64{3600, 7200, 10800} {
		if got[i].OpenTime.Unix() != wantTS {
			t.Errorf("candle %d at %d, want %d", i, got[i].OpenTime.Unix(), wantTS)
		}
	}
	if got[0].Close != 101 || got[0].High != 102 || got[0].Low != 100 {
		t.Errorf("candle fields mismatch: %+v", got[0])
	}
}

func TestStore_WriteCandles_IdempotentOverlap(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	first := []model.Candle{candle(3600, 101), candle(7200, 102)}
	if err := s.WriteCandles(ctx, first); err != nil {
		t.Fatalf("WriteCandles: %v", err)
	}
	// Overlapping backfill: existing rows keep their original values.
	second := []model.Candle{candle(7200, 999), candle(10800, 103)}
	if err := s.WriteCandles(ctx, second); err != nil {
		t.Fatalf("WriteCandles overlap: %v", err)
	}

	got, err := s.ReadCandles(ctx, "BTC_USDT", "1h", time.Unix(0, 0), time.Unix(20000, 0))
	if err != nil {
		t.Fatalf("ReadCandles: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("got %d candles, want 3", len(got))
	}
	if got[1].Close != 102 {
		t.Errorf("overlapping write replaced existing row: close = %v, want 102", got[1].Close)
	}
}

func TestStore_ReadCandles_RangeClipped(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if err := s.WriteCandles(ctx, []model.Candle{candle(3600, 101), candle(7200, 102), candle(10800, 103)}); err != nil {
		t.Fatalf("WriteCandles: %v", err)
	}

	got, err := s.ReadCandles(ctx, "BTC_USDT", "1h", time.Unix(7200, 0), time.Unix(7200, 0))
	if err != nil {
		t.Fatalf("ReadCandles: %v", err)
	}
	if len(got) != 1 || got[0].OpenTime.Unix() != 7200 {
		t.Fatalf("range query returned %v", got)
	}
}

func TestStore_LastCandleTime(t *testing.T) {
	s := openTestStore(t)

	ts, err := s.LastCandleTime("BTC_USDT", "1h")
	if err != nil {
		t.Fatalf("LastCandleTime empty: %v", err)
	}
	if !ts.IsZero() {
		t.Errorf("empty table returned %v, want zero time", ts)
	}

	if err := s.WriteCandles(context.Background(), []model.Candle{candle(3600, 101), candle(10800, 103)}); err != nil {
		t.Fatalf("WriteCandles: %v", err)
	}
	ts, err = s.LastCandleTime("BTC_USDT", "1h")
	if err != nil {
		t.Fatalf("LastCandleTime: %v", err)
	}
	if ts.Unix() != 10800 {
		t.Errorf("last candle at %d, want 10800", ts.Unix())
	}
}

func TestStore_SignalJournal(t *testing.T) {
	s := openTestStore(t)

	sigs := []strategy.Signal{
		{Kind: strategy.Buy, Reason: "golden_cross", Price: 104, Time: time.Unix(3600, 0)},
		{Kind: strategy.Sell, Reason: "trailing_stop", Price: 107, Time: time.Unix(7200, 0)},
	}
	for _, sig := range sigs {
		if err := s.RecordSignal("BTC_USDT", sig); err != nil {
			t.Fatalf("RecordSignal: %v", err)
		}
	}

	entries, err := s.ReadSignals(context.Background(), "BTC_USDT", 10)
	if err != nil {
		t.Fatalf("ReadSignals: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("got %d entries, want 2", len(entries))
	}
	// Newest first.
	if entries[0].Kind != "SELL" || entries[0].Reason != "trailing_stop" || entries[0].Price != 107 {
		t.Errorf("entry 0 = %+v", entries[0])
	}
	if entries[1].Kind != "BUY" || entries[1].Reason != "golden_cross" {
		t.Errorf("entry 1 = %+v", entries[1])
	}

	other, err := s.ReadSignals(context.Background(), "ETH_USDT", 10)
	if err != nil {
		t.Fatalf("ReadSignals other pair: %v", err)
	}
	if len(other) != 0 {
		t.Errorf("other pair has %d entries, want 0", len(other))
	}
}
