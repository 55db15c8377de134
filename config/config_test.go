package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const validTOML = `
[[pairs]]
pair = "BTC_USDT"
interval = "1h"

[[pairs]]
pair = "ETH_USDT"
interval = "4h"

[strategy]
short_window = 5
long_window = 20
rsi_overbought = 75

[risk]
stop_loss_pct = 0.03

[gateio]
poll_interval_sec = 30

[store]
sqlite_path = "/tmp/test.db"
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "gatebot.toml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad_DefaultsAndOverrides(t *testing.T) {
	cfg, err := Load(writeConfig(t, validTOML))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if len(cfg.Pairs) != 2 || cfg.Pairs[0].Pair != "BTC_USDT" || cfg.Pairs[1].Interval != "4h" {
		t.Errorf("pairs = %+v", cfg.Pairs)
	}

	// File values win over defaults.
	if cfg.Strategy.ShortWindow != 5 || cfg.Strategy.LongWindow != 20 {
		t.Errorf("windows = %d/%d", cfg.Strategy.ShortWindow, cfg.Strategy.LongWindow)
	}
	if cfg.Risk.StopLossPct != 0.03 {
		t.Errorf("stop_loss_pct = %v", cfg.Risk.StopLossPct)
	}
	if cfg.Gateio.PollIntervalSec != 30 {
		t.Errorf("poll_interval_sec = %v", cfg.Gateio.PollIntervalSec)
	}

	// Unset values keep defaults.
	if cfg.Strategy.RSIWindow != 14 {
		t.Errorf("rsi_window default = %v, want 14", cfg.Strategy.RSIWindow)
	}
	if cfg.Risk.TrailingStopPct != 0.04 {
		t.Errorf("trailing_stop_pct default = %v, want 0.04", cfg.Risk.TrailingStopPct)
	}
	if cfg.Metrics.Addr != ":9090" {
		t.Errorf("metrics addr default = %q", cfg.Metrics.Addr)
	}
	if cfg.Log.Level != "info" {
		t.Errorf("log level default = %q", cfg.Log.Level)
	}
}

func TestLoad_SecretsFromEnv(t *testing.T) {
	t.Setenv("PUSHPLUS_TOKEN", "tok-from-env")
	t.Setenv("REDIS_PASSWORD", "hunter2")

	cfg, err := Load(writeConfig(t, validTOML+"\n[notify]\npushplus_enabled = true\n"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Notify.PushPlusToken != "tok-from-env" {
		t.Errorf("token = %q", cfg.Notify.PushPlusToken)
	}
	if cfg.Store.RedisPassword != "hunter2" {
		t.Errorf("redis password = %q", cfg.Store.RedisPassword)
	}
}

func TestLoad_ValidationFailures(t *testing.T) {
	t.Setenv("PUSHPLUS_TOKEN", "")

	const pairsOnly = "[[pairs]]\npair = \"BTC_USDT\"\ninterval = \"1h\"\n"

	cases := []struct {
		name  string
		body  string
		field string
	}{
		{
			"no pairs",
			"[strategy]\nshort_window = 5\n",
			"pairs",
		},
		{
			"empty interval",
			"[[pairs]]\npair = \"BTC_USDT\"\n",
			"pairs[0].interval",
		},
		{
			"duplicate pair",
			pairsOnly + "[[pairs]]\npair = \"BTC_USDT\"\ninterval = \"4h\"\n",
			"pairs[1].pair",
		},
		{
			"short not below long",
			pairsOnly + "[strategy]\nshort_window = 30\nlong_window = 20\n",
			"strategy.short_window",
		},
		{
			"negative stop loss",
			pairsOnly + "[risk]\nstop_loss_pct = -0.1\n",
			"risk.stop_loss_pct",
		},
		{
			"stop loss not a fraction",
			pairsOnly + "[risk]\nstop_loss_pct = 5.0\n",
			"risk.stop_loss_pct",
		},
		{
			"unknown strategy",
			pairsOnly + "[strategy]\nname = \"nope\"\n",
			"strategy.name",
		},
		{
			"zero macd fast",
			pairsOnly + "[strategy]\nmacd_fast = 0\n",
			"strategy.macd_fast",
		},
		{
			"zero poll interval",
			pairsOnly + "[gateio]\npoll_interval_sec = 0\n",
			"gateio.poll_interval_sec",
		},
		{
			"pushplus without token",
			pairsOnly + "[notify]\npushplus_enabled = true\n",
			"notify.pushplus_enabled",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tc.body))
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tc.field) {
				t.Errorf("error %q does not name field %q", err, tc.field)
			}
		})
	}
}

func TestConfig_Mappings(t *testing.T) {
	cfg, err := Load(writeConfig(t, validTOML))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	params := cfg.IndicatorParams()
	if params.ShortWindow != 5 || params.LongWindow != 20 || params.RSIWindow != 14 {
		t.Errorf("indicator params = %+v", params)
	}
	if got := cfg.StrategyParams().RSIOverbought; got != 75 {
		t.Errorf("rsi_overbought = %v", got)
	}
	pos := cfg.PositionConfig()
	if pos.StopLossPct != 0.03 || pos.TrailingStopPct != 0.04 {
		t.Errorf("position config = %+v", pos)
	}
	if cfg.PollInterval().Seconds() != 30 {
		t.Errorf("poll interval = %v", cfg.PollInterval())
	}
}
