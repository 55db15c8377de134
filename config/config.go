// Package config loads bot configuration from a TOML file with environment
// overrides for secrets.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"

	"gatebotv1/internal/indicator"
	"gatebotv1/internal/position"
	"gatebotv1/internal/strategy"
)

// ConfigError is a fatal configuration problem. The process refuses to start
// rather than trade with a half-valid setup.
type ConfigError struct {
	Field string
	Msg   string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Field, e.Msg)
}

// PairConfig selects one market to trade.
type PairConfig struct {
	Pair     string `toml:"pair"`     // e.g. "BTC_USDT"
	Interval string `toml:"interval"` // e.g. "1h"
}

// StrategyConfig holds indicator windows and signal gates.
type StrategyConfig struct {
	Name          string  `toml:"name"`
	ShortWindow   int     `toml:"short_window"`
	LongWindow    int     `toml:"long_window"`
	FilterWindow  int     `toml:"filter_window"`
	MACDFast      int     `toml:"macd_fast"`
	MACDSlow      int     `toml:"macd_slow"`
	MACDSignal    int     `toml:"macd_signal"`
	RSIWindow     int     `toml:"rsi_window"`
	RSIOverbought float64 `toml:"rsi_overbought"`
}

// RiskConfig holds the position state machine thresholds, all as fractions
// (0.02 means 2%).
type RiskConfig struct {
	StopLossPct         float64 `toml:"stop_loss_pct"`
	TrailingStopPct     float64 `toml:"trailing_stop_pct"`
	TrailingCallbackPct float64 `toml:"trailing_callback_pct"`
}

// GateioConfig holds exchange connectivity settings.
type GateioConfig struct {
	BaseURL         string `toml:"base_url"` // empty for production
	WSURL           string `toml:"ws_url"`
	UseWebsocket    bool   `toml:"use_websocket"`
	PollIntervalSec int    `toml:"poll_interval_sec"`
	FetchTimeoutSec int    `toml:"fetch_timeout_sec"`
	Lookback        int    `toml:"lookback"` // candles per poll; 0 for auto
}

// NotifyConfig holds alert delivery settings. The PushPlus token comes from
// the PUSHPLUS_TOKEN env var, never from the file.
type NotifyConfig struct {
	PushPlusEnabled bool   `toml:"pushplus_enabled"`
	WebhookURL      string `toml:"webhook_url"`
	QueueDepth      int    `toml:"queue_depth"`

	PushPlusToken string `toml:"-"`
}

// StoreConfig holds persistence settings.
type StoreConfig struct {
	SQLitePath   string `toml:"sqlite_path"`
	RedisEnabled bool   `toml:"redis_enabled"`
	RedisAddr    string `toml:"redis_addr"`
	RedisDB      int    `toml:"redis_db"`
	StreamMaxLen int64  `toml:"stream_max_len"`

	RedisPassword string `toml:"-"` // REDIS_PASSWORD env var
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level      string `toml:"level"`
	File       string `toml:"file"` // empty: stdout only
	MaxSizeMB  int    `toml:"max_size_mb"`
	MaxBackups int    `toml:"max_backups"`
	MaxAgeDays int    `toml:"max_age_days"`
}

// MetricsConfig holds the Prometheus/health listener address.
type MetricsConfig struct {
	Addr string `toml:"addr"`
}

// Config is the full bot configuration.
type Config struct {
	Pairs    []PairConfig   `toml:"pairs"`
	Strategy StrategyConfig `toml:"strategy"`
	Risk     RiskConfig     `toml:"risk"`
	Gateio   GateioConfig   `toml:"gateio"`
	Notify   NotifyConfig   `toml:"notify"`
	Store    StoreConfig    `toml:"store"`
	Log      LogConfig      `toml:"log"`
	Metrics  MetricsConfig  `toml:"metrics"`
}

// Load reads and validates the config file at path.
func Load(path string) (*Config, error) {
	cfg := defaults()
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, fmt.Errorf("config: decode %s: %w", path, err)
	}

	cfg.Notify.PushPlusToken = os.Getenv("PUSHPLUS_TOKEN")
	cfg.Store.RedisPassword = os.Getenv("REDIS_PASSWORD")

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func defaults() *Config {
	return &Config{
		Strategy: StrategyConfig{
			Name:          strategy.CrossoverName,
			ShortWindow:   12,
			LongWindow:    26,
			FilterWindow:  100,
			MACDFast:      12,
			MACDSlow:      26,
			MACDSignal:    9,
			RSIWindow:     14,
			RSIOverbought: 70,
		},
		Risk: RiskConfig{
			StopLossPct:         0.05,
			TrailingStopPct:     0.04,
			TrailingCallbackPct: 0.02,
		},
		Gateio: GateioConfig{
			PollIntervalSec: 60,
			FetchTimeoutSec: 10,
		},
		Notify: NotifyConfig{
			QueueDepth: 64,
		},
		Store: StoreConfig{
			SQLitePath:   "data/gatebot.db",
			RedisAddr:    "localhost:6379",
			StreamMaxLen: 10000,
		},
		Log: LogConfig{
			Level:      "info",
			MaxSizeMB:  50,
			MaxBackups: 5,
			MaxAgeDays: 30,
		},
		Metrics: MetricsConfig{
			Addr: ":9090",
		},
	}
}

// Validate checks the configuration for fatal problems.
func (c *Config) Validate() error {
	if len(c.Pairs) == 0 {
		return &ConfigError{"pairs", "at least one trading pair is required"}
	}
	seen := map[string]bool{}
	for i, p := range c.Pairs {
		if p.Pair == "" {
			return &ConfigError{fmt.Sprintf("pairs[%d].pair", i), "must not be empty"}
		}
		if p.Interval == "" {
			return &ConfigError{fmt.Sprintf("pairs[%d].interval", i), "must not be empty"}
		}
		if seen[p.Pair] {
			return &ConfigError{fmt.Sprintf("pairs[%d].pair", i), "duplicate pair " + p.Pair}
		}
		seen[p.Pair] = true
	}

	s := c.Strategy
	if _, err := strategy.New(s.Name, strategy.Params{RSIOverbought: s.RSIOverbought}); err != nil {
		return &ConfigError{"strategy.name", err.Error()}
	}
	for field, v := range map[string]int{
		"strategy.short_window":  s.ShortWindow,
		"strategy.long_window":   s.LongWindow,
		"strategy.filter_window": s.FilterWindow,
		"strategy.macd_fast":     s.MACDFast,
		"strategy.macd_slow":     s.MACDSlow,
		"strategy.macd_signal":   s.MACDSignal,
		"strategy.rsi_window":    s.RSIWindow,
	} {
		if v <= 0 {
			return &ConfigError{field, "must be positive"}
		}
	}
	if s.ShortWindow >= s.LongWindow {
		return &ConfigError{"strategy.short_window", "must be smaller than long_window"}
	}
	if s.MACDFast >= s.MACDSlow {
		return &ConfigError{"strategy.macd_fast", "must be smaller than macd_slow"}
	}
	if s.RSIOverbought <= 0 || s.RSIOverbought > 100 {
		return &ConfigError{"strategy.rsi_overbought", "must be in (0, 100]"}
	}

	for field, v := range map[string]float64{
		"risk.stop_loss_pct":         c.Risk.StopLossPct,
		"risk.trailing_stop_pct":     c.Risk.TrailingStopPct,
		"risk.trailing_callback_pct": c.Risk.TrailingCallbackPct,
	} {
		if v < 0 || v >= 1 {
			return &ConfigError{field, "must be a fraction in [0, 1)"}
		}
	}

	if c.Gateio.PollIntervalSec <= 0 {
		return &ConfigError{"gateio.poll_interval_sec", "must be positive"}
	}
	if c.Gateio.FetchTimeoutSec <= 0 {
		return &ConfigError{"gateio.fetch_timeout_sec", "must be positive"}
	}
	if c.Notify.PushPlusEnabled && c.Notify.PushPlusToken == "" {
		return &ConfigError{"notify.pushplus_enabled", "PUSHPLUS_TOKEN env var not set"}
	}
	return nil
}

// IndicatorParams maps the strategy section onto indicator windows.
func (c *Config) IndicatorParams() indicator.Params {
	return indicator.Params{
		ShortWindow:  c.Strategy.ShortWindow,
		LongWindow:   c.Strategy.LongWindow,
		FilterWindow: c.Strategy.FilterWindow,
		MACDFast:     c.Strategy.MACDFast,
		MACDSlow:     c.Strategy.MACDSlow,
		MACDSignal:   c.Strategy.MACDSignal,
		RSIWindow:    c.Strategy.RSIWindow,
	}
}

// StrategyParams maps the strategy section onto signal-gate parameters.
func (c *Config) StrategyParams() strategy.Params {
	return strategy.Params{RSIOverbought: c.Strategy.RSIOverbought}
}

// PositionConfig maps the risk section onto the position state machine.
func (c *Config) PositionConfig() position.Config {
	return position.Config{
		StopLossPct:         c.Risk.StopLossPct,
		TrailingStopPct:     c.Risk.TrailingStopPct,
		TrailingCallbackPct: c.Risk.TrailingCallbackPct,
	}
}

// PollInterval returns the live polling cadence.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Gateio.PollIntervalSec) * time.Second
}

// FetchTimeout returns the per-request fetch deadline.
func (c *Config) FetchTimeout() time.Duration {
	return time.Duration(c.Gateio.FetchTimeoutSec) * time.Second
}
