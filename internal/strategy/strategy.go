// Package strategy turns indicator snapshots into raw trading signals.
//
// A Strategy looks at the current and previous indicator snapshot (the
// one-snapshot lookback is kept by the caller, not the strategy) and emits a
// raw BUY/SELL/WAIT signal. Risk handling happens downstream in the position
// manager; strategies never track position state.
package strategy

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"gatebotv1/internal/indicator"
)

// Kind is a trading signal kind.
type Kind string

const (
	Buy  Kind = "BUY"
	Sell Kind = "SELL"
	Wait Kind = "WAIT"
)

// Signal represents one per-tick trading decision. Value object: produced
// once per candle, not retained.
type Signal struct {
	Kind   Kind      `json:"kind"`
	Reason string    `json:"reason"`
	Price  float64   `json:"price"`
	Time   time.Time `json:"time"`
}

// Strategy is the interface all signal generators implement.
type Strategy interface {
	// Name returns the unique name of the strategy.
	Name() string

	// Evaluate fuses the previous and current indicator snapshot into a raw
	// signal. Any required indicator being undefined yields WAIT.
	Evaluate(prev, curr indicator.Snapshot) Signal
}

// Params carries strategy tuning shared by all built-in strategies.
type Params struct {
	RSIOverbought float64
}

// Factory constructs a strategy from its params.
type Factory func(p Params) Strategy

var (
	registryMu sync.RWMutex
	registry   = make(map[string]Factory)
)

// Register adds a strategy factory under a key. Strategies register themselves
// in init(); callers select by key, never by reflection.
func Register(name string, f Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	if _, dup := registry[name]; dup {
		panic("strategy: duplicate registration for " + name)
	}
	registry[name] = f
}

// New constructs the strategy registered under name.
func New(name string, p Params) (Strategy, error) {
	registryMu.RLock()
	f, ok := registry[name]
	registryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("strategy: unknown strategy %q (known: %v)", name, Names())
	}
	return f(p), nil
}

// Names returns the sorted list of registered strategy keys.
func Names() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(registry))
	for n := range registry {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func wait(reason string, s indicator.Snapshot) Signal {
	return Signal{Kind: Wait, Reason: reason, Price: s.Close, Time: s.Time}
}
