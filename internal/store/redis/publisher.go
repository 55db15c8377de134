// Package redis publishes emitted signals to Redis streams so downstream
// consumers (dashboards, execution services) can tail them.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	goredis "github.com/go-redis/redis/v8"

	"gatebotv1/internal/metrics"
	"gatebotv1/internal/strategy"
)

const (
	defaultStreamMaxLen = 10000
	latestTTL           = 30 * time.Minute
)

// Config configures the Redis publisher.
type Config struct {
	Addr         string // e.g. "localhost:6379"
	Password     string
	DB           int
	StreamMaxLen int64 // approximate per-pair stream cap; 0 for default
}

// Publisher writes signals to per-pair Redis streams, guarded by a circuit
// breaker so a Redis outage cannot stall the trading loop.
type Publisher struct {
	client *goredis.Client
	cb     *CircuitBreaker
	maxLen int64
	met    *metrics.Metrics // may be nil
}

// Client returns the underlying Redis client for health checks.
func (p *Publisher) Client() *goredis.Client { return p.client }

// New connects to Redis and pings the server. met may be nil.
func New(cfg Config, met *metrics.Metrics) (*Publisher, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	maxLen := cfg.StreamMaxLen
	if maxLen <= 0 {
		maxLen = defaultStreamMaxLen
	}

	cb := NewCircuitBreaker(5, 10*time.Second)
	cb.OnStateChange = func(from, to State) {
		log.Printf("[redis] circuit breaker %s -> %s", from, to)
	}

	log.Printf("[redis] connected to %s", cfg.Addr)
	return &Publisher{client: client, cb: cb, maxLen: maxLen, met: met}, nil
}

// signalPayload is the wire form of a published signal.
type signalPayload struct {
	Pair   string  `json:"pair"`
	Kind   string  `json:"kind"`
	Reason string  `json:"reason"`
	Price  float64 `json:"price"`
	Time   int64   `json:"ts"`
}

func encodeSignal(pair string, sig strategy.Signal) (string, error) {
	data, err := json.Marshal(signalPayload{
		Pair:   pair,
		Kind:   string(sig.Kind),
		Reason: sig.Reason,
		Price:  sig.Price,
		Time:   sig.Time.Unix(),
	})
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// Publish appends the signal to the pair's stream, refreshes the latest-value
// key, and fans out over pub/sub, all in one pipeline.
func (p *Publisher) Publish(ctx context.Context, pair string, sig strategy.Signal) error {
	payload, err := encodeSignal(pair, sig)
	if err != nil {
		return fmt.Errorf("redis encode signal: %w", err)
	}

	start := time.Now()
	err = p.cb.Execute(func() error {
		pipe := p.client.Pipeline()
		pipe.XAdd(ctx, &goredis.XAddArgs{
			Stream: "signals:" + pair,
			MaxLen: p.maxLen,
			Approx: true,
			Values: map[string]interface{}{"data": payload},
		})
		pipe.Set(ctx, "signal:latest:"+pair, payload, latestTTL)
		pipe.Publish(ctx, "pub:signal:"+pair, payload)
		_, err := pipe.Exec(ctx)
		return err
	})
	if err != nil {
		return fmt.Errorf("redis publish signal: %w", err)
	}
	if p.met != nil {
		p.met.RedisPublishDur.Observe(time.Since(start).Seconds())
	}
	return nil
}

// Close closes the Redis connection.
func (p *Publisher) Close() error {
	return p.client.Close()
}
