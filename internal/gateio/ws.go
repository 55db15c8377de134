package gateio

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"gatebotv1/internal/metrics"
	"gatebotv1/internal/model"
	"gatebotv1/internal/ringbuf"
)

const (
	// DefaultWSURL is the Gate.io spot WebSocket endpoint.
	DefaultWSURL = "wss://api.gateio.ws/ws/v4/"

	wsReadDeadline   = 60 * time.Second
	wsPingInterval   = 25 * time.Second
	wsReconnectPause = 5 * time.Second
)

// WSFeed subscribes to the spot.candlesticks channel for one pair/interval
// and pushes closed candles into a ring buffer drained by that pair's worker.
// Forming candles are ignored.
type WSFeed struct {
	url      string
	pair     string
	interval string
	ring     *ringbuf.Ring
	met      *metrics.Metrics // may be nil
	log      *slog.Logger
}

// NewWSFeed creates a candlestick feed. wsURL may be empty for the
// production endpoint.
func NewWSFeed(wsURL, pair, interval string, ring *ringbuf.Ring, met *metrics.Metrics, log *slog.Logger) *WSFeed {
	if wsURL == "" {
		wsURL = DefaultWSURL
	}
	return &WSFeed{
		url:      wsURL,
		pair:     pair,
		interval: interval,
		ring:     ring,
		met:      met,
		log:      log.With(slog.String("pair", pair), slog.String("feed", "ws")),
	}
}

// Start seeds the ring with warm-up history and then launches Run in a
// goroutine. Seeding completes before the reader starts, so the ring only
// ever has one producer and the worker drains the full history before any
// live candle.
func (f *WSFeed) Start(ctx context.Context, warm []model.Candle) {
	for _, c := range warm {
		if !f.ring.Push(c) {
			if f.met != nil {
				f.met.RingBufOverflow.Inc()
			}
			f.log.Warn("candle ring full during warmup",
				slog.Time("open_time", c.OpenTime))
		}
	}
	go f.Run(ctx)
}

// Run connects and reads until ctx is cancelled, reconnecting with a fixed
// pause on any connection failure.
func (f *WSFeed) Run(ctx context.Context) {
	for {
		if err := f.connectAndRead(ctx); err != nil {
			f.log.Warn("websocket session ended", slog.Any("err", err))
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(wsReconnectPause):
			if f.met != nil {
				f.met.WSReconnects.Inc()
			}
		}
	}
}

type wsEnvelope struct {
	Time    int64           `json:"time"`
	Channel string          `json:"channel"`
	Event   string          `json:"event"`
	Result  json.RawMessage `json:"result"`
}

type wsCandle struct {
	T string `json:"t"` // open time, unix seconds
	V string `json:"v"` // quote volume
	C string `json:"c"`
	H string `json:"h"`
	L string `json:"l"`
	O string `json:"o"`
	N string `json:"n"` // "<interval>_<pair>"
	A string `json:"a"` // base volume
	W bool   `json:"w"` // window closed
}

func (f *WSFeed) connectAndRead(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, f.url, nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", f.url, err)
	}
	defer conn.Close()

	sub := map[string]interface{}{
		"time":    time.Now().Unix(),
		"channel": "spot.candlesticks",
		"event":   "subscribe",
		"payload": []string{f.interval, f.pair},
	}
	if err := conn.WriteJSON(sub); err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}
	f.log.Info("subscribed to candlesticks", slog.String("interval", f.interval))

	conn.SetReadDeadline(time.Now().Add(wsReadDeadline))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(wsReadDeadline))
		return nil
	})

	// Ping loop keeps the connection alive; closing the conn unblocks the
	// reader when ctx is done.
	pingCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		ticker := time.NewTicker(wsPingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-pingCtx.Done():
				conn.Close()
				return
			case <-ticker.C:
				if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second)); err != nil {
					return
				}
			}
		}
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("read: %w", err)
		}
		conn.SetReadDeadline(time.Now().Add(wsReadDeadline))

		var env wsEnvelope
		if err := json.Unmarshal(data, &env); err != nil {
			f.log.Warn("undecodable frame", slog.Any("err", err))
			continue
		}
		if env.Channel != "spot.candlesticks" || env.Event != "update" {
			continue
		}

		candle, closed, err := f.parseUpdate(env.Result)
		if err != nil {
			f.log.Warn("bad candlestick update", slog.Any("err", err))
			continue
		}
		if !closed {
			continue
		}
		if !f.ring.Push(candle) {
			if f.met != nil {
				f.met.RingBufOverflow.Inc()
			}
			f.log.Warn("candle ring full, dropping candle",
				slog.Time("open_time", candle.OpenTime))
		}
	}
}

func (f *WSFeed) parseUpdate(raw json.RawMessage) (model.Candle, bool, error) {
	var wc wsCandle
	if err := json.Unmarshal(raw, &wc); err != nil {
		return model.Candle{}, false, err
	}

	// n is "<interval>_<pair>"; drop updates for other subscriptions on a
	// shared connection.
	if name := f.interval + "_" + f.pair; wc.N != name && !strings.HasPrefix(wc.N, name) {
		return model.Candle{}, false, nil
	}

	ts, err := strconv.ParseInt(wc.T, 10, 64)
	if err != nil {
		return model.Candle{}, false, fmt.Errorf("bad open time %q", wc.T)
	}

	parse := func(s string) (float64, error) {
		if s == "" {
			return 0, nil
		}
		return strconv.ParseFloat(s, 64)
	}

	var candle model.Candle
	candle.Pair = f.pair
	candle.Interval = f.interval
	candle.OpenTime = time.Unix(ts, 0).UTC()
	if candle.Open, err = parse(wc.O); err != nil {
		return model.Candle{}, false, err
	}
	if candle.High, err = parse(wc.H); err != nil {
		return model.Candle{}, false, err
	}
	if candle.Low, err = parse(wc.L); err != nil {
		return model.Candle{}, false, err
	}
	if candle.Close, err = parse(wc.C); err != nil {
		return model.Candle{}, false, err
	}
	if candle.Volume, err = parse(wc.A); err != nil {
		return model.Candle{}, false, err
	}
	return candle, wc.W, nil
}
