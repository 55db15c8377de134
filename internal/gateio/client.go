// Package gateio provides market-data access to the Gate.io spot API:
// a REST client for candlestick polling and backfill, and a WebSocket feed
// for streaming closed candles.
//
// Only public endpoints are used — order placement is out of scope, and
// candlestick data needs no authentication.
package gateio

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"time"

	"gatebotv1/internal/model"
)

const (
	// DefaultBaseURL is the Gate.io spot REST endpoint.
	DefaultBaseURL = "https://api.gateio.ws/api/v4"

	// maxCandlesPerRequest is the API's per-request candle cap.
	maxCandlesPerRequest = 1000

	// paginationPause keeps historical backfill under the public rate limit.
	paginationPause = 200 * time.Millisecond
)

// ErrDataFetch marks recoverable candle-retrieval failures (network,
// rate-limit, malformed payload). Callers skip the tick and retry on the
// next scheduled interval.
var ErrDataFetch = errors.New("gateio: data fetch failed")

// Client is a Gate.io spot REST client.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a client. baseURL may be empty for the production API;
// timeout bounds each HTTP request.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
	}
}

// Candles fetches up to limit most recent candlesticks for a pair/interval,
// ordered oldest→newest. Unfinished (still forming) candles are dropped.
func (c *Client) Candles(ctx context.Context, pair, interval string, limit int) ([]model.Candle, error) {
	if limit <= 0 || limit > maxCandlesPerRequest {
		limit = maxCandlesPerRequest
	}
	q := url.Values{}
	q.Set("currency_pair", pair)
	q.Set("interval", interval)
	q.Set("limit", strconv.Itoa(limit))
	return c.fetch(ctx, pair, interval, q)
}

// HistoricalCandles fetches all finished candles in [from, to], paginating
// backward through the API's per-request cap. Results are deduplicated,
// sorted oldest→newest, and clipped to the requested range.
func (c *Client) HistoricalCandles(ctx context.Context, pair, interval string, from, to time.Time) ([]model.Candle, error) {
	seen := make(map[int64]struct{})
	var all []model.Candle

	end := to.Unix()
	for {
		q := url.Values{}
		q.Set("currency_pair", pair)
		q.Set("interval", interval)
		q.Set("to", strconv.FormatInt(end, 10))
		q.Set("limit", strconv.Itoa(maxCandlesPerRequest))

		batch, err := c.fetch(ctx, pair, interval, q)
		if err != nil {
			return nil, err
		}
		if len(batch) == 0 {
			break
		}

		for _, candle := range batch {
			ts := candle.OpenTime.Unix()
			if _, dup := seen[ts]; dup {
				continue
			}
			seen[ts] = struct{}{}
			all = append(all, candle)
		}

		first := batch[0].OpenTime.Unix()
		if first <= from.Unix() || len(batch) < maxCandlesPerRequest {
			break
		}
		end = first - 1 // step back one second to avoid overlap

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %v", ErrDataFetch, ctx.Err())
		case <-time.After(paginationPause):
		}
	}

	sort.Slice(all, func(i, j int) bool { return all[i].OpenTime.Before(all[j].OpenTime) })

	clipped := all[:0]
	for _, candle := range all {
		if candle.OpenTime.Before(from) || candle.OpenTime.After(to) {
			continue
		}
		clipped = append(clipped, candle)
	}
	return clipped, nil
}

func (c *Client) fetch(ctx context.Context, pair, interval string, q url.Values) ([]model.Candle, error) {
	reqURL := c.baseURL + "/spot/candlesticks?" + q.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %v", ErrDataFetch, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDataFetch, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: list candlesticks %s: status %d", ErrDataFetch, pair, resp.StatusCode)
	}

	// Each row: [timestamp, quote_volume, close, high, low, open, base_volume, is_finished]
	var rows [][]string
	if err := json.NewDecoder(resp.Body).Decode(&rows); err != nil {
		return nil, fmt.Errorf("%w: decode candlesticks %s: %v", ErrDataFetch, pair, err)
	}

	candles := make([]model.Candle, 0, len(rows))
	for _, row := range rows {
		candle, finished, err := parseRow(row, pair, interval)
		if err != nil {
			return nil, err
		}
		if !finished {
			continue // forming candle, never enters the pipeline
		}
		candles = append(candles, candle)
	}

	sort.Slice(candles, func(i, j int) bool { return candles[i].OpenTime.Before(candles[j].OpenTime) })
	return candles, nil
}

func parseRow(row []string, pair, interval string) (model.Candle, bool, error) {
	if len(row) < 8 {
		return model.Candle{}, false, fmt.Errorf("%w: candlestick row has %d fields, want 8", ErrDataFetch, len(row))
	}

	ts, err := strconv.ParseInt(row[0], 10, 64)
	if err != nil {
		return model.Candle{}, false, fmt.Errorf("%w: bad timestamp %q", ErrDataFetch, row[0])
	}

	var prices [5]float64 // close, high, low, open, base_volume
	for i, idx := range []int{2, 3, 4, 5, 6} {
		v, err := strconv.ParseFloat(row[idx], 64)
		if err != nil {
			return model.Candle{}, false, fmt.Errorf("%w: bad numeric field %q", ErrDataFetch, row[idx])
		}
		prices[i] = v
	}

	candle := model.Candle{
		Pair:     pair,
		Interval: interval,
		OpenTime: time.Unix(ts, 0).UTC(),
		Close:    prices[0],
		High:     prices[1],
		Low:      prices[2],
		Open:     prices[3],
		Volume:   prices[4],
	}
	return candle, row[7] == "true", nil
}
