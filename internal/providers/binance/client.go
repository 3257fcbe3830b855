// Package binance provides the market-data clients used to backfill the
// candle store and stream live ticks.
package binance

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/pairscan/pairscan/internal/models"
)

const defaultBaseURL = "https://api.binance.com"

// Client is a rate-limited Binance spot REST client. All requests pass
// through a circuit breaker so a degraded exchange API fails fast
// instead of queueing behind the limiter.
type Client struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	breaker    *gobreaker.CircuitBreaker
	logger     zerolog.Logger
}

// NewClient creates a client against the public spot API. The limiter
// stays well under Binance's request-weight budget.
func NewClient() *Client {
	logger := log.With().Str("component", "binance").Logger()

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "binance-http",
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("circuit breaker state changed")
		},
	})

	return &Client{
		baseURL:    defaultBaseURL,
		httpClient: &http.Client{Timeout: 15 * time.Second},
		limiter:    rate.NewLimiter(rate.Limit(15), 30),
		breaker:    breaker,
		logger:     logger,
	}
}

// rawKline is one /api/v3/klines entry: a mixed array of numbers and
// numeric strings.
type rawKline []json.RawMessage

// FetchCandles returns up to limit closed candles ending at endTime
// (epoch ms, 0 for latest), ascending.
func (c *Client) FetchCandles(ctx context.Context, symbol string, timeframe models.Timeframe, limit int, endTime int64) ([]models.Candle, error) {
	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("interval", string(timeframe))
	params.Set("limit", strconv.Itoa(limit))
	if endTime > 0 {
		params.Set("endTime", strconv.FormatInt(endTime, 10))
	}

	body, err := c.get(ctx, "/api/v3/klines", params)
	if err != nil {
		return nil, fmt.Errorf("fetch klines %s: %w", symbol, err)
	}

	var raw []rawKline
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("parse klines %s: %w", symbol, err)
	}

	candles := make([]models.Candle, 0, len(raw))
	for _, k := range raw {
		candle, err := parseKline(k)
		if err != nil {
			return nil, fmt.Errorf("parse kline %s: %w", symbol, err)
		}
		candles = append(candles, candle)
	}
	return candles, nil
}

func parseKline(k rawKline) (models.Candle, error) {
	if len(k) < 8 {
		return models.Candle{}, fmt.Errorf("kline has %d fields", len(k))
	}

	var candle models.Candle
	fields := []struct {
		index int
		num   *int64
		str   *float64
	}{
		{0, &candle.OpenTime, nil},
		{1, nil, &candle.Open},
		{2, nil, &candle.High},
		{3, nil, &candle.Low},
		{4, nil, &candle.Close},
		{5, nil, &candle.Volume},
		{6, &candle.CloseTime, nil},
		{7, nil, &candle.QuoteVolume},
	}
	for _, f := range fields {
		if f.num != nil {
			if err := json.Unmarshal(k[f.index], f.num); err != nil {
				return models.Candle{}, err
			}
			continue
		}
		var s string
		if err := json.Unmarshal(k[f.index], &s); err != nil {
			return models.Candle{}, err
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return models.Candle{}, err
		}
		*f.str = v
	}
	return candle, nil
}

type exchangeInfoResponse struct {
	Symbols []struct {
		Symbol     string `json:"symbol"`
		BaseAsset  string `json:"baseAsset"`
		QuoteAsset string `json:"quoteAsset"`
		Status     string `json:"status"`
	} `json:"symbols"`
}

// FetchExchangeInfo returns the tradable spot assets.
func (c *Client) FetchExchangeInfo(ctx context.Context) ([]models.Asset, error) {
	body, err := c.get(ctx, "/api/v3/exchangeInfo", nil)
	if err != nil {
		return nil, fmt.Errorf("fetch exchange info: %w", err)
	}

	var info exchangeInfoResponse
	if err := json.Unmarshal(body, &info); err != nil {
		return nil, fmt.Errorf("parse exchange info: %w", err)
	}

	assets := make([]models.Asset, 0, len(info.Symbols))
	for _, s := range info.Symbols {
		if s.Status != "TRADING" {
			continue
		}
		assets = append(assets, models.Asset{
			Symbol:     s.Symbol,
			BaseAsset:  s.BaseAsset,
			QuoteAsset: s.QuoteAsset,
			Status:     s.Status,
		})
	}
	return assets, nil
}

func (c *Client) get(ctx context.Context, path string, params url.Values) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	result, err := c.breaker.Execute(func() (interface{}, error) {
		endpoint := c.baseURL + path
		if len(params) > 0 {
			endpoint += "?" + params.Encode()
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return nil, err
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, body)
		}
		return body, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]byte), nil
}
