package quoteapi

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"exitSentinel/internal/domain"
	"exitSentinel/internal/indicators"
	"exitSentinel/internal/ports"

	"github.com/go-resty/resty/v2"
)

const (
	defaultBaseURL = "https://api.binance.com"

	snapshotKlineLimit    = 40
	snapshotKlineInterval = "1h"
	smaPeriod             = 20
	atrPeriod             = 14
)

// Client implements ports.MarketDataSource against a Binance-spot-compatible
// REST quote API. It is the fallback source in the provider chain: a plain
// unauthenticated HTTP API that stays reachable when the futures endpoint (or
// its credentials) misbehave. Technical fields are filled opportunistically
// from the klines endpoint and left absent when that call fails.
type Client struct {
	http   *resty.Client
	logger ports.Logger
	sma    *indicators.MovingAverage
	atr    *indicators.ATR
}

// Config holds configuration for the fallback quote API adapter.
type Config struct {
	BaseURL string        // Defaults to the Binance spot API
	Timeout time.Duration // Per-request HTTP timeout
	Logger  ports.Logger
}

// New creates a new fallback quote API client.
func New(cfg Config) (*Client, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for quote API client")
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	httpClient := resty.New()
	httpClient.SetBaseURL(baseURL)
	httpClient.SetTimeout(timeout)

	cfg.Logger.Info(context.Background(), "Quote API client configured", map[string]interface{}{"baseURL": baseURL})

	return &Client{
		http:   httpClient,
		logger: cfg.Logger,
		sma: indicators.NewMovingAverage(indicators.MovingAverageConfig{
			IndicatorConfig: indicators.IndicatorConfig{Period: smaPeriod},
			Type:            indicators.SimpleMovingAverage,
		}),
		atr: indicators.NewATR(indicators.ATRConfig{
			IndicatorConfig: indicators.IndicatorConfig{Period: atrPeriod},
		}),
	}, nil
}

// Name identifies this source in logs and availability reports.
func (c *Client) Name() string { return "quoteapi" }

// tickerResponse mirrors GET /api/v3/ticker/price.
type tickerResponse struct {
	Symbol string `json:"symbol"`
	Price  string `json:"price"`
}

// GetPrice retrieves the last traded price for a symbol.
func (c *Client) GetPrice(ctx context.Context, symbol string) (float64, error) {
	var ticker tickerResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("symbol", symbol).
		SetResult(&ticker).
		Get("/api/v3/ticker/price")
	if err != nil {
		return 0, c.requestError(ctx, err, "GetPrice", symbol)
	}
	if resp.StatusCode() == http.StatusBadRequest || resp.StatusCode() == http.StatusNotFound {
		return 0, fmt.Errorf("ticker lookup for %s returned %d: %w", symbol, resp.StatusCode(), ports.ErrSymbolNotFound)
	}
	if resp.IsError() {
		return 0, fmt.Errorf("ticker lookup for %s returned %d: %w", symbol, resp.StatusCode(), ports.ErrSourceUnavailable)
	}

	price, err := strconv.ParseFloat(ticker.Price, 64)
	if err != nil {
		return 0, fmt.Errorf("could not parse price '%s' for %s: %w: %w", ticker.Price, symbol, ports.ErrMalformedResponse, err)
	}
	if price <= 0 {
		return 0, fmt.Errorf("non-positive price %.8f for %s: %w", price, symbol, ports.ErrMalformedResponse)
	}
	return price, nil
}

// GetSnapshot retrieves the current price and, when the klines endpoint
// cooperates, the derived technicals. Kline failures degrade to a price-only
// snapshot.
func (c *Client) GetSnapshot(ctx context.Context, symbol string) (*domain.MarketSnapshot, error) {
	price, err := c.GetPrice(ctx, symbol)
	if err != nil {
		return nil, err
	}

	snap := &domain.MarketSnapshot{
		Symbol:       symbol,
		CurrentPrice: price,
		Source:       domain.SourceFallback,
		Timestamp:    time.Now().UTC(),
	}

	klines, err := c.getKlines(ctx, symbol, snapshotKlineInterval, snapshotKlineLimit)
	if err != nil {
		c.logger.Warn(ctx, "Klines unavailable from fallback source, returning price-only snapshot",
			map[string]interface{}{"symbol": symbol, "error": err.Error()})
		return snap, nil
	}

	if sma, err := c.sma.Calculate(ctx, klines); err == nil {
		snap.SMA20 = domain.Float64Ptr(sma)
	}
	if atr, err := c.atr.Calculate(ctx, klines); err == nil && price > 0 {
		snap.Volatility = domain.Float64Ptr(atr / price)
	}
	if n := len(klines); n > 0 {
		snap.Volume = domain.Float64Ptr(klines[n-1].Volume)
	}

	return snap, nil
}

// getKlines fetches candlesticks from GET /api/v3/klines. The spot API
// returns each kline as a JSON array of mixed numbers and strings.
func (c *Client) getKlines(ctx context.Context, symbol, interval string, limit int) ([]*domain.Kline, error) {
	var raw [][]interface{}
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"symbol":   symbol,
			"interval": interval,
			"limit":    strconv.Itoa(limit),
		}).
		SetResult(&raw).
		Get("/api/v3/klines")
	if err != nil {
		return nil, c.requestError(ctx, err, "getKlines", symbol)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("klines lookup for %s returned %d: %w", symbol, resp.StatusCode(), ports.ErrSourceUnavailable)
	}

	klines := make([]*domain.Kline, 0, len(raw))
	for _, row := range raw {
		k, err := translateSpotKline(row, symbol, interval)
		if err != nil {
			return nil, fmt.Errorf("failed to translate kline: %w: %w", ports.ErrMalformedResponse, err)
		}
		klines = append(klines, k)
	}
	return klines, nil
}

// Ping checks connectivity via GET /api/v3/ping.
func (c *Client) Ping(ctx context.Context) error {
	resp, err := c.http.R().SetContext(ctx).Get("/api/v3/ping")
	if err != nil {
		return c.requestError(ctx, err, "Ping", "")
	}
	if resp.IsError() {
		return fmt.Errorf("ping returned %d: %w", resp.StatusCode(), ports.ErrSourceUnavailable)
	}
	c.logger.Debug(ctx, "Ping successful", map[string]interface{}{"source": c.Name()})
	return nil
}

// requestError classifies transport-level failures into standard ports errors.
func (c *Client) requestError(ctx context.Context, err error, operation, symbol string) error {
	fields := map[string]interface{}{"operation": operation, "symbol": symbol, "originalError": err.Error()}
	c.logger.Error(ctx, err, fmt.Sprintf("%s failed", operation), fields)

	if ctx.Err() == context.DeadlineExceeded {
		return fmt.Errorf("%s failed: %w: %w", operation, ports.ErrTimeout, err)
	}
	if ctx.Err() == context.Canceled {
		return fmt.Errorf("%s canceled: %w: %w", operation, ports.ErrContextCanceled, err)
	}
	return fmt.Errorf("%s failed: %w: %w", operation, ports.ErrConnectionFailed, err)
}

// translateSpotKline converts one /api/v3/klines row into a domain kline.
// Row layout: [openTime, open, high, low, close, volume, closeTime, ...].
func translateSpotKline(row []interface{}, symbol, interval string) (*domain.Kline, error) {
	if len(row) < 7 {
		return nil, fmt.Errorf("kline row has %d fields, want at least 7", len(row))
	}

	openTime, ok := row[0].(float64)
	if !ok {
		return nil, fmt.Errorf("open time %v is not a number", row[0])
	}
	closeTime, ok := row[6].(float64)
	if !ok {
		return nil, fmt.Errorf("close time %v is not a number", row[6])
	}

	prices := make([]float64, 5) // open, high, low, close, volume
	for i := 0; i < 5; i++ {
		s, ok := row[i+1].(string)
		if !ok {
			return nil, fmt.Errorf("kline field %d (%v) is not a string", i+1, row[i+1])
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, fmt.Errorf("parsing kline field %d '%s': %w", i+1, s, err)
		}
		prices[i] = v
	}

	return &domain.Kline{
		OpenTime:  time.UnixMilli(int64(openTime)),
		CloseTime: time.UnixMilli(int64(closeTime)),
		Symbol:    symbol,
		Interval:  interval,
		Open:      prices[0],
		High:      prices[1],
		Low:       prices[2],
		Close:     prices[3],
		Volume:    prices[4],
		IsFinal:   true,
	}, nil
}
