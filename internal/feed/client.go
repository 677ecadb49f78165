package feed

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"crypto-trade-bot-go/internal/config"
	"crypto-trade-bot-go/internal/models"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// PriceClient is the price-feed contract consumed by the engine.
type PriceClient interface {
	FetchPrices(ctx context.Context, symbols []string) ([]models.MarketData, error)
}

// Client fetches price samples over HTTP. Symbols missing from a
// response are served from a per-symbol last-good cache and marked
// stale, so a flaky feed degrades instead of stalling the tick.
type Client struct {
	client  *resty.Client
	logger  *zap.Logger
	limiter *rate.Limiter
	cache   map[string]models.MarketData
}

var _ PriceClient = (*Client)(nil)

// NewClient creates a price feed client.
func NewClient(cfg *config.Feed, logger *zap.Logger) *Client {
	client := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(time.Duration(cfg.TimeoutSeconds) * time.Second)

	return &Client{
		client:  client,
		logger:  logger,
		limiter: rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.RateLimitBurst),
		cache:   make(map[string]models.MarketData),
	}
}

// doRequest executes a request with rate limiting and retry on 429/5xx
// or transport errors.
func (c *Client) doRequest(ctx context.Context, method, url string, req *resty.Request) (*resty.Response, error) {
	var resp *resty.Response
	var err error
	const maxRetries = 3

	for i := 0; i < maxRetries; i++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter wait failed: %w", err)
		}

		resp, err = req.Execute(method, url)
		if err == nil && !resp.IsError() {
			return resp, nil
		}

		shouldRetry := false
		var retryAfter time.Duration

		if resp != nil && err == nil {
			statusCode := resp.StatusCode()
			if statusCode == http.StatusTooManyRequests {
				shouldRetry = true
				if seconds, err := strconv.Atoi(resp.Header().Get("Retry-After")); err == nil {
					retryAfter = time.Duration(seconds) * time.Second
				}
			} else if statusCode >= 500 {
				shouldRetry = true
			}
		} else {
			// Network or other client-side errors.
			shouldRetry = true
		}

		if !shouldRetry {
			return nil, fmt.Errorf("request failed with status %s: %s", resp.Status(), resp.String())
		}

		if retryAfter == 0 {
			// Exponential backoff: 1s, 2s, 4s.
			retryAfter = time.Duration(math.Pow(2, float64(i))) * time.Second
		}

		c.logger.Warn("Price feed request failed, retrying...",
			zap.Int("attempt", i+1),
			zap.Duration("retry_after", retryAfter),
			zap.Error(err),
		)

		select {
		case <-time.After(retryAfter):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	return nil, fmt.Errorf("request failed after %d attempts: %w", maxRetries, err)
}

// FetchPrices returns one sample per requested symbol. Symbols absent
// from the feed response fall back to the cached last-good sample; the
// call fails only when a symbol has never been seen at all.
func (c *Client) FetchPrices(ctx context.Context, symbols []string) ([]models.MarketData, error) {
	var fetched []models.MarketData

	req := c.client.R().
		SetContext(ctx).
		SetQueryParam("symbols", strings.Join(symbols, ",")).
		SetResult(&fetched).
		SetHeader("Content-Type", "application/json")

	resp, err := c.doRequest(ctx, "GET", "/prices", req)
	byToken := make(map[string]models.MarketData)
	if err != nil {
		c.logger.Warn("Price fetch failed, serving cached samples", zap.Error(err))
	} else {
		for _, md := range *resp.Result().(*[]models.MarketData) {
			byToken[md.Token] = md
			c.cache[md.Token] = md
		}
	}

	samples := make([]models.MarketData, 0, len(symbols))
	for _, sym := range symbols {
		if md, ok := byToken[sym]; ok {
			samples = append(samples, md)
			continue
		}
		if cached, ok := c.cache[sym]; ok {
			cached.Stale = true
			samples = append(samples, cached)
			c.logger.Warn("No fresh price for symbol, using cached value", zap.String("token", sym))
			continue
		}
		c.logger.Warn("No price available for symbol, skipping", zap.String("token", sym))
	}

	if len(samples) == 0 {
		return nil, fmt.Errorf("no price data available for any of %d symbols", len(symbols))
	}
	return samples, nil
}
