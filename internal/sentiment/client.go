package sentiment

import (
	"context"
	"time"

	"crypto-trade-bot-go/internal/config"
	"crypto-trade-bot-go/internal/models"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// Provider is the sentiment-feed contract consumed by the engine.
type Provider interface {
	Get(ctx context.Context, symbol string) models.Sentiment
}

type cachedLabel struct {
	label     models.Sentiment
	fetchedAt time.Time
}

// Client fetches a bullish/bearish/neutral label per symbol from a news
// sentiment service and caches it on a multi-minute horizon. Any
// failure degrades to neutral; sentiment is advisory and never blocks a
// tick.
type Client struct {
	client  *resty.Client
	logger  *zap.Logger
	ttl     time.Duration
	enabled bool
	cache   map[string]cachedLabel
	now     func() time.Time
}

var _ Provider = (*Client)(nil)

// NewClient creates a sentiment client.
func NewClient(cfg *config.Sentiment, logger *zap.Logger) *Client {
	return &Client{
		client:  resty.New().SetBaseURL(cfg.BaseURL).SetTimeout(time.Duration(cfg.TimeoutSeconds) * time.Second),
		logger:  logger,
		ttl:     time.Duration(cfg.CacheTTL) * time.Second,
		enabled: cfg.Enabled && cfg.BaseURL != "",
		cache:   make(map[string]cachedLabel),
		now:     time.Now,
	}
}

type sentimentResponse struct {
	Token     string `json:"token"`
	Sentiment string `json:"sentiment"`
}

// Get returns the cached label for a symbol, refreshing it lazily once
// the TTL has expired. Absence of data defaults to neutral.
func (c *Client) Get(ctx context.Context, symbol string) models.Sentiment {
	if !c.enabled {
		return models.SentimentNeutral
	}

	if entry, ok := c.cache[symbol]; ok && c.now().Sub(entry.fetchedAt) < c.ttl {
		return entry.label
	}

	var result sentimentResponse
	resp, err := c.client.R().
		SetContext(ctx).
		SetResult(&result).
		SetPathParam("symbol", symbol).
		Get("/sentiment/{symbol}")
	if err != nil || resp.IsError() {
		c.logger.Warn("Sentiment fetch failed, defaulting to neutral",
			zap.String("token", symbol), zap.Error(err))
		return c.remember(symbol, models.SentimentNeutral)
	}

	switch models.Sentiment(result.Sentiment) {
	case models.SentimentBullish, models.SentimentBearish, models.SentimentNeutral:
		return c.remember(symbol, models.Sentiment(result.Sentiment))
	default:
		c.logger.Warn("Unknown sentiment label, defaulting to neutral",
			zap.String("token", symbol), zap.String("label", result.Sentiment))
		return c.remember(symbol, models.SentimentNeutral)
	}
}

func (c *Client) remember(symbol string, label models.Sentiment) models.Sentiment {
	c.cache[symbol] = cachedLabel{label: label, fetchedAt: c.now()}
	return label
}
