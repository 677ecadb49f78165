package feed

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"crypto-trade-bot-go/internal/config"
	"crypto-trade-bot-go/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestClient(baseURL string) *Client {
	return NewClient(&config.Feed{
		BaseURL:        baseURL,
		RateLimit:      1000,
		RateLimitBurst: 100,
		TimeoutSeconds: 2,
	}, zap.NewNop())
}

func priceHandler(t *testing.T, samples []models.MarketData) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/prices", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(samples))
	}
}

func TestFetchPrices_ReturnsSamplesInSymbolOrder(t *testing.T) {
	server := httptest.NewServer(priceHandler(t, []models.MarketData{
		{Token: "BTC", Price: 60000, Change24h: 1.2},
		{Token: "SOL", Price: 150, Change24h: -2.5},
	}))
	defer server.Close()

	c := newTestClient(server.URL)
	samples, err := c.FetchPrices(context.Background(), []string{"SOL", "BTC"})
	require.NoError(t, err)

	require.Len(t, samples, 2)
	assert.Equal(t, "SOL", samples[0].Token)
	assert.InDelta(t, 150.0, samples[0].Price, 1e-9)
	assert.Equal(t, "BTC", samples[1].Token)
	assert.False(t, samples[0].Stale)
}

func TestFetchPrices_MissingSymbolServedFromCache(t *testing.T) {
	full := []models.MarketData{
		{Token: "SOL", Price: 150},
		{Token: "BTC", Price: 60000},
	}
	partial := []models.MarketData{
		{Token: "SOL", Price: 151},
	}

	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Header().Set("Content-Type", "application/json")
		if calls == 1 {
			json.NewEncoder(w).Encode(full)
			return
		}
		json.NewEncoder(w).Encode(partial)
	}))
	defer server.Close()

	c := newTestClient(server.URL)
	ctx := context.Background()

	_, err := c.FetchPrices(ctx, []string{"SOL", "BTC"})
	require.NoError(t, err)

	samples, err := c.FetchPrices(ctx, []string{"SOL", "BTC"})
	require.NoError(t, err)
	require.Len(t, samples, 2)

	assert.False(t, samples[0].Stale)
	assert.InDelta(t, 151.0, samples[0].Price, 1e-9)

	// BTC dropped out of the response: last-good price, flagged stale.
	assert.True(t, samples[1].Stale)
	assert.InDelta(t, 60000.0, samples[1].Price, 1e-9)
}

func TestFetchPrices_UnknownSymbolSkipped(t *testing.T) {
	server := httptest.NewServer(priceHandler(t, []models.MarketData{
		{Token: "SOL", Price: 150},
	}))
	defer server.Close()

	c := newTestClient(server.URL)
	samples, err := c.FetchPrices(context.Background(), []string{"SOL", "DOGE"})
	require.NoError(t, err)

	require.Len(t, samples, 1)
	assert.Equal(t, "SOL", samples[0].Token)
}

func TestFetchPrices_EmptyFeedAndCacheFails(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte("[]"))
	}))
	defer server.Close()

	c := newTestClient(server.URL)
	_, err := c.FetchPrices(context.Background(), []string{"SOL"})
	assert.Error(t, err)
}

func TestFetchPrices_RetriesServerErrors(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.Header().Set("Retry-After", "0")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode([]models.MarketData{{Token: "SOL", Price: 150}})
	}))
	defer server.Close()

	c := newTestClient(server.URL)
	samples, err := c.FetchPrices(context.Background(), []string{"SOL"})
	require.NoError(t, err)

	assert.Equal(t, 2, calls)
	require.Len(t, samples, 1)
	assert.InDelta(t, 150.0, samples[0].Price, 1e-9)
}
