package sentiment

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"crypto-trade-bot-go/internal/config"
	"crypto-trade-bot-go/internal/models"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func sentimentServer(label string, calls *int) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*calls++
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"token":"SOL","sentiment":%q}`, label)
	}))
}

func newTestClient(baseURL string, ttl int) *Client {
	return NewClient(&config.Sentiment{
		BaseURL:        baseURL,
		CacheTTL:       ttl,
		TimeoutSeconds: 2,
		Enabled:        true,
	}, zap.NewNop())
}

func TestGet_ReturnsServedLabel(t *testing.T) {
	var calls int
	server := sentimentServer("bullish", &calls)
	defer server.Close()

	c := newTestClient(server.URL, 300)
	assert.Equal(t, models.SentimentBullish, c.Get(context.Background(), "SOL"))
}

func TestGet_CachesWithinTTL(t *testing.T) {
	var calls int
	server := sentimentServer("bearish", &calls)
	defer server.Close()

	c := newTestClient(server.URL, 300)
	now := time.Now()
	c.now = func() time.Time { return now }

	ctx := context.Background()
	c.Get(ctx, "SOL")
	c.Get(ctx, "SOL")
	assert.Equal(t, 1, calls)

	// Past the TTL the label is refreshed.
	now = now.Add(301 * time.Second)
	assert.Equal(t, models.SentimentBearish, c.Get(ctx, "SOL"))
	assert.Equal(t, 2, calls)
}

func TestGet_UnknownLabelDefaultsToNeutral(t *testing.T) {
	var calls int
	server := sentimentServer("euphoric", &calls)
	defer server.Close()

	c := newTestClient(server.URL, 300)
	assert.Equal(t, models.SentimentNeutral, c.Get(context.Background(), "SOL"))
}

func TestGet_ServerFailureDefaultsToNeutralAndCaches(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	c := newTestClient(server.URL, 300)
	now := time.Now()
	c.now = func() time.Time { return now }

	ctx := context.Background()
	assert.Equal(t, models.SentimentNeutral, c.Get(ctx, "SOL"))

	// The neutral fallback is cached too, so a failing service is not
	// hammered every tick.
	assert.Equal(t, models.SentimentNeutral, c.Get(ctx, "SOL"))
	assert.Equal(t, 1, calls)
}

func TestGet_DisabledAlwaysNeutral(t *testing.T) {
	c := NewClient(&config.Sentiment{Enabled: false}, zap.NewNop())
	assert.Equal(t, models.SentimentNeutral, c.Get(context.Background(), "SOL"))
}
