package models

// MarketData is a single price sample from the feed.
type MarketData struct {
	Token     string  `json:"token"`
	Price     float64 `json:"price"`
	Change24h float64 `json:"change24h"` // percent
	Timestamp int64   `json:"timestamp"`
	Stale     bool    `json:"stale,omitempty"` // served from the fallback cache
}

// Sentiment is a cached news-sentiment label for a symbol.
type Sentiment string

const (
	SentimentBullish Sentiment = "bullish"
	SentimentBearish Sentiment = "bearish"
	SentimentNeutral Sentiment = "neutral"
)

// Crossover classifies a MACD histogram sign flip.
type Crossover string

const (
	CrossoverBullish Crossover = "BULLISH"
	CrossoverBearish Crossover = "BEARISH"
	CrossoverNone    Crossover = "NONE"
)

// MACDValue holds one MACD reading.
type MACDValue struct {
	MACD      float64 `json:"macd"`
	Signal    float64 `json:"signal"`
	Histogram float64 `json:"histogram"`
}

// IndicatorSnapshot is the derived view of one symbol's indicators.
// Nil fields mean the history is too short to compute them.
type IndicatorSnapshot struct {
	RSI       *float64   `json:"rsi"`
	SMA       *float64   `json:"sma"`
	MACD      *MACDValue `json:"macd"`
	Crossover Crossover  `json:"crossover"`
}
