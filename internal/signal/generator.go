package signal

import (
	"fmt"
	"math"

	"crypto-trade-bot-go/internal/config"
	"crypto-trade-bot-go/internal/models"
)

// Scoring weights. The data-quality penalties sum to the forced-hold
// limit when every indicator is unusable.
const (
	penaltyMissingRSI  = 30.0
	penaltyMissingSMA  = 10.0
	penaltyMissingMACD = 10.0

	sellWeightTakeProfit = 40.0
	// Below the default confidence floor on its own: a plain -1.5%
	// drawdown is DCA ladder territory (first zone -2%), and exits on
	// deep drawdown belong to the hard stop. A stop-loss SELL needs
	// confluence from RSI, crossover or sentiment.
	sellWeightStopLoss = 45.0
	sellWeightOverbought = 25.0
	sellWeightBearishX   = 20.0
	sellWeightSentiment  = 15.0

	buyWeightOversold   = 35.0
	buyWeightBullishX   = 25.0
	buyWeightBelowSMA   = 20.0
	buyWeightSharpDrop  = 15.0
	buyWeightSentiment  = 10.0
	buyPenaltySentiment = 15.0
)

// Generator scores one symbol per tick. It is a pure function of the
// market sample, the indicator snapshot, the open position (if any) and
// the cached sentiment label; it never mutates its inputs.
type Generator struct {
	cfg config.Trading
}

// NewGenerator creates a signal generator with the given policy.
func NewGenerator(cfg config.Trading) *Generator {
	return &Generator{cfg: cfg}
}

// WarmupHold is the synthetic signal emitted for every symbol while the
// engine-wide history is below the warmup period.
func WarmupHold(token string) models.Signal {
	return models.Signal{
		Token:    token,
		Action:   models.ActionHold,
		Strength: 0,
		Reasons:  []string{"warming up: collecting price history"},
	}
}

// Generate produces the scored candidate action for one symbol.
func (g *Generator) Generate(md models.MarketData, ind models.IndicatorSnapshot, pos *models.Position, sentiment models.Sentiment) models.Signal {
	sig := models.Signal{
		Token:          md.Token,
		Action:         models.ActionHold,
		IndicatorsUsed: ind,
		Sentiment:      sentiment,
	}

	// Data-quality gate: unusable indicators accumulate a penalty, and
	// past the limit the symbol is forced to HOLD before any
	// directional scoring happens.
	penalty := 0.0
	if ind.RSI == nil || math.IsNaN(*ind.RSI) || *ind.RSI == 0 {
		penalty += penaltyMissingRSI
	}
	if ind.SMA == nil {
		penalty += penaltyMissingSMA
	}
	if ind.MACD == nil {
		penalty += penaltyMissingMACD
	}
	if penalty >= g.cfg.DataPenaltyLimit {
		sig.Strength = 0
		sig.Reasons = []string{"insufficient data"}
		return sig
	}

	var buyScore, sellScore float64
	var buyReasons, sellReasons []string

	if pos != nil {
		sellScore, sellReasons = g.scoreSell(ind, pos, sentiment)
		sellScore -= penalty
	} else {
		buyScore, buyReasons = g.scoreBuy(md, ind, sentiment)
		buyScore -= penalty
	}

	switch {
	case buyScore > sellScore && buyScore >= g.cfg.MinConfidence:
		sig.Action = models.ActionBuy
		sig.Strength = clamp(buyScore)
		sig.Reasons = buyReasons
	case sellScore > buyScore && sellScore >= g.cfg.MinConfidence:
		sig.Action = models.ActionSell
		sig.Strength = clamp(sellScore)
		sig.Reasons = sellReasons
	default:
		// Diagnostic strength: the better of the two raw scores.
		sig.Strength = clamp(math.Max(buyScore, sellScore))
		sig.Reasons = []string{"no threshold reached"}
	}

	return sig
}

// scoreSell accumulates sell strength for an open position.
func (g *Generator) scoreSell(ind models.IndicatorSnapshot, pos *models.Position, sentiment models.Sentiment) (float64, []string) {
	score := 0.0
	var reasons []string

	if pos.PnLPercentage >= g.cfg.TakeProfit*100 {
		score += sellWeightTakeProfit
		reasons = append(reasons, fmt.Sprintf("take profit: +%.2f%% above +%.2f%% target", pos.PnLPercentage, g.cfg.TakeProfit*100))
	}
	if pos.PnLPercentage <= g.cfg.StopLoss*100 {
		score += sellWeightStopLoss
		reasons = append(reasons, fmt.Sprintf("stop loss: %.2f%% below %.2f%% limit", pos.PnLPercentage, g.cfg.StopLoss*100))
	}
	if ind.RSI != nil && *ind.RSI > g.cfg.RSIOverbought {
		score += sellWeightOverbought
		reasons = append(reasons, fmt.Sprintf("RSI overbought: %.1f > %.1f", *ind.RSI, g.cfg.RSIOverbought))
	}
	if ind.Crossover == models.CrossoverBearish {
		score += sellWeightBearishX
		reasons = append(reasons, "bearish MACD crossover")
	}
	if sentiment == models.SentimentBearish {
		score += sellWeightSentiment
		reasons = append(reasons, "bearish news sentiment")
	}

	return score, reasons
}

// scoreBuy accumulates buy strength when no position is open.
func (g *Generator) scoreBuy(md models.MarketData, ind models.IndicatorSnapshot, sentiment models.Sentiment) (float64, []string) {
	score := 0.0
	var reasons []string

	// A zero-ish RSI means a flatline or degenerate history, not a real
	// oversold market; it must not look like a buying opportunity.
	if ind.RSI != nil && *ind.RSI > 1 && *ind.RSI < g.cfg.RSIOversold {
		score += buyWeightOversold
		reasons = append(reasons, fmt.Sprintf("RSI oversold: %.1f < %.1f", *ind.RSI, g.cfg.RSIOversold))
	}
	if ind.Crossover == models.CrossoverBullish {
		score += buyWeightBullishX
		reasons = append(reasons, "bullish MACD crossover")
	}
	if ind.SMA != nil && *ind.SMA > 0 && md.Price < *ind.SMA*(1-g.cfg.SMABuyGap) {
		score += buyWeightBelowSMA
		reasons = append(reasons, fmt.Sprintf("price %.4f below SMA %.4f", md.Price, *ind.SMA))
	}
	if md.Change24h <= g.cfg.SharpDrop24h {
		score += buyWeightSharpDrop
		reasons = append(reasons, fmt.Sprintf("sharp 24h decline: %.2f%%", md.Change24h))
	}
	switch sentiment {
	case models.SentimentBullish:
		score += buyWeightSentiment
		reasons = append(reasons, "bullish news sentiment")
	case models.SentimentBearish:
		score -= buyPenaltySentiment
		reasons = append(reasons, "bearish news sentiment against entry")
	}

	return score, reasons
}

func clamp(v float64) float64 {
	return math.Max(0, math.Min(100, v))
}
