package indicators

import (
	"math"

	"crypto-trade-bot-go/internal/models"
)

const (
	macdFastPeriod   = 12
	macdSlowPeriod   = 26
	macdSignalPeriod = 9
)

// macdState carries the incremental EMA state for one symbol so MACD is
// O(1) per sample instead of a prefix recomputation per tick.
type macdState struct {
	count      int
	fastSum    float64
	slowSum    float64
	emaFast    float64
	emaSlow    float64
	macdCount  int
	signalSum  float64
	emaSignal  float64
	macd       float64
	histogram  float64
	hasPrev    bool
	prevHisto  float64
}

// Engine maintains bounded per-symbol price history and computes the
// technical indicators the signal generator consumes. It is owned by
// the tick loop and mutated once per scan tick.
type Engine struct {
	maxHistory int
	history    map[string][]float64
	macd       map[string]*macdState
}

// NewEngine creates an indicator engine keeping at most maxHistory
// samples per symbol.
func NewEngine(maxHistory int) *Engine {
	if maxHistory <= 0 {
		maxHistory = 100
	}
	return &Engine{
		maxHistory: maxHistory,
		history:    make(map[string][]float64),
		macd:       make(map[string]*macdState),
	}
}

// Update appends one price sample per symbol, evicting the oldest
// sample beyond the history cap.
func (e *Engine) Update(samples []models.MarketData) {
	for _, s := range samples {
		h := append(e.history[s.Token], s.Price)
		if len(h) > e.maxHistory {
			h = h[len(h)-e.maxHistory:]
		}
		e.history[s.Token] = h

		st, ok := e.macd[s.Token]
		if !ok {
			st = &macdState{}
			e.macd[s.Token] = st
		}
		st.push(s.Price)
	}
}

// push advances the incremental MACD state by one price.
func (s *macdState) push(price float64) {
	s.count++

	k := func(period int) float64 { return 2.0 / (float64(period) + 1.0) }

	// Fast EMA: seeded with the simple average of the first 12 prices.
	switch {
	case s.count < macdFastPeriod:
		s.fastSum += price
	case s.count == macdFastPeriod:
		s.fastSum += price
		s.emaFast = s.fastSum / float64(macdFastPeriod)
	default:
		s.emaFast = price*k(macdFastPeriod) + s.emaFast*(1-k(macdFastPeriod))
	}

	// Slow EMA: seeded with the simple average of the first 26 prices.
	switch {
	case s.count < macdSlowPeriod:
		s.slowSum += price
	case s.count == macdSlowPeriod:
		s.slowSum += price
		s.emaSlow = s.slowSum / float64(macdSlowPeriod)
	default:
		s.emaSlow = price*k(macdSlowPeriod) + s.emaSlow*(1-k(macdSlowPeriod))
	}

	if s.count < macdSlowPeriod {
		return
	}

	s.macd = s.emaFast - s.emaSlow
	s.macdCount++

	// Signal EMA over the MACD line, seeded with the simple average of
	// its first 9 values. The histogram therefore exists from sample
	// 26+9-1 = 34 onward.
	switch {
	case s.macdCount < macdSignalPeriod:
		s.signalSum += s.macd
	case s.macdCount == macdSignalPeriod:
		s.signalSum += s.macd
		s.emaSignal = s.signalSum / float64(macdSignalPeriod)
	default:
		s.emaSignal = s.macd*k(macdSignalPeriod) + s.emaSignal*(1-k(macdSignalPeriod))
	}

	if s.macdCount >= macdSignalPeriod {
		s.histogram = s.macd - s.emaSignal
	}
}

// History returns the stored price history for a symbol.
func (e *Engine) History(token string) []float64 {
	return e.history[token]
}

// HistoryLen returns the number of stored samples for a symbol.
func (e *Engine) HistoryLen(token string) int {
	return len(e.history[token])
}

// AvgHistoryLen returns the average history length across the given
// symbols; symbols with no samples count as zero. The engine-wide
// warmup gate compares this against the warmup period.
func (e *Engine) AvgHistoryLen(symbols []string) float64 {
	if len(symbols) == 0 {
		return 0
	}
	total := 0
	for _, s := range symbols {
		total += len(e.history[s])
	}
	return float64(total) / float64(len(symbols))
}

// SMA returns the arithmetic mean of the last period prices, or nil if
// fewer than period samples exist.
func (e *Engine) SMA(token string, period int) *float64 {
	h := e.history[token]
	if period <= 0 || len(h) < period {
		return nil
	}
	sum := 0.0
	for _, p := range h[len(h)-period:] {
		sum += p
	}
	v := sum / float64(period)
	return &v
}

// RSI computes the Relative Strength Index over the most recent period
// deltas using plain averages (not Wilder's smoothing; the simple
// averaging is part of the engine's observable behavior). Returns nil
// if fewer than period+1 samples exist or any price is non-finite, and
// 100 when there are no losses in the window.
func (e *Engine) RSI(token string, period int) *float64 {
	h := e.history[token]
	if period <= 0 || len(h) < period+1 {
		return nil
	}
	for _, p := range h {
		if math.IsNaN(p) || math.IsInf(p, 0) {
			return nil
		}
	}

	gains, losses := 0.0, 0.0
	for i := len(h) - period; i < len(h); i++ {
		change := h[i] - h[i-1]
		if change > 0 {
			gains += change
		} else {
			losses -= change
		}
	}
	avgGain := gains / float64(period)
	avgLoss := losses / float64(period)

	v := 100.0
	if avgLoss != 0 {
		rs := avgGain / avgLoss
		v = 100.0 - 100.0/(1.0+rs)
	}
	return &v
}

// MACD returns the current MACD reading for a symbol, or nil until at
// least slow+signal-1 samples exist.
func (e *Engine) MACD(token string) *models.MACDValue {
	st, ok := e.macd[token]
	if !ok || st.macdCount < macdSignalPeriod {
		return nil
	}
	return &models.MACDValue{
		MACD:      st.macd,
		Signal:    st.emaSignal,
		Histogram: st.histogram,
	}
}

// Snapshot computes the full indicator view for a symbol, including
// crossover detection against the previously stored histogram. The
// stored histogram is replaced unconditionally after each comparison.
func (e *Engine) Snapshot(token string, rsiPeriod, smaPeriod int) models.IndicatorSnapshot {
	snap := models.IndicatorSnapshot{
		RSI:       e.RSI(token, rsiPeriod),
		SMA:       e.SMA(token, smaPeriod),
		Crossover: models.CrossoverNone,
	}

	macd := e.MACD(token)
	if macd == nil {
		return snap
	}
	snap.MACD = macd

	st := e.macd[token]
	if st.hasPrev {
		if st.prevHisto < 0 && macd.Histogram > 0 {
			snap.Crossover = models.CrossoverBullish
		} else if st.prevHisto > 0 && macd.Histogram < 0 {
			snap.Crossover = models.CrossoverBearish
		}
	}
	st.prevHisto = macd.Histogram
	st.hasPrev = true

	return snap
}
