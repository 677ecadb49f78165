package models

const (
	ActionBuy  = "BUY"
	ActionSell = "SELL"
	ActionHold = "HOLD"
)

// Signal is a scored candidate action for one symbol. Immutable once
// produced; the arbiter may pick among signals but never rewrites one.
type Signal struct {
	Token          string            `json:"token"`
	Action         string            `json:"action"`
	Strength       float64           `json:"strength"` // 0..100
	Reasons        []string          `json:"reasons"`
	IndicatorsUsed IndicatorSnapshot `json:"indicators_used"`
	Sentiment      Sentiment         `json:"sentiment"`
}

// IsHold reports whether the signal proposes no action.
func (s Signal) IsHold() bool {
	return s.Action == ActionHold
}
