package models

import "gorm.io/gorm"

// Trade is an immutable executed-trade record. TradeID is minted from
// the portfolio's monotonic trade counter.
type Trade struct {
	gorm.Model `json:"-"`
	TradeID    string  `json:"id" gorm:"uniqueIndex"`
	Timestamp  int64   `json:"timestamp"`
	Token      string  `json:"token"`
	Action     string  `json:"action"` // "BUY" or "SELL"
	Amount     float64 `json:"amount"` // token units
	Price      float64 `json:"price"`
	Fee        float64 `json:"fee"`
	Total      float64 `json:"total"` // cash delta magnitude, fee-inclusive
	PnL        float64 `json:"pnl,omitempty"`
	Reason     string  `json:"reason,omitempty"`
}

// PortfolioState is the single persisted row carrying the scalar
// portfolio state between runs.
type PortfolioState struct {
	gorm.Model
	CashBalance    float64
	InitialBalance float64
	TradeCounter   int64
}

// Portfolio is the derived portfolio view, recomputed on every read.
type Portfolio struct {
	TotalEquity        float64    `json:"totalEquity"`
	CashBalance        float64    `json:"cashBalance"`
	TotalPnL           float64    `json:"totalPnL"`
	TotalPnLPercentage float64    `json:"totalPnLPercentage"`
	Positions          []Position `json:"positions"`
}
