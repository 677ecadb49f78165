package models

import "gorm.io/gorm"

// Position is the open holding for one token. There is at most one
// position per token; a full SELL deletes it.
//
// InitialBuyPrice is fixed at first entry and never mutated; the DCA
// ladder measures drawdown against it. HighestPrice only ever moves up
// while the position is open. TotalCost is the cumulative cash outlay
// including buy fees and is the cost basis for P&L, not
// AvgBuyPrice*Amount.
type Position struct {
	gorm.Model      `json:"-"`
	Token           string  `json:"token" gorm:"uniqueIndex"`
	Amount          float64 `json:"amount"`
	AvgBuyPrice     float64 `json:"avgBuyPrice"`
	CurrentPrice    float64 `json:"currentPrice"`
	PnL             float64 `json:"pnl"`
	PnLPercentage   float64 `json:"pnlPercentage"`
	DCALevel        int     `json:"dcaLevel"`
	InitialBuyPrice float64 `json:"initialBuyPrice"`
	HighestPrice    float64 `json:"highestPrice"`
	TotalCost       float64 `json:"totalCost"`
}

// Drawdown returns the move from the initial entry price as a fraction.
func (p *Position) Drawdown() float64 {
	if p.InitialBuyPrice == 0 {
		return 0
	}
	return (p.CurrentPrice - p.InitialBuyPrice) / p.InitialBuyPrice
}

// PeakRetracement returns the move from the highest observed price as a
// fraction (negative when the price has fallen off the peak).
func (p *Position) PeakRetracement() float64 {
	if p.HighestPrice == 0 {
		return 0
	}
	return (p.CurrentPrice - p.HighestPrice) / p.HighestPrice
}
