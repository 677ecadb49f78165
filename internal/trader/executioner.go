package trader

import (
	"fmt"
	"strings"
	"time"

	"crypto-trade-bot-go/internal/models"
	"crypto-trade-bot-go/internal/portfolio"

	"go.uber.org/zap"
)

// Engine modes.
const (
	ModePaper = "paper"
	ModeLive  = "live"
)

// Executioner is the capability surface a trading mode must provide.
// The engine selects the paper or live variant by an explicit mode tag;
// both share the same ledger so a mode switch never loses state.
type Executioner interface {
	PriceUpdate(samples []models.MarketData)
	Monitor(samples []models.MarketData, now time.Time) *models.Trade
	ExecuteTrade(sig models.Signal, price float64, now time.Time) (*models.Trade, error)
	Portfolio() models.Portfolio
}

// PaperExecutioner simulates execution against the in-memory ledger.
type PaperExecutioner struct {
	ledger  *portfolio.Ledger
	manager *Manager
	logger  *zap.Logger
}

var _ Executioner = (*PaperExecutioner)(nil)

// NewPaperExecutioner creates the paper-trading executioner.
func NewPaperExecutioner(ledger *portfolio.Ledger, manager *Manager, logger *zap.Logger) *PaperExecutioner {
	return &PaperExecutioner{ledger: ledger, manager: manager, logger: logger}
}

// PriceUpdate refreshes open positions from the latest samples.
func (e *PaperExecutioner) PriceUpdate(samples []models.MarketData) {
	e.ledger.UpdatePrices(samples)
}

// Monitor runs the forced-action pass and executes at most one
// resulting trade: trailing stop, DCA re-entry or hard stop.
func (e *PaperExecutioner) Monitor(samples []models.MarketData, now time.Time) *models.Trade {
	positions := make(map[string]models.Position)
	for _, pos := range e.ledger.Positions() {
		positions[pos.Token] = pos
	}
	if len(positions) == 0 {
		return nil
	}

	action := e.manager.Monitor(samples, positions, e.ledger.AvailableCash(), e.ledger.TotalEquity(), now)
	if action == nil {
		return nil
	}

	pos := positions[action.Token]
	var trade models.Trade
	var err error

	switch action.Type {
	case ActionDCA:
		trade, err = e.ledger.Buy(action.Token, pos.CurrentPrice, action.Invest, action.DCALevel, action.Reason)
	default:
		trade, err = e.ledger.Sell(action.Token, pos.CurrentPrice, action.Reason)
	}
	if err != nil {
		e.logger.Warn("Monitor action not executed",
			zap.String("token", action.Token),
			zap.String("type", action.Type),
			zap.Error(err))
		return nil
	}

	e.manager.MarkTraded(action.Token, now)
	e.logger.Info("Monitor action executed",
		zap.String("token", action.Token),
		zap.String("type", action.Type),
		zap.String("reason", action.Reason))
	return &trade
}

// ExecuteTrade routes an arbitrated signal to a buy or sell. Sizing
// rejections return an error and no trade; the signal is dropped, not
// retried within the tick.
func (e *PaperExecutioner) ExecuteTrade(sig models.Signal, price float64, now time.Time) (*models.Trade, error) {
	if e.manager.CooldownBlocks(sig.Action == models.ActionSell, sig.Token, now) {
		return nil, fmt.Errorf("%s is in cooldown", sig.Token)
	}

	reason := strings.Join(sig.Reasons, "; ")
	switch sig.Action {
	case models.ActionBuy:
		if _, exists := e.ledger.Position(sig.Token); exists {
			return nil, fmt.Errorf("position already open for %s, entries go through the DCA ladder", sig.Token)
		}
		invest := e.manager.PlanEntry(e.ledger.AvailableCash(), e.ledger.TotalEquity())
		if invest <= 0 {
			return nil, fmt.Errorf("no investable cash for %s after reserve", sig.Token)
		}
		trade, err := e.ledger.Buy(sig.Token, price, invest, 0, reason)
		if err != nil {
			return nil, err
		}
		e.manager.MarkTraded(sig.Token, now)
		return &trade, nil

	case models.ActionSell:
		trade, err := e.ledger.Sell(sig.Token, price, reason)
		if err != nil {
			return nil, err
		}
		e.manager.MarkTraded(sig.Token, now)
		return &trade, nil

	default:
		return nil, fmt.Errorf("signal action %q is not executable", sig.Action)
	}
}

// Portfolio returns the derived portfolio view.
func (e *PaperExecutioner) Portfolio() models.Portfolio {
	return e.ledger.Portfolio()
}

// LiveExecutioner is the live-exchange variant. Order routing is a
// stub: would-be exchange orders are logged, and bookkeeping mirrors
// the paper executioner.
type LiveExecutioner struct {
	*PaperExecutioner
	logger *zap.Logger
}

var _ Executioner = (*LiveExecutioner)(nil)

// NewLiveExecutioner creates the live executioner over the same ledger.
func NewLiveExecutioner(paper *PaperExecutioner, logger *zap.Logger) *LiveExecutioner {
	return &LiveExecutioner{PaperExecutioner: paper, logger: logger}
}

// ExecuteTrade logs the would-be exchange order, then applies the same
// bookkeeping as paper mode.
func (e *LiveExecutioner) ExecuteTrade(sig models.Signal, price float64, now time.Time) (*models.Trade, error) {
	e.logger.Info("Submitting live order (execution stub)",
		zap.String("token", sig.Token),
		zap.String("side", sig.Action),
		zap.Float64("price", price))
	return e.PaperExecutioner.ExecuteTrade(sig, price, now)
}

// Monitor runs the forced-action pass; executed actions are logged as
// would-be exchange orders.
func (e *LiveExecutioner) Monitor(samples []models.MarketData, now time.Time) *models.Trade {
	trade := e.PaperExecutioner.Monitor(samples, now)
	if trade != nil {
		e.logger.Info("Submitted live order for monitor action (execution stub)",
			zap.String("token", trade.Token),
			zap.String("side", trade.Action))
	}
	return trade
}
