package portfolio

import (
	"fmt"
	"sync"
	"time"

	"crypto-trade-bot-go/internal/config"
	"crypto-trade-bot-go/internal/models"

	"go.uber.org/zap"
)

// Ledger owns the cash balance, the position map and the trade history.
// The tick loop is the only writer; HTTP handlers and the broadcaster
// read through copying accessors so they never observe a partially
// updated position.
type Ledger struct {
	mu             sync.RWMutex
	cfg            config.Trading
	logger         *zap.Logger
	cash           float64
	initialBalance float64
	positions      map[string]*models.Position
	order          []string       // insertion order of open positions
	trades         []models.Trade // newest first
	tradeCounter   int64
}

// NewLedger creates a ledger funded with the configured initial balance.
func NewLedger(cfg config.Trading, logger *zap.Logger) *Ledger {
	return &Ledger{
		cfg:            cfg,
		logger:         logger,
		cash:           cfg.InitialBalance,
		initialBalance: cfg.InitialBalance,
		positions:      make(map[string]*models.Position),
	}
}

// State is the full serializable ledger state: what gets persisted
// after every accepted trade and restored on startup.
type State struct {
	CashBalance    float64
	InitialBalance float64
	TradeCounter   int64
	Positions      []models.Position
	Trades         []models.Trade
}

// Restore replaces the ledger contents with a previously persisted state.
func (l *Ledger) Restore(state State) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.cash = state.CashBalance
	if state.InitialBalance > 0 {
		l.initialBalance = state.InitialBalance
	}
	l.tradeCounter = state.TradeCounter
	l.positions = make(map[string]*models.Position, len(state.Positions))
	l.order = l.order[:0]
	for i := range state.Positions {
		p := state.Positions[i]
		l.positions[p.Token] = &p
		l.order = append(l.order, p.Token)
	}
	l.trades = append([]models.Trade(nil), state.Trades...)
}

// Snapshot returns a deep copy of the ledger state for persistence.
func (l *Ledger) Snapshot() State {
	l.mu.RLock()
	defer l.mu.RUnlock()

	return State{
		CashBalance:    l.cash,
		InitialBalance: l.initialBalance,
		TradeCounter:   l.tradeCounter,
		Positions:      l.copyPositions(),
		Trades:         append([]models.Trade(nil), l.trades...),
	}
}

// UpdatePrices refreshes every open position from the latest samples:
// current price, unrealized P&L against the fee-inclusive cost basis,
// and the monotonic peak price the trailing stop follows.
func (l *Ledger) UpdatePrices(samples []models.MarketData) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for _, s := range samples {
		pos, ok := l.positions[s.Token]
		if !ok {
			continue
		}
		pos.CurrentPrice = s.Price
		if s.Price > pos.HighestPrice {
			pos.HighestPrice = s.Price
		}
		pos.PnL = pos.Amount*s.Price - pos.TotalCost
		if pos.TotalCost > 0 {
			pos.PnLPercentage = pos.PnL / pos.TotalCost * 100
		}
	}
}

// Buy spends invest cash on a token at the given price. The fee comes
// out of the invested amount, so exactly invest leaves the cash
// balance. Creates the position on first entry; on a DCA re-entry it
// re-weights the average price from the cumulative cost basis and
// advances the ladder to dcaLevel.
func (l *Ledger) Buy(token string, price, invest float64, dcaLevel int, reason string) (models.Trade, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if price <= 0 {
		return models.Trade{}, fmt.Errorf("invalid price %.8f for %s", price, token)
	}
	if invest <= 0 || invest > l.cash {
		return models.Trade{}, fmt.Errorf("buy of %.4f exceeds cash balance %.4f", invest, l.cash)
	}

	fee := invest * l.cfg.FeeRate
	net := invest - fee
	amount := net / price
	if amount < l.cfg.MinTradeSize {
		return models.Trade{}, fmt.Errorf("trade size %.6f below minimum %.6f", amount, l.cfg.MinTradeSize)
	}

	l.cash -= invest

	pos, ok := l.positions[token]
	if !ok {
		l.positions[token] = &models.Position{
			Token:           token,
			Amount:          amount,
			AvgBuyPrice:     price,
			CurrentPrice:    price,
			DCALevel:        0,
			InitialBuyPrice: price,
			HighestPrice:    price,
			TotalCost:       invest,
		}
		l.order = append(l.order, token)
	} else {
		pos.Amount += amount
		pos.TotalCost += invest
		pos.AvgBuyPrice = pos.TotalCost / pos.Amount
		pos.CurrentPrice = price
		pos.DCALevel = dcaLevel
		pos.PnL = pos.Amount*price - pos.TotalCost
		pos.PnLPercentage = pos.PnL / pos.TotalCost * 100
	}

	trade := l.recordTrade(token, models.ActionBuy, amount, price, fee, invest, 0, reason)
	l.logger.Info("Executed BUY",
		zap.String("token", token),
		zap.Float64("amount", amount),
		zap.Float64("price", price),
		zap.Float64("invested", invest),
		zap.Float64("cash", l.cash))
	return trade, nil
}

// Sell closes the position for a token entirely. Realized P&L is net
// proceeds minus the cumulative fee-inclusive cost basis, not a spot
// average-price difference. Partial exits do not exist.
func (l *Ledger) Sell(token string, price float64, reason string) (models.Trade, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	pos, ok := l.positions[token]
	if !ok {
		return models.Trade{}, fmt.Errorf("no open position for %s", token)
	}
	if price <= 0 {
		return models.Trade{}, fmt.Errorf("invalid price %.8f for %s", price, token)
	}

	gross := pos.Amount * price
	fee := gross * l.cfg.FeeRate
	net := gross - fee
	realized := net - pos.TotalCost

	l.cash += net
	amount := pos.Amount
	delete(l.positions, token)
	for i, t := range l.order {
		if t == token {
			l.order = append(l.order[:i], l.order[i+1:]...)
			break
		}
	}

	trade := l.recordTrade(token, models.ActionSell, amount, price, fee, net, realized, reason)
	l.logger.Info("Executed SELL",
		zap.String("token", token),
		zap.Float64("amount", amount),
		zap.Float64("price", price),
		zap.Float64("realized_pnl", realized),
		zap.Float64("cash", l.cash))
	return trade, nil
}

// recordTrade mints a trade id from the monotonic counter and prepends
// the record to the newest-first log. Caller holds the lock.
func (l *Ledger) recordTrade(token, action string, amount, price, fee, total, pnl float64, reason string) models.Trade {
	l.tradeCounter++
	trade := models.Trade{
		TradeID:   fmt.Sprintf("T-%06d", l.tradeCounter),
		Timestamp: time.Now().UnixMilli(),
		Token:     token,
		Action:    action,
		Amount:    amount,
		Price:     price,
		Fee:       fee,
		Total:     total,
		PnL:       pnl,
		Reason:    reason,
	}
	l.trades = append([]models.Trade{trade}, l.trades...)
	return trade
}

// Portfolio recomputes the derived portfolio view from current state.
// Never cached.
func (l *Ledger) Portfolio() models.Portfolio {
	l.mu.RLock()
	defer l.mu.RUnlock()

	equity := l.cash
	for _, pos := range l.positions {
		equity += pos.Amount * pos.CurrentPrice
	}
	pnl := equity - l.initialBalance
	pct := 0.0
	if l.initialBalance > 0 {
		pct = pnl / l.initialBalance * 100
	}

	return models.Portfolio{
		TotalEquity:        equity,
		CashBalance:        l.cash,
		TotalPnL:           pnl,
		TotalPnLPercentage: pct,
		Positions:          l.copyPositions(),
	}
}

// TotalEquity returns cash plus the market value of all open positions.
func (l *Ledger) TotalEquity() float64 {
	l.mu.RLock()
	defer l.mu.RUnlock()

	equity := l.cash
	for _, pos := range l.positions {
		equity += pos.Amount * pos.CurrentPrice
	}
	return equity
}

// AvailableCash returns the cash that may be spent after holding back
// the configured reserve share of total equity.
func (l *Ledger) AvailableCash() float64 {
	l.mu.RLock()
	defer l.mu.RUnlock()

	equity := l.cash
	for _, pos := range l.positions {
		equity += pos.Amount * pos.CurrentPrice
	}
	available := l.cash - equity*l.cfg.MinCashReserve
	if available < 0 {
		return 0
	}
	return available
}

// Position returns a copy of the open position for a token.
func (l *Ledger) Position(token string) (models.Position, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	pos, ok := l.positions[token]
	if !ok {
		return models.Position{}, false
	}
	return *pos, true
}

// Positions returns copies of all open positions in entry order.
func (l *Ledger) Positions() []models.Position {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.copyPositions()
}

// Trades returns the newest-first trade log, at most limit entries
// (limit <= 0 returns everything).
func (l *Ledger) Trades(limit int) []models.Trade {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if limit <= 0 || limit > len(l.trades) {
		limit = len(l.trades)
	}
	return append([]models.Trade(nil), l.trades[:limit]...)
}

// copyPositions returns position copies in entry order. Caller holds at
// least the read lock.
func (l *Ledger) copyPositions() []models.Position {
	out := make([]models.Position, 0, len(l.positions))
	for _, token := range l.order {
		if pos, ok := l.positions[token]; ok {
			out = append(out, *pos)
		}
	}
	return out
}
