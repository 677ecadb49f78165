package trader

import (
	"fmt"
	"time"

	"crypto-trade-bot-go/internal/config"
	"crypto-trade-bot-go/internal/models"

	"go.uber.org/zap"
)

// Monitor action types, in the priority order they are evaluated.
const (
	ActionHardStop     = "hard_stop"
	ActionTrailingStop = "trailing_stop"
	ActionDCA          = "dca"
)

// MonitorAction is a forced action produced by the per-scan monitor
// pass: an exit (hard stop or trailing stop) or a martingale re-entry.
type MonitorAction struct {
	Type     string
	Token    string
	Reason   string
	Invest   float64 // cash outlay for DCA buys
	DCALevel int     // ladder level after a DCA buy
}

// Manager runs the per-symbol position state machine: DCA ladder
// advancement, trailing-stop and hard-stop exits, entry and re-entry
// sizing, and the per-token cooldown gate shared by every trade path.
type Manager struct {
	cfg       config.Trading
	logger    *zap.Logger
	lastTrade map[string]time.Time
}

// NewManager creates a position manager.
func NewManager(cfg config.Trading, logger *zap.Logger) *Manager {
	return &Manager{
		cfg:       cfg,
		logger:    logger,
		lastTrade: make(map[string]time.Time),
	}
}

// MarkTraded records the trade timestamp that opens a symbol's cooldown
// window. Called on every accepted trade regardless of path.
func (m *Manager) MarkTraded(token string, now time.Time) {
	m.lastTrade[token] = now
}

// InCooldown reports whether a new trade on the symbol is still inside
// the cooldown window.
func (m *Manager) InCooldown(token string, now time.Time) bool {
	last, ok := m.lastTrade[token]
	if !ok {
		return false
	}
	return now.Sub(last) < time.Duration(m.cfg.CooldownSeconds)*time.Second
}

// CooldownBlocks applies the cooldown policy to any trade-issuing path:
// with the uniform default every path is gated; with the explicit
// exits-exempt configuration only buys (entries and DCA) are gated.
func (m *Manager) CooldownBlocks(isExit bool, token string, now time.Time) bool {
	if !m.InCooldown(token, now) {
		return false
	}
	if m.cfg.CooldownOnExits {
		return true
	}
	return !isExit
}

// Monitor evaluates every open position in feed order and returns the
// first forced action, or nil. At most one forced action per scan tick;
// symbols blocked by cooldown produce no action and do not
// short-circuit the pass.
func (m *Manager) Monitor(samples []models.MarketData, positions map[string]models.Position, availableCash, equity float64, now time.Time) *MonitorAction {
	for _, s := range samples {
		pos, ok := positions[s.Token]
		if !ok {
			continue
		}
		action := m.decide(&pos, availableCash, equity)
		if action == nil {
			continue
		}
		if m.CooldownBlocks(action.Type != ActionDCA, action.Token, now) {
			m.logger.Debug("Monitor action blocked by cooldown",
				zap.String("token", action.Token), zap.String("type", action.Type))
			continue
		}
		return action
	}
	return nil
}

// decide checks one open position against the exit and re-entry rules.
// Priority: hard stop (unconditional safety valve), then trailing stop,
// then the DCA ladder.
func (m *Manager) decide(pos *models.Position, availableCash, equity float64) *MonitorAction {
	if pos.PnLPercentage <= m.cfg.HardStopLoss*100 {
		return &MonitorAction{
			Type:  ActionHardStop,
			Token: pos.Token,
			Reason: fmt.Sprintf("hard stop loss: %.2f%% breaches %.2f%% limit",
				pos.PnLPercentage, m.cfg.HardStopLoss*100),
		}
	}

	// Peak update happens on price update, before this evaluation, so
	// the retracement is always measured against the true peak.
	if pos.PnLPercentage > m.cfg.TrailingActivate*100 {
		retrace := pos.PeakRetracement()
		if retrace < -m.cfg.TrailingCallback {
			return &MonitorAction{
				Type:  ActionTrailingStop,
				Token: pos.Token,
				Reason: fmt.Sprintf("trailing stop: %.2f%% off peak %.6f, locking %.2f%% profit",
					retrace*100, pos.HighestPrice, pos.PnLPercentage),
			}
		}
	}

	return m.planDCA(pos, availableCash, equity)
}

// planDCA advances the martingale ladder when the drawdown from the
// initial entry has crossed an unconsumed zone. A gap through several
// zones triggers the deepest crossed one; consumed zones never
// re-trigger because the level index only moves forward.
func (m *Manager) planDCA(pos *models.Position, availableCash, equity float64) *MonitorAction {
	level := pos.DCALevel
	if level >= len(m.cfg.DCAZones) {
		return nil
	}

	drawdown := pos.Drawdown()
	deepest := -1
	for j := level; j < len(m.cfg.DCAZones); j++ {
		if drawdown <= m.cfg.DCAZones[j] {
			deepest = j
		}
	}
	if deepest < 0 {
		return nil
	}

	invest := pos.TotalCost / float64(deepest+1) * m.cfg.DCAMultipliers[deepest]
	if invest > availableCash*0.8 {
		invest = availableCash * 0.8
	}
	if invest <= 0 {
		return nil
	}

	projected := pos.Amount*pos.CurrentPrice + invest
	if projected > equity*m.cfg.MaxPositionShare*2 {
		m.logger.Debug("DCA rejected: would exceed doubled position limit",
			zap.String("token", pos.Token),
			zap.Float64("projected", projected),
			zap.Float64("limit", equity*m.cfg.MaxPositionShare*2))
		return nil
	}

	return &MonitorAction{
		Type:     ActionDCA,
		Token:    pos.Token,
		Invest:   invest,
		DCALevel: deepest + 1,
		Reason: fmt.Sprintf("DCA level %d: drawdown %.2f%% crossed zone %.2f%%",
			deepest+1, drawdown*100, m.cfg.DCAZones[deepest]*100),
	}
}

// PlanEntry sizes a brand-new position: a share of available cash,
// capped by the per-position equity ceiling. Returns 0 when nothing
// tradable remains.
func (m *Manager) PlanEntry(availableCash, equity float64) float64 {
	invest := availableCash * m.cfg.BuyPercent
	if ceiling := equity * m.cfg.MaxPositionShare; invest > ceiling {
		invest = ceiling
	}
	if invest <= 0 {
		return 0
	}
	return invest
}
