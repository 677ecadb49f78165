package trader

import (
	"testing"
	"time"

	"crypto-trade-bot-go/internal/models"
	"crypto-trade-bot-go/internal/portfolio"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newPaper(t *testing.T) (*PaperExecutioner, *portfolio.Ledger, *Manager) {
	cfg := testPolicy()
	ledger := portfolio.NewLedger(cfg, zap.NewNop())
	manager := NewManager(cfg, zap.NewNop())
	return NewPaperExecutioner(ledger, manager, zap.NewNop()), ledger, manager
}

func buySignal(token string) models.Signal {
	return models.Signal{
		Token:    token,
		Action:   models.ActionBuy,
		Strength: 70,
		Reasons:  []string{"RSI oversold: 25.0 < 30.0"},
	}
}

func TestExecuteTrade_EntryOpensPosition(t *testing.T) {
	exec, ledger, _ := newPaper(t)
	now := time.Now()

	trade, err := exec.ExecuteTrade(buySignal("SOL"), 10.0, now)
	require.NoError(t, err)

	// 15% of the 80 available after the 20% reserve.
	assert.InDelta(t, 12.0, trade.Total, 1e-9)
	pos, ok := ledger.Position("SOL")
	require.True(t, ok)
	assert.InDelta(t, 10.0, pos.AvgBuyPrice, 1e-9)
	assert.Equal(t, "RSI oversold: 25.0 < 30.0", trade.Reason)
}

func TestExecuteTrade_CooldownBlocksRepeat(t *testing.T) {
	exec, _, _ := newPaper(t)
	now := time.Now()

	_, err := exec.ExecuteTrade(buySignal("SOL"), 10.0, now)
	require.NoError(t, err)

	sell := models.Signal{Token: "SOL", Action: models.ActionSell, Strength: 65}
	_, err = exec.ExecuteTrade(sell, 11.0, now.Add(10*time.Second))
	assert.ErrorContains(t, err, "cooldown")

	// A different symbol is unaffected.
	_, err = exec.ExecuteTrade(buySignal("ETH"), 5.0, now.Add(10*time.Second))
	assert.NoError(t, err)

	// And the window expires.
	_, err = exec.ExecuteTrade(sell, 11.0, now.Add(61*time.Second))
	assert.NoError(t, err)
}

func TestExecuteTrade_RejectsEntryOverOpenPosition(t *testing.T) {
	exec, _, _ := newPaper(t)
	now := time.Now()

	_, err := exec.ExecuteTrade(buySignal("SOL"), 10.0, now)
	require.NoError(t, err)

	_, err = exec.ExecuteTrade(buySignal("SOL"), 9.0, now.Add(61*time.Second))
	assert.ErrorContains(t, err, "DCA ladder")
}

func TestExecuteTrade_SellWithoutPositionFails(t *testing.T) {
	exec, _, _ := newPaper(t)

	sell := models.Signal{Token: "SOL", Action: models.ActionSell, Strength: 65}
	_, err := exec.ExecuteTrade(sell, 10.0, time.Now())
	assert.Error(t, err)
}

func TestExecuteTrade_HoldIsNotExecutable(t *testing.T) {
	exec, _, _ := newPaper(t)

	hold := models.Signal{Token: "SOL", Action: models.ActionHold}
	_, err := exec.ExecuteTrade(hold, 10.0, time.Now())
	assert.Error(t, err)
}

func TestMonitor_ExecutesDCAReentry(t *testing.T) {
	exec, ledger, _ := newPaper(t)
	now := time.Now()

	_, err := exec.ExecuteTrade(buySignal("SOL"), 10.0, now)
	require.NoError(t, err)

	samples := []models.MarketData{{Token: "SOL", Price: 9.7}}
	exec.PriceUpdate(samples)

	// Still inside the cooldown window from the entry.
	assert.Nil(t, exec.Monitor(samples, now.Add(10*time.Second)))

	trade := exec.Monitor(samples, now.Add(61*time.Second))
	require.NotNil(t, trade)
	assert.Equal(t, models.ActionBuy, trade.Action)
	assert.Contains(t, trade.Reason, "DCA level 1")

	pos, ok := ledger.Position("SOL")
	require.True(t, ok)
	assert.Equal(t, 1, pos.DCALevel)
}

func TestMonitor_ExecutesHardStopExit(t *testing.T) {
	exec, ledger, _ := newPaper(t)
	now := time.Now()

	_, err := exec.ExecuteTrade(buySignal("SOL"), 10.0, now)
	require.NoError(t, err)

	samples := []models.MarketData{{Token: "SOL", Price: 8.0}}
	exec.PriceUpdate(samples)

	trade := exec.Monitor(samples, now.Add(61*time.Second))
	require.NotNil(t, trade)
	assert.Equal(t, models.ActionSell, trade.Action)
	assert.Contains(t, trade.Reason, "hard stop loss")

	_, ok := ledger.Position("SOL")
	assert.False(t, ok)
}

func TestMonitor_NoPositionsIsANoOp(t *testing.T) {
	exec, _, _ := newPaper(t)

	samples := []models.MarketData{{Token: "SOL", Price: 10.0}}
	assert.Nil(t, exec.Monitor(samples, time.Now()))
}
