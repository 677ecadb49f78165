package trader

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"crypto-trade-bot-go/internal/advisor"
	"crypto-trade-bot-go/internal/broadcast"
	"crypto-trade-bot-go/internal/config"
	"crypto-trade-bot-go/internal/feed"
	"crypto-trade-bot-go/internal/indicators"
	"crypto-trade-bot-go/internal/models"
	"crypto-trade-bot-go/internal/portfolio"
	"crypto-trade-bot-go/internal/sentiment"
	"crypto-trade-bot-go/internal/signal"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// EngineState is the owned control state, mutated only through the
// transition functions and applied between ticks.
type EngineState struct {
	Active bool   `json:"active"`
	Mode   string `json:"mode"`
}

// Engine drives the scan-tick pipeline: price fetch, indicator update,
// monitor pass, signal generation, arbitration, execution, broadcast.
// A single logical scheduler runs the trading logic; a tick never
// starts while the previous one is still executing.
type Engine struct {
	UUID      string
	StartTime time.Time

	logger     *zap.Logger
	cfg        *config.Config
	feed       feed.PriceClient
	sentiment  sentiment.Provider
	arbiter    *advisor.Arbiter
	indicators *indicators.Engine
	generator  *signal.Generator
	ledger     *portfolio.Ledger
	manager    *Manager
	store      *portfolio.Store
	hub        *broadcast.Hub

	mu    sync.Mutex // guards state and exec
	state EngineState
	exec  Executioner

	inFlight     atomic.Bool
	skippedTicks atomic.Int64
	tickCount    atomic.Int64

	signalsMu   sync.RWMutex
	lastSignals map[string]models.Signal
}

// NewEngine wires the trading engine. store and hub may be nil (no
// persistence, no live feed); the tick pipeline does not depend on
// either.
func NewEngine(
	logger *zap.Logger,
	cfg *config.Config,
	priceClient feed.PriceClient,
	sentimentProvider sentiment.Provider,
	arbiter *advisor.Arbiter,
	ledger *portfolio.Ledger,
	store *portfolio.Store,
	hub *broadcast.Hub,
) (*Engine, error) {
	mode := cfg.Engine.Mode
	if mode == "" {
		mode = ModePaper
	}
	if mode != ModePaper && mode != ModeLive {
		return nil, fmt.Errorf("unknown engine mode %q", mode)
	}

	manager := NewManager(cfg.Trading, logger.Named("positions"))
	paper := NewPaperExecutioner(ledger, manager, logger.Named("paper"))

	e := &Engine{
		UUID:        uuid.NewString(),
		StartTime:   time.Now(),
		logger:      logger,
		cfg:         cfg,
		feed:        priceClient,
		sentiment:   sentimentProvider,
		arbiter:     arbiter,
		indicators:  indicators.NewEngine(cfg.Trading.MaxHistory),
		generator:   signal.NewGenerator(cfg.Trading),
		ledger:      ledger,
		manager:     manager,
		store:       store,
		hub:         hub,
		state:       EngineState{Active: false, Mode: mode},
		lastSignals: make(map[string]models.Signal),
	}

	if mode == ModeLive {
		if cfg.Live.ApiKey == "" || cfg.Live.SecretKey == "" {
			return nil, fmt.Errorf("live mode requires exchange credentials")
		}
		e.exec = NewLiveExecutioner(paper, logger.Named("live"))
	} else {
		e.exec = paper
	}

	return e, nil
}

// Start activates trading. The first tick after activation runs the
// full pipeline.
func (e *Engine) Start() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state.Active {
		return fmt.Errorf("engine is already active")
	}
	e.state.Active = true
	e.logger.Info("Engine started", zap.String("mode", e.state.Mode))
	e.broadcastState(e.state)
	return nil
}

// Stop deactivates trading. A tick already in flight completes;
// cancellation is cooperative only.
func (e *Engine) Stop() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.state.Active {
		return fmt.Errorf("engine is not active")
	}
	e.state.Active = false
	e.logger.Info("Engine stopped")
	e.broadcastState(e.state)
	return nil
}

// SwitchMode swaps the paper/live executioner. Rejected while active so
// the swap always lands between ticks; live mode additionally requires
// exchange credentials, and a failed switch leaves paper mode operable.
func (e *Engine) SwitchMode(mode string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state.Active {
		return fmt.Errorf("cannot switch mode while engine is active")
	}
	if mode != ModePaper && mode != ModeLive {
		return fmt.Errorf("unknown mode %q", mode)
	}
	if mode == e.state.Mode {
		return nil
	}

	paper := NewPaperExecutioner(e.ledger, e.manager, e.logger.Named("paper"))
	if mode == ModeLive {
		if e.cfg.Live.ApiKey == "" || e.cfg.Live.SecretKey == "" {
			return fmt.Errorf("live mode requires exchange credentials")
		}
		e.exec = NewLiveExecutioner(paper, e.logger.Named("live"))
	} else {
		e.exec = paper
	}

	e.state.Mode = mode
	e.logger.Info("Engine mode switched", zap.String("mode", mode))
	e.broadcastState(e.state)
	return nil
}

// State returns a copy of the control state.
func (e *Engine) State() EngineState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// SkippedTicks returns how many ticks were skipped because the previous
// tick was still in flight.
func (e *Engine) SkippedTicks() int64 {
	return e.skippedTicks.Load()
}

// TickCount returns how many ticks have executed trading logic.
func (e *Engine) TickCount() int64 {
	return e.tickCount.Load()
}

// Portfolio returns the current derived portfolio view.
func (e *Engine) Portfolio() models.Portfolio {
	return e.ledger.Portfolio()
}

// Trades returns the newest-first trade log.
func (e *Engine) Trades(limit int) []models.Trade {
	return e.ledger.Trades(limit)
}

// Signals returns the latest signal per symbol.
func (e *Engine) Signals() []models.Signal {
	e.signalsMu.RLock()
	defer e.signalsMu.RUnlock()

	out := make([]models.Signal, 0, len(e.lastSignals))
	for _, sym := range e.cfg.Engine.Symbols {
		if sig, ok := e.lastSignals[sym]; ok {
			out = append(out, sig)
		}
	}
	return out
}

// Run drives the fixed-interval scan loop until ctx is cancelled. A
// tick arriving while the previous one is still executing is skipped,
// never run concurrently.
func (e *Engine) Run(ctx context.Context) {
	interval := time.Duration(e.cfg.Engine.TickInterval) * time.Second
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	e.logger.Info("Starting scan loop",
		zap.Duration("interval", interval),
		zap.Strings("symbols", e.cfg.Engine.Symbols))

	for {
		select {
		case <-ctx.Done():
			e.logger.Info("Stopping trading engine...")
			return
		case <-ticker.C:
			if !e.State().Active {
				continue
			}
			e.tryTick(ctx)
		}
	}
}

// tryTick dispatches one tick unless the previous one is still in
// flight. An overlapping tick is counted and skipped, never run
// concurrently.
func (e *Engine) tryTick(ctx context.Context) bool {
	if !e.inFlight.CompareAndSwap(false, true) {
		e.skippedTicks.Add(1)
		e.logger.Warn("Previous tick still in flight, skipping",
			zap.Int64("skipped_total", e.skippedTicks.Load()))
		return false
	}
	go func() {
		defer e.inFlight.Store(false)
		e.tick(ctx)
	}()
	return true
}

// tick runs one full scan: fetch, indicators, monitor, signals,
// arbitration, execution, broadcast. The two network calls (price
// fetch, advisory) happen sequentially inside the tick.
func (e *Engine) tick(ctx context.Context) {
	now := time.Now()
	exec := e.currentExec()

	samples, err := e.feed.FetchPrices(ctx, e.cfg.Engine.Symbols)
	if err != nil {
		e.logger.Error("Price fetch failed, skipping tick", zap.Error(err))
		return
	}

	e.indicators.Update(samples)
	exec.PriceUpdate(samples)
	e.tickCount.Add(1)
	e.broadcastEvent("market_update", samples)

	// System-wide warmup: no directional decisions until enough history
	// has accumulated on average across the basket.
	if e.indicators.AvgHistoryLen(e.cfg.Engine.Symbols) < float64(e.cfg.Trading.WarmupPeriod) {
		for _, s := range samples {
			e.setSignal(signal.WarmupHold(s.Token))
		}
		e.logger.Debug("Warming up",
			zap.Float64("avg_history", e.indicators.AvgHistoryLen(e.cfg.Engine.Symbols)),
			zap.Int("warmup_period", e.cfg.Trading.WarmupPeriod))
		e.broadcastEvent("portfolio_update", exec.Portfolio())
		return
	}

	// Monitor pass first: stop and DCA handling outranks new entries,
	// and at most one forced action happens per tick.
	if trade := exec.Monitor(samples, now); trade != nil {
		e.afterTrade(*trade, models.Signal{Token: trade.Token, Action: trade.Action, Reasons: []string{trade.Reason}}, exec)
		return
	}

	// Score every symbol and collect the non-hold candidates in feed
	// order.
	var candidates []models.Signal
	for _, s := range samples {
		var pos *models.Position
		if p, ok := e.ledger.Position(s.Token); ok {
			pos = &p
		}
		label := e.sentiment.Get(ctx, s.Token)
		ind := e.indicators.Snapshot(s.Token, e.cfg.Trading.RSIPeriod, e.cfg.Trading.SMAPeriod)

		sig := e.generator.Generate(s, ind, pos, label)
		e.setSignal(sig)
		if !sig.IsHold() {
			candidates = append(candidates, sig)
		}
	}

	if len(candidates) == 0 {
		e.broadcastEvent("portfolio_update", exec.Portfolio())
		return
	}

	chosen := e.arbiter.Choose(ctx, candidates)
	price, ok := priceFor(samples, chosen.Token)
	if !ok {
		e.logger.Warn("No price for chosen candidate", zap.String("token", chosen.Token))
		return
	}

	trade, err := exec.ExecuteTrade(chosen, price, now)
	if err != nil {
		// Sizing and cooldown rejections drop the signal for this tick.
		e.logger.Debug("Trade not executed",
			zap.String("token", chosen.Token),
			zap.String("action", chosen.Action),
			zap.Error(err))
		e.broadcastEvent("portfolio_update", exec.Portfolio())
		return
	}
	e.afterTrade(*trade, chosen, exec)
}

// afterTrade persists and broadcasts the effects of an accepted trade.
func (e *Engine) afterTrade(trade models.Trade, cause models.Signal, exec Executioner) {
	if e.store != nil {
		e.store.Enqueue(e.ledger.Snapshot())
	}
	e.broadcastEvent("trade_executed", map[string]interface{}{
		"trade":  trade,
		"signal": cause,
	})
	e.broadcastEvent("portfolio_update", exec.Portfolio())
}

func (e *Engine) currentExec() Executioner {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.exec
}

func (e *Engine) setSignal(sig models.Signal) {
	e.signalsMu.Lock()
	e.lastSignals[sig.Token] = sig
	e.signalsMu.Unlock()
}

func (e *Engine) broadcastEvent(eventType string, data interface{}) {
	if e.hub != nil {
		e.hub.Broadcast(eventType, data)
	}
}

// broadcastState emits an engine_state event. Caller holds e.mu.
func (e *Engine) broadcastState(state EngineState) {
	if e.hub != nil {
		e.hub.Broadcast("engine_state", state)
	}
}

func priceFor(samples []models.MarketData, token string) (float64, bool) {
	for _, s := range samples {
		if s.Token == token {
			return s.Price, true
		}
	}
	return 0, false
}
