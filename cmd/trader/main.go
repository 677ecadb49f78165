package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"crypto-trade-bot-go/internal/advisor"
	"crypto-trade-bot-go/internal/broadcast"
	"crypto-trade-bot-go/internal/config"
	"crypto-trade-bot-go/internal/feed"
	"crypto-trade-bot-go/internal/logger"
	"crypto-trade-bot-go/internal/portfolio"
	"crypto-trade-bot-go/internal/sentiment"
	"crypto-trade-bot-go/internal/trader"

	"go.uber.org/zap"
)

func main() {
	// Load application configuration
	cfg, err := config.LoadConfig("./configs")
	if err != nil {
		// We can't use the logger here because it's not initialized yet.
		panic(fmt.Sprintf("could not load config: %v", err))
	}

	// Initialize logger
	log, err := logger.NewLogger(cfg.Logger.Level, cfg.Logger.Format)
	if err != nil {
		panic(err)
	}
	defer log.Sync()
	log.Info("Configuration loaded")

	// Open the portfolio store and restore the last persisted state.
	ledger := portfolio.NewLedger(cfg.Trading, logger.ForComponent(log, "ledger"))
	store, err := portfolio.NewStore(cfg.Database.DSN, logger.ForComponent(log, "store"))
	if err != nil {
		log.Fatal("Failed to open portfolio store", zap.Error(err))
	}
	if state, err := store.Load(); err != nil {
		log.Warn("Could not load persisted portfolio, starting fresh", zap.Error(err))
	} else {
		ledger.Restore(*state)
		log.Info("Restored portfolio",
			zap.Float64("cash", state.CashBalance),
			zap.Int("positions", len(state.Positions)),
			zap.Int("trades", len(state.Trades)))
	}

	// External collaborators: price feed, sentiment feed, advisory.
	priceClient := feed.NewClient(&cfg.Feed, logger.ForComponent(log, "feed"))
	sentimentClient := sentiment.NewClient(&cfg.Sentiment, logger.ForComponent(log, "sentiment"))
	advisoryClient := advisor.NewClient(&cfg.Advisor, logger.ForComponent(log, "advisor"))
	arbiter := advisor.NewArbiter(advisoryClient, cfg.Advisor.Enabled && cfg.Advisor.BaseURL != "", logger.ForComponent(log, "arbiter"))

	hub := broadcast.NewHub(logger.ForComponent(log, "hub"))

	engine, err := trader.NewEngine(log.Named("engine"), &cfg, priceClient, sentimentClient, arbiter, ledger, store, hub)
	if err != nil {
		log.Fatal("Failed to initialize engine", zap.Error(err))
	}

	// Setup context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		sigchan := make(chan os.Signal, 1)
		signal.Notify(sigchan, syscall.SIGINT, syscall.SIGTERM)
		<-sigchan
		log.Info("Shutdown signal received, gracefully shutting down...")
		cancel()
	}()

	go hub.Run(ctx)
	store.Run(ctx)

	apiServer := trader.NewAPIServer(engine, hub, log)
	apiServer.Start()

	if err := engine.Start(); err != nil {
		log.Fatal("Failed to start engine", zap.Error(err))
	}
	engine.Run(ctx)

	// Drain: flush queued snapshots, then stop the API server.
	store.Wait()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := apiServer.Stop(shutdownCtx); err != nil {
		log.Error("API server shutdown failed", zap.Error(err))
	}

	log.Info("Bot has been shut down.")
}
