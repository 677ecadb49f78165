package portfolio

import (
	"context"
	"fmt"
	"sync"

	"crypto-trade-bot-go/internal/models"

	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// Store persists ledger snapshots to sqlite. Writes are decoupled from
// the decision loop through a bounded queue drained by a single
// goroutine, so a slow disk never stalls the next tick. Each snapshot
// is the complete state; a dropped write is healed by the next one.
type Store struct {
	db     *gorm.DB
	logger *zap.Logger
	queue  chan State
	wg     sync.WaitGroup
}

const queueCapacity = 16

// NewStore opens the database and migrates the schema.
func NewStore(dsn string, logger *zap.Logger) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := db.AutoMigrate(&models.Position{}, &models.Trade{}, &models.PortfolioState{}); err != nil {
		return nil, fmt.Errorf("failed to auto-migrate database: %w", err)
	}

	return &Store{
		db:     db,
		logger: logger,
		queue:  make(chan State, queueCapacity),
	}, nil
}

// Load reads the persisted ledger state. A missing or unreadable state
// returns (nil, err) and the caller starts from a fresh default
// portfolio; load failures are never fatal.
func (s *Store) Load() (*State, error) {
	var ps models.PortfolioState
	if err := s.db.First(&ps).Error; err != nil {
		return nil, fmt.Errorf("no persisted portfolio state: %w", err)
	}

	var positions []models.Position
	if err := s.db.Order("id asc").Find(&positions).Error; err != nil {
		return nil, fmt.Errorf("failed to load positions: %w", err)
	}
	var trades []models.Trade
	if err := s.db.Order("id desc").Find(&trades).Error; err != nil {
		return nil, fmt.Errorf("failed to load trades: %w", err)
	}

	return &State{
		CashBalance:    ps.CashBalance,
		InitialBalance: ps.InitialBalance,
		TradeCounter:   ps.TradeCounter,
		Positions:      positions,
		Trades:         trades,
	}, nil
}

// Enqueue hands a snapshot to the store goroutine. If the queue is full
// the snapshot is dropped with a warning; the next accepted trade
// re-snapshots the whole state.
func (s *Store) Enqueue(state State) {
	select {
	case s.queue <- state:
	default:
		s.logger.Warn("Persistence queue full, dropping snapshot")
	}
}

// Run drains the snapshot queue until ctx is cancelled, then flushes
// whatever is still queued.
func (s *Store) Run(ctx context.Context) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			select {
			case state := <-s.queue:
				s.write(state)
			case <-ctx.Done():
				for {
					select {
					case state := <-s.queue:
						s.write(state)
					default:
						return
					}
				}
			}
		}
	}()
}

// Wait blocks until the store goroutine has flushed and exited.
func (s *Store) Wait() {
	s.wg.Wait()
}

// write replaces the persisted state with the snapshot in one
// transaction. Failures are logged and absorbed; the engine continues
// on its in-memory state.
func (s *Store) write(state State) {
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Unscoped().Delete(&models.Position{}).Error; err != nil {
			return err
		}
		if err := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Unscoped().Delete(&models.Trade{}).Error; err != nil {
			return err
		}
		if err := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Unscoped().Delete(&models.PortfolioState{}).Error; err != nil {
			return err
		}

		if err := tx.Create(&models.PortfolioState{
			CashBalance:    state.CashBalance,
			InitialBalance: state.InitialBalance,
			TradeCounter:   state.TradeCounter,
		}).Error; err != nil {
			return err
		}
		for i := range state.Positions {
			pos := state.Positions[i]
			pos.ID = 0
			if err := tx.Create(&pos).Error; err != nil {
				return err
			}
		}
		// Stored oldest-first so a load ordered by id desc rebuilds the
		// newest-first log.
		for i := len(state.Trades) - 1; i >= 0; i-- {
			trade := state.Trades[i]
			trade.ID = 0
			if err := tx.Create(&trade).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		s.logger.Error("Failed to persist portfolio snapshot", zap.Error(err))
	}
}
