package traders

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/hiiliketocode/polycopy-sub003/internal/orders"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// JobQueue accepts follow-up work for a trader after a copied order lands.
// The queue is durable; enqueueing must not block on the work itself.
type JobQueue interface {
	Enqueue(wallet string) error
}

// Service persists copy-trading metadata and serves copied-order reads. It
// satisfies the order pipeline's CopyRecorder.
type Service struct {
	db      *Database
	queue   JobQueue
	refresh *Refresher
}

// NewService creates the traders service. queue may be nil when no backfill
// processing is wanted.
func NewService(gormDB *gorm.DB, exchange orders.ExchangeClient, queue JobQueue) *Service {
	db := NewDatabase(gormDB)
	return &Service{
		db:      db,
		queue:   queue,
		refresh: NewRefresher(db, exchange),
	}
}

// SetRefreshCoalesceWindow overrides how long concurrent refreshes for the
// same user share one reconciliation pass.
func (s *Service) SetRefreshCoalesceWindow(d time.Duration) {
	if d > 0 {
		s.refresh.SetCoalesceWindow(d)
	}
}

// RecordCopiedOrder writes the trader and copied-order rows for a placed
// order and queues an aggregate backfill for the trader. Called after the
// order already succeeded, so failures are reported but never undo the
// trade.
func (s *Service) RecordCopiedOrder(ctx context.Context, cc orders.CopyContext) error {
	if cc.OrderID == "" {
		return fmt.Errorf("copied order has no exchange order id")
	}
	if cc.CopiedTraderWallet == "" {
		// Not every order copies someone; nothing to record.
		return nil
	}

	trader, err := s.db.GetOrCreateTraderByWallet(cc.CopiedTraderWallet, cc.CopiedTraderUsername)
	if err != nil {
		return fmt.Errorf("resolving trader %s: %w", cc.CopiedTraderWallet, err)
	}

	record := &CopiedOrderRecord{
		OrderID:          cc.OrderID,
		UserID:           cc.UserID,
		TraderID:         trader.ID,
		TraderWallet:     trader.Wallet,
		TraderUsername:   trader.Username,
		WalletAddress:    cc.WalletAddress,
		ConditionID:      cc.ConditionID,
		TokenID:          cc.TokenID,
		Outcome:          cc.Outcome,
		MarketTitle:      cc.MarketTitle,
		Side:             cc.Side,
		Price:            cc.Price,
		Size:             cc.Size,
		Status:           CopiedOrderOpen,
		AutoCloseEnabled: cc.AutoCloseEnabled,
		AutoClosePercent: cc.AutoClosePercent,
		RawPayload:       cc.RawResult,
	}
	if err := s.db.UpsertCopiedOrder(record); err != nil {
		return fmt.Errorf("persisting copied order %s: %w", cc.OrderID, err)
	}

	log.Info().
		Str("order_id", cc.OrderID).
		Str("trader_wallet", trader.Wallet).
		Str("user_id", cc.UserID).
		Msg("copied order recorded")

	if s.queue != nil {
		if err := s.queue.Enqueue(trader.Wallet); err != nil {
			log.Error().Err(err).Str("trader_wallet", trader.Wallet).Msg("failed to enqueue trader backfill")
		}
	}
	return nil
}

// ListCopiedOrders returns a user's copied orders, newest first.
func (s *Service) ListCopiedOrders(userID string, limit int) ([]CopiedOrderRecord, error) {
	return s.db.ListCopiedOrders(userID, limit)
}

// RefreshCopiedOrders re-reads each open copied order from the exchange.
// Concurrent refreshes for the same user coalesce onto one pass.
func (s *Service) RefreshCopiedOrders(ctx context.Context, userID string) (*RefreshSummary, error) {
	return s.refresh.Refresh(ctx, userID)
}

// RecomputeTraderAggregates rebuilds a trader's copied-order totals from
// the stored records. Used by the backfill processor.
func (s *Service) RecomputeTraderAggregates(wallet string) error {
	wallet = strings.ToLower(wallet)
	trader, err := s.db.getTraderByWallet(wallet)
	if err != nil {
		return err
	}
	if trader == nil {
		return fmt.Errorf("unknown trader wallet %s", wallet)
	}

	records, err := s.db.GetCopiedOrdersByTraderWallet(wallet)
	if err != nil {
		return err
	}

	var volume float64
	for _, r := range records {
		volume += r.Price * r.Size
	}
	return s.db.UpdateTraderAggregates(trader.ID, len(records), volume)
}
