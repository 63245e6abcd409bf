package traders

import (
	"errors"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Database struct {
	db *gorm.DB
}

func NewDatabase(db *gorm.DB) *Database {
	return &Database{db: db}
}

// GetOrCreateTraderByWallet resolves a trader row, creating one on first
// sight. A concurrent create losing the unique-index race falls back to
// re-reading the winner.
func (d *Database) GetOrCreateTraderByWallet(wallet, username string) (*Trader, error) {
	wallet = strings.ToLower(wallet)

	trader, err := d.getTraderByWallet(wallet)
	if err != nil {
		return nil, err
	}
	if trader != nil {
		if username != "" && trader.Username != username {
			trader.Username = username
			if err := d.db.Model(trader).Update("username", username).Error; err != nil {
				return nil, err
			}
		}
		return trader, nil
	}

	trader = &Trader{Wallet: wallet, Username: username}
	if err := d.db.Create(trader).Error; err != nil {
		if !isDuplicateKey(err) {
			return nil, err
		}
		return d.getTraderByWallet(wallet)
	}
	return trader, nil
}

func (d *Database) getTraderByWallet(wallet string) (*Trader, error) {
	var trader Trader
	if err := d.db.Where("wallet = ?", wallet).First(&trader).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &trader, nil
}

func (d *Database) GetTraderByID(id uint) (*Trader, error) {
	var trader Trader
	if err := d.db.First(&trader, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &trader, nil
}

// UpsertCopiedOrder writes a copied-order record keyed on the exchange
// order id. Re-running the same placement result is a no-op apart from the
// mutable columns, so the persister stays idempotent.
func (d *Database) UpsertCopiedOrder(record *CopiedOrderRecord) error {
	return d.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "order_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"size_matched", "status", "trader_username", "market_title",
		}),
	}).Create(record).Error
}

// ListCopiedOrders returns a user's copied orders, newest first.
func (d *Database) ListCopiedOrders(userID string, limit int) ([]CopiedOrderRecord, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	var records []CopiedOrderRecord
	err := d.db.Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Find(&records).Error
	return records, err
}

// GetOpenCopiedOrders returns records that may still change on the
// exchange, for the refresh and backfill paths.
func (d *Database) GetOpenCopiedOrders(userID string) ([]CopiedOrderRecord, error) {
	var records []CopiedOrderRecord
	err := d.db.Where("user_id = ? AND status IN ?", userID, []string{CopiedOrderOpen, CopiedOrderUnknown}).
		Find(&records).Error
	return records, err
}

// GetCopiedOrdersByTraderWallet returns all records attributed to a wallet,
// used by the backfill processor to recompute aggregates.
func (d *Database) GetCopiedOrdersByTraderWallet(wallet string) ([]CopiedOrderRecord, error) {
	var records []CopiedOrderRecord
	err := d.db.Where("trader_wallet = ?", strings.ToLower(wallet)).Find(&records).Error
	return records, err
}

// UpdateCopiedOrderStatus applies a refreshed exchange state to a record.
func (d *Database) UpdateCopiedOrderStatus(orderID, status string, sizeMatched float64) error {
	return d.db.Model(&CopiedOrderRecord{}).
		Where("order_id = ?", orderID).
		Updates(map[string]interface{}{
			"status":       status,
			"size_matched": sizeMatched,
		}).Error
}

// UpdateTraderAggregates stores recomputed per-trader totals.
func (d *Database) UpdateTraderAggregates(traderID uint, count int, volume float64) error {
	return d.db.Model(&Trader{}).
		Where("id = ?", traderID).
		Updates(map[string]interface{}{
			"copied_order_count": count,
			"copied_volume":      volume,
		}).Error
}

func isDuplicateKey(err error) bool {
	return errors.Is(err, gorm.ErrDuplicatedKey) ||
		strings.Contains(err.Error(), "UNIQUE constraint failed") ||
		strings.Contains(err.Error(), "duplicate key")
}
