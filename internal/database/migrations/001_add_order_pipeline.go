package migrations

import (
	"github.com/hiiliketocode/polycopy-sub003/internal/orders"
	"gorm.io/gorm"
)

func AddOrderPipeline(db *gorm.DB) error {
	if err := db.AutoMigrate(&orders.OrderIntent{}); err != nil {
		return err
	}

	if err := db.AutoMigrate(&orders.OrderEvent{}); err != nil {
		return err
	}

	// Event lookups are always per-user and time-ordered.
	return db.Exec(
		"CREATE INDEX IF NOT EXISTS idx_order_events_user_created ON order_events (user_id, created_at)",
	).Error
}
