package migrations

import (
	"github.com/hiiliketocode/polycopy-sub003/internal/backfill"
	"github.com/hiiliketocode/polycopy-sub003/internal/traders"
	"gorm.io/gorm"
)

func AddCopyMetadata(db *gorm.DB) error {
	if err := db.AutoMigrate(&traders.Trader{}); err != nil {
		return err
	}

	if err := db.AutoMigrate(&traders.CopiedOrderRecord{}); err != nil {
		return err
	}

	return db.AutoMigrate(&backfill.Job{})
}
