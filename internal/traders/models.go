package traders

import (
	"gorm.io/gorm"
)

// Copied-order status values. OPEN means the order may still be resting on
// the book; terminal states come from exchange refreshes.
const (
	CopiedOrderOpen      = "OPEN"
	CopiedOrderMatched   = "MATCHED"
	CopiedOrderCancelled = "CANCELLED"
	CopiedOrderUnknown   = "UNKNOWN"
)

// Trader is a wallet being copied. Wallets are stored lowercased so lookups
// are case-insensitive.
type Trader struct {
	gorm.Model `json:"-"`
	Wallet     string `gorm:"uniqueIndex" json:"wallet"`
	Username   string `json:"username"`
	// Aggregates maintained by the backfill processor.
	CopiedOrderCount int     `json:"copied_order_count"`
	CopiedVolume     float64 `json:"copied_volume"`
}

// CopiedOrderRecord links one of our exchange orders back to the trader it
// copied. OrderID is the exchange order id and the upsert key.
type CopiedOrderRecord struct {
	gorm.Model       `json:"-"`
	OrderID          string  `gorm:"uniqueIndex" json:"order_id"`
	UserID           string  `gorm:"index" json:"user_id"`
	TraderID         uint    `gorm:"index" json:"trader_id"`
	TraderWallet     string  `json:"trader_wallet"`
	TraderUsername   string  `json:"trader_username"`
	WalletAddress    string  `json:"wallet_address"`
	ConditionID      string  `json:"condition_id"`
	TokenID          string  `json:"token_id"`
	Outcome          string  `json:"outcome"`
	MarketTitle      string  `json:"market_title"`
	Side             string  `json:"side"`
	Price            float64 `json:"price"`
	Size             float64 `json:"size"`
	SizeMatched      float64 `json:"size_matched"`
	Status           string  `json:"status"`
	AutoCloseEnabled bool    `json:"auto_close_enabled"`
	AutoClosePercent float64 `json:"auto_close_percent"`
	RawPayload       string  `json:"-"`
}
