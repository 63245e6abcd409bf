package orders

import (
	"time"

	"gorm.io/gorm"
)

// Intent statuses. An intent is claimed in-flight exactly once and moves to
// exactly one terminal state; it is never deleted (audit trail).
const (
	IntentInFlight  = "IN_FLIGHT"
	IntentSucceeded = "SUCCEEDED"
	IntentFailed    = "FAILED"
)

// Event statuses. ATTEMPTED is written before the upstream call; the row is
// then updated once to SUBMITTED or REJECTED and never touched again.
const (
	EventAttempted = "ATTEMPTED"
	EventSubmitted = "SUBMITTED"
	EventRejected  = "REJECTED"
)

// OrderIntent is one logical "place this order" request. The unique index
// on IntentID is what makes the idempotency guard atomic across concurrent
// process instances.
type OrderIntent struct {
	gorm.Model `json:"-"`
	IntentID   string `gorm:"uniqueIndex" json:"intent_id"`
	UserID     string `gorm:"index" json:"user_id"`
	Status     string `json:"status"`
	// Result caches the serialized terminal PlaceOrderResult for replay.
	Result string `json:"result,omitempty"`
}

// OrderEvent is the audit row for one submission attempt.
type OrderEvent struct {
	gorm.Model     `json:"-"`
	EventID        string    `gorm:"uniqueIndex" json:"event_id"`
	UserID         string    `gorm:"index" json:"user_id"`
	WalletAddress  string    `json:"wallet_address"`
	IntentID       string    `gorm:"index" json:"intent_id"`
	RequestID      string    `json:"request_id"`
	ConditionID    string    `json:"condition_id"`
	TokenID        string    `json:"token_id"`
	Side           string    `json:"side"`
	OrderType      string    `json:"order_type"`
	LimitPrice     float64   `json:"limit_price"`
	Size           float64   `json:"size"`
	Status         string    `json:"status"`
	UpstreamStatus int       `json:"upstream_status"`
	ErrorCode      string    `json:"error_code,omitempty"`
	ErrorMessage   string    `json:"error_message,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}
