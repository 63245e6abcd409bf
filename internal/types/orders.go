package types

import "time"

// Side is the direction of an order.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// OrderType is the time-in-force requested by the caller. IOC is accepted
// on the wire but the exchange only understands FAK, so it is resolved to
// FAK before submission.
type OrderType string

const (
	OrderTypeGTC OrderType = "GTC"
	OrderTypeFOK OrderType = "FOK"
	OrderTypeFAK OrderType = "FAK"
	OrderTypeIOC OrderType = "IOC"
)

// Resolve maps caller-facing order types onto what the exchange supports.
func (t OrderType) Resolve() OrderType {
	if t == OrderTypeIOC {
		return OrderTypeFAK
	}
	return t
}

// PlaceOrderRequest is the JSON body of POST /api/v1/orders.
type PlaceOrderRequest struct {
	TokenID       string    `json:"tokenId"`
	Price         float64   `json:"price"`
	Amount        float64   `json:"amount"`
	Side          Side      `json:"side"`
	OrderType     OrderType `json:"orderType"`
	Confirm       bool      `json:"confirm"`
	OrderIntentID string    `json:"orderIntentId,omitempty"`
	ConditionID   string    `json:"conditionId,omitempty"`

	// Copy-trading context, present when the order mirrors another
	// trader's position.
	CopiedTraderWallet   string `json:"copiedTraderWallet,omitempty"`
	CopiedTraderUsername string `json:"copiedTraderUsername,omitempty"`
	Outcome              string `json:"outcome,omitempty"`
	MarketTitle          string `json:"marketTitle,omitempty"`

	AutoCloseEnabled bool    `json:"autoCloseEnabled,omitempty"`
	AutoClosePercent float64 `json:"autoClosePercent,omitempty"`
}

// PlaceOrderResult is the terminal outcome of one order intent. It is both
// the response body and the payload cached against the intent for
// idempotent replay.
type PlaceOrderResult struct {
	OK                  bool      `json:"ok"`
	OrderID             string    `json:"orderId,omitempty"`
	SubmittedAt         time.Time `json:"submittedAt,omitempty"`
	Signer              string    `json:"signer,omitempty"`
	Proxy               string    `json:"proxy,omitempty"`
	SignatureType       int       `json:"signatureType,omitempty"`
	UpstreamStatus      int       `json:"upstreamStatus,omitempty"`
	Error               string    `json:"error,omitempty"`
	ErrorType           string    `json:"errorType,omitempty"`
	BlockedByCloudflare bool      `json:"blockedByCloudflare,omitempty"`
	Raw                 string    `json:"raw,omitempty"`

	// Set only on idempotent replays of a previously resolved intent.
	Idempotent bool `json:"idempotent,omitempty"`
	Cached     bool `json:"cached,omitempty"`
}

// ValidationError describes a single failed field check.
type ValidationError struct {
	Field  string `json:"field"`
	Reason string `json:"reason"`
}
