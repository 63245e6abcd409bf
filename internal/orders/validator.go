package orders

import (
	"fmt"
	"math"

	"github.com/hiiliketocode/polycopy-sub003/internal/types"
)

// Validation bounds. Prices live strictly inside the (0.01, 0.99) band a
// prediction-market contract can trade at; amounts are capped to keep a
// fat-fingered request from reaching the exchange.
const (
	minPrice  = 0.01
	maxPrice  = 0.99
	minAmount = 0.01
	maxAmount = 1_000_000
)

// maxTokenIDLen bounds the decimal token id string (ERC-1155 ids are
// uint256, 78 decimal digits at most).
const maxTokenIDLen = 78

// ValidateOrderRequest checks every field of an incoming order request and
// returns all failures in field order. It never mutates state; a non-empty
// return means the request must be rejected before any side effect.
func ValidateOrderRequest(req *types.PlaceOrderRequest) []types.ValidationError {
	var errs []types.ValidationError

	if !isTokenID(req.TokenID) {
		errs = append(errs, types.ValidationError{
			Field:  "tokenId",
			Reason: "must be a non-empty decimal token id",
		})
	}

	if math.IsNaN(req.Price) || math.IsInf(req.Price, 0) || req.Price <= minPrice || req.Price >= maxPrice {
		errs = append(errs, types.ValidationError{
			Field:  "price",
			Reason: fmt.Sprintf("must be between %v and %v exclusive", minPrice, maxPrice),
		})
	}

	if math.IsNaN(req.Amount) || math.IsInf(req.Amount, 0) || req.Amount <= minAmount || req.Amount > maxAmount {
		errs = append(errs, types.ValidationError{
			Field:  "amount",
			Reason: fmt.Sprintf("must be greater than %v and at most %v", minAmount, float64(maxAmount)),
		})
	}

	switch req.Side {
	case types.SideBuy, types.SideSell:
	default:
		errs = append(errs, types.ValidationError{
			Field:  "side",
			Reason: "must be BUY or SELL",
		})
	}

	switch req.OrderType {
	case types.OrderTypeGTC, types.OrderTypeFOK, types.OrderTypeFAK, types.OrderTypeIOC:
	default:
		errs = append(errs, types.ValidationError{
			Field:  "orderType",
			Reason: "must be one of GTC, FOK, FAK, IOC",
		})
	}

	// Deliberate double-guard: a request without an explicit confirm flag
	// never reaches the exchange, even if everything else is valid.
	if !req.Confirm {
		errs = append(errs, types.ValidationError{
			Field:  "confirm",
			Reason: "must be true to place an order",
		})
	}

	return errs
}

func isTokenID(s string) bool {
	if len(s) == 0 || len(s) > maxTokenIDLen {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
