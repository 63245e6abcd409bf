package orders

import (
	"math"
	"strings"
	"testing"

	"github.com/hiiliketocode/polycopy-sub003/internal/types"
	"github.com/stretchr/testify/assert"
)

func validRequest() *types.PlaceOrderRequest {
	return &types.PlaceOrderRequest{
		TokenID:   "71321045679252212594626385532706912750332728571942532289631379312455583992563",
		Price:     0.45,
		Amount:    25,
		Side:      types.SideBuy,
		OrderType: types.OrderTypeGTC,
		Confirm:   true,
	}
}

func TestValidateOrderRequest_Valid(t *testing.T) {
	assert.Empty(t, ValidateOrderRequest(validRequest()))
}

func TestValidateOrderRequest_TokenID(t *testing.T) {
	tests := []struct {
		name    string
		tokenID string
		wantErr bool
	}{
		{"empty", "", true},
		{"hex prefix", "0xabc123", true},
		{"negative", "-5", true},
		{"too long", strings.Repeat("9", 79), true},
		{"max length", strings.Repeat("9", 78), false},
		{"plain digits", "12345", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := validRequest()
			req.TokenID = tt.tokenID
			errs := ValidateOrderRequest(req)
			if tt.wantErr {
				assert.Len(t, errs, 1)
				assert.Equal(t, "tokenId", errs[0].Field)
			} else {
				assert.Empty(t, errs)
			}
		})
	}
}

func TestValidateOrderRequest_PriceBounds(t *testing.T) {
	for _, price := range []float64{0, 0.01, 0.99, 1.0, -0.5, math.NaN(), math.Inf(1)} {
		req := validRequest()
		req.Price = price
		errs := ValidateOrderRequest(req)
		assert.Len(t, errs, 1, "price %v should be rejected", price)
		assert.Equal(t, "price", errs[0].Field)
	}

	for _, price := range []float64{0.011, 0.5, 0.989} {
		req := validRequest()
		req.Price = price
		assert.Empty(t, ValidateOrderRequest(req), "price %v should be accepted", price)
	}
}

func TestValidateOrderRequest_AmountBounds(t *testing.T) {
	for _, amount := range []float64{0, 0.01, -10, 1_000_001, math.NaN(), math.Inf(-1)} {
		req := validRequest()
		req.Amount = amount
		errs := ValidateOrderRequest(req)
		assert.Len(t, errs, 1, "amount %v should be rejected", amount)
		assert.Equal(t, "amount", errs[0].Field)
	}

	req := validRequest()
	req.Amount = 1_000_000
	assert.Empty(t, ValidateOrderRequest(req))
}

func TestValidateOrderRequest_SideAndType(t *testing.T) {
	req := validRequest()
	req.Side = "HOLD"
	errs := ValidateOrderRequest(req)
	assert.Len(t, errs, 1)
	assert.Equal(t, "side", errs[0].Field)

	req = validRequest()
	req.OrderType = "LIMIT"
	errs = ValidateOrderRequest(req)
	assert.Len(t, errs, 1)
	assert.Equal(t, "orderType", errs[0].Field)

	// IOC is accepted on the wire even though the exchange only takes FAK.
	req = validRequest()
	req.OrderType = types.OrderTypeIOC
	assert.Empty(t, ValidateOrderRequest(req))
}

func TestValidateOrderRequest_ConfirmRequired(t *testing.T) {
	req := validRequest()
	req.Confirm = false
	errs := ValidateOrderRequest(req)
	assert.Len(t, errs, 1)
	assert.Equal(t, "confirm", errs[0].Field)
}

func TestValidateOrderRequest_CollectsAllFailures(t *testing.T) {
	errs := ValidateOrderRequest(&types.PlaceOrderRequest{})
	fields := make([]string, len(errs))
	for i, e := range errs {
		fields[i] = e.Field
	}
	assert.Equal(t, []string{"tokenId", "price", "amount", "side", "orderType", "confirm"}, fields)
}
