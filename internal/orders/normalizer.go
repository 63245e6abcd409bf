package orders

import (
	"errors"
	"math"

	"github.com/hiiliketocode/polycopy-sub003/internal/types"
	"github.com/shopspring/decimal"
)

// ErrInvalidAfterRounding is returned when tick and cent rounding leave no
// valid order. This typically happens near price extremes (close to $1.00)
// where the tick constraints collapse the size to zero; the caller may need
// to wait for market resolution or adjust the inputs.
var ErrInvalidAfterRounding = errors.New("invalid price or amount after rounding")

// DefaultTickSize is used when the exchange cannot tell us the market's
// minimum increment.
const DefaultTickSize = 0.01

var (
	one     = decimal.NewFromInt(1)
	million = decimal.NewFromInt(1_000_000)
)

// NormalizedOrder is the result of price/size normalization. Price is a
// tick multiple, Size a cent multiple of contracts, and Dollars the implied
// cost on a cent boundary.
type NormalizedOrder struct {
	Price   decimal.Decimal
	Size    decimal.Decimal
	Dollars decimal.Decimal
	Tick    decimal.Decimal
}

// NormalizeOrder rounds a requested price and amount onto the boundaries
// the exchange accepts.
//
// The price is always rounded down to a tick multiple: for a buy the
// caller's price is a ceiling, and rounding up would cross further into the
// book than they asked for. For BUY the amount is the dollar spend and the
// implied cost rounds up to the next cent, so the order is never rejected
// for being fractionally under a minimum. For SELL the amount is a contract
// size and only ever rounds down; selling more than the caller holds is not
// an acceptable adjustment.
func NormalizeOrder(price, amount float64, side types.Side, tickSize float64) (*NormalizedOrder, error) {
	if !isFinite(price) || !isFinite(amount) || !isFinite(tickSize) {
		return nil, ErrInvalidAfterRounding
	}
	if tickSize <= 0 {
		tickSize = DefaultTickSize
	}

	tick := decimal.NewFromFloat(tickSize)
	p := decimal.NewFromFloat(price)
	a := decimal.NewFromFloat(amount)

	normPrice := p.Div(tick).RoundFloor(0).Mul(tick)
	if normPrice.Sign() <= 0 || normPrice.GreaterThanOrEqual(one) {
		return nil, ErrInvalidAfterRounding
	}

	var size, dollars decimal.Decimal
	if side == types.SideBuy {
		dollars = a.RoundCeil(2)
		size = dollars.Div(normPrice).RoundFloor(2)
	} else {
		size = a.RoundFloor(2)
		dollars = size.Mul(normPrice).RoundFloor(2)
	}

	if size.Sign() <= 0 || dollars.Sign() <= 0 {
		return nil, ErrInvalidAfterRounding
	}

	return &NormalizedOrder{
		Price:   normPrice,
		Size:    size,
		Dollars: dollars,
		Tick:    tick,
	}, nil
}

// MakerAmount returns the base-unit amount the user gives up: USDC for a
// buy, outcome tokens for a sell. Both use 6 decimals on Polymarket.
func (n *NormalizedOrder) MakerAmount(side types.Side) string {
	if side == types.SideBuy {
		return n.Dollars.Mul(million).Truncate(0).String()
	}
	return n.Size.Mul(million).Truncate(0).String()
}

// TakerAmount returns the base-unit amount the user receives.
func (n *NormalizedOrder) TakerAmount(side types.Side) string {
	if side == types.SideBuy {
		return n.Size.Mul(million).Truncate(0).String()
	}
	return n.Dollars.Mul(million).Truncate(0).String()
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
