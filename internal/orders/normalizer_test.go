package orders

import (
	"math"
	"testing"

	"github.com/hiiliketocode/polycopy-sub003/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeOrder_BuyRoundsOntoBoundaries(t *testing.T) {
	// $5 buy at 0.137 in a 0.01-tick market: price floors to 0.13, the
	// spend stays on a cent boundary and the size floors to two decimals.
	norm, err := NormalizeOrder(0.137, 5, types.SideBuy, 0.01)
	require.NoError(t, err)

	assert.Equal(t, "0.13", norm.Price.String())
	assert.Equal(t, "5", norm.Dollars.String())
	assert.Equal(t, "38.46", norm.Size.String())
}

func TestNormalizeOrder_BuySpendNeverBelowRequested(t *testing.T) {
	for _, amount := range []float64{5, 5.001, 9.999, 0.011, 123.456} {
		norm, err := NormalizeOrder(0.42, amount, types.SideBuy, 0.01)
		require.NoError(t, err, "amount %v", amount)

		dollars, _ := norm.Dollars.Float64()
		assert.GreaterOrEqual(t, dollars, amount,
			"buy spend must never round below the requested amount")
	}
}

func TestNormalizeOrder_SellSizeNeverAboveRequested(t *testing.T) {
	for _, amount := range []float64{10.567, 3.999, 250.001} {
		norm, err := NormalizeOrder(0.42, amount, types.SideSell, 0.01)
		require.NoError(t, err, "amount %v", amount)

		size, _ := norm.Size.Float64()
		assert.LessOrEqual(t, size, amount,
			"sell size must never round above what the caller holds")
	}
}

func TestNormalizeOrder_PriceFloorsToTick(t *testing.T) {
	tests := []struct {
		price float64
		tick  float64
		want  string
	}{
		{0.137, 0.01, "0.13"},
		{0.1234, 0.001, "0.123"},
		{0.995, 0.01, "0.99"},
		{0.5, 0.1, "0.5"},
	}
	for _, tt := range tests {
		norm, err := NormalizeOrder(tt.price, 10, types.SideBuy, tt.tick)
		require.NoError(t, err)
		assert.Equal(t, tt.want, norm.Price.String(), "price %v tick %v", tt.price, tt.tick)
	}
}

func TestNormalizeOrder_Idempotent(t *testing.T) {
	norm, err := NormalizeOrder(0.137, 5, types.SideBuy, 0.01)
	require.NoError(t, err)

	price, _ := norm.Price.Float64()
	dollars, _ := norm.Dollars.Float64()
	again, err := NormalizeOrder(price, dollars, types.SideBuy, 0.01)
	require.NoError(t, err)

	assert.True(t, norm.Price.Equal(again.Price))
	assert.True(t, norm.Dollars.Equal(again.Dollars))
	assert.True(t, norm.Size.Equal(again.Size))
}

func TestNormalizeOrder_InvalidAfterRounding(t *testing.T) {
	// Price collapses to zero ticks.
	_, err := NormalizeOrder(0.005, 10, types.SideBuy, 0.01)
	assert.ErrorIs(t, err, ErrInvalidAfterRounding)

	// Size collapses to zero cents.
	_, err = NormalizeOrder(0.42, 0.001, types.SideSell, 0.01)
	assert.ErrorIs(t, err, ErrInvalidAfterRounding)

	// Non-finite inputs.
	_, err = NormalizeOrder(math.NaN(), 10, types.SideBuy, 0.01)
	assert.ErrorIs(t, err, ErrInvalidAfterRounding)
	_, err = NormalizeOrder(0.5, math.Inf(1), types.SideBuy, 0.01)
	assert.ErrorIs(t, err, ErrInvalidAfterRounding)
}

func TestNormalizeOrder_ZeroTickFallsBack(t *testing.T) {
	norm, err := NormalizeOrder(0.137, 5, types.SideBuy, 0)
	require.NoError(t, err)
	assert.Equal(t, "0.13", norm.Price.String())
}

func TestNormalizedOrder_BaseUnitAmounts(t *testing.T) {
	norm, err := NormalizeOrder(0.137, 5, types.SideBuy, 0.01)
	require.NoError(t, err)

	// A buy gives up USDC and receives outcome tokens, 6 decimals each.
	assert.Equal(t, "5000000", norm.MakerAmount(types.SideBuy))
	assert.Equal(t, "38460000", norm.TakerAmount(types.SideBuy))

	sell, err := NormalizeOrder(0.25, 12.5, types.SideSell, 0.01)
	require.NoError(t, err)

	assert.Equal(t, "12500000", sell.MakerAmount(types.SideSell))
	assert.Equal(t, "3120000", sell.TakerAmount(types.SideSell))
}
