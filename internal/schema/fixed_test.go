package schema

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hotpath/pkg/exception"
)

func TestParsePrice(t *testing.T) {
	tests := []struct {
		in   string
		want Price
	}{
		{"150.25", 150_25_000_000},
		{"0", 0},
		{"0.00000001", 1},
		{"0.000000015", 2},
		{"-3.5", -3_50_000_000},
	}
	for _, tt := range tests {
		got, err := ParsePrice(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}

	_, err := ParsePrice("1.2.3")
	assert.ErrorIs(t, err, exception.ErrInvalidNumber)
	_, err = ParsePrice("100000000000000")
	assert.ErrorIs(t, err, exception.ErrNumberOverflow)
}

func TestFromFloat(t *testing.T) {
	q, err := QuantityFromFloat(0.1)
	require.NoError(t, err)
	assert.Equal(t, Quantity(10_000_000), q)

	for _, f := range []float64{math.NaN(), math.Inf(1), math.Inf(-1)} {
		_, err := PriceFromFloat(f)
		assert.ErrorIs(t, err, exception.ErrNonFiniteNumber)
	}
}

func TestStringRoundTrip(t *testing.T) {
	p, err := ParsePrice("150.1")
	require.NoError(t, err)
	assert.Equal(t, "150.1", p.String())
	assert.InDelta(t, 150.1, p.Float64(), 1e-9)
	assert.Equal(t, Quantity(5), Quantity(-5).Abs())
}

func TestMulNotional(t *testing.T) {
	n, ok := MulNotional(Price(150*One), Quantity(10*One))
	require.True(t, ok)
	assert.Equal(t, Notional(1_500*One), n)

	n, ok = MulNotional(Price(150*One), Quantity(-2*One))
	require.True(t, ok)
	assert.Equal(t, Notional(-300*One), n)

	n, ok = MulNotional(Price(1), Quantity(1))
	require.True(t, ok)
	assert.Zero(t, n)

	_, ok = MulNotional(Price(math.MaxInt64), Quantity(2*One))
	assert.False(t, ok)
}

func TestAddNotional(t *testing.T) {
	n, ok := AddNotional(1, 2)
	require.True(t, ok)
	assert.Equal(t, Notional(3), n)

	_, ok = AddNotional(math.MaxInt64, 1)
	assert.False(t, ok)
	_, ok = AddNotional(math.MinInt64, -1)
	assert.False(t, ok)
}

func TestPriceOf(t *testing.T) {
	p, ok := PriceOf(Notional(1_500*One), Quantity(10*One))
	require.True(t, ok)
	assert.Equal(t, Price(150*One), p)

	p, ok = PriceOf(Notional(-300*One), Quantity(2*One))
	require.True(t, ok)
	assert.Equal(t, Price(-150*One), p)

	_, ok = PriceOf(Notional(One), 0)
	assert.False(t, ok)
	_, ok = PriceOf(Notional(math.MaxInt64), Quantity(1))
	assert.False(t, ok)
}

func TestEnums(t *testing.T) {
	assert.Equal(t, int64(1), OrderSideBuy.Sign())
	assert.Equal(t, int64(-1), OrderSideSell.Sign())
	assert.Equal(t, Quantity(-3*One), Order{Side: OrderSideSell, Qty: Quantity(3 * One)}.SignedQty())
	assert.False(t, BookSideUnknown.IsAvailable())
	assert.True(t, ExecutionStatusPartiallyFilled.IsTerminal())
	assert.False(t, ExecutionStatusSubmitted.IsTerminal())
	assert.True(t, ExecutionStatusSubmitted.IsSuccess())
	assert.Equal(t, TopicExecution, TopicOf(EventExecutionResult))
	assert.Equal(t, "OrderSizeExceeded", RiskReasonOrderSize.String())
}
