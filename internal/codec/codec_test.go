package codec

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hotpath/internal/schema"
	"hotpath/pkg/exception"
)

func TestMarketDeltaRoundTrip(t *testing.T) {
	orig := schema.MarketDelta{
		Symbol:      "AAPL",
		Side:        schema.BookSideAsk,
		Price:       15_025_000_000,
		Qty:         -1,
		ExchangeSeq: 991,
		TsEvent:     1700000000123,
	}
	encoded, err := EncodeMarketDelta(nil, orig)
	require.NoError(t, err)
	assert.Len(t, encoded, MarketDeltaPayloadSize(orig))

	decoded, ok := DecodeMarketDelta(encoded)
	require.True(t, ok)
	assert.Equal(t, orig, decoded)

	_, ok = DecodeMarketDelta(encoded[:len(encoded)-1])
	assert.False(t, ok)
}

func TestRiskDecisionRoundTrip(t *testing.T) {
	orig := schema.RiskDecision{
		OrderID:  7,
		Symbol:   "BTCUSDT",
		Action:   schema.RiskActionDeny,
		Reason:   schema.RiskReasonDailyLoss,
		Side:     schema.OrderSideSell,
		Qty:      100,
		RefPrice: 200,
		Current:  -300,
		Limit:    -100,
		TsEvent:  42,
	}
	buf := make([]byte, 0, 128)
	encoded, err := EncodeRiskDecision(buf, orig)
	require.NoError(t, err)

	decoded, ok := DecodeRiskDecision(encoded)
	require.True(t, ok)
	assert.Equal(t, orig, decoded)
}

func TestExecutionResultTruncatesError(t *testing.T) {
	orig := schema.ExecutionResult{
		OrderID:      9,
		Symbol:       "ETHUSDT",
		Status:       schema.ExecutionStatusFailed,
		Attempts:     4,
		VenueOrderID: "v-9",
		Error:        strings.Repeat("x", MaxErrorLen+10),
		TsEvent:      1,
	}
	encoded, err := EncodeExecutionResult(nil, orig)
	require.NoError(t, err)

	decoded, ok := DecodeExecutionResult(encoded)
	require.True(t, ok)
	assert.Len(t, decoded.Error, MaxErrorLen)
	decoded.Error = orig.Error
	assert.Equal(t, orig, decoded)
}

func TestEncodeRejectsLongSymbol(t *testing.T) {
	_, err := EncodeMarketDelta(nil, schema.MarketDelta{Symbol: strings.Repeat("A", MaxSymbolLen+1)})
	assert.ErrorIs(t, err, exception.ErrInvalidArgument)
}

func BenchmarkEncodeMarketDelta(b *testing.B) {
	d := schema.MarketDelta{Symbol: "BTCUSDT", Side: schema.BookSideBid, Price: 1, Qty: 1}
	buf := make([]byte, MarketDeltaPayloadSize(d))
	for b.Loop() {
		buf, _ = EncodeMarketDelta(buf, d)
	}
}
