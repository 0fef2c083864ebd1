package feed

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hotpath/internal/schema"
	"hotpath/pkg/exception"
)

func TestParse(t *testing.T) {
	ev, err := Parse([]byte(`{"type":"delta","symbol":"AAPL","side":"ask","price":"150.25","qty":"0.5","seq":9}`))
	require.NoError(t, err)
	require.NotNil(t, ev.Delta)
	assert.Equal(t, schema.MarketDelta{
		Symbol:      "AAPL",
		Side:        schema.BookSideAsk,
		Price:       schema.Price(150_25_000_000),
		Qty:         schema.Quantity(50_000_000),
		ExchangeSeq: 9,
	}, *ev.Delta)

	ev, err = Parse([]byte(`{"type":"order","id":3,"strategy":2,"symbol":"BTC-USD","side":"sell","order_type":"limit","qty":"1","limit_price":"64000.5"}`))
	require.NoError(t, err)
	require.NotNil(t, ev.Order)
	assert.Equal(t, uint64(3), ev.Order.OrderID)
	assert.Equal(t, uint32(2), ev.Order.StrategyID)
	assert.Equal(t, schema.OrderSideSell, ev.Order.Side)
	assert.Equal(t, schema.OrderTypeLimit, ev.Order.Type)
	assert.Equal(t, schema.Price(64000_50_000_000), ev.Order.LimitPrice)
	assert.Zero(t, ev.Order.StopPrice)

	ev, err = Parse([]byte(`{"type":"order","id":4,"symbol":"AAPL","side":"buy","qty":"1"}`))
	require.NoError(t, err)
	assert.Equal(t, schema.OrderTypeMarket, ev.Order.Type)

	ev, err = Parse([]byte(`{"type":"RESUME"}`))
	require.NoError(t, err)
	assert.True(t, ev.Resume)
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		line string
		want error
	}{
		{"not json", `{`, exception.ErrInvalidArgument},
		{"unknown type", `{"type":"trade"}`, exception.ErrInvalidArgument},
		{"bad delta side", `{"type":"delta","side":"mid","price":"1","qty":"1"}`, exception.ErrInvalidArgument},
		{"bad price", `{"type":"delta","side":"bid","price":"abc","qty":"1"}`, exception.ErrInvalidNumber},
		{"bad order side", `{"type":"order","side":"hold","qty":"1"}`, exception.ErrInvalidArgument},
		{"bad order type", `{"type":"order","side":"buy","order_type":"iceberg","qty":"1"}`, exception.ErrInvalidArgument},
		{"bad qty", `{"type":"order","side":"buy","qty":""}`, exception.ErrInvalidNumber},
		{"bad stop price", `{"type":"order","side":"buy","qty":"1","stop_price":"x"}`, exception.ErrInvalidNumber},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.line))
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestWriterRoundTrip(t *testing.T) {
	delta := schema.MarketDelta{
		Symbol:      "ETH-USD",
		Side:        schema.BookSideBid,
		Price:       schema.Price(3_200_50_000_000),
		Qty:         schema.Quantity(2 * schema.One),
		ExchangeSeq: 11,
		TsEvent:     1_700_000_000,
	}
	order := schema.Order{
		OrderID:    9,
		StrategyID: 1,
		Symbol:     "ETH-USD",
		Side:       schema.OrderSideBuy,
		Type:       schema.OrderTypeStop,
		Qty:        schema.Quantity(schema.One / 2),
		StopPrice:  schema.Price(3_300 * schema.One),
	}

	var buf bytes.Buffer
	w := NewWriter(&buf)
	require.NoError(t, w.Write(DeltaLine(delta)))
	require.NoError(t, w.Write(OrderLine(order)))
	require.NoError(t, w.Write(Line{Type: TypeResume}))
	require.NoError(t, w.Flush())

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	require.Len(t, lines, 3)
	assert.NotContains(t, string(lines[1]), "limit_price")

	ev, err := Parse(lines[0])
	require.NoError(t, err)
	assert.Equal(t, delta, *ev.Delta)

	ev, err = Parse(lines[1])
	require.NoError(t, err)
	assert.Equal(t, order, *ev.Order)

	ev, err = Parse(lines[2])
	require.NoError(t, err)
	assert.True(t, ev.Resume)
}
