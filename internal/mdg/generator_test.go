package mdg

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hotpath/internal/book"
	"hotpath/internal/schema"
	"hotpath/pkg/exception"
)

func testConfig() Config {
	return Config{
		Symbols:   []string{"AAPL", "MSFT"},
		BasePrice: schema.Price(100 * schema.One),
		Spread:    schema.Price(schema.One / 10),
		Step:      schema.Price(schema.One / 20),
		Size:      schema.Quantity(5 * schema.One),
		Seed:      7,
	}
}

func TestGeneratorKeepsOneLevelPerSide(t *testing.T) {
	g, err := NewGenerator(testConfig())
	require.NoError(t, err)
	books := book.NewManager(nil)

	now := time.Unix(0, 0)
	for i := 0; i < 500; i++ {
		for _, d := range g.Next(now) {
			_, err := books.Apply(d)
			require.NoError(t, err)
		}
	}

	for _, symbol := range []string{"AAPL", "MSFT"} {
		b, ok := books.Book(symbol)
		require.True(t, ok)
		bids, asks := b.Depth()
		assert.Equal(t, 1, bids, symbol)
		assert.Equal(t, 1, asks, symbol)
		assert.False(t, b.Crossed(), symbol)
		assert.Zero(t, b.CrossedCount(), symbol)

		spread, ok := b.Spread()
		require.True(t, ok)
		assert.Equal(t, schema.Price(schema.One/10), spread)

		bid, ask, ok := g.Quote(symbol)
		require.True(t, ok)
		best, _ := b.BestBid()
		assert.Equal(t, bid, best.Price)
		best, _ = b.BestAsk()
		assert.Equal(t, ask, best.Price)
	}
}

func TestGeneratorRoundRobinAndSequence(t *testing.T) {
	g, err := NewGenerator(testConfig())
	require.NoError(t, err)

	first := g.Next(time.Unix(1, 0))
	require.Len(t, first, 2)
	assert.Equal(t, "AAPL", first[0].Symbol)
	assert.Equal(t, schema.BookSideBid, first[0].Side)
	assert.Equal(t, schema.Price(100*schema.One-schema.One/20), first[0].Price)
	assert.Equal(t, uint64(1), first[0].ExchangeSeq)
	assert.Equal(t, uint64(2), first[1].ExchangeSeq)
	assert.Equal(t, int64(1e9), first[0].TsEvent)

	second := g.Next(time.Unix(2, 0))
	assert.Equal(t, "MSFT", second[0].Symbol)

	third := g.Next(time.Unix(3, 0))
	assert.Equal(t, "AAPL", third[0].Symbol)
	for _, d := range third {
		if d.Qty == 0 {
			continue
		}
		assert.InDelta(t, 100*schema.One, int64(d.Price), float64(schema.One/20+schema.One/10))
	}
}

func TestGeneratorIsDeterministic(t *testing.T) {
	a, err := NewGenerator(testConfig())
	require.NoError(t, err)
	b, err := NewGenerator(testConfig())
	require.NoError(t, err)

	now := time.Unix(0, 0)
	for i := 0; i < 50; i++ {
		assert.Equal(t, a.Next(now), b.Next(now))
	}
}

func TestNewGeneratorValidation(t *testing.T) {
	tests := []struct {
		name string
		edit func(*Config)
	}{
		{"no symbols", func(c *Config) { c.Symbols = nil }},
		{"zero base price", func(c *Config) { c.BasePrice = 0 }},
		{"negative spread", func(c *Config) { c.Spread = -1 }},
		{"negative step", func(c *Config) { c.Step = -1 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			tt.edit(&cfg)
			_, err := NewGenerator(cfg)
			assert.ErrorIs(t, err, exception.ErrInvalidArgument)
		})
	}
}
