package book

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hotpath/internal/schema"
	"hotpath/pkg/exception"
)

func px(v int64) schema.Price     { return schema.Price(v * schema.One) }
func qty(v int64) schema.Quantity { return schema.Quantity(v * schema.One) }

func TestApplyUpdateDeleteLevel(t *testing.T) {
	b := New("AAPL")

	seq, err := b.ApplyUpdate(schema.BookSideBid, px(150), qty(100))
	require.NoError(t, err)
	assert.Equal(t, uint64(1), seq)

	best, ok := b.BestBid()
	require.True(t, ok)
	assert.Equal(t, px(150), best.Price)
	assert.Equal(t, qty(100), best.Quantity)

	seq, err = b.ApplyUpdate(schema.BookSideBid, px(150), 0)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), seq)

	_, ok = b.BestBid()
	assert.False(t, ok)
	_, ok = b.Spread()
	assert.False(t, ok)
}

func TestDeleteMissingLevelAdvancesSequence(t *testing.T) {
	b := New("AAPL")
	_, err := b.ApplyUpdate(schema.BookSideAsk, px(151), qty(5))
	require.NoError(t, err)

	before := b.Snapshot(0)
	seq, err := b.ApplyUpdate(schema.BookSideAsk, px(999), 0)
	require.NoError(t, err)
	assert.Equal(t, before.Sequence+1, seq)

	after := b.Snapshot(0)
	assert.Equal(t, before.Asks, after.Asks)
	assert.Equal(t, before.Bids, after.Bids)
}

func TestValidationDoesNotAdvanceSequence(t *testing.T) {
	b := New("AAPL")
	_, err := b.ApplyUpdate(schema.BookSideBid, px(10), qty(1))
	require.NoError(t, err)

	cases := []struct {
		name  string
		side  schema.BookSide
		price schema.Price
		qty   schema.Quantity
		field string
	}{
		{"negative quantity", schema.BookSideBid, px(10), -1, "quantity"},
		{"negative price", schema.BookSideAsk, -1, qty(1), "price"},
		{"unknown side", schema.BookSideUnknown, px(10), qty(1), "side"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			seq, err := b.ApplyUpdate(tc.side, tc.price, tc.qty)
			require.Error(t, err)
			assert.Equal(t, uint64(1), seq)
			assert.Equal(t, uint64(1), b.Sequence())

			var verr *ValidationError
			require.True(t, errors.As(err, &verr))
			assert.Equal(t, tc.field, verr.Field)
			assert.ErrorIs(t, err, exception.ErrBookValidation)
		})
	}
}

func TestSnapshotOrderingAndDepth(t *testing.T) {
	b := New("BTCUSDT")
	for _, p := range []int64{100, 103, 101, 99, 102} {
		_, err := b.ApplyUpdate(schema.BookSideBid, px(p), qty(1))
		require.NoError(t, err)
		_, err = b.ApplyUpdate(schema.BookSideAsk, px(p+10), qty(2))
		require.NoError(t, err)
	}

	snap := b.Snapshot(3)
	require.Len(t, snap.Bids, 3)
	require.Len(t, snap.Asks, 3)
	assert.Equal(t, []schema.Price{px(103), px(102), px(101)}, prices(snap.Bids))
	assert.Equal(t, []schema.Price{px(109), px(110), px(111)}, prices(snap.Asks))
	assert.Equal(t, uint64(10), snap.Sequence)

	full := b.Snapshot(0)
	assert.Len(t, full.Bids, 5)
	assert.Len(t, full.Asks, 5)

	spread, ok := b.Spread()
	require.True(t, ok)
	assert.Equal(t, px(6), spread)

	mid, ok := b.Mid()
	require.True(t, ok)
	assert.Equal(t, px(106), mid)
}

func TestReplaceLevelQuantity(t *testing.T) {
	b := New("ETHUSDT")
	_, err := b.ApplyUpdate(schema.BookSideAsk, px(2000), qty(3))
	require.NoError(t, err)
	_, err = b.ApplyUpdate(schema.BookSideAsk, px(2000), qty(7))
	require.NoError(t, err)

	bids, asks := b.Depth()
	assert.Equal(t, 0, bids)
	assert.Equal(t, 1, asks)

	best, ok := b.BestAsk()
	require.True(t, ok)
	assert.Equal(t, qty(7), best.Quantity)
}

func TestCrossedBookIsFlagged(t *testing.T) {
	b := New("AAPL")
	_, err := b.ApplyUpdate(schema.BookSideAsk, px(150), qty(1))
	require.NoError(t, err)
	_, err = b.ApplyUpdate(schema.BookSideBid, px(151), qty(1))
	require.NoError(t, err)

	assert.True(t, b.Crossed())
	assert.Equal(t, uint64(1), b.CrossedCount())

	spread, ok := b.Spread()
	require.True(t, ok)
	assert.Equal(t, px(-1), spread)

	_, err = b.ApplyUpdate(schema.BookSideBid, px(151), 0)
	require.NoError(t, err)
	assert.False(t, b.Crossed())
	assert.Equal(t, uint64(1), b.CrossedCount())
}

func TestApplyDeltaRecordsExchangeSequence(t *testing.T) {
	b := New("AAPL")
	_, err := b.ApplyDelta(schema.MarketDelta{Symbol: "AAPL", Side: schema.BookSideBid, Price: px(1), Qty: qty(1), ExchangeSeq: 77})
	require.NoError(t, err)
	_, err = b.ApplyDelta(schema.MarketDelta{Symbol: "AAPL", Side: schema.BookSideBid, Price: px(2), Qty: qty(1)})
	require.NoError(t, err)

	assert.Equal(t, uint64(77), b.ExchangeSequence())
	assert.Equal(t, uint64(2), b.Sequence())
	assert.NotZero(t, b.LastUpdate())
}

func TestConcurrentReadersSeeConsistentBook(t *testing.T) {
	b := New("AAPL")
	const writes = 2000

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := int64(1); i <= writes; i++ {
			_, _ = b.ApplyUpdate(schema.BookSideBid, px(i), qty(1))
			_, _ = b.ApplyUpdate(schema.BookSideAsk, px(i+writes), qty(1))
		}
	}()

	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			var last uint64
			for i := 0; i < writes; i++ {
				snap := b.Snapshot(1)
				assert.GreaterOrEqual(t, snap.Sequence, last)
				last = snap.Sequence
				if len(snap.Bids) == 1 && len(snap.Asks) == 1 {
					assert.Less(t, snap.Bids[0].Price, snap.Asks[0].Price)
				}
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, uint64(2*writes), b.Sequence())
	assert.False(t, b.Crossed())
}

func prices(levels []Level) []schema.Price {
	out := make([]schema.Price, len(levels))
	for i, l := range levels {
		out[i] = l.Price
	}
	return out
}

func BenchmarkApplyUpdate(b *testing.B) {
	book := New("BTCUSDT")
	for i := int64(0); i < 1000; i++ {
		_, _ = book.ApplyUpdate(schema.BookSideBid, px(10_000-i), qty(1))
		_, _ = book.ApplyUpdate(schema.BookSideAsk, px(10_001+i), qty(1))
	}
	var i int64
	for b.Loop() {
		price := px(10_000 - i%1000)
		_, _ = book.ApplyUpdate(schema.BookSideBid, price, qty(i%3))
		i++
	}
}

func BenchmarkBestBid(b *testing.B) {
	book := New("BTCUSDT")
	for i := int64(0); i < 1000; i++ {
		_, _ = book.ApplyUpdate(schema.BookSideBid, px(10_000-i), qty(1))
	}
	for b.Loop() {
		lvl, _ := book.BestBid()
		_ = lvl
	}
}
