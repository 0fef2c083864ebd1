package book

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/btree"
	"github.com/yanun0323/logs"

	"hotpath/internal/schema"
)

const btreeDegree = 32

// Level is an aggregated price level.
type Level struct {
	Price    schema.Price
	Quantity schema.Quantity
}

// levelItem is keyed by the scaled price; bid keys are negated so that the
// best level of either side is the tree minimum.
type levelItem struct {
	key   int64
	level Level
}

func lessLevel(a, b levelItem) bool {
	return a.key < b.key
}

// Snapshot is a consistent copy of the top of the book.
type Snapshot struct {
	Symbol           string
	Sequence         uint64
	ExchangeSequence uint64
	UpdatedAt        int64
	Bids             []Level
	Asks             []Level
}

// OrderBook holds the resting price levels of one symbol.
type OrderBook struct {
	symbol string
	now    func() time.Time

	mu          sync.RWMutex
	bids        *btree.BTreeG[levelItem]
	asks        *btree.BTreeG[levelItem]
	exchangeSeq uint64
	lastUpdate  int64
	crossed     bool

	seq          atomic.Uint64
	crossedCount atomic.Uint64
}

// New creates an empty book for symbol.
func New(symbol string) *OrderBook {
	return &OrderBook{
		symbol: symbol,
		now:    time.Now,
		bids:   btree.NewG(btreeDegree, lessLevel),
		asks:   btree.NewG(btreeDegree, lessLevel),
	}
}

// Symbol returns the book symbol.
func (b *OrderBook) Symbol() string {
	return b.symbol
}

// ApplyUpdate sets the aggregated quantity at price on side and returns the
// new sequence. Quantity zero removes the level; removing a level that does
// not exist still advances the sequence.
func (b *OrderBook) ApplyUpdate(side schema.BookSide, price schema.Price, qty schema.Quantity) (uint64, error) {
	return b.apply(side, price, qty, 0)
}

// ApplyDelta applies a market delta and records its exchange sequence.
func (b *OrderBook) ApplyDelta(d schema.MarketDelta) (uint64, error) {
	return b.apply(d.Side, d.Price, d.Qty, d.ExchangeSeq)
}

func (b *OrderBook) apply(side schema.BookSide, price schema.Price, qty schema.Quantity, exchangeSeq uint64) (uint64, error) {
	if err := validateUpdate(b.symbol, side, price, qty); err != nil {
		return b.seq.Load(), err
	}

	b.mu.Lock()
	tree, key := b.bids, -int64(price)
	if side == schema.BookSideAsk {
		tree, key = b.asks, int64(price)
	}

	if qty == 0 {
		tree.Delete(levelItem{key: key})
	} else {
		tree.ReplaceOrInsert(levelItem{key: key, level: Level{Price: price, Quantity: qty}})
	}

	if exchangeSeq != 0 {
		b.exchangeSeq = exchangeSeq
	}
	b.lastUpdate = b.now().UnixNano()
	seq := b.seq.Add(1)

	crossed := b.isCrossedLocked()
	wasCrossed := b.crossed
	b.crossed = crossed
	b.mu.Unlock()

	if crossed && !wasCrossed {
		b.crossedCount.Add(1)
		logs.Errorf("book %s crossed at seq %d after %s update %s@%s", b.symbol, seq, side, qty, price)
	}
	return seq, nil
}

func (b *OrderBook) isCrossedLocked() bool {
	bid, okBid := b.bids.Min()
	ask, okAsk := b.asks.Min()
	if !okBid || !okAsk {
		return false
	}
	return bid.level.Price >= ask.level.Price
}

// BestBid returns the highest bid level.
func (b *OrderBook) BestBid() (Level, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	item, ok := b.bids.Min()
	return item.level, ok
}

// BestAsk returns the lowest ask level.
func (b *OrderBook) BestAsk() (Level, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	item, ok := b.asks.Min()
	return item.level, ok
}

// Spread returns best ask minus best bid. It is negative while the book is
// crossed.
func (b *OrderBook) Spread() (schema.Price, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	bid, okBid := b.bids.Min()
	ask, okAsk := b.asks.Min()
	if !okBid || !okAsk {
		return 0, false
	}
	return ask.level.Price - bid.level.Price, true
}

// Mid returns the midpoint of the best bid and ask.
func (b *OrderBook) Mid() (schema.Price, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	bid, okBid := b.bids.Min()
	ask, okAsk := b.asks.Min()
	if !okBid || !okAsk {
		return 0, false
	}
	lo, hi := bid.level.Price, ask.level.Price
	return lo + (hi-lo)/2, true
}

// Snapshot copies up to depth levels per side, best first. depth <= 0 copies
// every level.
func (b *OrderBook) Snapshot(depth int) Snapshot {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return Snapshot{
		Symbol:           b.symbol,
		Sequence:         b.seq.Load(),
		ExchangeSequence: b.exchangeSeq,
		UpdatedAt:        b.lastUpdate,
		Bids:             collect(b.bids, depth),
		Asks:             collect(b.asks, depth),
	}
}

func collect(tree *btree.BTreeG[levelItem], depth int) []Level {
	n := tree.Len()
	if depth > 0 && depth < n {
		n = depth
	}
	out := make([]Level, 0, n)
	tree.Ascend(func(item levelItem) bool {
		out = append(out, item.level)
		return len(out) < n
	})
	return out
}

// Depth returns the number of levels on each side.
func (b *OrderBook) Depth() (bids, asks int) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.bids.Len(), b.asks.Len()
}

// Sequence returns the number of applied updates.
func (b *OrderBook) Sequence() uint64 {
	return b.seq.Load()
}

// ExchangeSequence returns the last exchange sequence seen.
func (b *OrderBook) ExchangeSequence() uint64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.exchangeSeq
}

// LastUpdate returns the wall time of the last applied update in unix nanos.
func (b *OrderBook) LastUpdate() int64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.lastUpdate
}

// Crossed reports whether the best bid is at or through the best ask.
func (b *OrderBook) Crossed() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.crossed
}

// CrossedCount returns how many times the book entered a crossed state.
func (b *OrderBook) CrossedCount() uint64 {
	return b.crossedCount.Load()
}
