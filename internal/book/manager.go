package book

import (
	"sort"
	"sync"

	"hotpath/internal/obs"
	"hotpath/internal/schema"
)

// Manager owns one OrderBook per symbol. The registry lock only guards the
// map; updates to different symbols never contend.
type Manager struct {
	mu      sync.RWMutex
	books   map[string]*OrderBook
	metrics *obs.Metrics
}

// NewManager creates an empty manager. metrics may be nil.
func NewManager(metrics *obs.Metrics) *Manager {
	return &Manager{
		books:   make(map[string]*OrderBook),
		metrics: metrics,
	}
}

// Book returns the book for symbol if one has been created.
func (m *Manager) Book(symbol string) (*OrderBook, bool) {
	m.mu.RLock()
	b, ok := m.books[symbol]
	m.mu.RUnlock()
	return b, ok
}

// GetOrCreate returns the book for symbol, creating it on first use.
func (m *Manager) GetOrCreate(symbol string) *OrderBook {
	if b, ok := m.Book(symbol); ok {
		return b
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if b, ok := m.books[symbol]; ok {
		return b
	}
	b := New(symbol)
	m.books[symbol] = b
	return b
}

// Apply routes a delta to its symbol's book. Invalid deltas never create a
// book.
func (m *Manager) Apply(d schema.MarketDelta) (uint64, error) {
	if d.Symbol == "" {
		m.metrics.IncBookInvalid()
		return 0, &ValidationError{Field: "symbol", Reason: "is empty"}
	}
	if err := validateUpdate(d.Symbol, d.Side, d.Price, d.Qty); err != nil {
		m.metrics.IncBookInvalid()
		if b, ok := m.Book(d.Symbol); ok {
			return b.Sequence(), err
		}
		return 0, err
	}

	b := m.GetOrCreate(d.Symbol)
	before := b.CrossedCount()
	seq, err := b.ApplyDelta(d)
	if err != nil {
		m.metrics.IncBookInvalid()
		return seq, err
	}
	m.metrics.IncBookUpdate()
	if b.CrossedCount() != before {
		m.metrics.IncBookCrossed()
	}
	return seq, nil
}

// ApplyFloat converts a float delta from an ingestion feed and applies it.
// Non-finite values are rejected as validation errors.
func (m *Manager) ApplyFloat(symbol string, side schema.BookSide, price, qty float64, exchangeSeq uint64) (uint64, error) {
	p, err := schema.PriceFromFloat(price)
	if err != nil {
		m.metrics.IncBookInvalid()
		return m.sequenceOf(symbol), &ValidationError{Symbol: symbol, Field: "price", Value: formatFloat(price), Reason: "must be finite"}
	}
	q, err := schema.QuantityFromFloat(qty)
	if err != nil {
		m.metrics.IncBookInvalid()
		return m.sequenceOf(symbol), &ValidationError{Symbol: symbol, Field: "quantity", Value: formatFloat(qty), Reason: "must be finite"}
	}
	return m.Apply(schema.MarketDelta{
		Symbol:      symbol,
		Side:        side,
		Price:       p,
		Qty:         q,
		ExchangeSeq: exchangeSeq,
	})
}

func (m *Manager) sequenceOf(symbol string) uint64 {
	if b, ok := m.Book(symbol); ok {
		return b.Sequence()
	}
	return 0
}

// ReferencePrice returns the price an order on side would trade against:
// the best ask for buys and the best bid for sells.
func (m *Manager) ReferencePrice(symbol string, side schema.OrderSide) (schema.Price, bool) {
	b, ok := m.Book(symbol)
	if !ok {
		return 0, false
	}
	var lvl Level
	switch side {
	case schema.OrderSideBuy:
		lvl, ok = b.BestAsk()
	case schema.OrderSideSell:
		lvl, ok = b.BestBid()
	default:
		return 0, false
	}
	return lvl.Price, ok
}

// MarkPrice returns the mid price, falling back to whichever side exists.
func (m *Manager) MarkPrice(symbol string) (schema.Price, bool) {
	b, ok := m.Book(symbol)
	if !ok {
		return 0, false
	}
	if mid, ok := b.Mid(); ok {
		return mid, true
	}
	if lvl, ok := b.BestBid(); ok {
		return lvl.Price, true
	}
	if lvl, ok := b.BestAsk(); ok {
		return lvl.Price, true
	}
	return 0, false
}

// Symbols lists every known symbol in ascending order.
func (m *Manager) Symbols() []string {
	m.mu.RLock()
	out := make([]string, 0, len(m.books))
	for symbol := range m.books {
		out = append(out, symbol)
	}
	m.mu.RUnlock()
	sort.Strings(out)
	return out
}
