package mdg

import (
	"math/rand"
	"time"

	"github.com/yanun0323/errors"

	"hotpath/internal/schema"
	"hotpath/pkg/exception"
)

// Config shapes the synthetic top of book.
type Config struct {
	Symbols   []string
	BasePrice schema.Price
	Spread    schema.Price
	Step      schema.Price
	Size      schema.Quantity
	Seed      int64
}

type quote struct {
	bid schema.Price
	ask schema.Price
}

// Generator emits random-walk top-of-book deltas, one symbol per call in
// round robin.
type Generator struct {
	cfg    Config
	rng    *rand.Rand
	quotes map[string]quote
	seq    uint64
	index  int
}

// NewGenerator validates cfg and seeds every symbol at BasePrice.
func NewGenerator(cfg Config) (*Generator, error) {
	if len(cfg.Symbols) == 0 {
		return nil, errors.Wrap(exception.ErrInvalidArgument, "no symbols")
	}
	if cfg.BasePrice <= 0 {
		return nil, errors.Wrap(exception.ErrInvalidArgument, "base price must be > 0")
	}
	if cfg.Spread < 0 || cfg.Step < 0 {
		return nil, errors.Wrap(exception.ErrInvalidArgument, "spread and step must be >= 0")
	}
	if cfg.Size <= 0 {
		cfg.Size = schema.Quantity(schema.One)
	}
	if cfg.Seed == 0 {
		cfg.Seed = time.Now().UTC().UnixNano()
	}
	return &Generator{
		cfg:    cfg,
		rng:    rand.New(rand.NewSource(cfg.Seed)),
		quotes: make(map[string]quote, len(cfg.Symbols)),
	}, nil
}

// Next moves the mid of the next symbol by at most Step and returns the
// deltas that take the book there: removals of the previous levels followed
// by the new bid and ask.
func (g *Generator) Next(now time.Time) []schema.MarketDelta {
	symbol := g.cfg.Symbols[g.index]
	g.index = (g.index + 1) % len(g.cfg.Symbols)

	prev, seen := g.quotes[symbol]
	mid := g.cfg.BasePrice
	if seen {
		mid = prev.bid + (prev.ask-prev.bid)/2
		if g.cfg.Step > 0 {
			mid += schema.Price(g.rng.Int63n(2*int64(g.cfg.Step)+1)) - g.cfg.Step
		}
	}
	half := g.cfg.Spread / 2
	if mid-half <= 0 {
		mid = half + 1
	}
	next := quote{bid: mid - half, ask: mid - half + g.cfg.Spread}
	if next.ask == next.bid {
		next.ask++
	}
	g.quotes[symbol] = next

	ts := now.UnixNano()
	out := make([]schema.MarketDelta, 0, 4)
	if seen && prev.bid != next.bid {
		out = append(out, g.delta(symbol, schema.BookSideBid, prev.bid, 0, ts))
	}
	if seen && prev.ask != next.ask {
		out = append(out, g.delta(symbol, schema.BookSideAsk, prev.ask, 0, ts))
	}
	out = append(out,
		g.delta(symbol, schema.BookSideBid, next.bid, g.cfg.Size, ts),
		g.delta(symbol, schema.BookSideAsk, next.ask, g.cfg.Size, ts),
	)
	return out
}

func (g *Generator) delta(symbol string, side schema.BookSide, price schema.Price, qty schema.Quantity, ts int64) schema.MarketDelta {
	g.seq++
	return schema.MarketDelta{
		Symbol:      symbol,
		Side:        side,
		Price:       price,
		Qty:         qty,
		ExchangeSeq: g.seq,
		TsEvent:     ts,
	}
}

// Quote returns the current best bid and ask of symbol.
func (g *Generator) Quote(symbol string) (bid, ask schema.Price, ok bool) {
	q, ok := g.quotes[symbol]
	return q.bid, q.ask, ok
}
