package risk

import "hotpath/internal/schema"

// Position is the per-symbol holding. Quantity is signed, positive is long.
type Position struct {
	Symbol        string
	Quantity      schema.Quantity
	EntryPrice    schema.Price
	MarkPrice     schema.Price
	RealizedPnl   schema.Notional
	UnrealizedPnl schema.Notional
	Exposure      schema.Notional
	OpenedAt      int64
	UpdatedAt     int64
}

// applyFill folds a fill into the position and returns the pnl it realized.
func (p *Position) applyFill(side schema.OrderSide, price schema.Price, qty schema.Quantity, ts int64) schema.Notional {
	signed := schema.Quantity(side.Sign() * int64(qty))
	cur := p.Quantity
	next := cur + signed

	var realized schema.Notional
	switch {
	case cur == 0:
		p.EntryPrice = price
		p.OpenedAt = ts
	case (cur > 0) == (signed > 0):
		p.EntryPrice = weightedEntry(p.EntryPrice, cur.Abs(), price, qty)
	default:
		closed := min(cur.Abs(), qty)
		diff := price - p.EntryPrice
		if cur < 0 {
			diff = -diff
		}
		realized, _ = schema.MulNotional(diff, closed)
		switch {
		case next == 0:
			p.EntryPrice = 0
		case (next > 0) != (cur > 0):
			p.EntryPrice = price
			p.OpenedAt = ts
		}
	}

	p.Quantity = next
	p.RealizedPnl += realized
	p.UpdatedAt = ts
	return realized
}

// mark revalues the position at price and returns the exposure delta.
func (p *Position) mark(price schema.Price) schema.Notional {
	p.MarkPrice = price
	before := p.Exposure
	exposure, ok := schema.MulNotional(price, p.Quantity.Abs())
	if !ok {
		exposure = schema.Notional(maxInt64)
	}
	p.Exposure = exposure
	if p.Quantity == 0 {
		p.UnrealizedPnl = 0
	} else {
		p.UnrealizedPnl, _ = schema.MulNotional(price-p.EntryPrice, p.Quantity)
	}
	return exposure - before
}

func weightedEntry(entry schema.Price, held schema.Quantity, price schema.Price, qty schema.Quantity) schema.Price {
	a, okA := schema.MulNotional(entry, held)
	b, okB := schema.MulNotional(price, qty)
	sum, okSum := schema.AddNotional(a, b)
	if !okA || !okB || !okSum {
		return price
	}
	avg, ok := schema.PriceOf(sum, held+qty)
	if !ok {
		return price
	}
	return avg
}
