package venue

import (
	"context"
	"strconv"
	"sync"

	"github.com/yanun0323/errors"

	"hotpath/internal/execution"
	"hotpath/internal/schema"
	"hotpath/pkg/exception"
)

// PriceSource provides the price an order on side would trade against.
type PriceSource interface {
	ReferencePrice(symbol string, side schema.OrderSide) (schema.Price, bool)
}

// Paper is an in-memory venue. Marketable orders fill completely at the
// reference price; others rest as Submitted. Submissions are deduplicated by
// idempotency key.
type Paper struct {
	prices PriceSource

	mu    sync.Mutex
	seq   uint64
	byKey map[string]execution.SubmitResponse
}

// NewPaper creates a paper venue priced by prices.
func NewPaper(prices PriceSource) *Paper {
	return &Paper{
		prices: prices,
		byKey:  make(map[string]execution.SubmitResponse),
	}
}

// Submit fills or rests the order.
func (p *Paper) Submit(ctx context.Context, req execution.SubmitRequest) (execution.SubmitResponse, error) {
	if err := ctx.Err(); err != nil {
		return execution.SubmitResponse{}, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if resp, ok := p.byKey[req.IdempotencyKey]; ok && req.IdempotencyKey != "" {
		return resp, nil
	}

	o := req.Order
	ref, ok := p.prices.ReferencePrice(o.Symbol, o.Side)
	if !ok {
		return execution.SubmitResponse{}, errors.Wrapf(exception.ErrVenueInvalidSymbol, "no market for %s", o.Symbol)
	}

	p.seq++
	resp := execution.SubmitResponse{
		VenueOrderID: "paper-" + strconv.FormatUint(p.seq, 10),
		Status:       schema.ExecutionStatusSubmitted,
	}
	if marketable(o, ref) {
		resp.Status = schema.ExecutionStatusFilled
		resp.FilledQty = o.Qty
		resp.AvgFillPrice = ref
	}
	if req.IdempotencyKey != "" {
		p.byKey[req.IdempotencyKey] = resp
	}
	return resp, nil
}

// Orders returns the number of distinct orders accepted.
func (p *Paper) Orders() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return int(p.seq)
}

func marketable(o schema.Order, ref schema.Price) bool {
	switch o.Type {
	case schema.OrderTypeMarket:
		return true
	case schema.OrderTypeLimit:
		if o.Side == schema.OrderSideBuy {
			return ref <= o.LimitPrice
		}
		return ref >= o.LimitPrice
	case schema.OrderTypeStop:
		if o.Side == schema.OrderSideBuy {
			return ref >= o.StopPrice
		}
		return ref <= o.StopPrice
	default:
		return false
	}
}
