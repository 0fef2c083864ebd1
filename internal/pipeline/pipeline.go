package pipeline

import (
	"context"
	stderrors "errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"

	"hotpath/internal/book"
	"hotpath/internal/bus"
	"hotpath/internal/codec"
	"hotpath/internal/execution"
	"hotpath/internal/journal"
	"hotpath/internal/obs"
	"hotpath/internal/risk"
	"hotpath/internal/schema"
	"hotpath/pkg/exception"
)

// Options carries the optional collaborators of a pipeline.
type Options struct {
	Broker  *bus.Broker
	Journal *journal.Journal
	Metrics *obs.Metrics
	Sleeper execution.Sleeper
}

// Pipeline runs market deltas into the books and order intents through risk
// and the router on the caller goroutine.
type Pipeline struct {
	books   *book.Manager
	risk    *risk.Engine
	router  *execution.Router
	broker  *bus.Broker
	journal *journal.Journal
	metrics *obs.Metrics
	now     func() time.Time

	traces sync.Map
	trips  atomic.Uint64
}

// New wires books, engine and venue. The router reports fills and
// releases back into engine.
func New(books *book.Manager, engine *risk.Engine, venue execution.Venue, cfg execution.Config, opts Options) (*Pipeline, error) {
	if books == nil {
		return nil, errors.Wrap(exception.ErrNilInstance, "book manager")
	}
	if engine == nil {
		return nil, errors.Wrap(exception.ErrNilInstance, "risk engine")
	}

	p := &Pipeline{
		books:   books,
		risk:    engine,
		broker:  opts.Broker,
		journal: opts.Journal,
		metrics: opts.Metrics,
		now:     time.Now,
	}
	p.trips.Store(engine.Breaker().Trips())

	router, err := execution.NewRouter(cfg, venue, execution.Hooks{
		Fills:     p,
		Releaser:  engine,
		Publisher: p,
		Sleeper:   opts.Sleeper,
		Metrics:   opts.Metrics,
	})
	if err != nil {
		return nil, err
	}
	p.router = router
	return p, nil
}

func (p *Pipeline) Books() *book.Manager      { return p.books }
func (p *Pipeline) Risk() *risk.Engine        { return p.risk }
func (p *Pipeline) Router() *execution.Router { return p.router }

// OnDelta applies a market delta, marks the symbol to market and publishes
// the delta on the market topic.
func (p *Pipeline) OnDelta(d schema.MarketDelta) (uint64, error) {
	seq, err := p.books.Apply(d)
	if err != nil {
		return seq, err
	}
	if mark, ok := p.books.MarkPrice(d.Symbol); ok {
		p.risk.OnPrice(d.Symbol, mark)
	}
	if p.broker != nil {
		payload, err := codec.EncodeMarketDelta(nil, d)
		if err != nil {
			logs.Errorf("encode market delta %s failed, err: %+v", d.Symbol, err)
			return seq, nil
		}
		p.publish(schema.EventMarketDelta, payload, 0)
	}
	return seq, nil
}

// Submit runs order through the pre-trade checks and routes it when
// accepted. A rejection returns the risk error; the decision is published
// and journaled either way. An order id the router has already finished is
// rejected with exception.ErrOrderDuplicate before any reservation is made.
func (p *Pipeline) Submit(ctx context.Context, order schema.Order) (execution.Receipt, error) {
	start := time.Now()
	defer func() { p.metrics.ObserveOrderFlow(time.Since(start)) }()

	if st, done := p.router.Attempts().Status(order.OrderID); done {
		return execution.Receipt{}, errors.Wrapf(exception.ErrOrderDuplicate, "order %d already %s", order.OrderID, st)
	}

	ref, hasRef := p.books.ReferencePrice(order.Symbol, order.Side)
	checkErr := p.risk.Check(order)
	decision := risk.Decision(order, ref, checkErr, p.now().UnixNano())
	traceID := p.publishDecision(decision)
	p.noteTrips()
	if checkErr != nil {
		return execution.Receipt{}, checkErr
	}

	if traceID != 0 {
		p.traces.Store(order.OrderID, traceID)
	}
	var market *schema.Price
	if hasRef {
		market = &ref
	}
	receipt, err := p.router.Route(ctx, order, market)
	if stderrors.Is(err, exception.ErrOrderDuplicate) {
		p.traces.Delete(order.OrderID)
		if relErr := p.risk.Release(order.OrderID); relErr != nil {
			logs.Errorf("order %d release after duplicate route failed, err: %+v", order.OrderID, relErr)
		}
	}
	return receipt, err
}

func (p *Pipeline) publishDecision(d schema.RiskDecision) uint64 {
	p.journal.RiskDecision(d)
	if p.broker == nil {
		return 0
	}
	payload, err := codec.EncodeRiskDecision(nil, d)
	if err != nil {
		logs.Errorf("encode risk decision %d failed, err: %+v", d.OrderID, err)
		return 0
	}
	return p.publish(schema.EventRiskDecision, payload, 0)
}

// PublishResult journals and publishes a terminal execution result under
// the trace id of its risk decision.
func (p *Pipeline) PublishResult(r schema.ExecutionResult) {
	p.journal.ExecutionResult(r)
	var traceID uint64
	if v, ok := p.traces.LoadAndDelete(r.OrderID); ok {
		traceID = v.(uint64)
	}
	if p.broker == nil {
		return
	}
	payload, err := codec.EncodeExecutionResult(nil, r)
	if err != nil {
		logs.Errorf("encode execution result %d failed, err: %+v", r.OrderID, err)
		return
	}
	p.publish(schema.EventExecutionResult, payload, traceID)
}

// OnFill forwards a venue fill to the risk ledger.
func (p *Pipeline) OnFill(fill schema.Fill) error {
	err := p.risk.OnFill(fill)
	p.noteTrips()
	return err
}

func (p *Pipeline) publish(eventType schema.EventType, payload []byte, traceID uint64) uint64 {
	header, err := p.broker.Publish(eventType, payload, traceID)
	if err != nil {
		logs.Errorf("publish %s failed, err: %+v", eventType, err)
		return 0
	}
	return header.TraceID
}

func (p *Pipeline) noteTrips() {
	breaker := p.risk.Breaker()
	trips := breaker.Trips()
	for {
		seen := p.trips.Load()
		if trips <= seen {
			return
		}
		if p.trips.CompareAndSwap(seen, trips) {
			break
		}
	}
	status := breaker.Status()
	logs.Errorf("circuit breaker open, reason: %s", status.Reason)
	p.journal.BreakerTrip(string(status.Reason), status.OpenedAt.UnixNano())
}
