package risk

import (
	stderrors "errors"
	"maps"
	"sync"
	"time"

	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"

	"hotpath/internal/obs"
	"hotpath/internal/schema"
	"hotpath/pkg/exception"
)

const (
	maxInt64    = int64(^uint64(0) >> 1)
	nanosPerDay = int64(24 * time.Hour)
)

// PriceSource provides the price an order on side would trade against.
type PriceSource interface {
	ReferencePrice(symbol string, side schema.OrderSide) (schema.Price, bool)
}

type reservation struct {
	symbol   string
	side     schema.OrderSide
	qty      schema.Quantity
	refPrice schema.Price
	exposure schema.Notional
}

// State is a consistent copy of the risk ledger.
type State struct {
	Positions         map[string]Position
	OpenOrders        int
	TotalExposure     schema.Notional
	ReservedExposure  schema.Notional
	DailyRealizedPnl  schema.Notional
	DailyTrades       int
	ConsecutiveLosses int
	Breaker           BreakerStatus
}

// Engine runs pre-trade checks and owns the position ledger. Check and
// reserve happen under one short-held mutex.
type Engine struct {
	prices  PriceSource
	breaker *Breaker
	metrics *obs.Metrics
	now     func() time.Time

	mu                sync.Mutex
	cfg               Config
	positions         map[string]*Position
	reservations      map[uint64]*reservation
	totalExposure     schema.Notional
	reservedExposure  schema.Notional
	groupExposure     map[string]schema.Notional
	dailyPnl          schema.Notional
	dailyTrades       int
	consecutiveLosses int
	day               int64
}

// NewEngine creates a risk engine. metrics may be nil.
func NewEngine(cfg Config, prices PriceSource, metrics *obs.Metrics) *Engine {
	e := &Engine{
		prices:        prices,
		breaker:       NewBreaker(cfg.BreakerCooldown),
		metrics:       metrics,
		now:           time.Now,
		cfg:           cfg,
		positions:     make(map[string]*Position),
		reservations:  make(map[uint64]*reservation),
		groupExposure: make(map[string]schema.Notional),
	}
	e.day = dayOf(e.now())
	return e
}

// Breaker exposes the circuit breaker for operator resume.
func (e *Engine) Breaker() *Breaker {
	return e.breaker
}

// SetConfig swaps the limits. Open reservations are kept.
func (e *Engine) SetConfig(cfg Config) {
	e.mu.Lock()
	e.cfg = cfg
	e.recomputeGroupsLocked()
	e.mu.Unlock()
	e.breaker.SetCooldown(cfg.BreakerCooldown)
}

// Config returns the active limits.
func (e *Engine) Config() Config {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cfg
}

// Check runs the ordered pre-trade checks and, on success, reserves the
// order against the open order count and exposure until Release or a final
// OnFill. It returns *BreakerOpenError, *Violation or a wrapped
// exception error.
//
// While the breaker is HalfOpen only one check runs at a time as the probe;
// concurrent checks are rejected as if the breaker were open. Any failure of
// the probe reopens the breaker and a pass closes it.
func (e *Engine) Check(order schema.Order) error {
	start := time.Now()
	defer func() { e.metrics.ObserveRiskEval(time.Since(start)) }()

	probe, status, ok := e.breaker.admit()
	if !ok {
		e.metrics.IncRiskReason(schema.RiskReasonCircuitBreakerOpen)
		return &BreakerOpenError{OrderID: order.OrderID, Symbol: order.Symbol, Reason: status.Reason, OpenedAt: status.OpenedAt}
	}

	err := e.check(order)
	if err == nil {
		if probe != 0 {
			e.breaker.probeSucceeded(probe)
		}
		e.metrics.IncRiskAllowed()
		return nil
	}

	var v *Violation
	if stderrors.As(err, &v) {
		e.metrics.IncRiskReason(v.Check)
		if v.Check == schema.RiskReasonDailyLoss {
			e.trip(TripDailyLoss)
		}
	}
	if probe != 0 && e.breaker.probeFailed(probe) {
		e.metrics.IncBreakerTrip()
	}
	return err
}

func (e *Engine) check(order schema.Order) error {
	if err := validateOrder(order); err != nil {
		return err
	}

	ref, ok := e.prices.ReferencePrice(order.Symbol, order.Side)
	if !ok || ref <= 0 {
		return &Violation{Check: schema.RiskReasonNoReferencePrice, OrderID: order.OrderID, Symbol: order.Symbol}
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if _, dup := e.reservations[order.OrderID]; dup {
		return errors.Wrapf(exception.ErrRiskDuplicateOrder, "order %d", order.OrderID)
	}
	e.rollDayLocked()
	res, v := e.evaluateLocked(order, ref)
	if v != nil {
		return v
	}
	e.reserveLocked(order.OrderID, res)
	return nil
}

func (e *Engine) evaluateLocked(order schema.Order, ref schema.Price) (*reservation, *Violation) {
	cfg := e.cfg
	deny := func(check schema.RiskReason, current, limit int64) *Violation {
		return &Violation{Check: check, OrderID: order.OrderID, Symbol: order.Symbol, Current: current, Limit: limit}
	}

	if cfg.MaxOpenPositions > 0 && len(e.reservations) >= cfg.MaxOpenPositions {
		return nil, deny(schema.RiskReasonOpenPositions, int64(len(e.reservations)), int64(cfg.MaxOpenPositions))
	}

	notional, ok := schema.MulNotional(ref, order.Qty)
	if !ok {
		notional = schema.Notional(maxInt64)
	}
	if cfg.MaxOrderValue > 0 && notional > cfg.MaxOrderValue {
		return nil, deny(schema.RiskReasonOrderSize, int64(notional), int64(cfg.MaxOrderValue))
	}

	held := e.pendingPositionLocked(order.Symbol)
	projected := held + order.SignedQty()
	projectedNotional, ok := schema.MulNotional(ref, projected.Abs())
	if !ok {
		projectedNotional = schema.Notional(maxInt64)
	}
	if cfg.MaxNotionalPerPosition > 0 && projectedNotional > cfg.MaxNotionalPerPosition {
		return nil, deny(schema.RiskReasonPositionNotional, int64(projectedNotional), int64(cfg.MaxNotionalPerPosition))
	}
	if cfg.MaxPositionSize > 0 && projected.Abs() > cfg.MaxPositionSize {
		return nil, deny(schema.RiskReasonPositionSize, int64(projected.Abs()), int64(cfg.MaxPositionSize))
	}

	var added schema.Notional
	if grow := projected.Abs() - held.Abs(); grow > 0 {
		added, ok = schema.MulNotional(ref, grow)
		if !ok {
			added = schema.Notional(maxInt64)
		}
	}
	total, ok := schema.AddNotional(e.totalExposure, e.reservedExposure)
	if ok {
		total, ok = schema.AddNotional(total, added)
	}
	if !ok {
		total = schema.Notional(maxInt64)
	}
	if cfg.MaxTotalExposure > 0 && total > cfg.MaxTotalExposure {
		return nil, deny(schema.RiskReasonTotalExposure, int64(total), int64(cfg.MaxTotalExposure))
	}

	if cfg.MaxDailyLoss > 0 && e.dailyPnl < -cfg.MaxDailyLoss {
		return nil, deny(schema.RiskReasonDailyLoss, int64(e.dailyPnl), -int64(cfg.MaxDailyLoss))
	}

	if group, ok := cfg.groupOf(order.Symbol); ok && added > 0 {
		correlated, ok := schema.AddNotional(e.groupExposure[group], added)
		if !ok {
			correlated = schema.Notional(maxInt64)
		}
		if correlated > cfg.MaxCorrelatedExposure {
			return nil, deny(schema.RiskReasonCorrelation, int64(correlated), int64(cfg.MaxCorrelatedExposure))
		}
	}

	return &reservation{
		symbol:   order.Symbol,
		side:     order.Side,
		qty:      order.Qty,
		refPrice: ref,
		exposure: added,
	}, nil
}

// pendingPositionLocked is the filled position plus every open reservation
// on symbol.
func (e *Engine) pendingPositionLocked(symbol string) schema.Quantity {
	var q schema.Quantity
	if p, ok := e.positions[symbol]; ok {
		q = p.Quantity
	}
	for _, r := range e.reservations {
		if r.symbol == symbol {
			q += schema.Quantity(r.side.Sign() * int64(r.qty))
		}
	}
	return q
}

func (e *Engine) reserveLocked(orderID uint64, r *reservation) {
	e.reservations[orderID] = r
	e.reservedExposure += r.exposure
	if group, ok := e.cfg.groupOf(r.symbol); ok {
		e.groupExposure[group] += r.exposure
	}
}

func (e *Engine) unreserveLocked(orderID uint64, r *reservation) {
	delete(e.reservations, orderID)
	e.reservedExposure -= r.exposure
	if group, ok := e.cfg.groupOf(r.symbol); ok {
		e.groupExposure[group] -= r.exposure
	}
}

// Release drops the reservation of an order that will not fill.
func (e *Engine) Release(orderID uint64) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	r, ok := e.reservations[orderID]
	if !ok {
		return errors.Wrapf(exception.ErrRiskUnknownOrder, "order %d", orderID)
	}
	e.unreserveLocked(orderID, r)
	return nil
}

// OnFill applies a venue fill to the ledger, consumes the order
// reservation and evaluates the breaker trip conditions.
func (e *Engine) OnFill(fill schema.Fill) error {
	if fill.Qty <= 0 || fill.Price <= 0 || !fill.Side.IsAvailable() || fill.Symbol == "" {
		return errors.Wrapf(exception.ErrInvalidArgument, "fill for order %d: side %s qty %s price %s", fill.OrderID, fill.Side, fill.Qty, fill.Price)
	}
	ts := fill.TsEvent
	if ts == 0 {
		ts = e.now().UnixNano()
	}

	e.mu.Lock()
	e.rollDayLocked()

	if r, ok := e.reservations[fill.OrderID]; ok {
		e.unreserveLocked(fill.OrderID, r)
		if remaining := r.qty - fill.Qty; remaining > 0 && !fill.Final {
			r.qty = remaining
			if bound, ok := schema.MulNotional(r.refPrice, remaining); ok && bound < r.exposure {
				r.exposure = bound
			}
			e.reserveLocked(fill.OrderID, r)
		}
	}

	p, ok := e.positions[fill.Symbol]
	if !ok {
		p = &Position{Symbol: fill.Symbol}
		e.positions[fill.Symbol] = p
	}
	realized := p.applyFill(fill.Side, fill.Price, fill.Qty, ts)
	e.applyExposureLocked(p, p.mark(fill.Price))

	e.dailyPnl += realized
	e.dailyTrades++
	switch {
	case realized < 0:
		e.consecutiveLosses++
	case realized > 0:
		e.consecutiveLosses = 0
	}

	cfg := e.cfg
	var reason TripReason
	switch {
	case cfg.MaxDailyLoss > 0 && e.dailyPnl < -cfg.MaxDailyLoss:
		reason = TripDailyLoss
	case cfg.MaxConsecutiveLosses > 0 && e.consecutiveLosses >= cfg.MaxConsecutiveLosses:
		reason = TripConsecutiveLosses
	case cfg.MaxDailyTrades > 0 && e.dailyTrades > cfg.MaxDailyTrades:
		reason = TripDailyTrades
	}
	e.mu.Unlock()

	if reason != TripNone {
		e.trip(reason)
	}
	return nil
}

// OnPrice marks the symbol position to market.
func (e *Engine) OnPrice(symbol string, price schema.Price) {
	if price <= 0 {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	p, ok := e.positions[symbol]
	if !ok {
		return
	}
	e.applyExposureLocked(p, p.mark(price))
}

func (e *Engine) applyExposureLocked(p *Position, delta schema.Notional) {
	if delta == 0 {
		return
	}
	e.totalExposure += delta
	if group, ok := e.cfg.groupOf(p.Symbol); ok {
		e.groupExposure[group] += delta
	}
}

func (e *Engine) recomputeGroupsLocked() {
	clear(e.groupExposure)
	for symbol, p := range e.positions {
		if group, ok := e.cfg.groupOf(symbol); ok {
			e.groupExposure[group] += p.Exposure
		}
	}
	for _, r := range e.reservations {
		if group, ok := e.cfg.groupOf(r.symbol); ok {
			e.groupExposure[group] += r.exposure
		}
	}
}

// ResetDay clears the daily pnl, trade and loss streak counters. The
// breaker state is left as is.
func (e *Engine) ResetDay() {
	e.mu.Lock()
	e.resetDayLocked(dayOf(e.now()))
	e.mu.Unlock()
}

func (e *Engine) rollDayLocked() {
	if d := dayOf(e.now()); d != e.day {
		e.resetDayLocked(d)
	}
}

func (e *Engine) resetDayLocked(day int64) {
	if e.dailyTrades > 0 || e.dailyPnl != 0 {
		logs.Infof("risk day reset: pnl %s, trades %d", e.dailyPnl, e.dailyTrades)
	}
	e.day = day
	e.dailyPnl = 0
	e.dailyTrades = 0
	e.consecutiveLosses = 0
}

func (e *Engine) trip(reason TripReason) {
	if e.breaker.Trip(reason) {
		e.metrics.IncBreakerTrip()
	}
}

// Snapshot returns a consistent copy of the ledger.
func (e *Engine) Snapshot() State {
	e.mu.Lock()
	positions := make(map[string]Position, len(e.positions))
	for symbol, p := range e.positions {
		positions[symbol] = *p
	}
	st := State{
		Positions:         positions,
		OpenOrders:        len(e.reservations),
		TotalExposure:     e.totalExposure,
		ReservedExposure:  e.reservedExposure,
		DailyRealizedPnl:  e.dailyPnl,
		DailyTrades:       e.dailyTrades,
		ConsecutiveLosses: e.consecutiveLosses,
	}
	e.mu.Unlock()
	st.Breaker = e.breaker.Status()
	return st
}

// GroupExposure returns the exposure held per correlation group.
func (e *Engine) GroupExposure() map[string]schema.Notional {
	e.mu.Lock()
	defer e.mu.Unlock()
	return maps.Clone(e.groupExposure)
}

func validateOrder(o schema.Order) error {
	switch {
	case o.OrderID == 0:
		return &Violation{Check: schema.RiskReasonInvalidOrder, Symbol: o.Symbol}
	case o.Symbol == "", !o.Side.IsAvailable(), !o.Type.IsAvailable(), o.Qty <= 0:
		return &Violation{Check: schema.RiskReasonInvalidOrder, OrderID: o.OrderID, Symbol: o.Symbol, Current: int64(o.Qty)}
	case o.Type == schema.OrderTypeLimit && o.LimitPrice <= 0:
		return &Violation{Check: schema.RiskReasonInvalidOrder, OrderID: o.OrderID, Symbol: o.Symbol, Current: int64(o.LimitPrice)}
	case o.Type == schema.OrderTypeStop && o.StopPrice <= 0:
		return &Violation{Check: schema.RiskReasonInvalidOrder, OrderID: o.OrderID, Symbol: o.Symbol, Current: int64(o.StopPrice)}
	}
	return nil
}

func dayOf(t time.Time) int64 {
	return t.UTC().UnixNano() / nanosPerDay
}
