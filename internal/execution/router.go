package execution

import (
	"context"
	stderrors "errors"
	"sync"
	"time"

	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"
	"golang.org/x/time/rate"

	"hotpath/internal/obs"
	"hotpath/internal/schema"
	"hotpath/pkg/exception"
)

// Hooks wires the router to its collaborators. Every field is optional.
type Hooks struct {
	Fills     FillSink
	Releaser  Releaser
	Publisher Publisher
	Sleeper   Sleeper
	Metrics   *obs.Metrics
}

// Receipt is returned for an order the venue accepted.
type Receipt struct {
	OrderID        uint64
	VenueOrderID   string
	Status         schema.ExecutionStatus
	FilledQuantity schema.Quantity
	AvgFillPrice   schema.Price
	Attempts       int
	IdempotencyKey string
}

// Router submits risk-approved orders to a venue behind a token-bucket rate
// gate and a slippage gate, retrying transient failures with capped
// exponential backoff.
type Router struct {
	venue    Venue
	hooks    Hooks
	limiter  *rate.Limiter
	attempts *Attempts
	now      func() time.Time

	mu  sync.RWMutex
	cfg Config
}

// NewRouter creates a router for venue.
func NewRouter(cfg Config, venue Venue, hooks Hooks) (*Router, error) {
	if venue == nil {
		return nil, errors.Wrap(exception.ErrNilInstance, "venue")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if hooks.Sleeper == nil {
		hooks.Sleeper = TimerSleeper
	}
	return &Router{
		venue:    venue,
		hooks:    hooks,
		limiter:  rate.NewLimiter(limitOf(cfg), cfg.burst()),
		attempts: NewAttempts(),
		now:      time.Now,
		cfg:      cfg,
	}, nil
}

func limitOf(cfg Config) rate.Limit {
	if cfg.RateLimitPerSecond <= 0 {
		return rate.Inf
	}
	return rate.Limit(cfg.RateLimitPerSecond)
}

// SetConfig swaps the gates and retry policy for subsequent routes.
func (r *Router) SetConfig(cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	r.mu.Lock()
	r.cfg = cfg
	r.mu.Unlock()
	r.limiter.SetLimit(limitOf(cfg))
	r.limiter.SetBurst(cfg.burst())
	return nil
}

func (r *Router) config() Config {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.cfg
}

// Attempts exposes the attempt tracker.
func (r *Router) Attempts() *Attempts {
	return r.attempts
}

// Route submits order. marketPrice is the current price used by the
// slippage gate for limit orders and may be nil.
//
// A second Route for an order id that is in flight or finished returns
// exception.ErrOrderDuplicate. Every other failure is an *ExecutionError.
func (r *Router) Route(ctx context.Context, order schema.Order, marketPrice *schema.Price) (Receipt, error) {
	start := time.Now()
	defer func() { r.hooks.Metrics.ObserveRoute(time.Since(start)) }()

	cfg := r.config()
	a, err := r.attempts.Begin(order, IdempotencyKey(order.OrderID))
	if err != nil {
		return Receipt{}, err
	}

	if execErr := r.waitToken(ctx, a, cfg); execErr != nil {
		return Receipt{}, r.finishWithError(a, execErr)
	}
	if execErr := checkOrderSlippage(a, marketPrice, cfg.MaxSlippageBps); execErr != nil {
		return Receipt{}, r.finishWithError(a, execErr)
	}

	resp, execErr := r.submit(ctx, a, cfg)
	if execErr != nil {
		return Receipt{}, r.finishWithError(a, execErr)
	}
	return r.complete(a, resp)
}

func (r *Router) waitToken(ctx context.Context, a *Attempt, cfg Config) *ExecutionError {
	waitCtx := ctx
	if cfg.RateWaitTimeout > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, cfg.RateWaitTimeout)
		defer cancel()
	}
	err := r.limiter.Wait(waitCtx)
	if err == nil {
		return nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return cancelled(a, ctxErr)
	}
	r.hooks.Metrics.IncRateLimited()
	return &ExecutionError{
		Kind:    KindRateLimited,
		OrderID: a.Order.OrderID,
		Err:     errors.Wrapf(exception.ErrOrderRateLimitWait, "waited %s: %v", cfg.RateWaitTimeout, err),
	}
}

func checkOrderSlippage(a *Attempt, marketPrice *schema.Price, maxBps int64) *ExecutionError {
	order := a.Order
	if order.Type != schema.OrderTypeLimit || maxBps <= 0 {
		return nil
	}
	if marketPrice == nil || *marketPrice <= 0 {
		return &ExecutionError{
			Kind:    KindPermanent,
			OrderID: order.OrderID,
			Reason:  ReasonNoMarketPrice,
			Err:     errors.Wrapf(exception.ErrOrderNoMarketPrice, "symbol %s", order.Symbol),
		}
	}
	if err := CheckSlippage(order.LimitPrice, *marketPrice, maxBps); err != nil {
		return &ExecutionError{
			Kind:    KindPermanent,
			OrderID: order.OrderID,
			Reason:  ReasonSlippageExceeded,
			Err:     err,
		}
	}
	return nil
}

func (r *Router) submit(ctx context.Context, a *Attempt, cfg Config) (SubmitResponse, *ExecutionError) {
	for retry := 0; ; retry++ {
		if err := ctx.Err(); err != nil {
			return SubmitResponse{}, cancelled(a, err)
		}

		a.Count++
		resp, err := r.venue.Submit(ctx, SubmitRequest{
			Order:          a.Order,
			IdempotencyKey: a.IdempotencyKey,
			Attempt:        a.Count,
		})
		if err == nil {
			return resp, nil
		}
		a.LastError = err

		if ctxErr := ctx.Err(); ctxErr != nil {
			return SubmitResponse{}, cancelled(a, ctxErr)
		}
		if !IsTransient(err) {
			return SubmitResponse{}, &ExecutionError{
				Kind:     KindPermanent,
				OrderID:  a.Order.OrderID,
				Attempts: a.Count,
				Reason:   permanentReason(err),
				Err:      err,
			}
		}
		if retry >= cfg.MaxRetries {
			return SubmitResponse{}, &ExecutionError{
				Kind:     KindMaxRetriesExceeded,
				OrderID:  a.Order.OrderID,
				Attempts: a.Count,
				Err:      err,
			}
		}

		delay := Backoff(cfg.RetryBaseDelay, cfg.RetryMaxDelay, retry)
		logs.Infof("order %d attempt %d failed, retry in %s: %v", a.Order.OrderID, a.Count, delay, err)
		r.hooks.Metrics.IncRetry()
		if err := r.hooks.Sleeper.Sleep(ctx, delay); err != nil {
			return SubmitResponse{}, cancelled(a, err)
		}
	}
}

func cancelled(a *Attempt, cause error) *ExecutionError {
	return &ExecutionError{
		Kind:     KindCancelled,
		OrderID:  a.Order.OrderID,
		Attempts: a.Count,
		Reason:   ReasonCancelled,
		Err:      cause,
	}
}

func (r *Router) complete(a *Attempt, resp SubmitResponse) (Receipt, error) {
	if err := a.Transition(schema.ExecutionStatusSubmitted); err != nil {
		return Receipt{}, err
	}
	a.VenueOrderID = resp.VenueOrderID
	a.FilledQty = resp.FilledQty
	a.AvgFillPrice = resp.AvgFillPrice

	switch resp.Status {
	case schema.ExecutionStatusRejected:
		return Receipt{}, r.finishWithError(a, &ExecutionError{
			Kind:     KindPermanent,
			OrderID:  a.Order.OrderID,
			Attempts: a.Count,
			Reason:   ReasonVenueRejected,
			Err:      errors.Wrapf(exception.ErrVenueRejected, "venue order %s", resp.VenueOrderID),
		})
	case schema.ExecutionStatusFilled, schema.ExecutionStatusPartiallyFilled:
		if err := a.Transition(resp.Status); err != nil {
			return Receipt{}, err
		}
	}

	r.reportFill(a)
	r.finish(a)
	return Receipt{
		OrderID:        a.Order.OrderID,
		VenueOrderID:   a.VenueOrderID,
		Status:         a.Status,
		FilledQuantity: a.FilledQty,
		AvgFillPrice:   a.AvgFillPrice,
		Attempts:       a.Count,
		IdempotencyKey: a.IdempotencyKey,
	}, nil
}

func (r *Router) reportFill(a *Attempt) {
	if r.hooks.Fills == nil || a.FilledQty <= 0 {
		return
	}
	price := a.AvgFillPrice
	if price <= 0 {
		price = a.Order.LimitPrice
	}
	fill := schema.Fill{
		OrderID: a.Order.OrderID,
		Symbol:  a.Order.Symbol,
		Side:    a.Order.Side,
		Price:   price,
		Qty:     a.FilledQty,
		Final:   a.Status.IsTerminal(),
		TsEvent: r.now().UnixNano(),
	}
	if err := r.hooks.Fills.OnFill(fill); err != nil {
		logs.Errorf("order %d fill report failed: %+v", a.Order.OrderID, err)
	}
}

func (r *Router) finishWithError(a *Attempt, execErr *ExecutionError) error {
	to := schema.ExecutionStatusFailed
	if execErr.Kind == KindPermanent {
		to = schema.ExecutionStatusRejected
	}
	if execErr.Attempts == 0 {
		execErr.Attempts = a.Count
	}
	a.LastError = execErr.Err
	if err := a.Transition(to); err != nil {
		logs.Errorf("order %d: %+v", a.Order.OrderID, err)
	}

	if r.hooks.Releaser != nil {
		if err := r.hooks.Releaser.Release(a.Order.OrderID); err != nil && !stderrors.Is(err, exception.ErrRiskUnknownOrder) {
			logs.Errorf("order %d release failed: %+v", a.Order.OrderID, err)
		}
	}
	r.finish(a)
	return execErr
}

func (r *Router) finish(a *Attempt) {
	r.attempts.Finish(a)
	r.hooks.Metrics.IncExecution(a.Status)
	if r.hooks.Publisher == nil {
		return
	}
	result := schema.ExecutionResult{
		OrderID:      a.Order.OrderID,
		Symbol:       a.Order.Symbol,
		Status:       a.Status,
		Attempts:     uint16(min(a.Count, 1<<16-1)),
		FilledQty:    a.FilledQty,
		AvgFillPrice: a.AvgFillPrice,
		VenueOrderID: a.VenueOrderID,
		TsEvent:      r.now().UnixNano(),
	}
	if a.LastError != nil && !a.Status.IsSuccess() {
		result.Error = a.LastError.Error()
	}
	r.hooks.Publisher.PublishResult(result)
}
