package execution

import (
	"sync"

	"github.com/yanun0323/errors"

	"hotpath/internal/schema"
	"hotpath/pkg/exception"
)

// Attempt is the router-owned view of one order while it is being
// submitted. It is discarded once a terminal status is reached.
type Attempt struct {
	Order          schema.Order
	Count          int
	Status         schema.ExecutionStatus
	LastError      error
	IdempotencyKey string
	VenueOrderID   string
	FilledQty      schema.Quantity
	AvgFillPrice   schema.Price
}

// transitions lists the allowed status moves.
var transitions = map[schema.ExecutionStatus][]schema.ExecutionStatus{
	schema.ExecutionStatusPending: {
		schema.ExecutionStatusSubmitted,
		schema.ExecutionStatusRejected,
		schema.ExecutionStatusFailed,
	},
	schema.ExecutionStatusSubmitted: {
		schema.ExecutionStatusFilled,
		schema.ExecutionStatusPartiallyFilled,
		schema.ExecutionStatusRejected,
	},
}

func canTransition(from, to schema.ExecutionStatus) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Transition moves the attempt to status to.
func (a *Attempt) Transition(to schema.ExecutionStatus) error {
	if !canTransition(a.Status, to) {
		return errors.Wrapf(exception.ErrOrderInvalidTransition, "order %d: %s -> %s", a.Order.OrderID, a.Status, to)
	}
	a.Status = to
	return nil
}

// Attempts tracks in-flight attempts and the final status of every order
// the router has finished with.
type Attempts struct {
	mu       sync.Mutex
	inflight map[uint64]*Attempt
	finished map[uint64]schema.ExecutionStatus
}

// NewAttempts creates an empty tracker.
func NewAttempts() *Attempts {
	return &Attempts{
		inflight: make(map[uint64]*Attempt),
		finished: make(map[uint64]schema.ExecutionStatus),
	}
}

// Begin registers a Pending attempt. An order id that is in flight or
// already finished is rejected.
func (t *Attempts) Begin(order schema.Order, key string) (*Attempt, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.inflight[order.OrderID]; ok {
		return nil, errors.Wrapf(exception.ErrOrderDuplicate, "order %d in flight", order.OrderID)
	}
	if st, ok := t.finished[order.OrderID]; ok {
		return nil, errors.Wrapf(exception.ErrOrderDuplicate, "order %d already %s", order.OrderID, st)
	}
	a := &Attempt{
		Order:          order,
		Status:         schema.ExecutionStatusPending,
		IdempotencyKey: key,
	}
	t.inflight[order.OrderID] = a
	return a, nil
}

// Finish retires an attempt and remembers its final status.
func (t *Attempts) Finish(a *Attempt) {
	t.mu.Lock()
	delete(t.inflight, a.Order.OrderID)
	t.finished[a.Order.OrderID] = a.Status
	t.mu.Unlock()
}

// Status returns the final status of a finished order.
func (t *Attempts) Status(orderID uint64) (schema.ExecutionStatus, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	st, ok := t.finished[orderID]
	return st, ok
}

// InFlight returns the number of orders being submitted.
func (t *Attempts) InFlight() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.inflight)
}
