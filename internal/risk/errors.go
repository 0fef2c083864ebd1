package risk

import (
	"strconv"
	"time"

	"hotpath/internal/schema"
	"hotpath/pkg/exception"
)

// Violation is a rejected check. Current and Limit are scaled by
// schema.Scale except for the open order count.
type Violation struct {
	Check   schema.RiskReason
	OrderID uint64
	Symbol  string
	Current int64
	Limit   int64
}

func (v *Violation) Error() string {
	return "risk: " + v.Check.String() + " for order " + strconv.FormatUint(v.OrderID, 10) + " " + v.Symbol +
		": current " + formatValue(v.Check, v.Current) + ", limit " + formatValue(v.Check, v.Limit)
}

func (v *Violation) Unwrap() error {
	return exception.ErrRiskViolation
}

func formatValue(check schema.RiskReason, v int64) string {
	if check == schema.RiskReasonOpenPositions {
		return strconv.FormatInt(v, 10)
	}
	return schema.Notional(v).String()
}

// BreakerOpenError rejects an order while the circuit breaker is open. It is
// not a Violation.
type BreakerOpenError struct {
	OrderID  uint64
	Symbol   string
	Reason   TripReason
	OpenedAt time.Time
}

func (e *BreakerOpenError) Error() string {
	return "risk: circuit breaker open (" + string(e.Reason) + " since " + e.OpenedAt.UTC().Format(time.RFC3339) +
		"), order " + strconv.FormatUint(e.OrderID, 10) + " " + e.Symbol + " rejected"
}

func (e *BreakerOpenError) Unwrap() error {
	return exception.ErrCircuitBreakerOpen
}
