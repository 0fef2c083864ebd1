package risk

import (
	"errors"

	"hotpath/internal/schema"
)

// Decision renders the outcome of Check as a bus payload.
func Decision(order schema.Order, ref schema.Price, err error, ts int64) schema.RiskDecision {
	d := schema.RiskDecision{
		OrderID:  order.OrderID,
		Symbol:   order.Symbol,
		Action:   schema.RiskActionAllow,
		Reason:   schema.RiskReasonNone,
		Side:     order.Side,
		Qty:      order.Qty,
		RefPrice: ref,
		TsEvent:  ts,
	}
	if err == nil {
		return d
	}

	d.Action = schema.RiskActionDeny
	var v *Violation
	var open *BreakerOpenError
	switch {
	case errors.As(err, &v):
		d.Reason = v.Check
		d.Current = v.Current
		d.Limit = v.Limit
	case errors.As(err, &open):
		d.Reason = schema.RiskReasonCircuitBreakerOpen
	default:
		d.Reason = schema.RiskReasonInvalidOrder
	}
	return d
}
