package execution

import (
	"context"
	stderrors "errors"
	"net"
	"strconv"

	"hotpath/pkg/exception"
)

// ErrorKind classifies a router failure.
type ErrorKind uint8

const (
	KindTransient ErrorKind = iota + 1
	KindPermanent
	KindMaxRetriesExceeded
	KindRateLimited
	KindCancelled
)

func (k ErrorKind) String() string {
	switch k {
	case KindTransient:
		return "Transient"
	case KindPermanent:
		return "Permanent"
	case KindMaxRetriesExceeded:
		return "MaxRetriesExceeded"
	case KindRateLimited:
		return "RateLimited"
	case KindCancelled:
		return "Cancelled"
	default:
		return "Unknown"
	}
}

// Reasons carried by permanent failures.
const (
	ReasonSlippageExceeded  = "SlippageExceeded"
	ReasonNoMarketPrice     = "NoMarketPrice"
	ReasonInsufficientFunds = "InsufficientFunds"
	ReasonInvalidSymbol     = "InvalidSymbol"
	ReasonMarketClosed      = "MarketClosed"
	ReasonVenueRejected     = "VenueRejected"
	ReasonCancelled         = "Cancelled"
)

// ExecutionError is returned by Route. Err holds the last underlying cause.
type ExecutionError struct {
	Kind     ErrorKind
	OrderID  uint64
	Attempts int
	Reason   string
	Err      error
}

func (e *ExecutionError) Error() string {
	msg := "execution: order " + strconv.FormatUint(e.OrderID, 10) + " " + e.Kind.String()
	if e.Reason != "" {
		msg += " (" + e.Reason + ")"
	}
	msg += " after " + strconv.Itoa(e.Attempts) + " attempts"
	if e.Err != nil {
		msg += ", err: " + e.Err.Error()
	}
	return msg
}

func (e *ExecutionError) Unwrap() error {
	return e.Err
}

// Is matches the order sentinel of the error kind.
func (e *ExecutionError) Is(target error) bool {
	switch e.Kind {
	case KindCancelled:
		return target == exception.ErrOrderCancelled
	case KindMaxRetriesExceeded:
		return target == exception.ErrOrderMaxRetriesExceeded
	case KindRateLimited:
		return target == exception.ErrOrderRateLimitWait
	default:
		return false
	}
}

// IsTransient reports whether a venue error may succeed on resubmission:
// network failures, 5xx responses and explicit rate-limit responses.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if stderrors.Is(err, exception.ErrVenueTransient) || stderrors.Is(err, exception.ErrVenueRateLimited) {
		return true
	}
	if stderrors.Is(err, context.Canceled) {
		return false
	}
	var netErr net.Error
	return stderrors.As(err, &netErr)
}

func permanentReason(err error) string {
	switch {
	case stderrors.Is(err, exception.ErrVenueInsufficientFunds):
		return ReasonInsufficientFunds
	case stderrors.Is(err, exception.ErrVenueInvalidSymbol):
		return ReasonInvalidSymbol
	case stderrors.Is(err, exception.ErrVenueMarketClosed):
		return ReasonMarketClosed
	default:
		return ReasonVenueRejected
	}
}
