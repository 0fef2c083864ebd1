package exception

import "github.com/yanun0323/errors"

var (
	ErrOrderInvalid            = errors.New("order: invalid order")
	ErrOrderDuplicate          = errors.New("order: already routed")
	ErrOrderInvalidTransition  = errors.New("order: invalid state transition")
	ErrOrderSlippageExceeded   = errors.New("order: slippage exceeded")
	ErrOrderNoMarketPrice      = errors.New("order: market price unavailable")
	ErrOrderMaxRetriesExceeded = errors.New("order: max retries exceeded")
	ErrOrderRateLimitWait      = errors.New("order: rate limit wait timed out")
	ErrOrderCancelled          = errors.New("order: cancelled")
)

var (
	ErrVenueTransient          = errors.New("venue: transient failure")
	ErrVenueRateLimited        = errors.New("venue: rate limited")
	ErrVenueInsufficientFunds  = errors.New("venue: insufficient funds")
	ErrVenueInvalidSymbol      = errors.New("venue: invalid symbol")
	ErrVenueMarketClosed       = errors.New("venue: market closed")
	ErrVenueRejected           = errors.New("venue: order rejected")
	ErrVenueDecodeResponseBody = errors.New("venue: decode response body")
	ErrVenueEmptyOrderID       = errors.New("venue: empty response order id")
)
