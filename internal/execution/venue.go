package execution

import (
	"context"

	"hotpath/internal/schema"
)

// SubmitRequest is one submission of an order to the venue. Every attempt
// of an order carries the same IdempotencyKey.
type SubmitRequest struct {
	Order          schema.Order
	IdempotencyKey string
	Attempt        int
}

// SubmitResponse is the venue acknowledgement of an accepted submission.
type SubmitResponse struct {
	VenueOrderID string
	Status       schema.ExecutionStatus
	FilledQty    schema.Quantity
	AvgFillPrice schema.Price
}

// Venue submits orders. Implementations wrap failures in the
// exception.ErrVenue* sentinels so the router can tell transient from
// permanent errors.
type Venue interface {
	Submit(ctx context.Context, req SubmitRequest) (SubmitResponse, error)
}

// FillSink receives fills of routed orders.
type FillSink interface {
	OnFill(fill schema.Fill) error
}

// Releaser drops the risk reservation of an order that will not fill.
type Releaser interface {
	Release(orderID uint64) error
}

// Publisher receives every terminal execution result.
type Publisher interface {
	PublishResult(result schema.ExecutionResult)
}
