package execution

import (
	"strconv"

	"github.com/google/uuid"
)

var idempotencyNamespace = uuid.MustParse("6f1d3a52-8c2e-4b7a-9e41-0d5c7f28ab13")

// IdempotencyKey derives the venue idempotency key of an order. The same
// order id always yields the same key.
func IdempotencyKey(orderID uint64) string {
	return uuid.NewSHA1(idempotencyNamespace, []byte(strconv.FormatUint(orderID, 10))).String()
}
