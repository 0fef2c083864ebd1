package book

import (
	"strconv"

	"hotpath/internal/schema"
	"hotpath/pkg/exception"
)

// ValidationError rejects a malformed update. The book is left untouched and
// the sequence does not advance.
type ValidationError struct {
	Symbol string
	Field  string
	Value  string
	Reason string
}

func (e *ValidationError) Error() string {
	return "book: invalid update for " + e.Symbol + ": " + e.Field + "=" + e.Value + " " + e.Reason
}

func (e *ValidationError) Unwrap() error {
	return exception.ErrBookValidation
}

func validateUpdate(symbol string, side schema.BookSide, price schema.Price, qty schema.Quantity) error {
	if !side.IsAvailable() {
		return &ValidationError{Symbol: symbol, Field: "side", Value: strconv.Itoa(int(side)), Reason: "is unknown"}
	}
	if price < 0 {
		return &ValidationError{Symbol: symbol, Field: "price", Value: price.String(), Reason: "must be >= 0"}
	}
	if qty < 0 {
		return &ValidationError{Symbol: symbol, Field: "quantity", Value: qty.String(), Reason: "must be >= 0"}
	}
	return nil
}
