package book

import "errors"

// Sentinel errors for book operations. Callers match with errors.Is; every
// failed operation leaves the book exactly as it was before the call.
var (
	ErrInvalidPrice     = errors.New("price must be positive")
	ErrInvalidQuantity  = errors.New("quantity must be positive")
	ErrDuplicateOrderID = errors.New("order id already in book")
	ErrOrderNotFound    = errors.New("order not found")
)
