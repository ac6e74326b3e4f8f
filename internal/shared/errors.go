package shared

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound indicates the referenced document or row does not exist.
	ErrNotFound = errors.New("not found")
	// ErrValidation indicates malformed or incomplete input.
	ErrValidation = errors.New("validation failed")
	// ErrConflict indicates a duplicate unique key or an idempotency violation.
	ErrConflict = errors.New("conflict")
	// ErrInvalidState indicates a status transition the state machine does not allow.
	ErrInvalidState = errors.New("invalid state transition")
)

// InsufficientStockError is returned when a forward stock reduction exceeds
// the quantity currently on hand. It always names the offending item and the
// shortfall so the caller can report which line failed.
type InsufficientStockError struct {
	ProductID int64
	BatchID   int64
	Requested float64
	Available float64
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %d batch %d: requested %.2f, available %.2f",
		e.ProductID, e.BatchID, e.Requested, e.Available)
}

// IsInsufficientStock reports whether err wraps an InsufficientStockError.
func IsInsufficientStock(err error) bool {
	var target *InsufficientStockError
	return errors.As(err, &target)
}
