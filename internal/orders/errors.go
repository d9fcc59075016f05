package orders

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound           = errors.New("not found")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrInvalidQuantity    = errors.New("quantity must be a positive integer")
	ErrInsufficientStock  = errors.New("insufficient stock")
	ErrInvalidTransition  = errors.New("invalid status transition")
	ErrTransientConflict  = errors.New("concurrent update conflict, retry the operation")
	ErrProductUnavailable = errors.New("product is not available for ordering")
	ErrInvalidInput       = errors.New("invalid input")

	// ErrConflict is returned by stores when a write precondition no longer
	// holds. The ledger retries it; callers never see it directly.
	ErrConflict = errors.New("write precondition failed")
	// ErrStatusChanged is returned by conditional order writes whose expected
	// status is no longer the stored one. Retrying cannot succeed.
	ErrStatusChanged = errors.New("order status changed")
)

type StockError struct {
	ProductID string `json:"product_id"`
	Requested int    `json:"required"`
	Available int    `json:"available"`
}

func (e *StockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %s: requested %d, available %d",
		e.ProductID, e.Requested, e.Available)
}

func (e *StockError) Unwrap() error { return ErrInsufficientStock }

func invalidInput(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}
