package orders

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrEmptySelection    = errors.New("no items selected or cart is empty")
	ErrInvalidTransition = errors.New("invalid state transition")
	ErrValidation        = errors.New("validation failed")
	ErrConflict          = errors.New("conflict")
	ErrStorage           = errors.New("storage failure")

	// ErrDuplicateOrderNumber is returned by Tx.InsertOrder when the generated
	// order number is already taken. The service retries with a fresh token.
	ErrDuplicateOrderNumber = errors.New("order number already exists")
)

// StockError carries the shortfall for a single product.
type StockError struct {
	ProductID int64  `json:"product_id"`
	Name      string `json:"name,omitempty"`
	Required  int    `json:"required"`
	Available int    `json:"available"`
}

func (e *StockError) Error() string {
	return fmt.Sprintf("not enough stock for product %d: required %d, available %d", e.ProductID, e.Required, e.Available)
}

func (e *StockError) Unwrap() error { return ErrInsufficientStock }

// TransitionError reports a rejected status change.
type TransitionError struct {
	From Status
	To   Status
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("cannot move order from %s to %s", e.From, e.To)
}

func (e *TransitionError) Unwrap() error { return ErrInvalidTransition }

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

func storage(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrStorage, op, err)
}

// Kind maps an error to the stable name exposed to API clients.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNotFound):
		return "NotFound"
	case errors.Is(err, ErrInsufficientStock):
		return "InsufficientStock"
	case errors.Is(err, ErrEmptySelection):
		return "EmptySelection"
	case errors.Is(err, ErrInvalidTransition):
		return "InvalidStateTransition"
	case errors.Is(err, ErrValidation):
		return "Validation"
	case errors.Is(err, ErrConflict):
		return "Conflict"
	default:
		return "StorageFailure"
	}
}
