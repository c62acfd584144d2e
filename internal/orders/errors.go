package orders

import (
	"errors"
	"fmt"
	"strings"
)

// ErrAlreadyConfirmed is returned when a message targets an order that has
// already been committed to the confirmed store.
var ErrAlreadyConfirmed = errors.New("order already confirmed")

// NotFoundError reports a referenced order id that does not exist.
type NotFoundError struct {
	OrderID int64
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("order %d not found", e.OrderID)
}

// ValidationError reports that an order failed the completeness gate at
// confirmation time.
type ValidationError struct {
	OrderID       int64
	MissingFields []Field
}

func (e *ValidationError) Error() string {
	names := make([]string, len(e.MissingFields))
	for i, f := range e.MissingFields {
		names[i] = string(f)
	}
	return fmt.Sprintf("order %d is incomplete, missing: %s", e.OrderID, strings.Join(names, ", "))
}
