package order

import (
	"fmt"

	"github.com/go-faster/errors"
)

// Sentinel errors for order validation and lookup.
var (
	// ErrNotFound is returned when no order matches the given key.
	ErrNotFound = errors.New("order not found")
	// ErrEmptyItems is returned when a creation request has no items.
	ErrEmptyItems = errors.New("items required")
	// ErrNegativeFinalAmount is returned when discount exceeds the gross amount.
	ErrNegativeFinalAmount = errors.New("final amount must not be negative")
	// ErrAuthorizationRequired is returned when an APPROVED transition lacks
	// an authorization code.
	ErrAuthorizationRequired = errors.New("authorization code required for approval")
	// ErrErrorMessageRequired is returned when a REJECTED transition lacks
	// an error message.
	ErrErrorMessageRequired = errors.New("error message required for rejection")
)

// DuplicateError indicates a buy order business key is already taken.
type DuplicateError struct {
	BuyOrder string
}

func (e *DuplicateError) Error() string {
	return fmt.Sprintf("order %s already exists", e.BuyOrder)
}

// InvalidOperationError indicates an operation that is illegal for the
// order's current status, such as cancelling a non-pending order or deleting
// an order that is neither cancelled nor rejected.
type InvalidOperationError struct {
	Op     string
	Status Status
}

func (e *InvalidOperationError) Error() string {
	return fmt.Sprintf("cannot %s order in status %s", e.Op, e.Status)
}

// InvalidStatusError indicates an unknown status value.
type InvalidStatusError struct {
	Value string
}

func (e *InvalidStatusError) Error() string {
	return fmt.Sprintf("invalid order status %q", e.Value)
}

// InvalidQuantityError indicates a line item with a non-positive quantity.
type InvalidQuantityError struct {
	ProductCode string
}

func (e *InvalidQuantityError) Error() string {
	return fmt.Sprintf("quantity must be greater than 0 for product %s", e.ProductCode)
}

// InvalidPriceError indicates a line item with a non-positive unit price.
type InvalidPriceError struct {
	ProductCode string
}

func (e *InvalidPriceError) Error() string {
	return fmt.Sprintf("unit price must be greater than 0 for product %s", e.ProductCode)
}
