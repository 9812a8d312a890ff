package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound             = errors.New("not found")
	ErrInsufficientStock    = errors.New("insufficient stock")
	ErrInvalidDateRange     = errors.New("invalid date range")
	ErrInvalidTransition    = errors.New("invalid transition")
	ErrPricingConfiguration = errors.New("pricing configuration error")
	ErrPersistence          = errors.New("persistence failure")
	ErrInvalidQuantity      = errors.New("quantity must be positive")
	ErrInvalidDurationUnit  = errors.New("invalid duration unit")
	ErrInvalidPaymentStatus = errors.New("invalid payment status")
	ErrUnauthorized         = errors.New("unauthorized")
	ErrProductInUse         = errors.New("product has active reservations")
	ErrCheckoutAborted      = errors.New("checkout aborted, line rolled back")
	ErrEmptyCart            = errors.New("cart is empty, nothing to checkout")
	ErrInvalidProduct       = errors.New("invalid product")
	ErrAmountOverflow       = errors.New("amount exceeds the supported range")
)

// StockError reports a consume or adjustment that would take stock below zero.
type StockError struct {
	ProductID int32
	Requested int32
	Available int32
}

func (e *StockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %d: requested %d, available %d", e.ProductID, e.Requested, e.Available)
}

func (e *StockError) Unwrap() error { return ErrInsufficientStock }

// TransitionError carries the current and requested state so staff screens can show both.
type TransitionError struct {
	From ReservationStatus
	To   ReservationStatus
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("invalid transition from %s to %s", e.From, e.To)
}

func (e *TransitionError) Unwrap() error { return ErrInvalidTransition }

type DateRangeError struct {
	Reason string
}

func (e *DateRangeError) Error() string {
	return fmt.Sprintf("invalid date range: %s", e.Reason)
}

func (e *DateRangeError) Unwrap() error { return ErrInvalidDateRange }

// ProductError rejects catalog input from the owner at create or update time.
type ProductError struct {
	Field  string
	Reason string
}

func (e *ProductError) Error() string {
	return fmt.Sprintf("invalid product %s: %s", e.Field, e.Reason)
}

func (e *ProductError) Unwrap() error { return ErrInvalidProduct }

// PricingError means the product has no positive rate for the requested unit.
// It is a data problem for the owner, not a customer input error.
type PricingError struct {
	ProductID int32
	Unit      DurationUnit
}

func (e *PricingError) Error() string {
	return fmt.Sprintf("product %d has no positive %s rate", e.ProductID, e.Unit)
}

func (e *PricingError) Unwrap() error { return ErrPricingConfiguration }

// PersistenceError wraps a storage failure. It is the only kind the checkout retries.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() []error { return []error{ErrPersistence, e.Err} }

func NewPersistenceError(op string, err error) error {
	return &PersistenceError{Op: op, Err: err}
}
