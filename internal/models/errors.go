package models

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var (
	// ErrAccountNotFound indicates the handle does not resolve to an account.
	ErrAccountNotFound = errors.New("account not found")

	// ErrAccountExists indicates the handle is already registered.
	ErrAccountExists = errors.New("account already exists")

	// ErrInvalidAmount indicates the amount is non-positive or exceeds
	// two-decimal precision.
	ErrInvalidAmount = errors.New("amount must be positive with at most two decimal places")

	// ErrSelfTransfer indicates sender and receiver are the same account.
	ErrSelfTransfer = errors.New("cannot transfer to the same account")

	// ErrStorageUnavailable indicates the store could not complete the
	// atomic unit; no partial state change escaped.
	ErrStorageUnavailable = errors.New("storage unavailable")
)

// InsufficientFundsError is returned when a debit or transfer amount exceeds
// the balance observed inside the mutation scope. It carries the shortfall
// context for caller display.
type InsufficientFundsError struct {
	Requested decimal.Decimal
	Available decimal.Decimal
}

func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("insufficient funds: requested %s, available %s",
		e.Requested.StringFixed(2), e.Available.StringFixed(2))
}

// IsInsufficientFunds reports whether err is an InsufficientFundsError.
func IsInsufficientFunds(err error) bool {
	var ife *InsufficientFundsError
	return errors.As(err, &ife)
}
