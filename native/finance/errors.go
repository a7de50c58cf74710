package finance

import (
	"errors"
	"fmt"
)

var (
	ErrOverflow        = errors.New("finance: amount overflow")
	ErrUnderflow       = errors.New("finance: amount underflow")
	ErrZeroPrice       = errors.New("finance: price amounts must be positive")
	ErrUnknownCurrency = errors.New("finance: unknown currency")
	ErrNoDexSymbol     = errors.New("finance: currency has no dex symbol")
	ErrInvalidAmount   = errors.New("finance: invalid amount")
)

// CurrencyMismatchError reports an operation attempted on coins of different
// currencies.
type CurrencyMismatchError struct {
	Expected string
	Actual   string
}

func (e *CurrencyMismatchError) Error() string {
	return fmt.Sprintf("finance: currency mismatch: expected %s, got %s", e.Expected, e.Actual)
}

func mismatch(expected, actual string) error {
	return &CurrencyMismatchError{Expected: expected, Actual: actual}
}
