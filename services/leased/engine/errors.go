package engine

import (
	"errors"

	nativecommon "leasechain/native/common"
	"leasechain/native/finance"
	"leasechain/native/lease"
	"leasechain/native/loan"
	"leasechain/native/position"
)

// Error classes reported in metrics and mapped to API status codes.
const (
	ClassValidation   = "validation"
	ClassUnauthorized = "unauthorized"
	ClassUnsupported  = "unsupported"
	ClassProtocol     = "protocol"
	ClassPaused       = "paused"
	ClassNotFound     = "not_found"
	ClassInternal     = "internal"
)

var validationErrors = []error{
	lease.ErrInvalidForm,
	lease.ErrInvalidPayment,
	position.ErrInvalidLiability,
	position.ErrZeroClosePolicy,
	position.ErrLiquidationConflict,
	position.ErrInvalidCloseAmount,
	position.ErrPositionTooSmall,
	loan.ErrInvalidPeriods,
	loan.ErrZeroPrincipal,
	finance.ErrInvalidAmount,
	finance.ErrUnknownCurrency,
	finance.ErrNoDexSymbol,
	finance.ErrZeroPrice,
	ErrInsufficientFunds,
	ErrNoPrice,
}

// Classify buckets an execution error.
func Classify(err error) string {
	if err == nil {
		return ""
	}
	var (
		unsupported *lease.UnsupportedOperationError
		violation   *lease.ProtocolViolationError
		trigger     *position.TriggerError
		mismatch    *finance.CurrencyMismatchError
	)
	switch {
	case errors.Is(err, lease.ErrNotFound):
		return ClassNotFound
	case errors.Is(err, lease.ErrUnauthorized):
		return ClassUnauthorized
	case errors.Is(err, nativecommon.ErrModulePaused):
		return ClassPaused
	case errors.As(err, &unsupported):
		return ClassUnsupported
	case errors.As(err, &violation):
		return ClassProtocol
	case errors.As(err, &trigger), errors.As(err, &mismatch):
		return ClassValidation
	}
	for _, target := range validationErrors {
		if errors.Is(err, target) {
			return ClassValidation
		}
	}
	return ClassInternal
}
