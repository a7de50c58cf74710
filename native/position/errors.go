package position

import (
	"errors"
	"fmt"

	"leasechain/native/finance"
)

var (
	ErrInvalidLiability    = errors.New("position: invalid liability thresholds")
	ErrZeroClosePolicy     = errors.New("position: close policy trigger must be positive")
	ErrLiquidationConflict = errors.New("position: close policy conflicts with the liquidation zone")
	ErrInvalidCloseAmount  = errors.New("position: invalid close amount")
	ErrPositionTooSmall    = errors.New("position: amount below the minimum")
)

// TriggerError reports a close policy that would fire at the current price.
type TriggerError struct {
	Strategy Strategy
	LTV      finance.Percent
	Price    finance.Price
}

func (e *TriggerError) Error() string {
	return fmt.Sprintf("position: %s would trigger immediately at ltv %s, price %s", e.Strategy, e.LTV, e.Price)
}
