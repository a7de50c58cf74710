package position

import (
	"fmt"

	"leasechain/native/finance"
)

// Spec is the liability configuration of a position together with the
// minimum sizes, in the LPN, of the position and of any single transaction.
type Spec struct {
	Liability      Liability
	MinAsset       finance.Coin
	MinTransaction finance.Coin
}

// Validate checks the thresholds and that both minimums are LPN amounts.
func (s Spec) Validate(lpn string) error {
	if err := s.Liability.Validate(); err != nil {
		return err
	}
	if s.MinAsset.Ticker != lpn || s.MinTransaction.Ticker != lpn {
		return &finance.CurrencyMismatchError{Expected: lpn, Actual: s.MinAsset.Ticker + "/" + s.MinTransaction.Ticker}
	}
	if s.MinAsset.IsZero() || s.MinTransaction.IsZero() {
		return fmt.Errorf("%w: minimum asset and transaction must be positive", ErrPositionTooSmall)
	}
	return nil
}

// ValidateOpen checks a new position worth total, funded by downpayment.
func (s Spec) ValidateOpen(downpayment, total finance.Coin) error {
	if cmp, err := downpayment.Cmp(s.MinTransaction); err != nil {
		return err
	} else if cmp < 0 {
		return fmt.Errorf("%w: downpayment %s below %s", ErrPositionTooSmall, downpayment, s.MinTransaction)
	}
	if cmp, err := total.Cmp(s.MinAsset); err != nil {
		return err
	} else if cmp < 0 {
		return fmt.Errorf("%w: position %s below %s", ErrPositionTooSmall, total, s.MinAsset)
	}
	return nil
}

// ValidateClose checks a customer request to sell part of the position.
func (s Spec) ValidateClose(asset, amount finance.Coin, price finance.Price) error {
	if amount.Ticker != asset.Ticker {
		return &finance.CurrencyMismatchError{Expected: asset.Ticker, Actual: amount.Ticker}
	}
	if amount.IsZero() || !amount.Amount.Lt(&asset.Amount) {
		return fmt.Errorf("%w: %s of %s", ErrInvalidCloseAmount, amount, asset)
	}
	sold, err := price.Convert(amount)
	if err != nil {
		return err
	}
	if sold.Amount.Lt(&s.MinTransaction.Amount) {
		return fmt.Errorf("%w: close of %s below %s", ErrPositionTooSmall, sold, s.MinTransaction)
	}
	value, err := price.Convert(asset)
	if err != nil {
		return err
	}
	left, err := value.SaturatingSub(sold)
	if err != nil {
		return err
	}
	if left.Amount.Lt(&s.MinAsset.Amount) {
		return fmt.Errorf("%w: %s left after close, minimum %s", ErrPositionTooSmall, left, s.MinAsset)
	}
	return nil
}
