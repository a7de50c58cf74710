package finance

import (
	"fmt"
	"math/big"

	"github.com/holiman/uint256"
)

// Price states that Amount of the base currency is worth Quote of the quote
// currency.
type Price struct {
	Amount Coin
	Quote  Coin
}

// NewPrice validates both legs of a price.
func NewPrice(amount, quote Coin) (Price, error) {
	p := Price{Amount: amount, Quote: quote}
	if err := p.Validate(); err != nil {
		return Price{}, err
	}
	return p, nil
}

func (p Price) Validate() error {
	if p.Amount.IsZero() || p.Quote.IsZero() {
		return ErrZeroPrice
	}
	return nil
}

// Base returns the ticker being priced.
func (p Price) Base() string { return p.Amount.Ticker }

// QuoteTicker returns the ticker the price is expressed in.
func (p Price) QuoteTicker() string { return p.Quote.Ticker }

// Convert values a base currency amount in the quote currency, rounding down.
func (p Price) Convert(c Coin) (Coin, error) {
	if c.Ticker != p.Amount.Ticker {
		return Coin{}, mismatch(p.Amount.Ticker, c.Ticker)
	}
	if p.Amount.IsZero() {
		return Coin{}, ErrZeroPrice
	}
	out := Coin{Ticker: p.Quote.Ticker}
	if _, overflow := out.Amount.MulDivOverflow(&c.Amount, &p.Quote.Amount, &p.Amount.Amount); overflow {
		return Coin{}, ErrOverflow
	}
	return out, nil
}

// Inverse swaps base and quote.
func (p Price) Inverse() Price {
	return Price{Amount: p.Quote, Quote: p.Amount}
}

// Cmp orders two prices of the same currency pair.
func (p Price) Cmp(o Price) (int, error) {
	if p.Amount.Ticker != o.Amount.Ticker {
		return 0, mismatch(p.Amount.Ticker, o.Amount.Ticker)
	}
	if p.Quote.Ticker != o.Quote.Ticker {
		return 0, mismatch(p.Quote.Ticker, o.Quote.Ticker)
	}
	left := new(big.Int).Mul(p.Quote.Big(), o.Amount.Big())
	right := new(big.Int).Mul(o.Quote.Big(), p.Amount.Big())
	return left.Cmp(right), nil
}

// Reduced divides both legs by their greatest common divisor.
func (p Price) Reduced() Price {
	a, q := p.Amount.Big(), p.Quote.Big()
	gcd := new(big.Int).GCD(nil, nil, a, q)
	if gcd.Sign() == 0 || gcd.Cmp(big.NewInt(1)) == 0 {
		return p
	}
	out := p
	out.Amount.Amount.SetFromBig(a.Quo(a, gcd))
	out.Quote.Amount.SetFromBig(q.Quo(q, gcd))
	return out
}

func (p Price) String() string {
	return fmt.Sprintf("%s = %s", p.Amount, p.Quote)
}

// PriceAt returns the price of the asset at which due / (asset * price)
// equals ltv.
func PriceAt(asset, due Coin, ltv Percent) (Price, error) {
	if asset.IsZero() || due.IsZero() || ltv == 0 {
		return Price{}, ErrZeroPrice
	}
	amount := new(big.Int).Mul(asset.Big(), big.NewInt(int64(ltv)))
	quote := new(big.Int).Mul(due.Big(), big.NewInt(int64(Hundred)))
	gcd := new(big.Int).GCD(nil, nil, amount, quote)
	amount.Quo(amount, gcd)
	quote.Quo(quote, gcd)
	base, err := CoinFromBig(asset.Ticker, amount)
	if err != nil {
		return Price{}, err
	}
	q, err := CoinFromBig(due.Ticker, quote)
	if err != nil {
		return Price{}, err
	}
	return Price{Amount: base, Quote: q}, nil
}

// PriceBelow returns the lowest price at which Ratio(due, asset value) is
// still under ltv. Values and ratios both round down, so every price strictly
// below it yields an LTV of ltv or more.
func PriceBelow(asset, due Coin, ltv Percent) (Price, error) {
	if asset.IsZero() || due.IsZero() || ltv == 0 {
		return Price{}, ErrZeroPrice
	}
	value := new(big.Int).Mul(due.Big(), big.NewInt(int64(Hundred)))
	value.Quo(value, big.NewInt(int64(ltv)))
	value.Add(value, big.NewInt(1))
	quote, err := CoinFromBig(due.Ticker, value)
	if err != nil {
		return Price{}, err
	}
	return Price{Amount: asset, Quote: quote}.Reduced(), nil
}

// mulDiv returns floor(x * y / d) and whether the result overflowed.
func mulDiv(x, y, d *uint256.Int) (uint256.Int, bool) {
	var out uint256.Int
	if d.IsZero() {
		return out, true
	}
	_, overflow := out.MulDivOverflow(x, y, d)
	return out, overflow
}
