package finance

import (
	"encoding/json"
	"fmt"
	"io"
	"math/big"

	"github.com/ethereum/go-ethereum/rlp"
	"github.com/holiman/uint256"
)

// Coin is an amount tagged with the ticker of its currency. Binary operations
// refuse to mix tickers.
type Coin struct {
	Ticker string
	Amount uint256.Int
}

// NewCoin builds a coin from a 64-bit amount.
func NewCoin(ticker string, amount uint64) Coin {
	c := Coin{Ticker: ticker}
	c.Amount.SetUint64(amount)
	return c
}

// CoinFromBig builds a coin from an arbitrary precision amount.
func CoinFromBig(ticker string, amount *big.Int) (Coin, error) {
	c := Coin{Ticker: ticker}
	if amount == nil {
		return c, nil
	}
	if amount.Sign() < 0 {
		return Coin{}, ErrInvalidAmount
	}
	if c.Amount.SetFromBig(amount) {
		return Coin{}, ErrOverflow
	}
	return c, nil
}

// ParseCoin parses a decimal amount.
func ParseCoin(ticker, amount string) (Coin, error) {
	c := Coin{Ticker: ticker}
	if err := c.Amount.SetFromDecimal(amount); err != nil {
		return Coin{}, fmt.Errorf("%w: %v", ErrInvalidAmount, err)
	}
	return c, nil
}

// Zero returns the zero amount of a currency.
func Zero(ticker string) Coin { return Coin{Ticker: ticker} }

func (c Coin) IsZero() bool { return c.Amount.IsZero() }

// Big returns the amount as a big integer.
func (c Coin) Big() *big.Int { return c.Amount.ToBig() }

func (c Coin) Add(o Coin) (Coin, error) {
	if c.Ticker != o.Ticker {
		return Coin{}, mismatch(c.Ticker, o.Ticker)
	}
	out := Coin{Ticker: c.Ticker}
	if _, overflow := out.Amount.AddOverflow(&c.Amount, &o.Amount); overflow {
		return Coin{}, ErrOverflow
	}
	return out, nil
}

func (c Coin) Sub(o Coin) (Coin, error) {
	if c.Ticker != o.Ticker {
		return Coin{}, mismatch(c.Ticker, o.Ticker)
	}
	out := Coin{Ticker: c.Ticker}
	if _, underflow := out.Amount.SubOverflow(&c.Amount, &o.Amount); underflow {
		return Coin{}, ErrUnderflow
	}
	return out, nil
}

// SaturatingSub subtracts o, bottoming out at zero. Tickers must match.
func (c Coin) SaturatingSub(o Coin) (Coin, error) {
	if c.Ticker != o.Ticker {
		return Coin{}, mismatch(c.Ticker, o.Ticker)
	}
	if c.Amount.Lt(&o.Amount) {
		return Zero(c.Ticker), nil
	}
	return c.Sub(o)
}

// Cmp compares two amounts of the same currency.
func (c Coin) Cmp(o Coin) (int, error) {
	if c.Ticker != o.Ticker {
		return 0, mismatch(c.Ticker, o.Ticker)
	}
	return c.Amount.Cmp(&o.Amount), nil
}

// Min returns the smaller of two amounts of the same currency.
func (c Coin) Min(o Coin) (Coin, error) {
	cmp, err := c.Cmp(o)
	if err != nil {
		return Coin{}, err
	}
	if cmp <= 0 {
		return c, nil
	}
	return o, nil
}

// Equal reports whether both ticker and amount match.
func (c Coin) Equal(o Coin) bool {
	return c.Ticker == o.Ticker && c.Amount.Eq(&o.Amount)
}

func (c Coin) String() string {
	return c.Amount.Dec() + " " + c.Ticker
}

type storedCoin struct {
	Ticker string
	Amount *big.Int
}

// EncodeRLP implements rlp.Encoder.
func (c Coin) EncodeRLP(w io.Writer) error {
	return rlp.Encode(w, storedCoin{Ticker: c.Ticker, Amount: c.Amount.ToBig()})
}

// DecodeRLP implements rlp.Decoder.
func (c *Coin) DecodeRLP(s *rlp.Stream) error {
	var stored storedCoin
	if err := s.Decode(&stored); err != nil {
		return err
	}
	decoded, err := CoinFromBig(stored.Ticker, stored.Amount)
	if err != nil {
		return err
	}
	*c = decoded
	return nil
}

type coinJSON struct {
	Ticker string `json:"ticker"`
	Amount string `json:"amount"`
}

func (c Coin) MarshalJSON() ([]byte, error) {
	return json.Marshal(coinJSON{Ticker: c.Ticker, Amount: c.Amount.Dec()})
}

func (c *Coin) UnmarshalJSON(data []byte) error {
	var raw coinJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw.Amount == "" {
		raw.Amount = "0"
	}
	parsed, err := ParseCoin(raw.Ticker, raw.Amount)
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}
