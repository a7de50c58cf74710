package finance

import (
	"fmt"
	"math"

	"github.com/holiman/uint256"
)

// Percent is expressed in permille, Hundred being 100%.
type Percent uint32

const (
	ZeroPercent Percent = 0
	Hundred     Percent = 1000
)

// FromPercent converts whole percents into permille.
func FromPercent(p uint32) Percent { return Percent(p * 10) }

// Of returns floor(amount * p / 100%).
func (p Percent) Of(amount uint256.Int) uint256.Int {
	var out uint256.Int
	if _, overflow := out.MulDivOverflow(&amount, uint256.NewInt(uint64(p)), uint256.NewInt(uint64(Hundred))); overflow {
		out.SetAllOne()
	}
	return out
}

// OfCoin applies the percent to a coin, keeping its ticker.
func (p Percent) OfCoin(c Coin) Coin {
	return Coin{Ticker: c.Ticker, Amount: p.Of(c.Amount)}
}

// Complement returns 100% - p, or zero when p exceeds 100%.
func (p Percent) Complement() Percent {
	if p >= Hundred {
		return ZeroPercent
	}
	return Hundred - p
}

func (p Percent) String() string {
	if p%10 == 0 {
		return fmt.Sprintf("%d%%", p/10)
	}
	return fmt.Sprintf("%d.%d%%", p/10, p%10)
}

// Ratio returns floor(part * 100% / whole). A zero whole yields the maximum
// percent.
func Ratio(part, whole uint256.Int) Percent {
	if whole.IsZero() {
		return Percent(math.MaxUint32)
	}
	var out uint256.Int
	if _, overflow := out.MulDivOverflow(&part, uint256.NewInt(uint64(Hundred)), &whole); overflow || !out.IsUint64() || out.Uint64() > math.MaxUint32 {
		return Percent(math.MaxUint32)
	}
	return Percent(out.Uint64())
}

// RatioOf compares two coins of the same currency.
func RatioOf(part, whole Coin) (Percent, error) {
	if part.Ticker != whole.Ticker {
		return 0, mismatch(whole.Ticker, part.Ticker)
	}
	return Ratio(part.Amount, whole.Amount), nil
}
