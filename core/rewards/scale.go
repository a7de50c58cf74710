package rewards

import (
	"errors"
	"fmt"
	"sort"

	"github.com/holiman/uint256"

	"leasechain/native/finance"
)

var (
	ErrNoBars          = errors.New("rewards: scale requires at least one bar")
	ErrFirstBarNotZero = errors.New("rewards: first bar must start at zero tvl")
	ErrDuplicateBar    = errors.New("rewards: duplicate tvl threshold")
)

// Bar assigns an APR to every TVL at or above its threshold, up to the next
// bar. Thresholds are expressed in thousands of the pool currency.
type Bar struct {
	TVL uint64
	APR finance.Percent
}

// Scale maps the pool's total value locked to the rewards APR.
type Scale struct {
	bars []Bar
}

// NewScale sorts and validates the bars.
func NewScale(bars []Bar) (Scale, error) {
	if len(bars) == 0 {
		return Scale{}, ErrNoBars
	}
	sorted := append([]Bar(nil), bars...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].TVL < sorted[j].TVL })
	if sorted[0].TVL != 0 {
		return Scale{}, ErrFirstBarNotZero
	}
	for i := 1; i < len(sorted); i++ {
		if sorted[i].TVL == sorted[i-1].TVL {
			return Scale{}, fmt.Errorf("%w: %d", ErrDuplicateBar, sorted[i].TVL)
		}
	}
	return Scale{bars: sorted}, nil
}

// APR returns the APR of the highest bar whose threshold does not exceed tvl.
func (s Scale) APR(tvl uint256.Int) finance.Percent {
	if len(s.bars) == 0 {
		return 0
	}
	idx := sort.Search(len(s.bars), func(i int) bool {
		threshold := uint256.NewInt(s.bars[i].TVL)
		return threshold.Gt(&tvl)
	})
	if idx == 0 {
		return s.bars[0].APR
	}
	return s.bars[idx-1].APR
}

// Bars returns a copy of the configured bars in ascending order.
func (s Scale) Bars() []Bar {
	return append([]Bar(nil), s.bars...)
}
