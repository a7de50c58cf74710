package rewards

import (
	"errors"
	"testing"

	"github.com/holiman/uint256"
)

func TestScaleLookup(t *testing.T) {
	scale, err := NewScale([]Bar{{TVL: 150000, APR: 15}, {TVL: 0, APR: 6}, {TVL: 30000, APR: 10}})
	if err != nil {
		t.Fatalf("new scale: %v", err)
	}
	var max uint256.Int
	max.SetAllOne()
	cases := []struct {
		tvl  *uint256.Int
		want uint32
	}{
		{uint256.NewInt(0), 6},
		{uint256.NewInt(29999), 6},
		{uint256.NewInt(30000), 10},
		{uint256.NewInt(149999), 10},
		{uint256.NewInt(150000), 15},
		{&max, 15},
	}
	for _, tc := range cases {
		if got := scale.APR(*tc.tvl); uint32(got) != tc.want {
			t.Fatalf("apr(%s): got %d want %d", tc.tvl.Dec(), got, tc.want)
		}
	}
}

func TestScaleValidation(t *testing.T) {
	if _, err := NewScale(nil); !errors.Is(err, ErrNoBars) {
		t.Fatalf("expected no bars error, got %v", err)
	}
	if _, err := NewScale([]Bar{{TVL: 10, APR: 1}}); !errors.Is(err, ErrFirstBarNotZero) {
		t.Fatalf("expected first bar error, got %v", err)
	}
	if _, err := NewScale([]Bar{{TVL: 0, APR: 1}, {TVL: 0, APR: 2}}); !errors.Is(err, ErrDuplicateBar) {
		t.Fatalf("expected duplicate error, got %v", err)
	}
}
