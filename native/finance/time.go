package finance

import (
	"math"
	"time"
)

// Timestamp is a point in block time expressed in nanoseconds since the Unix
// epoch.
type Timestamp uint64

// Duration is a non-negative span of block time in nanoseconds.
type Duration uint64

const (
	Nanosecond Duration = 1
	Second              = 1_000_000_000 * Nanosecond
	Minute              = 60 * Second
	Hour                = 60 * Minute
	Day                 = 24 * Hour
	Year                = 365 * Day
)

// TimestampFrom converts a wall clock time into block time.
func TimestampFrom(t time.Time) Timestamp {
	if t.IsZero() || t.UnixNano() < 0 {
		return 0
	}
	return Timestamp(t.UnixNano())
}

// DurationFrom converts a standard library duration, clamping negatives to zero.
func DurationFrom(d time.Duration) Duration {
	if d <= 0 {
		return 0
	}
	return Duration(d)
}

// Time renders the timestamp as a UTC wall clock time.
func (t Timestamp) Time() time.Time {
	if t > math.MaxInt64 {
		return time.Unix(0, math.MaxInt64).UTC()
	}
	return time.Unix(0, int64(t)).UTC()
}

// Add shifts the timestamp forward, saturating at the maximum representable
// instant.
func (t Timestamp) Add(d Duration) Timestamp {
	if uint64(t) > math.MaxUint64-uint64(d) {
		return Timestamp(math.MaxUint64)
	}
	return t + Timestamp(d)
}

// SubDuration shifts the timestamp backwards, saturating at the epoch.
func (t Timestamp) SubDuration(d Duration) Timestamp {
	if uint64(d) >= uint64(t) {
		return 0
	}
	return t - Timestamp(d)
}

// Since returns the span from u to t, or zero when u is not before t.
func (t Timestamp) Since(u Timestamp) Duration {
	if u >= t {
		return 0
	}
	return Duration(t - u)
}

func (t Timestamp) Before(u Timestamp) bool { return t < u }

func (t Timestamp) String() string { return t.Time().Format(time.RFC3339Nano) }

// Std converts the duration into a standard library duration.
func (d Duration) Std() time.Duration {
	if d > math.MaxInt64 {
		return time.Duration(math.MaxInt64)
	}
	return time.Duration(d)
}

func (d Duration) String() string { return d.Std().String() }

// MinTimestamp returns the earlier instant.
func MinTimestamp(a, b Timestamp) Timestamp {
	if a < b {
		return a
	}
	return b
}

// MaxTimestamp returns the later instant.
func MaxTimestamp(a, b Timestamp) Timestamp {
	if a > b {
		return a
	}
	return b
}
