package finance

import "github.com/holiman/uint256"

// InterestPeriod is an interest stream paid up to Start and charged up to
// Start+Length.
type InterestPeriod struct {
	Start  Timestamp
	Length Duration
	Rate   Percent
}

// NewInterestPeriod opens a stream with no charged span.
func NewInterestPeriod(rate Percent, start Timestamp) InterestPeriod {
	return InterestPeriod{Start: start, Rate: rate}
}

// Till is the end of the charged span.
func (p InterestPeriod) Till() Timestamp { return p.Start.Add(p.Length) }

// Span returns the unpaid duration up to by, clamped to the period.
func (p InterestPeriod) Span(by Timestamp) Duration {
	return MinTimestamp(by, p.Till()).Since(p.Start)
}

// InterestDue is the interest accrued and not yet paid up to by.
func (p InterestPeriod) InterestDue(principal uint256.Int, by Timestamp) uint256.Int {
	return Interest(p.Rate, principal, p.Span(by))
}

// ExtendTo grows the charged span so that Till is at least by.
func (p InterestPeriod) ExtendTo(by Timestamp) InterestPeriod {
	if by > p.Till() {
		p.Length = by.Since(p.Start)
	}
	return p
}

// Pay applies payment towards the interest due up to by. Start moves forward
// by the span paid for while Till stays where it was.
func (p InterestPeriod) Pay(principal, payment uint256.Int, by Timestamp) (InterestPeriod, uint256.Int) {
	paidFor, change := Pay(p.Rate, principal, payment, p.Span(by))
	return p.shift(paidFor), change
}

func (p InterestPeriod) shift(d Duration) InterestPeriod {
	if d > p.Length {
		d = p.Length
	}
	p.Start = p.Start.Add(d)
	p.Length -= d
	return p
}
