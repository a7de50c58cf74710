package platform

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"leasechain/crypto"
	"leasechain/native/finance"
)

// SwapHop is one leg of a swap path: the pool to trade through and the
// currency it yields.
type SwapHop struct {
	PoolID uint64
	Target string
}

// Querier answers the read-only questions a lease asks its collaborators.
type Querier interface {
	// Price quotes one unit pair of base in quote.
	Price(ctx context.Context, base, quote string) (finance.Price, error)
	// SwapPath returns the hops converting from into to.
	SwapPath(ctx context.Context, from, to string) ([]SwapHop, error)
	// Balance returns the local balance of an account in a currency.
	Balance(ctx context.Context, account crypto.Address, ticker string) (finance.Coin, error)
}

// Env is the execution context of one invocation.
type Env struct {
	Now      finance.Timestamp
	Contract crypto.Address
	Sender   crypto.Address
	Funds    []finance.Coin
	Querier  Querier
	IDs      *Sequencer
}

var correlationNamespace = uuid.MustParse("6f1d7c64-8a41-4e0b-9b7e-2d5c3f0a9e11")

// Sequencer issues deterministic correlation ids for pending requests. The
// counter is persisted with the lease so ids never repeat.
type Sequencer struct {
	owner crypto.Address
	seq   uint64
}

func NewSequencer(owner crypto.Address, seq uint64) *Sequencer {
	return &Sequencer{owner: owner, seq: seq}
}

// Next reserves the next id for operation op.
func (s *Sequencer) Next(op string) string {
	s.seq++
	name := fmt.Sprintf("%s/%d/%s", s.owner, s.seq, op)
	return uuid.NewSHA1(correlationNamespace, []byte(name)).String()
}

// Seq returns the last issued sequence number.
func (s *Sequencer) Seq() uint64 { return s.seq }

// Pending records a request the lease waits on.
type Pending struct {
	ID string
	Op string
}

// Matches reports whether a reply carries this request's id.
func (p Pending) Matches(id string) bool {
	return p.ID != "" && p.ID == id
}
