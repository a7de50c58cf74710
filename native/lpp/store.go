package lpp

import (
	"leasechain/crypto"
)

// KVStore is the subset of the state manager the pool persists through.
type KVStore interface {
	KVGet(key []byte, out interface{}) (bool, error)
	KVPut(key []byte, value interface{}) error
	KVDelete(key []byte) error
}

var (
	totalsKey  = []byte("lpp/totals")
	loanPrefix = "lpp/loan/"
)

func loanKey(lease crypto.Address) []byte {
	return []byte(loanPrefix + lease.String())
}

// Store persists pool records in a KV store.
type Store struct {
	kv KVStore
}

func NewStore(kv KVStore) *Store { return &Store{kv: kv} }

func (s *Store) GetTotals() (*Totals, error) {
	var totals Totals
	ok, err := s.kv.KVGet(totalsKey, &totals)
	if err != nil || !ok {
		return nil, err
	}
	return &totals, nil
}

func (s *Store) PutTotals(totals *Totals) error {
	return s.kv.KVPut(totalsKey, totals)
}

func (s *Store) GetLoan(lease crypto.Address) (*Loan, error) {
	var loan Loan
	ok, err := s.kv.KVGet(loanKey(lease), &loan)
	if err != nil || !ok {
		return nil, err
	}
	return &loan, nil
}

func (s *Store) PutLoan(loan *Loan) error {
	return s.kv.KVPut(loanKey(loan.Lease), loan)
}

func (s *Store) DeleteLoan(lease crypto.Address) error {
	return s.kv.KVDelete(loanKey(lease))
}
