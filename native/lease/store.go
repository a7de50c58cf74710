package lease

import (
	"leasechain/crypto"
)

// KVStore is the persistence the lease store builds on.
type KVStore interface {
	KVGetRaw(key []byte) ([]byte, bool, error)
	KVPutRaw(key []byte, value []byte) error
	KVAppend(key []byte, value []byte) error
	KVGetList(key []byte, out interface{}) error
}

var indexKey = []byte("lease/index")

func recordKey(addr crypto.Address) []byte {
	return append([]byte("lease/record/"), addr.Bytes()...)
}

// Store keeps one record per lease.
type Store struct {
	kv KVStore
}

func NewStore(kv KVStore) *Store { return &Store{kv: kv} }

// Load reads a lease, migrating and re-storing older layouts first.
func (s *Store) Load(addr crypto.Address) (Record, error) {
	key := recordKey(addr)
	data, ok, err := s.kv.KVGetRaw(key)
	if err != nil {
		return Record{}, err
	}
	if !ok {
		return Record{}, ErrNotFound
	}
	data, migrated, err := Migrate(data)
	if err != nil {
		return Record{}, err
	}
	if migrated {
		if err := s.kv.KVPutRaw(key, data); err != nil {
			return Record{}, err
		}
	}
	return Decode(data)
}

// Create stores the first record of a new lease.
func (s *Store) Create(addr crypto.Address, rec Record) error {
	if _, ok, err := s.kv.KVGetRaw(recordKey(addr)); err != nil {
		return err
	} else if ok {
		return ErrAlreadyExists
	}
	if err := s.Save(addr, rec); err != nil {
		return err
	}
	return s.kv.KVAppend(indexKey, addr.Bytes())
}

// Save overwrites a lease record.
func (s *Store) Save(addr crypto.Address, rec Record) error {
	data, err := Encode(rec)
	if err != nil {
		return err
	}
	return s.kv.KVPutRaw(recordKey(addr), data)
}

// List returns every lease ever created, in creation order.
func (s *Store) List() ([]crypto.Address, error) {
	var raw [][]byte
	if err := s.kv.KVGetList(indexKey, &raw); err != nil {
		return nil, err
	}
	out := make([]crypto.Address, 0, len(raw))
	for _, b := range raw {
		out = append(out, crypto.NewAddress(crypto.LeasePrefix, b))
	}
	return out, nil
}
