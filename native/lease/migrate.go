package lease

import (
	"fmt"

	"github.com/ethereum/go-ethereum/rlp"
)

// step converts a record from one layout to the next.
type step func(data []byte) ([]byte, error)

// steps maps a layout version to the converter lifting it by one.
var steps = map[uint32]step{
	1: fromV1,
}

// Migrate lifts data to RecordVersion one step at a time. It reports whether
// anything changed.
func Migrate(data []byte) ([]byte, bool, error) {
	version, err := peekVersion(data)
	if err != nil {
		return nil, false, err
	}
	if version > RecordVersion {
		return nil, false, fmt.Errorf("%w: %d is newer than %d", ErrUnknownVersion, version, RecordVersion)
	}
	changed := false
	for version < RecordVersion {
		convert, ok := steps[version]
		if !ok {
			return nil, false, fmt.Errorf("%w: no migration from %d", ErrUnknownVersion, version)
		}
		if data, err = convert(data); err != nil {
			return nil, false, fmt.Errorf("lease: migrate from %d: %w", version, err)
		}
		next, err := peekVersion(data)
		if err != nil {
			return nil, false, err
		}
		if next != version+1 {
			return nil, false, fmt.Errorf("lease: migration from %d produced %d", version, next)
		}
		version = next
		changed = true
	}
	return data, changed, nil
}

// envelopeV1 predates the persisted correlation sequence.
type envelopeV1 struct {
	Version uint32
	Tag     uint8
	Body    []byte
}

// seqAfterV1 starts sequences of migrated leases above any id the first
// layout could have issued.
const seqAfterV1 = uint64(1) << 32

func fromV1(data []byte) ([]byte, error) {
	var old envelopeV1
	if err := rlp.DecodeBytes(data, &old); err != nil {
		return nil, err
	}
	if _, err := decodeState(Kind(old.Tag), old.Body); err != nil {
		return nil, err
	}
	return rlp.EncodeToBytes(envelope{Version: 2, Seq: seqAfterV1, Tag: old.Tag, Body: old.Body})
}
