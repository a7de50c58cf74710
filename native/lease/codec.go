package lease

import (
	"fmt"

	"github.com/ethereum/go-ethereum/rlp"
)

// RecordVersion is the layout written by this code.
const RecordVersion uint32 = 2

// Record is what is persisted per lease: the state and the last issued
// correlation sequence.
type Record struct {
	State State
	Seq   uint64
}

type envelope struct {
	Version uint32
	Seq     uint64
	Tag     uint8
	Body    []byte
}

// Encode renders a record in the current layout.
func Encode(rec Record) ([]byte, error) {
	if rec.State == nil {
		return nil, fmt.Errorf("lease: nil state")
	}
	body, err := rlp.EncodeToBytes(rec.State)
	if err != nil {
		return nil, err
	}
	return rlp.EncodeToBytes(envelope{Version: RecordVersion, Seq: rec.Seq, Tag: uint8(rec.State.Kind()), Body: body})
}

// Decode parses a record in the current layout. Older layouts must go
// through Migrate first.
func Decode(data []byte) (Record, error) {
	version, err := peekVersion(data)
	if err != nil {
		return Record{}, err
	}
	if version != RecordVersion {
		return Record{}, fmt.Errorf("%w: %d", ErrUnknownVersion, version)
	}
	var env envelope
	if err := rlp.DecodeBytes(data, &env); err != nil {
		return Record{}, err
	}
	st, err := decodeState(Kind(env.Tag), env.Body)
	if err != nil {
		return Record{}, err
	}
	return Record{State: st, Seq: env.Seq}, nil
}

func decodeState(kind Kind, body []byte) (State, error) {
	st, err := newState(kind)
	if err != nil {
		return nil, err
	}
	if err := rlp.DecodeBytes(body, st); err != nil {
		return nil, fmt.Errorf("lease: decode %s: %w", kind, err)
	}
	st = deref(st)
	if st.Kind() != kind {
		return nil, fmt.Errorf("%w: record tagged %s holds %s", ErrUnknownKind, kind, st.Kind())
	}
	return st, nil
}

type versionHeader struct {
	Version uint32
	Rest    []rlp.RawValue `rlp:"tail"`
}

func peekVersion(data []byte) (uint32, error) {
	var header versionHeader
	if err := rlp.DecodeBytes(data, &header); err != nil {
		return 0, err
	}
	return header.Version, nil
}
