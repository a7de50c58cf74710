package crypto

import (
	"fmt"
	"io"

	"github.com/btcsuite/btcutil/bech32"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"
)

// AddressPrefix defines the different types of human-readable address prefixes.
type AddressPrefix string

const (
	// LeasePrefix marks lease contract, customer and collaborator addresses on
	// the local chain.
	LeasePrefix AddressPrefix = "lease"
)

const addressLength = 20

// Address represents a 20-byte address with a specific prefix. The zero value
// is the empty address.
type Address struct {
	prefix AddressPrefix
	bytes  [addressLength]byte
}

func NewAddress(prefix AddressPrefix, b []byte) Address {
	if len(b) != addressLength {
		panic("address must be 20 bytes long")
	}
	a := Address{prefix: prefix}
	copy(a.bytes[:], b)
	return a
}

// DeriveAddress hashes the supplied parts into a deterministic address.
func DeriveAddress(prefix AddressPrefix, parts ...[]byte) Address {
	digest := crypto.Keccak256(parts...)
	return NewAddress(prefix, digest[len(digest)-addressLength:])
}

func (a Address) String() string {
	if a.IsZero() {
		return ""
	}
	conv, err := bech32.ConvertBits(a.bytes[:], 8, 5, true)
	if err != nil {
		panic(err)
	}
	encoded, err := bech32.Encode(string(a.prefix), conv)
	if err != nil {
		panic(err)
	}
	return encoded
}

func (a Address) Bytes() []byte {
	if a.IsZero() {
		return nil
	}
	out := make([]byte, addressLength)
	copy(out, a.bytes[:])
	return out
}

// Prefix returns the human-readable prefix associated with the address.
func (a Address) Prefix() AddressPrefix {
	return a.prefix
}

// IsZero reports whether the address is unset.
func (a Address) IsZero() bool {
	return a.prefix == "" && a.bytes == [addressLength]byte{}
}

func DecodeAddress(addrStr string) (Address, error) {
	prefix, decoded, err := bech32.Decode(addrStr)
	if err != nil {
		return Address{}, fmt.Errorf("invalid bech32 string: %w", err)
	}
	conv, err := bech32.ConvertBits(decoded, 5, 8, false)
	if err != nil {
		return Address{}, fmt.Errorf("error converting bits: %w", err)
	}
	if len(conv) != addressLength {
		return Address{}, fmt.Errorf("invalid address length %d", len(conv))
	}
	return NewAddress(AddressPrefix(prefix), conv), nil
}

func (a Address) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

func (a *Address) UnmarshalText(text []byte) error {
	if len(text) == 0 {
		*a = Address{}
		return nil
	}
	decoded, err := DecodeAddress(string(text))
	if err != nil {
		return err
	}
	*a = decoded
	return nil
}

// EncodeRLP stores the bech32 rendering of the address.
func (a Address) EncodeRLP(w io.Writer) error {
	return rlp.Encode(w, a.String())
}

func (a *Address) DecodeRLP(s *rlp.Stream) error {
	var text string
	if err := s.Decode(&text); err != nil {
		return err
	}
	return a.UnmarshalText([]byte(text))
}
