package crypto

import (
	"bytes"
	"testing"

	"github.com/ethereum/go-ethereum/rlp"
)

func TestAddressRoundTrip(t *testing.T) {
	raw := bytes.Repeat([]byte{0x42}, 20)
	addr := NewAddress(LeasePrefix, raw)
	decoded, err := DecodeAddress(addr.String())
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded != addr {
		t.Fatalf("round trip mismatch: %s vs %s", decoded, addr)
	}
	if decoded.Prefix() != LeasePrefix {
		t.Fatalf("unexpected prefix %s", decoded.Prefix())
	}

	encoded, err := rlp.EncodeToBytes(addr)
	if err != nil {
		t.Fatalf("rlp encode: %v", err)
	}
	var fromRLP Address
	if err := rlp.DecodeBytes(encoded, &fromRLP); err != nil {
		t.Fatalf("rlp decode: %v", err)
	}
	if fromRLP != addr {
		t.Fatalf("rlp round trip mismatch")
	}
}

func TestZeroAddress(t *testing.T) {
	var zero Address
	if !zero.IsZero() || zero.String() != "" || zero.Bytes() != nil {
		t.Fatalf("zero address not empty: %q", zero.String())
	}
	encoded, err := rlp.EncodeToBytes(zero)
	if err != nil {
		t.Fatalf("encode zero: %v", err)
	}
	var decoded Address
	if err := rlp.DecodeBytes(encoded, &decoded); err != nil {
		t.Fatalf("decode zero: %v", err)
	}
	if !decoded.IsZero() {
		t.Fatalf("zero address did not survive encoding")
	}
}

func TestDeriveAddressDeterministic(t *testing.T) {
	a := DeriveAddress(LeasePrefix, []byte("customer"), []byte{1})
	b := DeriveAddress(LeasePrefix, []byte("customer"), []byte{1})
	c := DeriveAddress(LeasePrefix, []byte("customer"), []byte{2})
	if a != b {
		t.Fatalf("derivation not deterministic")
	}
	if a == c {
		t.Fatalf("different inputs derived the same address")
	}
}

func TestDecodeAddressRejectsGarbage(t *testing.T) {
	if _, err := DecodeAddress("not-an-address"); err == nil {
		t.Fatalf("expected decode failure")
	}
}
