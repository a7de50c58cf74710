package lease

import (
	"testing"

	"github.com/ethereum/go-ethereum/rlp"
	"github.com/stretchr/testify/require"

	"leasechain/core/state"
	"leasechain/storage"
)

func TestStoreLifecycle(t *testing.T) {
	manager := state.NewManager(storage.NewMemDB())
	store := NewStore(manager)

	_, err := store.Load(contract)
	require.ErrorIs(t, err, ErrNotFound)
	list, err := store.List()
	require.NoError(t, err)
	require.Empty(t, list)

	rec := Record{State: OpenedActive{Lease: openLease(t)}, Seq: 3}
	require.NoError(t, store.Create(contract, rec))
	require.ErrorIs(t, store.Create(contract, rec), ErrAlreadyExists)

	loaded, err := store.Load(contract)
	require.NoError(t, err)
	require.Equal(t, uint64(3), loaded.Seq)
	require.Equal(t, KindOpenedActive, loaded.State.Kind())

	rec = Record{State: Closed{Lease: contract, Customer: customer}, Seq: 9}
	require.NoError(t, store.Save(contract, rec))
	loaded, err = store.Load(contract)
	require.NoError(t, err)
	require.Equal(t, Closed{Lease: contract, Customer: customer}, loaded.State)

	require.NoError(t, store.Create(stranger, rec))
	list, err = store.List()
	require.NoError(t, err)
	require.Equal(t, []string{contract.String(), stranger.String()}, []string{list[0].String(), list[1].String()})
}

func TestStoreMigratesOnLoad(t *testing.T) {
	manager := state.NewManager(storage.NewMemDB())
	store := NewStore(manager)

	body, err := rlp.EncodeToBytes(Closed{Lease: contract, Customer: customer})
	require.NoError(t, err)
	old, err := rlp.EncodeToBytes(envelopeV1{Version: 1, Tag: uint8(KindClosed), Body: body})
	require.NoError(t, err)
	require.NoError(t, manager.KVPutRaw(recordKey(contract), old))

	rec, err := store.Load(contract)
	require.NoError(t, err)
	require.Equal(t, seqAfterV1, rec.Seq)

	stored, ok, err := manager.KVGetRaw(recordKey(contract))
	require.NoError(t, err)
	require.True(t, ok)
	version, err := peekVersion(stored)
	require.NoError(t, err)
	require.Equal(t, RecordVersion, version)
}
