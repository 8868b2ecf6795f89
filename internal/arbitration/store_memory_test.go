package arbitration

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"trustline/pkg/domain"
	"trustline/pkg/platform/sentinel"
)

func TestMemoryStoreConfig(t *testing.T) {
	store := NewInMemoryStore()
	ctx := context.Background()

	_, err := store.GetConfig(ctx, "arbiter")
	require.ErrorIs(t, err, sentinel.ErrNotFound)

	config := ArbitrationConfig{Cosigners: []domain.Address{"a", "b"}, Approvals: 2}
	require.NoError(t, store.SetConfig(ctx, "arbiter", config))

	got, err := store.GetConfig(ctx, "arbiter")
	require.NoError(t, err)
	require.Equal(t, config, got)

	// The returned slice is a copy.
	got.Cosigners[0] = "mutated"
	again, err := store.GetConfig(ctx, "arbiter")
	require.NoError(t, err)
	require.Equal(t, domain.Address("a"), again.Cosigners[0])
}

func TestMemoryStoreSignatures(t *testing.T) {
	store := NewInMemoryStore()
	ctx := context.Background()
	key := EventKey{Arbiter: "arbiter", Depositor: "carol", Index: 3}

	_, err := store.GetEvent(ctx, key)
	require.ErrorIs(t, err, sentinel.ErrNotFound)

	event, err := store.AddSignature(ctx, key, "a")
	require.NoError(t, err)
	require.Equal(t, []domain.Address{"a"}, event.Signatures)

	// Duplicates are absorbed.
	event, err = store.AddSignature(ctx, key, "a")
	require.NoError(t, err)
	require.Len(t, event.Signatures, 1)

	event, err = store.AddSignature(ctx, key, "b")
	require.NoError(t, err)
	require.Len(t, event.Signatures, 2)

	// Distinct keys are distinct decisions.
	other := EventKey{Arbiter: "arbiter", Depositor: "carol", Index: 4}
	event, err = store.AddSignature(ctx, other, "a")
	require.NoError(t, err)
	require.Len(t, event.Signatures, 1)
}
