//go:build integration

package directory_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"trustline/internal/directory"
	"trustline/pkg/domain"
	"trustline/pkg/platform/sentinel"
	"trustline/pkg/testutil/containers"
)

func TestPostgresStoreRoundTrip(t *testing.T) {
	pg := containers.NewPostgresContainer(t)
	store := directory.NewPostgresStore(pg.DB)
	ctx := context.Background()

	alice := domain.Address("alice")
	info := directory.RetainorInfo{
		Name:      "Alice Corp",
		Retainees: []domain.Address{"bob", "carol"},
	}
	require.NoError(t, store.SetRetainorInfo(ctx, alice, info))

	got, err := store.GetRetainorInfo(ctx, alice)
	require.NoError(t, err)
	require.Equal(t, info, got)

	// Wholesale replace, not merge.
	info.Retainees = []domain.Address{"dave"}
	require.NoError(t, store.SetRetainorInfo(ctx, alice, info))
	got, err = store.GetRetainorInfo(ctx, alice)
	require.NoError(t, err)
	require.Equal(t, []domain.Address{"dave"}, got.Retainees)
}

func TestPostgresStoreRetaineeNotFound(t *testing.T) {
	pg := containers.NewPostgresContainer(t)
	store := directory.NewPostgresStore(pg.DB)

	_, err := store.GetRetaineeInfo(context.Background(), "missing")
	require.ErrorIs(t, err, sentinel.ErrNotFound)
}

func TestPostgresStoreSidesAreIndependent(t *testing.T) {
	pg := containers.NewPostgresContainer(t)
	store := directory.NewPostgresStore(pg.DB)
	ctx := context.Background()

	require.NoError(t, store.SetRetainorInfo(ctx, "alice", directory.RetainorInfo{
		Name:      "Alice",
		Retainees: []domain.Address{"bob"},
	}))

	// Registering as a retainor does not create a retainee entry.
	_, err := store.GetRetaineeInfo(ctx, "alice")
	require.ErrorIs(t, err, sentinel.ErrNotFound)
}

func TestCachedStoreInvalidation(t *testing.T) {
	pg := containers.NewPostgresContainer(t)
	rd := containers.NewRedisContainer(t)
	inner := directory.NewPostgresStore(pg.DB)
	store := directory.NewCachedStore(inner, rd.Client, 0)
	ctx := context.Background()

	require.NoError(t, store.SetRetaineeInfo(ctx, "bob", directory.RetaineeInfo{
		Name:      "Bob",
		Retainors: []domain.Address{"alice"},
	}))

	// First read populates the cache, second read is served from it.
	first, err := store.GetRetaineeInfo(ctx, "bob")
	require.NoError(t, err)
	second, err := store.GetRetaineeInfo(ctx, "bob")
	require.NoError(t, err)
	require.Equal(t, first, second)

	// A write invalidates so the next read sees the new name.
	require.NoError(t, store.SetRetaineeInfo(ctx, "bob", directory.RetaineeInfo{
		Name:      "Robert",
		Retainors: []domain.Address{"alice"},
	}))
	got, err := store.GetRetaineeInfo(ctx, "bob")
	require.NoError(t, err)
	require.Equal(t, "Robert", got.Name)
}
