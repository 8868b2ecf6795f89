//go:build integration

package billing_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"trustline/internal/billing"
	"trustline/pkg/domain"
	"trustline/pkg/platform/sentinel"
	"trustline/pkg/testutil/containers"
)

func TestPostgresStoreBillLifecycle(t *testing.T) {
	pg := containers.NewPostgresContainer(t)
	store := billing.NewPostgresStore(pg.DB)
	ctx := context.Background()
	pair := billing.Pair{Retainor: "alice", Retainee: "bob"}

	bill := billing.Bill{
		Amount: domain.NewAmount(100),
		Token:  "usdc",
		Notes:  "march retainer",
		Date:   "2026-03-31",
	}
	require.NoError(t, store.PutPendingBill(ctx, pair, bill))
	require.ErrorIs(t, store.PutPendingBill(ctx, pair, bill), sentinel.ErrConflict)

	got, err := store.GetPendingBill(ctx, pair)
	require.NoError(t, err)
	require.Equal(t, bill, got)

	receipt, index, err := store.ResolvePending(ctx, pair, billing.StatusApproved, "paid", "2026-04-02")
	require.NoError(t, err)
	require.Equal(t, uint32(0), index)
	require.Equal(t, bill, receipt.Bill)

	// Slot free, index advanced, receipt readable.
	_, err = store.GetPendingBill(ctx, pair)
	require.ErrorIs(t, err, sentinel.ErrNotFound)
	hi, err := store.HistoryIndex(ctx, pair)
	require.NoError(t, err)
	require.Equal(t, uint32(1), hi)

	stored, err := store.GetReceipt(ctx, pair, 0)
	require.NoError(t, err)
	require.Equal(t, receipt, stored)

	_, _, err = store.ResolvePending(ctx, pair, billing.StatusApproved, "", "")
	require.ErrorIs(t, err, sentinel.ErrNotFound)
}

func TestPostgresStoreReceiptRange(t *testing.T) {
	pg := containers.NewPostgresContainer(t)
	store := billing.NewPostgresStore(pg.DB)
	ctx := context.Background()
	pair := billing.Pair{Retainor: "alice", Retainee: "bob"}

	for i := int64(0); i < 3; i++ {
		require.NoError(t, store.PutPendingBill(ctx, pair, billing.Bill{Amount: domain.NewAmount(i), Token: "usdc"}))
		_, _, err := store.ResolvePending(ctx, pair, billing.StatusApproved, "", "")
		require.NoError(t, err)
	}

	receipts, err := store.ReceiptRange(ctx, pair, 1, 2)
	require.NoError(t, err)
	require.Len(t, receipts, 2)
	require.Equal(t, domain.NewAmount(1), receipts[0].Bill.Amount)
	require.Equal(t, domain.NewAmount(2), receipts[1].Bill.Amount)
}

func TestPostgresStoreBalances(t *testing.T) {
	pg := containers.NewPostgresContainer(t)
	store := billing.NewPostgresStore(pg.DB)
	ctx := context.Background()
	pair := billing.Pair{Retainor: "alice", Retainee: "bob"}

	_, err := store.GetBalance(ctx, pair, "usdc")
	require.ErrorIs(t, err, sentinel.ErrNotFound)

	first, err := store.AddBalance(ctx, pair, "usdc", domain.NewAmount(300))
	require.NoError(t, err)
	require.Equal(t, domain.NewAmount(300), first.Amount)

	second, err := store.AddBalance(ctx, pair, "usdc", domain.NewAmount(200))
	require.NoError(t, err)
	require.Equal(t, domain.NewAmount(500), second.Amount)

	_, err = store.AddBalance(ctx, pair, "eurc", domain.NewAmount(10))
	require.NoError(t, err)

	balances, err := store.ListBalances(ctx, pair)
	require.NoError(t, err)
	require.Len(t, balances, 2)
	require.Equal(t, domain.Address("eurc"), balances[0].Token)
	require.Equal(t, domain.Address("usdc"), balances[1].Token)
}
