package billing

import (
	"context"

	"trustline/pkg/domain"
)

// Store persists ledger state for billing pairs. Every method is atomic:
// the memory store holds its mutex for the whole call and the postgres store
// runs a single transaction, so check-then-write sequences inside one call
// cannot interleave.
//
// Stores return sentinel errors; the service translates them to coded
// domain errors.
type Store interface {
	// PutPendingBill fills the pair's pending slot. Returns
	// sentinel.ErrConflict when a pending bill already exists.
	PutPendingBill(ctx context.Context, pair Pair, bill Bill) error
	// GetPendingBill returns sentinel.ErrNotFound for an empty slot.
	GetPendingBill(ctx context.Context, pair Pair) (Bill, error)
	// ClearPendingBill empties the slot. Clearing an empty slot is not an
	// error.
	ClearPendingBill(ctx context.Context, pair Pair) error

	// ResolvePending atomically reads the pending bill, appends the receipt
	// at the current history index, advances the index, and clears the slot.
	// Returns sentinel.ErrNotFound when no bill is pending, along with the
	// index the receipt was written at.
	ResolvePending(ctx context.Context, pair Pair, status ApprovalStatus, notes, date string) (Receipt, uint32, error)

	// GetReceipt returns sentinel.ErrNotFound for indices never written.
	GetReceipt(ctx context.Context, pair Pair, index uint32) (Receipt, error)
	// HistoryIndex is the number of receipts recorded for the pair; the next
	// receipt will be written at this index.
	HistoryIndex(ctx context.Context, pair Pair) (uint32, error)
	// ReceiptRange returns receipts for indices start..end inclusive in
	// ascending order, skipping indices with no receipt.
	ReceiptRange(ctx context.Context, pair Pair, start, end uint32) ([]Receipt, error)

	// AddBalance creates the (pair, token) record at delta or accumulates
	// into it, returning the post-update balance.
	AddBalance(ctx context.Context, pair Pair, token domain.Address, delta domain.Amount) (RetainerBalance, error)
	// GetBalance returns sentinel.ErrNotFound for never-funded records.
	GetBalance(ctx context.Context, pair Pair, token domain.Address) (RetainerBalance, error)
	// ListBalances returns all token records for the pair, token ascending.
	ListBalances(ctx context.Context, pair Pair) ([]RetainerBalance, error)
}
