package escrow

import (
	"context"

	"trustline/pkg/domain"
)

// Store persists the admin gate and escrow receipts. Stores return sentinel
// errors; the service translates them to coded domain errors.
//
// Receipt indices are dense per depositor: AppendReceipt writes at the
// current count and advances it. Withdrawn receipts are deleted but the
// count never rewinds, so an index is spent forever once its receipt is
// gone.
type Store interface {
	// SeedAdmin writes the admin only when none is set. Returns
	// sentinel.ErrConflict when an admin already exists.
	SeedAdmin(ctx context.Context, admin domain.Address) error
	// GetAdmin returns sentinel.ErrNotFound when never seeded.
	GetAdmin(ctx context.Context) (domain.Address, error)
	SetAdmin(ctx context.Context, admin domain.Address) error

	AppendReceipt(ctx context.Context, receipt ReceiptConfig) (uint32, error)
	// GetReceipt returns sentinel.ErrNotFound for never-written or withdrawn
	// indices.
	GetReceipt(ctx context.Context, depositor domain.Address, index uint32) (ReceiptConfig, error)
	ReceiptCount(ctx context.Context, depositor domain.Address) (uint32, error)
	// ListReceipts returns the depositor's live receipts with their indices,
	// index ascending.
	ListReceipts(ctx context.Context, depositor domain.Address) (map[uint32]ReceiptConfig, error)

	// SetReceiptAmount rewrites the remaining amount after a partial
	// withdrawal.
	SetReceiptAmount(ctx context.Context, depositor domain.Address, index uint32, remaining domain.Amount) error
	// DeleteReceipt removes a fully withdrawn receipt so the index cannot be
	// drawn twice.
	DeleteReceipt(ctx context.Context, depositor domain.Address, index uint32) error
}
