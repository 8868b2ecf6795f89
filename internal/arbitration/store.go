package arbitration

import (
	"context"

	"trustline/pkg/domain"
)

// Store persists arbitration panels and their release decisions. Stores
// return sentinel errors; the service translates them to coded domain
// errors.
type Store interface {
	// SetConfig writes the arbiter's panel, replacing any previous one.
	SetConfig(ctx context.Context, arbiter domain.Address, config ArbitrationConfig) error
	// GetConfig returns sentinel.ErrNotFound for unknown arbiters.
	GetConfig(ctx context.Context, arbiter domain.Address) (ArbitrationConfig, error)

	// AddSignature appends the cosigner to the event's signature list,
	// creating the event on first signature. Duplicates are absorbed; the
	// returned event never counts a cosigner twice.
	AddSignature(ctx context.Context, key EventKey, cosigner domain.Address) (ArbitrationEventConfig, error)
	// GetEvent returns sentinel.ErrNotFound when nobody signed yet.
	GetEvent(ctx context.Context, key EventKey) (ArbitrationEventConfig, error)
}
