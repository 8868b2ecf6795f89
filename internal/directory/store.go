package directory

import (
	"context"

	"trustline/pkg/domain"
)

// Store persists directory entries. Writes are wholesale replaces; reads
// return sentinel.ErrNotFound for addresses that never registered.
type Store interface {
	SetRetainorInfo(ctx context.Context, retainor domain.Address, info RetainorInfo) error
	GetRetainorInfo(ctx context.Context, retainor domain.Address) (RetainorInfo, error)
	SetRetaineeInfo(ctx context.Context, retainee domain.Address, info RetaineeInfo) error
	GetRetaineeInfo(ctx context.Context, retainee domain.Address) (RetaineeInfo, error)
}
