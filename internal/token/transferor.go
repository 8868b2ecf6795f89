// Package token specifies the value-movement capability the ledger consumes.
// Moving real value (funding a retainer balance, escrow deposit and payout)
// belongs to the host environment; the services only require this boundary.
package token

import (
	"context"

	"trustline/pkg/domain"
)

//go:generate mockgen -source=transferor.go -destination=mocks/mocks.go -package=mocks Transferor

// EscrowAccount is the well-known address value is held under while locked.
const EscrowAccount = domain.Address("escrow-vault")

// Transferor moves amount of token from one holder to another. Implementations
// must reject overdrafts with sentinel.ErrInvalidState (wrapped or not) and
// must not partially apply a transfer.
type Transferor interface {
	Transfer(ctx context.Context, token, from, to domain.Address, amount domain.Amount) error
}
