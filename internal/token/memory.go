package token

import (
	"context"
	"fmt"
	"sync"

	"trustline/pkg/domain"
	"trustline/pkg/platform/sentinel"
)

type holding struct {
	token  domain.Address
	holder domain.Address
}

// MemoryBank is the in-process Transferor used for development and tests.
// Balances start at zero; Mint seeds funds for scenarios.
type MemoryBank struct {
	mu       sync.Mutex
	balances map[holding]domain.Amount
}

func NewMemoryBank() *MemoryBank {
	return &MemoryBank{balances: make(map[holding]domain.Amount)}
}

// Mint credits holder with amount of token out of thin air.
func (b *MemoryBank) Mint(token, holder domain.Address, amount domain.Amount) {
	b.mu.Lock()
	defer b.mu.Unlock()
	key := holding{token: token, holder: holder}
	b.balances[key] = b.balances[key].Add(amount)
}

// Balance reports the current holding. Zero for unknown holders.
func (b *MemoryBank) Balance(token, holder domain.Address) domain.Amount {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.balances[holding{token: token, holder: holder}]
}

// Transfer moves value atomically under the bank's lock.
func (b *MemoryBank) Transfer(_ context.Context, token, from, to domain.Address, amount domain.Amount) error {
	if amount.IsNegative() {
		return fmt.Errorf("transfer of negative amount: %w", sentinel.ErrInvalidState)
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	fromKey := holding{token: token, holder: from}
	if b.balances[fromKey].Cmp(amount) < 0 {
		return fmt.Errorf("insufficient funds for %s: %w", from, sentinel.ErrInvalidState)
	}
	toKey := holding{token: token, holder: to}
	b.balances[fromKey] = b.balances[fromKey].Sub(amount)
	b.balances[toKey] = b.balances[toKey].Add(amount)
	return nil
}
