package billing

import (
	"context"
	"sort"
	"sync"

	"trustline/pkg/domain"
	"trustline/pkg/platform/sentinel"
)

type balanceKey struct {
	pair  Pair
	token domain.Address
}

// InMemoryStore keeps ledger state in maps guarded by a single mutex, for
// development and tests. Holding the lock across each call gives the same
// call-level atomicity the postgres store gets from transactions.
type InMemoryStore struct {
	mu       sync.RWMutex
	pending  map[Pair]Bill
	history  map[Pair]map[uint32]Receipt
	indices  map[Pair]uint32
	balances map[balanceKey]domain.Amount
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		pending:  make(map[Pair]Bill),
		history:  make(map[Pair]map[uint32]Receipt),
		indices:  make(map[Pair]uint32),
		balances: make(map[balanceKey]domain.Amount),
	}
}

func (s *InMemoryStore) PutPendingBill(_ context.Context, pair Pair, bill Bill) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.pending[pair]; exists {
		return sentinel.ErrConflict
	}
	s.pending[pair] = bill
	return nil
}

func (s *InMemoryStore) GetPendingBill(_ context.Context, pair Pair) (Bill, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	bill, ok := s.pending[pair]
	if !ok {
		return Bill{}, sentinel.ErrNotFound
	}
	return bill, nil
}

func (s *InMemoryStore) ClearPendingBill(_ context.Context, pair Pair) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.pending, pair)
	return nil
}

func (s *InMemoryStore) ResolvePending(_ context.Context, pair Pair, status ApprovalStatus, notes, date string) (Receipt, uint32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	bill, ok := s.pending[pair]
	if !ok {
		return Receipt{}, 0, sentinel.ErrNotFound
	}
	receipt := Receipt{Bill: bill, Status: status, Notes: notes, Date: date}

	index := s.indices[pair]
	if s.history[pair] == nil {
		s.history[pair] = make(map[uint32]Receipt)
	}
	s.history[pair][index] = receipt
	s.indices[pair] = index + 1
	delete(s.pending, pair)
	return receipt, index, nil
}

func (s *InMemoryStore) GetReceipt(_ context.Context, pair Pair, index uint32) (Receipt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	receipt, ok := s.history[pair][index]
	if !ok {
		return Receipt{}, sentinel.ErrNotFound
	}
	return receipt, nil
}

func (s *InMemoryStore) HistoryIndex(_ context.Context, pair Pair) (uint32, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.indices[pair], nil
}

func (s *InMemoryStore) ReceiptRange(_ context.Context, pair Pair, start, end uint32) ([]Receipt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if start > end {
		return nil, nil
	}
	receipts := make([]Receipt, 0, end-start+1)
	for i := start; ; i++ {
		if receipt, ok := s.history[pair][i]; ok {
			receipts = append(receipts, receipt)
		}
		if i == end {
			break
		}
	}
	return receipts, nil
}

func (s *InMemoryStore) AddBalance(_ context.Context, pair Pair, token domain.Address, delta domain.Amount) (RetainerBalance, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := balanceKey{pair: pair, token: token}
	updated := s.balances[key].Add(delta)
	s.balances[key] = updated
	return RetainerBalance{
		Retainor: pair.Retainor,
		Retainee: pair.Retainee,
		Token:    token,
		Amount:   updated,
	}, nil
}

func (s *InMemoryStore) GetBalance(_ context.Context, pair Pair, token domain.Address) (RetainerBalance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	key := balanceKey{pair: pair, token: token}
	amount, ok := s.balances[key]
	if !ok {
		return RetainerBalance{}, sentinel.ErrNotFound
	}
	return RetainerBalance{
		Retainor: pair.Retainor,
		Retainee: pair.Retainee,
		Token:    token,
		Amount:   amount,
	}, nil
}

func (s *InMemoryStore) ListBalances(_ context.Context, pair Pair) ([]RetainerBalance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var balances []RetainerBalance
	for key, amount := range s.balances {
		if key.pair != pair {
			continue
		}
		balances = append(balances, RetainerBalance{
			Retainor: pair.Retainor,
			Retainee: pair.Retainee,
			Token:    key.token,
			Amount:   amount,
		})
	}
	sort.Slice(balances, func(i, j int) bool {
		return balances[i].Token < balances[j].Token
	})
	return balances, nil
}
