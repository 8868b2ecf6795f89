package escrow

import (
	"context"
	"sync"

	"trustline/pkg/domain"
	"trustline/pkg/platform/sentinel"
)

type receiptKey struct {
	depositor domain.Address
	index     uint32
}

// InMemoryStore keeps escrow state in maps guarded by a single mutex, for
// development and tests.
type InMemoryStore struct {
	mu       sync.RWMutex
	admin    domain.Address
	receipts map[receiptKey]ReceiptConfig
	counts   map[domain.Address]uint32
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		receipts: make(map[receiptKey]ReceiptConfig),
		counts:   make(map[domain.Address]uint32),
	}
}

func (s *InMemoryStore) SeedAdmin(_ context.Context, admin domain.Address) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.admin.IsZero() {
		return sentinel.ErrConflict
	}
	s.admin = admin
	return nil
}

func (s *InMemoryStore) GetAdmin(_ context.Context) (domain.Address, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.admin.IsZero() {
		return domain.ZeroAddress, sentinel.ErrNotFound
	}
	return s.admin, nil
}

func (s *InMemoryStore) SetAdmin(_ context.Context, admin domain.Address) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.admin = admin
	return nil
}

func (s *InMemoryStore) AppendReceipt(_ context.Context, receipt ReceiptConfig) (uint32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	index := s.counts[receipt.Depositor]
	s.receipts[receiptKey{depositor: receipt.Depositor, index: index}] = receipt
	s.counts[receipt.Depositor] = index + 1
	return index, nil
}

func (s *InMemoryStore) GetReceipt(_ context.Context, depositor domain.Address, index uint32) (ReceiptConfig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	receipt, ok := s.receipts[receiptKey{depositor: depositor, index: index}]
	if !ok {
		return ReceiptConfig{}, sentinel.ErrNotFound
	}
	return receipt, nil
}

func (s *InMemoryStore) ReceiptCount(_ context.Context, depositor domain.Address) (uint32, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.counts[depositor], nil
}

func (s *InMemoryStore) ListReceipts(_ context.Context, depositor domain.Address) (map[uint32]ReceiptConfig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[uint32]ReceiptConfig)
	for key, receipt := range s.receipts {
		if key.depositor == depositor {
			out[key.index] = receipt
		}
	}
	return out, nil
}

func (s *InMemoryStore) SetReceiptAmount(_ context.Context, depositor domain.Address, index uint32, remaining domain.Amount) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := receiptKey{depositor: depositor, index: index}
	receipt, ok := s.receipts[key]
	if !ok {
		return sentinel.ErrNotFound
	}
	receipt.Amount = remaining
	s.receipts[key] = receipt
	return nil
}

func (s *InMemoryStore) DeleteReceipt(_ context.Context, depositor domain.Address, index uint32) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.receipts, receiptKey{depositor: depositor, index: index})
	return nil
}
