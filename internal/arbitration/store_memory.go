package arbitration

import (
	"context"
	"slices"
	"sync"

	"trustline/pkg/domain"
	"trustline/pkg/platform/sentinel"
)

// InMemoryStore keeps arbitration state in maps guarded by a single mutex,
// for development and tests.
type InMemoryStore struct {
	mu      sync.RWMutex
	configs map[domain.Address]ArbitrationConfig
	events  map[EventKey]ArbitrationEventConfig
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		configs: make(map[domain.Address]ArbitrationConfig),
		events:  make(map[EventKey]ArbitrationEventConfig),
	}
}

func (s *InMemoryStore) SetConfig(_ context.Context, arbiter domain.Address, config ArbitrationConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	config.Cosigners = slices.Clone(config.Cosigners)
	s.configs[arbiter] = config
	return nil
}

func (s *InMemoryStore) GetConfig(_ context.Context, arbiter domain.Address) (ArbitrationConfig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	config, ok := s.configs[arbiter]
	if !ok {
		return ArbitrationConfig{}, sentinel.ErrNotFound
	}
	config.Cosigners = slices.Clone(config.Cosigners)
	return config, nil
}

func (s *InMemoryStore) AddSignature(_ context.Context, key EventKey, cosigner domain.Address) (ArbitrationEventConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	event, ok := s.events[key]
	if !ok {
		event = ArbitrationEventConfig{Arbitration: key.Arbiter}
	}
	if !slices.Contains(event.Signatures, cosigner) {
		event.Signatures = append(event.Signatures, cosigner)
	}
	s.events[key] = event
	event.Signatures = slices.Clone(event.Signatures)
	return event, nil
}

func (s *InMemoryStore) GetEvent(_ context.Context, key EventKey) (ArbitrationEventConfig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	event, ok := s.events[key]
	if !ok {
		return ArbitrationEventConfig{}, sentinel.ErrNotFound
	}
	event.Signatures = slices.Clone(event.Signatures)
	return event, nil
}
