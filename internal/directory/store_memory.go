package directory

import (
	"context"
	"sync"

	"trustline/pkg/domain"
	"trustline/pkg/platform/sentinel"
)

// InMemoryStore keeps directory entries in maps. It favors clarity over
// performance and is the default when no Postgres URL is configured.
type InMemoryStore struct {
	mu        sync.RWMutex
	retainors map[domain.Address]RetainorInfo
	retainees map[domain.Address]RetaineeInfo
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		retainors: make(map[domain.Address]RetainorInfo),
		retainees: make(map[domain.Address]RetaineeInfo),
	}
}

func (s *InMemoryStore) SetRetainorInfo(_ context.Context, retainor domain.Address, info RetainorInfo) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.retainors[retainor] = cloneRetainor(info)
	return nil
}

func (s *InMemoryStore) GetRetainorInfo(_ context.Context, retainor domain.Address) (RetainorInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if info, ok := s.retainors[retainor]; ok {
		return cloneRetainor(info), nil
	}
	return RetainorInfo{}, sentinel.ErrNotFound
}

func (s *InMemoryStore) SetRetaineeInfo(_ context.Context, retainee domain.Address, info RetaineeInfo) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.retainees[retainee] = cloneRetainee(info)
	return nil
}

func (s *InMemoryStore) GetRetaineeInfo(_ context.Context, retainee domain.Address) (RetaineeInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if info, ok := s.retainees[retainee]; ok {
		return cloneRetainee(info), nil
	}
	return RetaineeInfo{}, sentinel.ErrNotFound
}

// Clones keep callers from mutating stored slices through returned values.

func cloneRetainor(info RetainorInfo) RetainorInfo {
	return RetainorInfo{
		Name:      info.Name,
		Retainees: append([]domain.Address{}, info.Retainees...),
	}
}

func cloneRetainee(info RetaineeInfo) RetaineeInfo {
	return RetaineeInfo{
		Name:      info.Name,
		Retainors: append([]domain.Address{}, info.Retainors...),
	}
}
