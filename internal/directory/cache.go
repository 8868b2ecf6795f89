package directory

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"trustline/pkg/domain"
)

// CachedStore layers a Redis read cache over another Store. Directory reads
// dominate the workload (billing clients render names on every screen) while
// writes are rare, so a short TTL plus write-through invalidation is enough.
type CachedStore struct {
	inner Store
	cache *redis.Client
	ttl   time.Duration
}

func NewCachedStore(inner Store, cache *redis.Client, ttl time.Duration) *CachedStore {
	return &CachedStore{inner: inner, cache: cache, ttl: ttl}
}

func retainorKey(addr domain.Address) string { return "dir:retainor:" + addr.String() }
func retaineeKey(addr domain.Address) string { return "dir:retainee:" + addr.String() }

func (s *CachedStore) SetRetainorInfo(ctx context.Context, retainor domain.Address, info RetainorInfo) error {
	if err := s.inner.SetRetainorInfo(ctx, retainor, info); err != nil {
		return err
	}
	// Invalidate rather than populate; the next read fills the cache.
	s.cache.Del(ctx, retainorKey(retainor))
	return nil
}

func (s *CachedStore) GetRetainorInfo(ctx context.Context, retainor domain.Address) (RetainorInfo, error) {
	if raw, err := s.cache.Get(ctx, retainorKey(retainor)).Bytes(); err == nil {
		var info RetainorInfo
		if json.Unmarshal(raw, &info) == nil {
			return info, nil
		}
	}
	info, err := s.inner.GetRetainorInfo(ctx, retainor)
	if err != nil {
		return RetainorInfo{}, err
	}
	if raw, err := json.Marshal(info); err == nil {
		s.cache.Set(ctx, retainorKey(retainor), raw, s.ttl)
	}
	return info, nil
}

func (s *CachedStore) SetRetaineeInfo(ctx context.Context, retainee domain.Address, info RetaineeInfo) error {
	if err := s.inner.SetRetaineeInfo(ctx, retainee, info); err != nil {
		return err
	}
	s.cache.Del(ctx, retaineeKey(retainee))
	return nil
}

func (s *CachedStore) GetRetaineeInfo(ctx context.Context, retainee domain.Address) (RetaineeInfo, error) {
	if raw, err := s.cache.Get(ctx, retaineeKey(retainee)).Bytes(); err == nil {
		var info RetaineeInfo
		if json.Unmarshal(raw, &info) == nil {
			return info, nil
		}
	}
	info, err := s.inner.GetRetaineeInfo(ctx, retainee)
	if err != nil {
		return RetaineeInfo{}, err
	}
	if raw, err := json.Marshal(info); err == nil {
		s.cache.Set(ctx, retaineeKey(retainee), raw, s.ttl)
	}
	return info, nil
}
