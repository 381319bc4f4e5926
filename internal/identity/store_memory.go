package identity

import (
	"context"
	"sync"

	id "keygate/pkg/domain"
	"keygate/pkg/platform/sentinel"
)

// In-memory stores keep the default deployment dependency-free and give
// tests a fast substrate. They intentionally favor clarity over performance.
type InMemoryRootStore struct {
	mu       sync.RWMutex
	roots    map[string]RootIdentity
	counters map[id.Principal]uint64
}

func NewInMemoryRootStore() *InMemoryRootStore {
	return &InMemoryRootStore{
		roots:    make(map[string]RootIdentity),
		counters: make(map[id.Principal]uint64),
	}
}

func (s *InMemoryRootStore) Save(_ context.Context, root RootIdentity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.roots[root.ID] = root
	return nil
}

func (s *InMemoryRootStore) FindByID(_ context.Context, rootID string) (RootIdentity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if root, ok := s.roots[rootID]; ok {
		return root, nil
	}
	return RootIdentity{}, sentinel.ErrNotFound
}

func (s *InMemoryRootStore) NextCounter(_ context.Context, owner id.Principal) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counters[owner]++
	return s.counters[owner], nil
}

type subKey struct {
	rootID string
	appID  id.AppID
}

type InMemorySubIdentityStore struct {
	mu   sync.RWMutex
	subs map[subKey]SubIdentity
}

func NewInMemorySubIdentityStore() *InMemorySubIdentityStore {
	return &InMemorySubIdentityStore{subs: make(map[subKey]SubIdentity)}
}

func (s *InMemorySubIdentityStore) Save(_ context.Context, sub SubIdentity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := subKey{rootID: sub.RootID, appID: sub.AppID}
	if _, ok := s.subs[key]; ok {
		return sentinel.ErrConflict
	}
	s.subs[key] = sub
	return nil
}

func (s *InMemorySubIdentityStore) Find(_ context.Context, rootID string, appID id.AppID) (SubIdentity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if sub, ok := s.subs[subKey{rootID: rootID, appID: appID}]; ok {
		return sub, nil
	}
	return SubIdentity{}, sentinel.ErrNotFound
}

func (s *InMemorySubIdentityStore) ListByRoot(_ context.Context, rootID string) ([]SubIdentity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var subs []SubIdentity
	for key, sub := range s.subs {
		if key.rootID == rootID {
			subs = append(subs, sub)
		}
	}
	return subs, nil
}
