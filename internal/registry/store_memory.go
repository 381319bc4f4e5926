package registry

import (
	"context"
	"sync"

	id "keygate/pkg/domain"
	"keygate/pkg/platform/sentinel"
)

type permKey struct {
	contentID id.ContentID
	grantee   id.Principal
}

type crossKey struct {
	contextID id.ContextID
	appID     id.AppID
}

type allowKey struct {
	requester id.Principal
	target    id.Principal
	scope     id.Scope
}

// InMemoryStore keeps every registry table in maps guarded by one lock, so
// each operation observes and produces a consistent snapshot - the same
// atomicity the transactional substrate provides in production.
type InMemoryStore struct {
	mu        sync.RWMutex
	contents  map[id.ContentID]ContentRecord
	contexts  map[id.ContextID]ContextRecord
	subInfos  map[id.Principal]SubIdentityInfo
	perms     map[permKey]Permission
	crossPerm map[crossKey]CrossContextPermission
	allowlist map[allowKey]WalletAllowlistEntry
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		contents:  make(map[id.ContentID]ContentRecord),
		contexts:  make(map[id.ContextID]ContextRecord),
		subInfos:  make(map[id.Principal]SubIdentityInfo),
		perms:     make(map[permKey]Permission),
		crossPerm: make(map[crossKey]CrossContextPermission),
		allowlist: make(map[allowKey]WalletAllowlistEntry),
	}
}

func (s *InMemoryStore) SaveContent(_ context.Context, record ContentRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.contents[record.ContentID]; ok {
		return sentinel.ErrConflict
	}
	s.contents[record.ContentID] = record
	return nil
}

func (s *InMemoryStore) FindContent(_ context.Context, contentID id.ContentID) (ContentRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if record, ok := s.contents[contentID]; ok {
		return record, nil
	}
	return ContentRecord{}, sentinel.ErrNotFound
}

func (s *InMemoryStore) SaveContext(_ context.Context, record ContextRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.contexts[record.ContextID]; ok {
		return sentinel.ErrConflict
	}
	s.contexts[record.ContextID] = record
	return nil
}

func (s *InMemoryStore) FindContext(_ context.Context, contextID id.ContextID) (ContextRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if record, ok := s.contexts[contextID]; ok {
		return record, nil
	}
	return ContextRecord{}, sentinel.ErrNotFound
}

func (s *InMemoryStore) SaveSubIdentityInfo(_ context.Context, info SubIdentityInfo) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.subInfos[info.Addr]; ok {
		return sentinel.ErrConflict
	}
	s.subInfos[info.Addr] = info
	return nil
}

func (s *InMemoryStore) FindSubIdentityInfo(_ context.Context, addr id.Principal) (SubIdentityInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if info, ok := s.subInfos[addr]; ok {
		return info, nil
	}
	return SubIdentityInfo{}, sentinel.ErrNotFound
}

func (s *InMemoryStore) UpsertPermission(_ context.Context, perm Permission) (*Permission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := permKey{contentID: perm.ContentID, grantee: perm.Grantee}
	var previous *Permission
	if existing, ok := s.perms[key]; ok {
		previous = &existing
	}
	s.perms[key] = perm
	return previous, nil
}

func (s *InMemoryStore) FindPermission(_ context.Context, contentID id.ContentID, grantee id.Principal) (Permission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if perm, ok := s.perms[permKey{contentID: contentID, grantee: grantee}]; ok {
		return perm, nil
	}
	return Permission{}, sentinel.ErrNotFound
}

func (s *InMemoryStore) DeletePermission(_ context.Context, contentID id.ContentID, grantee id.Principal) (Permission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := permKey{contentID: contentID, grantee: grantee}
	perm, ok := s.perms[key]
	if !ok {
		return Permission{}, sentinel.ErrNotFound
	}
	delete(s.perms, key)
	return perm, nil
}

func (s *InMemoryStore) UpsertCrossContextPermission(_ context.Context, perm CrossContextPermission) (*CrossContextPermission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := crossKey{contextID: perm.ContextID, appID: perm.AppID}
	var previous *CrossContextPermission
	if existing, ok := s.crossPerm[key]; ok {
		previous = &existing
	}
	s.crossPerm[key] = perm
	return previous, nil
}

func (s *InMemoryStore) FindCrossContextPermission(_ context.Context, contextID id.ContextID, appID id.AppID) (CrossContextPermission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if perm, ok := s.crossPerm[crossKey{contextID: contextID, appID: appID}]; ok {
		return perm, nil
	}
	return CrossContextPermission{}, sentinel.ErrNotFound
}

func (s *InMemoryStore) UpsertWalletAllowlistEntry(_ context.Context, entry WalletAllowlistEntry) (*WalletAllowlistEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := allowKey{requester: entry.Requester, target: entry.Target, scope: entry.Scope}
	var previous *WalletAllowlistEntry
	if existing, ok := s.allowlist[key]; ok {
		previous = &existing
	}
	s.allowlist[key] = entry
	return previous, nil
}

func (s *InMemoryStore) FindWalletAllowlistEntry(_ context.Context, requester, target id.Principal, scope id.Scope) (WalletAllowlistEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if entry, ok := s.allowlist[allowKey{requester: requester, target: target, scope: scope}]; ok {
		return entry, nil
	}
	return WalletAllowlistEntry{}, sentinel.ErrNotFound
}

func (s *InMemoryStore) DeleteWalletAllowlistEntry(_ context.Context, requester, target id.Principal, scope id.Scope) (WalletAllowlistEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := allowKey{requester: requester, target: target, scope: scope}
	entry, ok := s.allowlist[key]
	if !ok {
		return WalletAllowlistEntry{}, sentinel.ErrNotFound
	}
	delete(s.allowlist, key)
	return entry, nil
}
