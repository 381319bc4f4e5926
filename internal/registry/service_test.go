package registry

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"keygate/internal/audit"
	id "keygate/pkg/domain"
	dErrors "keygate/pkg/domain-errors"
	"keygate/pkg/platform/sentinel"
)

type RegistryServiceSuite struct {
	suite.Suite
	store   *InMemoryStore
	events  *audit.InMemoryStore
	service *Service
	now     time.Time

	alice id.Principal
	bob   id.Principal
}

func TestRegistryServiceSuite(t *testing.T) {
	suite.Run(t, new(RegistryServiceSuite))
}

func (s *RegistryServiceSuite) SetupTest() {
	s.store = NewInMemoryStore()
	s.events = audit.NewInMemoryStore()
	publisher := audit.NewPublisher([]audit.Store{s.events})
	s.service = NewService(s.store, publisher, slog.Default())
	s.now = time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)
	s.alice = id.Principal("alice")
	s.bob = id.Principal("bob")
}

func (s *RegistryServiceSuite) registerContent(contentID id.ContentID, owner id.Principal) {
	s.Require().NoError(s.service.RegisterContent(context.Background(), contentID, owner, s.now))
}

func (s *RegistryServiceSuite) registerSubInfo(addr id.Principal, owner id.Principal, appHint id.AppID) {
	s.Require().NoError(s.service.RegisterSubIdentityInfo(context.Background(), addr, 0, appHint, owner, s.now))
}

func (s *RegistryServiceSuite) TestRegisterContent() {
	ctx := context.Background()

	s.Run("registers the caller as owner", func() {
		s.Require().NoError(s.service.RegisterContent(ctx, "c1", s.alice, s.now))

		record, err := s.store.FindContent(ctx, "c1")
		s.Require().NoError(err)
		s.Equal(s.alice, record.Owner)
		s.False(record.HasBinding())
	})

	s.Run("duplicate content id conflicts", func() {
		err := s.service.RegisterContent(ctx, "c1", s.bob, s.now)
		s.True(dErrors.Is(err, dErrors.CodeContentAlreadyRegistered))
	})
}

func (s *RegistryServiceSuite) TestRegisterContentV2() {
	ctx := context.Background()
	subAddr := id.Principal("wallet-sub-1")

	s.Run("unregistered sub-identity address is rejected", func() {
		err := s.service.RegisterContentV2(ctx, "c2", subAddr, s.alice, s.now)
		s.True(dErrors.Is(err, dErrors.CodeSubIdentityNotRegistered))
	})

	s.Run("foreign sub-identity address is rejected", func() {
		s.registerSubInfo(subAddr, s.bob, "")
		err := s.service.RegisterContentV2(ctx, "c2", subAddr, s.alice, s.now)
		s.True(dErrors.Is(err, dErrors.CodeNotOwner))
	})

	s.Run("binds content to the caller's sub-identity", func() {
		err := s.service.RegisterContentV2(ctx, "c2", subAddr, s.bob, s.now)
		s.Require().NoError(err)

		record, err := s.store.FindContent(ctx, "c2")
		s.Require().NoError(err)
		s.True(record.HasBinding())
		s.Equal(subAddr, record.SubIdentityAddr)
		s.Equal(s.bob, record.Owner)
	})
}

func (s *RegistryServiceSuite) TestRegisterContext() {
	ctx := context.Background()

	s.Run("empty context id is rejected", func() {
		err := s.service.RegisterContext(ctx, "", "app", s.alice, s.now)
		s.True(dErrors.Is(err, dErrors.CodeInvalidContextID))
	})

	s.Run("empty application id is rejected", func() {
		err := s.service.RegisterContext(ctx, "ctx1", "", s.alice, s.now)
		s.True(dErrors.Is(err, dErrors.CodeInvalidAppID))
	})

	s.Run("registers the caller as context owner", func() {
		s.Require().NoError(s.service.RegisterContext(ctx, "ctx1", "app", s.alice, s.now))

		record, err := s.store.FindContext(ctx, "ctx1")
		s.Require().NoError(err)
		s.Equal(s.alice, record.Owner)
	})

	s.Run("duplicate context id conflicts", func() {
		err := s.service.RegisterContext(ctx, "ctx1", "app", s.bob, s.now)
		s.True(dErrors.Is(err, dErrors.CodeContextAlreadyRegistered))
	})
}

func (s *RegistryServiceSuite) TestRegisterSubIdentityInfo() {
	ctx := context.Background()

	s.Run("registers info for an address", func() {
		s.Require().NoError(s.service.RegisterSubIdentityInfo(ctx, "w1", 3, "social", s.alice, s.now))

		info, err := s.store.FindSubIdentityInfo(ctx, "w1")
		s.Require().NoError(err)
		s.Equal(s.alice, info.RootOwner)
		s.Equal(uint64(3), info.DerivationIndex)
		s.Equal(id.AppID("social"), info.AppHint)
	})

	s.Run("duplicate address is rejected", func() {
		err := s.service.RegisterSubIdentityInfo(ctx, "w1", 4, "", s.bob, s.now)
		s.True(dErrors.Is(err, dErrors.CodeDuplicateSubIdentity))
	})
}

func (s *RegistryServiceSuite) TestGrantAccess() {
	ctx := context.Background()
	s.registerContent("c1", s.alice)
	future := s.now.Add(time.Hour)

	s.Run("invalid access level is rejected", func() {
		err := s.service.GrantAccess(ctx, "c1", s.bob, "admin", future, s.alice, s.now)
		s.True(dErrors.Is(err, dErrors.CodeInvalidAccessLevel))
	})

	s.Run("expiry equal to now is rejected without mutation", func() {
		err := s.service.GrantAccess(ctx, "c1", s.bob, id.AccessLevelRead, s.now, s.alice, s.now)
		s.True(dErrors.Is(err, dErrors.CodeInvalidTimestamp))

		_, err = s.store.FindPermission(ctx, "c1", s.bob)
		s.ErrorIs(err, sentinel.ErrNotFound)
	})

	s.Run("expiry in the past is rejected", func() {
		err := s.service.GrantAccess(ctx, "c1", s.bob, id.AccessLevelRead, s.now.Add(-time.Minute), s.alice, s.now)
		s.True(dErrors.Is(err, dErrors.CodeInvalidTimestamp))
	})

	s.Run("unregistered content is rejected", func() {
		err := s.service.GrantAccess(ctx, "nope", s.bob, id.AccessLevelRead, future, s.alice, s.now)
		s.True(dErrors.Is(err, dErrors.CodeContentNotFound))
	})

	s.Run("only the owner may grant", func() {
		err := s.service.GrantAccess(ctx, "c1", s.bob, id.AccessLevelRead, future, s.bob, s.now)
		s.True(dErrors.Is(err, dErrors.CodeNotOwner))
	})

	s.Run("grant stores the permission", func() {
		s.Require().NoError(s.service.GrantAccess(ctx, "c1", s.bob, id.AccessLevelRead, future, s.alice, s.now))

		perm, err := s.store.FindPermission(ctx, "c1", s.bob)
		s.Require().NoError(err)
		s.Equal(id.AccessLevelRead, perm.Level)
		s.Equal(future, perm.ExpiresAt)
		s.True(perm.IsActive(s.now))
	})

	s.Run("re-grant overwrites and records the previous expiry", func() {
		later := s.now.Add(2 * time.Hour)
		s.Require().NoError(s.service.GrantAccess(ctx, "c1", s.bob, id.AccessLevelWrite, later, s.alice, s.now))

		perm, err := s.store.FindPermission(ctx, "c1", s.bob)
		s.Require().NoError(err)
		s.Equal(id.AccessLevelWrite, perm.Level)
		s.Equal(later, perm.ExpiresAt)

		events, err := s.events.ListBySubject(ctx, "c1")
		s.Require().NoError(err)
		last := events[len(events)-1]
		s.Equal(audit.ActionAccessGranted, last.Action)
		s.Equal(future, last.PreviousExpiresAt)
	})
}

func (s *RegistryServiceSuite) TestRevokeAccess() {
	ctx := context.Background()
	s.registerContent("c1", s.alice)

	s.Run("unregistered content is rejected", func() {
		err := s.service.RevokeAccess(ctx, "nope", s.bob, s.alice)
		s.True(dErrors.Is(err, dErrors.CodeContentNotFound))
	})

	s.Run("only the owner may revoke", func() {
		err := s.service.RevokeAccess(ctx, "c1", s.bob, s.bob)
		s.True(dErrors.Is(err, dErrors.CodeNotOwner))
	})

	s.Run("revoking an absent grant is a no-op", func() {
		s.NoError(s.service.RevokeAccess(ctx, "c1", s.bob, s.alice))
	})

	s.Run("revoke removes an existing grant", func() {
		s.Require().NoError(s.service.GrantAccess(ctx, "c1", s.bob, id.AccessLevelRead, s.now.Add(time.Hour), s.alice, s.now))
		s.Require().NoError(s.service.RevokeAccess(ctx, "c1", s.bob, s.alice))

		_, err := s.store.FindPermission(ctx, "c1", s.bob)
		s.ErrorIs(err, sentinel.ErrNotFound)
	})
}

func (s *RegistryServiceSuite) TestGrantCrossContextAccess() {
	ctx := context.Background()
	s.Require().NoError(s.service.RegisterContext(ctx, "ctx1", "app", s.alice, s.now))
	future := s.now.Add(time.Hour)

	s.Run("empty application id is rejected", func() {
		err := s.service.GrantCrossContextAccess(ctx, "ctx1", "", id.AccessLevelRead, future, s.alice, s.now)
		s.True(dErrors.Is(err, dErrors.CodeInvalidAppID))
	})

	s.Run("unregistered context is rejected", func() {
		err := s.service.GrantCrossContextAccess(ctx, "nope", "other-app", id.AccessLevelRead, future, s.alice, s.now)
		s.True(dErrors.Is(err, dErrors.CodeContextNotFound))
	})

	s.Run("only the context owner may grant", func() {
		err := s.service.GrantCrossContextAccess(ctx, "ctx1", "other-app", id.AccessLevelRead, future, s.bob, s.now)
		s.True(dErrors.Is(err, dErrors.CodeNotOwner))
	})

	s.Run("grant stores the cross-context permission", func() {
		s.Require().NoError(s.service.GrantCrossContextAccess(ctx, "ctx1", "other-app", id.AccessLevelRead, future, s.alice, s.now))

		perm, err := s.store.FindCrossContextPermission(ctx, "ctx1", "other-app")
		s.Require().NoError(err)
		s.True(perm.IsActive(s.now))
	})
}

func (s *RegistryServiceSuite) TestWalletAllowlist() {
	ctx := context.Background()
	target := id.Principal("wallet-sub-1")
	requester := id.Principal("wallet-req-1")
	future := s.now.Add(time.Hour)

	s.registerSubInfo(target, s.alice, "social")

	s.Run("empty scope is rejected", func() {
		err := s.service.GrantWalletAllowlistAccess(ctx, requester, target, "", id.AccessLevelRead, future, s.alice, s.now)
		s.True(dErrors.Is(err, dErrors.CodeInvalidScope))
	})

	s.Run("unregistered target is rejected", func() {
		err := s.service.GrantWalletAllowlistAccess(ctx, requester, "nope", id.ScopeRead, id.AccessLevelRead, future, s.alice, s.now)
		s.True(dErrors.Is(err, dErrors.CodeSubIdentityNotRegistered))
	})

	s.Run("only the target's root owner may grant", func() {
		err := s.service.GrantWalletAllowlistAccess(ctx, requester, target, id.ScopeRead, id.AccessLevelRead, future, s.bob, s.now)
		s.True(dErrors.Is(err, dErrors.CodeNotOwner))
	})

	s.Run("grant stores the allowlist entry", func() {
		s.Require().NoError(s.service.GrantWalletAllowlistAccess(ctx, requester, target, id.ScopeRead, id.AccessLevelRead, future, s.alice, s.now))

		entry, err := s.store.FindWalletAllowlistEntry(ctx, requester, target, id.ScopeRead)
		s.Require().NoError(err)
		s.True(entry.IsActive(s.now))
	})

	s.Run("revoking an absent entry is an error", func() {
		err := s.service.RevokeWalletAllowlistAccess(ctx, requester, target, id.ScopeWrite, s.alice)
		s.True(dErrors.Is(err, dErrors.CodeAllowlistEntryNotFound))
	})

	s.Run("revoke removes an existing entry", func() {
		s.Require().NoError(s.service.RevokeWalletAllowlistAccess(ctx, requester, target, id.ScopeRead, s.alice))

		_, err := s.store.FindWalletAllowlistEntry(ctx, requester, target, id.ScopeRead)
		s.ErrorIs(err, sentinel.ErrNotFound)
	})
}

func (s *RegistryServiceSuite) TestCleanupExpiredPermission() {
	ctx := context.Background()
	s.registerContent("c1", s.alice)

	s.Run("absent permission is not found", func() {
		err := s.service.CleanupExpiredPermission(ctx, "c1", s.bob, s.now)
		s.True(dErrors.Is(err, dErrors.CodeNotFound))
	})

	s.Run("active permission is not cleaned", func() {
		s.Require().NoError(s.service.GrantAccess(ctx, "c1", s.bob, id.AccessLevelRead, s.now.Add(time.Hour), s.alice, s.now))

		err := s.service.CleanupExpiredPermission(ctx, "c1", s.bob, s.now)
		s.True(dErrors.Is(err, dErrors.CodeInvalidTimestamp))

		_, err = s.store.FindPermission(ctx, "c1", s.bob)
		s.NoError(err)
	})

	s.Run("expired permission is removed by anyone", func() {
		afterExpiry := s.now.Add(2 * time.Hour)
		err := s.service.CleanupExpiredPermission(ctx, "c1", s.bob, afterExpiry)
		s.Require().NoError(err)

		_, err = s.store.FindPermission(ctx, "c1", s.bob)
		s.ErrorIs(err, sentinel.ErrNotFound)
	})
}
