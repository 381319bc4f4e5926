//go:build integration

package registry

import (
	"context"
	_ "embed"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	id "keygate/pkg/domain"
	"keygate/pkg/platform/sentinel"
	"keygate/pkg/testutil/containers"
)

//go:embed schema.sql
var schema string

type PostgresStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *PostgresStore
	now      time.Time
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	s.postgres = containers.NewPostgresContainer(s.T())
	s.Require().NoError(s.postgres.Apply(context.Background(), schema))
	s.store = NewPostgresStore(s.postgres.DB)
	s.now = time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)
}

func (s *PostgresStoreSuite) SetupTest() {
	err := s.postgres.TruncateTables(context.Background(),
		"content_records", "context_records", "sub_identity_infos",
		"permissions", "cross_context_permissions", "wallet_allowlist_entries",
	)
	s.Require().NoError(err)
}

func (s *PostgresStoreSuite) TestContentRoundtrip() {
	ctx := context.Background()
	record := ContentRecord{ContentID: "c1", Owner: "alice", SubIdentityAddr: "w1", CreatedAt: s.now}

	s.Require().NoError(s.store.SaveContent(ctx, record))

	got, err := s.store.FindContent(ctx, "c1")
	s.Require().NoError(err)
	s.Equal(record.Owner, got.Owner)
	s.Equal(record.SubIdentityAddr, got.SubIdentityAddr)
	s.True(got.HasBinding())

	s.Run("duplicate save conflicts", func() {
		err := s.store.SaveContent(ctx, record)
		s.ErrorIs(err, sentinel.ErrConflict)
	})

	s.Run("missing id is not found", func() {
		_, err := s.store.FindContent(ctx, "nope")
		s.ErrorIs(err, sentinel.ErrNotFound)
	})
}

func (s *PostgresStoreSuite) TestPermissionUpsertAndDelete() {
	ctx := context.Background()
	perm := Permission{
		ContentID: "c1",
		Grantee:   "bob",
		Level:     id.AccessLevelRead,
		GrantedAt: s.now,
		ExpiresAt: s.now.Add(time.Hour),
		Granter:   "alice",
	}

	previous, err := s.store.UpsertPermission(ctx, perm)
	s.Require().NoError(err)
	s.Nil(previous)

	updated := perm
	updated.ExpiresAt = s.now.Add(2 * time.Hour)
	previous, err = s.store.UpsertPermission(ctx, updated)
	s.Require().NoError(err)
	s.Require().NotNil(previous)
	s.True(perm.ExpiresAt.Equal(previous.ExpiresAt))

	removed, err := s.store.DeletePermission(ctx, "c1", "bob")
	s.Require().NoError(err)
	s.True(updated.ExpiresAt.Equal(removed.ExpiresAt))

	_, err = s.store.DeletePermission(ctx, "c1", "bob")
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *PostgresStoreSuite) TestAllowlistScopeSensitivity() {
	ctx := context.Background()
	entry := WalletAllowlistEntry{
		Requester: "req",
		Target:    "target",
		Scope:     id.ScopeRead,
		Level:     id.AccessLevelRead,
		GrantedAt: s.now,
		ExpiresAt: s.now.Add(time.Hour),
		Granter:   "alice",
	}

	_, err := s.store.UpsertWalletAllowlistEntry(ctx, entry)
	s.Require().NoError(err)

	_, err = s.store.FindWalletAllowlistEntry(ctx, "req", "target", id.ScopeRead)
	s.NoError(err)

	_, err = s.store.FindWalletAllowlistEntry(ctx, "req", "target", id.ScopeWrite)
	s.ErrorIs(err, sentinel.ErrNotFound)

	_, err = s.store.DeleteWalletAllowlistEntry(ctx, "req", "target", id.ScopeRead)
	s.NoError(err)

	_, err = s.store.DeleteWalletAllowlistEntry(ctx, "req", "target", id.ScopeRead)
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *PostgresStoreSuite) TestSubIdentityInfoConflict() {
	ctx := context.Background()
	info := SubIdentityInfo{
		Addr:            "w1",
		RootOwner:       "alice",
		DerivationIndex: 1,
		RegisteredAt:    s.now,
		AppHint:         "social",
	}

	s.Require().NoError(s.store.SaveSubIdentityInfo(ctx, info))

	err := s.store.SaveSubIdentityInfo(ctx, info)
	s.ErrorIs(err, sentinel.ErrConflict)

	got, err := s.store.FindSubIdentityInfo(ctx, "w1")
	s.Require().NoError(err)
	s.Equal(id.AppID("social"), got.AppHint)
}
