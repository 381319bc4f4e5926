//go:build integration

package identity

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	id "keygate/pkg/domain"
	"keygate/pkg/platform/sentinel"
	"keygate/pkg/testutil/containers"
)

type PostgresIdentityStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	roots    *PostgresRootStore
	subs     *PostgresSubIdentityStore
	now      time.Time
}

func TestPostgresIdentityStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresIdentityStoreSuite))
}

func (s *PostgresIdentityStoreSuite) SetupSuite() {
	s.postgres = containers.NewPostgresContainer(s.T())

	schema, err := os.ReadFile("../registry/schema.sql")
	s.Require().NoError(err)
	s.Require().NoError(s.postgres.Apply(context.Background(), string(schema)))

	s.roots = NewPostgresRootStore(s.postgres.DB)
	s.subs = NewPostgresSubIdentityStore(s.postgres.DB)
	s.now = time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)
}

func (s *PostgresIdentityStoreSuite) SetupTest() {
	err := s.postgres.TruncateTables(context.Background(),
		"root_identities", "root_creation_counters", "sub_identities",
	)
	s.Require().NoError(err)
}

func (s *PostgresIdentityStoreSuite) TestRootRoundtrip() {
	ctx := context.Background()
	root := RootIdentity{
		ID:        "root-1",
		Owner:     "alice",
		Salt:      []byte("0123456789abcdef0123456789abcdef"),
		Version:   1,
		CreatedAt: s.now,
	}

	s.Require().NoError(s.roots.Save(ctx, root))

	got, err := s.roots.FindByID(ctx, "root-1")
	s.Require().NoError(err)
	s.Equal(root.Owner, got.Owner)
	s.Equal(root.Salt, got.Salt)
	s.Equal(root.Version, got.Version)

	_, err = s.roots.FindByID(ctx, "nope")
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *PostgresIdentityStoreSuite) TestNextCounterIncrements() {
	ctx := context.Background()

	first, err := s.roots.NextCounter(ctx, "alice")
	s.Require().NoError(err)
	second, err := s.roots.NextCounter(ctx, "alice")
	s.Require().NoError(err)
	other, err := s.roots.NextCounter(ctx, "bob")
	s.Require().NoError(err)

	s.Equal(first+1, second)
	s.Equal(first, other)
}

func (s *PostgresIdentityStoreSuite) TestSubIdentityConflict() {
	ctx := context.Background()
	sub := SubIdentity{
		RootID:         "root-1",
		AppID:          id.AppID("social"),
		Owner:          "alice",
		ContextID:      []byte("context-id-bytes"),
		PermissionTags: DefaultPermissionTags,
		CreatedAt:      s.now,
	}

	s.Require().NoError(s.subs.Save(ctx, sub))

	err := s.subs.Save(ctx, sub)
	s.ErrorIs(err, sentinel.ErrConflict)

	got, err := s.subs.Find(ctx, "root-1", id.AppID("social"))
	s.Require().NoError(err)
	s.Equal(sub.ContextID, got.ContextID)
	s.Equal(DefaultPermissionTags, got.PermissionTags)

	list, err := s.subs.ListByRoot(ctx, "root-1")
	s.Require().NoError(err)
	s.Len(list, 1)
}
