package identity

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	id "keygate/pkg/domain"
	"keygate/pkg/platform/sentinel"
)

// PostgresRootStore persists root identities in PostgreSQL. Schema lives in
// schema.sql next to this file.
type PostgresRootStore struct {
	db *sql.DB
}

func NewPostgresRootStore(db *sql.DB) *PostgresRootStore {
	return &PostgresRootStore{db: db}
}

func (s *PostgresRootStore) Save(ctx context.Context, root RootIdentity) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO root_identities (id, owner, salt, version, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET version = EXCLUDED.version`,
		root.ID, root.Owner.String(), root.Salt, int64(root.Version), root.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("save root identity: %w", err)
	}
	return nil
}

func (s *PostgresRootStore) FindByID(ctx context.Context, rootID string) (RootIdentity, error) {
	var (
		root    RootIdentity
		owner   string
		version int64
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, owner, salt, version, created_at
		FROM root_identities WHERE id = $1`, rootID,
	).Scan(&root.ID, &owner, &root.Salt, &version, &root.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return RootIdentity{}, sentinel.ErrNotFound
	}
	if err != nil {
		return RootIdentity{}, fmt.Errorf("find root identity: %w", err)
	}
	root.Owner = id.Principal(owner)
	root.Version = uint64(version)
	return root, nil
}

func (s *PostgresRootStore) NextCounter(ctx context.Context, owner id.Principal) (uint64, error) {
	var counter int64
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO root_creation_counters (owner, counter)
		VALUES ($1, 1)
		ON CONFLICT (owner) DO UPDATE SET counter = root_creation_counters.counter + 1
		RETURNING counter`, owner.String(),
	).Scan(&counter)
	if err != nil {
		return 0, fmt.Errorf("next root counter: %w", err)
	}
	return uint64(counter), nil
}

// PostgresSubIdentityStore persists registered sub-identities.
type PostgresSubIdentityStore struct {
	db *sql.DB
}

func NewPostgresSubIdentityStore(db *sql.DB) *PostgresSubIdentityStore {
	return &PostgresSubIdentityStore{db: db}
}

func (s *PostgresSubIdentityStore) Save(ctx context.Context, sub SubIdentity) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sub_identities
			(root_id, app_id, owner, context_id, policy_ref, permission_tags, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		sub.RootID, sub.AppID.String(), sub.Owner.String(), sub.ContextID,
		sub.PolicyRef, pq.Array(sub.PermissionTags), sub.CreatedAt,
	)
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation" {
		return sentinel.ErrConflict
	}
	if err != nil {
		return fmt.Errorf("save sub identity: %w", err)
	}
	return nil
}

func (s *PostgresSubIdentityStore) Find(ctx context.Context, rootID string, appID id.AppID) (SubIdentity, error) {
	var (
		sub   SubIdentity
		app   string
		owner string
		tags  pq.StringArray
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT root_id, app_id, owner, context_id, policy_ref, permission_tags, created_at
		FROM sub_identities WHERE root_id = $1 AND app_id = $2`,
		rootID, appID.String(),
	).Scan(&sub.RootID, &app, &owner, &sub.ContextID, &sub.PolicyRef, &tags, &sub.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return SubIdentity{}, sentinel.ErrNotFound
	}
	if err != nil {
		return SubIdentity{}, fmt.Errorf("find sub identity: %w", err)
	}
	sub.AppID = id.AppID(app)
	sub.Owner = id.Principal(owner)
	sub.PermissionTags = tags
	return sub, nil
}

func (s *PostgresSubIdentityStore) ListByRoot(ctx context.Context, rootID string) ([]SubIdentity, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT root_id, app_id, owner, context_id, policy_ref, permission_tags, created_at
		FROM sub_identities WHERE root_id = $1 ORDER BY created_at`, rootID)
	if err != nil {
		return nil, fmt.Errorf("list sub identities: %w", err)
	}
	defer rows.Close()

	var subs []SubIdentity
	for rows.Next() {
		var (
			sub   SubIdentity
			app   string
			owner string
			tags  pq.StringArray
		)
		if err := rows.Scan(&sub.RootID, &app, &owner, &sub.ContextID, &sub.PolicyRef, &tags, &sub.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan sub identity: %w", err)
		}
		sub.AppID = id.AppID(app)
		sub.Owner = id.Principal(owner)
		sub.PermissionTags = tags
		subs = append(subs, sub)
	}
	return subs, rows.Err()
}
