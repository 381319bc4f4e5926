package registry

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	id "keygate/pkg/domain"
	"keygate/pkg/platform/sentinel"
)

// PostgresStore persists the registry tables in PostgreSQL. Upserts run as
// single statements and deletes use RETURNING, so each store operation is
// atomic on its own; the serialized-writer model does the rest.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation"
}

func (s *PostgresStore) SaveContent(ctx context.Context, record ContentRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO content_records (content_id, owner, sub_identity_addr, created_at)
		VALUES ($1, $2, $3, $4)`,
		record.ContentID.String(), record.Owner.String(),
		record.SubIdentityAddr.String(), record.CreatedAt,
	)
	if isUniqueViolation(err) {
		return sentinel.ErrConflict
	}
	if err != nil {
		return fmt.Errorf("save content record: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindContent(ctx context.Context, contentID id.ContentID) (ContentRecord, error) {
	var (
		record  ContentRecord
		content string
		owner   string
		subAddr string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT content_id, owner, sub_identity_addr, created_at
		FROM content_records WHERE content_id = $1`, contentID.String(),
	).Scan(&content, &owner, &subAddr, &record.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return ContentRecord{}, sentinel.ErrNotFound
	}
	if err != nil {
		return ContentRecord{}, fmt.Errorf("find content record: %w", err)
	}
	record.ContentID = id.ContentID(content)
	record.Owner = id.Principal(owner)
	record.SubIdentityAddr = id.Principal(subAddr)
	return record, nil
}

func (s *PostgresStore) SaveContext(ctx context.Context, record ContextRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO context_records (context_id, app_id, owner, created_at)
		VALUES ($1, $2, $3, $4)`,
		record.ContextID.String(), record.AppID.String(),
		record.Owner.String(), record.CreatedAt,
	)
	if isUniqueViolation(err) {
		return sentinel.ErrConflict
	}
	if err != nil {
		return fmt.Errorf("save context record: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindContext(ctx context.Context, contextID id.ContextID) (ContextRecord, error) {
	var (
		record ContextRecord
		cid    string
		app    string
		owner  string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT context_id, app_id, owner, created_at
		FROM context_records WHERE context_id = $1`, contextID.String(),
	).Scan(&cid, &app, &owner, &record.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return ContextRecord{}, sentinel.ErrNotFound
	}
	if err != nil {
		return ContextRecord{}, fmt.Errorf("find context record: %w", err)
	}
	record.ContextID = id.ContextID(cid)
	record.AppID = id.AppID(app)
	record.Owner = id.Principal(owner)
	return record, nil
}

func (s *PostgresStore) SaveSubIdentityInfo(ctx context.Context, info SubIdentityInfo) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sub_identity_infos (addr, root_owner, derivation_index, registered_at, app_hint)
		VALUES ($1, $2, $3, $4, $5)`,
		info.Addr.String(), info.RootOwner.String(),
		int64(info.DerivationIndex), info.RegisteredAt, info.AppHint.String(),
	)
	if isUniqueViolation(err) {
		return sentinel.ErrConflict
	}
	if err != nil {
		return fmt.Errorf("save sub identity info: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindSubIdentityInfo(ctx context.Context, addr id.Principal) (SubIdentityInfo, error) {
	var (
		info    SubIdentityInfo
		a       string
		owner   string
		index   int64
		appHint string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT addr, root_owner, derivation_index, registered_at, app_hint
		FROM sub_identity_infos WHERE addr = $1`, addr.String(),
	).Scan(&a, &owner, &index, &info.RegisteredAt, &appHint)
	if errors.Is(err, sql.ErrNoRows) {
		return SubIdentityInfo{}, sentinel.ErrNotFound
	}
	if err != nil {
		return SubIdentityInfo{}, fmt.Errorf("find sub identity info: %w", err)
	}
	info.Addr = id.Principal(a)
	info.RootOwner = id.Principal(owner)
	info.DerivationIndex = uint64(index)
	info.AppHint = id.AppID(appHint)
	return info, nil
}

func (s *PostgresStore) UpsertPermission(ctx context.Context, perm Permission) (*Permission, error) {
	previous, err := s.FindPermission(ctx, perm.ContentID, perm.Grantee)
	havePrevious := err == nil
	if err != nil && !errors.Is(err, sentinel.ErrNotFound) {
		return nil, err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO permissions (content_id, grantee, level, granted_at, expires_at, granter)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (content_id, grantee) DO UPDATE SET
			level = EXCLUDED.level,
			granted_at = EXCLUDED.granted_at,
			expires_at = EXCLUDED.expires_at,
			granter = EXCLUDED.granter`,
		perm.ContentID.String(), perm.Grantee.String(), perm.Level.String(),
		perm.GrantedAt, perm.ExpiresAt, perm.Granter.String(),
	)
	if err != nil {
		return nil, fmt.Errorf("upsert permission: %w", err)
	}
	if havePrevious {
		return &previous, nil
	}
	return nil, nil
}

func (s *PostgresStore) FindPermission(ctx context.Context, contentID id.ContentID, grantee id.Principal) (Permission, error) {
	var (
		perm    Permission
		cid     string
		who     string
		level   string
		granter string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT content_id, grantee, level, granted_at, expires_at, granter
		FROM permissions WHERE content_id = $1 AND grantee = $2`,
		contentID.String(), grantee.String(),
	).Scan(&cid, &who, &level, &perm.GrantedAt, &perm.ExpiresAt, &granter)
	if errors.Is(err, sql.ErrNoRows) {
		return Permission{}, sentinel.ErrNotFound
	}
	if err != nil {
		return Permission{}, fmt.Errorf("find permission: %w", err)
	}
	perm.ContentID = id.ContentID(cid)
	perm.Grantee = id.Principal(who)
	perm.Level = id.AccessLevel(level)
	perm.Granter = id.Principal(granter)
	return perm, nil
}

func (s *PostgresStore) DeletePermission(ctx context.Context, contentID id.ContentID, grantee id.Principal) (Permission, error) {
	var (
		perm    Permission
		cid     string
		who     string
		level   string
		granter string
	)
	err := s.db.QueryRowContext(ctx, `
		DELETE FROM permissions WHERE content_id = $1 AND grantee = $2
		RETURNING content_id, grantee, level, granted_at, expires_at, granter`,
		contentID.String(), grantee.String(),
	).Scan(&cid, &who, &level, &perm.GrantedAt, &perm.ExpiresAt, &granter)
	if errors.Is(err, sql.ErrNoRows) {
		return Permission{}, sentinel.ErrNotFound
	}
	if err != nil {
		return Permission{}, fmt.Errorf("delete permission: %w", err)
	}
	perm.ContentID = id.ContentID(cid)
	perm.Grantee = id.Principal(who)
	perm.Level = id.AccessLevel(level)
	perm.Granter = id.Principal(granter)
	return perm, nil
}

func (s *PostgresStore) UpsertCrossContextPermission(ctx context.Context, perm CrossContextPermission) (*CrossContextPermission, error) {
	previous, err := s.FindCrossContextPermission(ctx, perm.ContextID, perm.AppID)
	havePrevious := err == nil
	if err != nil && !errors.Is(err, sentinel.ErrNotFound) {
		return nil, err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO cross_context_permissions (context_id, app_id, level, granted_at, expires_at, granter)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (context_id, app_id) DO UPDATE SET
			level = EXCLUDED.level,
			granted_at = EXCLUDED.granted_at,
			expires_at = EXCLUDED.expires_at,
			granter = EXCLUDED.granter`,
		perm.ContextID.String(), perm.AppID.String(), perm.Level.String(),
		perm.GrantedAt, perm.ExpiresAt, perm.Granter.String(),
	)
	if err != nil {
		return nil, fmt.Errorf("upsert cross-context permission: %w", err)
	}
	if havePrevious {
		return &previous, nil
	}
	return nil, nil
}

func (s *PostgresStore) FindCrossContextPermission(ctx context.Context, contextID id.ContextID, appID id.AppID) (CrossContextPermission, error) {
	var (
		perm    CrossContextPermission
		cid     string
		app     string
		level   string
		granter string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT context_id, app_id, level, granted_at, expires_at, granter
		FROM cross_context_permissions WHERE context_id = $1 AND app_id = $2`,
		contextID.String(), appID.String(),
	).Scan(&cid, &app, &level, &perm.GrantedAt, &perm.ExpiresAt, &granter)
	if errors.Is(err, sql.ErrNoRows) {
		return CrossContextPermission{}, sentinel.ErrNotFound
	}
	if err != nil {
		return CrossContextPermission{}, fmt.Errorf("find cross-context permission: %w", err)
	}
	perm.ContextID = id.ContextID(cid)
	perm.AppID = id.AppID(app)
	perm.Level = id.AccessLevel(level)
	perm.Granter = id.Principal(granter)
	return perm, nil
}

func (s *PostgresStore) UpsertWalletAllowlistEntry(ctx context.Context, entry WalletAllowlistEntry) (*WalletAllowlistEntry, error) {
	previous, err := s.FindWalletAllowlistEntry(ctx, entry.Requester, entry.Target, entry.Scope)
	havePrevious := err == nil
	if err != nil && !errors.Is(err, sentinel.ErrNotFound) {
		return nil, err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO wallet_allowlist_entries (requester, target, scope, level, granted_at, expires_at, granter)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (requester, target, scope) DO UPDATE SET
			level = EXCLUDED.level,
			granted_at = EXCLUDED.granted_at,
			expires_at = EXCLUDED.expires_at,
			granter = EXCLUDED.granter`,
		entry.Requester.String(), entry.Target.String(), entry.Scope.String(),
		entry.Level.String(), entry.GrantedAt, entry.ExpiresAt, entry.Granter.String(),
	)
	if err != nil {
		return nil, fmt.Errorf("upsert allowlist entry: %w", err)
	}
	if havePrevious {
		return &previous, nil
	}
	return nil, nil
}

func (s *PostgresStore) FindWalletAllowlistEntry(ctx context.Context, requester, target id.Principal, scope id.Scope) (WalletAllowlistEntry, error) {
	var (
		entry   WalletAllowlistEntry
		req     string
		tgt     string
		sc      string
		level   string
		granter string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT requester, target, scope, level, granted_at, expires_at, granter
		FROM wallet_allowlist_entries WHERE requester = $1 AND target = $2 AND scope = $3`,
		requester.String(), target.String(), scope.String(),
	).Scan(&req, &tgt, &sc, &level, &entry.GrantedAt, &entry.ExpiresAt, &granter)
	if errors.Is(err, sql.ErrNoRows) {
		return WalletAllowlistEntry{}, sentinel.ErrNotFound
	}
	if err != nil {
		return WalletAllowlistEntry{}, fmt.Errorf("find allowlist entry: %w", err)
	}
	entry.Requester = id.Principal(req)
	entry.Target = id.Principal(tgt)
	entry.Scope = id.Scope(sc)
	entry.Level = id.AccessLevel(level)
	entry.Granter = id.Principal(granter)
	return entry, nil
}

func (s *PostgresStore) DeleteWalletAllowlistEntry(ctx context.Context, requester, target id.Principal, scope id.Scope) (WalletAllowlistEntry, error) {
	var (
		entry   WalletAllowlistEntry
		req     string
		tgt     string
		sc      string
		level   string
		granter string
	)
	err := s.db.QueryRowContext(ctx, `
		DELETE FROM wallet_allowlist_entries
		WHERE requester = $1 AND target = $2 AND scope = $3
		RETURNING requester, target, scope, level, granted_at, expires_at, granter`,
		requester.String(), target.String(), scope.String(),
	).Scan(&req, &tgt, &sc, &level, &entry.GrantedAt, &entry.ExpiresAt, &granter)
	if errors.Is(err, sql.ErrNoRows) {
		return WalletAllowlistEntry{}, sentinel.ErrNotFound
	}
	if err != nil {
		return WalletAllowlistEntry{}, fmt.Errorf("delete allowlist entry: %w", err)
	}
	entry.Requester = id.Principal(req)
	entry.Target = id.Principal(tgt)
	entry.Scope = id.Scope(sc)
	entry.Level = id.AccessLevel(level)
	entry.Granter = id.Principal(granter)
	return entry, nil
}
