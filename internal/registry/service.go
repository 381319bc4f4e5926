package registry

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"keygate/internal/audit"
	id "keygate/pkg/domain"
	dErrors "keygate/pkg/domain-errors"
	"keygate/pkg/platform/sentinel"
	"keygate/pkg/requestcontext"
)

// Service is the grant/revoke lifecycle over the access registry. Every
// mutating operation validates, writes one atomic store change, and emits a
// change record for the off-chain indexer. Validation failures leave the
// registry untouched.
type Service struct {
	store  Store
	events *audit.Publisher
	logger *slog.Logger
}

func NewService(store Store, events *audit.Publisher, logger *slog.Logger) *Service {
	return &Service{store: store, events: events, logger: logger}
}

// RegisterContent records the caller as owner of a new content id.
func (s *Service) RegisterContent(ctx context.Context, contentID id.ContentID, caller id.Principal, now time.Time) error {
	record := ContentRecord{
		ContentID: contentID,
		Owner:     caller,
		CreatedAt: now,
	}
	if err := s.store.SaveContent(ctx, record); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return dErrors.New(dErrors.CodeContentAlreadyRegistered, "content id already registered")
		}
		return dErrors.Wrap(dErrors.CodeInternal, "save content record", err)
	}

	s.emit(ctx, audit.Event{
		Timestamp: now,
		Subject:   contentID.String(),
		Action:    audit.ActionContentRegistered,
		Granter:   caller,
	})
	return nil
}

// RegisterContentV2 additionally binds the content to a registered
// sub-identity address owned by the caller's root.
func (s *Service) RegisterContentV2(ctx context.Context, contentID id.ContentID, subAddr id.Principal, caller id.Principal, now time.Time) error {
	info, err := s.store.FindSubIdentityInfo(ctx, subAddr)
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.New(dErrors.CodeSubIdentityNotRegistered, "sub-identity address is not registered")
	}
	if err != nil {
		return dErrors.Wrap(dErrors.CodeInternal, "find sub identity info", err)
	}
	if info.RootOwner != caller {
		return dErrors.New(dErrors.CodeNotOwner, "caller does not own the bound sub-identity")
	}

	record := ContentRecord{
		ContentID:       contentID,
		Owner:           caller,
		SubIdentityAddr: subAddr,
		CreatedAt:       now,
	}
	if err := s.store.SaveContent(ctx, record); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return dErrors.New(dErrors.CodeContentAlreadyRegistered, "content id already registered")
		}
		return dErrors.Wrap(dErrors.CodeInternal, "save content record", err)
	}

	s.emit(ctx, audit.Event{
		Timestamp: now,
		Subject:   contentID.String(),
		Action:    audit.ActionContentRegisteredV2,
		Recipient: subAddr.String(),
		Granter:   caller,
	})
	return nil
}

// RegisterContext records the caller as owner of a legacy content context.
func (s *Service) RegisterContext(ctx context.Context, contextID id.ContextID, appID id.AppID, caller id.Principal, now time.Time) error {
	if contextID.String() == "" {
		return dErrors.New(dErrors.CodeInvalidContextID, "context id cannot be empty")
	}
	if appID.String() == "" {
		return dErrors.New(dErrors.CodeInvalidAppID, "application id cannot be empty")
	}

	record := ContextRecord{
		ContextID: contextID,
		AppID:     appID,
		Owner:     caller,
		CreatedAt: now,
	}
	if err := s.store.SaveContext(ctx, record); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return dErrors.New(dErrors.CodeContextAlreadyRegistered, "context id already registered")
		}
		return dErrors.Wrap(dErrors.CodeInternal, "save context record", err)
	}

	s.emit(ctx, audit.Event{
		Timestamp: now,
		Subject:   contextID.String(),
		Action:    audit.ActionContextRegistered,
		Recipient: appID.String(),
		Granter:   caller,
	})
	return nil
}

// RegisterSubIdentityInfo records sub-identity metadata for an address.
// Required before content may bind to the address and before wallet
// allowlist grants referencing it are valid.
func (s *Service) RegisterSubIdentityInfo(ctx context.Context, addr id.Principal, derivationIndex uint64, appHint id.AppID, caller id.Principal, now time.Time) error {
	info := SubIdentityInfo{
		Addr:            addr,
		RootOwner:       caller,
		DerivationIndex: derivationIndex,
		RegisteredAt:    now,
		AppHint:         appHint,
	}
	if err := s.store.SaveSubIdentityInfo(ctx, info); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return dErrors.New(dErrors.CodeDuplicateSubIdentity, "sub-identity info already registered for this address")
		}
		return dErrors.Wrap(dErrors.CodeInternal, "save sub identity info", err)
	}

	s.emit(ctx, audit.Event{
		Timestamp: now,
		Subject:   addr.String(),
		Action:    audit.ActionSubIdentityInfoRegistered,
		Granter:   caller,
	})
	return nil
}

// GrantAccess grants or overwrites a time-bounded permission on one content
// item. Only the content owner may grant; the expiry must be in the future.
func (s *Service) GrantAccess(ctx context.Context, contentID id.ContentID, recipient id.Principal, level id.AccessLevel, expiresAt time.Time, caller id.Principal, now time.Time) error {
	if !level.IsValid() {
		return dErrors.New(dErrors.CodeInvalidAccessLevel, "access level must be read or write")
	}
	if !expiresAt.After(now) {
		return dErrors.New(dErrors.CodeInvalidTimestamp, "expiry must be in the future")
	}

	record, err := s.store.FindContent(ctx, contentID)
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.New(dErrors.CodeContentNotFound, "content id is not registered")
	}
	if err != nil {
		return dErrors.Wrap(dErrors.CodeInternal, "find content record", err)
	}
	if record.Owner != caller {
		return dErrors.New(dErrors.CodeNotOwner, "only the content owner may grant access")
	}

	previous, err := s.store.UpsertPermission(ctx, Permission{
		ContentID: contentID,
		Grantee:   recipient,
		Level:     level,
		GrantedAt: now,
		ExpiresAt: expiresAt,
		Granter:   caller,
	})
	if err != nil {
		return dErrors.Wrap(dErrors.CodeInternal, "upsert permission", err)
	}

	event := audit.Event{
		Timestamp: now,
		Subject:   contentID.String(),
		Action:    audit.ActionAccessGranted,
		Recipient: recipient.String(),
		Level:     level,
		Granted:   true,
		ExpiresAt: expiresAt,
		Granter:   caller,
	}
	if previous != nil {
		event.PreviousExpiresAt = previous.ExpiresAt
	}
	s.emit(ctx, event)
	return nil
}

// RevokeAccess removes a permission if present. Revoking a non-existent
// grant is a deliberate no-op, unlike the wallet allowlist counterpart.
func (s *Service) RevokeAccess(ctx context.Context, contentID id.ContentID, recipient id.Principal, caller id.Principal) error {
	record, err := s.store.FindContent(ctx, contentID)
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.New(dErrors.CodeContentNotFound, "content id is not registered")
	}
	if err != nil {
		return dErrors.Wrap(dErrors.CodeInternal, "find content record", err)
	}
	if record.Owner != caller {
		return dErrors.New(dErrors.CodeNotOwner, "only the content owner may revoke access")
	}

	removed, err := s.store.DeletePermission(ctx, contentID, recipient)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil
	}
	if err != nil {
		return dErrors.Wrap(dErrors.CodeInternal, "delete permission", err)
	}

	s.emit(ctx, audit.Event{
		Timestamp:         requestcontext.Now(ctx),
		Subject:           contentID.String(),
		Action:            audit.ActionAccessRevoked,
		Recipient:         recipient.String(),
		Level:             removed.Level,
		Granted:           false,
		PreviousExpiresAt: removed.ExpiresAt,
		Granter:           caller,
	})
	return nil
}

// GrantCrossContextAccess grants the legacy app-id-scoped permission on a
// context the caller owns.
func (s *Service) GrantCrossContextAccess(ctx context.Context, contextID id.ContextID, appID id.AppID, level id.AccessLevel, expiresAt time.Time, caller id.Principal, now time.Time) error {
	if appID.String() == "" {
		return dErrors.New(dErrors.CodeInvalidAppID, "requesting application id cannot be empty")
	}
	if !level.IsValid() {
		return dErrors.New(dErrors.CodeInvalidAccessLevel, "access level must be read or write")
	}
	if !expiresAt.After(now) {
		return dErrors.New(dErrors.CodeInvalidTimestamp, "expiry must be in the future")
	}

	record, err := s.store.FindContext(ctx, contextID)
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.New(dErrors.CodeContextNotFound, "source context is not registered")
	}
	if err != nil {
		return dErrors.Wrap(dErrors.CodeInternal, "find context record", err)
	}
	if record.Owner != caller {
		return dErrors.New(dErrors.CodeNotOwner, "only the context owner may grant cross-context access")
	}

	previous, err := s.store.UpsertCrossContextPermission(ctx, CrossContextPermission{
		ContextID: contextID,
		AppID:     appID,
		Level:     level,
		GrantedAt: now,
		ExpiresAt: expiresAt,
		Granter:   caller,
	})
	if err != nil {
		return dErrors.Wrap(dErrors.CodeInternal, "upsert cross-context permission", err)
	}

	event := audit.Event{
		Timestamp: now,
		Subject:   contextID.String(),
		Action:    audit.ActionCrossContextGranted,
		Recipient: appID.String(),
		Level:     level,
		Granted:   true,
		ExpiresAt: expiresAt,
		Granter:   caller,
	}
	if previous != nil {
		event.PreviousExpiresAt = previous.ExpiresAt
	}
	s.emit(ctx, event)
	return nil
}

// GrantWalletAllowlistAccess grants a scoped, wallet-address-keyed
// permission toward a sub-identity the caller's root owns.
func (s *Service) GrantWalletAllowlistAccess(ctx context.Context, requester, target id.Principal, scope id.Scope, level id.AccessLevel, expiresAt time.Time, caller id.Principal, now time.Time) error {
	if scope.String() == "" {
		return dErrors.New(dErrors.CodeInvalidScope, "scope cannot be empty")
	}
	if !level.IsValid() {
		return dErrors.New(dErrors.CodeInvalidAccessLevel, "access level must be read or write")
	}
	if !expiresAt.After(now) {
		return dErrors.New(dErrors.CodeInvalidTimestamp, "expiry must be in the future")
	}

	info, err := s.store.FindSubIdentityInfo(ctx, target)
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.New(dErrors.CodeSubIdentityNotRegistered, "target sub-identity is not registered")
	}
	if err != nil {
		return dErrors.Wrap(dErrors.CodeInternal, "find sub identity info", err)
	}
	if info.RootOwner != caller {
		return dErrors.New(dErrors.CodeNotOwner, "only the root owner of the target may grant allowlist access")
	}

	previous, err := s.store.UpsertWalletAllowlistEntry(ctx, WalletAllowlistEntry{
		Requester: requester,
		Target:    target,
		Scope:     scope,
		Level:     level,
		GrantedAt: now,
		ExpiresAt: expiresAt,
		Granter:   caller,
	})
	if err != nil {
		return dErrors.Wrap(dErrors.CodeInternal, "upsert allowlist entry", err)
	}

	event := audit.Event{
		Timestamp: now,
		Subject:   target.String(),
		Action:    audit.ActionAllowlistGranted,
		Recipient: requester.String(),
		Level:     level,
		Scope:     scope,
		Granted:   true,
		ExpiresAt: expiresAt,
		Granter:   caller,
	}
	if previous != nil {
		event.PreviousExpiresAt = previous.ExpiresAt
	}
	s.emit(ctx, event)
	return nil
}

// RevokeWalletAllowlistAccess removes an allowlist entry. Unlike
// RevokeAccess, revoking an absent entry is an error: wallet grants are
// explicit state the caller claims to know about.
func (s *Service) RevokeWalletAllowlistAccess(ctx context.Context, requester, target id.Principal, scope id.Scope, caller id.Principal) error {
	info, err := s.store.FindSubIdentityInfo(ctx, target)
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.New(dErrors.CodeSubIdentityNotRegistered, "target sub-identity is not registered")
	}
	if err != nil {
		return dErrors.Wrap(dErrors.CodeInternal, "find sub identity info", err)
	}
	if info.RootOwner != caller {
		return dErrors.New(dErrors.CodeNotOwner, "only the root owner of the target may revoke allowlist access")
	}

	removed, err := s.store.DeleteWalletAllowlistEntry(ctx, requester, target, scope)
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.New(dErrors.CodeAllowlistEntryNotFound, "allowlist entry does not exist")
	}
	if err != nil {
		return dErrors.Wrap(dErrors.CodeInternal, "delete allowlist entry", err)
	}

	s.emit(ctx, audit.Event{
		Timestamp:         requestcontext.Now(ctx),
		Subject:           target.String(),
		Action:            audit.ActionAllowlistRevoked,
		Recipient:         requester.String(),
		Level:             removed.Level,
		Scope:             scope,
		Granted:           false,
		PreviousExpiresAt: removed.ExpiresAt,
		Granter:           caller,
	})
	return nil
}

// CleanupExpiredPermission removes a permission whose expiry has passed.
// Permissionless: anyone may call it, because it can only remove grants the
// decision procedure already treats as absent.
func (s *Service) CleanupExpiredPermission(ctx context.Context, contentID id.ContentID, grantee id.Principal, now time.Time) error {
	perm, err := s.store.FindPermission(ctx, contentID, grantee)
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.New(dErrors.CodeNotFound, "no permission stored for this grantee")
	}
	if err != nil {
		return dErrors.Wrap(dErrors.CodeInternal, "find permission", err)
	}
	if perm.IsActive(now) {
		return dErrors.New(dErrors.CodeInvalidTimestamp, "permission has not expired")
	}

	if _, err := s.store.DeletePermission(ctx, contentID, grantee); err != nil && !errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.Wrap(dErrors.CodeInternal, "delete permission", err)
	}

	s.emit(ctx, audit.Event{
		Timestamp:         now,
		Subject:           contentID.String(),
		Action:            audit.ActionPermissionCleaned,
		Recipient:         grantee.String(),
		Level:             perm.Level,
		Granted:           false,
		PreviousExpiresAt: perm.ExpiresAt,
		Granter:           perm.Granter,
	})
	return nil
}

func (s *Service) emit(ctx context.Context, event audit.Event) {
	if s.events == nil {
		return
	}
	event.RequestID = requestcontext.RequestID(ctx)
	if err := s.events.Emit(ctx, event); err != nil {
		s.logger.WarnContext(ctx, "audit emit failed",
			"error", err,
			"action", string(event.Action),
		)
	}
}
