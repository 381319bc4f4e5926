package registry

import (
	"context"

	id "keygate/pkg/domain"
)

// Store is the persistent keyed-table surface of the access registry. The
// surrounding deployment guarantees serialized mutation: one mutating
// operation completes fully before the next begins, so implementations need
// no cross-operation coordination beyond their own internal consistency.
//
// Implementations return pkg/platform/sentinel errors for factual states
// (ErrNotFound, ErrConflict); the service translates them into the
// categorical domain errors callers see.
type Store interface {
	// SaveContent fails with sentinel.ErrConflict when the content id is
	// already registered.
	SaveContent(ctx context.Context, record ContentRecord) error
	FindContent(ctx context.Context, contentID id.ContentID) (ContentRecord, error)

	// SaveContext fails with sentinel.ErrConflict on duplicate context ids.
	SaveContext(ctx context.Context, record ContextRecord) error
	FindContext(ctx context.Context, contextID id.ContextID) (ContextRecord, error)

	// SaveSubIdentityInfo fails with sentinel.ErrConflict when info is
	// already registered for the address.
	SaveSubIdentityInfo(ctx context.Context, info SubIdentityInfo) error
	FindSubIdentityInfo(ctx context.Context, addr id.Principal) (SubIdentityInfo, error)

	// UpsertPermission overwrites any existing grant for the key and returns
	// the previous grant when one existed.
	UpsertPermission(ctx context.Context, perm Permission) (previous *Permission, err error)
	FindPermission(ctx context.Context, contentID id.ContentID, grantee id.Principal) (Permission, error)
	// DeletePermission returns the removed grant, or sentinel.ErrNotFound
	// when no grant exists.
	DeletePermission(ctx context.Context, contentID id.ContentID, grantee id.Principal) (Permission, error)

	UpsertCrossContextPermission(ctx context.Context, perm CrossContextPermission) (previous *CrossContextPermission, err error)
	FindCrossContextPermission(ctx context.Context, contextID id.ContextID, appID id.AppID) (CrossContextPermission, error)

	UpsertWalletAllowlistEntry(ctx context.Context, entry WalletAllowlistEntry) (previous *WalletAllowlistEntry, err error)
	FindWalletAllowlistEntry(ctx context.Context, requester, target id.Principal, scope id.Scope) (WalletAllowlistEntry, error)
	// DeleteWalletAllowlistEntry fails with sentinel.ErrNotFound when the
	// entry is absent.
	DeleteWalletAllowlistEntry(ctx context.Context, requester, target id.Principal, scope id.Scope) (WalletAllowlistEntry, error)
}
