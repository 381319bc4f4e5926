package decision

import (
	"context"

	"keygate/internal/registry"
	id "keygate/pkg/domain"
)

// Registry is the read-only slice of the access registry the decision walk
// needs. registry.Store satisfies it; tests supply the in-memory store or a
// mock. Implementations must return pkg/platform/sentinel.ErrNotFound for
// absent rows.
type Registry interface {
	FindContent(ctx context.Context, contentID id.ContentID) (registry.ContentRecord, error)
	FindContext(ctx context.Context, contextID id.ContextID) (registry.ContextRecord, error)
	FindSubIdentityInfo(ctx context.Context, addr id.Principal) (registry.SubIdentityInfo, error)
	FindPermission(ctx context.Context, contentID id.ContentID, grantee id.Principal) (registry.Permission, error)
	FindCrossContextPermission(ctx context.Context, contextID id.ContextID, appID id.AppID) (registry.CrossContextPermission, error)
	FindWalletAllowlistEntry(ctx context.Context, requester, target id.Principal, scope id.Scope) (registry.WalletAllowlistEntry, error)
}
