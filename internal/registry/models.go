package registry

import (
	"time"

	id "keygate/pkg/domain"
)

// ContentRecord binds a content identifier to its owner. The owner is
// immutable; revocation operates on permissions, never on content records.
// SubIdentityAddr is set only by v2 registration and routes the decision
// procedure through the wallet-bound path.
type ContentRecord struct {
	ContentID       id.ContentID
	Owner           id.Principal
	SubIdentityAddr id.Principal
	CreatedAt       time.Time
}

// HasBinding reports whether this record carries a v2 sub-identity binding.
func (c ContentRecord) HasBinding() bool {
	return !c.SubIdentityAddr.IsZero()
}

// ContextRecord registers a legacy content context and its owner.
type ContextRecord struct {
	ContextID id.ContextID
	AppID     id.AppID
	Owner     id.Principal
	CreatedAt time.Time
}

// Permission is a time-bounded grant over one content item, keyed by
// (content id, grantee).
type Permission struct {
	ContentID id.ContentID
	Grantee   id.Principal
	Level     id.AccessLevel
	GrantedAt time.Time
	ExpiresAt time.Time
	Granter   id.Principal
}

// IsActive reports whether the grant is live at now. Expiry is lazy: a
// stored record with ExpiresAt <= now is treated exactly like an absent one.
func (p Permission) IsActive(now time.Time) bool {
	return now.Before(p.ExpiresAt)
}

// CrossContextPermission is the legacy app-id-scoped grant, keyed by
// (source context id, requesting application id).
type CrossContextPermission struct {
	ContextID id.ContextID
	AppID     id.AppID
	Level     id.AccessLevel
	GrantedAt time.Time
	ExpiresAt time.Time
	Granter   id.Principal
}

func (p CrossContextPermission) IsActive(now time.Time) bool {
	return now.Before(p.ExpiresAt)
}

// WalletAllowlistEntry is the wallet-address-scoped grant that supersedes
// CrossContextPermission for v2-registered content, keyed by
// (requester address, target address, scope).
type WalletAllowlistEntry struct {
	Requester id.Principal
	Target    id.Principal
	Scope     id.Scope
	Level     id.AccessLevel
	GrantedAt time.Time
	ExpiresAt time.Time
	Granter   id.Principal
}

func (e WalletAllowlistEntry) IsActive(now time.Time) bool {
	return now.Before(e.ExpiresAt)
}

// SubIdentityInfo records a sub-identity address in the registry. Content may
// only bind to registered addresses, and wallet-allowlist grants referencing
// an address are valid only once its info exists.
type SubIdentityInfo struct {
	Addr            id.Principal
	RootOwner       id.Principal
	DerivationIndex uint64
	RegisteredAt    time.Time
	// AppHint, when present, lets the decision procedure fall back to the
	// legacy cross-context table for v2-bound content.
	AppHint id.AppID
}
