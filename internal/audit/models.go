package audit

import (
	"time"

	id "keygate/pkg/domain"
)

// Action names the registry change an event records.
type Action string

const (
	ActionRootIdentityCreated       Action = "root_identity_created"
	ActionSubIdentityRegistered     Action = "sub_identity_registered"
	ActionContentRegistered         Action = "content_registered"
	ActionContentRegisteredV2       Action = "content_registered_v2"
	ActionContextRegistered         Action = "context_registered"
	ActionSubIdentityInfoRegistered Action = "sub_identity_info_registered"
	ActionAccessGranted             Action = "access_granted"
	ActionAccessRevoked             Action = "access_revoked"
	ActionCrossContextGranted       Action = "cross_context_granted"
	ActionAllowlistGranted          Action = "allowlist_granted"
	ActionAllowlistRevoked          Action = "allowlist_revoked"
	ActionPermissionCleaned         Action = "permission_cleaned"
)

// Event is emitted from domain logic on every grant-state change. Keep it
// transport-agnostic so stores and sinks can fan out. Events feed an off-chain
// indexer; decision correctness never depends on them.
type Event struct {
	ID        string
	Timestamp time.Time
	// Subject is the content id, context id, or sub-identity address the
	// change applies to.
	Subject   string
	Action    Action
	Recipient string
	Level     id.AccessLevel
	Scope     id.Scope
	Granted   bool
	// PreviousExpiresAt is set when a grant overwrites or removes an earlier
	// one, so the indexer can reconstruct the full expiry history.
	PreviousExpiresAt time.Time
	ExpiresAt         time.Time
	Granter           id.Principal
	RequestID         string
}
