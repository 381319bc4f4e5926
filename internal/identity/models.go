package identity

import (
	"time"

	id "keygate/pkg/domain"
)

// RootIdentity is a user's primary, durable identity record. The salt is
// generated once at creation and feeds every sub-identity derivation for
// this root, so it never changes; Version only moves on index updates.
type RootIdentity struct {
	ID        string
	Owner     id.Principal
	Salt      []byte
	Version   uint64
	CreatedAt time.Time
}

// SubIdentity is a per-application identity derived under a root. At most
// one exists per (root, application id) pair.
type SubIdentity struct {
	RootID    string
	AppID     id.AppID
	Owner     id.Principal
	ContextID []byte
	PolicyRef string
	// PermissionTags describe the application's own capabilities over its
	// context. New registrations get the self-access defaults.
	PermissionTags []string
	CreatedAt      time.Time
}

// DefaultPermissionTags are attached to every newly registered sub-identity.
var DefaultPermissionTags = []string{"read:own", "write:own"}
