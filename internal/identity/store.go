package identity

import (
	"context"

	id "keygate/pkg/domain"
)

// Stores are interface-driven to keep the domain logic testable and to allow
// swapping in-memory and PostgreSQL persistence without rewiring business
// code. Implementations return pkg/platform/sentinel errors for factual
// states; the service translates them into domain errors.
type RootStore interface {
	Save(ctx context.Context, root RootIdentity) error
	FindByID(ctx context.Context, rootID string) (RootIdentity, error)
	// NextCounter returns the monotonic per-owner creation counter, starting
	// at 1 and incrementing on every call.
	NextCounter(ctx context.Context, owner id.Principal) (uint64, error)
}

type SubIdentityStore interface {
	// Save fails with sentinel.ErrConflict when a sub-identity already
	// exists for (root id, app id).
	Save(ctx context.Context, sub SubIdentity) error
	Find(ctx context.Context, rootID string, appID id.AppID) (SubIdentity, error)
	ListByRoot(ctx context.Context, rootID string) ([]SubIdentity, error)
}
