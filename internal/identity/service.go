package identity

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"keygate/internal/audit"
	id "keygate/pkg/domain"
	dErrors "keygate/pkg/domain-errors"
	"keygate/pkg/platform/sentinel"
	"keygate/pkg/requestcontext"
)

// Service owns root identities and per-application sub-identity
// registration. Derivation itself is pure (see derive.go); the service adds
// the ownership and uniqueness checks that make a derived id usable.
type Service struct {
	roots  RootStore
	subs   SubIdentityStore
	events *audit.Publisher
	logger *slog.Logger
}

func NewService(roots RootStore, subs SubIdentityStore, events *audit.Publisher, logger *slog.Logger) *Service {
	return &Service{roots: roots, subs: subs, events: events, logger: logger}
}

// CreateRootIdentity creates a fresh root for the caller. Idempotency is the
// caller's responsibility: repeated calls yield distinct roots, each with its
// own salt.
func (s *Service) CreateRootIdentity(ctx context.Context, caller id.Principal, now time.Time) (RootIdentity, error) {
	if caller.IsZero() {
		return RootIdentity{}, dErrors.New(dErrors.CodeUnauthorized, "caller is required")
	}

	counter, err := s.roots.NextCounter(ctx, caller)
	if err != nil {
		return RootIdentity{}, dErrors.Wrap(dErrors.CodeInternal, "allocate root counter", err)
	}
	salt, err := newSalt(caller, counter)
	if err != nil {
		return RootIdentity{}, dErrors.Wrap(dErrors.CodeInternal, "generate salt", err)
	}

	root := RootIdentity{
		ID:        uuid.NewString(),
		Owner:     caller,
		Salt:      salt,
		Version:   1,
		CreatedAt: now,
	}
	if err := s.roots.Save(ctx, root); err != nil {
		return RootIdentity{}, dErrors.Wrap(dErrors.CodeInternal, "save root identity", err)
	}

	s.emit(ctx, audit.Event{
		Timestamp: now,
		Subject:   root.ID,
		Action:    audit.ActionRootIdentityCreated,
		Granter:   caller,
	})
	return root, nil
}

// DeriveSubIdentity resolves the root and returns the deterministic context
// id for (root, appID) without registering anything.
func (s *Service) DeriveSubIdentity(ctx context.Context, rootID string, appID id.AppID) ([]byte, error) {
	if appID.String() == "" {
		return nil, dErrors.New(dErrors.CodeInvalidAppID, "application id cannot be empty")
	}
	root, err := s.roots.FindByID(ctx, rootID)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.New(dErrors.CodeRootIdentityNotFound, "root identity not found")
	}
	if err != nil {
		return nil, dErrors.Wrap(dErrors.CodeInternal, "find root identity", err)
	}
	return DeriveContextID(root, appID), nil
}

// RegisterSubIdentity derives and stores the sub-identity for (root, appID).
// Only the root owner may register; at most one sub-identity exists per
// (root, appID) pair.
func (s *Service) RegisterSubIdentity(ctx context.Context, rootID string, appID id.AppID, caller id.Principal, now time.Time) (SubIdentity, error) {
	if appID.String() == "" {
		return SubIdentity{}, dErrors.New(dErrors.CodeInvalidAppID, "application id cannot be empty")
	}

	root, err := s.roots.FindByID(ctx, rootID)
	if errors.Is(err, sentinel.ErrNotFound) {
		return SubIdentity{}, dErrors.New(dErrors.CodeRootIdentityNotFound, "root identity not found")
	}
	if err != nil {
		return SubIdentity{}, dErrors.Wrap(dErrors.CodeInternal, "find root identity", err)
	}
	if root.Owner != caller {
		return SubIdentity{}, dErrors.New(dErrors.CodeNotOwner, "only the root owner may register sub-identities")
	}

	sub := SubIdentity{
		RootID:         rootID,
		AppID:          appID,
		Owner:          caller,
		ContextID:      DeriveContextID(root, appID),
		PermissionTags: append([]string{}, DefaultPermissionTags...),
		CreatedAt:      now,
	}
	if err := s.subs.Save(ctx, sub); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return SubIdentity{}, dErrors.New(dErrors.CodeSubIdentityAlreadyExists, "sub-identity already exists for this application")
		}
		return SubIdentity{}, dErrors.Wrap(dErrors.CodeInternal, "save sub identity", err)
	}

	s.emit(ctx, audit.Event{
		Timestamp: now,
		Subject:   rootID,
		Action:    audit.ActionSubIdentityRegistered,
		Recipient: appID.String(),
		Granter:   caller,
	})
	return sub, nil
}

// GetRoot returns a root identity by id.
func (s *Service) GetRoot(ctx context.Context, rootID string) (RootIdentity, error) {
	root, err := s.roots.FindByID(ctx, rootID)
	if errors.Is(err, sentinel.ErrNotFound) {
		return RootIdentity{}, dErrors.New(dErrors.CodeRootIdentityNotFound, "root identity not found")
	}
	if err != nil {
		return RootIdentity{}, dErrors.Wrap(dErrors.CodeInternal, "find root identity", err)
	}
	return root, nil
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
