package decision

import (
	"context"
	"errors"
	"time"

	"keygate/internal/registry"
	id "keygate/pkg/domain"
	dErrors "keygate/pkg/domain-errors"
	"keygate/pkg/platform/sentinel"
)

// Request is one resolved decision question: may Requester obtain the key
// for ContentID, given the owner the custodian asserts, at time Now.
type Request struct {
	ContentID id.ContentID
	Owner     id.Principal
	Requester id.Principal
	Now       time.Time
}

// Match names which rule approved a request. It drives metrics and the
// cacheability decision; the custodian never sees it.
type Match string

const (
	MatchV2Self           Match = "v2_self"
	MatchV2AllowlistRead  Match = "v2_allowlist_read"
	MatchV2AllowlistWrite Match = "v2_allowlist_write"
	MatchV2AppHint        Match = "v2_app_hint"
	MatchContentOwner     Match = "content_owner"
	MatchContentGrant     Match = "content_grant"
	MatchContextOwner     Match = "context_owner"
	MatchCrossContext     Match = "cross_context"
)

// identityBound reports whether the match depends only on immutable
// ownership facts, never on a revocable grant. Only such approvals may be
// cached: a cached grant-bound approval could outlive its revocation.
func (m Match) identityBound() bool {
	return m == MatchV2Self || m == MatchContentOwner || m == MatchContextOwner
}

// evaluate is the single decision walk shared by the abort-style and
// boolean surfaces. It reads the registry, mutates nothing, and is
// deterministic for a fixed registry state and Now.
//
// Rule order (first match approves):
//
//	1. Wallet-bound path, when the content record carries a sub-identity
//	   binding:
//	   a. the binding's registered root owner must equal the asserted
//	      owner - mismatch is an integrity violation and denies outright
//	   b. the bound sub-identity itself always reaches its own context
//	   c. unexpired allowlist entry for the read scope
//	   d. unexpired allowlist entry for the write scope
//	   e. with an app hint, the legacy cross-context grant for the
//	      content's context prefix
//	   A total miss of b-e falls through instead of denying: the same
//	   content id may still hold per-content or context grants from before
//	   its wallet binding existed. Collapsing the two generations into one
//	   table is the eventual fix; until legacy grants age out, both walks
//	   stay live here, in one function, so they cannot drift apart.
//	2. Per-content records: the owner reaches their own content, and
//	   unexpired direct permissions admit their grantee.
//	3. Context records: the context owner, then unexpired cross-context
//	   grants keyed by the requester's string form.
//
// Exhausting every rule denies. A grant with ExpiresAt <= Now is treated
// identically to an absent one everywhere.
func evaluate(ctx context.Context, reg Registry, req Request) (Match, error) {
	record, err := reg.FindContent(ctx, req.ContentID)
	haveContent := err == nil
	if err != nil && !errors.Is(err, sentinel.ErrNotFound) {
		return "", dErrors.Wrap(dErrors.CodeInternal, "find content record", err)
	}

	if haveContent && record.HasBinding() {
		match, err := evaluateWalletBound(ctx, reg, req, record)
		if err != nil {
			return "", err
		}
		if match != "" {
			return match, nil
		}
		// fall through to the legacy tables
	}

	if haveContent {
		if record.Owner != req.Owner {
			return "", dErrors.New(dErrors.CodeNotOwner, "asserted owner does not match the content record")
		}
		if req.Requester == record.Owner {
			return MatchContentOwner, nil
		}
		perm, err := reg.FindPermission(ctx, req.ContentID, req.Requester)
		if err != nil && !errors.Is(err, sentinel.ErrNotFound) {
			return "", dErrors.Wrap(dErrors.CodeInternal, "find permission", err)
		}
		if err == nil && perm.IsActive(req.Now) {
			return MatchContentGrant, nil
		}
	}

	contextID := req.ContentID.ContextPrefix()
	ctxRecord, err := reg.FindContext(ctx, contextID)
	if errors.Is(err, sentinel.ErrNotFound) {
		if haveContent {
			return "", dErrors.New(dErrors.CodeNoAccess, "no grant admits the requester")
		}
		return "", dErrors.New(dErrors.CodeContextNotFound, "content has no registered context owner")
	}
	if err != nil {
		return "", dErrors.Wrap(dErrors.CodeInternal, "find context record", err)
	}
	if ctxRecord.Owner != req.Owner {
		return "", dErrors.New(dErrors.CodeNotOwner, "asserted owner does not match the context record")
	}
	if req.Requester == ctxRecord.Owner {
		return MatchContextOwner, nil
	}

	cross, err := reg.FindCrossContextPermission(ctx, contextID, id.AppID(req.Requester.String()))
	if err != nil && !errors.Is(err, sentinel.ErrNotFound) {
		return "", dErrors.Wrap(dErrors.CodeInternal, "find cross-context permission", err)
	}
	if err == nil && cross.IsActive(req.Now) {
		return MatchCrossContext, nil
	}

	return "", dErrors.New(dErrors.CodeNoAccess, "no grant admits the requester")
}

// evaluateWalletBound runs the wallet-bound sub-checks. An empty match with
// nil error means total miss: the caller falls through to the legacy walk.
func evaluateWalletBound(ctx context.Context, reg Registry, req Request, record registry.ContentRecord) (Match, error) {
	info, err := reg.FindSubIdentityInfo(ctx, record.SubIdentityAddr)
	if errors.Is(err, sentinel.ErrNotFound) {
		// A binding without registered info cannot be validated against the
		// asserted owner. Registration enforces info-before-binding, so this
		// is corrupted state, not a miss.
		return "", dErrors.New(dErrors.CodeSubIdentityNotRegistered, "bound sub-identity has no registered info")
	}
	if err != nil {
		return "", dErrors.Wrap(dErrors.CodeInternal, "find sub identity info", err)
	}
	if info.RootOwner != req.Owner {
		return "", dErrors.New(dErrors.CodeNotOwner, "asserted owner does not match the bound sub-identity")
	}

	if req.Requester == record.SubIdentityAddr {
		return MatchV2Self, nil
	}

	for _, scope := range []id.Scope{id.ScopeRead, id.ScopeWrite} {
		entry, err := reg.FindWalletAllowlistEntry(ctx, req.Requester, record.SubIdentityAddr, scope)
		if err != nil && !errors.Is(err, sentinel.ErrNotFound) {
			return "", dErrors.Wrap(dErrors.CodeInternal, "find allowlist entry", err)
		}
		if err == nil && entry.IsActive(req.Now) {
			if scope == id.ScopeRead {
				return MatchV2AllowlistRead, nil
			}
			return MatchV2AllowlistWrite, nil
		}
	}

	if info.AppHint.String() != "" {
		cross, err := reg.FindCrossContextPermission(ctx, req.ContentID.ContextPrefix(), info.AppHint)
		if err != nil && !errors.Is(err, sentinel.ErrNotFound) {
			return "", dErrors.Wrap(dErrors.CodeInternal, "find cross-context permission", err)
		}
		if err == nil && cross.IsActive(req.Now) {
			return MatchV2AppHint, nil
		}
	}

	return "", nil
}
