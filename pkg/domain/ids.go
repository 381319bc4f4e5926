package domain

import (
	"strings"

	dErrors "keygate/pkg/domain-errors"
)

// Principal is an authenticated caller or wallet address. It is opaque to the
// engine: equality is the only operation the decision logic performs on it.
//
// Usage: construct via ParsePrincipal at trust boundaries; direct casting
// bypasses validation.
type Principal string

// ParsePrincipal constructs a Principal from external input.
func ParsePrincipal(s string) (Principal, error) {
	if strings.TrimSpace(s) == "" {
		return "", dErrors.New(dErrors.CodeBadRequest, "principal cannot be empty")
	}
	return Principal(s), nil
}

// IsZero returns true when no principal is set.
func (p Principal) IsZero() bool {
	return p == ""
}

// String returns the string representation of the principal.
func (p Principal) String() string {
	return string(p)
}

// ContentID identifies one piece of protected content. Typically a
// content-addressed key; legacy registrations prefix it with a context id
// followed by ContextSeparator.
type ContentID string

// ContextSeparator splits a legacy content id into its context prefix and the
// per-content remainder.
const ContextSeparator = ":"

// ParseContentID constructs a ContentID from external input.
func ParseContentID(s string) (ContentID, error) {
	if s == "" {
		return "", dErrors.New(dErrors.CodeContentNotFound, "content id cannot be empty")
	}
	return ContentID(s), nil
}

// ContextPrefix returns the context id portion of a legacy content id: the
// prefix before the first separator, or the whole id when no separator is
// present.
func (c ContentID) ContextPrefix() ContextID {
	if i := strings.Index(string(c), ContextSeparator); i >= 0 {
		return ContextID(c[:i])
	}
	return ContextID(c)
}

// String returns the string representation of the content id.
func (c ContentID) String() string {
	return string(c)
}

// ContextID identifies an application-scoped content context.
type ContextID string

// ParseContextID constructs a ContextID from external input.
func ParseContextID(s string) (ContextID, error) {
	if s == "" {
		return "", dErrors.New(dErrors.CodeInvalidContextID, "context id cannot be empty")
	}
	return ContextID(s), nil
}

// String returns the string representation of the context id.
func (c ContextID) String() string {
	return string(c)
}

// AppID names the application a sub-identity is derived for.
type AppID string

// ParseAppID constructs an AppID from external input.
func ParseAppID(s string) (AppID, error) {
	if strings.TrimSpace(s) == "" {
		return "", dErrors.New(dErrors.CodeInvalidAppID, "application id cannot be empty")
	}
	return AppID(s), nil
}

// String returns the string representation of the application id.
func (a AppID) String() string {
	return string(a)
}

// Scope names the capability a wallet allowlist entry covers.
type Scope string

// Scopes checked by the decision procedure, in evaluation order.
const (
	ScopeRead  Scope = "read"
	ScopeWrite Scope = "write"
)

// ParseScope constructs a Scope from external input.
func ParseScope(s string) (Scope, error) {
	if strings.TrimSpace(s) == "" {
		return "", dErrors.New(dErrors.CodeInvalidScope, "scope cannot be empty")
	}
	return Scope(s), nil
}

// String returns the string representation of the scope.
func (s Scope) String() string {
	return string(s)
}
