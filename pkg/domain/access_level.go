package domain

import dErrors "keygate/pkg/domain-errors"

// AccessLevel is a domain value that identifies what a grant permits.
// Invariant: the value must be one of the supported access levels.
//
// Usage: construct via ParseAccessLevel at trust boundaries to enforce the
// allowlist; direct casting bypasses validation.
type AccessLevel string

// Supported access levels.
const (
	AccessLevelRead  AccessLevel = "read"
	AccessLevelWrite AccessLevel = "write"
)

// validAccessLevels is the single source of truth for valid access levels.
var validAccessLevels = map[AccessLevel]bool{
	AccessLevelRead:  true,
	AccessLevelWrite: true,
}

// ParseAccessLevel constructs an AccessLevel from external input.
//
// Errors: returns CodeInvalidAccessLevel when the value is empty or
// unsupported; no other errors are expected.
func ParseAccessLevel(s string) (AccessLevel, error) {
	l := AccessLevel(s)
	if !l.IsValid() {
		return "", dErrors.New(dErrors.CodeInvalidAccessLevel, "access level must be read or write")
	}
	return l, nil
}

// IsValid checks if the access level is one of the supported enum values.
func (l AccessLevel) IsValid() bool {
	return validAccessLevels[l]
}

// String returns the string representation of the access level.
func (l AccessLevel) String() string {
	return string(l)
}
