// Package domainerrors provides code-carrying errors for domain and
// validation failures. Stores return infrastructure sentinels; services
// translate them into these categorical errors so handlers can map each code
// to a stable HTTP status without string matching.
package domainerrors

import (
	"errors"
	"fmt"
	"net/http"
)

// Code classifies a domain error. Codes are part of the external contract:
// the key-custodian service matches on them, so renaming one is a breaking
// change.
type Code string

const (
	// Authorization outcomes.
	CodeNotOwner Code = "not_owner"
	CodeNoAccess Code = "no_access"

	// Content registry.
	CodeContentAlreadyRegistered Code = "content_already_registered"
	CodeContentNotFound          Code = "content_not_found"

	// Context registry (legacy path).
	CodeInvalidContextID         Code = "invalid_context_id"
	CodeContextNotFound          Code = "context_not_found"
	CodeContextAlreadyRegistered Code = "context_already_registered"

	// Grant validation.
	CodeInvalidAccessLevel Code = "invalid_access_level"
	CodeInvalidTimestamp   Code = "invalid_timestamp"
	CodeInvalidScope       Code = "invalid_scope"

	// Identity registry.
	CodeInvalidAppID             Code = "invalid_app_id"
	CodeSubIdentityNotRegistered Code = "sub_identity_not_registered"
	CodeDuplicateSubIdentity     Code = "duplicate_sub_identity"
	CodeSubIdentityAlreadyExists Code = "sub_identity_already_exists"
	CodeRootIdentityNotFound     Code = "root_identity_not_found"

	// Wallet allowlist.
	CodeAllowlistEntryNotFound Code = "allowlist_entry_not_found"

	// Infrastructure.
	CodeBadRequest   Code = "bad_request"
	CodeUnauthorized Code = "unauthorized"
	CodeNotFound     Code = "not_found"
	CodeInternal     Code = "internal_error"
)

// Error is the concrete code-carrying error type.
type Error struct {
	ErrCode Code
	Message string
	wrapped error
}

// New creates a domain error with the given code and message.
func New(code Code, msg string) *Error {
	return &Error{ErrCode: code, Message: msg}
}

// Wrap creates a domain error that preserves the underlying cause for
// errors.Is/errors.As chains while presenting a categorical code.
func Wrap(code Code, msg string, err error) *Error {
	return &Error{ErrCode: code, Message: msg, wrapped: err}
}

func (e *Error) Error() string {
	if e.Message == "" {
		return string(e.ErrCode)
	}
	return fmt.Sprintf("%s: %s", e.ErrCode, e.Message)
}

func (e *Error) Unwrap() error {
	return e.wrapped
}

// CodeOf extracts the code from err, or CodeInternal when err is not a
// domain error.
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.ErrCode
	}
	return CodeInternal
}

// Is reports whether err carries the given code anywhere in its chain.
func Is(err error, code Code) bool {
	var de *Error
	if errors.As(err, &de) {
		return de.ErrCode == code
	}
	return false
}

// httpStatus maps codes to HTTP statuses for the REST surface. The custodian
// contract only distinguishes approve from deny, so every denial class maps
// to 403.
var httpStatus = map[Code]int{
	CodeNotOwner:                 http.StatusForbidden,
	CodeNoAccess:                 http.StatusForbidden,
	CodeContentAlreadyRegistered: http.StatusConflict,
	CodeContentNotFound:          http.StatusNotFound,
	CodeInvalidContextID:         http.StatusBadRequest,
	CodeContextNotFound:          http.StatusNotFound,
	CodeContextAlreadyRegistered: http.StatusConflict,
	CodeInvalidAccessLevel:       http.StatusBadRequest,
	CodeInvalidTimestamp:         http.StatusBadRequest,
	CodeInvalidScope:             http.StatusBadRequest,
	CodeInvalidAppID:             http.StatusBadRequest,
	CodeSubIdentityNotRegistered: http.StatusNotFound,
	CodeDuplicateSubIdentity:     http.StatusConflict,
	CodeSubIdentityAlreadyExists: http.StatusConflict,
	CodeRootIdentityNotFound:     http.StatusNotFound,
	CodeAllowlistEntryNotFound:   http.StatusNotFound,
	CodeBadRequest:               http.StatusBadRequest,
	CodeUnauthorized:             http.StatusUnauthorized,
	CodeNotFound:                 http.StatusNotFound,
	CodeInternal:                 http.StatusInternalServerError,
}

// HTTPStatus returns the HTTP status for err's code.
func HTTPStatus(err error) int {
	if status, ok := httpStatus[CodeOf(err)]; ok {
		return status
	}
	return http.StatusInternalServerError
}
