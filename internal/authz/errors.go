package authz

import "errors"

// Kind classifies an authorization failure for the caller.
type Kind int

const (
	KindBadRequest Kind = iota + 1
	KindUnauthorized
	KindForbidden
	KindInternal
)

func (k Kind) String() string {
	switch k {
	case KindBadRequest:
		return "bad_request"
	case KindUnauthorized:
		return "unauthorized"
	case KindForbidden:
		return "forbidden"
	case KindInternal:
		return "internal"
	default:
		return "unknown"
	}
}

// Error is returned by every stage of the pipeline. Reason is the
// human-readable text sent to the client.
type Error struct {
	Kind   Kind
	Code   string
	Reason string
	Err    error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Reason + ": " + e.Err.Error()
	}
	return e.Reason
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches on Code so wrapped store failures still compare equal to
// their sentinel.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

var (
	ErrUnauthenticated = &Error{
		Kind:   KindUnauthorized,
		Code:   "UNAUTHENTICATED",
		Reason: "Authentication required",
	}
	ErrTenantMissing = &Error{
		Kind:   KindBadRequest,
		Code:   "TENANT_MISSING",
		Reason: "Organization ID missing",
	}
	ErrNoUser = &Error{
		Kind:   KindForbidden,
		Code:   "NO_USER",
		Reason: "No user logged in",
	}
	ErrTenantRequired = &Error{
		Kind:   KindForbidden,
		Code:   "TENANT_REQUIRED",
		Reason: "Organization ID required for this operation",
	}
	ErrNoOrganization = &Error{
		Kind:   KindForbidden,
		Code:   "NO_ORGANIZATION",
		Reason: "User does not belong to any organization",
	}
	ErrTenantMismatch = &Error{
		Kind:   KindForbidden,
		Code:   "TENANT_MISMATCH",
		Reason: "Access denied: user does not belong to this organization",
	}
	ErrScopeUnspecified = &Error{
		Kind:   KindForbidden,
		Code:   "SCOPE_UNSPECIFIED",
		Reason: "user or organization not specified",
	}
	ErrInsufficientPrivilege = &Error{
		Kind:   KindForbidden,
		Code:   "INSUFFICIENT_PRIVILEGE",
		Reason: "Access denied: insufficient privileges",
	}
	ErrLookupFailed = &Error{
		Kind:   KindInternal,
		Code:   "MEMBERSHIP_LOOKUP_FAILED",
		Reason: "Failed to resolve organization membership",
	}
)

func lookupFailed(err error) *Error {
	return &Error{
		Kind:   ErrLookupFailed.Kind,
		Code:   ErrLookupFailed.Code,
		Reason: ErrLookupFailed.Reason,
		Err:    err,
	}
}

// AsError extracts an *Error from err. Errors that did not come from this
// package are reported as internal failures.
func AsError(err error) *Error {
	if err == nil {
		return nil
	}
	var authErr *Error
	if errors.As(err, &authErr) {
		return authErr
	}
	return lookupFailed(err)
}
