// Package domainerrors provides the closed error taxonomy returned by core
// operations. Every failure an operation can produce carries one of the codes
// below; callers branch on codes with HasCode rather than on message text.
package domainerrors

import (
	"errors"
	"fmt"
)

// Code classifies a domain failure.
type Code string

const (
	// CodeUnauthorized: caller lacks ownership/authorization for the target
	// entity or admin action.
	CodeUnauthorized Code = "unauthorized"
	// CodeNotFound: referenced client/provider/resource/request/case does not exist.
	CodeNotFound Code = "not_found"
	// CodeInvalidInput: out-of-enumeration value, zero/invalid capacity,
	// malformed time window, or a full fixed-capacity list.
	CodeInvalidInput Code = "invalid_input"
	// CodeResourceUnavailable: reservation attempted against a resource with
	// zero available slots.
	CodeResourceUnavailable Code = "resource_unavailable"
	// CodeAlreadyExists: duplicate anonymous client registration for an
	// identical derived hash.
	CodeAlreadyExists Code = "already_exists"
	// CodeExpired: client record is stale relative to the privacy retention
	// window; surfaced as an access denial.
	CodeExpired Code = "expired"
	// CodeInsufficientCapacity is reserved for capacity-planning checks beyond
	// binary slot availability.
	CodeInsufficientCapacity Code = "insufficient_capacity"
	// CodePrivacyViolation is reserved for access failures distinct from plain
	// unauthorized (e.g. attempts to read across privacy levels).
	CodePrivacyViolation Code = "privacy_violation"
	// CodeInternal: unexpected infrastructure failure. Never used for a
	// business-rule rejection.
	CodeInternal Code = "internal"
)

// Error is a coded domain error. Construct with New/Newf/Wrap.
type Error struct {
	code  Code
	msg   string
	cause error
}

func New(code Code, msg string) *Error {
	return &Error{code: code, msg: msg}
}

func Newf(code Code, format string, args ...any) *Error {
	return &Error{code: code, msg: fmt.Sprintf(format, args...)}
}

// Wrap attaches a code and message to an underlying cause. The cause remains
// reachable through errors.Is / errors.As.
func Wrap(err error, code Code, msg string) *Error {
	return &Error{code: code, msg: msg, cause: err}
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.code, e.msg, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.code, e.msg)
}

func (e *Error) Unwrap() error { return e.cause }

// Code returns the classification of this error.
func (e *Error) Code() Code { return e.code }

// Message returns the human-readable description without the code prefix.
func (e *Error) Message() string { return e.msg }

// HasCode reports whether err (or anything it wraps) is a domain error with
// the given code.
func HasCode(err error, code Code) bool {
	var de *Error
	if errors.As(err, &de) {
		return de.code == code
	}
	return false
}

// CodeOf extracts the code from err, defaulting to CodeInternal for errors
// that did not originate in the domain layer.
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.code
	}
	return CodeInternal
}
