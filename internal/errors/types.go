package errors

import (
	"errors"
	"fmt"
)

// ErrorType classifies errors by how the conversation layer recovers from them.
type ErrorType int

const (
	// ErrorTypeRetry - recovered locally; the session stays alive and the user
	// is re-prompted for the same field.
	ErrorTypeRetry ErrorType = iota
	// ErrorTypeTerminal - the session is torn down and the user must restart
	// the flow.
	ErrorTypeTerminal
	// ErrorTypeInternal - an invariant that should be unreachable failed.
	// Logged in full, surfaced to the user only as a generic failure.
	ErrorTypeInternal
)

// Date field names carried by InvalidDateError.
const (
	FieldDay   = "day"
	FieldMonth = "month"
	FieldYear  = "year"
	FieldDate  = "date"
)

// InvalidDateError reports a malformed or out-of-range date field. Field is one
// of the Field* constants, Reason is human-readable and names the constraint
// that failed.
type InvalidDateError struct {
	Field  string
	Reason string
}

func (e *InvalidDateError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// SessionExpiredError reports input that arrived after the session's absolute
// deadline. The session has already been deleted when this is returned.
type SessionExpiredError struct {
	UserID string
}

func (e *SessionExpiredError) Error() string {
	return fmt.Sprintf("session for user %s has expired", e.UserID)
}

// SessionNotFoundError reports input for a flow step with no active session,
// for example continuing a flow that was never started or already torn down.
type SessionNotFoundError struct {
	UserID string
}

func (e *SessionNotFoundError) Error() string {
	return fmt.Sprintf("no active session for user %s", e.UserID)
}

// MissingPrerequisiteError reports a flow started without the data it needs,
// such as a compatibility check before the user's own birth date is stored.
type MissingPrerequisiteError struct {
	UserID  string
	Missing string
}

func (e *MissingPrerequisiteError) Error() string {
	return fmt.Sprintf("user %s is missing prerequisite: %s", e.UserID, e.Missing)
}

// InvariantViolationError wraps a calculator or state-machine invariant
// failure. These are bugs, not user errors; Detail carries everything needed
// to diagnose them from the log.
type InvariantViolationError struct {
	Op     string
	Detail string
	Err    error
}

func (e *InvariantViolationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("invariant violation in %s: %s: %v", e.Op, e.Detail, e.Err)
	}
	return fmt.Sprintf("invariant violation in %s: %s", e.Op, e.Detail)
}

func (e *InvariantViolationError) Unwrap() error {
	return e.Err
}

// IsInvalidDate checks whether err is (or wraps) an InvalidDateError.
func IsInvalidDate(err error) bool {
	var invalidErr *InvalidDateError
	return errors.As(err, &invalidErr)
}

// IsSessionExpired checks whether err is (or wraps) a SessionExpiredError.
func IsSessionExpired(err error) bool {
	var expiredErr *SessionExpiredError
	return errors.As(err, &expiredErr)
}

// IsSessionNotFound checks whether err is (or wraps) a SessionNotFoundError.
func IsSessionNotFound(err error) bool {
	var notFoundErr *SessionNotFoundError
	return errors.As(err, &notFoundErr)
}

// IsMissingPrerequisite checks whether err is (or wraps) a MissingPrerequisiteError.
func IsMissingPrerequisite(err error) bool {
	var missingErr *MissingPrerequisiteError
	return errors.As(err, &missingErr)
}

// IsInvariantViolation checks whether err is (or wraps) an InvariantViolationError.
func IsInvariantViolation(err error) bool {
	var invariantErr *InvariantViolationError
	return errors.As(err, &invariantErr)
}

// GetErrorType returns the recovery classification for err. Unknown errors are
// treated as internal: anything unclassified coming out of the core is a bug.
func GetErrorType(err error) ErrorType {
	switch {
	case IsInvalidDate(err), IsMissingPrerequisite(err):
		return ErrorTypeRetry
	case IsSessionExpired(err), IsSessionNotFound(err):
		return ErrorTypeTerminal
	default:
		return ErrorTypeInternal
	}
}

// NewInvalidDate creates an InvalidDateError for the given field.
func NewInvalidDate(field, reason string) *InvalidDateError {
	return &InvalidDateError{Field: field, Reason: reason}
}

// NewInvalidDatef creates an InvalidDateError with a formatted reason.
func NewInvalidDatef(field, format string, args ...any) *InvalidDateError {
	return &InvalidDateError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// NewSessionExpired creates a SessionExpiredError.
func NewSessionExpired(userID string) *SessionExpiredError {
	return &SessionExpiredError{UserID: userID}
}

// NewSessionNotFound creates a SessionNotFoundError.
func NewSessionNotFound(userID string) *SessionNotFoundError {
	return &SessionNotFoundError{UserID: userID}
}

// NewMissingPrerequisite creates a MissingPrerequisiteError.
func NewMissingPrerequisite(userID, missing string) *MissingPrerequisiteError {
	return &MissingPrerequisiteError{UserID: userID, Missing: missing}
}

// NewInvariantViolation creates an InvariantViolationError.
func NewInvariantViolation(op, detail string, err error) *InvariantViolationError {
	return &InvariantViolationError{Op: op, Detail: detail, Err: err}
}
