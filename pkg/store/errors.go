package store

import "errors"

// Error represents a domain error from storage and engine operations.
//
// These are business logic failures (file not found, quota exceeded, wrong
// link password, ...) as opposed to infrastructure errors (network failure,
// disk error). Callers at the boundary translate the Code to their own
// error surface; within the engine, errors are matched with IsCode.
type Error struct {
	// Code is the error category
	Code ErrorCode

	// Message is a human-readable error description
	Message string
}

// Error implements the error interface.
func (e *Error) Error() string {
	return e.Message
}

// ErrorCode represents the category of a domain error.
type ErrorCode int

const (
	// ErrNotFound indicates the requested file/folder/version/share/link
	// doesn't exist or is not visible to the caller.
	ErrNotFound ErrorCode = iota

	// ErrPermissionDenied indicates the entity exists but the caller lacks
	// the rights to perform the operation.
	ErrPermissionDenied

	// ErrConflict indicates a state conflict: duplicate share, duplicate
	// sibling folder name, plan change rejected.
	ErrConflict

	// ErrAlreadyExists indicates an insert hit the uniqueness constraint on
	// (owner, folder, name) for non-deleted files. Upload paths catch this
	// and retry as a version-create.
	ErrAlreadyExists

	// ErrQuotaExceeded indicates an upload would exceed the plan's storage
	// limit.
	ErrQuotaExceeded

	// ErrFeatureNotAllowed indicates the caller's plan does not include the
	// requested capability (versioning on non-Business plans).
	ErrFeatureNotAllowed

	// ErrExpired indicates a time window has elapsed: trash retention for
	// restores, or a shared link past its expiry.
	ErrExpired

	// ErrInvalidCredential indicates a missing or wrong shared-link password.
	ErrInvalidCredential

	// ErrRateLimited indicates the shared link's download cap is reached.
	ErrRateLimited

	// ErrStorageInconsistency indicates metadata references a blob key the
	// blob store cannot produce. Fatal for the operation, logged.
	ErrStorageInconsistency
)

// NewError creates a domain error with the given code and message.
func NewError(code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message}
}

// IsCode reports whether err is (or wraps) a domain error with the given code.
func IsCode(err error, code ErrorCode) bool {
	var de *Error
	if errors.As(err, &de) {
		return de.Code == code
	}
	return false
}

// Common errors returned by stores. Engines return these directly where the
// default message fits and construct their own where more context helps.
var (
	ErrUserNotFound    = NewError(ErrNotFound, "no user was found with the given id")
	ErrFileNotFound    = NewError(ErrNotFound, "no file was found with the given id")
	ErrFolderNotFound  = NewError(ErrNotFound, "no folder was found with the given id")
	ErrVersionNotFound = NewError(ErrNotFound, "no version was found with the given id")
	ErrShareNotFound   = NewError(ErrNotFound, "share not found")
	ErrLinkNotFound    = NewError(ErrNotFound, "no shared link was found with the given token")
)
