package domain

import (
	"errors"
	"fmt"
)

var (
	ErrSessionNotFound       = errors.New("review session not found")
	ErrSessionExpired        = errors.New("review session expired")
	ErrSessionAlreadyApplied = errors.New("review session already applied")
	ErrSessionNotApproved    = errors.New("review session not approved")
	ErrRepositoryUnavailable = errors.New("destination repository unavailable")
	ErrWriteAccessDenied     = errors.New("write access to destination repository denied")
)

// RepositoryError is an I/O failure talking to a destination repository.
// StatusCode is zero when the failure did not come from an HTTP response.
type RepositoryError struct {
	Op         string
	Path       string
	StatusCode int
	Err        error
}

func (e *RepositoryError) Error() string {
	msg := fmt.Sprintf("repository %s", e.Op)
	if e.Path != "" {
		msg += " " + e.Path
	}
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" (status %d)", e.StatusCode)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *RepositoryError) Unwrap() error { return e.Err }

// ContentDriftError means the destination file changed after the plan was made.
type ContentDriftError struct {
	Path string
}

func (e *ContentDriftError) Error() string {
	return fmt.Sprintf("content of %s changed since the plan was created", e.Path)
}
