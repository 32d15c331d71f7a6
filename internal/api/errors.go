// Package api provides error types for studious backend responses.
package api

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for the client-perceived failure taxonomy.
// Remote responses are mapped onto these so callers can branch with errors.Is.
var (
	// ErrPermissionDenied indicates the acting user lacks the role required
	// for a mutating operation. Also raised client-side as a fast-path guard
	// before any request is issued.
	ErrPermissionDenied = errors.New("permission denied")

	// ErrNotFound indicates the target folder or file no longer exists,
	// e.g. it was deleted by another session.
	ErrNotFound = errors.New("not found")

	// ErrInvalidMove indicates a move that would create a cycle or move an
	// item onto itself.
	ErrInvalidMove = errors.New("invalid move")

	// ErrNameConflict indicates a sibling with the same name already exists.
	ErrNameConflict = errors.New("name already exists in folder")
)

// RemoteError wraps an application error returned by the backend,
// preserving its message text and machine-readable code.
type RemoteError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *RemoteError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("remote error (status %d): %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("remote error (status %d)", e.StatusCode)
}

// Unwrap maps the remote error code onto the sentinel taxonomy.
func (e *RemoteError) Unwrap() error {
	switch e.Code {
	case "PERMISSION_DENIED":
		return ErrPermissionDenied
	case "NOT_FOUND":
		return ErrNotFound
	case "INVALID_MOVE":
		return ErrInvalidMove
	case "CONFLICT":
		return ErrNameConflict
	}
	switch e.StatusCode {
	case 401, 403:
		return ErrPermissionDenied
	case 404:
		return ErrNotFound
	case 409:
		return ErrNameConflict
	}
	return nil
}

// IsRetryableStatus reports whether a status code indicates a transient
// server-side failure. Used by the transport's retry policy for reads only;
// mutating operations are never retried automatically.
func IsRetryableStatus(status int) bool {
	return status >= 500 || status == 429
}

// IsNameConflictError checks if an error indicates a duplicate sibling name.
//
// Detects conflicts from multiple sources:
//  1. Wrapped ErrNameConflict
//  2. Error messages containing "already exists" or "duplicate"
func IsNameConflictError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrNameConflict) {
		return true
	}
	errStr := strings.ToLower(err.Error())
	return strings.Contains(errStr, "already exists") || strings.Contains(errStr, "duplicate")
}
