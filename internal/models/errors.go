// internal/models/errors.go
package models

import "errors"

// Shared error taxonomy. Every store and manager wraps one of these so the
// HTTP layer and the realtime gateway can map failures to a status code or
// a game:error event without inspecting strings.
var (
	// ErrUnauthorized means the request carried no valid credential.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrForbidden means the caller is authenticated but not permitted,
	// e.g. a non-host calling start or end.
	ErrForbidden = errors.New("forbidden")

	// ErrNotFound means the referenced lobby, session, or queue entry
	// does not exist.
	ErrNotFound = errors.New("not found")

	// ErrConflict covers state violations: lobby full, already joined,
	// wrong password, wrong status for the requested transition.
	ErrConflict = errors.New("conflict")
)
