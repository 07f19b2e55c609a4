// services/sync_errors.go
package services

import (
	"errors"
	"fmt"
)

// SourceFetchError is a run-fatal failure talking to the marketplace API:
// network error, non-2xx status (after the single auth retry) or an
// unparseable body.
type SourceFetchError struct {
	Endpoint   string
	StatusCode int    // 0 when no response was received
	BodyPrefix string // first bytes of the body, for diagnostics
	Err        error
}

func (e *SourceFetchError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("source fetch %s failed: %v", e.Endpoint, e.Err)
	}
	return fmt.Sprintf("source fetch %s failed with status %d: %v (body: %q)", e.Endpoint, e.StatusCode, e.Err, e.BodyPrefix)
}

func (e *SourceFetchError) Unwrap() error { return e.Err }

// MissingIdentifierError rejects a record without a unique identifier.
type MissingIdentifierError struct {
	Entity string
	Field  string
}

func (e *MissingIdentifierError) Error() string {
	return fmt.Sprintf("%s record has no %s", e.Entity, e.Field)
}

// UpsertError is a per-record (or per-line-item) write failure.
type UpsertError struct {
	Entity string
	GUID   string
	Err    error
}

func (e *UpsertError) Error() string {
	return fmt.Sprintf("upsert %s %s: %v", e.Entity, e.GUID, e.Err)
}

func (e *UpsertError) Unwrap() error { return e.Err }

// DuplicateInRunError marks a record already processed earlier in the same run.
// It is informational: the record is skipped, not failed.
type DuplicateInRunError struct {
	Entity string
	GUID   string
}

func (e *DuplicateInRunError) Error() string {
	return fmt.Sprintf("%s %s already processed in this run", e.Entity, e.GUID)
}

// ErrUnauthorized is wrapped into a SourceFetchError when re-authentication
// could not recover a 401.
var ErrUnauthorized = errors.New("marketplace rejected credentials")
