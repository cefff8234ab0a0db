package items

import (
	"errors"
	"fmt"
)

// Sentinel errors returned by the lifecycle manager. The handler layer maps
// them to HTTP status codes; nothing in this package knows about HTTP.
var (
	// ErrNotFound: no item with the given id exists.
	ErrNotFound = errors.New("item not found")

	// ErrCredentialRequired: the item is private and no credential was
	// offered at all. Distinct from ErrForbidden so clients can prompt
	// for a key instead of reporting a bad one.
	ErrCredentialRequired = errors.New("secret key required")

	// ErrForbidden: a credential was offered but does not match.
	ErrForbidden = errors.New("invalid secret key")

	// ErrAdminUnauthorized: an admin-only operation was attempted with a
	// missing or wrong admin key.
	ErrAdminUnauthorized = errors.New("invalid admin key")

	// ErrDuplicateID is returned by a RecordStore when an insert collides
	// with an existing item id. Creation retries once with a fresh id.
	ErrDuplicateID = errors.New("duplicate item id")
)

// ValidationError reports a missing or malformed creation field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid field %s: %s", e.Field, e.Reason)
}

func missingField(field string) *ValidationError {
	return &ValidationError{Field: field, Reason: "required"}
}

// UpstreamError wraps a blob or record store failure.
type UpstreamError struct {
	Op  string
	Err error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *UpstreamError) Unwrap() error { return e.Err }
