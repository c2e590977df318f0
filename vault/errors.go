// Package vault implements the credential-gated storage core of the media
// vault: the single-admin credential store, the per-category file policy,
// and the upload ingestor that persists files collision-free on local disk.
package vault

import "errors"

// Sentinel errors returned by the vault core. HTTP handlers map these to
// status codes; none of them is fatal to the process.
var (
	// ErrInvalidInput is returned when a credential operation receives an
	// empty username or password.
	ErrInvalidInput = errors.New("invalid input")

	// ErrAlreadyInitialized is returned by Bootstrap when an admin
	// credential already exists.
	ErrAlreadyInitialized = errors.New("credentials already initialized")

	// ErrUserNotFound is returned by Rotate when the username does not
	// match the stored record.
	ErrUserNotFound = errors.New("user not found")

	// ErrMalformedCredentials is returned when the credential file exists
	// but cannot be parsed. Verify treats this as "no match"; the startup
	// diagnostics distinguish it from an empty store.
	ErrMalformedCredentials = errors.New("malformed credential record")

	// ErrInvalidCategory is returned when a category name is not one of
	// the four known values.
	ErrInvalidCategory = errors.New("invalid category")

	// ErrEmptyFilename is returned when an upload carries no filename.
	ErrEmptyFilename = errors.New("empty filename")

	// ErrUnsupportedType is returned when a filename's extension is not
	// allowed in the target category.
	ErrUnsupportedType = errors.New("unsupported file type")

	// ErrStorage wraps any filesystem failure during ingestion.
	ErrStorage = errors.New("storage failure")
)
