package app

import "errors"

var (
	ErrEmailRequired      = errors.New("email required")
	ErrPasswordRequired   = errors.New("password required")
	ErrEmailAlreadyExists = errors.New("email already exists")

	// ErrInvalidCredentials is shown to callers as-is and does not reveal
	// whether the email exists.
	ErrInvalidCredentials = errors.New("incorrect email address or password")
	ErrAccountDisabled    = errors.New("account disabled")

	ErrNoDocuments         = errors.New("at least one document is required")
	ErrPasswordsRequired   = errors.New("passwords required")
	ErrUnsupportedFileType = errors.New("unsupported file type")
	ErrItemsMismatch       = errors.New("items count must match documents count")
	ErrDocumentRequired    = errors.New("document required")
	ErrBatchNotFound       = errors.New("batch not found")

	ErrPoolStatsUnavailable = errors.New("connection pool statistics unavailable")
)
