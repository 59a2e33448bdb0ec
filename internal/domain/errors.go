package domain

import "errors"

var (
	// ErrValidation marks malformed input (missing or invalid url, bad interval).
	ErrValidation = errors.New("validation error")
	// ErrNotFound marks an operation on a site id that isn't registered.
	ErrNotFound = errors.New("site not found")
)
