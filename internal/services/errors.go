package services

import "errors"

var (
	// ErrConcurrencyExhausted is returned when an episode action lost the
	// uniqueness race on every retry attempt.
	ErrConcurrencyExhausted = errors.New("episode activity update lost concurrency race after retries")

	// ErrCatalogUnavailable wraps gateway failures; callers on read paths
	// degrade rather than fail.
	ErrCatalogUnavailable = errors.New("catalog unavailable")

	// ErrCatalogNotFound means the catalog has no such item.
	ErrCatalogNotFound = errors.New("catalog item not found")

	ErrInvalidAction = errors.New("unknown episode action")
	ErrInvalidRating = errors.New("rating must be between 0 and 10")
)
