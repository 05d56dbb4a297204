package model

import "errors"

var (
	// ErrStoreUnavailable is returned when the store channel cannot be listed.
	ErrStoreUnavailable = errors.New("store unavailable")
	// ErrWriteFailed is returned when appending or deleting a record fails.
	ErrWriteFailed = errors.New("write failed")
	// ErrAuthFailed is returned when credentials are missing or rejected.
	ErrAuthFailed = errors.New("auth failed")
	// ErrFetchFailed is returned when a remote feed cannot be fetched or parsed.
	ErrFetchFailed = errors.New("fetch failed")
	// ErrNotFound is returned when no record matches a query.
	ErrNotFound = errors.New("not found")
	// ErrInvalidInput is returned when command arguments are unusable.
	ErrInvalidInput = errors.New("invalid input")
	// ErrLimitReached is returned when a record kind has used its share of
	// the scan window.
	ErrLimitReached = errors.New("limit reached")
)
