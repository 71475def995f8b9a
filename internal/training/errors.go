package training

import "errors"

var (
	// ErrNoResources is returned when a request carries neither urls nor files.
	ErrNoResources = errors.New("at least one url or file is required")

	// ErrMissingIdentity is returned when owner or account identity is absent.
	ErrMissingIdentity = errors.New("missing owner or account identity")
)
