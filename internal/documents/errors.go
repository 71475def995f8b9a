package documents

import "errors"

// ErrNotFound indicates the document does not exist or is soft-deleted.
var ErrNotFound = errors.New("document not found")

// ErrInvalidInput indicates missing or malformed caller input.
var ErrInvalidInput = errors.New("invalid input")
