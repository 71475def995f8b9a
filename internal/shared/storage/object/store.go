package object

import (
	"context"
	"io"
)

// PutResult describes where an object landed.
type PutResult struct {
	URL    string
	Bucket string
	Region string
}

// ObjectStore defines the contract for saving and deleting binary objects.
// DeleteByPrefix removes every object whose key starts with prefix; when
// nothing matches it falls back to deleting prefix as an exact key. A
// missing prefix or object is not an error.
type ObjectStore interface {
	Put(ctx context.Context, key string, contentType string, r io.Reader) (PutResult, error)
	DeleteByPrefix(ctx context.Context, prefix string) error
}
