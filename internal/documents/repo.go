package documents

import "context"

// Repo defines persistence operations for the document ledger.
//
// SetStatus is an unconditional overwrite: the store does not enforce a
// transition table, and the completion consumer depends on being able to
// write a terminal status regardless of the row's current state.
type Repo interface {
	Create(ctx context.Context, doc Document) error
	GetByID(ctx context.Context, documentID string) (Document, error)
	List(ctx context.Context, accountID string, limit, offset int) ([]Document, error)
	SetStatus(ctx context.Context, documentID string, status Status) error
	SoftDelete(ctx context.Context, documentID string) (Document, error)
}
