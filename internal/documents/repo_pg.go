package documents

import (
	"context"
	"database/sql"
	"errors"
)

// PGRepo implements Repo using Postgres.
type PGRepo struct {
	DB *sql.DB
}

const documentColumns = `id, owner_id, account_id, resource_type, file_name, folder, bucket, region, status, is_deleted, created_at, updated_at`

// Create inserts a new ledger row.
func (r *PGRepo) Create(ctx context.Context, doc Document) error {
	const query = `
INSERT INTO documents (
    id,
    owner_id,
    account_id,
    resource_type,
    file_name,
    folder,
    bucket,
    region,
    status,
    is_deleted,
    created_at,
    updated_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

	_, err := r.DB.ExecContext(
		ctx,
		query,
		doc.ID,
		doc.OwnerID,
		doc.AccountID,
		string(doc.ResourceType),
		doc.FileName,
		nullString(doc.Folder),
		nullString(doc.Bucket),
		nullString(doc.Region),
		string(doc.Status),
		doc.IsDeleted,
		doc.CreatedAt,
		doc.UpdatedAt,
	)
	return err
}

// GetByID fetches a live (not soft-deleted) document.
func (r *PGRepo) GetByID(ctx context.Context, documentID string) (Document, error) {
	const query = `
SELECT ` + documentColumns + `
FROM documents
WHERE id = $1 AND is_deleted = FALSE
LIMIT 1`

	doc, err := scanDocument(r.DB.QueryRowContext(ctx, query, documentID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Document{}, ErrNotFound
		}
		return Document{}, err
	}
	return doc, nil
}

// List returns live documents for an account, most recently updated first.
func (r *PGRepo) List(ctx context.Context, accountID string, limit, offset int) ([]Document, error) {
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	const query = `
SELECT ` + documentColumns + `
FROM documents
WHERE account_id = $1 AND is_deleted = FALSE
ORDER BY updated_at DESC
LIMIT $2 OFFSET $3`

	rows, err := r.DB.QueryContext(ctx, query, accountID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, doc)
	}
	return out, rows.Err()
}

// SetStatus overwrites the document status unconditionally.
func (r *PGRepo) SetStatus(ctx context.Context, documentID string, status Status) error {
	const query = `
UPDATE documents
SET status = $1, updated_at = NOW()
WHERE id = $2`

	res, err := r.DB.ExecContext(ctx, query, string(status), documentID)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// SoftDelete marks the row deleted and returns it. Repeating the call on
// an already-deleted row succeeds with the same result.
func (r *PGRepo) SoftDelete(ctx context.Context, documentID string) (Document, error) {
	const query = `
UPDATE documents
SET is_deleted = TRUE, updated_at = NOW()
WHERE id = $1
RETURNING ` + documentColumns

	doc, err := scanDocument(r.DB.QueryRowContext(ctx, query, documentID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Document{}, ErrNotFound
		}
		return Document{}, err
	}
	return doc, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner) (Document, error) {
	var doc Document
	var resourceType, status string
	var folder, bucket, region sql.NullString
	if err := row.Scan(
		&doc.ID,
		&doc.OwnerID,
		&doc.AccountID,
		&resourceType,
		&doc.FileName,
		&folder,
		&bucket,
		&region,
		&status,
		&doc.IsDeleted,
		&doc.CreatedAt,
		&doc.UpdatedAt,
	); err != nil {
		return Document{}, err
	}
	doc.ResourceType = ResourceType(resourceType)
	doc.Status = Status(status)
	if folder.Valid {
		doc.Folder = folder.String
	}
	if bucket.Valid {
		doc.Bucket = bucket.String
	}
	if region.Valid {
		doc.Region = region.String
	}
	return doc, nil
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

var _ Repo = (*PGRepo)(nil)
