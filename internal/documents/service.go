package documents

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Service contains business logic for the document ledger.
type Service struct {
	Repo Repo
}

// CreateInput describes a new ledger entry. Folder, Bucket, and Region are
// only meaningful for file and media resources.
type CreateInput struct {
	ResourceType ResourceType
	FileName     string
	Folder       string
	Bucket       string
	Region       string
}

// Create records a new document. Every document starts NEW and live.
func (s *Service) Create(ctx context.Context, ownerID, accountID string, in CreateInput) (Document, error) {
	if strings.TrimSpace(ownerID) == "" || strings.TrimSpace(accountID) == "" {
		return Document{}, ErrInvalidInput
	}
	if in.ResourceType == "" || in.FileName == "" {
		return Document{}, ErrInvalidInput
	}

	now := time.Now().UTC()
	doc := Document{
		ID:           uuid.NewString(),
		OwnerID:      ownerID,
		AccountID:    accountID,
		ResourceType: in.ResourceType,
		FileName:     in.FileName,
		Folder:       in.Folder,
		Bucket:       in.Bucket,
		Region:       in.Region,
		Status:       StatusNew,
		IsDeleted:    false,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.Repo.Create(ctx, doc); err != nil {
		return Document{}, err
	}
	return doc, nil
}

// Get returns a live document by ID.
func (s *Service) Get(ctx context.Context, documentID string) (Document, error) {
	if strings.TrimSpace(documentID) == "" {
		return Document{}, ErrInvalidInput
	}
	return s.Repo.GetByID(ctx, documentID)
}

// List returns live documents for an account.
func (s *Service) List(ctx context.Context, accountID string, limit, offset int) ([]Document, error) {
	if strings.TrimSpace(accountID) == "" {
		return nil, ErrInvalidInput
	}
	return s.Repo.List(ctx, accountID, limit, offset)
}

// SetStatus overwrites the document status. Any status value is accepted;
// legality of the transition is deliberately not checked.
func (s *Service) SetStatus(ctx context.Context, documentID string, status Status) error {
	if strings.TrimSpace(documentID) == "" {
		return ErrInvalidInput
	}
	return s.Repo.SetStatus(ctx, documentID, status)
}

// SoftDelete marks the document logically removed and returns it.
func (s *Service) SoftDelete(ctx context.Context, documentID string) (Document, error) {
	if strings.TrimSpace(documentID) == "" {
		return Document{}, ErrInvalidInput
	}
	return s.Repo.SoftDelete(ctx, documentID)
}
