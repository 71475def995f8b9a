package documents

import "time"

// Status is the processing lifecycle state of a document. The string
// values are shared with the knowledge-processing fleet and must not
// change (note the space in "IN PROGRESS").
type Status string

const (
	StatusNew        Status = "NEW"
	StatusUploaded   Status = "UPLOADED"
	StatusInProgress Status = "IN PROGRESS"
	StatusCompleted  Status = "COMPLETED"
	StatusFailed     Status = "FAILED"
)

// ResourceType identifies what kind of training content a document holds.
type ResourceType string

const (
	ResourceFile  ResourceType = "file"
	ResourceURL   ResourceType = "url"
	ResourceMedia ResourceType = "media"
)

// Document is the ledger entry for one unit of training content. URL
// documents leave the storage fields empty.
type Document struct {
	ID           string
	OwnerID      string
	AccountID    string
	ResourceType ResourceType
	FileName     string
	Folder       string
	Bucket       string
	Region       string
	Status       Status
	IsDeleted    bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
