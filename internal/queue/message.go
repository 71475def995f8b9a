package queue

import (
	"encoding/json"
	"time"
)

// Logical queue names. The first two are produced by this service and
// consumed by the knowledge-processing fleet; the completion queue flows
// the other way.
const (
	QueueNewResources    = "new-resources"
	QueueDeleteResource  = "delete-resource"
	QueueCompletionCalls = "completion-callbacks"
)

// Training actions carried in envelope payloads.
const (
	ActionNew    = "new"
	ActionDelete = "delete"
)

// ResourceMetadata carries the type-specific fields for one resource.
// URL resources set URL; file resources set the file fields. SourceID is
// always the ledger Document id.
type ResourceMetadata struct {
	SourceID     string `json:"sourceId"`
	URL          string `json:"url,omitempty"`
	OriginalName string `json:"originalName,omitempty"`
	FileName     string `json:"fileName,omitempty"`
	Size         int64  `json:"size,omitempty"`
	MimeType     string `json:"mimetype,omitempty"`
	Folder       string `json:"folder,omitempty"`
	IsMedia      bool   `json:"isMedia"`
}

// ResourceContent pairs a resource type with its metadata.
type ResourceContent struct {
	ResourceType string           `json:"resourceType"`
	Metadata     ResourceMetadata `json:"metadata"`
}

// TrainingItem is one entry in an ingestion envelope.
type TrainingItem struct {
	Content ResourceContent `json:"content"`
	Action  string          `json:"action"`
}

// IngestEvent is the envelope published to the new-resources queue.
type IngestEvent struct {
	UserID    string         `json:"userId"`
	AccountID string         `json:"accountId"`
	Timestamp string         `json:"timestamp"`
	Data      []TrainingItem `json:"data"`
}

// DeletePayload identifies the document being removed.
type DeletePayload struct {
	DocumentID string `json:"documentId"`
}

// DeleteEvent is the envelope published to the delete-resource queue.
type DeleteEvent struct {
	UserID    string        `json:"userId"`
	AccountID string        `json:"accountId"`
	Timestamp string        `json:"timestamp"`
	Data      DeletePayload `json:"data"`
}

// CompletionContent is the callback body the worker fleet reports.
type CompletionContent struct {
	SourceID string `json:"sourceId"`
	Action   string `json:"action"`
}

// CompletionPayload wraps the callback content.
type CompletionPayload struct {
	Content CompletionContent `json:"content"`
}

// CompletionEvent is the envelope consumed from the completion queue.
type CompletionEvent struct {
	UserID    string            `json:"userId"`
	AccountID string            `json:"accountId"`
	Timestamp string            `json:"timestamp"`
	Data      CompletionPayload `json:"data"`
}

// NewIngestEvent stamps an ingestion envelope with the current time.
func NewIngestEvent(userID, accountID string, items []TrainingItem) IngestEvent {
	return IngestEvent{
		UserID:    userID,
		AccountID: accountID,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Data:      items,
	}
}

// NewDeleteEvent stamps a deletion envelope with the current time.
func NewDeleteEvent(userID, accountID, documentID string) DeleteEvent {
	return DeleteEvent{
		UserID:    userID,
		AccountID: accountID,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Data:      DeletePayload{DocumentID: documentID},
	}
}

// DecodeCompletionEvent parses a JSON payload into a CompletionEvent.
func DecodeCompletionEvent(payload []byte) (CompletionEvent, error) {
	var event CompletionEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return CompletionEvent{}, err
	}
	return event, nil
}
