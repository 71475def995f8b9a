package callbacks

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"

	"training-backend/internal/documents"
	"training-backend/internal/queue"
)

// MessageMeta captures details useful for logging and diagnostics.
type MessageMeta struct {
	BodyLen int
	BodySHA string
}

// ComputeMeta returns the body length and SHA-256 hash.
func ComputeMeta(body string) MessageMeta {
	if body == "" {
		return MessageMeta{BodyLen: 0, BodySHA: ""}
	}
	sum := sha256.Sum256([]byte(body))
	return MessageMeta{BodyLen: len(body), BodySHA: hex.EncodeToString(sum[:])}
}

// ErrEmptyBody indicates an empty queue payload.
type ErrEmptyBody struct {
	Meta MessageMeta
}

func (e ErrEmptyBody) Error() string { return "empty message body" }

// ErrDecode indicates a JSON decode failure.
type ErrDecode struct {
	Meta MessageMeta
	Err  error
}

func (e ErrDecode) Error() string {
	if e.Err == nil {
		return "decode message"
	}
	return "decode message: " + e.Err.Error()
}

// ErrMissingSourceID indicates a callback without a document reference.
type ErrMissingSourceID struct {
	Meta MessageMeta
}

func (e ErrMissingSourceID) Error() string { return "missing source id" }

// ErrProcess indicates processing failed after successful parsing.
type ErrProcess struct {
	SourceID string
	Action   string
	Err      error
}

func (e ErrProcess) Error() string {
	if e.Err == nil {
		return "process callback"
	}
	return "process callback: " + e.Err.Error()
}

func (e ErrProcess) Unwrap() error { return e.Err }

// StatusWriter persists a document status. Satisfied by the documents
// service.
type StatusWriter interface {
	SetStatus(ctx context.Context, documentID string, status documents.Status) error
}

// ParseMessage validates and decodes the queue payload.
func ParseMessage(body string) (queue.CompletionEvent, MessageMeta, error) {
	meta := ComputeMeta(body)
	if strings.TrimSpace(body) == "" {
		return queue.CompletionEvent{}, meta, ErrEmptyBody{Meta: meta}
	}

	event, err := queue.DecodeCompletionEvent([]byte(body))
	if err != nil {
		return queue.CompletionEvent{}, meta, ErrDecode{Meta: meta, Err: err}
	}
	if strings.TrimSpace(event.Data.Content.SourceID) == "" {
		return event, meta, ErrMissingSourceID{Meta: meta}
	}
	return event, meta, nil
}

type parsedEventKey struct{}

// WithParsedEvent stores a decoded event in the context for reuse.
func WithParsedEvent(ctx context.Context, event queue.CompletionEvent) context.Context {
	return context.WithValue(ctx, parsedEventKey{}, event)
}

func parsedEventFromContext(ctx context.Context) (queue.CompletionEvent, bool) {
	if ctx == nil {
		return queue.CompletionEvent{}, false
	}
	event, ok := ctx.Value(parsedEventKey{}).(queue.CompletionEvent)
	return event, ok
}

// StatusForAction maps a callback action onto a ledger status. Only a
// literal completed action counts as success; anything else, including
// unknown values, marks the document failed.
func StatusForAction(action string) documents.Status {
	if strings.EqualFold(strings.TrimSpace(action), "completed") {
		return documents.StatusCompleted
	}
	return documents.StatusFailed
}

// HandleMessage parses, validates, and applies a completion callback.
func HandleMessage(ctx context.Context, writer StatusWriter, body string) error {
	if writer == nil {
		return errors.New("document service not configured")
	}

	event, ok := parsedEventFromContext(ctx)
	if !ok {
		var err error
		event, _, err = ParseMessage(body)
		if err != nil {
			return err
		}
	}

	sourceID := strings.TrimSpace(event.Data.Content.SourceID)
	if sourceID == "" {
		return ErrMissingSourceID{Meta: ComputeMeta(body)}
	}

	action := event.Data.Content.Action
	status := StatusForAction(action)
	if err := writer.SetStatus(ctx, sourceID, status); err != nil {
		return ErrProcess{SourceID: sourceID, Action: action, Err: err}
	}
	return nil
}
