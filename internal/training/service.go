package training

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"training-backend/internal/documents"
	"training-backend/internal/queue"
	"training-backend/internal/shared/metrics"
	"training-backend/internal/shared/storage/object"
	"training-backend/internal/shared/telemetry"
)

const (
	publishAttempts = 3
	publishBackoff  = 200 * time.Millisecond

	defaultMaxParallel = 4
)

// Compressor re-encodes media bytes, falling back to the input on failure.
type Compressor interface {
	Compress(ctx context.Context, logicalName string, data []byte) []byte
}

// Service orchestrates ingestion: ledger rows, object uploads, media
// compression, and the async handoff to the knowledge-processing fleet.
type Service struct {
	Docs       *documents.Service
	Store      object.ObjectStore
	Publisher  queue.Publisher
	Compressor Compressor

	// Bucket and Region are recorded on file-backed ledger rows so the
	// delete path knows where the bytes live.
	Bucket string
	Region string

	// MaxParallel caps concurrent per-resource ingestion chains.
	MaxParallel int
}

// FileResource is one uploaded file held in memory.
type FileResource struct {
	OriginalName string
	ContentType  string
	Data         []byte
}

// IngestInput is one training request. IsMedia applies to every file in
// the batch and is echoed into url metadata as well.
type IngestInput struct {
	URLs    []string
	Files   []FileResource
	IsMedia bool
}

// ItemReport is the per-resource outcome of an ingestion batch.
type ItemReport struct {
	DocumentID   string `json:"documentId,omitempty"`
	ResourceType string `json:"resourceType"`
	Name         string `json:"name"`
	Status       string `json:"status"`
	Error        string `json:"error,omitempty"`
}

// Report summarizes an ingestion batch. Accepted counts resources handed
// off to the processing fleet; Failed counts resources that did not make
// it into a published event.
type Report struct {
	Accepted int          `json:"accepted"`
	Failed   int          `json:"failed"`
	Items    []ItemReport `json:"items"`
}

type outcome struct {
	report ItemReport
	item   queue.TrainingItem
	ok     bool
}

// Ingest processes every resource in the batch. Each resource gets its own
// ledger row and its own failure domain: one bad file never aborts the
// rest. Successful resources are published in at most two envelopes, one
// for files and one for urls.
func (s *Service) Ingest(ctx context.Context, ownerID, accountID string, in IngestInput) (Report, error) {
	if len(in.URLs) == 0 && len(in.Files) == 0 {
		return Report{}, ErrNoResources
	}
	if strings.TrimSpace(ownerID) == "" || strings.TrimSpace(accountID) == "" {
		return Report{}, ErrMissingIdentity
	}

	start := time.Now()
	metrics.IncResourcesReceived(len(in.URLs) + len(in.Files))

	folder := accountID + "/" + ownerID

	total := len(in.Files) + len(in.URLs)
	outcomes := make([]outcome, total)

	maxParallel := s.MaxParallel
	if maxParallel < 1 {
		maxParallel = defaultMaxParallel
	}
	sem := make(chan struct{}, maxParallel)
	var wg sync.WaitGroup

	for i := range in.Files {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			outcomes[idx] = s.ingestFile(ctx, ownerID, accountID, folder, &in.Files[idx], in.IsMedia)
		}(i)
	}
	for i, rawURL := range in.URLs {
		wg.Add(1)
		go func(idx int, rawURL string) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			outcomes[idx] = s.ingestURL(ctx, ownerID, accountID, rawURL, in.IsMedia)
		}(len(in.Files)+i, rawURL)
	}
	wg.Wait()

	fileOutcomes := outcomes[:len(in.Files)]
	urlOutcomes := outcomes[len(in.Files):]

	var report Report
	report.Items = make([]ItemReport, 0, total)
	report.Items = append(report.Items, s.publishGroup(ctx, ownerID, accountID, fileOutcomes)...)
	report.Items = append(report.Items, s.publishGroup(ctx, ownerID, accountID, urlOutcomes)...)

	for _, item := range report.Items {
		if item.Status == string(documents.StatusFailed) {
			report.Failed++
		} else {
			report.Accepted++
		}
	}

	metrics.ObserveIngestDurationMs(float64(time.Since(start).Milliseconds()))
	telemetry.Info("training.ingest_completed", map[string]any{
		"owner_id":   ownerID,
		"account_id": accountID,
		"accepted":   report.Accepted,
		"failed":     report.Failed,
		"elapsed_ms": time.Since(start).Milliseconds(),
	})
	return report, nil
}

func (s *Service) ingestURL(ctx context.Context, ownerID, accountID, rawURL string, isMedia bool) outcome {
	doc, err := s.Docs.Create(ctx, ownerID, accountID, documents.CreateInput{
		ResourceType: documents.ResourceURL,
		FileName:     rawURL,
	})
	if err != nil {
		telemetry.Error("training.url_failed", map[string]any{
			"url":   rawURL,
			"error": err.Error(),
		})
		return outcome{report: ItemReport{
			ResourceType: string(documents.ResourceURL),
			Name:         rawURL,
			Status:       string(documents.StatusFailed),
			Error:        "failed to record document",
		}}
	}

	return outcome{
		report: ItemReport{
			DocumentID:   doc.ID,
			ResourceType: string(documents.ResourceURL),
			Name:         rawURL,
			Status:       string(doc.Status),
		},
		item: queue.TrainingItem{
			Content: queue.ResourceContent{
				ResourceType: string(documents.ResourceURL),
				Metadata: queue.ResourceMetadata{
					SourceID: doc.ID,
					URL:      rawURL,
					IsMedia:  isMedia,
				},
			},
			Action: queue.ActionNew,
		},
		ok: true,
	}
}

func (s *Service) ingestFile(ctx context.Context, ownerID, accountID, folder string, file *FileResource, isMedia bool) outcome {
	resourceType := documents.ResourceFile
	if isMedia {
		resourceType = documents.ResourceMedia
	}

	doc, err := s.Docs.Create(ctx, ownerID, accountID, documents.CreateInput{
		ResourceType: resourceType,
		FileName:     file.OriginalName,
		Folder:       folder,
		Bucket:       s.Bucket,
		Region:       s.Region,
	})
	if err != nil {
		telemetry.Error("training.file_failed", map[string]any{
			"file":  file.OriginalName,
			"error": err.Error(),
		})
		return outcome{report: ItemReport{
			ResourceType: string(resourceType),
			Name:         file.OriginalName,
			Status:       string(documents.StatusFailed),
			Error:        "failed to record document",
		}}
	}

	// Detach the buffer from the request; after compression only the
	// transcoded bytes stay resident for the upload.
	data := file.Data
	file.Data = nil
	if isMedia && s.Compressor != nil {
		data = s.Compressor.Compress(ctx, file.OriginalName, data)
	}

	ext := strings.ToLower(filepath.Ext(file.OriginalName))
	key := folder + "/" + doc.ID + "/source" + ext

	result, err := s.Store.Put(ctx, key, file.ContentType, bytes.NewReader(data))
	if err != nil {
		telemetry.Error("training.upload_failed", map[string]any{
			"document_id": doc.ID,
			"file":        file.OriginalName,
			"error":       err.Error(),
		})
		metrics.IncUploadsFailed()
		if statusErr := s.Docs.SetStatus(ctx, doc.ID, documents.StatusFailed); statusErr != nil {
			telemetry.Error("training.status_update_failed", map[string]any{
				"document_id": doc.ID,
				"status":      string(documents.StatusFailed),
				"error":       statusErr.Error(),
			})
		}
		return outcome{report: ItemReport{
			DocumentID:   doc.ID,
			ResourceType: string(resourceType),
			Name:         file.OriginalName,
			Status:       string(documents.StatusFailed),
			Error:        "failed to store file",
		}}
	}
	metrics.IncUploadsCompleted()
	telemetry.Info("training.upload_completed", map[string]any{
		"document_id": doc.ID,
		"file":        file.OriginalName,
		"location":    result.URL,
		"size":        len(data),
	})

	status := documents.StatusUploaded
	if err := s.Docs.SetStatus(ctx, doc.ID, status); err != nil {
		telemetry.Error("training.status_update_failed", map[string]any{
			"document_id": doc.ID,
			"status":      string(status),
			"error":       err.Error(),
		})
	}

	return outcome{
		report: ItemReport{
			DocumentID:   doc.ID,
			ResourceType: string(resourceType),
			Name:         file.OriginalName,
			Status:       string(status),
		},
		item: queue.TrainingItem{
			Content: queue.ResourceContent{
				ResourceType: string(documents.ResourceFile),
				Metadata: queue.ResourceMetadata{
					SourceID:     doc.ID,
					OriginalName: file.OriginalName,
					FileName:     "source" + ext,
					Size:         int64(len(data)),
					MimeType:     file.ContentType,
					Folder:       folder,
					IsMedia:      isMedia,
				},
			},
			Action: queue.ActionNew,
		},
		ok: true,
	}
}

// publishGroup sends one envelope for the successful outcomes of a group
// and moves published documents to IN PROGRESS. Failed outcomes pass
// through unchanged.
func (s *Service) publishGroup(ctx context.Context, ownerID, accountID string, group []outcome) []ItemReport {
	reports := make([]ItemReport, 0, len(group))

	var items []queue.TrainingItem
	for _, o := range group {
		if o.ok {
			items = append(items, o.item)
		}
	}

	var publishErr error
	if len(items) > 0 {
		event := queue.NewIngestEvent(ownerID, accountID, items)
		publishErr = s.publishWithRetry(ctx, queue.QueueNewResources, event)
	}

	for _, o := range group {
		report := o.report
		if o.ok && len(items) > 0 {
			if publishErr != nil {
				report.Status = string(documents.StatusFailed)
				report.Error = "failed to publish training event"
				if err := s.Docs.SetStatus(ctx, report.DocumentID, documents.StatusFailed); err != nil {
					telemetry.Error("training.status_update_failed", map[string]any{
						"document_id": report.DocumentID,
						"status":      string(documents.StatusFailed),
						"error":       err.Error(),
					})
				}
			} else {
				report.Status = string(documents.StatusInProgress)
				if err := s.Docs.SetStatus(ctx, report.DocumentID, documents.StatusInProgress); err != nil {
					telemetry.Error("training.status_update_failed", map[string]any{
						"document_id": report.DocumentID,
						"status":      string(documents.StatusInProgress),
						"error":       err.Error(),
					})
				}
			}
		}
		reports = append(reports, report)
	}
	return reports
}

// Delete removes a document from the ledger, purges its stored objects,
// and tells the processing fleet to drop the derived knowledge. Storage
// and publish failures surface to the caller after the ledger row is
// already marked deleted.
func (s *Service) Delete(ctx context.Context, ownerID, accountID, documentID string) (documents.Document, error) {
	if strings.TrimSpace(ownerID) == "" || strings.TrimSpace(accountID) == "" {
		return documents.Document{}, ErrMissingIdentity
	}

	doc, err := s.Docs.SoftDelete(ctx, documentID)
	if err != nil {
		return documents.Document{}, err
	}

	// URL documents never had bytes in storage.
	if doc.Folder != "" {
		prefix := doc.Folder + "/" + doc.ID
		if err := s.Store.DeleteByPrefix(ctx, prefix); err != nil {
			telemetry.Error("training.storage_delete_failed", map[string]any{
				"document_id": doc.ID,
				"prefix":      prefix,
				"error":       err.Error(),
			})
			return doc, fmt.Errorf("remove stored objects: %w", err)
		}
	}

	event := queue.NewDeleteEvent(ownerID, accountID, doc.ID)
	if err := s.publishWithRetry(ctx, queue.QueueDeleteResource, event); err != nil {
		return doc, fmt.Errorf("publish delete event: %w", err)
	}

	telemetry.Info("training.delete_completed", map[string]any{
		"document_id": doc.ID,
		"owner_id":    ownerID,
		"account_id":  accountID,
	})
	return doc, nil
}

func (s *Service) publishWithRetry(ctx context.Context, queueName string, envelope any) error {
	var lastErr error
	for attempt := 1; attempt <= publishAttempts; attempt++ {
		lastErr = s.Publisher.Publish(ctx, queueName, envelope)
		if lastErr == nil {
			metrics.IncEventsPublished()
			return nil
		}
		telemetry.Error("queue.publish_failed", map[string]any{
			"queue":   queueName,
			"attempt": attempt,
			"error":   lastErr.Error(),
		})
		if attempt == publishAttempts {
			break
		}
		select {
		case <-time.After(time.Duration(attempt) * publishBackoff):
		case <-ctx.Done():
			metrics.IncPublishFailed()
			return ctx.Err()
		}
	}
	metrics.IncPublishFailed()
	return lastErr
}
