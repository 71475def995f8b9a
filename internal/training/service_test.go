package training

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"

	"training-backend/internal/documents"
	"training-backend/internal/queue"
	"training-backend/internal/shared/storage/object"
)

type publishedEvent struct {
	queueName string
	envelope  any
}

type fakePublisher struct {
	mu        sync.Mutex
	published []publishedEvent
	failCalls int
	calls     int
}

func (p *fakePublisher) Publish(ctx context.Context, queueName string, envelope any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	if p.calls <= p.failCalls {
		return errors.New("broker unavailable")
	}
	p.published = append(p.published, publishedEvent{queueName: queueName, envelope: envelope})
	return nil
}

type fakeStore struct {
	mu        sync.Mutex
	objects   map[string][]byte
	deletes   []string
	failBody  []byte
	deleteErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{objects: map[string][]byte{}}
}

func (s *fakeStore) Put(ctx context.Context, key string, contentType string, r io.Reader) (object.PutResult, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return object.PutResult{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failBody != nil && bytes.Equal(data, s.failBody) {
		return object.PutResult{}, errors.New("storage unavailable")
	}
	s.objects[key] = data
	return object.PutResult{URL: "mem://" + key}, nil
}

func (s *fakeStore) DeleteByPrefix(ctx context.Context, prefix string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.deleteErr != nil {
		return s.deleteErr
	}
	s.deletes = append(s.deletes, prefix)
	for key := range s.objects {
		if strings.HasPrefix(key, prefix) {
			delete(s.objects, key)
		}
	}
	return nil
}

type markerCompressor struct{}

func (markerCompressor) Compress(ctx context.Context, logicalName string, data []byte) []byte {
	return append([]byte("compressed:"), data...)
}

func newTestService(pub *fakePublisher, store *fakeStore) (*Service, *documents.MemoryRepo) {
	repo := documents.NewMemoryRepo()
	return &Service{
		Docs:       &documents.Service{Repo: repo},
		Store:      store,
		Publisher:  pub,
		Compressor: markerCompressor{},
	}, repo
}

func TestIngestURLsNeverTouchStorage(t *testing.T) {
	pub := &fakePublisher{}
	store := newFakeStore()
	svc, repo := newTestService(pub, store)

	report, err := svc.Ingest(context.Background(), "owner-1", "account-1", IngestInput{
		URLs: []string{"https://example.com/guide", "https://example.com/faq"},
	})
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if report.Accepted != 2 || report.Failed != 0 {
		t.Fatalf("unexpected report: %+v", report)
	}
	if len(store.objects) != 0 {
		t.Fatalf("url ingestion must not store objects, got %d", len(store.objects))
	}

	for _, item := range report.Items {
		if item.Status != string(documents.StatusInProgress) {
			t.Fatalf("expected IN PROGRESS, got %q", item.Status)
		}
		doc, err := repo.GetByID(context.Background(), item.DocumentID)
		if err != nil {
			t.Fatalf("GetByID: %v", err)
		}
		if doc.ResourceType != documents.ResourceURL {
			t.Fatalf("unexpected resource type: %q", doc.ResourceType)
		}
		if doc.Status != documents.StatusInProgress {
			t.Fatalf("unexpected ledger status: %q", doc.Status)
		}
	}

	if len(pub.published) != 1 {
		t.Fatalf("expected one envelope, got %d", len(pub.published))
	}
	event, ok := pub.published[0].envelope.(queue.IngestEvent)
	if !ok {
		t.Fatalf("unexpected envelope type %T", pub.published[0].envelope)
	}
	if event.UserID != "owner-1" || event.AccountID != "account-1" {
		t.Fatalf("unexpected envelope identity: %+v", event)
	}
	if event.Timestamp == "" {
		t.Fatalf("expected timestamp")
	}
	if len(event.Data) != 2 {
		t.Fatalf("expected 2 items, got %d", len(event.Data))
	}
	for _, item := range event.Data {
		if item.Action != queue.ActionNew {
			t.Fatalf("unexpected action %q", item.Action)
		}
		if item.Content.ResourceType != "url" {
			t.Fatalf("unexpected resource type %q", item.Content.ResourceType)
		}
		if item.Content.Metadata.URL == "" || item.Content.Metadata.SourceID == "" {
			t.Fatalf("incomplete url metadata: %+v", item.Content.Metadata)
		}
	}
}

func TestIngestFileUploadsAndPublishes(t *testing.T) {
	pub := &fakePublisher{}
	store := newFakeStore()
	svc, repo := newTestService(pub, store)

	report, err := svc.Ingest(context.Background(), "owner-1", "account-1", IngestInput{
		Files: []FileResource{{
			OriginalName: "notes.pdf",
			ContentType:  "application/pdf",
			Data:         []byte("pdf-bytes"),
		}},
	})
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if report.Accepted != 1 || report.Failed != 0 {
		t.Fatalf("unexpected report: %+v", report)
	}

	docID := report.Items[0].DocumentID
	wantKey := "account-1/owner-1/" + docID + "/source.pdf"
	if _, ok := store.objects[wantKey]; !ok {
		t.Fatalf("object not stored at %q, have %v", wantKey, keys(store.objects))
	}

	doc, err := repo.GetByID(context.Background(), docID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if doc.Status != documents.StatusInProgress {
		t.Fatalf("expected IN PROGRESS after publish, got %q", doc.Status)
	}
	if doc.Folder != "account-1/owner-1" {
		t.Fatalf("unexpected folder %q", doc.Folder)
	}

	event := pub.published[0].envelope.(queue.IngestEvent)
	meta := event.Data[0].Content.Metadata
	if meta.SourceID != docID {
		t.Fatalf("sourceId mismatch: %q vs %q", meta.SourceID, docID)
	}
	if meta.OriginalName != "notes.pdf" || meta.FileName != "source.pdf" {
		t.Fatalf("unexpected names: %+v", meta)
	}
	if meta.MimeType != "application/pdf" {
		t.Fatalf("unexpected mimetype %q", meta.MimeType)
	}
	if meta.Folder != "account-1/owner-1" {
		t.Fatalf("unexpected folder %q", meta.Folder)
	}
	if meta.IsMedia {
		t.Fatalf("expected isMedia false")
	}
	if meta.Size != int64(len("pdf-bytes")) {
		t.Fatalf("unexpected size %d", meta.Size)
	}
}

func TestIngestMediaCompressesBeforeUpload(t *testing.T) {
	pub := &fakePublisher{}
	store := newFakeStore()
	svc, repo := newTestService(pub, store)

	report, err := svc.Ingest(context.Background(), "owner-1", "account-1", IngestInput{
		Files: []FileResource{{
			OriginalName: "clip.mov",
			ContentType:  "video/quicktime",
			Data:         []byte("raw-video"),
		}},
		IsMedia: true,
	})
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}

	docID := report.Items[0].DocumentID
	stored := store.objects["account-1/owner-1/"+docID+"/source.mov"]
	if string(stored) != "compressed:raw-video" {
		t.Fatalf("expected compressed bytes, got %q", stored)
	}

	doc, _ := repo.GetByID(context.Background(), docID)
	if doc.ResourceType != documents.ResourceMedia {
		t.Fatalf("expected media ledger type, got %q", doc.ResourceType)
	}

	event := pub.published[0].envelope.(queue.IngestEvent)
	item := event.Data[0]
	if item.Content.ResourceType != "file" {
		t.Fatalf("media items publish as file, got %q", item.Content.ResourceType)
	}
	if !item.Content.Metadata.IsMedia {
		t.Fatalf("expected isMedia true")
	}
	if item.Content.Metadata.Size != int64(len("compressed:raw-video")) {
		t.Fatalf("size should reflect compressed bytes, got %d", item.Content.Metadata.Size)
	}
}

func TestIngestReleasesUploadBuffers(t *testing.T) {
	pub := &fakePublisher{}
	store := newFakeStore()
	svc, _ := newTestService(pub, store)

	in := IngestInput{
		Files: []FileResource{
			{OriginalName: "clip.mp4", ContentType: "video/mp4", Data: []byte("raw-video")},
			{OriginalName: "trailer.mov", ContentType: "video/quicktime", Data: []byte("more-video")},
		},
		IsMedia: true,
	}
	report, err := svc.Ingest(context.Background(), "owner-1", "account-1", in)
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}

	for i := range in.Files {
		if in.Files[i].Data != nil {
			t.Fatalf("file %d buffer still referenced after ingestion", i)
		}
	}

	docID := report.Items[0].DocumentID
	stored := store.objects["account-1/owner-1/"+docID+"/source.mp4"]
	if string(stored) != "compressed:raw-video" {
		t.Fatalf("stored bytes lost during buffer release: %q", stored)
	}
}

func TestIngestPartialFailureIsolatesItems(t *testing.T) {
	pub := &fakePublisher{}
	store := newFakeStore()
	store.failBody = []byte("bad-bytes")
	svc, repo := newTestService(pub, store)

	report, err := svc.Ingest(context.Background(), "owner-1", "account-1", IngestInput{
		Files: []FileResource{
			{OriginalName: "a.md", ContentType: "text/markdown", Data: []byte("aa")},
			{OriginalName: "b.md", ContentType: "text/markdown", Data: []byte("bad-bytes")},
			{OriginalName: "c.md", ContentType: "text/markdown", Data: []byte("cc")},
		},
	})
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if report.Accepted != 2 || report.Failed != 1 {
		t.Fatalf("unexpected report: %+v", report)
	}

	for _, item := range report.Items {
		doc, err := repo.GetByID(context.Background(), item.DocumentID)
		if err != nil {
			t.Fatalf("GetByID %s: %v", item.DocumentID, err)
		}
		if item.Name == "b.md" {
			if doc.Status != documents.StatusFailed {
				t.Fatalf("failed item should be FAILED, got %q", doc.Status)
			}
			if item.Error == "" {
				t.Fatalf("expected error on failed item")
			}
		} else if doc.Status != documents.StatusInProgress {
			t.Fatalf("healthy item %s should be IN PROGRESS, got %q", item.Name, doc.Status)
		}
	}

	event := pub.published[0].envelope.(queue.IngestEvent)
	if len(event.Data) != 2 {
		t.Fatalf("failed item must not be published, got %d items", len(event.Data))
	}
}

func TestIngestRejectsEmptyInput(t *testing.T) {
	svc, _ := newTestService(&fakePublisher{}, newFakeStore())

	if _, err := svc.Ingest(context.Background(), "owner-1", "account-1", IngestInput{}); !errors.Is(err, ErrNoResources) {
		t.Fatalf("expected ErrNoResources, got %v", err)
	}
	if _, err := svc.Ingest(context.Background(), "", "account-1", IngestInput{URLs: []string{"https://example.com"}}); !errors.Is(err, ErrMissingIdentity) {
		t.Fatalf("expected ErrMissingIdentity, got %v", err)
	}
}

func TestIngestPublishFailureMarksItemsFailed(t *testing.T) {
	pub := &fakePublisher{failCalls: 1000}
	store := newFakeStore()
	svc, repo := newTestService(pub, store)

	report, err := svc.Ingest(context.Background(), "owner-1", "account-1", IngestInput{
		URLs: []string{"https://example.com/guide"},
	})
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if report.Accepted != 0 || report.Failed != 1 {
		t.Fatalf("unexpected report: %+v", report)
	}
	if pub.calls != publishAttempts {
		t.Fatalf("expected %d publish attempts, got %d", publishAttempts, pub.calls)
	}

	doc, err := repo.GetByID(context.Background(), report.Items[0].DocumentID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if doc.Status != documents.StatusFailed {
		t.Fatalf("expected FAILED, got %q", doc.Status)
	}
}

func TestIngestRecoversAfterTransientPublishError(t *testing.T) {
	pub := &fakePublisher{failCalls: 1}
	svc, _ := newTestService(pub, newFakeStore())

	report, err := svc.Ingest(context.Background(), "owner-1", "account-1", IngestInput{
		URLs: []string{"https://example.com/guide"},
	})
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if report.Accepted != 1 {
		t.Fatalf("expected retry to succeed: %+v", report)
	}
	if len(pub.published) != 1 {
		t.Fatalf("expected one delivered envelope, got %d", len(pub.published))
	}
}

func TestDeleteRemovesStorageAndPublishes(t *testing.T) {
	pub := &fakePublisher{}
	store := newFakeStore()
	svc, repo := newTestService(pub, store)

	report, err := svc.Ingest(context.Background(), "owner-1", "account-1", IngestInput{
		Files: []FileResource{{OriginalName: "notes.pdf", ContentType: "application/pdf", Data: []byte("pdf")}},
	})
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	docID := report.Items[0].DocumentID

	doc, err := svc.Delete(context.Background(), "owner-1", "account-1", docID)
	if err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if !doc.IsDeleted {
		t.Fatalf("expected soft-deleted document")
	}

	if _, err := repo.GetByID(context.Background(), docID); !errors.Is(err, documents.ErrNotFound) {
		t.Fatalf("deleted document should be invisible, got %v", err)
	}

	wantPrefix := "account-1/owner-1/" + docID
	if len(store.deletes) != 1 || store.deletes[0] != wantPrefix {
		t.Fatalf("unexpected storage deletes: %v", store.deletes)
	}
	if len(store.objects) != 0 {
		t.Fatalf("objects not purged: %v", keys(store.objects))
	}

	last := pub.published[len(pub.published)-1]
	if last.queueName != queue.QueueDeleteResource {
		t.Fatalf("unexpected queue %q", last.queueName)
	}
	event := last.envelope.(queue.DeleteEvent)
	if event.Data.DocumentID != docID {
		t.Fatalf("unexpected delete payload: %+v", event.Data)
	}
}

func TestDeleteStorageFailureLeavesRowSoftDeleted(t *testing.T) {
	pub := &fakePublisher{}
	store := newFakeStore()
	svc, repo := newTestService(pub, store)

	report, err := svc.Ingest(context.Background(), "owner-1", "account-1", IngestInput{
		Files: []FileResource{{OriginalName: "notes.pdf", ContentType: "application/pdf", Data: []byte("pdf")}},
	})
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	docID := report.Items[0].DocumentID

	storageDown := errors.New("storage unavailable")
	store.deleteErr = storageDown

	if _, err := svc.Delete(context.Background(), "owner-1", "account-1", docID); !errors.Is(err, storageDown) {
		t.Fatalf("expected storage error to propagate, got %v", err)
	}

	if _, err := repo.GetByID(context.Background(), docID); !errors.Is(err, documents.ErrNotFound) {
		t.Fatalf("row should stay soft-deleted, got %v", err)
	}
	if len(store.objects) != 1 {
		t.Fatalf("objects should survive the failed delete: %v", keys(store.objects))
	}
	for _, ev := range pub.published {
		if ev.queueName == queue.QueueDeleteResource {
			t.Fatalf("delete event must not be published after a storage failure")
		}
	}
}

func TestDeleteURLSkipsStorage(t *testing.T) {
	pub := &fakePublisher{}
	store := newFakeStore()
	svc, _ := newTestService(pub, store)

	report, err := svc.Ingest(context.Background(), "owner-1", "account-1", IngestInput{
		URLs: []string{"https://example.com/guide"},
	})
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}

	if _, err := svc.Delete(context.Background(), "owner-1", "account-1", report.Items[0].DocumentID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if len(store.deletes) != 0 {
		t.Fatalf("url delete must not touch storage: %v", store.deletes)
	}
}

func TestDeleteMissingDocument(t *testing.T) {
	svc, _ := newTestService(&fakePublisher{}, newFakeStore())

	_, err := svc.Delete(context.Background(), "owner-1", "account-1", "no-such-doc")
	if !errors.Is(err, documents.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func keys(m map[string][]byte) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}
