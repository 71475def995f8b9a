package queue

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
)

type fakeSender struct {
	inputs []*sqs.SendMessageInput
	err    error
}

func (f *fakeSender) SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.inputs = append(f.inputs, params)
	return &sqs.SendMessageOutput{}, nil
}

func TestSQSPublisherRoutesByQueueName(t *testing.T) {
	sender := &fakeSender{}
	pub := &SQSPublisher{
		client: sender,
		queueURLs: map[string]string{
			QueueNewResources:   "https://sqs.example/new",
			QueueDeleteResource: "https://sqs.example/delete",
		},
	}

	event := NewDeleteEvent("owner-1", "account-1", "doc-1")
	if err := pub.Publish(context.Background(), QueueDeleteResource, event); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	if len(sender.inputs) != 1 {
		t.Fatalf("expected one send, got %d", len(sender.inputs))
	}
	if got := aws.ToString(sender.inputs[0].QueueUrl); got != "https://sqs.example/delete" {
		t.Fatalf("unexpected queue url: %q", got)
	}

	var decoded DeleteEvent
	if err := json.Unmarshal([]byte(aws.ToString(sender.inputs[0].MessageBody)), &decoded); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if decoded.Data.DocumentID != "doc-1" {
		t.Fatalf("unexpected payload: %+v", decoded)
	}
}

func TestSQSPublisherUnknownQueue(t *testing.T) {
	pub := &SQSPublisher{
		client:    &fakeSender{},
		queueURLs: map[string]string{QueueNewResources: "https://sqs.example/new"},
	}

	if err := pub.Publish(context.Background(), "mystery-queue", NewIngestEvent("o", "a", nil)); err == nil {
		t.Fatalf("expected error for unconfigured queue")
	}
}

func TestIngestEventWireFormat(t *testing.T) {
	event := NewIngestEvent("owner-1", "account-1", []TrainingItem{
		{
			Content: ResourceContent{
				ResourceType: "file",
				Metadata: ResourceMetadata{
					SourceID:     "doc-1",
					OriginalName: "notes.pdf",
					FileName:     "source.pdf",
					Size:         42,
					MimeType:     "application/pdf",
					Folder:       "account-1/owner-1",
				},
			},
			Action: ActionNew,
		},
	})

	payload, err := json.Marshal(event)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var raw map[string]any
	if err := json.Unmarshal(payload, &raw); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	for _, key := range []string{"userId", "accountId", "timestamp", "data"} {
		if _, ok := raw[key]; !ok {
			t.Fatalf("missing envelope key %q", key)
		}
	}

	items := raw["data"].([]any)
	content := items[0].(map[string]any)["content"].(map[string]any)
	metadata := content["metadata"].(map[string]any)
	if metadata["mimetype"] != "application/pdf" {
		t.Fatalf("mimetype key must be lowercase single word: %v", metadata)
	}
	if metadata["sourceId"] != "doc-1" {
		t.Fatalf("unexpected sourceId: %v", metadata["sourceId"])
	}
	if _, ok := metadata["url"]; ok {
		t.Fatalf("empty url must be omitted")
	}
	if metadata["isMedia"] != false {
		t.Fatalf("isMedia must always be present")
	}
}

func TestDecodeCompletionEvent(t *testing.T) {
	body := `{"userId":"u","accountId":"a","timestamp":"2026-08-29T10:00:00Z",` +
		`"data":{"content":{"sourceId":"doc-1","action":"completed"}}}`

	event, err := DecodeCompletionEvent([]byte(body))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if event.Data.Content.SourceID != "doc-1" || event.Data.Content.Action != "completed" {
		t.Fatalf("unexpected event: %+v", event)
	}

	if _, err := DecodeCompletionEvent([]byte("{bad")); err == nil {
		t.Fatalf("expected decode error")
	}
}
