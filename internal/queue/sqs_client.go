package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
)

const defaultSQSRegion = "us-east-1"

type sqsSender interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

// SQSPublisher sends envelopes to AWS SQS queues, mapping logical queue
// names to queue URLs.
type SQSPublisher struct {
	client    sqsSender
	queueURLs map[string]string
}

// NewSQSPublisher constructs an SQS-backed publisher. queueURLs maps
// logical names (QueueNewResources, ...) to SQS queue URLs; names with an
// empty URL are rejected at publish time.
func NewSQSPublisher(ctx context.Context, region string, queueURLs map[string]string) (*SQSPublisher, error) {
	if len(queueURLs) == 0 {
		return nil, fmt.Errorf("at least one queue url is required")
	}
	if strings.TrimSpace(region) == "" {
		region = defaultSQSRegion
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	urls := make(map[string]string, len(queueURLs))
	for name, url := range queueURLs {
		if trimmed := strings.TrimSpace(url); trimmed != "" {
			urls[name] = trimmed
		}
	}

	return &SQSPublisher{
		client:    sqs.NewFromConfig(cfg),
		queueURLs: urls,
	}, nil
}

// Publish delivers an envelope to the named queue.
func (p *SQSPublisher) Publish(ctx context.Context, queueName string, envelope any) error {
	queueURL, ok := p.queueURLs[queueName]
	if !ok {
		return fmt.Errorf("queue %q is not configured", queueName)
	}

	payload, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("encode envelope for %s: %w", queueName, err)
	}

	_, err = p.client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    aws.String(queueURL),
		MessageBody: aws.String(string(payload)),
	})
	if err != nil {
		return fmt.Errorf("sqs send message queue=%s: %w", queueName, err)
	}
	return nil
}

var _ Publisher = (*SQSPublisher)(nil)
