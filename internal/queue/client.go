package queue

import "context"

// Publisher delivers an envelope to a named queue. Delivery is durable and
// at-least-once; callers must tolerate downstream redelivery.
type Publisher interface {
	Publish(ctx context.Context, queueName string, envelope any) error
}
