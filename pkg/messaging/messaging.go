package messaging

import "context"

// Broker publishes domain events for downstream consumers.
type Broker interface {
	Publish(ctx context.Context, topic string, payload []byte) error
	Close() error
}
