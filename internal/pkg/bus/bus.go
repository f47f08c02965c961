// Package bus is the asynchronous event-delivery facade.
//
// Producers hand over a topic, a partition key and a JSON-serialisable
// payload; durability past a successful Publish is the bus's concern, not
// the caller's. Delivery is at-least-once — consumers must be idempotent.
package bus

import "context"

// Topics carrying order lifecycle events.
const (
	TopicOrderCreated       = "order-created"
	TopicOrderStatusUpdated = "order-status-updated"
)

// Publisher delivers one event to a topic. Implementations must respect
// ctx cancellation and deadlines; the caller bounds every attempt.
type Publisher interface {
	Publish(ctx context.Context, topic, key string, payload any) error
}
