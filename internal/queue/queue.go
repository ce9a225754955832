// Package queue provides the durable alert queue contract and its Kafka
// transport. The queue is at-least-once: a message abandoned or lost before
// completion is redelivered with an incremented delivery count.
package queue

import (
	"context"
	"time"

	"github.com/segmentio/kafka-go"

	"creditwatch/internal/alerts"
)

// QueuedMessage wraps an alert payload with queue delivery metadata.
// DeliveryCount starts at 1 and is incremented by the transport on each
// redelivery; consumers only observe it.
type QueuedMessage struct {
	MessageID     string
	DeliveryCount int
	Payload       []byte

	raw kafka.Message
}

// NewMessage builds a QueuedMessage without transport backing.
// Intended for tests and in-memory fakes.
func NewMessage(messageID string, deliveryCount int, payload []byte) QueuedMessage {
	return QueuedMessage{
		MessageID:     messageID,
		DeliveryCount: deliveryCount,
		Payload:       payload,
	}
}

// Client is the transport abstraction over the durable alert queue.
type Client interface {
	// Send enqueues an alert. Called exactly once per alert at creation.
	Send(ctx context.Context, alert *alerts.Alert) error

	// ReceiveBatch returns up to max leased messages, waiting at most wait.
	// An empty batch and nil error means the queue was idle.
	ReceiveBatch(ctx context.Context, max int, wait time.Duration) ([]QueuedMessage, error)

	// Complete marks a message as successfully processed.
	Complete(ctx context.Context, msg QueuedMessage) error

	// Abandon releases a message for redelivery with an incremented
	// delivery count.
	Abandon(ctx context.Context, msg QueuedMessage) error

	// DeadLetter moves a message to the dead-letter channel with a
	// human-readable reason, preserving the original payload for replay.
	DeadLetter(ctx context.Context, msg QueuedMessage, reason string) error

	// Close releases transport resources.
	Close() error
}
