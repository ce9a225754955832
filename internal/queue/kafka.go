package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"

	"creditwatch/internal/alerts"
)

const (
	// writeTimeout is the maximum time to wait for a Kafka write operation.
	writeTimeout = 10 * time.Second
	// commitInterval is how often consumed offsets are flushed to the broker.
	commitInterval = 1 * time.Second

	headerMessageID     = "message_id"
	headerDeliveryCount = "delivery-count"
	headerContentType   = "content-type"
	headerReason        = "dead-letter-reason"
	headerOriginalID    = "original-message-id"
)

// KafkaClient implements Client on top of Kafka topics. Abandon re-publishes
// to the alerts topic with an incremented delivery-count header; DeadLetter
// publishes to a side topic. Both then commit the consumed offset, so a
// message is never left invisible to both the processor and the queue.
type KafkaClient struct {
	reader    *kafka.Reader
	writer    *kafka.Writer
	dlqWriter *kafka.Writer
	topic     string
	dlqTopic  string
}

// Ensure KafkaClient implements the queue contract.
var _ Client = (*KafkaClient)(nil)

// NewKafkaClient creates a queue client for the given brokers and topics.
// The consumer group provides the at-most-one-lease-per-message guarantee
// across concurrent workers.
func NewKafkaClient(brokers, topic, dlqTopic, groupID string) (*KafkaClient, error) {
	if brokers == "" {
		return nil, fmt.Errorf("brokers cannot be empty")
	}
	if topic == "" {
		return nil, fmt.Errorf("topic cannot be empty")
	}
	if dlqTopic == "" {
		return nil, fmt.Errorf("dead-letter topic cannot be empty")
	}
	if groupID == "" {
		return nil, fmt.Errorf("groupID cannot be empty")
	}

	brokerList := parseBrokers(brokers)

	slog.Info("Initializing Kafka queue client",
		"brokers", brokerList,
		"topic", topic,
		"dlq_topic", dlqTopic,
		"group_id", groupID,
	)

	// At-least-once consumer: offsets are committed explicitly after the
	// processor resolves each message to a terminal outcome.
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        brokerList,
		Topic:          topic,
		GroupID:        groupID,
		MinBytes:       1,
		MaxBytes:       10e6,
		MaxWait:        1 * time.Second,
		CommitInterval: commitInterval,
		StartOffset:    kafka.FirstOffset,
	})

	return &KafkaClient{
		reader:    reader,
		writer:    newWriter(brokerList, topic),
		dlqWriter: newWriter(brokerList, dlqTopic),
		topic:     topic,
		dlqTopic:  dlqTopic,
	}, nil
}

// newWriter configures a synchronous writer keyed by alert id.
func newWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		WriteTimeout: writeTimeout,
		RequiredAcks: kafka.RequireOne,
		Async:        false,
	}
}

// parseBrokers splits a comma-separated broker list and trims whitespace.
func parseBrokers(brokers string) []string {
	list := strings.Split(brokers, ",")
	for i := range list {
		list[i] = strings.TrimSpace(list[i])
	}
	return list
}

// Send publishes an alert to the alerts topic with a fresh message id and a
// delivery count of 1.
func (c *KafkaClient) Send(ctx context.Context, alert *alerts.Alert) error {
	payload, err := alerts.Encode(alert)
	if err != nil {
		return err
	}

	msg := buildMessage(alert.ID, uuid.New().String(), 1, payload)
	if err := c.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to publish alert %s: %w", alert.ID, err)
	}

	slog.Info("Alert enqueued",
		"alert_id", alert.ID,
		"account_id", alert.AccountID,
		"severity", alert.Severity.String(),
		"topic", c.topic,
	)
	return nil
}

// ReceiveBatch fetches up to max messages, waiting at most wait for the
// first one. Returns an empty batch when the queue is idle.
func (c *KafkaClient) ReceiveBatch(ctx context.Context, max int, wait time.Duration) ([]QueuedMessage, error) {
	fetchCtx, cancel := context.WithTimeout(ctx, wait)
	defer cancel()

	batch := make([]QueuedMessage, 0, max)
	for len(batch) < max {
		msg, err := c.reader.FetchMessage(fetchCtx)
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) {
				return batch, nil
			}
			if ctx.Err() != nil {
				return batch, ctx.Err()
			}
			return batch, fmt.Errorf("failed to fetch message: %w", err)
		}
		batch = append(batch, fromKafkaMessage(msg))
	}
	return batch, nil
}

// Complete commits the message's offset.
func (c *KafkaClient) Complete(ctx context.Context, msg QueuedMessage) error {
	if err := c.reader.CommitMessages(ctx, msg.raw); err != nil {
		return fmt.Errorf("failed to commit message %s: %w", msg.MessageID, err)
	}
	return nil
}

// Abandon re-publishes the message with an incremented delivery count and
// commits the consumed offset, producing a redelivery on the same topic.
func (c *KafkaClient) Abandon(ctx context.Context, msg QueuedMessage) error {
	redelivery := buildMessage(string(msg.raw.Key), msg.MessageID, msg.DeliveryCount+1, msg.Payload)
	if err := c.writer.WriteMessages(ctx, redelivery); err != nil {
		return fmt.Errorf("failed to re-enqueue message %s: %w", msg.MessageID, err)
	}
	slog.Info("Message re-enqueued for redelivery",
		"message_id", msg.MessageID,
		"delivery_count", msg.DeliveryCount+1,
	)
	return c.Complete(ctx, msg)
}

// DeadLetter publishes the original payload to the dead-letter topic with
// the failure reason and commits the consumed offset.
func (c *KafkaClient) DeadLetter(ctx context.Context, msg QueuedMessage, reason string) error {
	dead := kafka.Message{
		Key:   msg.raw.Key,
		Value: msg.Payload,
		Headers: []kafka.Header{
			{Key: headerOriginalID, Value: []byte(msg.MessageID)},
			{Key: headerReason, Value: []byte(reason)},
			{Key: headerDeliveryCount, Value: []byte(strconv.Itoa(msg.DeliveryCount))},
			{Key: headerContentType, Value: []byte("application/json")},
		},
		Time: time.Now(),
	}
	if err := c.dlqWriter.WriteMessages(ctx, dead); err != nil {
		return fmt.Errorf("failed to dead-letter message %s: %w", msg.MessageID, err)
	}
	slog.Warn("Message dead-lettered",
		"message_id", msg.MessageID,
		"reason", reason,
		"dlq_topic", c.dlqTopic,
	)
	return c.Complete(ctx, msg)
}

// Close closes the reader and both writers, returning the first error.
func (c *KafkaClient) Close() error {
	slog.Info("Closing Kafka queue client", "topic", c.topic)
	var firstErr error
	if err := c.reader.Close(); err != nil {
		firstErr = err
	}
	if err := c.writer.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	if err := c.dlqWriter.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}

// buildMessage assembles a Kafka message keyed by alert id.
func buildMessage(key, messageID string, deliveryCount int, payload []byte) kafka.Message {
	return kafka.Message{
		Key:   []byte(key),
		Value: payload,
		Headers: []kafka.Header{
			{Key: headerMessageID, Value: []byte(messageID)},
			{Key: headerDeliveryCount, Value: []byte(strconv.Itoa(deliveryCount))},
			{Key: headerContentType, Value: []byte("application/json")},
		},
		Time: time.Now(),
	}
}

// fromKafkaMessage converts a fetched Kafka message into a QueuedMessage,
// reading delivery metadata from headers. A missing or unreadable
// delivery-count header means first delivery.
func fromKafkaMessage(msg kafka.Message) QueuedMessage {
	qm := QueuedMessage{
		MessageID:     headerValue(msg, headerMessageID),
		DeliveryCount: 1,
		Payload:       msg.Value,
		raw:           msg,
	}
	if qm.MessageID == "" {
		qm.MessageID = fmt.Sprintf("%s-%d-%d", msg.Topic, msg.Partition, msg.Offset)
	}
	if v := headerValue(msg, headerDeliveryCount); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 1 {
			qm.DeliveryCount = n
		}
	}
	return qm
}

// headerValue returns the value of the named header, or "" if absent.
func headerValue(msg kafka.Message, key string) string {
	for _, h := range msg.Headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}
