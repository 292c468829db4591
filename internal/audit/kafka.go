package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kgo"
)

// Topic layout: one topic per category so downstream consumers can apply
// category-specific retention.
const (
	TopicCompliance = "safeharbor.audit.compliance"
	TopicSecurity   = "safeharbor.audit.security"
	TopicOperations = "safeharbor.audit.operations"
)

func topicFor(category EventCategory) string {
	switch category {
	case CategoryCompliance:
		return TopicCompliance
	case CategorySecurity:
		return TopicSecurity
	default:
		return TopicOperations
	}
}

// KafkaStore publishes audit events to Kafka. Kafka is the durable audit
// trail; the in-memory store covers tests and broker-less deployments.
type KafkaStore struct {
	client *kgo.Client
}

// kafkaPayload is the JSON structure written to the topic.
type kafkaPayload struct {
	ID        string `json:"id"`
	Category  string `json:"category"`
	Timestamp string `json:"timestamp"`
	Actor     string `json:"actor,omitempty"`
	Subject   string `json:"subject"`
	Action    string `json:"action"`
	Decision  string `json:"decision,omitempty"`
	Reason    string `json:"reason,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

// NewKafkaStore connects to the brokers and ensures the audit topics exist.
func NewKafkaStore(ctx context.Context, brokers []string) (*KafkaStore, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.ProducerBatchMaxBytes(1<<20),
	)
	if err != nil {
		return nil, fmt.Errorf("audit kafka client: %w", err)
	}

	admin := kadm.NewClient(client)
	topics := []string{TopicCompliance, TopicSecurity, TopicOperations}
	// Per-topic "already exists" responses are expected when multiple
	// instances race on startup; only a transport-level failure aborts.
	if _, err := admin.CreateTopics(ctx, 1, 1, nil, topics...); err != nil {
		client.Close()
		return nil, fmt.Errorf("ensure audit topics: %w", err)
	}

	return &KafkaStore{client: client}, nil
}

// Append produces the event to its category topic, keyed by subject so one
// entity's trail stays ordered within a partition.
func (s *KafkaStore) Append(ctx context.Context, event Event) error {
	payload := kafkaPayload{
		ID:        uuid.NewString(),
		Category:  string(event.Category),
		Timestamp: event.Timestamp.Format(time.RFC3339Nano),
		Actor:     event.Actor,
		Subject:   event.Subject,
		Action:    event.Action,
		Decision:  event.Decision,
		Reason:    event.Reason,
		RequestID: event.RequestID,
	}

	value, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal audit event: %w", err)
	}

	record := &kgo.Record{
		Topic: topicFor(event.Category),
		Key:   []byte(event.Subject),
		Value: value,
	}

	result := s.client.ProduceSync(ctx, record)
	if err := result.FirstErr(); err != nil {
		return fmt.Errorf("produce audit event: %w", err)
	}
	return nil
}

// Close flushes outstanding records and releases the client.
func (s *KafkaStore) Close() {
	s.client.Close()
}
