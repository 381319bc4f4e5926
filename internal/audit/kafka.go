package audit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"
)

// KafkaSink publishes audit events to a Kafka topic for the off-chain
// indexer. Events are keyed by subject so per-subject ordering survives
// partitioning.
type KafkaSink struct {
	client *kgo.Client
	topic  string
}

// kafkaPayload is the JSON structure published to the topic. Field names are
// part of the indexer contract.
type kafkaPayload struct {
	ID                string `json:"id"`
	Timestamp         string `json:"timestamp"`
	Subject           string `json:"subject"`
	Action            string `json:"action"`
	Recipient         string `json:"recipient,omitempty"`
	Level             string `json:"level,omitempty"`
	Scope             string `json:"scope,omitempty"`
	Granted           bool   `json:"granted"`
	PreviousExpiresAt string `json:"previous_expires_at,omitempty"`
	ExpiresAt         string `json:"expires_at,omitempty"`
	Granter           string `json:"granter,omitempty"`
	RequestID         string `json:"request_id,omitempty"`
}

// NewKafkaSink connects to the brokers and ensures the audit topic exists.
func NewKafkaSink(ctx context.Context, brokers []string, topic string) (*KafkaSink, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.ProducerBatchCompression(kgo.SnappyCompression()),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka client: %w", err)
	}

	adm := kadm.NewClient(client)
	resp, err := adm.CreateTopic(ctx, 1, 1, nil, topic)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("ensure audit topic: %w", err)
	}
	if resp.Err != nil && !errors.Is(resp.Err, kerr.TopicAlreadyExists) {
		client.Close()
		return nil, fmt.Errorf("ensure audit topic: %w", resp.Err)
	}

	return &KafkaSink{client: client, topic: topic}, nil
}

// Append implements Store by producing the event synchronously. The caller
// (the async publisher worker) already decouples this from request latency.
func (s *KafkaSink) Append(ctx context.Context, event Event) error {
	payload := kafkaPayload{
		ID:        event.ID,
		Timestamp: event.Timestamp.Format(time.RFC3339Nano),
		Subject:   event.Subject,
		Action:    string(event.Action),
		Recipient: event.Recipient,
		Level:     event.Level.String(),
		Scope:     event.Scope.String(),
		Granted:   event.Granted,
		Granter:   event.Granter.String(),
		RequestID: event.RequestID,
	}
	if !event.PreviousExpiresAt.IsZero() {
		payload.PreviousExpiresAt = event.PreviousExpiresAt.Format(time.RFC3339Nano)
	}
	if !event.ExpiresAt.IsZero() {
		payload.ExpiresAt = event.ExpiresAt.Format(time.RFC3339Nano)
	}

	value, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal audit payload: %w", err)
	}

	record := &kgo.Record{
		Topic: s.topic,
		Key:   []byte(event.Subject),
		Value: value,
	}
	if err := s.client.ProduceSync(ctx, record).FirstErr(); err != nil {
		return fmt.Errorf("produce audit event: %w", err)
	}
	return nil
}

// Close flushes pending records and releases the client.
func (s *KafkaSink) Close() {
	s.client.Close()
}
