package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"

	"iam-sentinel/internal/domain"
)

// KafkaSink streams audit records to a Kafka topic so downstream consumers
// (SIEM, compliance pipelines) get them without polling the store. Delivery
// is best-effort: a failed publish is logged but never fails the evaluation
// that produced the record.
type KafkaSink struct {
	client *kgo.Client
	topic  string
	logger *slog.Logger
}

// KafkaSinkConfig holds sink configuration.
type KafkaSinkConfig struct {
	Brokers string
	Topic   string
}

// NewKafkaSink creates a sink producing to the configured topic.
func NewKafkaSink(cfg KafkaSinkConfig, logger *slog.Logger) (*KafkaSink, error) {
	if cfg.Brokers == "" {
		return nil, fmt.Errorf("kafka brokers not configured")
	}
	if cfg.Topic == "" {
		return nil, fmt.Errorf("kafka topic not configured")
	}

	client, err := kgo.NewClient(
		kgo.SeedBrokers(strings.Split(cfg.Brokers, ",")...),
		kgo.RequiredAcks(kgo.AllISRAcks()),
		kgo.ProducerLinger(5*time.Millisecond),
		kgo.AllowAutoTopicCreation(),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka client: %w", err)
	}

	return &KafkaSink{
		client: client,
		topic:  cfg.Topic,
		logger: logger,
	}, nil
}

// Publish sends one record, keyed by identity id so per-identity ordering is
// preserved across partitions.
func (s *KafkaSink) Publish(ctx context.Context, record domain.AuditRecord) error {
	payload, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshal audit record: %w", err)
	}

	results := s.client.ProduceSync(ctx, &kgo.Record{
		Topic: s.topic,
		Key:   []byte(record.IdentityID),
		Value: payload,
	})
	if err := results.FirstErr(); err != nil {
		return fmt.Errorf("produce audit record: %w", err)
	}
	return nil
}

// Close flushes buffered records and shuts the client down.
func (s *KafkaSink) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.client.Flush(ctx); err != nil {
		s.logger.Warn("kafka sink closed with unflushed records", "error", err)
	}
	s.client.Close()
	return nil
}
