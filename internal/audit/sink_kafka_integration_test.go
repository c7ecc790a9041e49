//go:build integration

package audit_test

import (
	"context"
	"encoding/json"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"iam-sentinel/internal/audit"
	"iam-sentinel/internal/domain"
	"iam-sentinel/pkg/testutil/containers"
)

const testTopic = "sentinel.audit.records.test"

type KafkaSinkSuite struct {
	suite.Suite
	redpanda *containers.RedpandaContainer
	sink     *audit.KafkaSink
}

func TestKafkaSinkSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(KafkaSinkSuite))
}

func (s *KafkaSinkSuite) SetupSuite() {
	mgr := containers.GetManager()
	s.redpanda = mgr.GetRedpanda(s.T())

	s.Require().NoError(s.redpanda.CreateTopic(context.Background(), testTopic, 1, 1))

	sink, err := audit.NewKafkaSink(audit.KafkaSinkConfig{
		Brokers: s.redpanda.Brokers,
		Topic:   testTopic,
	}, slog.Default())
	s.Require().NoError(err)
	s.sink = sink
}

func (s *KafkaSinkSuite) TearDownSuite() {
	if s.sink != nil {
		s.Require().NoError(s.sink.Close())
	}
}

func (s *KafkaSinkSuite) TestPublishDeliversRecord() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	in := record("r1", "user-1")
	s.Require().NoError(s.sink.Publish(ctx, in))

	consumer, err := s.redpanda.NewConsumer("sink-suite", testTopic)
	s.Require().NoError(err)
	defer consumer.Close()

	fetches := consumer.PollFetches(ctx)
	s.Require().NoError(fetches.Err())

	records := fetches.Records()
	s.Require().Len(records, 1)
	s.Equal("user-1", string(records[0].Key))

	var out domain.AuditRecord
	s.Require().NoError(json.Unmarshal(records[0].Value, &out))
	s.Equal(in.ID, out.ID)
	s.Equal(domain.OutcomeApprove, out.Decision.Outcome)
}

func (s *KafkaSinkSuite) TestConfigValidation() {
	_, err := audit.NewKafkaSink(audit.KafkaSinkConfig{Topic: testTopic}, slog.Default())
	s.Error(err)

	_, err = audit.NewKafkaSink(audit.KafkaSinkConfig{Brokers: s.redpanda.Brokers}, slog.Default())
	s.Error(err)
}
