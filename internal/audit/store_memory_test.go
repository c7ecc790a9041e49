package audit_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"iam-sentinel/internal/audit"
	"iam-sentinel/internal/domain"
)

type MemoryStoreSuite struct {
	suite.Suite
	store *audit.MemoryStore
}

func TestMemoryStoreSuite(t *testing.T) {
	suite.Run(t, new(MemoryStoreSuite))
}

func (s *MemoryStoreSuite) SetupTest() {
	s.store = audit.NewMemoryStore()
}

func record(id, identityID string) domain.AuditRecord {
	return domain.AuditRecord{
		ID:          id,
		IdentityID:  identityID,
		Timestamp:   time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC),
		Decision:    domain.DecisionResult{IdentityID: identityID, Outcome: domain.OutcomeApprove},
		Risk:        domain.RiskEvaluationResult{IdentityID: identityID, RiskScore: 12},
		Explanation: "low risk",
	}
}

func (s *MemoryStoreSuite) TestAppendAndList() {
	ctx := context.Background()
	s.Require().NoError(s.store.Append(ctx, record("r1", "user-1")))
	s.Require().NoError(s.store.Append(ctx, record("r2", "user-2")))
	s.Require().NoError(s.store.Append(ctx, record("r3", "user-1")))

	all, err := s.store.List(ctx)
	s.Require().NoError(err)
	s.Len(all, 3)
	s.Equal("r1", all[0].ID)

	byIdentity, err := s.store.ListByIdentity(ctx, "user-1")
	s.Require().NoError(err)
	s.Len(byIdentity, 2)

	empty, err := s.store.ListByIdentity(ctx, "ghost")
	s.Require().NoError(err)
	s.Empty(empty)
}

func (s *MemoryStoreSuite) TestListReturnsCopy() {
	ctx := context.Background()
	s.Require().NoError(s.store.Append(ctx, record("r1", "user-1")))

	all, _ := s.store.List(ctx)
	all[0].ID = "tampered"

	again, _ := s.store.List(ctx)
	s.Equal("r1", again[0].ID)
}
