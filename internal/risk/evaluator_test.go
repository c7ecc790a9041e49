package risk

import (
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"iam-sentinel/internal/domain"
	"iam-sentinel/internal/registry"
)

type EvaluatorSuite struct {
	suite.Suite
	now       time.Time
	evaluator *Evaluator
}

func TestEvaluatorSuite(t *testing.T) {
	suite.Run(t, new(EvaluatorSuite))
}

func (s *EvaluatorSuite) SetupTest() {
	s.now = time.Date(2026, 3, 15, 10, 0, 0, 0, time.UTC)
	s.evaluator = New(WithClock(func() time.Time { return s.now }))
}

func snapshotWith(identities []domain.Identity, roles []domain.Role) registry.Snapshot {
	snap := registry.Snapshot{
		Identities: make(map[string]domain.Identity),
		Roles:      make(map[string]domain.Role),
	}
	for _, i := range identities {
		snap.Identities[i.ID] = i
	}
	for _, r := range roles {
		snap.Roles[r.ID] = r
	}
	return snap
}

func intern(id string, roles ...string) domain.Identity {
	return domain.Identity{
		ID:   id,
		Name: id,
		Attributes: domain.Attributes{
			Department:     "Engineering",
			Seniority:      domain.SeniorityIntern,
			EmploymentType: domain.EmploymentIntern,
		},
		Roles: roles,
	}
}

func (s *EvaluatorSuite) TestZeroRolesScoresZero() {
	subject := intern("intern-1")
	result := s.evaluator.Evaluate(subject, snapshotWith([]domain.Identity{subject}, nil))

	s.Equal(0, result.RiskScore)
	s.Zero(result.Factors.RoleSensitivityScore)
	s.Zero(result.Factors.SeniorityAlignmentScore)
	s.Zero(result.Factors.PeerAnomalyScore)
	s.Zero(result.Factors.HistoricalChangeScore)
}

func (s *EvaluatorSuite) TestDanglingRoleIDsAreSkipped() {
	subject := intern("intern-1", "no-such-role")
	result := s.evaluator.Evaluate(subject, snapshotWith([]domain.Identity{subject}, nil))

	// Unresolved ids contribute nothing to sensitivity or alignment.
	s.Zero(result.Factors.RoleSensitivityScore)
	s.Zero(result.Factors.SeniorityAlignmentScore)
}

func (s *EvaluatorSuite) TestRoleSensitivityScore() {
	roles := []domain.Role{
		{ID: "low", Sensitivity: domain.SensitivityLow},
		{ID: "crit", Sensitivity: domain.SensitivityCritical},
	}

	s.Run("sums weighted roles", func() {
		subject := domain.Identity{
			ID:         "exec-1",
			Attributes: domain.Attributes{Department: "Ops", Seniority: domain.SeniorityExecutive},
			Roles:      []string{"low", "crit"},
		}
		result := s.evaluator.Evaluate(subject, snapshotWith([]domain.Identity{subject}, roles))
		// 0.1*25 + 1.0*25 = 27.5
		s.InDelta(27.5, result.Factors.RoleSensitivityScore, 0.001)
	})

	s.Run("caps at 100", func() {
		many := make([]string, 5)
		critRoles := make([]domain.Role, 5)
		for i := range many {
			id := string(rune('a' + i))
			many[i] = id
			critRoles[i] = domain.Role{ID: id, Sensitivity: domain.SensitivityCritical}
		}
		subject := domain.Identity{
			ID:         "exec-1",
			Attributes: domain.Attributes{Department: "Ops", Seniority: domain.SeniorityExecutive},
			Roles:      many,
		}
		result := s.evaluator.Evaluate(subject, snapshotWith([]domain.Identity{subject}, critRoles))
		s.InDelta(100.0, result.Factors.RoleSensitivityScore, 0.001)
	})
}

func (s *EvaluatorSuite) TestSeniorityAlignment() {
	critical := domain.Role{ID: "prod-db-admin", Sensitivity: domain.SensitivityCritical}

	s.Run("intern holding a critical role carries maximum misalignment", func() {
		subject := intern("intern-1", "prod-db-admin")
		result := s.evaluator.Evaluate(subject, snapshotWith([]domain.Identity{subject}, []domain.Role{critical}))
		// avg level 3 -> expected index 4, intern index 0 -> 4 * 20 = 80
		s.InDelta(80.0, result.Factors.SeniorityAlignmentScore, 0.001)
		// composite: 25*0.4 + 80*0.3 = 34
		s.Equal(34, result.RiskScore)
	})

	s.Run("executive holding the same role is aligned", func() {
		subject := domain.Identity{
			ID:         "exec-1",
			Attributes: domain.Attributes{Department: "Ops", Seniority: domain.SeniorityExecutive},
			Roles:      []string{"prod-db-admin"},
		}
		result := s.evaluator.Evaluate(subject, snapshotWith([]domain.Identity{subject}, []domain.Role{critical}))
		s.Zero(result.Factors.SeniorityAlignmentScore)
	})
}

func (s *EvaluatorSuite) TestPeerAnomaly() {
	roles := []domain.Role{
		{ID: "common", Sensitivity: domain.SensitivityLow},
		{ID: "rare-1", Sensitivity: domain.SensitivityLow},
		{ID: "rare-2", Sensitivity: domain.SensitivityLow},
	}

	s.Run("zero peers means zero score", func() {
		subject := intern("intern-1", "rare-1")
		result := s.evaluator.Evaluate(subject, snapshotWith([]domain.Identity{subject}, roles))
		s.Zero(result.Factors.PeerAnomalyScore)
	})

	s.Run("peers in other departments do not count", func() {
		subject := intern("intern-1", "rare-1")
		other := domain.Identity{
			ID:         "fin-1",
			Attributes: domain.Attributes{Department: "Finance", Seniority: domain.SeniorityMid},
			Roles:      []string{"rare-1"},
		}
		result := s.evaluator.Evaluate(subject, snapshotWith([]domain.Identity{subject, other}, roles))
		s.Zero(result.Factors.PeerAnomalyScore)
	})

	s.Run("scores 10 per rare role", func() {
		subject := intern("intern-1", "common", "rare-1", "rare-2")
		peer := intern("intern-2", "common")
		result := s.evaluator.Evaluate(subject, snapshotWith([]domain.Identity{subject, peer}, roles))
		s.InDelta(20.0, result.Factors.PeerAnomalyScore, 0.001)
	})

	s.Run("caps at 40", func() {
		held := []string{"r1", "r2", "r3", "r4", "r5"}
		subject := intern("intern-1", held...)
		peer := intern("intern-2", "common")
		result := s.evaluator.Evaluate(subject, snapshotWith([]domain.Identity{subject, peer}, roles))
		s.InDelta(40.0, result.Factors.PeerAnomalyScore, 0.001)
	})
}

func (s *EvaluatorSuite) TestHistoricalChange() {
	s.Run("single history entry scores zero", func() {
		subject := intern("intern-1")
		subject.History = []domain.StateSnapshot{{Timestamp: s.now.Add(-time.Hour)}}
		result := s.evaluator.Evaluate(subject, snapshotWith([]domain.Identity{subject}, nil))
		s.Zero(result.Factors.HistoricalChangeScore)
	})

	s.Run("counts entries within seven days", func() {
		subject := intern("intern-1")
		subject.History = []domain.StateSnapshot{
			{Timestamp: s.now.Add(-time.Hour)},
			{Timestamp: s.now.Add(-48 * time.Hour)},
			{Timestamp: s.now.Add(-30 * 24 * time.Hour)}, // outside the window
		}
		result := s.evaluator.Evaluate(subject, snapshotWith([]domain.Identity{subject}, nil))
		s.InDelta(10.0, result.Factors.HistoricalChangeScore, 0.001)
	})

	s.Run("caps at 30", func() {
		subject := intern("intern-1")
		for i := 0; i < 10; i++ {
			subject.History = append(subject.History, domain.StateSnapshot{
				Timestamp: s.now.Add(-time.Duration(i) * time.Hour),
			})
		}
		result := s.evaluator.Evaluate(subject, snapshotWith([]domain.Identity{subject}, nil))
		s.InDelta(30.0, result.Factors.HistoricalChangeScore, 0.001)
	})
}

func (s *EvaluatorSuite) TestCompositeBounds() {
	// Worst case everything: composite still lands in [0,100] as an integer.
	roles := make([]domain.Role, 6)
	held := make([]string, 6)
	for i := range roles {
		id := string(rune('a' + i))
		roles[i] = domain.Role{ID: id, Sensitivity: domain.SensitivityCritical}
		held[i] = id
	}
	subject := intern("intern-1", held...)
	for i := 0; i < 10; i++ {
		subject.History = append(subject.History, domain.StateSnapshot{Timestamp: s.now})
	}
	peer := intern("intern-2", "unrelated")

	result := s.evaluator.Evaluate(subject, snapshotWith([]domain.Identity{subject, peer}, roles))
	s.GreaterOrEqual(result.RiskScore, 0)
	s.LessOrEqual(result.RiskScore, 100)
	// 100*0.4 + 80*0.3 + 40*0.2 + 30*0.1 = 75
	s.Equal(75, result.RiskScore)
}

func (s *EvaluatorSuite) TestContextSummaryIsDeterministic() {
	subject := intern("intern-1", "prod-db-admin")
	snap := snapshotWith([]domain.Identity{subject}, []domain.Role{
		{ID: "prod-db-admin", Sensitivity: domain.SensitivityCritical},
	})

	first := s.evaluator.Evaluate(subject, snap)
	second := s.evaluator.Evaluate(subject, snap)
	s.Equal(first.ContextSummary, second.ContextSummary)
	s.Equal("roleSensitivity=25.0, seniorityAlignment=80.0, peerAnomaly=0.0, historicalChange=0.0", first.ContextSummary)
}
