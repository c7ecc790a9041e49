package decision_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"iam-sentinel/internal/decision"
	"iam-sentinel/internal/domain"
	"iam-sentinel/internal/explain/mocks"
)

type ArbiterSuite struct {
	suite.Suite
	ctrl      *gomock.Controller
	generator *mocks.MockGenerator
}

func TestArbiterSuite(t *testing.T) {
	suite.Run(t, new(ArbiterSuite))
}

func (s *ArbiterSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.generator = mocks.NewMockGenerator(s.ctrl)
}

func (s *ArbiterSuite) TearDownTest() {
	s.ctrl.Finish()
}

func identity(id string) domain.Identity {
	return domain.Identity{
		ID:   id,
		Name: "Test User",
		Attributes: domain.Attributes{
			Department:     "engineering",
			Seniority:      domain.SeniorityMid,
			EmploymentType: domain.EmploymentFullTime,
		},
	}
}

func riskScore(score int) domain.RiskEvaluationResult {
	return domain.RiskEvaluationResult{IdentityID: "id-1", RiskScore: score}
}

func criticalViolation() domain.PolicyViolation {
	return domain.PolicyViolation{
		ID:       "pol-sod-id-1-a-b",
		Severity: domain.SeverityCritical,
	}
}

func (s *ArbiterSuite) TestHeuristic() {
	arbiter := decision.New()
	ctx := context.Background()
	id := identity("id-1")

	s.Run("very high risk auto remediates", func() {
		result := arbiter.Decide(ctx, id, riskScore(90), nil)
		s.Equal(domain.OutcomeAutoRemediate, result.Outcome)
		s.Equal(0.95, result.Confidence)
		s.False(result.UsedLLM)
		s.Equal("id-1", result.IdentityID)
	})

	s.Run("critical violation auto remediates regardless of score", func() {
		result := arbiter.Decide(ctx, id, riskScore(10), []domain.PolicyViolation{criticalViolation()})
		s.Equal(domain.OutcomeAutoRemediate, result.Outcome)
	})

	s.Run("elevated risk recommends revocation", func() {
		result := arbiter.Decide(ctx, id, riskScore(72), nil)
		s.Equal(domain.OutcomeRecommendRevocation, result.Outcome)
		s.Equal(0.90, result.Confidence)
	})

	s.Run("any violation recommends revocation at low risk", func() {
		result := arbiter.Decide(ctx, id, riskScore(5), []domain.PolicyViolation{
			{ID: "v1", Severity: domain.SeverityHigh},
		})
		s.Equal(domain.OutcomeRecommendRevocation, result.Outcome)
	})

	s.Run("moderate risk flags for review", func() {
		result := arbiter.Decide(ctx, id, riskScore(50), nil)
		s.Equal(domain.OutcomeFlagForReview, result.Outcome)
		s.Equal(0.75, result.Confidence)
	})

	s.Run("low risk approves", func() {
		result := arbiter.Decide(ctx, id, riskScore(10), nil)
		s.Equal(domain.OutcomeApprove, result.Outcome)
		s.Equal(0.90, result.Confidence)
		s.NotEmpty(result.Rationale)
	})
}

func (s *ArbiterSuite) TestExternal() {
	ctx := context.Background()
	id := identity("id-1")

	s.Run("valid structured response is used verbatim", func() {
		s.generator.EXPECT().
			Generate(gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, prompt string) (string, error) {
				s.Contains(prompt, "id-1")
				s.Contains(prompt, "IAM decision engine")
				return `Here is my analysis: {"outcome": "FLAG_FOR_REVIEW", "rationale": "unusual role mix", "confidence": 0.82}`, nil
			})

		arbiter := decision.New(decision.WithGenerator(s.generator))
		result := arbiter.Decide(ctx, id, riskScore(55), nil)
		s.Equal(domain.OutcomeFlagForReview, result.Outcome)
		s.Equal("unusual role mix", result.Rationale)
		s.Equal(0.82, result.Confidence)
		s.True(result.UsedLLM)
	})

	s.Run("generator error falls back to heuristic", func() {
		s.generator.EXPECT().
			Generate(gomock.Any(), gomock.Any()).
			Return("", errors.New("service unavailable"))

		arbiter := decision.New(decision.WithGenerator(s.generator))
		result := arbiter.Decide(ctx, id, riskScore(90), nil)
		s.Equal(domain.OutcomeAutoRemediate, result.Outcome)
		s.False(result.UsedLLM)
	})

	s.Run("unparsable text falls back to heuristic", func() {
		s.generator.EXPECT().
			Generate(gomock.Any(), gomock.Any()).
			Return("I think this access looks fine to me.", nil)

		arbiter := decision.New(decision.WithGenerator(s.generator))
		result := arbiter.Decide(ctx, id, riskScore(10), nil)
		s.Equal(domain.OutcomeApprove, result.Outcome)
		s.False(result.UsedLLM)
	})

	s.Run("unknown outcome falls back to heuristic", func() {
		s.generator.EXPECT().
			Generate(gomock.Any(), gomock.Any()).
			Return(`{"outcome": "ESCALATE", "rationale": "x", "confidence": 0.9}`, nil)

		arbiter := decision.New(decision.WithGenerator(s.generator))
		result := arbiter.Decide(ctx, id, riskScore(75), nil)
		s.Equal(domain.OutcomeRecommendRevocation, result.Outcome)
		s.False(result.UsedLLM)
	})

	s.Run("out of range confidence falls back to heuristic", func() {
		s.generator.EXPECT().
			Generate(gomock.Any(), gomock.Any()).
			Return(`{"outcome": "APPROVE", "rationale": "x", "confidence": 1.4}`, nil)

		arbiter := decision.New(decision.WithGenerator(s.generator))
		result := arbiter.Decide(ctx, id, riskScore(10), nil)
		s.Equal(domain.OutcomeApprove, result.Outcome)
		s.False(result.UsedLLM)
	})

	s.Run("external call carries a deadline", func() {
		s.generator.EXPECT().
			Generate(gomock.Any(), gomock.Any()).
			DoAndReturn(func(callCtx context.Context, _ string) (string, error) {
				deadline, ok := callCtx.Deadline()
				s.True(ok)
				s.WithinDuration(time.Now().Add(2*time.Second), deadline, time.Second)
				return `{"outcome": "APPROVE", "rationale": "ok", "confidence": 0.9}`, nil
			})

		arbiter := decision.New(
			decision.WithGenerator(s.generator),
			decision.WithTimeout(2*time.Second),
		)
		result := arbiter.Decide(ctx, id, riskScore(10), nil)
		s.True(result.UsedLLM)
	})
}
