package workflow

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/garyjia/approval-engine/internal/domain/entity"
)

func newTransitionEngine() *TransitionEngine {
	return NewTransitionEngine(NewApplicabilityResolver(NewConditionEvaluator(nil)))
}

func TestTransitionEngine_ApprovalStyle(t *testing.T) {
	engine := newTransitionEngine()
	first := approvalStep("first", 1, entity.SubmitterAssignee{})
	second := approvalStep("second", 2, entity.RoleAssignee{Role: "MANAGER"})
	def := approvalChain(first, second)

	dest := engine.Next(def, first, "approve", OutcomeApproved, nil)
	require.False(t, dest.IsEnd())
	assert.Equal(t, "second", dest.Step.Name)

	dest = engine.Next(def, second, "approve", OutcomeApproved, nil)
	assert.True(t, dest.IsEnd())
	assert.Equal(t, OutcomeApproved, dest.Outcome)

	dest = engine.Next(def, first, "approve", OutcomeRejected, nil)
	assert.True(t, dest.IsEnd())
	assert.Equal(t, OutcomeRejected, dest.Outcome)

	dest = engine.Next(def, first, "approve", OutcomePending, nil)
	assert.Equal(t, first, dest.Step)
}

func TestTransitionEngine_GuardedTransitions(t *testing.T) {
	engine := newTransitionEngine()

	review := &entity.Step{
		Name:  "review",
		Order: 1,
		Actions: []*entity.Action{
			{Name: "submit", Type: entity.ActionTypePrimary},
			{Name: "withdraw", Type: entity.ActionTypeSecondary},
		},
		Transitions: []*entity.Transition{
			{ActionName: "submit", ToStepName: sptr("director"), Conditions: []entity.Condition{
				entity.FormFieldCondition{SourceFieldName: "total", Operator: entity.OperatorGreaterThan, ComparisonValue: 10000, ValueType: entity.ValueTypeNumber},
			}},
			{ActionName: "submit", ToStepName: sptr("manager")},
			{ActionName: "withdraw"},
		},
	}
	manager := approvalStep("manager", 2, entity.RoleAssignee{Role: "MANAGER"})
	director := approvalStep("director", 3, entity.RoleAssignee{Role: "DIRECTOR"})
	def := approvalChain(review, manager, director)

	dest := engine.Next(def, review, "submit", OutcomeApproved, map[string]any{"total": 25000})
	require.False(t, dest.IsEnd())
	assert.Equal(t, "director", dest.Step.Name)

	dest = engine.Next(def, review, "submit", OutcomeApproved, map[string]any{"total": 100})
	require.False(t, dest.IsEnd())
	assert.Equal(t, "manager", dest.Step.Name)

	dest = engine.Next(def, review, "withdraw", OutcomeApproved, nil)
	assert.True(t, dest.IsEnd())
	assert.Equal(t, OutcomeApproved, dest.Outcome)

	dest = engine.Next(def, review, "undeclared", OutcomeRejected, nil)
	assert.True(t, dest.IsEnd())
	assert.Equal(t, OutcomeRejected, dest.Outcome)
}
