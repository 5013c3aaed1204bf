package workflow

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/garyjia/approval-engine/internal/domain/entity"
)

func validDefinition() *entity.WorkflowDefinition {
	return &entity.WorkflowDefinition{
		ID:              "def-1",
		OrganizationID:  "org-1",
		Name:            "Purchase approval",
		TriggerType:     entity.TriggerTypeExpense,
		InitialStepName: sptr("submit"),
		Steps: []*entity.Step{
			{
				Name:     "submit",
				Order:    1,
				Assignee: entity.SubmitterAssignee{},
				Actions:  []*entity.Action{{Name: "submit", Type: entity.ActionTypePrimary, Order: 1}},
				Transitions: []*entity.Transition{
					{ActionName: "submit", ToStepName: sptr("manager")},
				},
			},
			{
				Name:     "manager",
				Order:    2,
				Assignee: entity.RoleAssignee{Role: "MANAGER"},
				Actions: []*entity.Action{
					{Name: "approve", Type: entity.ActionTypePrimary, Order: 1},
					{Name: "reject", Type: entity.ActionTypeSecondary, Order: 2},
				},
				Transitions: []*entity.Transition{
					{ActionName: "approve"},
					{ActionName: "reject"},
				},
			},
		},
	}
}

func TestValidate_Valid(t *testing.T) {
	require.NoError(t, Validate(validDefinition()))
}

func TestValidate_CollectsEveryProblem(t *testing.T) {
	def := validDefinition()
	def.Name = ""
	def.InitialStepName = sptr("nowhere")
	def.Steps[1].Order = 1
	def.Steps[1].Actions = append(def.Steps[1].Actions, &entity.Action{Name: "approve"})
	def.Steps[1].Transitions = append(def.Steps[1].Transitions,
		&entity.Transition{ActionName: "escalate"},
		&entity.Transition{ActionName: "approve", ToStepName: sptr("ghost")},
	)
	def.Steps[1].Conditions = []entity.Condition{
		entity.AmountRangeCondition{MinAmount: fptr(500), MaxAmount: fptr(100)},
		entity.UnknownCondition{RawType: "WEATHER"},
		entity.FormFieldCondition{SourceFieldName: "qty", Operator: "ROUGHLY", ValueType: entity.ValueTypeNumber, ComparisonValue: "many"},
	}

	err := Validate(def)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrValidation))

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)

	expectedFragments := []string{
		"name is required",
		"initialStepName \"nowhere\"",
		"order 1 must be greater than 1",
		"duplicate action name \"approve\"",
		"undeclared action \"escalate\"",
		"undeclared step \"ghost\"",
		"minAmount 500 exceeds maxAmount 100",
		"unknown condition type \"WEATHER\"",
		"unknown operator \"ROUGHLY\"",
		"comparisonValue is not a number",
	}
	for _, fragment := range expectedFragments {
		found := false
		for _, p := range verr.Problems {
			if strings.Contains(p, fragment) {
				found = true
				break
			}
		}
		assert.Truef(t, found, "expected a problem containing %q in %v", fragment, verr.Problems)
	}
}

func TestValidate_DuplicateStepNames(t *testing.T) {
	def := validDefinition()
	def.Steps[1].Name = "submit"

	err := Validate(def)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate step name")
}

func TestValidate_Empty(t *testing.T) {
	err := Validate(&entity.WorkflowDefinition{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "at least one step is required")
	assert.Contains(t, err.Error(), "organizationId is required")
}

func TestValidate_AutoAdvanceCycle(t *testing.T) {
	def := validDefinition()
	def.Steps[0].Assignee = entity.UnassignedAssignee{}
	def.Steps[1].Assignee = entity.UnassignedAssignee{}
	def.Steps[1].Transitions[0].ToStepName = sptr("submit")

	err := Validate(def)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrValidation))

	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, []string{"steps submit -> manager -> submit advance automatically in a cycle"}, verr.Problems)

	t.Run("assigned step breaks the cycle", func(t *testing.T) {
		def.Steps[1].Actions[0].Assignee = entity.RoleAssignee{Role: "MANAGER"}
		assert.NoError(t, Validate(def))
	})

	t.Run("conditional step may be skipped", func(t *testing.T) {
		def.Steps[1].Actions[0].Assignee = nil
		def.Steps[1].Conditions = []entity.Condition{entity.AmountRangeCondition{MinAmount: fptr(1000)}}
		assert.NoError(t, Validate(def))
	})
}

func TestLint_AmbiguousTransitions(t *testing.T) {
	def := validDefinition()
	def.Steps[0].Transitions = append(def.Steps[0].Transitions, &entity.Transition{
		ActionName: "submit", ToStepName: sptr("manager"),
		Conditions: []entity.Condition{entity.AmountRangeCondition{MinAmount: fptr(1)}},
	})

	issues := Lint(def)
	require.Len(t, issues, 1)
	assert.True(t, errors.Is(issues[0], ErrAmbiguousTransition))

	var ambiguous *AmbiguousTransitionError
	require.ErrorAs(t, issues[0], &ambiguous)
	assert.Equal(t, "submit", ambiguous.StepName)
	assert.Equal(t, "submit", ambiguous.ActionName)
}

func TestLint_UnreachableStep(t *testing.T) {
	def := validDefinition()
	def.Steps = append(def.Steps, &entity.Step{
		Name: "orphan", Order: 3, Assignee: entity.SubmitterAssignee{},
		Actions:     []*entity.Action{{Name: "ok"}},
		Transitions: []*entity.Transition{{ActionName: "ok"}},
	})

	issues := Lint(def)
	require.Len(t, issues, 1)
	assert.ErrorIs(t, issues[0], ErrUnreachableStep)
	assert.Contains(t, issues[0].Error(), "orphan")
}

func TestLint_ApprovalChainIsClean(t *testing.T) {
	def := approvalChain(
		approvalStep("small", 1, entity.SubmitterAssignee{}, entity.AmountRangeCondition{MaxAmount: fptr(100)}),
		approvalStep("large", 2, entity.RoleAssignee{Role: "CFO"}),
	)
	assert.Empty(t, Lint(def))
}
