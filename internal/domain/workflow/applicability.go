package workflow

import (
	"github.com/garyjia/approval-engine/internal/domain/entity"
)

// ApplicabilityResolver decides which steps of a definition apply to a request
type ApplicabilityResolver struct {
	evaluator *ConditionEvaluator
}

// NewApplicabilityResolver creates a resolver on top of a condition evaluator
func NewApplicabilityResolver(evaluator *ConditionEvaluator) *ApplicabilityResolver {
	return &ApplicabilityResolver{evaluator: evaluator}
}

// Applies returns true when the step's conditions hold for the request.
// No conditions means the step always applies.
func (r *ApplicabilityResolver) Applies(step *entity.Step, rc entity.RequestContext) bool {
	return r.MatchAll(step.Conditions, rc, step.AllConditionsMustMatch)
}

// MatchAll combines conditions with AND (all=true) or OR (all=false)
func (r *ApplicabilityResolver) MatchAll(conditions []entity.Condition, rc entity.RequestContext, all bool) bool {
	if len(conditions) == 0 {
		return true
	}
	for _, c := range conditions {
		matched := r.evaluator.Evaluate(c, rc)
		if all && !matched {
			return false
		}
		if !all && matched {
			return true
		}
	}
	return all
}

// FirstApplicable scans steps in ascending order, starting at minOrder inclusive,
// and returns the first one that applies. Nil when none does.
func (r *ApplicabilityResolver) FirstApplicable(def *entity.WorkflowDefinition, rc entity.RequestContext, minOrder int) *entity.Step {
	for _, step := range def.OrderedSteps() {
		if step.Order < minOrder {
			continue
		}
		if r.Applies(step, rc) {
			return step
		}
	}
	return nil
}

// FirstForSubmission resolves the entry step of a new instance
func (r *ApplicabilityResolver) FirstForSubmission(def *entity.WorkflowDefinition, rc entity.RequestContext) (*entity.Step, error) {
	start, ok := def.StartOrder()
	if !ok {
		return nil, &NoApplicableStepError{DefinitionID: def.ID}
	}
	step := r.FirstApplicable(def, rc, start)
	if step == nil {
		return nil, &NoApplicableStepError{DefinitionID: def.ID}
	}
	return step, nil
}
