package workflow

import (
	"github.com/garyjia/approval-engine/internal/domain/entity"
)

// Destination is where an instance goes after a step resolves.
// A nil Step ends the instance with Outcome.
type Destination struct {
	Step    *entity.Step
	Outcome Outcome
}

// IsEnd reports whether the destination terminates the instance
func (d Destination) IsEnd() bool {
	return d.Step == nil
}

// End builds a terminating destination
func End(outcome Outcome) Destination {
	return Destination{Outcome: outcome}
}

// TransitionEngine selects the destination of a resolved step
type TransitionEngine struct {
	resolver *ApplicabilityResolver
}

// NewTransitionEngine creates a transition engine
func NewTransitionEngine(resolver *ApplicabilityResolver) *TransitionEngine {
	return &TransitionEngine{resolver: resolver}
}

// Next picks the destination for actionName resolved with outcome on step.
// Guards are evaluated against stepData; the first matching transition wins.
func (t *TransitionEngine) Next(def *entity.WorkflowDefinition, step *entity.Step, actionName string, outcome Outcome, stepData map[string]any) Destination {
	if outcome == OutcomePending {
		return Destination{Step: step, Outcome: outcome}
	}

	if len(step.Transitions) == 0 {
		if outcome == OutcomeRejected {
			return End(OutcomeRejected)
		}
		if next := NextByOrder(def, step.Order); next != nil {
			return Destination{Step: next, Outcome: outcome}
		}
		return End(OutcomeApproved)
	}

	data := entity.RequestContext(stepData)
	for _, tr := range step.TransitionsFor(actionName) {
		if !t.resolver.MatchAll(tr.Conditions, data, true) {
			continue
		}
		if tr.ToStepName == nil {
			return End(outcome)
		}
		target := def.StepByName(*tr.ToStepName)
		if target == nil {
			return End(outcome)
		}
		return Destination{Step: target, Outcome: outcome}
	}

	return End(outcome)
}

// NextByOrder returns the step with the smallest order greater than after
func NextByOrder(def *entity.WorkflowDefinition, after int) *entity.Step {
	for _, s := range def.OrderedSteps() {
		if s.Order > after {
			return s
		}
	}
	return nil
}
