package workflow

import (
	"reflect"
	"strings"

	"github.com/spf13/cast"
	"go.uber.org/zap"

	"github.com/garyjia/approval-engine/internal/domain/entity"
)

var knownTriggerTypes = map[string]bool{
	entity.TriggerTypeManual:        true,
	entity.TriggerTypeExpense:       true,
	entity.TriggerTypeDocument:      true,
	entity.TriggerTypeStockMovement: true,
}

// Validate checks the structural rules of a definition and reports every problem at once
func Validate(def *entity.WorkflowDefinition) error {
	v := &ValidationError{}

	if strings.TrimSpace(def.Name) == "" {
		v.Addf("name is required")
	}
	if strings.TrimSpace(def.OrganizationID) == "" {
		v.Addf("organizationId is required")
	}
	if def.TriggerType != "" && !knownTriggerTypes[def.TriggerType] {
		v.Addf("unknown triggerType %q", def.TriggerType)
	}
	if len(def.Steps) == 0 {
		v.Addf("at least one step is required")
	}

	stepNames := make(map[string]bool, len(def.Steps))
	for i, step := range def.Steps {
		if strings.TrimSpace(step.Name) == "" {
			v.Addf("step %d: name is required", i)
		} else if stepNames[step.Name] {
			v.Addf("step %q: duplicate step name", step.Name)
		}
		stepNames[step.Name] = true

		if i > 0 && step.Order <= def.Steps[i-1].Order {
			v.Addf("step %q: order %d must be greater than %d", step.Name, step.Order, def.Steps[i-1].Order)
		}
	}

	if def.InitialStepName != nil && !stepNames[*def.InitialStepName] {
		v.Addf("initialStepName %q does not name a step", *def.InitialStepName)
	}

	for _, step := range def.Steps {
		validateStep(v, step, stepNames)
	}

	if len(v.Problems) == 0 {
		for _, cycle := range autoAdvanceCycles(def) {
			v.Addf("steps %s advance automatically in a cycle", strings.Join(cycle, " -> "))
		}
	}

	return v.ErrOrNil()
}

// autoAdvanceCycles finds loops of unconditional steps nobody is assigned to.
// An instance entering one would advance around it forever.
func autoAdvanceCycles(def *entity.WorkflowDefinition) [][]string {
	transitions := NewTransitionEngine(NewApplicabilityResolver(NewConditionEvaluator(zap.NewNop())))
	looping := func(s *entity.Step) bool {
		return s != nil && s.AutoAdvances() && len(s.Conditions) == 0
	}

	reported := make(map[string]bool)
	var cycles [][]string
	for _, start := range def.OrderedSteps() {
		var path []string
		onPath := make(map[string]int)
		for step := start; looping(step) && !reported[step.Name]; {
			if at, ok := onPath[step.Name]; ok {
				cycle := append(append([]string{}, path[at:]...), step.Name)
				for _, name := range path[at:] {
					reported[name] = true
				}
				cycles = append(cycles, cycle)
				break
			}
			onPath[step.Name] = len(path)
			path = append(path, step.Name)
			step = transitions.Next(def, step, step.AutoAdvanceAction(), OutcomeApproved, map[string]any{}).Step
		}
	}
	return cycles
}

func validateStep(v *ValidationError, step *entity.Step, stepNames map[string]bool) {
	if step.ApprovalMode != "" && !step.ApprovalMode.IsValid() {
		v.Addf("step %q: unknown approvalMode %q", step.Name, step.ApprovalMode)
	}
	validateAssignee(v, step.Name, step.Assignee)

	for i, c := range step.Conditions {
		validateCondition(v, step.Name, i, c)
	}

	fieldNames := make(map[string]bool, len(step.FormFields))
	for _, f := range step.FormFields {
		if strings.TrimSpace(f.Name) == "" {
			v.Addf("step %q: form field name is required", step.Name)
			continue
		}
		if fieldNames[f.Name] {
			v.Addf("step %q: duplicate form field %q", step.Name, f.Name)
		}
		fieldNames[f.Name] = true
	}

	actionNames := make(map[string]bool, len(step.Actions))
	for _, a := range step.Actions {
		if strings.TrimSpace(a.Name) == "" {
			v.Addf("step %q: action name is required", step.Name)
			continue
		}
		if actionNames[a.Name] {
			v.Addf("step %q: duplicate action name %q", step.Name, a.Name)
		}
		actionNames[a.Name] = true

		if a.Type != "" && !a.Type.IsValid() {
			v.Addf("step %q action %q: unknown actionType %q", step.Name, a.Name, a.Type)
		}
		if a.ApprovalMode != nil && !a.ApprovalMode.IsValid() {
			v.Addf("step %q action %q: unknown approvalMode %q", step.Name, a.Name, *a.ApprovalMode)
		}
		validateAssignee(v, step.Name, a.Assignee)
	}

	for _, t := range step.Transitions {
		if !actionNames[t.ActionName] {
			v.Addf("step %q: transition references undeclared action %q", step.Name, t.ActionName)
		}
		if t.ToStepName != nil && !stepNames[*t.ToStepName] {
			v.Addf("step %q: transition targets undeclared step %q", step.Name, *t.ToStepName)
		}
		for i, c := range t.Conditions {
			validateCondition(v, step.Name, i, c)
		}
	}
}

func validateAssignee(v *ValidationError, stepName string, a entity.AssigneeLogic) {
	switch logic := a.(type) {
	case entity.RoleAssignee:
		if strings.TrimSpace(logic.Role) == "" {
			v.Addf("step %q: SPECIFIC_ROLE assignee requires a role", stepName)
		}
	case entity.MemberAssignee:
		if strings.TrimSpace(logic.MemberID) == "" {
			v.Addf("step %q: SPECIFIC_MEMBER assignee requires a memberId", stepName)
		}
	}
}

func validateCondition(v *ValidationError, stepName string, idx int, c entity.Condition) {
	switch cond := c.(type) {
	case entity.AmountRangeCondition:
		if cond.MinAmount == nil && cond.MaxAmount == nil {
			v.Addf("step %q condition %d: amount range needs a bound", stepName, idx)
		}
		if cond.MinAmount != nil && cond.MaxAmount != nil && *cond.MinAmount > *cond.MaxAmount {
			v.Addf("step %q condition %d: minAmount %v exceeds maxAmount %v", stepName, idx, *cond.MinAmount, *cond.MaxAmount)
		}
	case entity.LocationCondition:
		if cond.LocationID == "" {
			v.Addf("step %q condition %d: locationId is required", stepName, idx)
		}
	case entity.ExpenseCategoryCondition:
		if cond.ExpenseCategoryID == "" {
			v.Addf("step %q condition %d: expenseCategoryId is required", stepName, idx)
		}
	case entity.FormFieldCondition:
		if cond.SourceFieldName == "" {
			v.Addf("step %q condition %d: sourceFieldName is required", stepName, idx)
		}
		if !cond.Operator.IsValid() {
			v.Addf("step %q condition %d: unknown operator %q", stepName, idx, cond.Operator)
		}
		if !cond.ValueType.IsValid() {
			v.Addf("step %q condition %d: unknown valueType %q", stepName, idx, cond.ValueType)
		}
		if cond.ValueType == entity.ValueTypeNumber {
			if _, err := cast.ToFloat64E(cond.ComparisonValue); err != nil {
				v.Addf("step %q condition %d: comparisonValue is not a number", stepName, idx)
			}
		}
		if cond.ValueType == entity.ValueTypeBoolean {
			if _, err := cast.ToBoolE(cond.ComparisonValue); err != nil {
				v.Addf("step %q condition %d: comparisonValue is not a boolean", stepName, idx)
			}
		}
	case entity.UnknownCondition:
		v.Addf("step %q condition %d: unknown condition type %q", stepName, idx, cond.RawType)
	case nil:
		v.Addf("step %q condition %d: condition is empty", stepName, idx)
	}
}

// Lint reports non-fatal definition smells: overlapping transition guards and unreachable steps
func Lint(def *entity.WorkflowDefinition) []error {
	var issues []error

	for _, step := range def.OrderedSteps() {
		seen := make(map[string]bool)
		for _, t := range step.Transitions {
			if seen[t.ActionName] {
				continue
			}
			seen[t.ActionName] = true
			if targets := overlapping(step.TransitionsFor(t.ActionName)); len(targets) > 0 {
				issues = append(issues, &AmbiguousTransitionError{
					StepName: step.Name, ActionName: t.ActionName, Targets: targets,
				})
			}
		}
	}

	reachable := reachableSteps(def)
	for _, step := range def.OrderedSteps() {
		if !reachable[step.Name] {
			issues = append(issues, &UnreachableStepError{StepName: step.Name})
		}
	}

	return issues
}

// overlapping returns the targets of transitions that shadow each other: a guard-less
// transition followed by others, or two transitions with identical guards.
func overlapping(transitions []*entity.Transition) []string {
	if len(transitions) < 2 {
		return nil
	}
	for i, a := range transitions {
		for _, b := range transitions[i+1:] {
			if len(a.Conditions) == 0 || reflect.DeepEqual(entity.EncodeConditions(a.Conditions), entity.EncodeConditions(b.Conditions)) {
				return []string{targetName(a), targetName(b)}
			}
		}
	}
	return nil
}

func targetName(t *entity.Transition) string {
	if t.ToStepName == nil {
		return "<end>"
	}
	return *t.ToStepName
}

// reachableSteps walks every route an instance could take from submission.
// Conditional steps may be skipped, so every later step is reachable past them.
func reachableSteps(def *entity.WorkflowDefinition) map[string]bool {
	ordered := def.OrderedSteps()
	reachable := make(map[string]bool, len(ordered))
	start, ok := def.StartOrder()
	if !ok {
		return reachable
	}

	var queue []*entity.Step
	enter := func(order int) {
		for _, s := range ordered {
			if s.Order < order {
				continue
			}
			if !reachable[s.Name] {
				reachable[s.Name] = true
				queue = append(queue, s)
			}
			if len(s.Conditions) == 0 {
				return
			}
		}
	}

	enter(start)
	for len(queue) > 0 {
		step := queue[0]
		queue = queue[1:]

		if len(step.Transitions) == 0 {
			enter(step.Order + 1)
			continue
		}
		for _, t := range step.Transitions {
			if t.ToStepName == nil {
				continue
			}
			if target := def.StepByName(*t.ToStepName); target != nil {
				enter(target.Order)
			}
		}
	}

	return reachable
}
