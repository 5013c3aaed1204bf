package entity

import (
	"sort"
	"time"
)

// WorkflowDefinition is an ordered set of steps describing how a request is approved
type WorkflowDefinition struct {
	ID              string    `json:"id"`
	OrganizationID  string    `json:"organization_id"`
	DepartmentID    *string   `json:"department_id,omitempty"`
	Name            string    `json:"name"`
	Description     string    `json:"description"`
	TriggerType     string    `json:"trigger_type"`
	InitialStepName *string   `json:"initial_step_name,omitempty"`
	IsActive        bool      `json:"is_active"`
	Version         int       `json:"version"`
	ParentID        *string   `json:"parent_id,omitempty"`
	Steps           []*Step   `json:"steps"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// Step is a single stage of a workflow definition
type Step struct {
	ID                     string        `json:"id"`
	DefinitionID           string        `json:"definition_id"`
	Name                   string        `json:"name"`
	Order                  int           `json:"order"`
	Description            string        `json:"description"`
	AllConditionsMustMatch bool          `json:"all_conditions_must_match"`
	Conditions             []Condition   `json:"-"`
	Actions                []*Action     `json:"actions"`
	Transitions            []*Transition `json:"transitions"`
	FormFields             []FormField   `json:"form_fields"`
	Assignee               AssigneeLogic `json:"-"`
	ApprovalMode           ApprovalMode  `json:"approval_mode"`
}

// Action is a button an assignee can press on a step
type Action struct {
	ID           string        `json:"id"`
	Name         string        `json:"name"`
	Label        string        `json:"label"`
	Type         ActionType    `json:"action_type"`
	Order        int           `json:"order"`
	Assignee     AssigneeLogic `json:"-"`
	ApprovalMode *ApprovalMode `json:"approval_mode,omitempty"`
}

// Transition routes an action on a step to the next step. A nil ToStepName terminates.
type Transition struct {
	ID         string      `json:"id"`
	ActionName string      `json:"action_name"`
	ToStepName *string     `json:"to_step_name,omitempty"`
	Conditions []Condition `json:"-"`
}

// FormField describes data collected from the actor on a step
type FormField struct {
	Name     string   `json:"name" yaml:"name"`
	Label    string   `json:"label" yaml:"label"`
	Type     string   `json:"type" yaml:"type"`
	Required bool     `json:"required" yaml:"required"`
	Options  []string `json:"options,omitempty" yaml:"options,omitempty"`
}

// OrderedSteps returns the steps sorted by ascending order
func (d *WorkflowDefinition) OrderedSteps() []*Step {
	steps := make([]*Step, len(d.Steps))
	copy(steps, d.Steps)
	sort.SliceStable(steps, func(i, j int) bool {
		return steps[i].Order < steps[j].Order
	})
	return steps
}

// StepByID finds a step by its identifier
func (d *WorkflowDefinition) StepByID(id string) *Step {
	for _, s := range d.Steps {
		if s.ID == id {
			return s
		}
	}
	return nil
}

// StepByName finds a step by its name
func (d *WorkflowDefinition) StepByName(name string) *Step {
	for _, s := range d.Steps {
		if s.Name == name {
			return s
		}
	}
	return nil
}

// StartOrder returns the order scanning should begin from when a request is submitted.
// When an initial step is named, scanning starts there; otherwise at the lowest order.
func (d *WorkflowDefinition) StartOrder() (int, bool) {
	if d.InitialStepName != nil {
		if s := d.StepByName(*d.InitialStepName); s != nil {
			return s.Order, true
		}
	}
	ordered := d.OrderedSteps()
	if len(ordered) == 0 {
		return 0, false
	}
	return ordered[0].Order, true
}

// Action finds an action on the step by name
func (s *Step) Action(name string) *Action {
	for _, a := range s.Actions {
		if a.Name == name {
			return a
		}
	}
	return nil
}

// OrderedActions returns the step's actions sorted by ascending order
func (s *Step) OrderedActions() []*Action {
	actions := make([]*Action, len(s.Actions))
	copy(actions, s.Actions)
	sort.SliceStable(actions, func(i, j int) bool {
		return actions[i].Order < actions[j].Order
	})
	return actions
}

// EffectiveAssignee returns the action override when set, else the step assignee.
// A nil action yields the step assignee.
func (s *Step) EffectiveAssignee(a *Action) AssigneeLogic {
	if a != nil && a.Assignee != nil {
		return a.Assignee
	}
	if s.Assignee != nil {
		return s.Assignee
	}
	return UnassignedAssignee{}
}

// EffectiveMode returns the action override, else the step mode, else ANY_ONE
func (s *Step) EffectiveMode(a *Action) ApprovalMode {
	if a != nil && a.ApprovalMode != nil {
		return *a.ApprovalMode
	}
	if s.ApprovalMode != "" {
		return s.ApprovalMode
	}
	return ApprovalModeAnyOne
}

// AggregationMode is the mode the step's decisions are folded with as a whole.
// Any action requiring ALL makes the whole step require ALL.
func (s *Step) AggregationMode() ApprovalMode {
	if len(s.Actions) == 0 {
		return s.EffectiveMode(nil)
	}
	for _, a := range s.Actions {
		if s.EffectiveMode(a) == ApprovalModeAll {
			return ApprovalModeAll
		}
	}
	return ApprovalModeAnyOne
}

// AutoAdvances reports whether no human is expected to act on the step
func (s *Step) AutoAdvances() bool {
	if len(s.Actions) == 0 {
		return s.EffectiveAssignee(nil).Kind() == AssigneeKindUnassigned
	}
	for _, a := range s.Actions {
		if s.EffectiveAssignee(a).Kind() != AssigneeKindUnassigned {
			return false
		}
	}
	return true
}

// AutoAdvanceAction is the action recorded when the step advances on its own
func (s *Step) AutoAdvanceAction() string {
	if actions := s.OrderedActions(); len(actions) > 0 {
		return actions[0].Name
	}
	return ""
}

// RequiredFields lists the names of required form fields
func (s *Step) RequiredFields() []string {
	var names []string
	for _, f := range s.FormFields {
		if f.Required {
			names = append(names, f.Name)
		}
	}
	return names
}

// TransitionsFor returns the transitions declared for an action
func (s *Step) TransitionsFor(actionName string) []*Transition {
	var out []*Transition
	for _, t := range s.Transitions {
		if t.ActionName == actionName {
			out = append(out, t)
		}
	}
	return out
}
