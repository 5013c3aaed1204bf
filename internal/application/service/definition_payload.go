package service

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/garyjia/approval-engine/internal/domain/entity"
	domainwf "github.com/garyjia/approval-engine/internal/domain/workflow"
)

// DefinitionPayload is the template-style authoring shape with explicit transitions
type DefinitionPayload struct {
	Name            string        `json:"name" yaml:"name"`
	Description     string        `json:"description" yaml:"description"`
	OrganizationID  string        `json:"organizationId" yaml:"organizationId"`
	DepartmentID    *string       `json:"departmentId,omitempty" yaml:"departmentId,omitempty"`
	TriggerType     string        `json:"triggerType" yaml:"triggerType"`
	InitialStepName *string       `json:"initialStepName,omitempty" yaml:"initialStepName,omitempty"`
	IsActive        *bool         `json:"isActive,omitempty" yaml:"isActive,omitempty"`
	Steps           []StepPayload `json:"steps" yaml:"steps"`
}

// StepPayload is one step of a DefinitionPayload
type StepPayload struct {
	StepName               string                 `json:"stepName" yaml:"stepName"`
	Order                  int                    `json:"order" yaml:"order"`
	Description            string                 `json:"description,omitempty" yaml:"description,omitempty"`
	AssigneeLogic          AssigneeField          `json:"assigneeLogic" yaml:"assigneeLogic"`
	ApprovalMode           entity.ApprovalMode    `json:"approvalMode,omitempty" yaml:"approvalMode,omitempty"`
	AllConditionsMustMatch *bool                  `json:"allConditionsMustMatch,omitempty" yaml:"allConditionsMustMatch,omitempty"`
	Conditions             []entity.ConditionSpec `json:"conditions,omitempty" yaml:"conditions,omitempty"`
	FormFields             []entity.FormField     `json:"formFields,omitempty" yaml:"formFields,omitempty"`
	Actions                []ActionPayload        `json:"actions" yaml:"actions"`
	Transitions            []TransitionPayload    `json:"transitions,omitempty" yaml:"transitions,omitempty"`
}

// ActionPayload is one action of a StepPayload
type ActionPayload struct {
	Name          string               `json:"name" yaml:"name"`
	Label         string               `json:"label" yaml:"label"`
	ActionType    entity.ActionType    `json:"actionType" yaml:"actionType"`
	Order         int                  `json:"order" yaml:"order"`
	AssigneeLogic *AssigneeField       `json:"assigneeLogic,omitempty" yaml:"assigneeLogic,omitempty"`
	ApprovalMode  *entity.ApprovalMode `json:"approvalMode,omitempty" yaml:"approvalMode,omitempty"`
}

// TransitionPayload routes an action to a step; a missing toStepName terminates
type TransitionPayload struct {
	ActionName string                 `json:"actionName" yaml:"actionName"`
	ToStepName *string                `json:"toStepName,omitempty" yaml:"toStepName,omitempty"`
	Conditions []entity.ConditionSpec `json:"conditions,omitempty" yaml:"conditions,omitempty"`
}

// ApprovalPayload is the role-gated approval shape without transitions
type ApprovalPayload struct {
	Name           string                `json:"name" yaml:"name"`
	Description    string                `json:"description" yaml:"description"`
	OrganizationID string                `json:"organizationId" yaml:"organizationId"`
	TriggerType    string                `json:"triggerType,omitempty" yaml:"triggerType,omitempty"`
	IsActive       *bool                 `json:"isActive,omitempty" yaml:"isActive,omitempty"`
	Steps          []ApprovalStepPayload `json:"steps" yaml:"steps"`
}

// ApprovalStepPayload is one step of an ApprovalPayload
type ApprovalStepPayload struct {
	StepNumber             int                     `json:"stepNumber" yaml:"stepNumber"`
	Name                   string                  `json:"name" yaml:"name"`
	Description            string                  `json:"description,omitempty" yaml:"description,omitempty"`
	AllConditionsMustMatch bool                    `json:"allConditionsMustMatch" yaml:"allConditionsMustMatch"`
	Conditions             []entity.ConditionSpec  `json:"conditions,omitempty" yaml:"conditions,omitempty"`
	Actions                []ApprovalActionPayload `json:"actions" yaml:"actions"`
}

// ApprovalActionPayload names who approves a step and how decisions combine
type ApprovalActionPayload struct {
	Type             entity.AssigneeKind `json:"type" yaml:"type"`
	ApproverRole     *string             `json:"approverRole,omitempty" yaml:"approverRole,omitempty"`
	SpecificMemberID *string             `json:"specificMemberId,omitempty" yaml:"specificMemberId,omitempty"`
	ApprovalMode     entity.ApprovalMode `json:"approvalMode,omitempty" yaml:"approvalMode,omitempty"`
}

// AssigneeField accepts either a bare kind ("SUBMITTER") or an object
// ({"type": "SPECIFIC_ROLE", "role": "MANAGER"})
type AssigneeField struct {
	entity.AssigneeSpec
}

// UnmarshalJSON implements json.Unmarshaler
func (a *AssigneeField) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var kind string
		if err := json.Unmarshal(data, &kind); err != nil {
			return err
		}
		a.AssigneeSpec = entity.AssigneeSpec{Type: entity.AssigneeKind(kind)}
		return nil
	}
	return json.Unmarshal(data, &a.AssigneeSpec)
}

// MarshalJSON implements json.Marshaler
func (a AssigneeField) MarshalJSON() ([]byte, error) {
	return json.Marshal(a.AssigneeSpec)
}

// UnmarshalYAML implements yaml.Unmarshaler
func (a *AssigneeField) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		a.AssigneeSpec = entity.AssigneeSpec{Type: entity.AssigneeKind(node.Value)}
		return nil
	}
	return node.Decode(&a.AssigneeSpec)
}

// MarshalYAML implements yaml.Marshaler
func (a AssigneeField) MarshalYAML() (interface{}, error) {
	return a.AssigneeSpec, nil
}

// ToDefinition converts the payload into an unsaved definition and validates it.
// IDs and timestamps are left for the caller to assign.
func (p *DefinitionPayload) ToDefinition() (*entity.WorkflowDefinition, error) {
	v := &domainwf.ValidationError{}

	def := &entity.WorkflowDefinition{
		OrganizationID:  strings.TrimSpace(p.OrganizationID),
		DepartmentID:    p.DepartmentID,
		Name:            strings.TrimSpace(p.Name),
		Description:     p.Description,
		TriggerType:     strings.ToUpper(strings.TrimSpace(p.TriggerType)),
		InitialStepName: p.InitialStepName,
		IsActive:        p.IsActive == nil || *p.IsActive,
		Version:         1,
	}
	if def.TriggerType == "" {
		def.TriggerType = entity.TriggerTypeManual
	}

	for _, sp := range p.Steps {
		step := &entity.Step{
			Name:                   strings.TrimSpace(sp.StepName),
			Order:                  sp.Order,
			Description:            sp.Description,
			AllConditionsMustMatch: sp.AllConditionsMustMatch == nil || *sp.AllConditionsMustMatch,
			FormFields:             sp.FormFields,
			ApprovalMode:           entity.ApprovalMode(strings.ToUpper(string(sp.ApprovalMode))),
		}

		assignee, err := entity.DecodeAssignee(sp.AssigneeLogic.AssigneeSpec)
		if err != nil {
			v.Addf("step %q: %v", step.Name, err)
		}
		step.Assignee = assignee

		if step.Conditions, err = entity.DecodeConditions(sp.Conditions); err != nil {
			v.Addf("step %q: %v", step.Name, err)
		}

		for _, ap := range sp.Actions {
			action := &entity.Action{
				Name:         strings.TrimSpace(ap.Name),
				Label:        ap.Label,
				Type:         entity.ActionType(strings.ToUpper(string(ap.ActionType))),
				Order:        ap.Order,
				ApprovalMode: upperMode(ap.ApprovalMode),
			}
			if action.Type == "" {
				action.Type = entity.ActionTypePrimary
			}
			if ap.AssigneeLogic != nil {
				if action.Assignee, err = entity.DecodeAssignee(ap.AssigneeLogic.AssigneeSpec); err != nil {
					v.Addf("step %q action %q: %v", step.Name, action.Name, err)
				}
			}
			step.Actions = append(step.Actions, action)
		}

		for _, tp := range sp.Transitions {
			tr := &entity.Transition{
				ActionName: strings.TrimSpace(tp.ActionName),
				ToStepName: tp.ToStepName,
			}
			if tr.Conditions, err = entity.DecodeConditions(tp.Conditions); err != nil {
				v.Addf("step %q transition %q: %v", step.Name, tr.ActionName, err)
			}
			step.Transitions = append(step.Transitions, tr)
		}

		def.Steps = append(def.Steps, step)
	}

	if err := v.ErrOrNil(); err != nil {
		return nil, err
	}
	if err := domainwf.Validate(def); err != nil {
		return nil, err
	}
	return def, nil
}

// ToDefinition converts the approval shape into the unified model. Every action
// becomes an "approve" action carrying its own assignee and mode; the step
// itself is unassigned and has no transitions, so resolution walks by order.
func (p *ApprovalPayload) ToDefinition() (*entity.WorkflowDefinition, error) {
	v := &domainwf.ValidationError{}

	def := &entity.WorkflowDefinition{
		OrganizationID: strings.TrimSpace(p.OrganizationID),
		Name:           strings.TrimSpace(p.Name),
		Description:    p.Description,
		TriggerType:    strings.ToUpper(strings.TrimSpace(p.TriggerType)),
		IsActive:       p.IsActive == nil || *p.IsActive,
		Version:        1,
	}
	if def.TriggerType == "" {
		def.TriggerType = entity.TriggerTypeExpense
	}

	for _, sp := range p.Steps {
		step := &entity.Step{
			Name:                   strings.TrimSpace(sp.Name),
			Order:                  sp.StepNumber,
			Description:            sp.Description,
			AllConditionsMustMatch: sp.AllConditionsMustMatch,
			Assignee:               entity.UnassignedAssignee{},
		}

		var err error
		if step.Conditions, err = entity.DecodeConditions(sp.Conditions); err != nil {
			v.Addf("step %q: %v", step.Name, err)
		}

		for i, ap := range sp.Actions {
			assignee, err := entity.DecodeAssignee(entity.AssigneeSpec{
				Type:     ap.Type,
				Role:     ap.ApproverRole,
				MemberID: ap.SpecificMemberID,
			})
			if err != nil {
				v.Addf("step %q action %d: %v", step.Name, i+1, err)
			}

			name := "approve"
			if len(sp.Actions) > 1 {
				name = fmt.Sprintf("approve-%d", i+1)
			}
			mode := entity.ApprovalMode(strings.ToUpper(string(ap.ApprovalMode)))
			if mode == "" {
				mode = entity.ApprovalModeAnyOne
			}

			step.Actions = append(step.Actions, &entity.Action{
				Name:         name,
				Label:        "Approve",
				Type:         entity.ActionTypePrimary,
				Order:        i + 1,
				Assignee:     assignee,
				ApprovalMode: &mode,
			})
		}

		def.Steps = append(def.Steps, step)
	}

	if err := v.ErrOrNil(); err != nil {
		return nil, err
	}
	if err := domainwf.Validate(def); err != nil {
		return nil, err
	}
	return def, nil
}

// FromDefinition renders a stored definition back into the authoring shape
func FromDefinition(def *entity.WorkflowDefinition) *DefinitionPayload {
	active := def.IsActive
	p := &DefinitionPayload{
		Name:            def.Name,
		Description:     def.Description,
		OrganizationID:  def.OrganizationID,
		DepartmentID:    def.DepartmentID,
		TriggerType:     def.TriggerType,
		InitialStepName: def.InitialStepName,
		IsActive:        &active,
	}

	for _, step := range def.OrderedSteps() {
		all := step.AllConditionsMustMatch
		sp := StepPayload{
			StepName:               step.Name,
			Order:                  step.Order,
			Description:            step.Description,
			AssigneeLogic:          AssigneeField{entity.EncodeAssignee(step.Assignee)},
			ApprovalMode:           step.ApprovalMode,
			AllConditionsMustMatch: &all,
			FormFields:             step.FormFields,
		}
		if len(step.Conditions) > 0 {
			sp.Conditions = entity.EncodeConditions(step.Conditions)
		}
		for _, a := range step.OrderedActions() {
			ap := ActionPayload{
				Name:         a.Name,
				Label:        a.Label,
				ActionType:   a.Type,
				Order:        a.Order,
				ApprovalMode: a.ApprovalMode,
			}
			if a.Assignee != nil {
				ap.AssigneeLogic = &AssigneeField{entity.EncodeAssignee(a.Assignee)}
			}
			sp.Actions = append(sp.Actions, ap)
		}
		for _, t := range step.Transitions {
			tp := TransitionPayload{ActionName: t.ActionName, ToStepName: t.ToStepName}
			if len(t.Conditions) > 0 {
				tp.Conditions = entity.EncodeConditions(t.Conditions)
			}
			sp.Transitions = append(sp.Transitions, tp)
		}
		p.Steps = append(p.Steps, sp)
	}
	return p
}

func upperMode(m *entity.ApprovalMode) *entity.ApprovalMode {
	if m == nil {
		return nil
	}
	upper := entity.ApprovalMode(strings.ToUpper(string(*m)))
	return &upper
}
