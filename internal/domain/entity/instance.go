package entity

import "time"

// WorkflowInstance is one request travelling through a WorkflowDefinition
type WorkflowInstance struct {
	ID             string          `json:"id"`
	WorkflowID     string          `json:"workflow_id"`
	OrganizationID string          `json:"organization_id"`
	SubmittedByID  string          `json:"submitted_by_id"`
	CurrentStepID  string          `json:"current_step_id"`
	Status         string          `json:"status"`
	Context        RequestContext  `json:"context"`
	StepData       map[string]any  `json:"step_data"`
	Decisions      []DecisionEntry `json:"decisions"`
	Version        int64           `json:"version"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
	StepEnteredAt  time.Time       `json:"step_entered_at"`
	CompletedAt    *time.Time      `json:"completed_at,omitempty"`
}

// DecisionEntry is one actor's decision on the current step visit
type DecisionEntry struct {
	ActorID    string         `json:"actor_id"`
	ActionName string         `json:"action_name"`
	Decision   Decision       `json:"decision"`
	FormData   map[string]any `json:"form_data,omitempty"`
	DecidedAt  time.Time      `json:"decided_at"`
}

// IsTerminal returns true once the instance is approved, rejected or cancelled
func (i *WorkflowInstance) IsTerminal() bool {
	switch i.Status {
	case StatusApproved, StatusRejected, StatusCancelled:
		return true
	}
	return false
}

// HasDecided reports whether actorID already decided on the current step visit
func (i *WorkflowInstance) HasDecided(actorID string) bool {
	for _, d := range i.Decisions {
		if d.ActorID == actorID {
			return true
		}
	}
	return false
}

// Clone returns a deep-enough copy for mutation ahead of a compare-and-set write
func (i *WorkflowInstance) Clone() *WorkflowInstance {
	c := *i
	c.Context = RequestContext{}.Merge(i.Context)
	c.StepData = make(map[string]any, len(i.StepData))
	for k, v := range i.StepData {
		c.StepData[k] = v
	}
	c.Decisions = append([]DecisionEntry(nil), i.Decisions...)
	if i.CompletedAt != nil {
		t := *i.CompletedAt
		c.CompletedAt = &t
	}
	return &c
}
