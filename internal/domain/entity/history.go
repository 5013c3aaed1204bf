package entity

import "time"

// RecordKind classifies a StepExecutionRecord
type RecordKind string

const (
	RecordKindInitiated    RecordKind = "INITIATED"
	RecordKindDecision     RecordKind = "DECISION"
	RecordKindAutoAdvanced RecordKind = "AUTO_ADVANCED"
	RecordKindCancelled    RecordKind = "CANCELLED"
)

// SystemActorID is recorded when the engine acts on its own
const SystemActorID = "system"

// StepExecutionRecord is an append-only audit entry for an instance
type StepExecutionRecord struct {
	ID                 string         `json:"id"`
	WorkflowInstanceID string         `json:"workflow_instance_id"`
	StepID             string         `json:"step_id"`
	StepName           string         `json:"step_name"`
	ActorID            string         `json:"actor_id"`
	Kind               RecordKind     `json:"kind"`
	ActionTaken        string         `json:"action_taken"`
	Decision           Decision       `json:"decision,omitempty"`
	DataSnapshot       map[string]any `json:"data_snapshot,omitempty"`
	Timestamp          time.Time      `json:"timestamp"`
}
