package workflow

import (
	"context"
	"time"

	"github.com/garyjia/approval-engine/internal/domain/entity"
)

// SubmitRequest starts a new instance of a definition
type SubmitRequest struct {
	DefinitionID  string
	SubmittedByID string
	Context       entity.RequestContext
}

// DecisionRequest records one actor's decision on the current step
type DecisionRequest struct {
	InstanceID string
	ActorID    string
	ActionName string
	Decision   entity.Decision
	FormData   map[string]any
	// StepVersion, when set, must equal the instance version the actor saw
	StepVersion *int64
}

// CancelRequest withdraws an in-progress instance
type CancelRequest struct {
	InstanceID string
	ActorID    string
	Reason     string
}

// StalledStep is an instance waiting on a step nobody can act on
type StalledStep struct {
	Instance *entity.WorkflowInstance
	StepName string
	Since    time.Time
}

// WorkflowEngine drives workflow instances through their definitions
type WorkflowEngine interface {
	// Submit creates an instance on the first applicable step
	Submit(ctx context.Context, req SubmitRequest) (*entity.WorkflowInstance, error)

	// RecordDecision applies an actor's decision and advances the instance when the step resolves
	RecordDecision(ctx context.Context, req DecisionRequest) (*entity.WorkflowInstance, error)

	// Cancel withdraws an in-progress instance
	Cancel(ctx context.Context, req CancelRequest) (*entity.WorkflowInstance, error)

	// GetInstance returns an instance or a not-found error
	GetInstance(ctx context.Context, instanceID string) (*entity.WorkflowInstance, error)

	// GetHistory returns the execution trail of an instance in append order
	GetHistory(ctx context.Context, instanceID string) ([]*entity.StepExecutionRecord, error)

	// PendingFor lists in-progress instances waiting on memberID
	PendingFor(ctx context.Context, organizationID, memberID string) ([]*entity.WorkflowInstance, error)

	// ScanStalled reports instances stuck on a step with no approvers for longer than olderThan
	ScanStalled(ctx context.Context, olderThan time.Duration) ([]StalledStep, error)
}
