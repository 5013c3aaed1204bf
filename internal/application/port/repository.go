package port

import (
	"context"
	"errors"

	"github.com/garyjia/approval-engine/internal/domain/entity"
)

// ErrVersionConflict is returned by InstanceRepository.Update when the stored
// version no longer matches the caller's expectation
var ErrVersionConflict = errors.New("instance version conflict")

// DefinitionRepository persists workflow definitions together with their steps,
// conditions, actions, transitions and form fields
type DefinitionRepository interface {
	// Create inserts the definition and every child row; IDs must be assigned
	Create(ctx context.Context, def *entity.WorkflowDefinition) error
	// GetByID returns nil, nil when the definition does not exist
	GetByID(ctx context.Context, id string) (*entity.WorkflowDefinition, error)
	ListByOrganization(ctx context.Context, organizationID string, activeOnly bool) ([]*entity.WorkflowDefinition, error)
	// Replace overwrites the header and swaps all child rows atomically
	Replace(ctx context.Context, def *entity.WorkflowDefinition) error
	SetActive(ctx context.Context, id string, active bool) error
	// Delete removes the definition and every child row in one transaction
	Delete(ctx context.Context, id string) error
}

// InstanceRepository persists workflow instances
type InstanceRepository interface {
	Create(ctx context.Context, instance *entity.WorkflowInstance) error
	// GetByID returns nil, nil when the instance does not exist
	GetByID(ctx context.Context, id string) (*entity.WorkflowInstance, error)
	// Update stores instance only if the stored version equals expectedVersion,
	// otherwise it returns ErrVersionConflict
	Update(ctx context.Context, instance *entity.WorkflowInstance, expectedVersion int64) error
	// ListActive returns non-terminal instances; an empty organizationID lists all
	ListActive(ctx context.Context, organizationID string) ([]*entity.WorkflowInstance, error)
	CountActiveByDefinition(ctx context.Context, definitionID string) (int, error)
}

// HistoryRepository persists the append-only step execution trail
type HistoryRepository interface {
	Append(ctx context.Context, record *entity.StepExecutionRecord) error
	ListByInstance(ctx context.Context, instanceID string) ([]*entity.StepExecutionRecord, error)
}

// MemberRepository is the organization roster
type MemberRepository interface {
	// GetMember returns nil, nil when the member does not exist
	GetMember(ctx context.Context, memberID string) (*entity.Member, error)
	ListActiveByRole(ctx context.Context, organizationID, role string) ([]*entity.Member, error)
	ListByOrganization(ctx context.Context, organizationID string) ([]*entity.Member, error)
	Upsert(ctx context.Context, member *entity.Member) error
}

// TransactionManager handles database transactions
type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
