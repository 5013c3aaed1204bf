package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/garyjia/approval-engine/internal/application/port"
	"github.com/garyjia/approval-engine/internal/domain/entity"
	domainwf "github.com/garyjia/approval-engine/internal/domain/workflow"
)

// Logger interface for minimal logging dependency
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Warn(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

// DefinitionService manages workflow definitions
type DefinitionService interface {
	Create(ctx context.Context, payload *DefinitionPayload) (*entity.WorkflowDefinition, error)
	CreateApproval(ctx context.Context, payload *ApprovalPayload) (*entity.WorkflowDefinition, error)
	Get(ctx context.Context, id string) (*entity.WorkflowDefinition, error)
	List(ctx context.Context, organizationID string, activeOnly bool) ([]*entity.WorkflowDefinition, error)
	// Update edits in place while no live instance uses the definition;
	// otherwise it stores a new version and deactivates the old one
	Update(ctx context.Context, id string, payload *DefinitionPayload) (*entity.WorkflowDefinition, error)
	SetActive(ctx context.Context, id string, active bool) error
	Delete(ctx context.Context, id string) error
	Lint(ctx context.Context, id string) ([]error, error)
}

type definitionServiceImpl struct {
	definitionRepo port.DefinitionRepository
	instanceRepo   port.InstanceRepository
	txManager      port.TransactionManager
	logger         Logger
	now            func() time.Time
}

// NewDefinitionService creates a new DefinitionService
func NewDefinitionService(
	definitionRepo port.DefinitionRepository,
	instanceRepo port.InstanceRepository,
	txManager port.TransactionManager,
	logger Logger,
) DefinitionService {
	return &definitionServiceImpl{
		definitionRepo: definitionRepo,
		instanceRepo:   instanceRepo,
		txManager:      txManager,
		logger:         logger,
		now:            time.Now,
	}
}

// Create validates and stores a template-style definition
func (s *definitionServiceImpl) Create(ctx context.Context, payload *DefinitionPayload) (*entity.WorkflowDefinition, error) {
	def, err := payload.ToDefinition()
	if err != nil {
		return nil, err
	}
	return s.store(ctx, def)
}

// CreateApproval validates and stores an approval-style definition
func (s *definitionServiceImpl) CreateApproval(ctx context.Context, payload *ApprovalPayload) (*entity.WorkflowDefinition, error) {
	def, err := payload.ToDefinition()
	if err != nil {
		return nil, err
	}
	return s.store(ctx, def)
}

func (s *definitionServiceImpl) store(ctx context.Context, def *entity.WorkflowDefinition) (*entity.WorkflowDefinition, error) {
	now := s.now()
	def.ID = uuid.NewString()
	def.CreatedAt = now
	def.UpdatedAt = now
	assignIDs(def)

	if err := s.definitionRepo.Create(ctx, def); err != nil {
		s.logger.Error("Failed to create definition", "error", err, "name", def.Name)
		return nil, fmt.Errorf("create definition: %w", err)
	}

	s.logger.Info("Workflow definition created",
		"definition_id", def.ID,
		"name", def.Name,
		"organization_id", def.OrganizationID,
		"steps", len(def.Steps),
	)
	return def, nil
}

// Get retrieves a definition by ID
func (s *definitionServiceImpl) Get(ctx context.Context, id string) (*entity.WorkflowDefinition, error) {
	def, err := s.definitionRepo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get definition: %w", err)
	}
	if def == nil {
		return nil, &domainwf.NotFoundError{Resource: "workflow definition", ID: id}
	}
	return def, nil
}

// List returns the definitions of an organization
func (s *definitionServiceImpl) List(ctx context.Context, organizationID string, activeOnly bool) ([]*entity.WorkflowDefinition, error) {
	if organizationID == "" {
		return nil, domainwf.NewValidationError("organization_id is required")
	}
	defs, err := s.definitionRepo.ListByOrganization(ctx, organizationID, activeOnly)
	if err != nil {
		return nil, fmt.Errorf("list definitions: %w", err)
	}
	return defs, nil
}

// Update replaces the definition body
func (s *definitionServiceImpl) Update(ctx context.Context, id string, payload *DefinitionPayload) (*entity.WorkflowDefinition, error) {
	current, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	next, err := payload.ToDefinition()
	if err != nil {
		return nil, err
	}
	if next.OrganizationID != current.OrganizationID {
		return nil, domainwf.NewValidationError("organizationId cannot change from %q", current.OrganizationID)
	}

	live, err := s.instanceRepo.CountActiveByDefinition(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("count active instances: %w", err)
	}

	now := s.now()
	next.UpdatedAt = now

	if live == 0 {
		next.ID = current.ID
		next.Version = current.Version
		next.ParentID = current.ParentID
		next.CreatedAt = current.CreatedAt
		assignIDs(next)
		if err := s.definitionRepo.Replace(ctx, next); err != nil {
			s.logger.Error("Failed to replace definition", "error", err, "definition_id", id)
			return nil, fmt.Errorf("replace definition: %w", err)
		}
		s.logger.Info("Workflow definition updated in place", "definition_id", id)
		return next, nil
	}

	// Live instances keep reading the old graph
	next.ID = uuid.NewString()
	next.Version = current.Version + 1
	next.ParentID = &current.ID
	next.CreatedAt = now
	assignIDs(next)

	err = s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := s.definitionRepo.Create(txCtx, next); err != nil {
			return fmt.Errorf("create definition version: %w", err)
		}
		if err := s.definitionRepo.SetActive(txCtx, current.ID, false); err != nil {
			return fmt.Errorf("deactivate previous version: %w", err)
		}
		return nil
	})
	if err != nil {
		s.logger.Error("Failed to version definition", "error", err, "definition_id", id)
		return nil, err
	}

	s.logger.Info("Workflow definition versioned",
		"definition_id", next.ID,
		"parent_id", current.ID,
		"version", next.Version,
		"live_instances", live,
	)
	return next, nil
}

// SetActive activates or deactivates a definition
func (s *definitionServiceImpl) SetActive(ctx context.Context, id string, active bool) error {
	if err := s.definitionRepo.SetActive(ctx, id, active); err != nil {
		return fmt.Errorf("set definition active: %w", err)
	}
	s.logger.Info("Workflow definition active flag changed", "definition_id", id, "active", active)
	return nil
}

// Delete removes a definition that no live instance references
func (s *definitionServiceImpl) Delete(ctx context.Context, id string) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}

	live, err := s.instanceRepo.CountActiveByDefinition(ctx, id)
	if err != nil {
		return fmt.Errorf("count active instances: %w", err)
	}
	if live > 0 {
		s.logger.Warn("Refusing to delete definition with live instances", "definition_id", id, "live_instances", live)
		return fmt.Errorf("%w: %d live instances reference %s", domainwf.ErrDefinitionInUse, live, id)
	}

	if err := s.definitionRepo.Delete(ctx, id); err != nil {
		s.logger.Error("Failed to delete definition", "error", err, "definition_id", id)
		return fmt.Errorf("delete definition: %w", err)
	}

	s.logger.Info("Workflow definition deleted", "definition_id", id)
	return nil
}

// Lint reports non-fatal definition problems
func (s *definitionServiceImpl) Lint(ctx context.Context, id string) ([]error, error) {
	def, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return domainwf.Lint(def), nil
}

// assignIDs gives every child row of def a fresh identifier
func assignIDs(def *entity.WorkflowDefinition) {
	for _, step := range def.Steps {
		step.ID = uuid.NewString()
		step.DefinitionID = def.ID
		for _, a := range step.Actions {
			a.ID = uuid.NewString()
		}
		for _, t := range step.Transitions {
			t.ID = uuid.NewString()
		}
	}
}
