package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/garyjia/approval-engine/internal/application/port"
	"github.com/garyjia/approval-engine/internal/domain/entity"
	"github.com/garyjia/approval-engine/internal/infrastructure/persistence/sqlite"
	"go.uber.org/zap"
)

// InstanceRepository implements port.InstanceRepository
type InstanceRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewInstanceRepository creates a new instance repository
func NewInstanceRepository(db *sql.DB, logger *zap.Logger) port.InstanceRepository {
	return &InstanceRepository{
		db:     db,
		logger: logger,
	}
}

const instanceColumns = `
	id, workflow_id, organization_id, submitted_by_id, current_step_id, status,
	context, step_data, decisions, version,
	created_at, updated_at, step_entered_at, completed_at
`

// Create creates a new workflow instance
func (r *InstanceRepository) Create(ctx context.Context, instance *entity.WorkflowInstance) error {
	payload, err := encodeInstance(instance)
	if err != nil {
		return err
	}

	query := `INSERT INTO workflow_instances (` + instanceColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err = r.getExecutor(ctx).ExecContext(ctx, query,
		instance.ID,
		instance.WorkflowID,
		instance.OrganizationID,
		instance.SubmittedByID,
		instance.CurrentStepID,
		instance.Status,
		payload.context,
		payload.stepData,
		payload.decisions,
		instance.Version,
		instance.CreatedAt,
		instance.UpdatedAt,
		instance.StepEnteredAt,
		instance.CompletedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create instance", zap.String("id", instance.ID), zap.Error(err))
		return fmt.Errorf("failed to create instance: %w", err)
	}
	return nil
}

// GetByID retrieves a workflow instance by ID
func (r *InstanceRepository) GetByID(ctx context.Context, id string) (*entity.WorkflowInstance, error) {
	query := `SELECT ` + instanceColumns + ` FROM workflow_instances WHERE id = ?`

	instance, err := scanInstance(r.getExecutor(ctx).QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get instance by ID", zap.String("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get instance: %w", err)
	}
	return instance, nil
}

// Update writes the instance only when the stored version still equals expectedVersion
func (r *InstanceRepository) Update(ctx context.Context, instance *entity.WorkflowInstance, expectedVersion int64) error {
	payload, err := encodeInstance(instance)
	if err != nil {
		return err
	}

	query := `
		UPDATE workflow_instances
		SET current_step_id = ?, status = ?, context = ?, step_data = ?, decisions = ?,
			version = ?, updated_at = ?, step_entered_at = ?, completed_at = ?
		WHERE id = ? AND version = ?
	`

	result, err := r.getExecutor(ctx).ExecContext(ctx, query,
		instance.CurrentStepID,
		instance.Status,
		payload.context,
		payload.stepData,
		payload.decisions,
		instance.Version,
		instance.UpdatedAt,
		instance.StepEnteredAt,
		instance.CompletedAt,
		instance.ID,
		expectedVersion,
	)
	if err != nil {
		r.logger.Error("Failed to update instance", zap.String("id", instance.ID), zap.Error(err))
		return fmt.Errorf("failed to update instance: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		r.logger.Warn("Instance version conflict",
			zap.String("id", instance.ID),
			zap.Int64("expected_version", expectedVersion))
		return port.ErrVersionConflict
	}
	return nil
}

// ListActive returns pending and in-progress instances, oldest first
func (r *InstanceRepository) ListActive(ctx context.Context, organizationID string) ([]*entity.WorkflowInstance, error) {
	query := `
		SELECT ` + instanceColumns + `
		FROM workflow_instances
		WHERE status IN (?, ?) AND (? = '' OR organization_id = ?)
		ORDER BY created_at ASC, id
	`

	rows, err := r.getExecutor(ctx).QueryContext(ctx, query,
		entity.StatusPending, entity.StatusInProgress, organizationID, organizationID)
	if err != nil {
		r.logger.Error("Failed to list active instances", zap.String("organization_id", organizationID), zap.Error(err))
		return nil, fmt.Errorf("failed to list active instances: %w", err)
	}
	defer rows.Close()

	var instances []*entity.WorkflowInstance
	for rows.Next() {
		instance, err := scanInstance(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan instance: %w", err)
		}
		instances = append(instances, instance)
	}
	return instances, rows.Err()
}

// CountActiveByDefinition counts the non-terminal instances of a definition
func (r *InstanceRepository) CountActiveByDefinition(ctx context.Context, definitionID string) (int, error) {
	query := `SELECT COUNT(*) FROM workflow_instances WHERE workflow_id = ? AND status IN (?, ?)`

	var count int
	err := r.getExecutor(ctx).QueryRowContext(ctx, query,
		definitionID, entity.StatusPending, entity.StatusInProgress).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count active instances: %w", err)
	}
	return count, nil
}

// getExecutor returns appropriate executor based on context
func (r *InstanceRepository) getExecutor(ctx context.Context) sqlite.Executor {
	return sqlite.ExecutorFor(ctx, r.db)
}

type instancePayload struct {
	context   string
	stepData  string
	decisions string
}

func encodeInstance(instance *entity.WorkflowInstance) (instancePayload, error) {
	var p instancePayload
	var err error
	if p.context, err = marshalJSON(map[string]any(instance.Context), "{}"); err != nil {
		return p, fmt.Errorf("failed to encode instance context: %w", err)
	}
	if p.stepData, err = marshalJSON(instance.StepData, "{}"); err != nil {
		return p, fmt.Errorf("failed to encode step data: %w", err)
	}
	if p.decisions, err = marshalJSON(instance.Decisions, "[]"); err != nil {
		return p, fmt.Errorf("failed to encode decisions: %w", err)
	}
	return p, nil
}

func scanInstance(row rowScanner) (*entity.WorkflowInstance, error) {
	var instance entity.WorkflowInstance
	var contextJSON, stepDataJSON, decisionsJSON string
	var completedAt sql.NullTime

	err := row.Scan(
		&instance.ID,
		&instance.WorkflowID,
		&instance.OrganizationID,
		&instance.SubmittedByID,
		&instance.CurrentStepID,
		&instance.Status,
		&contextJSON,
		&stepDataJSON,
		&decisionsJSON,
		&instance.Version,
		&instance.CreatedAt,
		&instance.UpdatedAt,
		&instance.StepEnteredAt,
		&completedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(contextJSON), &instance.Context); err != nil {
		return nil, fmt.Errorf("failed to decode instance context: %w", err)
	}
	if err := json.Unmarshal([]byte(stepDataJSON), &instance.StepData); err != nil {
		return nil, fmt.Errorf("failed to decode step data: %w", err)
	}
	if err := json.Unmarshal([]byte(decisionsJSON), &instance.Decisions); err != nil {
		return nil, fmt.Errorf("failed to decode decisions: %w", err)
	}
	if completedAt.Valid {
		instance.CompletedAt = &completedAt.Time
	}
	return &instance, nil
}

// Verify interface compliance
var _ port.InstanceRepository = (*InstanceRepository)(nil)
