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

// HistoryRepository implements port.HistoryRepository.
// Records are insert-only; the schema rejects UPDATE and DELETE.
type HistoryRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewHistoryRepository creates a new history repository
func NewHistoryRepository(db *sql.DB, logger *zap.Logger) port.HistoryRepository {
	return &HistoryRepository{
		db:     db,
		logger: logger,
	}
}

// Append stores a step execution record
func (r *HistoryRepository) Append(ctx context.Context, record *entity.StepExecutionRecord) error {
	query := `
		INSERT INTO step_execution_records (
			id, workflow_instance_id, step_id, step_name, actor_id, kind,
			action_taken, decision, data_snapshot, timestamp
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	var snapshot sql.NullString
	if record.DataSnapshot != nil {
		raw, err := json.Marshal(record.DataSnapshot)
		if err != nil {
			return fmt.Errorf("failed to encode data snapshot: %w", err)
		}
		snapshot = sql.NullString{String: string(raw), Valid: true}
	}

	_, err := r.getExecutor(ctx).ExecContext(ctx, query,
		record.ID,
		record.WorkflowInstanceID,
		record.StepID,
		record.StepName,
		record.ActorID,
		string(record.Kind),
		record.ActionTaken,
		string(record.Decision),
		snapshot,
		record.Timestamp,
	)
	if err != nil {
		r.logger.Error("Failed to append history record",
			zap.String("instance_id", record.WorkflowInstanceID),
			zap.String("kind", string(record.Kind)),
			zap.Error(err))
		return fmt.Errorf("failed to append history: %w", err)
	}
	return nil
}

// ListByInstance retrieves all records of an instance in append order
func (r *HistoryRepository) ListByInstance(ctx context.Context, instanceID string) ([]*entity.StepExecutionRecord, error) {
	query := `
		SELECT id, workflow_instance_id, step_id, step_name, actor_id, kind,
			action_taken, decision, data_snapshot, timestamp
		FROM step_execution_records
		WHERE workflow_instance_id = ?
		ORDER BY seq ASC
	`

	rows, err := r.getExecutor(ctx).QueryContext(ctx, query, instanceID)
	if err != nil {
		r.logger.Error("Failed to get history by instance ID", zap.String("instance_id", instanceID), zap.Error(err))
		return nil, fmt.Errorf("failed to get history: %w", err)
	}
	defer rows.Close()

	var records []*entity.StepExecutionRecord
	for rows.Next() {
		var record entity.StepExecutionRecord
		var kind, decision string
		var snapshot sql.NullString
		err := rows.Scan(
			&record.ID,
			&record.WorkflowInstanceID,
			&record.StepID,
			&record.StepName,
			&record.ActorID,
			&kind,
			&record.ActionTaken,
			&decision,
			&snapshot,
			&record.Timestamp,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan history record: %w", err)
		}
		record.Kind = entity.RecordKind(kind)
		record.Decision = entity.Decision(decision)
		if snapshot.Valid {
			if err := json.Unmarshal([]byte(snapshot.String), &record.DataSnapshot); err != nil {
				return nil, fmt.Errorf("failed to decode data snapshot: %w", err)
			}
		}
		records = append(records, &record)
	}

	return records, rows.Err()
}

// getExecutor returns appropriate executor based on context
func (r *HistoryRepository) getExecutor(ctx context.Context) sqlite.Executor {
	return sqlite.ExecutorFor(ctx, r.db)
}

// Verify interface compliance
var _ port.HistoryRepository = (*HistoryRepository)(nil)
