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

// DefinitionRepository implements port.DefinitionRepository.
// A definition and its child rows are always written and deleted in one transaction.
type DefinitionRepository struct {
	db     *sqlite.DB
	logger *zap.Logger
}

// NewDefinitionRepository creates a new definition repository
func NewDefinitionRepository(db *sqlite.DB, logger *zap.Logger) port.DefinitionRepository {
	return &DefinitionRepository{
		db:     db,
		logger: logger,
	}
}

// Create inserts the definition with all steps, conditions, actions and transitions
func (r *DefinitionRepository) Create(ctx context.Context, def *entity.WorkflowDefinition) error {
	return r.db.WithTransaction(ctx, func(ctx context.Context) error {
		query := `
			INSERT INTO workflow_definitions (
				id, organization_id, department_id, name, description, trigger_type,
				initial_step_name, is_active, version, parent_id, created_at, updated_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`
		_, err := r.db.Executor(ctx).ExecContext(ctx, query,
			def.ID,
			def.OrganizationID,
			nullString(def.DepartmentID),
			def.Name,
			def.Description,
			def.TriggerType,
			nullString(def.InitialStepName),
			def.IsActive,
			def.Version,
			nullString(def.ParentID),
			def.CreatedAt,
			def.UpdatedAt,
		)
		if err != nil {
			r.logger.Error("Failed to create definition", zap.String("id", def.ID), zap.Error(err))
			return fmt.Errorf("failed to create definition: %w", err)
		}
		return r.insertSteps(ctx, def)
	})
}

// GetByID loads a definition and its full step graph
func (r *DefinitionRepository) GetByID(ctx context.Context, id string) (*entity.WorkflowDefinition, error) {
	query := `
		SELECT id, organization_id, department_id, name, description, trigger_type,
			initial_step_name, is_active, version, parent_id, created_at, updated_at
		FROM workflow_definitions
		WHERE id = ?
	`

	def, err := scanDefinition(r.db.Executor(ctx).QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get definition by ID", zap.String("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get definition: %w", err)
	}

	if err := r.loadSteps(ctx, def); err != nil {
		return nil, err
	}
	return def, nil
}

// ListByOrganization returns the definitions of an organization, newest first
func (r *DefinitionRepository) ListByOrganization(ctx context.Context, organizationID string, activeOnly bool) ([]*entity.WorkflowDefinition, error) {
	query := `
		SELECT id, organization_id, department_id, name, description, trigger_type,
			initial_step_name, is_active, version, parent_id, created_at, updated_at
		FROM workflow_definitions
		WHERE organization_id = ? AND (? = 0 OR is_active = 1)
		ORDER BY created_at DESC, id
	`

	rows, err := r.db.Executor(ctx).QueryContext(ctx, query, organizationID, activeOnly)
	if err != nil {
		r.logger.Error("Failed to list definitions", zap.String("organization_id", organizationID), zap.Error(err))
		return nil, fmt.Errorf("failed to list definitions: %w", err)
	}

	var defs []*entity.WorkflowDefinition
	for rows.Next() {
		def, err := scanDefinition(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan definition: %w", err)
		}
		defs = append(defs, def)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	// Close before loading children so a single-connection pool is free again
	rows.Close()

	for _, def := range defs {
		if err := r.loadSteps(ctx, def); err != nil {
			return nil, err
		}
	}
	return defs, nil
}

// Replace updates the header and swaps every child row
func (r *DefinitionRepository) Replace(ctx context.Context, def *entity.WorkflowDefinition) error {
	return r.db.WithTransaction(ctx, func(ctx context.Context) error {
		query := `
			UPDATE workflow_definitions
			SET department_id = ?, name = ?, description = ?, trigger_type = ?,
				initial_step_name = ?, is_active = ?, version = ?, parent_id = ?, updated_at = ?
			WHERE id = ?
		`
		result, err := r.db.Executor(ctx).ExecContext(ctx, query,
			nullString(def.DepartmentID),
			def.Name,
			def.Description,
			def.TriggerType,
			nullString(def.InitialStepName),
			def.IsActive,
			def.Version,
			nullString(def.ParentID),
			def.UpdatedAt,
			def.ID,
		)
		if err != nil {
			r.logger.Error("Failed to update definition", zap.String("id", def.ID), zap.Error(err))
			return fmt.Errorf("failed to update definition: %w", err)
		}
		if err := expectOneRow(result, "definition", def.ID); err != nil {
			return err
		}
		if err := r.deleteChildren(ctx, def.ID); err != nil {
			return err
		}
		return r.insertSteps(ctx, def)
	})
}

// SetActive toggles whether new instances may start from the definition
func (r *DefinitionRepository) SetActive(ctx context.Context, id string, active bool) error {
	query := `UPDATE workflow_definitions SET is_active = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`

	result, err := r.db.Executor(ctx).ExecContext(ctx, query, active, id)
	if err != nil {
		r.logger.Error("Failed to set definition active flag", zap.String("id", id), zap.Error(err))
		return fmt.Errorf("failed to set definition active flag: %w", err)
	}
	return expectOneRow(result, "definition", id)
}

// Delete removes the definition and all of its children; any failure rolls back every row
func (r *DefinitionRepository) Delete(ctx context.Context, id string) error {
	return r.db.WithTransaction(ctx, func(ctx context.Context) error {
		if err := r.deleteChildren(ctx, id); err != nil {
			return err
		}
		result, err := r.db.Executor(ctx).ExecContext(ctx, `DELETE FROM workflow_definitions WHERE id = ?`, id)
		if err != nil {
			r.logger.Error("Failed to delete definition", zap.String("id", id), zap.Error(err))
			return fmt.Errorf("failed to delete definition: %w", err)
		}
		return expectOneRow(result, "definition", id)
	})
}

// deleteChildren removes rows owned by the definition's steps, leaves first
func (r *DefinitionRepository) deleteChildren(ctx context.Context, definitionID string) error {
	statements := []struct {
		table string
		query string
	}{
		{"step_transitions", `DELETE FROM step_transitions WHERE step_id IN (SELECT id FROM workflow_steps WHERE definition_id = ?)`},
		{"step_actions", `DELETE FROM step_actions WHERE step_id IN (SELECT id FROM workflow_steps WHERE definition_id = ?)`},
		{"step_conditions", `DELETE FROM step_conditions WHERE step_id IN (SELECT id FROM workflow_steps WHERE definition_id = ?)`},
		{"workflow_steps", `DELETE FROM workflow_steps WHERE definition_id = ?`},
	}

	exec := r.db.Executor(ctx)
	for _, stmt := range statements {
		if _, err := exec.ExecContext(ctx, stmt.query, definitionID); err != nil {
			r.logger.Error("Failed to delete definition children",
				zap.String("definition_id", definitionID),
				zap.String("table", stmt.table),
				zap.Error(err))
			return fmt.Errorf("failed to delete %s: %w", stmt.table, err)
		}
	}
	return nil
}

func (r *DefinitionRepository) insertSteps(ctx context.Context, def *entity.WorkflowDefinition) error {
	exec := r.db.Executor(ctx)

	for _, step := range def.Steps {
		assignee, err := json.Marshal(entity.EncodeAssignee(step.Assignee))
		if err != nil {
			return fmt.Errorf("failed to encode assignee of step %s: %w", step.Name, err)
		}
		formFields, err := json.Marshal(nonNilFields(step.FormFields))
		if err != nil {
			return fmt.Errorf("failed to encode form fields of step %s: %w", step.Name, err)
		}

		_, err = exec.ExecContext(ctx, `
			INSERT INTO workflow_steps (
				id, definition_id, name, step_order, description,
				all_conditions_must_match, assignee, approval_mode, form_fields
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		`,
			step.ID,
			def.ID,
			step.Name,
			step.Order,
			step.Description,
			step.AllConditionsMustMatch,
			string(assignee),
			string(step.ApprovalMode),
			string(formFields),
		)
		if err != nil {
			r.logger.Error("Failed to insert step", zap.String("step", step.Name), zap.Error(err))
			return fmt.Errorf("failed to insert step %s: %w", step.Name, err)
		}

		for i, cond := range step.Conditions {
			spec, err := json.Marshal(entity.EncodeCondition(cond))
			if err != nil {
				return fmt.Errorf("failed to encode condition of step %s: %w", step.Name, err)
			}
			_, err = exec.ExecContext(ctx,
				`INSERT INTO step_conditions (id, step_id, position, spec) VALUES (?, ?, ?, ?)`,
				fmt.Sprintf("%s-c%d", step.ID, i), step.ID, i, string(spec))
			if err != nil {
				return fmt.Errorf("failed to insert condition of step %s: %w", step.Name, err)
			}
		}

		for _, action := range step.Actions {
			var actionAssignee, mode sql.NullString
			if action.Assignee != nil {
				raw, err := json.Marshal(entity.EncodeAssignee(action.Assignee))
				if err != nil {
					return fmt.Errorf("failed to encode assignee of action %s: %w", action.Name, err)
				}
				actionAssignee = sql.NullString{String: string(raw), Valid: true}
			}
			if action.ApprovalMode != nil {
				mode = sql.NullString{String: string(*action.ApprovalMode), Valid: true}
			}
			_, err = exec.ExecContext(ctx, `
				INSERT INTO step_actions (
					id, step_id, name, label, action_type, action_order, assignee, approval_mode
				) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			`,
				action.ID, step.ID, action.Name, action.Label, string(action.Type), action.Order, actionAssignee, mode)
			if err != nil {
				return fmt.Errorf("failed to insert action %s of step %s: %w", action.Name, step.Name, err)
			}
		}

		for i, tr := range step.Transitions {
			guards, err := json.Marshal(entity.EncodeConditions(tr.Conditions))
			if err != nil {
				return fmt.Errorf("failed to encode transition guards of step %s: %w", step.Name, err)
			}
			_, err = exec.ExecContext(ctx, `
				INSERT INTO step_transitions (id, step_id, position, action_name, to_step_name, conditions)
				VALUES (?, ?, ?, ?, ?, ?)
			`,
				tr.ID, step.ID, i, tr.ActionName, nullString(tr.ToStepName), string(guards))
			if err != nil {
				return fmt.Errorf("failed to insert transition of step %s: %w", step.Name, err)
			}
		}
	}
	return nil
}

func (r *DefinitionRepository) loadSteps(ctx context.Context, def *entity.WorkflowDefinition) error {
	exec := r.db.Executor(ctx)

	rows, err := exec.QueryContext(ctx, `
		SELECT id, name, step_order, description, all_conditions_must_match,
			assignee, approval_mode, form_fields
		FROM workflow_steps
		WHERE definition_id = ?
		ORDER BY step_order
	`, def.ID)
	if err != nil {
		return fmt.Errorf("failed to load steps: %w", err)
	}

	byID := make(map[string]*entity.Step)
	def.Steps = nil
	for rows.Next() {
		step := &entity.Step{DefinitionID: def.ID}
		var assignee, mode, formFields string
		if err := rows.Scan(&step.ID, &step.Name, &step.Order, &step.Description,
			&step.AllConditionsMustMatch, &assignee, &mode, &formFields); err != nil {
			rows.Close()
			return fmt.Errorf("failed to scan step: %w", err)
		}
		step.ApprovalMode = entity.ApprovalMode(mode)
		if step.Assignee, err = decodeAssignee(assignee); err != nil {
			rows.Close()
			return fmt.Errorf("step %s: %w", step.Name, err)
		}
		if err := json.Unmarshal([]byte(formFields), &step.FormFields); err != nil {
			rows.Close()
			return fmt.Errorf("failed to decode form fields of step %s: %w", step.Name, err)
		}
		def.Steps = append(def.Steps, step)
		byID[step.ID] = step
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return err
	}
	rows.Close()

	if err := r.loadConditions(ctx, exec, def.ID, byID); err != nil {
		return err
	}
	if err := r.loadActions(ctx, exec, def.ID, byID); err != nil {
		return err
	}
	return r.loadTransitions(ctx, exec, def.ID, byID)
}

func (r *DefinitionRepository) loadConditions(ctx context.Context, exec sqlite.Executor, definitionID string, steps map[string]*entity.Step) error {
	rows, err := exec.QueryContext(ctx, `
		SELECT c.step_id, c.spec
		FROM step_conditions c JOIN workflow_steps s ON s.id = c.step_id
		WHERE s.definition_id = ?
		ORDER BY c.step_id, c.position
	`, definitionID)
	if err != nil {
		return fmt.Errorf("failed to load conditions: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var stepID, raw string
		if err := rows.Scan(&stepID, &raw); err != nil {
			return fmt.Errorf("failed to scan condition: %w", err)
		}
		var spec entity.ConditionSpec
		if err := json.Unmarshal([]byte(raw), &spec); err != nil {
			return fmt.Errorf("failed to decode condition: %w", err)
		}
		cond, err := entity.DecodeCondition(spec)
		if err != nil {
			return err
		}
		if step := steps[stepID]; step != nil {
			step.Conditions = append(step.Conditions, cond)
		}
	}
	return rows.Err()
}

func (r *DefinitionRepository) loadActions(ctx context.Context, exec sqlite.Executor, definitionID string, steps map[string]*entity.Step) error {
	rows, err := exec.QueryContext(ctx, `
		SELECT a.id, a.step_id, a.name, a.label, a.action_type, a.action_order, a.assignee, a.approval_mode
		FROM step_actions a JOIN workflow_steps s ON s.id = a.step_id
		WHERE s.definition_id = ?
		ORDER BY a.step_id, a.action_order
	`, definitionID)
	if err != nil {
		return fmt.Errorf("failed to load actions: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		action := &entity.Action{}
		var stepID, actionType string
		var assignee, mode sql.NullString
		if err := rows.Scan(&action.ID, &stepID, &action.Name, &action.Label,
			&actionType, &action.Order, &assignee, &mode); err != nil {
			return fmt.Errorf("failed to scan action: %w", err)
		}
		action.Type = entity.ActionType(actionType)
		if assignee.Valid {
			if action.Assignee, err = decodeAssignee(assignee.String); err != nil {
				return fmt.Errorf("action %s: %w", action.Name, err)
			}
		}
		if mode.Valid {
			m := entity.ApprovalMode(mode.String)
			action.ApprovalMode = &m
		}
		if step := steps[stepID]; step != nil {
			step.Actions = append(step.Actions, action)
		}
	}
	return rows.Err()
}

func (r *DefinitionRepository) loadTransitions(ctx context.Context, exec sqlite.Executor, definitionID string, steps map[string]*entity.Step) error {
	rows, err := exec.QueryContext(ctx, `
		SELECT t.id, t.step_id, t.action_name, t.to_step_name, t.conditions
		FROM step_transitions t JOIN workflow_steps s ON s.id = t.step_id
		WHERE s.definition_id = ?
		ORDER BY t.step_id, t.position
	`, definitionID)
	if err != nil {
		return fmt.Errorf("failed to load transitions: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		tr := &entity.Transition{}
		var stepID, guards string
		var toStep sql.NullString
		if err := rows.Scan(&tr.ID, &stepID, &tr.ActionName, &toStep, &guards); err != nil {
			return fmt.Errorf("failed to scan transition: %w", err)
		}
		if toStep.Valid {
			tr.ToStepName = &toStep.String
		}
		var specs []entity.ConditionSpec
		if err := json.Unmarshal([]byte(guards), &specs); err != nil {
			return fmt.Errorf("failed to decode transition guards: %w", err)
		}
		if tr.Conditions, err = entity.DecodeConditions(specs); err != nil {
			return err
		}
		if step := steps[stepID]; step != nil {
			step.Transitions = append(step.Transitions, tr)
		}
	}
	return rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanDefinition(row rowScanner) (*entity.WorkflowDefinition, error) {
	var def entity.WorkflowDefinition
	var departmentID, initialStep, parentID sql.NullString

	err := row.Scan(
		&def.ID,
		&def.OrganizationID,
		&departmentID,
		&def.Name,
		&def.Description,
		&def.TriggerType,
		&initialStep,
		&def.IsActive,
		&def.Version,
		&parentID,
		&def.CreatedAt,
		&def.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	def.DepartmentID = stringPtr(departmentID)
	def.InitialStepName = stringPtr(initialStep)
	def.ParentID = stringPtr(parentID)
	return &def, nil
}

func decodeAssignee(raw string) (entity.AssigneeLogic, error) {
	var spec entity.AssigneeSpec
	if err := json.Unmarshal([]byte(raw), &spec); err != nil {
		return nil, fmt.Errorf("failed to decode assignee: %w", err)
	}
	return entity.DecodeAssignee(spec)
}

func nonNilFields(fields []entity.FormField) []entity.FormField {
	if fields == nil {
		return []entity.FormField{}
	}
	return fields
}

// Verify interface compliance
var _ port.DefinitionRepository = (*DefinitionRepository)(nil)
