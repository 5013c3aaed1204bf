package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/garyjia/approval-engine/internal/application/port"
	"github.com/garyjia/approval-engine/internal/domain/entity"
	domainwf "github.com/garyjia/approval-engine/internal/domain/workflow"
	"github.com/garyjia/approval-engine/internal/infrastructure/persistence/sqlite"
	"github.com/garyjia/approval-engine/pkg/database"
)

func newTestDB(t *testing.T) *sqlite.DB {
	t.Helper()
	raw, err := database.New(database.Config{Path: database.InMemory, MaxOpenConns: 1, MaxIdleConns: 1}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = raw.Close() })
	require.NoError(t, database.NewMigrator(raw, zap.NewNop()).Migrate(database.Schema()))
	return sqlite.NewDB(raw.DB, zap.NewNop())
}

func ptr[T any](v T) *T { return &v }

var baseTime = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func sampleDefinition() *entity.WorkflowDefinition {
	all := entity.ApprovalModeAll
	return &entity.WorkflowDefinition{
		ID:              "def-1",
		OrganizationID:  "org-1",
		DepartmentID:    ptr("dept-9"),
		Name:            "Expense approval",
		Description:     "Two level approval",
		TriggerType:     entity.TriggerTypeExpense,
		InitialStepName: ptr("submitter-review"),
		IsActive:        true,
		Version:         1,
		CreatedAt:       baseTime,
		UpdatedAt:       baseTime,
		Steps: []*entity.Step{
			{
				ID:                     "step-1",
				Name:                   "submitter-review",
				Order:                  1,
				AllConditionsMustMatch: true,
				Assignee:               entity.SubmitterAssignee{},
				FormFields:             []entity.FormField{{Name: "costCenter", Label: "Cost center", Type: "text", Required: true}},
				Actions: []*entity.Action{
					{ID: "act-1", Name: "submit", Label: "Submit", Type: entity.ActionTypePrimary, Order: 1},
					{ID: "act-2", Name: "withdraw", Label: "Withdraw", Type: entity.ActionTypeSecondary, Order: 2},
				},
				Transitions: []*entity.Transition{
					{ID: "tr-1", ActionName: "submit", ToStepName: ptr("manager-review"), Conditions: []entity.Condition{
						entity.FormFieldCondition{SourceFieldName: "urgent", Operator: entity.OperatorEquals, ComparisonValue: true, ValueType: entity.ValueTypeBoolean},
					}},
					{ID: "tr-2", ActionName: "withdraw"},
				},
			},
			{
				ID:                     "step-2",
				Name:                   "manager-review",
				Order:                  2,
				AllConditionsMustMatch: false,
				Assignee:               entity.RoleAssignee{Role: "MANAGER"},
				ApprovalMode:           entity.ApprovalModeAnyOne,
				Conditions: []entity.Condition{
					entity.AmountRangeCondition{MinAmount: ptr(100.0), MaxAmount: ptr(5000.0)},
					entity.LocationCondition{LocationID: "loc-7"},
				},
				Actions: []*entity.Action{
					{ID: "act-3", Name: "approve", Label: "Approve", Type: entity.ActionTypePrimary, Order: 1,
						Assignee: entity.MemberAssignee{MemberID: "cfo"}, ApprovalMode: &all},
				},
			},
		},
	}
}

func countRows(t *testing.T, db *sqlite.DB, table string) int {
	t.Helper()
	var n int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM "+table).Scan(&n))
	return n
}

func TestDefinitionRepository_RoundTrip(t *testing.T) {
	db := newTestDB(t)
	repo := NewDefinitionRepository(db, zap.NewNop())
	ctx := context.Background()

	want := sampleDefinition()
	require.NoError(t, repo.Create(ctx, want))

	got, err := repo.GetByID(ctx, "def-1")
	require.NoError(t, err)
	require.NotNil(t, got)

	assert.Equal(t, want.Name, got.Name)
	assert.Equal(t, "dept-9", *got.DepartmentID)
	assert.Equal(t, "submitter-review", *got.InitialStepName)
	assert.Nil(t, got.ParentID)
	assert.True(t, got.IsActive)
	require.Len(t, got.Steps, 2)

	first := got.Steps[0]
	assert.Equal(t, entity.SubmitterAssignee{}, first.Assignee)
	assert.Equal(t, want.Steps[0].FormFields, first.FormFields)
	require.Len(t, first.Actions, 2)
	assert.Equal(t, "submit", first.Actions[0].Name)
	assert.Nil(t, first.Actions[0].Assignee)
	require.Len(t, first.Transitions, 2)
	assert.Equal(t, "manager-review", *first.Transitions[0].ToStepName)
	assert.Nil(t, first.Transitions[1].ToStepName)
	require.Len(t, first.Transitions[0].Conditions, 1)
	guard := first.Transitions[0].Conditions[0].(entity.FormFieldCondition)
	assert.Equal(t, true, guard.ComparisonValue)
	assert.Equal(t, entity.ValueTypeBoolean, guard.ValueType)

	second := got.Steps[1]
	assert.False(t, second.AllConditionsMustMatch)
	assert.Equal(t, entity.RoleAssignee{Role: "MANAGER"}, second.Assignee)
	assert.Equal(t, want.Steps[1].Conditions, second.Conditions)
	require.Len(t, second.Actions, 1)
	assert.Equal(t, entity.MemberAssignee{MemberID: "cfo"}, second.Actions[0].Assignee)
	assert.Equal(t, entity.ApprovalModeAll, *second.Actions[0].ApprovalMode)
}

func TestDefinitionRepository_GetMissing(t *testing.T) {
	repo := NewDefinitionRepository(newTestDB(t), zap.NewNop())

	got, err := repo.GetByID(context.Background(), "nope")
	assert.NoError(t, err)
	assert.Nil(t, got)
}

func TestDefinitionRepository_ListAndActivate(t *testing.T) {
	db := newTestDB(t)
	repo := NewDefinitionRepository(db, zap.NewNop())
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, sampleDefinition()))
	other := sampleDefinition()
	other.ID = "def-2"
	for _, s := range other.Steps {
		s.ID = other.ID + s.ID
		for _, a := range s.Actions {
			a.ID = other.ID + a.ID
		}
		for _, tr := range s.Transitions {
			tr.ID = other.ID + tr.ID
		}
	}
	require.NoError(t, repo.Create(ctx, other))

	require.NoError(t, repo.SetActive(ctx, "def-2", false))

	all, err := repo.ListByOrganization(ctx, "org-1", false)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	active, err := repo.ListByOrganization(ctx, "org-1", true)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "def-1", active[0].ID)
	assert.Len(t, active[0].Steps, 2)

	err = repo.SetActive(ctx, "missing", true)
	assert.ErrorIs(t, err, domainwf.ErrNotFound)
}

func TestDefinitionRepository_Replace(t *testing.T) {
	db := newTestDB(t)
	repo := NewDefinitionRepository(db, zap.NewNop())
	ctx := context.Background()
	require.NoError(t, repo.Create(ctx, sampleDefinition()))

	updated := sampleDefinition()
	updated.Name = "Expense approval v1.1"
	updated.Steps = updated.Steps[:1]
	updated.Steps[0].Transitions = nil
	require.NoError(t, repo.Replace(ctx, updated))

	got, err := repo.GetByID(ctx, "def-1")
	require.NoError(t, err)
	assert.Equal(t, "Expense approval v1.1", got.Name)
	require.Len(t, got.Steps, 1)
	assert.Empty(t, got.Steps[0].Transitions)
	assert.Equal(t, 0, countRows(t, db, "step_conditions"))
	assert.Equal(t, 0, countRows(t, db, "step_transitions"))
}

func TestDefinitionRepository_Delete(t *testing.T) {
	db := newTestDB(t)
	repo := NewDefinitionRepository(db, zap.NewNop())
	ctx := context.Background()
	require.NoError(t, repo.Create(ctx, sampleDefinition()))

	require.NoError(t, repo.Delete(ctx, "def-1"))

	for _, table := range []string{"workflow_definitions", "workflow_steps", "step_conditions", "step_actions", "step_transitions"} {
		assert.Equal(t, 0, countRows(t, db, table), table)
	}
	assert.ErrorIs(t, repo.Delete(ctx, "def-1"), domainwf.ErrNotFound)
}

func TestDefinitionRepository_DeleteRollsBackOnFailure(t *testing.T) {
	db := newTestDB(t)
	repo := NewDefinitionRepository(db, zap.NewNop())
	ctx := context.Background()
	require.NoError(t, repo.Create(ctx, sampleDefinition()))

	// Children are removed before the header row, so this fails midway
	_, err := db.Exec(`
		CREATE TRIGGER fail_definition_delete BEFORE DELETE ON workflow_definitions
		BEGIN
			SELECT RAISE(ABORT, 'injected failure');
		END;
	`)
	require.NoError(t, err)

	err = repo.Delete(ctx, "def-1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "injected failure")

	assert.Equal(t, 1, countRows(t, db, "workflow_definitions"))
	assert.Equal(t, 2, countRows(t, db, "workflow_steps"))
	assert.Equal(t, 2, countRows(t, db, "step_conditions"))
	assert.Equal(t, 3, countRows(t, db, "step_actions"))
	assert.Equal(t, 2, countRows(t, db, "step_transitions"))

	got, err := repo.GetByID(ctx, "def-1")
	require.NoError(t, err)
	assert.Len(t, got.Steps, 2)
}

func sampleInstance() *entity.WorkflowInstance {
	return &entity.WorkflowInstance{
		ID:             "inst-1",
		WorkflowID:     "def-1",
		OrganizationID: "org-1",
		SubmittedByID:  "alice",
		CurrentStepID:  "step-1",
		Status:         entity.StatusInProgress,
		Context:        entity.RequestContext{"amount": 1500.0, "tags": []any{"travel"}},
		StepData:       map[string]any{},
		Version:        1,
		CreatedAt:      baseTime,
		UpdatedAt:      baseTime,
		StepEnteredAt:  baseTime,
	}
}

func TestInstanceRepository_CompareAndSet(t *testing.T) {
	db := newTestDB(t)
	repo := NewInstanceRepository(db.DB, zap.NewNop())
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, sampleInstance()))

	got, err := repo.GetByID(ctx, "inst-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, 1500.0, got.Context["amount"])
	assert.Equal(t, []any{"travel"}, got.Context["tags"])
	assert.Nil(t, got.CompletedAt)

	got.Decisions = append(got.Decisions, entity.DecisionEntry{
		ActorID: "mgr-1", ActionName: "approve", Decision: entity.DecisionApprove, DecidedAt: baseTime,
	})
	got.Version = 2
	require.NoError(t, repo.Update(ctx, got, 1))

	got.Version = 3
	err = repo.Update(ctx, got, 1)
	assert.True(t, errors.Is(err, port.ErrVersionConflict))

	stored, err := repo.GetByID(ctx, "inst-1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), stored.Version)
	require.Len(t, stored.Decisions, 1)
	assert.Equal(t, "mgr-1", stored.Decisions[0].ActorID)
}

func TestInstanceRepository_ActiveQueries(t *testing.T) {
	db := newTestDB(t)
	repo := NewInstanceRepository(db.DB, zap.NewNop())
	ctx := context.Background()

	active := sampleInstance()
	require.NoError(t, repo.Create(ctx, active))

	done := sampleInstance()
	done.ID = "inst-2"
	done.Status = entity.StatusApproved
	done.CompletedAt = &baseTime
	require.NoError(t, repo.Create(ctx, done))

	elsewhere := sampleInstance()
	elsewhere.ID = "inst-3"
	elsewhere.OrganizationID = "org-2"
	require.NoError(t, repo.Create(ctx, elsewhere))

	list, err := repo.ListActive(ctx, "org-1")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "inst-1", list[0].ID)

	list, err = repo.ListActive(ctx, "")
	require.NoError(t, err)
	assert.Len(t, list, 2)

	count, err := repo.CountActiveByDefinition(ctx, "def-1")
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	missing, err := repo.GetByID(ctx, "nope")
	assert.NoError(t, err)
	assert.Nil(t, missing)
}

func TestHistoryRepository_AppendOnly(t *testing.T) {
	db := newTestDB(t)
	instances := NewInstanceRepository(db.DB, zap.NewNop())
	history := NewHistoryRepository(db.DB, zap.NewNop())
	ctx := context.Background()
	require.NoError(t, instances.Create(ctx, sampleInstance()))

	records := []*entity.StepExecutionRecord{
		{ID: "r-1", WorkflowInstanceID: "inst-1", StepID: "step-1", StepName: "submitter-review",
			ActorID: "alice", Kind: entity.RecordKindInitiated, DataSnapshot: map[string]any{"amount": 1500.0}, Timestamp: baseTime},
		{ID: "r-2", WorkflowInstanceID: "inst-1", StepID: "step-1", StepName: "submitter-review",
			ActorID: "alice", Kind: entity.RecordKindDecision, ActionTaken: "submit", Decision: entity.DecisionApprove, Timestamp: baseTime},
	}
	err := db.WithTransaction(ctx, func(ctx context.Context) error {
		for _, rec := range records {
			if err := history.Append(ctx, rec); err != nil {
				return err
			}
		}
		return nil
	})
	require.NoError(t, err)

	got, err := history.ListByInstance(ctx, "inst-1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "r-1", got[0].ID)
	assert.Equal(t, 1500.0, got[0].DataSnapshot["amount"])
	assert.Equal(t, entity.DecisionApprove, got[1].Decision)
	assert.Nil(t, got[1].DataSnapshot)

	_, err = db.Exec(`DELETE FROM step_execution_records WHERE id = 'r-1'`)
	assert.Error(t, err)
}

func TestTransaction_RollsBackHistoryWithInstance(t *testing.T) {
	db := newTestDB(t)
	instances := NewInstanceRepository(db.DB, zap.NewNop())
	history := NewHistoryRepository(db.DB, zap.NewNop())
	ctx := context.Background()

	boom := errors.New("boom")
	err := db.WithTransaction(ctx, func(ctx context.Context) error {
		if err := instances.Create(ctx, sampleInstance()); err != nil {
			return err
		}
		if err := history.Append(ctx, &entity.StepExecutionRecord{
			ID: "r-1", WorkflowInstanceID: "inst-1", ActorID: "alice", Kind: entity.RecordKindInitiated, Timestamp: baseTime,
		}); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 0, countRows(t, db, "workflow_instances"))
	assert.Equal(t, 0, countRows(t, db, "step_execution_records"))
}

func TestMemberRepository(t *testing.T) {
	db := newTestDB(t)
	repo := NewMemberRepository(db.DB, zap.NewNop())
	ctx := context.Background()

	members := []*entity.Member{
		{ID: "mgr-1", OrganizationID: "org-1", DisplayName: "Manager", Roles: []string{"MANAGER"}, IsActive: true, UpdatedAt: baseTime},
		{ID: "mgr-2", OrganizationID: "org-1", DisplayName: "Old manager", Roles: []string{"manager"}, IsActive: false, UpdatedAt: baseTime},
		{ID: "mgr-3", OrganizationID: "org-2", Roles: []string{"MANAGER"}, IsActive: true, UpdatedAt: baseTime},
	}
	for _, m := range members {
		require.NoError(t, repo.Upsert(ctx, m))
	}

	managers, err := repo.ListActiveByRole(ctx, "org-1", " Manager ")
	require.NoError(t, err)
	require.Len(t, managers, 1)
	assert.Equal(t, "mgr-1", managers[0].ID)

	members[1].IsActive = true
	members[1].IsAdmin = true
	members[1].LarkOpenID = "ou_123"
	require.NoError(t, repo.Upsert(ctx, members[1]))

	got, err := repo.GetMember(ctx, "mgr-2")
	require.NoError(t, err)
	assert.True(t, got.IsActive)
	assert.True(t, got.IsAdmin)
	assert.Equal(t, "ou_123", got.LarkOpenID)
	assert.Equal(t, []string{"manager"}, got.Roles)

	all, err := repo.ListByOrganization(ctx, "org-1")
	require.NoError(t, err)
	assert.Len(t, all, 2)

	missing, err := repo.GetMember(ctx, "ghost")
	assert.NoError(t, err)
	assert.Nil(t, missing)
}
