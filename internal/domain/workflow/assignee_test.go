package workflow

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/garyjia/approval-engine/internal/domain/entity"
)

func TestAssigneeResolver_Resolve(t *testing.T) {
	roster := newFakeRoster(
		&entity.Member{ID: "m1", OrganizationID: "org-1", Roles: []string{"Manager"}, IsActive: true},
		&entity.Member{ID: "m2", OrganizationID: "org-1", Roles: []string{"role-manager", "MANAGER"}, IsActive: true},
		&entity.Member{ID: "m3", OrganizationID: "org-1", Roles: []string{"manager"}, IsActive: false},
		&entity.Member{ID: "x1", OrganizationID: "org-2", Roles: []string{"manager"}, IsActive: true},
	)
	resolver := NewAssigneeResolver(roster)
	instance := &entity.WorkflowInstance{ID: "i1", OrganizationID: "org-1", SubmittedByID: "sub-9"}
	ctx := context.Background()

	t.Run("submitter", func(t *testing.T) {
		res, err := resolver.Resolve(ctx, entity.SubmitterAssignee{}, instance)
		require.NoError(t, err)
		assert.Equal(t, []string{"sub-9"}, res.Approvers)
		assert.False(t, res.Stalled)
	})

	t.Run("role is case-insensitive and skips inactive and foreign members", func(t *testing.T) {
		res, err := resolver.Resolve(ctx, entity.RoleAssignee{Role: "MANAGER"}, instance)
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{"m1", "m2"}, res.Approvers)
		assert.True(t, res.Contains("m2"))
		assert.False(t, res.Contains("x1"))
	})

	t.Run("role with nobody is stalled", func(t *testing.T) {
		res, err := resolver.Resolve(ctx, entity.RoleAssignee{Role: "CFO"}, instance)
		require.NoError(t, err)
		assert.Empty(t, res.Approvers)
		assert.True(t, res.Stalled)
	})

	t.Run("specific member", func(t *testing.T) {
		res, err := resolver.Resolve(ctx, entity.MemberAssignee{MemberID: "m1"}, instance)
		require.NoError(t, err)
		assert.Equal(t, []string{"m1"}, res.Approvers)
	})

	t.Run("specific member from another organization", func(t *testing.T) {
		_, err := resolver.Resolve(ctx, entity.MemberAssignee{MemberID: "x1"}, instance)
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrInvalidAssignee))

		var invalid *InvalidAssigneeError
		require.ErrorAs(t, err, &invalid)
		assert.Equal(t, "x1", invalid.MemberID)
	})

	t.Run("unknown member", func(t *testing.T) {
		_, err := resolver.Resolve(ctx, entity.MemberAssignee{MemberID: "ghost"}, instance)
		assert.ErrorIs(t, err, ErrInvalidAssignee)
	})

	t.Run("unassigned auto advances", func(t *testing.T) {
		res, err := resolver.Resolve(ctx, entity.UnassignedAssignee{}, instance)
		require.NoError(t, err)
		assert.True(t, res.AutoAdvance)
		assert.Empty(t, res.Approvers)
	})

	t.Run("roster failure is wrapped", func(t *testing.T) {
		failing := NewAssigneeResolver(&fakeRoster{err: errors.New("db down")})
		_, err := failing.Resolve(ctx, entity.RoleAssignee{Role: "MANAGER"}, instance)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "db down")
	})
}

func TestAssigneeResolver_ResolveStep(t *testing.T) {
	roster := newFakeRoster(&entity.Member{ID: "m1", OrganizationID: "org-1", Roles: []string{"FINANCE"}, IsActive: true})
	resolver := NewAssigneeResolver(roster)
	instance := &entity.WorkflowInstance{OrganizationID: "org-1", SubmittedByID: "sub"}

	step := &entity.Step{
		Name:     "pay",
		Assignee: entity.SubmitterAssignee{},
		Actions: []*entity.Action{
			{Name: "confirm"},
			{Name: "pay", Assignee: entity.RoleAssignee{Role: "finance"}},
		},
	}

	resolutions, err := resolver.ResolveStep(context.Background(), step, instance)
	require.NoError(t, err)
	assert.Equal(t, []string{"sub"}, resolutions["confirm"].Approvers)
	assert.Equal(t, []string{"m1"}, resolutions["pay"].Approvers)
	assert.ElementsMatch(t, []string{"sub", "m1"}, Union(resolutions))
}
