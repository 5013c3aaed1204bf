package workflow

import (
	"context"
	"strings"

	"github.com/garyjia/approval-engine/internal/domain/entity"
)

func fptr(f float64) *float64 { return &f }

func sptr(s string) *string { return &s }

func modePtr(m entity.ApprovalMode) *entity.ApprovalMode { return &m }

// approvalChain builds a transition-less definition with one approve/reject action per step
func approvalChain(steps ...*entity.Step) *entity.WorkflowDefinition {
	return &entity.WorkflowDefinition{
		ID:             "def-1",
		OrganizationID: "org-1",
		Name:           "chain",
		IsActive:       true,
		Steps:          steps,
	}
}

func approvalStep(name string, order int, assignee entity.AssigneeLogic, conditions ...entity.Condition) *entity.Step {
	return &entity.Step{
		ID:                     "step-" + name,
		Name:                   name,
		Order:                  order,
		AllConditionsMustMatch: true,
		Conditions:             conditions,
		Assignee:               assignee,
		Actions: []*entity.Action{
			{Name: "approve", Label: "Approve", Type: entity.ActionTypePrimary, Order: 1},
		},
	}
}

type fakeRoster struct {
	members map[string]*entity.Member
	err     error
}

func newFakeRoster(members ...*entity.Member) *fakeRoster {
	r := &fakeRoster{members: make(map[string]*entity.Member)}
	for _, m := range members {
		r.members[m.ID] = m
	}
	return r
}

func (r *fakeRoster) GetMember(ctx context.Context, memberID string) (*entity.Member, error) {
	if r.err != nil {
		return nil, r.err
	}
	return r.members[memberID], nil
}

func (r *fakeRoster) ListActiveByRole(ctx context.Context, organizationID, role string) ([]*entity.Member, error) {
	if r.err != nil {
		return nil, r.err
	}
	var out []*entity.Member
	for _, m := range r.members {
		if m.OrganizationID == organizationID && m.IsActive && m.HasRole(strings.TrimSpace(role)) {
			out = append(out, m)
		}
	}
	return out, nil
}
