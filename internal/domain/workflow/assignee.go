package workflow

import (
	"context"
	"fmt"

	"github.com/garyjia/approval-engine/internal/domain/entity"
)

// Roster looks up organization members
type Roster interface {
	// GetMember returns nil, nil when the member does not exist
	GetMember(ctx context.Context, memberID string) (*entity.Member, error)

	// ListActiveByRole returns active members of the organization holding role (name or id)
	ListActiveByRole(ctx context.Context, organizationID, role string) ([]*entity.Member, error)
}

// Resolution is the set of members who may decide on a step
type Resolution struct {
	Approvers []string
	// Stalled is set when a human decision is expected but nobody qualifies
	Stalled bool
	// AutoAdvance is set for UNASSIGNED steps
	AutoAdvance bool
}

// Contains reports whether memberID is in the approver set
func (r Resolution) Contains(memberID string) bool {
	for _, id := range r.Approvers {
		if id == memberID {
			return true
		}
	}
	return false
}

// AssigneeResolver turns AssigneeLogic into concrete approvers
type AssigneeResolver struct {
	roster Roster
}

// NewAssigneeResolver creates a resolver backed by a roster
func NewAssigneeResolver(roster Roster) *AssigneeResolver {
	return &AssigneeResolver{roster: roster}
}

// Resolve returns the approvers for logic in the context of instance
func (r *AssigneeResolver) Resolve(ctx context.Context, logic entity.AssigneeLogic, instance *entity.WorkflowInstance) (Resolution, error) {
	switch a := logic.(type) {
	case entity.SubmitterAssignee:
		return Resolution{Approvers: []string{instance.SubmittedByID}}, nil

	case entity.MemberAssignee:
		member, err := r.roster.GetMember(ctx, a.MemberID)
		if err != nil {
			return Resolution{}, fmt.Errorf("failed to get member %s: %w", a.MemberID, err)
		}
		if member == nil {
			return Resolution{}, &InvalidAssigneeError{
				MemberID: a.MemberID, OrganizationID: instance.OrganizationID, Reason: "member does not exist",
			}
		}
		if member.OrganizationID != instance.OrganizationID {
			return Resolution{}, &InvalidAssigneeError{
				MemberID: a.MemberID, OrganizationID: instance.OrganizationID, Reason: "member belongs to another organization",
			}
		}
		if !member.IsActive {
			return Resolution{Approvers: []string{}, Stalled: true}, nil
		}
		return Resolution{Approvers: []string{member.ID}}, nil

	case entity.RoleAssignee:
		members, err := r.roster.ListActiveByRole(ctx, instance.OrganizationID, a.Role)
		if err != nil {
			return Resolution{}, fmt.Errorf("failed to list members with role %s: %w", a.Role, err)
		}
		approvers := make([]string, 0, len(members))
		for _, m := range members {
			approvers = append(approvers, m.ID)
		}
		return Resolution{Approvers: approvers, Stalled: len(approvers) == 0}, nil

	case entity.UnassignedAssignee, nil:
		return Resolution{Approvers: []string{}, AutoAdvance: true}, nil

	default:
		return Resolution{}, fmt.Errorf("unsupported assignee logic %T", logic)
	}
}

// ResolveStep resolves approvers for every action of a step, keyed by action name.
// A step without actions resolves its own assignee under the empty key.
func (r *AssigneeResolver) ResolveStep(ctx context.Context, step *entity.Step, instance *entity.WorkflowInstance) (map[string]Resolution, error) {
	out := make(map[string]Resolution, len(step.Actions))
	if len(step.Actions) == 0 {
		res, err := r.Resolve(ctx, step.EffectiveAssignee(nil), instance)
		if err != nil {
			return nil, err
		}
		out[""] = res
		return out, nil
	}
	for _, a := range step.Actions {
		res, err := r.Resolve(ctx, step.EffectiveAssignee(a), instance)
		if err != nil {
			return nil, err
		}
		out[a.Name] = res
	}
	return out, nil
}

// Union merges the approver sets of several resolutions, preserving first-seen order
func Union(resolutions map[string]Resolution) []string {
	seen := make(map[string]bool)
	var ids []string
	for _, res := range resolutions {
		for _, id := range res.Approvers {
			if !seen[id] {
				seen[id] = true
				ids = append(ids, id)
			}
		}
	}
	return ids
}
