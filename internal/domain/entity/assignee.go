package entity

import (
	"fmt"
	"strings"
)

// AssigneeKind tags an AssigneeLogic variant
type AssigneeKind string

const (
	AssigneeKindSubmitter      AssigneeKind = "SUBMITTER"
	AssigneeKindSpecificRole   AssigneeKind = "SPECIFIC_ROLE"
	AssigneeKindSpecificMember AssigneeKind = "SPECIFIC_MEMBER"
	AssigneeKindUnassigned     AssigneeKind = "UNASSIGNED"
)

// AssigneeLogic describes who may act on a step. Closed set of variants.
type AssigneeLogic interface {
	Kind() AssigneeKind
	sealedAssignee()
}

// SubmitterAssignee routes the step back to whoever submitted the request
type SubmitterAssignee struct{}

// RoleAssignee routes the step to every active member holding Role
type RoleAssignee struct {
	Role string
}

// MemberAssignee routes the step to one named member
type MemberAssignee struct {
	MemberID string
}

// UnassignedAssignee marks a step that advances without a human decision
type UnassignedAssignee struct{}

func (SubmitterAssignee) Kind() AssigneeKind  { return AssigneeKindSubmitter }
func (RoleAssignee) Kind() AssigneeKind       { return AssigneeKindSpecificRole }
func (MemberAssignee) Kind() AssigneeKind     { return AssigneeKindSpecificMember }
func (UnassignedAssignee) Kind() AssigneeKind { return AssigneeKindUnassigned }

func (SubmitterAssignee) sealedAssignee()  {}
func (RoleAssignee) sealedAssignee()       {}
func (MemberAssignee) sealedAssignee()     {}
func (UnassignedAssignee) sealedAssignee() {}

// AssigneeSpec is the wire/storage shape of an AssigneeLogic
type AssigneeSpec struct {
	Type     AssigneeKind `json:"type" yaml:"type"`
	Role     *string      `json:"role,omitempty" yaml:"role,omitempty"`
	MemberID *string      `json:"memberId,omitempty" yaml:"memberId,omitempty"`
}

// DecodeAssignee converts a wire spec into its typed AssigneeLogic
func DecodeAssignee(spec AssigneeSpec) (AssigneeLogic, error) {
	switch AssigneeKind(strings.ToUpper(string(spec.Type))) {
	case AssigneeKindSubmitter:
		return SubmitterAssignee{}, nil
	case AssigneeKindSpecificRole:
		if spec.Role == nil || strings.TrimSpace(*spec.Role) == "" {
			return nil, fmt.Errorf("%s assignee requires a role", AssigneeKindSpecificRole)
		}
		return RoleAssignee{Role: strings.TrimSpace(*spec.Role)}, nil
	case AssigneeKindSpecificMember:
		if spec.MemberID == nil || strings.TrimSpace(*spec.MemberID) == "" {
			return nil, fmt.Errorf("%s assignee requires a memberId", AssigneeKindSpecificMember)
		}
		return MemberAssignee{MemberID: strings.TrimSpace(*spec.MemberID)}, nil
	case AssigneeKindUnassigned, "":
		return UnassignedAssignee{}, nil
	default:
		return nil, fmt.Errorf("unknown assignee type %q", spec.Type)
	}
}

// EncodeAssignee converts a typed AssigneeLogic into its wire spec
func EncodeAssignee(a AssigneeLogic) AssigneeSpec {
	switch v := a.(type) {
	case SubmitterAssignee:
		return AssigneeSpec{Type: AssigneeKindSubmitter}
	case RoleAssignee:
		return AssigneeSpec{Type: AssigneeKindSpecificRole, Role: strPtr(v.Role)}
	case MemberAssignee:
		return AssigneeSpec{Type: AssigneeKindSpecificMember, MemberID: strPtr(v.MemberID)}
	default:
		return AssigneeSpec{Type: AssigneeKindUnassigned}
	}
}
