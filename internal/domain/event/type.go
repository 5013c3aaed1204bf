package event

// Type identifies the type of domain event
type Type string

const (
	TypeInstanceSubmitted Type = "instance.submitted"
	TypeStepEntered       Type = "step.entered"
	TypeDecisionRecorded  Type = "decision.recorded"
	TypeStepStalled       Type = "step.stalled"
	TypeInstanceApproved  Type = "instance.approved"
	TypeInstanceRejected  Type = "instance.rejected"
	TypeInstanceCancelled Type = "instance.cancelled"
)

// String returns the string representation of the event type
func (t Type) String() string {
	return string(t)
}

// IsValid checks if the event type is one of the defined constants
func (t Type) IsValid() bool {
	switch t {
	case TypeInstanceSubmitted,
		TypeStepEntered,
		TypeDecisionRecorded,
		TypeStepStalled,
		TypeInstanceApproved,
		TypeInstanceRejected,
		TypeInstanceCancelled:
		return true
	default:
		return false
	}
}

// Payload keys shared by publishers and subscribers
const (
	PayloadDefinitionID = "definition_id"
	PayloadDefinition   = "definition_name"
	PayloadStepID       = "step_id"
	PayloadStepName     = "step_name"
	PayloadApprovers    = "approvers"
	PayloadActorID      = "actor_id"
	PayloadAction       = "action"
	PayloadDecision     = "decision"
	PayloadStatus       = "status"
	PayloadReason       = "reason"
	PayloadSubmittedBy  = "submitted_by"
	PayloadOrganization = "organization_id"
)
