package workflow

// Trigger is an event that moves an instance between lifecycle states
type Trigger string

const (
	// TriggerEnterStep moves a freshly submitted instance onto its first step
	TriggerEnterStep Trigger = "ENTER_STEP"
	// TriggerAdvance moves an in-progress instance to another step
	TriggerAdvance Trigger = "ADVANCE"
	TriggerApprove Trigger = "APPROVE"
	TriggerReject  Trigger = "REJECT"
	TriggerCancel  Trigger = "CANCEL"
)

// String returns the string representation of the trigger
func (t Trigger) String() string {
	return string(t)
}
