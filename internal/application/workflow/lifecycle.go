package workflow

import (
	domainwf "github.com/garyjia/approval-engine/internal/domain/workflow"
)

// NewLifecycle creates the status machine of a workflow instance positioned at initialState
func NewLifecycle(initialState domainwf.State) domainwf.StateMachine {
	builder := domainwf.NewBuilder()

	// PENDING: created but not yet placed on a step
	builder.Configure(domainwf.StatePending).
		Permit(domainwf.TriggerEnterStep, domainwf.StateInProgress)

	// IN_PROGRESS: waiting on decisions for the current step
	builder.Configure(domainwf.StateInProgress).
		Permit(domainwf.TriggerAdvance, domainwf.StateInProgress).
		Permit(domainwf.TriggerApprove, domainwf.StateApproved).
		Permit(domainwf.TriggerReject, domainwf.StateRejected).
		Permit(domainwf.TriggerCancel, domainwf.StateCancelled)

	// APPROVED, REJECTED and CANCELLED are terminal

	return builder.Build(initialState)
}
