package entity

// Status constants for WorkflowInstance
const (
	StatusPending    = "PENDING"
	StatusInProgress = "IN_PROGRESS"
	StatusApproved   = "APPROVED"
	StatusRejected   = "REJECTED"
	StatusCancelled  = "CANCELLED"
)

// Decision is the verdict an actor records on a step
type Decision string

const (
	DecisionApprove Decision = "APPROVE"
	DecisionReject  Decision = "REJECT"
)

// IsValid returns true for APPROVE and REJECT
func (d Decision) IsValid() bool {
	return d == DecisionApprove || d == DecisionReject
}

// ActionType distinguishes the main call-to-action of a step from the others
type ActionType string

const (
	ActionTypePrimary   ActionType = "PRIMARY"
	ActionTypeSecondary ActionType = "SECONDARY"
)

// IsValid returns true if the action type is known
func (t ActionType) IsValid() bool {
	return t == ActionTypePrimary || t == ActionTypeSecondary
}

// ApprovalMode determines how many qualifying decisions resolve a step
type ApprovalMode string

const (
	ApprovalModeAnyOne ApprovalMode = "ANY_ONE"
	ApprovalModeAll    ApprovalMode = "ALL"
)

// IsValid returns true if the approval mode is known
func (m ApprovalMode) IsValid() bool {
	return m == ApprovalModeAnyOne || m == ApprovalModeAll
}

// Well-known request context keys read by the built-in condition kinds
const (
	ContextKeyAmount            = "amount"
	ContextKeyLocationID        = "locationId"
	ContextKeyExpenseCategoryID = "expenseCategoryId"
)

// Trigger types a definition can be attached to
const (
	TriggerTypeManual        = "MANUAL"
	TriggerTypeExpense       = "EXPENSE"
	TriggerTypeDocument      = "DOCUMENT"
	TriggerTypeStockMovement = "STOCK_MOVEMENT"
)
