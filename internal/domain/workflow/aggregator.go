package workflow

import "github.com/garyjia/approval-engine/internal/domain/entity"

// Outcome is the aggregated result of decisions on a step
type Outcome string

const (
	OutcomePending  Outcome = "PENDING"
	OutcomeApproved Outcome = "APPROVED"
	OutcomeRejected Outcome = "REJECTED"
)

// Aggregate folds the decisions of qualifying approvers into an outcome.
// Decisions from actors outside approvers are ignored.
func Aggregate(mode entity.ApprovalMode, approvers []string, decisions []entity.DecisionEntry) Outcome {
	qualifying := make(map[string]bool, len(approvers))
	for _, id := range approvers {
		qualifying[id] = true
	}

	approved := make(map[string]bool)
	for _, d := range decisions {
		if !qualifying[d.ActorID] {
			continue
		}
		if d.Decision == entity.DecisionReject {
			return OutcomeRejected
		}
		if d.Decision == entity.DecisionApprove {
			approved[d.ActorID] = true
		}
	}

	switch mode {
	case entity.ApprovalModeAll:
		if len(qualifying) > 0 && len(approved) == len(qualifying) {
			return OutcomeApproved
		}
		return OutcomePending
	default:
		if len(approved) > 0 {
			return OutcomeApproved
		}
		return OutcomePending
	}
}
