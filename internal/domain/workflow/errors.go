package workflow

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrInvalidTransition is returned when a state transition is not allowed
	ErrInvalidTransition = errors.New("invalid state transition")

	// ErrInvalidState is returned when a state is not valid
	ErrInvalidState = errors.New("invalid state")

	// ErrGuardFailed is returned when a guard condition fails
	ErrGuardFailed = errors.New("guard condition failed")

	ErrNotFound            = errors.New("not found")
	ErrInstanceNotActive   = errors.New("workflow instance is not active")
	ErrAlreadyDecided      = errors.New("actor already decided on this step")
	ErrDefinitionInactive  = errors.New("workflow definition is inactive")
	ErrDefinitionInUse     = errors.New("workflow definition is referenced by active instances")
	ErrValidation          = errors.New("validation failed")
	ErrNoApplicableStep    = errors.New("no applicable step")
	ErrInvalidAssignee     = errors.New("invalid assignee")
	ErrUnauthorizedActor   = errors.New("actor is not authorized for this step")
	ErrStaleStep           = errors.New("stale step version")
	ErrAmbiguousTransition = errors.New("ambiguous transition")
	ErrUnreachableStep     = errors.New("unreachable step")
	ErrAutoAdvanceCycle    = errors.New("auto-advancing steps form a cycle")
)

// NotFoundError names the missing resource
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Resource, e.ID)
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// ValidationError collects every problem found in a definition or request
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed: %s", strings.Join(e.Problems, "; "))
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// Addf records a problem
func (e *ValidationError) Addf(format string, args ...any) {
	e.Problems = append(e.Problems, fmt.Sprintf(format, args...))
}

// ErrOrNil returns the error only when at least one problem was recorded
func (e *ValidationError) ErrOrNil() error {
	if e == nil || len(e.Problems) == 0 {
		return nil
	}
	return e
}

// NewValidationError builds a ValidationError from a single problem
func NewValidationError(format string, args ...any) *ValidationError {
	e := &ValidationError{}
	e.Addf(format, args...)
	return e
}

// NoApplicableStepError means a definition has no step whose conditions match the request
type NoApplicableStepError struct {
	DefinitionID string
}

func (e *NoApplicableStepError) Error() string {
	return fmt.Sprintf("no applicable step in workflow definition %s", e.DefinitionID)
}

func (e *NoApplicableStepError) Is(target error) bool { return target == ErrNoApplicableStep }

// InvalidAssigneeError means a configured assignee cannot act for the instance's organization
type InvalidAssigneeError struct {
	MemberID       string
	OrganizationID string
	Reason         string
}

func (e *InvalidAssigneeError) Error() string {
	return fmt.Sprintf("invalid assignee %s for organization %s: %s", e.MemberID, e.OrganizationID, e.Reason)
}

func (e *InvalidAssigneeError) Is(target error) bool { return target == ErrInvalidAssignee }

// UnauthorizedActorError means an actor tried to act outside their rights
type UnauthorizedActorError struct {
	InstanceID string
	ActorID    string
	Reason     string
}

func (e *UnauthorizedActorError) Error() string {
	return fmt.Sprintf("actor %s not authorized on instance %s: %s", e.ActorID, e.InstanceID, e.Reason)
}

func (e *UnauthorizedActorError) Is(target error) bool { return target == ErrUnauthorizedActor }

// StaleStepError means the caller acted on an outdated view of the instance. Retryable.
type StaleStepError struct {
	InstanceID string
	Expected   int64
	Actual     int64
}

func (e *StaleStepError) Error() string {
	return fmt.Sprintf("instance %s changed: expected version %d, found %d", e.InstanceID, e.Expected, e.Actual)
}

func (e *StaleStepError) Is(target error) bool { return target == ErrStaleStep }

// AmbiguousTransitionError flags transitions of one action whose guards overlap
type AmbiguousTransitionError struct {
	StepName   string
	ActionName string
	Targets    []string
}

func (e *AmbiguousTransitionError) Error() string {
	return fmt.Sprintf("step %q action %q has overlapping transitions to [%s]; the first one always wins",
		e.StepName, e.ActionName, strings.Join(e.Targets, ", "))
}

func (e *AmbiguousTransitionError) Is(target error) bool { return target == ErrAmbiguousTransition }

// UnreachableStepError flags a step no route can enter
type UnreachableStepError struct {
	StepName string
}

func (e *UnreachableStepError) Error() string {
	return fmt.Sprintf("step %q is unreachable", e.StepName)
}

func (e *UnreachableStepError) Is(target error) bool { return target == ErrUnreachableStep }

// AutoAdvanceCycleError means an instance advanced back onto a step it already
// passed without anyone acting
type AutoAdvanceCycleError struct {
	DefinitionID string
	Steps        []string
}

func (e *AutoAdvanceCycleError) Error() string {
	return fmt.Sprintf("workflow definition %s advances automatically in a cycle: %s",
		e.DefinitionID, strings.Join(e.Steps, " -> "))
}

func (e *AutoAdvanceCycleError) Is(target error) bool { return target == ErrAutoAdvanceCycle }
