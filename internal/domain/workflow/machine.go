package workflow

import "context"

// StateMachine tracks the lifecycle state of one instance and validates transitions
type StateMachine interface {
	// State returns the current state
	State() State

	// CanFire reports whether the trigger has a transition whose guard passes
	CanFire(ctx context.Context, trigger Trigger) bool

	// Fire executes the trigger, moving to the target state when permitted
	Fire(ctx context.Context, trigger Trigger) error

	// PermittedTriggers returns the configured triggers of the current state, sorted
	PermittedTriggers() []Trigger
}
