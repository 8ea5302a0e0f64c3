// Package lifecycle implements the gate run state machine.
package lifecycle

import (
	"fmt"

	"github.com/dwsmith1983/testgate/pkg/types"
)

// Transition table: from -> allowed tos. A short-circuited run goes straight
// from PENDING to COMPLETED without running the fleet.
var validTransitions = map[types.RunStatus][]types.RunStatus{
	types.RunPending:   {types.RunRunning, types.RunCompleted, types.RunCancelled},
	types.RunRunning:   {types.RunCompleted, types.RunCancelled},
	types.RunCompleted: {},
	types.RunCancelled: {},
}

// CanTransition checks if transitioning from one run status to another is valid.
func CanTransition(from, to types.RunStatus) bool {
	allowed, ok := validTransitions[from]
	if !ok {
		return false
	}
	for _, s := range allowed {
		if s == to {
			return true
		}
	}
	return false
}

// Transition validates and returns the new status, or an error if the transition is invalid.
func Transition(from, to types.RunStatus) error {
	if !CanTransition(from, to) {
		return fmt.Errorf("invalid transition from %s to %s", from, to)
	}
	return nil
}

// IsTerminal returns true if the status is a terminal (final) state.
func IsTerminal(status types.RunStatus) bool {
	return status == types.RunCompleted || status == types.RunCancelled
}
