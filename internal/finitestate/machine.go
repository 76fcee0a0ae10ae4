// Package finitestate wraps go-fsm with the lifecycles used by luagate: the
// supervisor-facing runner lifecycle, and the lifecycle of a single Lua engine
// handle.
package finitestate

import (
	"context"
	"log/slog"

	"github.com/robbyt/go-fsm"
)

const (
	StatusNew       = fsm.StatusNew
	StatusBooting   = fsm.StatusBooting
	StatusRunning   = fsm.StatusRunning
	StatusReloading = fsm.StatusReloading
	StatusStopping  = fsm.StatusStopping
	StatusStopped   = fsm.StatusStopped
	StatusError     = fsm.StatusError
	StatusUnknown   = fsm.StatusUnknown
)

// TypicalTransitions is the runner lifecycle.
var TypicalTransitions = fsm.TypicalTransitions

// Machine is the subset of go-fsm used across luagate.
type Machine interface {
	// Transition attempts to transition the state machine to the specified state.
	Transition(state string) error

	// TransitionIfCurrentState transitions only when the machine is in currentState.
	TransitionIfCurrentState(currentState, newState string) error

	// SetState sets the state of the state machine to the specified state.
	SetState(state string) error

	// GetState returns the current state of the state machine.
	GetState() string

	// GetStateChan returns a channel that emits the state machine's state whenever it changes.
	// The channel is closed when the provided context is canceled.
	GetStateChan(ctx context.Context) <-chan string
}

// New creates a runner state machine using the typical transitions.
func New(handler slog.Handler) (Machine, error) {
	return fsm.New(handler, StatusNew, TypicalTransitions)
}
