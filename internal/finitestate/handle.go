package finitestate

import (
	"log/slog"

	"github.com/robbyt/go-fsm"
)

// Engine handle states.
const (
	HandleUninitialized = "Uninitialized"
	HandleLoaded        = "Loaded"
	HandleActive        = "Active"
	HandleStale         = "Stale"
	HandleDestroyed     = "Destroyed"
)

// HandleTransitions is the lifecycle of one engine handle. A loaded handle is
// either promoted by its owner or discarded; an active handle goes stale when
// a newer one replaces it, or is destroyed directly on shutdown.
var HandleTransitions = map[string][]string{
	HandleUninitialized: {HandleLoaded, HandleDestroyed},
	HandleLoaded:        {HandleActive, HandleDestroyed},
	HandleActive:        {HandleStale, HandleDestroyed},
	HandleStale:         {HandleDestroyed},
	HandleDestroyed:     {},
}

// NewHandleMachine creates a state machine for an engine handle.
func NewHandleMachine(handler slog.Handler) (Machine, error) {
	return fsm.New(handler, HandleUninitialized, HandleTransitions)
}
