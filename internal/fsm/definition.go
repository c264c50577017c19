package fsm

import (
	"time"

	"github.com/librescoot/librefsm"
)

// DefaultPostInitDelay is the time the wireless module gets after start
// before it is configured.
const DefaultPostInitDelay = 100 * time.Millisecond

// NewDefinition creates the keyboard power FSM definition.
// The actions parameter provides the implementation for state entry and
// guards.
func NewDefinition(actions Actions, postInitDelay time.Duration) *librefsm.Definition {
	if postInitDelay <= 0 {
		postInitDelay = DefaultPostInitDelay
	}

	return librefsm.NewDefinition().
		State(StateInit,
			librefsm.WithTimeout(postInitDelay, EvPostInitTimeout),
		).
		State(StateActive,
			librefsm.WithOnEnter(actions.EnterActive),
		).
		State(StateSuspended,
			librefsm.WithOnEnter(actions.EnterSuspended),
		).

		// === Transitions ===

		// From Init
		Transition(StateInit, EvPostInitTimeout, StateActive,
			librefsm.WithAction(actions.OnPostInit),
		).

		// From Active - drain mode keeps the keyboard lit
		Transition(StateActive, EvSuspend, StateSuspended,
			librefsm.WithGuard(actions.CanSuspend),
		).

		// From Suspended
		Transition(StateSuspended, EvWakeup, StateActive,
			librefsm.WithAction(actions.OnWakeup),
		).

		// Initial state
		Initial(StateInit)
}
