package fsm

import "github.com/librescoot/librefsm"

// Actions defines the interface for keyboard power state machine actions.
// core.Keyboard implements this interface.
type Actions interface {
	// State entry actions
	EnterActive(c *librefsm.Context) error
	EnterSuspended(c *librefsm.Context) error

	// Guards for conditional transitions
	CanSuspend(c *librefsm.Context) bool // False while battery-drain mode keeps the LEDs on

	// Transition actions
	OnPostInit(c *librefsm.Context) error // Module setup commands and stored device re-apply
	OnWakeup(c *librefsm.Context) error   // LED power on and current device re-apply
}
