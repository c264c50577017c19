package fsm

import "github.com/librescoot/librefsm"

// Keyboard power states
const (
	StateInit      librefsm.StateID = "init"
	StateActive    librefsm.StateID = "active"
	StateSuspended librefsm.StateID = "suspended"
)

// Keyboard power events
const (
	// Timer events
	EvPostInitTimeout librefsm.EventID = "post-init-timeout"

	// Host power events (from the input layer or Redis)
	EvSuspend librefsm.EventID = "suspend"
	EvWakeup  librefsm.EventID = "wakeup"
)
