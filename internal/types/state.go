package types

type PowerState string

const (
	PowerInit      PowerState = "init"
	PowerActive    PowerState = "active"
	PowerSuspended PowerState = "suspended"
)

// ConnState mirrors the wireless module's link state.
type ConnState string

const (
	ConnUnknown      ConnState = ""
	ConnConnected    ConnState = "connected"
	ConnDisconnected ConnState = "disconnected"
	ConnPairing      ConnState = "pairing"
	ConnSleeping     ConnState = "sleeping"
)

// DevCtrl is a control command for the wireless module.
type DevCtrl string

const (
	DevCtrlUSB        DevCtrl = "usb"
	DevCtrlBT1        DevCtrl = "bt1"
	DevCtrlBT2        DevCtrl = "bt2"
	DevCtrlBT3        DevCtrl = "bt3"
	DevCtrl2G4        DevCtrl = "2g4"
	DevCtrlPair       DevCtrl = "pair"
	DevCtrlFwVersion  DevCtrl = "fw-version"
	DevCtrlSleepBTEn  DevCtrl = "sleep-bt-en"
	DevCtrlSleep2G4En DevCtrl = "sleep-2g4-en"
)

// KeyResult is returned by key hooks. Handled stops the hook chain.
type KeyResult int

const (
	KeyPassThrough KeyResult = iota
	KeyHandled
)
