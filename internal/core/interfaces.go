package core

import (
	"time"

	"kbd-indicator/internal/messaging"
	"kbd-indicator/internal/types"
)

// MessagingClient defines the interface for Redis messaging operations needed by Keyboard
type MessagingClient interface {
	SetCallbacks(callbacks messaging.Callbacks)
	Connect() error
	StartListening() error
	Close() error

	// Config word persistence
	ReadConfigWord() (uint32, error)
	WriteConfigWord(raw uint32) error

	// Wireless module
	SendDevCtrl(cmd types.DevCtrl) error
	GetConnectionState() (types.ConnState, error)

	// Battery
	BatteryLevel() (uint8, error)

	// State publication
	PublishActiveDevice(dev types.DeviceID) error
	PublishBatteryQuery(level uint8) error
	PublishPowerState(state types.PowerState) error
	PublishEvent(kind string, values map[string]interface{}) error

	// Settings
	GetSetting(key string) (string, error)
}

// PowerIO drives the LED and USB power-enable pins
type PowerIO interface {
	SetLEDPower(on bool) error
	SetUSBPower(connected bool) error
}

// LedDriver pushes a finished frame to the LEDs
type LedDriver interface {
	Flush(pixels []types.RGB) error
}

// BatterySource reports the battery level in percent
type BatterySource interface {
	BatteryLevel() (uint8, error)
}

// HistoryRecorder receives battery queries and committed device changes.
// Implementations must not block.
type HistoryRecorder interface {
	RecordBatteryQuery(level uint8, at time.Time)
	RecordDeviceCommit(dev types.DeviceID, paired bool, at time.Time)
}

// KeyHandler is one link of the key hook chain. The chain stops at the
// first handler that returns KeyHandled.
type KeyHandler interface {
	Process(kc types.Keycode, pressed bool) types.KeyResult
}

type KeyHandlerFunc func(kc types.Keycode, pressed bool) types.KeyResult

func (f KeyHandlerFunc) Process(kc types.Keycode, pressed bool) types.KeyResult {
	return f(kc, pressed)
}
