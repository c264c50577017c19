// Package wireless tracks the active transport and drives the wireless
// module through devctrl commands.
package wireless

import (
	"kbd-indicator/internal/logger"
	"kbd-indicator/internal/types"
)

// CommandSender delivers devctrl commands to the wireless module.
type CommandSender interface {
	SendDevCtrl(cmd types.DevCtrl) error
}

// StateSource reports the module's link state.
type StateSource interface {
	GetConnectionState() (types.ConnState, error)
}

// USBPower switches the USB data path power.
type USBPower interface {
	SetUSBPower(connected bool) error
}

// ChangeHook is told about every device change after the module has been
// commanded.
type ChangeHook func(old, new types.DeviceID, reset bool)

// Manager is not safe for concurrent use; callers serialize.
type Manager struct {
	logger  *logger.Logger
	sender  CommandSender
	state   StateSource
	usb     USBPower
	hook    ChangeHook
	current types.DeviceID
}

func NewManager(sender CommandSender, state StateSource, usb USBPower, l *logger.Logger) *Manager {
	return &Manager{
		logger:  l,
		sender:  sender,
		state:   state,
		usb:     usb,
		current: types.DeviceUSB,
	}
}

func (m *Manager) SetHook(hook ChangeHook) {
	m.hook = hook
}

func (m *Manager) CurrentDevice() types.DeviceID {
	return m.current
}

// ChangeDevice switches from old to new. With reset set the module is put
// into pairing mode for new instead of reconnecting to it.
func (m *Manager) ChangeDevice(old, new types.DeviceID, reset bool) {
	m.logger.Infof("Device change: %s -> %s (reset=%v)", old, new, reset)

	if old.IsWireless() != new.IsWireless() && m.usb != nil {
		connected := !new.IsWireless()
		if err := m.usb.SetUSBPower(connected); err != nil {
			m.logger.Warnf("Failed to switch USB power (connected=%v): %v", connected, err)
		}
	}

	m.current = new
	if cmd, ok := DevCtrlFor(new, reset); ok {
		m.SendControl(cmd)
	}

	if m.hook != nil {
		m.hook(old, new, reset)
	}
}

// SendControl sends cmd, logging failures.
func (m *Manager) SendControl(cmd types.DevCtrl) {
	if err := m.sender.SendDevCtrl(cmd); err != nil {
		m.logger.Warnf("Failed to send devctrl %s: %v", cmd, err)
	}
}

// ConnectionState returns ConnUnknown when the state cannot be read.
func (m *Manager) ConnectionState() types.ConnState {
	st, err := m.state.GetConnectionState()
	if err != nil {
		m.logger.Warnf("Failed to read connection state: %v", err)
		return types.ConnUnknown
	}
	return st
}

// DevCtrlFor maps a device to the command that selects it. Any wireless
// device with reset maps to the pairing command.
func DevCtrlFor(dev types.DeviceID, reset bool) (types.DevCtrl, bool) {
	if dev.IsWireless() && dev.Valid() && reset {
		return types.DevCtrlPair, true
	}
	switch dev {
	case types.DeviceUSB:
		return types.DevCtrlUSB, true
	case types.DeviceBT1:
		return types.DevCtrlBT1, true
	case types.DeviceBT2:
		return types.DevCtrlBT2, true
	case types.DeviceBT3:
		return types.DevCtrlBT3, true
	case types.DeviceRadio:
		return types.DevCtrl2G4, true
	default:
		return "", false
	}
}

// PreviousForReapply picks the "old" device used when re-applying dev at
// start-up so the USB/wireless edge is always crossed.
func PreviousForReapply(dev types.DeviceID) types.DeviceID {
	if dev == types.DeviceUSB {
		return types.DeviceBT1
	}
	return types.DeviceUSB
}
