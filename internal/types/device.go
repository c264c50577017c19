package types

import "fmt"

// DeviceID identifies the active keyboard-to-host transport. Values match
// the wireless module's numbering so they survive in the packed config word.
type DeviceID uint8

const (
	DeviceUSB   DeviceID = 0
	DeviceBT1   DeviceID = 1
	DeviceBT2   DeviceID = 2
	DeviceBT3   DeviceID = 3
	DeviceRadio DeviceID = 6
)

var deviceNames = map[DeviceID]string{
	DeviceUSB:   "usb",
	DeviceBT1:   "bt1",
	DeviceBT2:   "bt2",
	DeviceBT3:   "bt3",
	DeviceRadio: "2g4",
}

func (d DeviceID) String() string {
	if name, ok := deviceNames[d]; ok {
		return name
	}
	return fmt.Sprintf("device(%d)", uint8(d))
}

// Valid reports whether d is one of the known transports.
func (d DeviceID) Valid() bool {
	_, ok := deviceNames[d]
	return ok
}

// IsWireless is true for every transport except USB.
func (d DeviceID) IsWireless() bool {
	return d != DeviceUSB
}

// ParseDevice accepts the names produced by String.
func ParseDevice(name string) (DeviceID, error) {
	for id, n := range deviceNames {
		if n == name {
			return id, nil
		}
	}
	return DeviceUSB, fmt.Errorf("unknown device: %s", name)
}

// IndicatorLED is the LED index that shows the device's state.
func (d DeviceID) IndicatorLED() (int, bool) {
	switch d {
	case DeviceUSB:
		return 33, true
	case DeviceBT1:
		return 32, true
	case DeviceBT2:
		return 31, true
	case DeviceBT3:
		return 30, true
	case DeviceRadio:
		return 29, true
	default:
		return 0, false
	}
}
