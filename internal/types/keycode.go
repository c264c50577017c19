package types

import "fmt"

type Keycode uint16

const (
	KC_NO Keycode = iota
	KC_USB
	KC_BT1
	KC_BT2
	KC_BT3
	KC_2G4
	KC_BATQ
	KC_DRAIN
)

var keycodeNames = map[Keycode]string{
	KC_NO:    "none",
	KC_USB:   "usb",
	KC_BT1:   "bt1",
	KC_BT2:   "bt2",
	KC_BT3:   "bt3",
	KC_2G4:   "2g4",
	KC_BATQ:  "battery-query",
	KC_DRAIN: "battery-drain",
}

func (k Keycode) String() string {
	if name, ok := keycodeNames[k]; ok {
		return name
	}
	return fmt.Sprintf("keycode(0x%04x)", uint16(k))
}

// ParseKeycode accepts the names produced by String.
func ParseKeycode(name string) (Keycode, error) {
	for k, n := range keycodeNames {
		if n == name {
			return k, nil
		}
	}
	return KC_NO, fmt.Errorf("unknown keycode: %s", name)
}
