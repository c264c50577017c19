package hardware

import "kbd-indicator/internal/types"

const (
	DefaultInputDevice  = "/dev/input/by-id/kbd-indicator-event-kbd"
	DefaultChardevPath  = "/dev/led-matrix0"
	DefaultSPIPort      = "SPI0.0"
	DefaultSPIHz        = 4000000
	DefaultGPIOChip     = "gpiochip0"
	DefaultLEDCount     = 103
	DefaultAPA102Bright = 31

	gpioConsumer = "kbd-indicator"
)

// Linux key codes the keyboard firmware emits for its vendor keys.
const (
	KEY_F13 = 183
	KEY_F14 = 184
	KEY_F15 = 185
	KEY_F16 = 186
	KEY_F17 = 187
	KEY_F18 = 188
	KEY_F19 = 189
)

// DefaultKeymap maps evdev key codes to keyboard keycodes.
var DefaultKeymap = map[uint16]types.Keycode{
	KEY_F13: types.KC_USB,
	KEY_F14: types.KC_BT1,
	KEY_F15: types.KC_BT2,
	KEY_F16: types.KC_BT3,
	KEY_F17: types.KC_2G4,
	KEY_F18: types.KC_BATQ,
	KEY_F19: types.KC_DRAIN,
}
