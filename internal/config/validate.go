package config

import (
	"fmt"

	"kbd-indicator/internal/types"
)

// Validate checks configuration correctness.
// It performs declarative validation only.
// It MUST NOT mutate configuration.
func Validate(cfg *Config) error {
	if cfg.Redis.Port < 0 || cfg.Redis.Port > 65535 {
		return fmt.Errorf("redis: port %d out of range", cfg.Redis.Port)
	}

	if cfg.Render.FrameIntervalMs < 0 {
		return fmt.Errorf("render: frame_interval_ms must not be negative")
	}
	if cfg.Render.LEDCount < 0 {
		return fmt.Errorf("render: led_count must not be negative")
	}
	if cfg.Render.BaseColor != "" {
		if _, err := ParseColor(cfg.Render.BaseColor); err != nil {
			return fmt.Errorf("render: %w", err)
		}
	}

	switch cfg.LEDs.Driver {
	case "", "spi", "chardev", "none":
	default:
		return fmt.Errorf("leds: unknown driver %q", cfg.LEDs.Driver)
	}
	if cfg.LEDs.SPIHz < 0 {
		return fmt.Errorf("leds: spi_hz must not be negative")
	}
	if cfg.LEDs.Brightness > 31 {
		return fmt.Errorf("leds: brightness %d exceeds 31", cfg.LEDs.Brightness)
	}

	for code, name := range cfg.Input.Keymap {
		if _, err := types.ParseKeycode(name); err != nil {
			return fmt.Errorf("input: keymap entry %d: %w", code, err)
		}
	}

	switch cfg.Battery.Source {
	case "", "redis":
	case "hid":
		if cfg.Battery.HIDVendorID == 0 {
			return fmt.Errorf("battery: hid source requires hid_vendor_id")
		}
	default:
		return fmt.Errorf("battery: unknown source %q", cfg.Battery.Source)
	}

	if cfg.Wireless.PairHoldMs < 0 {
		return fmt.Errorf("wireless: pair_hold_ms must not be negative")
	}
	if cfg.Wireless.PostInitDelayMs < 0 {
		return fmt.Errorf("wireless: post_init_delay_ms must not be negative")
	}

	return nil
}
