package config

import "kbd-indicator/internal/types"

// Normalize applies post-validation defaults.
// It is allowed to mutate configuration.
// It MUST be called only after Validate().
func Normalize(cfg *Config) {
	if cfg == nil {
		return
	}

	if cfg.Redis.Host == "" {
		cfg.Redis.Host = "127.0.0.1"
	}
	if cfg.Redis.Port == 0 {
		cfg.Redis.Port = 6379
	}

	if cfg.Render.FrameIntervalMs == 0 {
		cfg.Render.FrameIntervalMs = 16
	}
	if cfg.Render.LEDCount == 0 {
		cfg.Render.LEDCount = 103
	}
	if cfg.Render.BaseColor == "" {
		cfg.Render.BaseColor = "#000000"
	}
	if rgb, err := ParseColor(cfg.Render.BaseColor); err == nil {
		cfg.Render.baseRGB = rgb
	} else {
		cfg.Render.baseRGB = types.Off
	}

	if cfg.LEDs.Driver == "" {
		cfg.LEDs.Driver = "none"
	}
	if cfg.LEDs.SPIPort == "" {
		cfg.LEDs.SPIPort = "SPI0.0"
	}
	if cfg.LEDs.SPIHz == 0 {
		cfg.LEDs.SPIHz = 4000000
	}
	if cfg.LEDs.Brightness == 0 {
		cfg.LEDs.Brightness = 31
	}
	if cfg.LEDs.ChardevPath == "" {
		cfg.LEDs.ChardevPath = "/dev/led-matrix0"
	}

	if cfg.Power.Chip == "" {
		cfg.Power.Chip = "gpiochip0"
	}

	if cfg.Input.Device == "" {
		cfg.Input.Device = "/dev/input/by-id/kbd-indicator-event-kbd"
	}

	if cfg.Battery.Source == "" {
		cfg.Battery.Source = "redis"
	}

	if cfg.Wireless.PairHoldMs == 0 {
		cfg.Wireless.PairHoldMs = 3000
	}
	if cfg.Wireless.PostInitDelayMs == 0 {
		cfg.Wireless.PostInitDelayMs = 100
	}
}
