package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"kbd-indicator/internal/types"
)

type Config struct {
	Redis            RedisConfig    `yaml:"redis"`
	Render           RenderConfig   `yaml:"render"`
	LEDs             LEDConfig      `yaml:"leds"`
	Power            PowerConfig    `yaml:"power"`
	Input            InputConfig    `yaml:"input"`
	Battery          BatteryConfig  `yaml:"battery"`
	Wireless         WirelessConfig `yaml:"wireless"`
	History          HistoryConfig  `yaml:"history"`
	BatteryDrainMode bool           `yaml:"battery_drain_mode"`
}

// ---- REDIS ----

type RedisConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// ---- RENDER ----

type RenderConfig struct {
	FrameIntervalMs int    `yaml:"frame_interval_ms"`
	LEDCount        int    `yaml:"led_count"`
	BaseColor       string `yaml:"base_color"` // "#rrggbb"

	baseRGB types.RGB // parsed by Normalize
}

// ---- LED OUTPUT ----

type LEDConfig struct {
	Driver      string `yaml:"driver"` // spi | chardev | none
	SPIPort     string `yaml:"spi_port"`
	SPIHz       int64  `yaml:"spi_hz"`
	Brightness  uint8  `yaml:"brightness"` // APA102 global brightness, 0..31
	ChardevPath string `yaml:"chardev_path"`
}

// ---- POWER PINS ----

type PowerConfig struct {
	Chip          string `yaml:"chip"`
	LEDEnableLine *int   `yaml:"led_enable_line"` // unset or negative disables the pin
	USBEnableLine *int   `yaml:"usb_enable_line"`
}

// ---- INPUT ----

type InputConfig struct {
	Device string            `yaml:"device"`
	Keymap map[uint16]string `yaml:"keymap"` // linux key code -> keycode name
}

// ---- BATTERY ----

type BatteryConfig struct {
	Source       string `yaml:"source"` // redis | hid
	HIDVendorID  uint16 `yaml:"hid_vendor_id"`
	HIDProductID uint16 `yaml:"hid_product_id"`
	HIDReportID  uint8  `yaml:"hid_report_id"`
}

// ---- WIRELESS ----

type WirelessConfig struct {
	PairHoldMs      int `yaml:"pair_hold_ms"`
	PostInitDelayMs int `yaml:"post_init_delay_ms"`
}

// ---- HISTORY ----

type HistoryConfig struct {
	Path string `yaml:"path"` // empty disables history
}

// Default returns a normalized configuration with no file applied.
func Default() *Config {
	cfg := &Config{}
	Normalize(cfg)
	return cfg
}

// Load reads path, validates and normalizes it. An empty path yields the
// defaults.
func Load(path string) (*Config, error) {
	if path == "" {
		return Default(), nil
	}

	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	Normalize(&cfg)
	return &cfg, nil
}

func (c *Config) FrameInterval() time.Duration {
	return time.Duration(c.Render.FrameIntervalMs) * time.Millisecond
}

func (c *Config) PairHold() time.Duration {
	return time.Duration(c.Wireless.PairHoldMs) * time.Millisecond
}

func (c *Config) PostInitDelay() time.Duration {
	return time.Duration(c.Wireless.PostInitDelayMs) * time.Millisecond
}

// BaseColor is the color every frame starts from.
func (c *Config) BaseColor() types.RGB {
	return c.Render.baseRGB
}

// Keymap returns nil when no keymap is configured.
func (c *Config) Keymap() map[uint16]types.Keycode {
	if len(c.Input.Keymap) == 0 {
		return nil
	}
	km := make(map[uint16]types.Keycode, len(c.Input.Keymap))
	for code, name := range c.Input.Keymap {
		if kc, err := types.ParseKeycode(name); err == nil {
			km[code] = kc
		}
	}
	return km
}

func (p PowerConfig) LEDLine() int {
	return lineOrDisabled(p.LEDEnableLine)
}

func (p PowerConfig) USBLine() int {
	return lineOrDisabled(p.USBEnableLine)
}

func lineOrDisabled(line *int) int {
	if line == nil || *line < 0 {
		return -1
	}
	return *line
}

// ParseColor accepts "#rrggbb" or "rrggbb".
func ParseColor(s string) (types.RGB, error) {
	hex := strings.TrimPrefix(s, "#")
	if len(hex) != 6 {
		return types.Off, fmt.Errorf("invalid color %q", s)
	}
	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return types.Off, fmt.Errorf("invalid color %q: %w", s, err)
	}
	return types.RGB{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v)}, nil
}
