package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"kbd-indicator/internal/types"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "kbd-indicator.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

func TestDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Redis.Host != "127.0.0.1" || cfg.Redis.Port != 6379 {
		t.Errorf("unexpected redis defaults: %+v", cfg.Redis)
	}
	if cfg.FrameInterval() != 16*time.Millisecond {
		t.Errorf("expected 16ms frames, got %v", cfg.FrameInterval())
	}
	if cfg.PairHold() != 3000*time.Millisecond {
		t.Errorf("expected 3000ms pair hold, got %v", cfg.PairHold())
	}
	if cfg.PostInitDelay() != 100*time.Millisecond {
		t.Errorf("expected 100ms post-init delay, got %v", cfg.PostInitDelay())
	}
	if cfg.Render.LEDCount != 103 || cfg.LEDs.Driver != "none" || cfg.Battery.Source != "redis" {
		t.Errorf("unexpected defaults: %+v", cfg)
	}
	if cfg.Power.LEDLine() != -1 || cfg.Power.USBLine() != -1 {
		t.Error("expected power pins disabled by default")
	}
	if cfg.Keymap() != nil {
		t.Error("expected no keymap by default")
	}
	if cfg.BaseColor() != types.Off {
		t.Errorf("expected black base color, got %v", cfg.BaseColor())
	}
}

func TestLoadFile(t *testing.T) {
	path := writeConfig(t, `
redis:
  host: 10.0.0.2
render:
  base_color: "#102030"
leds:
  driver: spi
  spi_port: SPI1.0
power:
  led_enable_line: 0
  usb_enable_line: 7
input:
  keymap:
    59: bt1
    60: battery-query
battery:
  source: hid
  hid_vendor_id: 0x258a
  hid_product_id: 0x2023
wireless:
  pair_hold_ms: 1500
battery_drain_mode: true
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Redis.Host != "10.0.0.2" || cfg.Redis.Port != 6379 {
		t.Errorf("unexpected redis config: %+v", cfg.Redis)
	}
	if cfg.BaseColor() != (types.RGB{R: 0x10, G: 0x20, B: 0x30}) {
		t.Errorf("unexpected base color %v", cfg.BaseColor())
	}
	if cfg.LEDs.Driver != "spi" || cfg.LEDs.SPIPort != "SPI1.0" || cfg.LEDs.SPIHz != 4000000 {
		t.Errorf("unexpected leds config: %+v", cfg.LEDs)
	}
	if cfg.Power.LEDLine() != 0 || cfg.Power.USBLine() != 7 {
		t.Errorf("unexpected power lines: %d, %d", cfg.Power.LEDLine(), cfg.Power.USBLine())
	}
	km := cfg.Keymap()
	if km[59] != types.KC_BT1 || km[60] != types.KC_BATQ || len(km) != 2 {
		t.Errorf("unexpected keymap: %v", km)
	}
	if cfg.Battery.HIDVendorID != 0x258a || cfg.Battery.HIDProductID != 0x2023 {
		t.Errorf("unexpected battery config: %+v", cfg.Battery)
	}
	if cfg.PairHold() != 1500*time.Millisecond {
		t.Errorf("expected 1500ms pair hold, got %v", cfg.PairHold())
	}
	if !cfg.BatteryDrainMode {
		t.Error("expected battery drain mode")
	}
}

func TestNormalizeParsesBaseColorOnce(t *testing.T) {
	cfg := &Config{Render: RenderConfig{BaseColor: "#0a0b0c"}}
	Normalize(cfg)

	want := types.RGB{R: 0x0a, G: 0x0b, B: 0x0c}
	if cfg.BaseColor() != want {
		t.Fatalf("expected %v, got %v", want, cfg.BaseColor())
	}

	// frames read the parsed value, not the string
	cfg.Render.BaseColor = "#ffffff"
	if cfg.BaseColor() != want {
		t.Errorf("expected base color to stay %v, got %v", want, cfg.BaseColor())
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestValidate_Rejects(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{"bad driver", Config{LEDs: LEDConfig{Driver: "hdmi"}}},
		{"bad brightness", Config{LEDs: LEDConfig{Brightness: 32}}},
		{"bad keycode", Config{Input: InputConfig{Keymap: map[uint16]string{1: "launch"}}}},
		{"hid without vendor", Config{Battery: BatteryConfig{Source: "hid"}}},
		{"bad battery source", Config{Battery: BatteryConfig{Source: "smbus"}}},
		{"negative hold", Config{Wireless: WirelessConfig{PairHoldMs: -1}}},
		{"bad color", Config{Render: RenderConfig{BaseColor: "#12"}}},
		{"bad port", Config{Redis: RedisConfig{Port: 70000}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := Validate(&tt.cfg); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestValidate_DoesNotMutate(t *testing.T) {
	cfg := &Config{}
	if err := Validate(cfg); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Redis.Host != "" || cfg.Render.FrameIntervalMs != 0 {
		t.Error("validate must not fill defaults")
	}
}

func TestParseColor(t *testing.T) {
	c, err := ParseColor("ff8000")
	if err != nil || c != types.Orange {
		t.Errorf("expected orange, got %v (%v)", c, err)
	}
	if _, err := ParseColor("#zzzzzz"); err == nil {
		t.Error("expected error for non-hex color")
	}
}
