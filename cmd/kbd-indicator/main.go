package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"kbd-indicator/internal/config"
	"kbd-indicator/internal/core"
	"kbd-indicator/internal/hardware"
	"kbd-indicator/internal/history"
	"kbd-indicator/internal/logger"
	"kbd-indicator/internal/messaging"
	"kbd-indicator/internal/types"
)

func main() {
	// Service log level
	var serviceLogLevel int
	flag.IntVar(&serviceLogLevel, "log", 3, "Service log level (0=NONE, 1=ERROR, 2=WARN, 3=INFO, 4=DEBUG)")

	configPath := flag.String("config", "", "Path to YAML config file (defaults apply when empty)")
	redisHost := flag.String("redis-host", "", "Redis host (overrides config)")
	redisPort := flag.Int("redis-port", 0, "Redis port (overrides config)")

	flag.Parse()

	// Create standard logger with appropriate format
	var stdLogger *log.Logger
	if os.Getenv("INVOCATION_ID") != "" {
		// Running under systemd, use minimal format
		stdLogger = log.New(os.Stdout, "", 0)
	} else {
		// Running interactively, use timestamps
		stdLogger = log.New(os.Stdout, "", log.LstdFlags|log.Lmicroseconds|log.Lmsgprefix)
	}

	// Create leveled logger
	l := logger.NewLogger(stdLogger, logger.LogLevel(serviceLogLevel))

	l.Infof("Starting keyboard indicator service...")

	cfg, err := config.Load(*configPath)
	if err != nil {
		l.Fatalf("Failed to load config: %v", err)
	}
	if *redisHost != "" {
		cfg.Redis.Host = *redisHost
	}
	if *redisPort != 0 {
		cfg.Redis.Port = *redisPort
	}

	hwLogger := l.WithTag("hardware")

	leds, err := openLEDs(cfg, hwLogger)
	if err != nil {
		l.Fatalf("Failed to open LED output: %v", err)
	}
	defer leds.Close()

	power, err := hardware.OpenPowerPins(cfg.Power.Chip, cfg.Power.LEDLine(), cfg.Power.USBLine(), hwLogger)
	if err != nil {
		l.Fatalf("Failed to open power pins: %v", err)
	}
	defer power.Close()

	var battery core.BatterySource
	if cfg.Battery.Source == "hid" {
		hid, err := hardware.OpenHIDBattery(cfg.Battery.HIDVendorID, cfg.Battery.HIDProductID, cfg.Battery.HIDReportID, hwLogger)
		if err != nil {
			l.Fatalf("Failed to open HID battery: %v", err)
		}
		defer hid.Close()
		battery = hid
	}

	var opts []core.Option
	if cfg.History.Path != "" {
		h, err := history.Open(cfg.History.Path, l.WithTag("history"))
		if err != nil {
			l.Fatalf("Failed to open history: %v", err)
		}
		defer h.Close()
		opts = append(opts, core.WithHistory(h))
	}

	redis := messaging.NewRedisClient(cfg.Redis.Host, cfg.Redis.Port, l.WithTag("redis"), messaging.Callbacks{})

	keyboard := core.NewKeyboard(cfg, redis, power, leds, battery, l.WithTag("core"), opts...)
	if err := keyboard.Start(); err != nil {
		l.Fatalf("Failed to start keyboard: %v", err)
	}

	input := hardware.NewInputReader(cfg.Input.Device, cfg.Keymap(), hwLogger)
	input.OnKey(func(kc types.Keycode, pressed bool) {
		keyboard.ProcessKey(kc, pressed)
	})
	input.OnCapsLock(keyboard.SetCapsLock)
	if err := input.Open(); err != nil {
		l.Errorf("Keyboard input unavailable, remote commands only: %v", err)
	} else {
		keyboard.SetCapsLock(input.CapsLock())
		defer input.Close()
	}

	l.Infof("Keyboard indicator service started successfully")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigChan
	l.Infof("Received signal %v, shutting down...", sig)
	keyboard.Shutdown()
	l.Infof("Shutdown complete")
}

func openLEDs(cfg *config.Config, l *logger.Logger) (hardware.LedDriver, error) {
	switch cfg.LEDs.Driver {
	case "spi":
		return hardware.OpenSPIStrip(cfg.LEDs.SPIPort, cfg.LEDs.SPIHz, cfg.LEDs.Brightness, l)
	case "chardev":
		return hardware.OpenChardevMatrix(cfg.LEDs.ChardevPath, cfg.Render.LEDCount, l)
	case "none":
		l.Infof("LED output disabled")
		return hardware.NullDriver{}, nil
	default:
		return nil, fmt.Errorf("unknown LED driver: %s", cfg.LEDs.Driver)
	}
}
