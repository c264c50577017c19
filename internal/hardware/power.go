package hardware

import (
	"fmt"
	"sync"

	"github.com/warthog618/go-gpiocdev"

	"kbd-indicator/internal/logger"
)

// PowerPins drives the LED and USB power-enable outputs. Both are active
// low. A negative line offset leaves that output unmanaged.
type PowerPins struct {
	logger *logger.Logger
	chip   *gpiocdev.Chip
	led    *gpiocdev.Line
	usb    *gpiocdev.Line
	mu     sync.Mutex
}

func OpenPowerPins(chipName string, ledLine, usbLine int, l *logger.Logger) (*PowerPins, error) {
	p := &PowerPins{logger: l}
	if ledLine < 0 && usbLine < 0 {
		l.Infof("No power pins configured")
		return p, nil
	}

	chip, err := gpiocdev.NewChip(chipName)
	if err != nil {
		return nil, fmt.Errorf("failed to open GPIO chip %s: %w", chipName, err)
	}
	p.chip = chip

	if ledLine >= 0 {
		// LEDs start powered
		p.led, err = chip.RequestLine(ledLine,
			gpiocdev.AsOutput(activeLow(true)),
			gpiocdev.WithConsumer(gpioConsumer))
		if err != nil {
			p.Close()
			return nil, fmt.Errorf("failed to request LED power line %d: %w", ledLine, err)
		}
		l.Infof("Configured LED power: chip=%s, line=%d", chipName, ledLine)
	}

	if usbLine >= 0 {
		p.usb, err = chip.RequestLine(usbLine,
			gpiocdev.AsOutput(activeLow(true)),
			gpiocdev.WithConsumer(gpioConsumer))
		if err != nil {
			p.Close()
			return nil, fmt.Errorf("failed to request USB power line %d: %w", usbLine, err)
		}
		l.Infof("Configured USB power: chip=%s, line=%d", chipName, usbLine)
	}

	return p, nil
}

func activeLow(on bool) int {
	if on {
		return 0
	}
	return 1
}

// SetLEDPower switches the LED supply.
func (p *PowerPins) SetLEDPower(on bool) error {
	return p.set(p.led, "led_power", on)
}

// SetUSBPower connects the USB data path while the keyboard is on USB.
func (p *PowerPins) SetUSBPower(connected bool) error {
	return p.set(p.usb, "usb_power", connected)
}

func (p *PowerPins) set(line *gpiocdev.Line, name string, on bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if line == nil {
		return nil
	}
	if err := line.SetValue(activeLow(on)); err != nil {
		return fmt.Errorf("failed to set %s=%v: %w", name, on, err)
	}
	p.logger.Debugf("Set %s=%v", name, on)
	return nil
}

func (p *PowerPins) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.led != nil {
		p.led.Close()
		p.led = nil
	}
	if p.usb != nil {
		p.usb.Close()
		p.usb = nil
	}
	if p.chip != nil {
		p.chip.Close()
		p.chip = nil
	}
}
