package hardware

import (
	"fmt"
	"sync"

	"github.com/sstallion/go-hid"

	"kbd-indicator/internal/logger"
)

// HIDBattery reads the battery level from the wireless receiver's HID
// feature report.
type HIDBattery struct {
	logger   *logger.Logger
	dev      *hid.Device
	reportID byte
	mu       sync.Mutex
}

func OpenHIDBattery(vendorID, productID uint16, reportID byte, l *logger.Logger) (*HIDBattery, error) {
	if err := hid.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize hidapi: %w", err)
	}

	var path string
	err := hid.Enumerate(vendorID, productID, func(info *hid.DeviceInfo) error {
		if path == "" {
			path = info.Path
		}
		return nil
	})
	if err != nil {
		hid.Exit()
		return nil, fmt.Errorf("failed to enumerate HID devices: %w", err)
	}
	if path == "" {
		hid.Exit()
		return nil, fmt.Errorf("no HID device %04x:%04x found", vendorID, productID)
	}

	dev, err := hid.OpenPath(path)
	if err != nil {
		hid.Exit()
		return nil, fmt.Errorf("failed to open HID device %s: %w", path, err)
	}

	l.Infof("Opened HID battery source %04x:%04x at %s", vendorID, productID, path)
	return &HIDBattery{
		logger:   l,
		dev:      dev,
		reportID: reportID,
	}, nil
}

// BatteryLevel returns the charge in percent.
func (b *HIDBattery) BatteryLevel() (uint8, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	buf := make([]byte, 65)
	buf[0] = b.reportID
	n, err := b.dev.GetFeatureReport(buf)
	if err != nil {
		return 0, fmt.Errorf("failed to read battery report: %w", err)
	}

	lvl, ok := parseBatteryReport(buf[:n])
	if !ok {
		return 0, fmt.Errorf("no battery level in %d byte report", n)
	}
	b.logger.Debugf("HID battery level: %d%%", lvl)
	return lvl, nil
}

// parseBatteryReport understands the vendor report (status token followed
// by charging flag and level, at offset 6 to 8) and the plain
// [report id, level] layout.
func parseBatteryReport(buf []byte) (uint8, bool) {
	isTok := func(b byte) bool { return b >= 0x80 && b <= 0x83 }

	for _, off := range []int{0, 1, 2} {
		iTok := 6 + off
		ibat := 8 + off
		if ibat < len(buf) && isTok(buf[iTok]) && buf[ibat] <= 100 {
			return buf[ibat], true
		}
	}

	if len(buf) >= 2 && len(buf) < 9 && buf[1] <= 100 {
		return buf[1], true
	}
	return 0, false
}

func (b *HIDBattery) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	err := b.dev.Close()
	hid.Exit()
	return err
}
