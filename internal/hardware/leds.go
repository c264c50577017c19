package hardware

import (
	"fmt"
	"sync"

	"golang.org/x/sys/unix"

	"kbd-indicator/internal/logger"
	"kbd-indicator/internal/types"
)

const (
	ledMatrixSetCount = 0x00007240 // _IO('r', 0x40)
	ledMatrixCommit   = 0x00007241 // _IO('r', 0x41)

	maxWriteChunk = 4096
)

// LedDriver pushes a full frame to the LEDs.
type LedDriver interface {
	Flush(pixels []types.RGB) error
	Close() error
}

// Frame is the per-frame LED buffer the render loop paints into.
type Frame struct {
	pixels []types.RGB
}

func NewFrame(count int) *Frame {
	return &Frame{pixels: make([]types.RGB, count)}
}

// SetColor ignores indices outside the strip.
func (f *Frame) SetColor(index int, c types.RGB) {
	if index < 0 || index >= len(f.pixels) {
		return
	}
	f.pixels[index] = c
}

func (f *Frame) Fill(c types.RGB) {
	for i := range f.pixels {
		f.pixels[i] = c
	}
}

func (f *Frame) Color(index int) types.RGB {
	if index < 0 || index >= len(f.pixels) {
		return types.Off
	}
	return f.pixels[index]
}

func (f *Frame) Pixels() []types.RGB {
	return f.pixels
}

func (f *Frame) Len() int {
	return len(f.pixels)
}

// NullDriver discards frames. Used when no LED hardware is configured.
type NullDriver struct{}

func (NullDriver) Flush([]types.RGB) error { return nil }
func (NullDriver) Close() error            { return nil }

// ChardevMatrix writes packed RGB frames to an LED matrix character device.
type ChardevMatrix struct {
	logger *logger.Logger
	fd     int
	count  int
	lock   sync.Mutex
	buf    []byte
}

func OpenChardevMatrix(path string, count int, l *logger.Logger) (*ChardevMatrix, error) {
	fd, err := unix.Open(path, unix.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to open LED device %s: %w", path, err)
	}

	if err := unix.IoctlSetInt(fd, ledMatrixSetCount, count); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("failed to set LED count on %s: %w", path, err)
	}

	l.Infof("Opened LED matrix %s with %d LEDs", path, count)
	return &ChardevMatrix{
		logger: l,
		fd:     fd,
		count:  count,
		buf:    make([]byte, 0, count*3),
	}, nil
}

func (m *ChardevMatrix) Flush(pixels []types.RGB) error {
	m.lock.Lock()
	defer m.lock.Unlock()

	if len(pixels) > m.count {
		pixels = pixels[:m.count]
	}
	m.buf = packRGB(m.buf[:0], pixels)

	// Write data in chunks
	for offset := 0; offset < len(m.buf); {
		end := min(offset+maxWriteChunk, len(m.buf))
		written, err := unix.Write(m.fd, m.buf[offset:end])
		if err != nil {
			return fmt.Errorf("failed to write LED frame: %w", err)
		}
		if written == 0 {
			return fmt.Errorf("short LED frame write at offset %d", offset)
		}
		offset += written
	}

	if err := unix.IoctlSetInt(m.fd, ledMatrixCommit, 0); err != nil {
		return fmt.Errorf("failed to commit LED frame: %w", err)
	}
	return nil
}

func packRGB(dst []byte, pixels []types.RGB) []byte {
	for _, p := range pixels {
		dst = append(dst, p.R, p.G, p.B)
	}
	return dst
}

func (m *ChardevMatrix) Close() error {
	m.lock.Lock()
	defer m.lock.Unlock()

	if m.fd < 0 {
		return nil
	}
	err := unix.Close(m.fd)
	m.fd = -1
	return err
}
