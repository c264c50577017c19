package hardware

import (
	"encoding/binary"
	"fmt"
	"os"
	"sync"
	"time"
	"unsafe"

	"golang.org/x/sys/unix"

	"kbd-indicator/internal/logger"
	"kbd-indicator/internal/types"
)

const (
	EV_SYN = 0x00
	EV_KEY = 0x01
	EV_LED = 0x11

	LED_CAPSL = 0x01

	eviocgled = 0x80084519 // EVIOCGLED(8)
)

// eventSize is sizeof(struct input_event): a timeval followed by type,
// code and value.
var eventSize = int(unsafe.Sizeof(unix.Timeval{})) + 8

type InputEvent struct {
	Type  uint16
	Code  uint16
	Value int32
}

type KeyCallback func(kc types.Keycode, pressed bool)

type CapsLockCallback func(on bool)

// InputReader turns evdev events into keycodes and host LED state.
type InputReader struct {
	logger     *logger.Logger
	devicePath string
	keymap     map[uint16]types.Keycode
	file       *os.File
	onKey      KeyCallback
	onCapsLock CapsLockCallback
	mu         sync.RWMutex
	stopChan   chan struct{}
	capsLock   bool
}

func NewInputReader(devicePath string, keymap map[uint16]types.Keycode, l *logger.Logger) *InputReader {
	if keymap == nil {
		keymap = DefaultKeymap
	}
	return &InputReader{
		logger:     l,
		devicePath: devicePath,
		keymap:     keymap,
		stopChan:   make(chan struct{}),
	}
}

func (r *InputReader) OnKey(cb KeyCallback) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onKey = cb
}

func (r *InputReader) OnCapsLock(cb CapsLockCallback) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onCapsLock = cb
}

// Open opens the event device, reads the initial caps lock state and
// starts monitoring. Keys already held at open are not reported; only
// their later release is.
func (r *InputReader) Open() error {
	r.logger.Infof("Opening input device: %s", r.devicePath)
	f, err := os.OpenFile(r.devicePath, os.O_RDONLY, 0)
	if err != nil {
		return fmt.Errorf("failed to open input device %s: %w", r.devicePath, err)
	}
	r.file = f

	if err := r.readInitialState(); err != nil {
		r.logger.Warnf("Failed to read initial input state: %v", err)
	}

	go r.monitorInputs()
	return nil
}

func (r *InputReader) readInitialState() error {
	leds := make([]byte, 8)
	if err := ioctlBuffer(r.file.Fd(), eviocgled, leds); err != nil {
		return fmt.Errorf("EVIOCGLED ioctl failed: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.capsLock = bitSet(leds, LED_CAPSL)
	r.logger.Debugf("Initial caps lock: %v", r.capsLock)
	return nil
}

func ioctlBuffer(fd uintptr, req uintptr, buf []byte) error {
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, fd, req, uintptr(unsafe.Pointer(&buf[0])))
	if errno != 0 {
		return errno
	}
	return nil
}

func bitSet(buf []byte, bit uint16) bool {
	byteOffset := int(bit / 8)
	if byteOffset >= len(buf) {
		return false
	}
	return buf[byteOffset]&(1<<(bit%8)) != 0
}

func (r *InputReader) monitorInputs() {
	buffer := make([]byte, eventSize)
	r.logger.Debugf("Starting input event monitoring with event size %d", eventSize)

	for {
		select {
		case <-r.stopChan:
			r.logger.Infof("Stopping input monitoring")
			return
		default:
		}

		n, err := r.file.Read(buffer)
		if err != nil {
			select {
			case <-r.stopChan:
				return
			default:
			}
			r.logger.Warnf("Error reading input: %v", err)
			time.Sleep(100 * time.Millisecond)
			continue
		}
		if n != len(buffer) {
			r.logger.Warnf("Incomplete read: got %d bytes, expected %d", n, len(buffer))
			continue
		}

		r.handleEvent(decodeEvent(buffer))
	}
}

// decodeEvent skips the timestamp and reads the little-endian payload.
func decodeEvent(buf []byte) InputEvent {
	off := len(buf) - 8
	return InputEvent{
		Type:  binary.LittleEndian.Uint16(buf[off : off+2]),
		Code:  binary.LittleEndian.Uint16(buf[off+2 : off+4]),
		Value: int32(binary.LittleEndian.Uint32(buf[off+4 : off+8])),
	}
}

func (r *InputReader) handleEvent(ev InputEvent) {
	switch ev.Type {
	case EV_KEY:
		r.handleKeyEvent(ev)
	case EV_LED:
		if ev.Code != LED_CAPSL {
			return
		}
		on := ev.Value != 0
		r.mu.Lock()
		r.capsLock = on
		cb := r.onCapsLock
		r.mu.Unlock()
		r.logger.Debugf("Caps lock: %v", on)
		if cb != nil {
			cb(on)
		}
	}
}

func (r *InputReader) handleKeyEvent(ev InputEvent) {
	// Only process key press (1) and release (0)
	if ev.Value > 1 {
		return
	}

	kc, ok := r.keymap[ev.Code]
	if !ok {
		return
	}
	pressed := ev.Value == 1

	r.mu.RLock()
	cb := r.onKey
	r.mu.RUnlock()

	r.logger.Debugf("Key event: code=%d keycode=%s pressed=%v", ev.Code, kc, pressed)
	if cb != nil {
		cb(kc, pressed)
	}
}

// CapsLock returns the last known caps lock LED state.
func (r *InputReader) CapsLock() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.capsLock
}

func (r *InputReader) Close() {
	close(r.stopChan)
	if r.file != nil {
		r.file.Close()
		r.logger.Infof("Closed input device")
	}
}
