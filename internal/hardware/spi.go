package hardware

import (
	"fmt"
	"sync"

	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/host/v3"

	"kbd-indicator/internal/logger"
	"kbd-indicator/internal/types"
)

// SPIStrip drives an APA102-style LED strip over SPI.
type SPIStrip struct {
	logger     *logger.Logger
	port       spi.PortCloser
	conn       spi.Conn
	brightness uint8
	lock       sync.Mutex
	buf        []byte
}

func OpenSPIStrip(portName string, hz int64, brightness uint8, l *logger.Logger) (*SPIStrip, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize periph host: %w", err)
	}

	port, err := spireg.Open(portName)
	if err != nil {
		return nil, fmt.Errorf("failed to open SPI port %s: %w", portName, err)
	}

	conn, err := port.Connect(physic.Frequency(hz)*physic.Hertz, spi.Mode0, 8)
	if err != nil {
		port.Close()
		return nil, fmt.Errorf("failed to connect SPI port %s: %w", portName, err)
	}

	l.Infof("Opened SPI LED strip on %s at %d Hz", portName, hz)
	return &SPIStrip{
		logger:     l,
		port:       port,
		conn:       conn,
		brightness: brightness,
	}, nil
}

func (s *SPIStrip) Flush(pixels []types.RGB) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	s.buf = EncodeAPA102(s.buf[:0], pixels, s.brightness)
	if err := s.conn.Tx(s.buf, nil); err != nil {
		return fmt.Errorf("failed to write SPI frame: %w", err)
	}
	return nil
}

func (s *SPIStrip) Close() error {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.port.Close()
}

// EncodeAPA102 appends a complete APA102 frame for pixels to dst: a zero
// start frame, one BGR word per LED with the 5-bit global brightness, and
// enough end-frame clocks to shift the last LED through.
func EncodeAPA102(dst []byte, pixels []types.RGB, brightness uint8) []byte {
	if brightness > 31 {
		brightness = 31
	}

	dst = append(dst, 0, 0, 0, 0)
	for _, p := range pixels {
		dst = append(dst, 0xE0|brightness, p.B, p.G, p.R)
	}

	end := max(4, (len(pixels)+15)/16)
	for i := 0; i < end; i++ {
		dst = append(dst, 0xFF)
	}
	return dst
}
