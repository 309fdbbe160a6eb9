package transport

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/rs/zerolog/log"
	"go.bug.st/serial"
)

// serialPort wraps a serial connection to a host bridged onto a UART
// (for example socat relaying moonraker.sock).
type serialPort struct {
	port serial.Port
	mu   sync.Mutex
}

// DialSerial opens a serial line at baud, 8N1.
func DialSerial(path string, baud int) Dialer {
	return func(context.Context) (io.ReadWriteCloser, error) {
		return openSerial(path, baud)
	}
}

func openSerial(path string, baud int) (*serialPort, error) {
	mode := &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}

	port, err := serial.Open(path, mode)
	if err != nil {
		return nil, fmt.Errorf("open serial port %s: %w", path, err)
	}

	log.Info().Str("port", path).Int("baud", baud).Msg("Serial port opened")

	return &serialPort{port: port}, nil
}

func (s *serialPort) Write(data []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.port.Write(data)
}

func (s *serialPort) Read(buf []byte) (int, error) {
	n, err := s.port.Read(buf)
	// An empty read without error ends the stream so the frame scanner stops.
	if n == 0 && err == nil {
		return 0, io.EOF
	}
	return n, err
}

func (s *serialPort) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.port.Close()
}
