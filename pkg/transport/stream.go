package transport

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"net"
	"sync"

	"github.com/rs/zerolog/log"
)

// etx terminates every JSON frame on Moonraker's unix socket.
const etx = 0x03

// Dialer opens the byte stream underneath a Stream transport.
type Dialer func(ctx context.Context) (io.ReadWriteCloser, error)

// DialUnix connects to a unix domain socket.
func DialUnix(path string) Dialer {
	return func(ctx context.Context) (io.ReadWriteCloser, error) {
		var d net.Dialer
		return d.DialContext(ctx, "unix", path)
	}
}

// Stream is a Transport over a byte stream whose frames are terminated by
// ETX (0x03).
type Stream struct {
	name string
	dial Dialer

	mu     sync.Mutex
	rw     io.ReadWriteCloser
	closed bool

	writeMu sync.Mutex

	events    chan Event
	done      chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// NewStream creates an unconnected Stream. name is used in logs.
func NewStream(name string, dial Dialer) *Stream {
	return &Stream{
		name:   name,
		dial:   dial,
		events: make(chan Event, eventBuffer),
		done:   make(chan struct{}),
	}
}

// Connect opens the stream and starts reading frames.
func (s *Stream) Connect(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	if s.rw != nil {
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	rw, err := s.dial(ctx)
	if err != nil {
		return fmt.Errorf("open %s: %w", s.name, err)
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		_ = rw.Close()
		return ErrClosed
	}
	s.rw = rw
	s.wg.Add(1)
	s.mu.Unlock()

	log.Info().Str("endpoint", s.name).Msg("Stream connected")
	s.emit(Event{Type: EventConnected})

	go s.readLoop(rw)
	return nil
}

// Send writes data followed by the frame terminator.
func (s *Stream) Send(data []byte) error {
	s.mu.Lock()
	rw := s.rw
	s.mu.Unlock()
	if rw == nil {
		return ErrNotConnected
	}

	frame := make([]byte, 0, len(data)+1)
	frame = append(frame, data...)
	frame = append(frame, etx)

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if _, err := rw.Write(frame); err != nil {
		return fmt.Errorf("write frame: %w", err)
	}
	return nil
}

func (s *Stream) Events() <-chan Event {
	return s.events
}

// Close closes the stream and the event channel.
func (s *Stream) Close() error {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		rw := s.rw
		s.mu.Unlock()

		close(s.done)
		if rw != nil {
			_ = rw.Close()
		}
		s.wg.Wait()
		close(s.events)
	})
	return nil
}

func (s *Stream) readLoop(rw io.ReadWriteCloser) {
	defer s.wg.Done()

	scanner := bufio.NewScanner(rw)
	scanner.Buffer(make([]byte, 0, 64*1024), maxMessageSize)
	scanner.Split(scanFrames)

	for scanner.Scan() {
		frame := scanner.Bytes()
		if len(bytes.TrimSpace(frame)) == 0 {
			continue
		}
		payload := make([]byte, len(frame))
		copy(payload, frame)
		s.emit(Event{Type: EventText, Payload: payload})
	}

	err := scanner.Err()
	if err == nil {
		err = io.EOF
	}

	s.mu.Lock()
	if s.rw == rw {
		s.rw = nil
	}
	s.mu.Unlock()
	_ = rw.Close()

	log.Warn().Err(err).Str("endpoint", s.name).Msg("Stream disconnected")
	s.emit(Event{Type: EventDisconnected, Err: err})
}

func (s *Stream) emit(ev Event) {
	select {
	case s.events <- ev:
	case <-s.done:
	}
}

// scanFrames splits on ETX. A partial frame left at EOF is discarded.
func scanFrames(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if i := bytes.IndexByte(data, etx); i >= 0 {
		return i + 1, data[:i], nil
	}
	if atEOF && len(data) > 0 {
		return len(data), nil, nil
	}
	return 0, nil, nil
}
