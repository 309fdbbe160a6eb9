package transport

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const (
	writeWait      = 10 * time.Second
	maxMessageSize = 8 << 20
	eventBuffer    = 64
)

// WebSocket is a Transport over a gorilla/websocket connection.
type WebSocket struct {
	url    string
	dialer *websocket.Dialer

	mu     sync.Mutex
	conn   *websocket.Conn
	closed bool

	writeMu sync.Mutex

	events    chan Event
	done      chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// NewWebSocket creates an unconnected WebSocket transport for url.
func NewWebSocket(url string) *WebSocket {
	return &WebSocket{
		url: url,
		dialer: &websocket.Dialer{
			HandshakeTimeout: 10 * time.Second,
		},
		events: make(chan Event, eventBuffer),
		done:   make(chan struct{}),
	}
}

// Connect dials the server and starts reading. Calling it while connected
// is a no-op.
func (w *WebSocket) Connect(ctx context.Context) error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return ErrClosed
	}
	if w.conn != nil {
		w.mu.Unlock()
		return nil
	}
	w.mu.Unlock()

	conn, _, err := w.dialer.DialContext(ctx, w.url, nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", w.url, err)
	}
	conn.SetReadLimit(maxMessageSize)

	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		_ = conn.Close()
		return ErrClosed
	}
	w.conn = conn
	w.wg.Add(1)
	w.mu.Unlock()

	log.Info().Str("url", w.url).Msg("WebSocket connected")
	w.emit(Event{Type: EventConnected})

	go w.readLoop(conn)
	return nil
}

// Send writes one text frame.
func (w *WebSocket) Send(data []byte) error {
	w.mu.Lock()
	conn := w.conn
	w.mu.Unlock()
	if conn == nil {
		return ErrNotConnected
	}

	w.writeMu.Lock()
	defer w.writeMu.Unlock()

	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("write frame: %w", err)
	}
	return nil
}

// Events returns the event stream.
func (w *WebSocket) Events() <-chan Event {
	return w.events
}

// Close shuts the connection down and closes the event stream.
func (w *WebSocket) Close() error {
	w.closeOnce.Do(func() {
		w.mu.Lock()
		w.closed = true
		conn := w.conn
		w.mu.Unlock()

		close(w.done)
		if conn != nil {
			w.writeMu.Lock()
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(time.Second))
			w.writeMu.Unlock()
			_ = conn.Close()
		}
		w.wg.Wait()
		close(w.events)
	})
	return nil
}

func (w *WebSocket) readLoop(conn *websocket.Conn) {
	defer w.wg.Done()

	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			w.drop(conn, err)
			return
		}
		if msgType != websocket.TextMessage && msgType != websocket.BinaryMessage {
			continue
		}
		w.emit(Event{Type: EventText, Payload: data})
	}
}

func (w *WebSocket) drop(conn *websocket.Conn, err error) {
	w.mu.Lock()
	if w.conn == conn {
		w.conn = nil
	}
	w.mu.Unlock()
	_ = conn.Close()

	if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
		log.Info().Str("url", w.url).Msg("WebSocket closed by server")
	} else {
		log.Warn().Err(err).Str("url", w.url).Msg("WebSocket read failed")
	}
	w.emit(Event{Type: EventDisconnected, Err: err})
}

func (w *WebSocket) emit(ev Event) {
	select {
	case w.events <- ev:
	case <-w.done:
	}
}
