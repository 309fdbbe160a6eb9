// Package transport carries JSON-RPC text frames between the client and a
// Moonraker host.
package transport

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

var (
	// ErrNotConnected indicates Send was called without an open connection.
	ErrNotConnected = errors.New("transport not connected")

	// ErrClosed indicates the transport was closed and cannot reconnect.
	ErrClosed = errors.New("transport closed")
)

// EventType identifies a transport event.
type EventType int

const (
	EventConnected EventType = iota
	EventDisconnected
	EventText
	EventError
)

func (t EventType) String() string {
	switch t {
	case EventConnected:
		return "connected"
	case EventDisconnected:
		return "disconnected"
	case EventText:
		return "text"
	case EventError:
		return "error"
	default:
		return "unknown"
	}
}

// Event is delivered on the Events channel in the order it happened.
type Event struct {
	Type EventType
	// Payload is the frame for EventText.
	Payload []byte
	// Err is the cause for EventDisconnected and EventError.
	Err error
}

// Transport is a duplex text-message connection. Events is closed after
// Close returns.
type Transport interface {
	Connect(ctx context.Context) error
	Send(data []byte) error
	Events() <-chan Event
	Close() error
}

// DefaultBaudRate is used for serial endpoints without a baud parameter.
const DefaultBaudRate = 115200

// Open builds a transport for an endpoint URL:
//
//	ws://host:7125/websocket, wss://...  WebSocket
//	http://host:7125                     WebSocket at /websocket
//	unix:///path/to/moonraker.sock       ETX-framed unix socket
//	serial:///dev/ttyUSB0?baud=250000    ETX-framed serial line
func Open(endpoint string) (Transport, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("parse endpoint %q: %w", endpoint, err)
	}

	switch strings.ToLower(u.Scheme) {
	case "ws", "wss":
		return NewWebSocket(u.String()), nil

	case "http", "https":
		if u.Scheme == "https" {
			u.Scheme = "wss"
		} else {
			u.Scheme = "ws"
		}
		if u.Path == "" || u.Path == "/" {
			u.Path = "/websocket"
		}
		return NewWebSocket(u.String()), nil

	case "unix":
		if u.Path == "" {
			return nil, fmt.Errorf("unix endpoint %q has no socket path", endpoint)
		}
		return NewStream("unix:"+u.Path, DialUnix(u.Path)), nil

	case "serial":
		if u.Path == "" {
			return nil, fmt.Errorf("serial endpoint %q has no device path", endpoint)
		}
		baud := DefaultBaudRate
		if b := u.Query().Get("baud"); b != "" {
			baud, err = strconv.Atoi(b)
			if err != nil || baud <= 0 {
				return nil, fmt.Errorf("serial endpoint %q: invalid baud %q", endpoint, b)
			}
		}
		return NewStream("serial:"+u.Path, DialSerial(u.Path, baud)), nil

	default:
		return nil, fmt.Errorf("unsupported endpoint scheme %q", u.Scheme)
	}
}
