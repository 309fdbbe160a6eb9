// Package jsonrpc implements the subset of JSON-RPC 2.0 spoken by Moonraker:
// client requests, server responses and errors, and server notifications.
package jsonrpc

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Version is the protocol version sent on every request.
const Version = "2.0"

// Kind classifies an inbound frame.
type Kind int

const (
	KindInvalid Kind = iota
	KindResponse
	KindError
	KindNotification
)

func (k Kind) String() string {
	switch k {
	case KindResponse:
		return "response"
	case KindError:
		return "error"
	case KindNotification:
		return "notification"
	default:
		return "invalid"
	}
}

// Request is an outbound call.
type Request struct {
	JSONRPC string         `json:"jsonrpc"`
	Method  string         `json:"method"`
	Params  map[string]any `json:"params,omitempty"`
	ID      int64          `json:"id"`
}

// EncodeRequest serializes a call. Params that cannot be represented as JSON
// (NaN, channels, functions) produce an error.
func EncodeRequest(id int64, method string, params map[string]any) ([]byte, error) {
	return json.Marshal(Request{
		JSONRPC: Version,
		Method:  method,
		Params:  params,
		ID:      id,
	})
}

// Envelope is a classified inbound frame. Which fields are set depends on Kind.
type Envelope struct {
	Kind   Kind
	ID     int64
	Result Value
	Error  *RemoteError
	Method string
	Params Value
}

type wireEnvelope struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Method  *string         `json:"method"`
	Params  json.RawMessage `json:"params"`
	Result  json.RawMessage `json:"result"`
	Error   json.RawMessage `json:"error"`
}

// Decode parses one inbound frame and classifies it. Frames are tried as a
// response, then an error, then a notification; anything else returns an
// error wrapping ErrMalformed.
func Decode(raw []byte) (Envelope, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return Envelope{}, fmt.Errorf("%w: not a JSON object", ErrMalformed)
	}

	var w wireEnvelope
	if err := json.Unmarshal(trimmed, &w); err != nil {
		return Envelope{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	if present(w.ID) {
		idVal, err := Parse(w.ID)
		if err != nil {
			return Envelope{}, fmt.Errorf("%w: id: %v", ErrMalformed, err)
		}
		id, ok := idVal.AsInt()
		if !ok {
			return Envelope{}, fmt.Errorf("%w: id is not an integer", ErrMalformed)
		}

		switch {
		case w.Result != nil:
			result, err := Parse(w.Result)
			if err != nil {
				return Envelope{}, fmt.Errorf("%w: result: %v", ErrMalformed, err)
			}
			return Envelope{Kind: KindResponse, ID: id, Result: result}, nil

		case present(w.Error):
			remote, err := decodeError(w.Error)
			if err != nil {
				return Envelope{}, err
			}
			return Envelope{Kind: KindError, ID: id, Error: remote}, nil

		case w.Method != nil:
			return Envelope{}, fmt.Errorf("%w: server request %q is not supported", ErrMalformed, *w.Method)

		default:
			return Envelope{}, fmt.Errorf("%w: id %d without result or error", ErrMalformed, id)
		}
	}

	if w.Method != nil && *w.Method != "" {
		params := Null()
		if present(w.Params) {
			p, err := Parse(w.Params)
			if err != nil {
				return Envelope{}, fmt.Errorf("%w: params: %v", ErrMalformed, err)
			}
			params = p
		}
		return Envelope{Kind: KindNotification, Method: *w.Method, Params: params}, nil
	}

	if present(w.Error) {
		remote, err := decodeError(w.Error)
		if err != nil {
			return Envelope{}, err
		}
		return Envelope{}, fmt.Errorf("%w: error without id: %v", ErrMalformed, remote)
	}

	return Envelope{}, fmt.Errorf("%w: unrecognized envelope", ErrMalformed)
}

func decodeError(raw json.RawMessage) (*RemoteError, error) {
	v, err := Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: error: %v", ErrMalformed, err)
	}
	if v.Type() != TypeObject {
		return nil, fmt.Errorf("%w: error is a %s, not an object", ErrMalformed, v.Type())
	}

	remote := &RemoteError{}
	if c, ok := v.Get("code"); ok && !c.IsNull() {
		code, ok := c.AsInt()
		if !ok {
			return nil, fmt.Errorf("%w: error code is not an integer", ErrMalformed)
		}
		remote.Code = int(code)
	}
	if m, ok := v.Get("message"); ok {
		remote.Message, _ = m.AsString()
	}
	return remote, nil
}

// present reports whether a member was sent with a non-null value.
func present(raw json.RawMessage) bool {
	return len(raw) > 0 && string(bytes.TrimSpace(raw)) != "null"
}
