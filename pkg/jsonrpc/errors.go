package jsonrpc

import (
	"errors"
	"fmt"
)

// Standard JSON-RPC 2.0 error codes plus the locally generated timeout code.
const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603

	// CodeTimeout is never sent by a server; the correlator uses it when a
	// call expires locally.
	CodeTimeout = -32001
)

var (
	// ErrMalformed indicates an inbound frame that is not one of the
	// recognized envelope shapes.
	ErrMalformed = errors.New("malformed message")

	// ErrTimeout matches any RemoteError carrying CodeTimeout.
	ErrTimeout = errors.New("request timed out")
)

// RemoteError is an error object returned by the server for a call.
type RemoteError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("remote error %d: %s", e.Code, e.Message)
}

func (e *RemoteError) Is(target error) bool {
	return target == ErrTimeout && e.Code == CodeTimeout
}
