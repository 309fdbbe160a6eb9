// Package rpc correlates outbound JSON-RPC calls with the responses that
// arrive asynchronously on the same connection.
package rpc

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/urmzd/moonctl/pkg/jsonrpc"
	"github.com/urmzd/moonctl/pkg/metrics"
	"golang.org/x/time/rate"
)

var (
	// ErrNotConnected indicates the transport was not ready to carry the call.
	ErrNotConnected = errors.New("transport not connected")

	// ErrEncodingFailed indicates the request could not be serialized; it was never sent.
	ErrEncodingFailed = errors.New("request encoding failed")

	// ErrConnectionLost indicates the connection dropped before a reply arrived.
	ErrConnectionLost = errors.New("connection lost")

	// ErrTimeout matches calls that expired locally.
	ErrTimeout = jsonrpc.ErrTimeout
)

// maxID bounds request ids so they survive any JSON number representation.
const maxID = 1<<31 - 1

// Sender writes one encoded request to the connection.
type Sender interface {
	Send(data []byte) error
}

// Policy controls how many calls may be in flight at once.
type Policy int

const (
	// PolicyUnlimited lets any number of calls be in flight.
	PolicyUnlimited Policy = iota
	// PolicySerialize allows one call in flight; later callers queue.
	PolicySerialize
)

func (p Policy) String() string {
	if p == PolicySerialize {
		return "serialize"
	}
	return "unlimited"
}

// ParsePolicy maps a configuration string to a Policy.
func ParsePolicy(s string) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "unlimited":
		return PolicyUnlimited, nil
	case "serialize", "serial":
		return PolicySerialize, nil
	default:
		return PolicyUnlimited, fmt.Errorf("unknown send policy %q", s)
	}
}

// Options tune a Correlator. The zero value is unlimited concurrency with no
// timeout and no throttle.
type Options struct {
	Policy Policy

	// Timeout bounds how long a call waits for its reply. Zero waits until the
	// reply, an abort, or context cancellation.
	Timeout time.Duration

	// Limiter throttles outbound requests when set.
	Limiter *rate.Limiter
}

type outcome struct {
	result jsonrpc.Value
	err    error
}

type pendingCall struct {
	method  string
	started time.Time
	done    chan outcome
}

// Correlator owns the table of in-flight calls. Every call it registers is
// completed exactly once: by Resolve, Reject, Abort, its timeout or its
// context.
type Correlator struct {
	sender Sender
	opts   Options

	mu        sync.Mutex
	pending   map[int64]*pendingCall
	nextID    int64
	connected bool

	// slot is a one-element semaphore under PolicySerialize.
	slot chan struct{}
}

// New creates a Correlator that writes requests through sender. It starts in
// the not-connected state; call MarkConnected once the transport is up.
func New(sender Sender, opts Options) *Correlator {
	c := &Correlator{
		sender:  sender,
		opts:    opts,
		pending: make(map[int64]*pendingCall),
	}
	if opts.Policy == PolicySerialize {
		c.slot = make(chan struct{}, 1)
	}
	return c
}

// MarkConnected allows calls to be sent.
func (c *Correlator) MarkConnected() {
	c.mu.Lock()
	c.connected = true
	c.mu.Unlock()
}

// Connected reports whether calls are currently accepted.
func (c *Correlator) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

// Pending returns the number of calls awaiting a reply.
func (c *Correlator) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

// Call sends method with params and blocks until the matching reply arrives.
// A RemoteError is returned for server-side failures.
func (c *Correlator) Call(ctx context.Context, method string, params map[string]any) (jsonrpc.Value, error) {
	if c.slot != nil {
		select {
		case c.slot <- struct{}{}:
			defer func() { <-c.slot }()
		case <-ctx.Done():
			return jsonrpc.Value{}, ctx.Err()
		}
	}

	if c.opts.Limiter != nil {
		if err := c.opts.Limiter.Wait(ctx); err != nil {
			return jsonrpc.Value{}, fmt.Errorf("throttle %s: %w", method, err)
		}
	}

	id, call, err := c.register(method)
	if err != nil {
		metrics.RPCCalls.WithLabelValues(metrics.MethodLabel(method), outcomeLabel(err)).Inc()
		return jsonrpc.Value{}, err
	}

	data, err := jsonrpc.EncodeRequest(id, method, params)
	if err != nil {
		c.take(id)
		err = fmt.Errorf("%w: %s: %v", ErrEncodingFailed, method, err)
		metrics.RPCCalls.WithLabelValues(metrics.MethodLabel(method), outcomeLabel(err)).Inc()
		return jsonrpc.Value{}, err
	}

	log.Debug().
		Int64("id", id).
		Str("method", method).
		Int("bytes", len(data)).
		Msg("RPC TX call")

	if err := c.sender.Send(data); err != nil {
		c.take(id)
		err = fmt.Errorf("send %s: %w: %w", method, ErrNotConnected, err)
		metrics.RPCCalls.WithLabelValues(metrics.MethodLabel(method), outcomeLabel(err)).Inc()
		return jsonrpc.Value{}, err
	}

	var expired <-chan time.Time
	if c.opts.Timeout > 0 {
		timer := time.NewTimer(c.opts.Timeout)
		defer timer.Stop()
		expired = timer.C
	}

	var out outcome
	select {
	case out = <-call.done:
	case <-expired:
		// Whoever removes the call from the table delivers its outcome, so
		// the receive below always completes.
		c.Reject(id, jsonrpc.CodeTimeout, fmt.Sprintf("no reply to %s within %s", method, c.opts.Timeout))
		out = <-call.done
	case <-ctx.Done():
		if c.take(id) != nil {
			out = outcome{err: ctx.Err()}
		} else {
			out = <-call.done
		}
	}

	metrics.RPCCalls.WithLabelValues(metrics.MethodLabel(method), outcomeLabel(out.err)).Inc()
	metrics.RPCDuration.WithLabelValues(metrics.MethodLabel(method)).Observe(time.Since(call.started).Seconds())
	return out.result, out.err
}

// Resolve completes the call with the given id. It returns false when no
// call is waiting for that id.
func (c *Correlator) Resolve(id int64, result jsonrpc.Value) bool {
	call := c.take(id)
	if call == nil {
		log.Debug().Int64("id", id).Msg("Dropping response for unknown call")
		metrics.RPCUnmatched.Inc()
		return false
	}
	log.Debug().Int64("id", id).Str("method", call.method).Msg("RPC RX response")
	call.done <- outcome{result: result}
	return true
}

// Reject fails the call with the given id with a RemoteError.
func (c *Correlator) Reject(id int64, code int, message string) bool {
	call := c.take(id)
	if call == nil {
		log.Debug().Int64("id", id).Int("code", code).Msg("Dropping error for unknown call")
		metrics.RPCUnmatched.Inc()
		return false
	}
	call.done <- outcome{err: &jsonrpc.RemoteError{Code: code, Message: message}}
	return true
}

// Abort fails every pending call with ErrConnectionLost and refuses new calls
// until MarkConnected. Calling it again with an empty table is a no-op.
// It returns the number of calls it failed.
func (c *Correlator) Abort(reason error) int {
	c.mu.Lock()
	c.connected = false
	calls := c.pending
	c.pending = make(map[int64]*pendingCall)
	c.mu.Unlock()

	metrics.RPCPending.Set(0)
	if len(calls) == 0 {
		return 0
	}

	err := ErrConnectionLost
	if reason != nil {
		err = fmt.Errorf("%w: %w", ErrConnectionLost, reason)
	}
	for _, call := range calls {
		call.done <- outcome{err: err}
	}

	log.Warn().Int("pending", len(calls)).AnErr("reason", reason).Msg("Aborted pending calls")
	return len(calls)
}

// register allocates an id that is not in flight and records the call.
func (c *Correlator) register(method string) (int64, *pendingCall, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.connected {
		return 0, nil, fmt.Errorf("call %s: %w", method, ErrNotConnected)
	}

	for {
		c.nextID++
		if c.nextID > maxID {
			c.nextID = 1
		}
		if _, busy := c.pending[c.nextID]; !busy {
			break
		}
	}

	call := &pendingCall{
		method:  method,
		started: time.Now(),
		done:    make(chan outcome, 1),
	}
	c.pending[c.nextID] = call
	metrics.RPCPending.Set(float64(len(c.pending)))
	return c.nextID, call, nil
}

// take removes and returns the call with id, or nil.
func (c *Correlator) take(id int64) *pendingCall {
	c.mu.Lock()
	defer c.mu.Unlock()

	call, ok := c.pending[id]
	if !ok {
		return nil
	}
	delete(c.pending, id)
	metrics.RPCPending.Set(float64(len(c.pending)))
	return call
}

func outcomeLabel(err error) string {
	var remote *jsonrpc.RemoteError
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrTimeout):
		return "timeout"
	case errors.As(err, &remote):
		return "remote_error"
	case errors.Is(err, ErrConnectionLost):
		return "connection_lost"
	case errors.Is(err, ErrNotConnected):
		return "not_connected"
	case errors.Is(err, ErrEncodingFailed):
		return "encoding_failed"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	default:
		return "error"
	}
}
