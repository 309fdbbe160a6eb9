package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/urmzd/moonctl/pkg/jsonrpc"
	"github.com/urmzd/moonctl/pkg/metrics"
)

type recordingSender struct {
	sent chan jsonrpc.Request
	err  error
}

func newRecordingSender() *recordingSender {
	return &recordingSender{sent: make(chan jsonrpc.Request, 256)}
}

func (s *recordingSender) Send(data []byte) error {
	if s.err != nil {
		return s.err
	}
	var req jsonrpc.Request
	if err := json.Unmarshal(data, &req); err != nil {
		return err
	}
	s.sent <- req
	return nil
}

func (s *recordingSender) next(t *testing.T) jsonrpc.Request {
	t.Helper()
	select {
	case req := <-s.sent:
		return req
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for request")
		return jsonrpc.Request{}
	}
}

type callResult struct {
	value jsonrpc.Value
	err   error
}

func startCall(c *Correlator, method string, params map[string]any) <-chan callResult {
	ch := make(chan callResult, 1)
	go func() {
		v, err := c.Call(context.Background(), method, params)
		ch <- callResult{value: v, err: err}
	}()
	return ch
}

func await(t *testing.T, ch <-chan callResult) callResult {
	t.Helper()
	select {
	case r := <-ch:
		return r
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for call to return")
		return callResult{}
	}
}

func newConnected(sender Sender, opts Options) *Correlator {
	c := New(sender, opts)
	c.MarkConnected()
	return c
}

func TestCall_Resolve(t *testing.T) {
	sender := newRecordingSender()
	c := newConnected(sender, Options{})

	res := startCall(c, "printer.info", nil)
	req := sender.next(t)
	assert.Equal(t, "2.0", req.JSONRPC)
	assert.Equal(t, "printer.info", req.Method)

	assert.True(t, c.Resolve(req.ID, jsonrpc.String("ready")))

	r := await(t, res)
	require.NoError(t, r.err)
	s, _ := r.value.AsString()
	assert.Equal(t, "ready", s)
	assert.Equal(t, 0, c.Pending())
}

func TestCall_ConcurrentRepliesInReverseOrder(t *testing.T) {
	const n = 100
	sender := newRecordingSender()
	c := newConnected(sender, Options{})

	var wg sync.WaitGroup
	got := make([]float64, n)
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			v, err := c.Call(context.Background(), "echo", map[string]any{"n": i})
			errs[i] = err
			got[i], _ = v.AsFloat()
		}(i)
	}

	reqs := make([]jsonrpc.Request, 0, n)
	ids := make(map[int64]bool, n)
	for i := 0; i < n; i++ {
		req := sender.next(t)
		assert.False(t, ids[req.ID], "id %d issued twice while in flight", req.ID)
		ids[req.ID] = true
		reqs = append(reqs, req)
	}
	require.Equal(t, n, c.Pending())

	for i := len(reqs) - 1; i >= 0; i-- {
		echo := reqs[i].Params["n"].(float64)
		require.True(t, c.Resolve(reqs[i].ID, jsonrpc.Number(echo)))
	}
	wg.Wait()

	for i := 0; i < n; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, float64(i), got[i], "caller %d got another caller's result", i)
	}
	assert.Equal(t, 0, c.Pending())
}

func TestCall_RemoteError(t *testing.T) {
	sender := newRecordingSender()
	c := newConnected(sender, Options{})

	res := startCall(c, "printer.gcode.script", map[string]any{"script": "G1 X500"})
	req := sender.next(t)
	assert.True(t, c.Reject(req.ID, 400, "Move out of range"))

	r := await(t, res)
	var remote *jsonrpc.RemoteError
	require.True(t, errors.As(r.err, &remote))
	assert.Equal(t, 400, remote.Code)
	assert.Equal(t, "Move out of range", remote.Message)
}

func TestAbort_FailsEveryPendingCallOnce(t *testing.T) {
	sender := newRecordingSender()
	c := newConnected(sender, Options{})

	results := []<-chan callResult{
		startCall(c, "a", nil),
		startCall(c, "b", nil),
		startCall(c, "c", nil),
	}
	for range results {
		sender.next(t)
	}

	assert.Equal(t, 3, c.Abort(errors.New("socket closed")))
	assert.Equal(t, 0, c.Pending())

	for _, ch := range results {
		r := await(t, ch)
		assert.ErrorIs(t, r.err, ErrConnectionLost)
		select {
		case extra := <-ch:
			t.Fatalf("call completed twice: %v", extra)
		default:
		}
	}

	assert.Equal(t, 0, c.Abort(errors.New("again")), "second abort must be a no-op")

	_, err := c.Call(context.Background(), "after", nil)
	assert.ErrorIs(t, err, ErrNotConnected)
}

func TestCall_NotConnected(t *testing.T) {
	sender := newRecordingSender()
	c := New(sender, Options{})

	_, err := c.Call(context.Background(), "printer.info", nil)
	assert.ErrorIs(t, err, ErrNotConnected)
	assert.Empty(t, sender.sent)
}

func TestCall_EncodingFailedIsNeverSent(t *testing.T) {
	sender := newRecordingSender()
	c := newConnected(sender, Options{})

	_, err := c.Call(context.Background(), "bad", map[string]any{"v": math.Inf(1)})
	assert.ErrorIs(t, err, ErrEncodingFailed)
	assert.Empty(t, sender.sent)
	assert.Equal(t, 0, c.Pending())
}

func TestCall_SendFailure(t *testing.T) {
	broken := errors.New("broken pipe")
	c := newConnected(&recordingSender{err: broken}, Options{})

	_, err := c.Call(context.Background(), "printer.info", nil)
	assert.ErrorIs(t, err, ErrNotConnected)
	assert.ErrorIs(t, err, broken)
	assert.Equal(t, 0, c.Pending())
}

func TestCall_Timeout(t *testing.T) {
	sender := newRecordingSender()
	c := newConnected(sender, Options{Timeout: 20 * time.Millisecond})

	_, err := c.Call(context.Background(), "slow", nil)
	assert.ErrorIs(t, err, ErrTimeout)

	var remote *jsonrpc.RemoteError
	require.True(t, errors.As(err, &remote))
	assert.Equal(t, jsonrpc.CodeTimeout, remote.Code)

	req := sender.next(t)
	assert.False(t, c.Resolve(req.ID, jsonrpc.Null()), "late reply must be dropped")
	assert.Equal(t, 0, c.Pending())
}

func TestCall_ContextCanceled(t *testing.T) {
	sender := newRecordingSender()
	c := newConnected(sender, Options{})

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		_, err := c.Call(ctx, "slow", nil)
		errCh <- err
	}()
	sender.next(t)
	cancel()

	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("call did not return after cancel")
	}
	assert.Equal(t, 0, c.Pending())
}

func TestResolve_UnknownID(t *testing.T) {
	c := newConnected(newRecordingSender(), Options{})
	assert.False(t, c.Resolve(12345, jsonrpc.Null()))
	assert.False(t, c.Reject(12345, 1, "nope"))
}

func TestSerializePolicy_OneCallInFlight(t *testing.T) {
	sender := newRecordingSender()
	c := newConnected(sender, Options{Policy: PolicySerialize})

	first := startCall(c, "first", nil)
	req1 := sender.next(t)

	second := startCall(c, "second", nil)
	select {
	case req := <-sender.sent:
		t.Fatalf("second call sent while first in flight: %s", req.Method)
	case <-time.After(50 * time.Millisecond):
	}

	c.Resolve(req1.ID, jsonrpc.Number(1))
	require.NoError(t, await(t, first).err)

	req2 := sender.next(t)
	assert.Equal(t, "second", req2.Method)
	c.Resolve(req2.ID, jsonrpc.Number(2))
	require.NoError(t, await(t, second).err)
}

func TestRegister_SkipsIDsInFlight(t *testing.T) {
	c := newConnected(newRecordingSender(), Options{})
	c.pending[1] = &pendingCall{done: make(chan outcome, 1)}
	c.nextID = maxID

	id, _, err := c.register("wrap")
	require.NoError(t, err)
	assert.Equal(t, int64(2), id)
}

func TestParsePolicy(t *testing.T) {
	p, err := ParsePolicy("serialize")
	require.NoError(t, err)
	assert.Equal(t, PolicySerialize, p)

	p, err = ParsePolicy("")
	require.NoError(t, err)
	assert.Equal(t, PolicyUnlimited, p)

	_, err = ParsePolicy("bogus")
	assert.Error(t, err)
}

func TestCall_UnknownMethodsShareOneMetricSeries(t *testing.T) {
	sender := newRecordingSender()
	c := newConnected(sender, Options{})
	other := metrics.RPCCalls.WithLabelValues(metrics.OtherMethod, "ok")
	before := testutil.ToFloat64(other)

	for _, method := range []string{"my_plugin.calibrate", "spoolman.v1.get_spool"} {
		res := startCall(c, method, nil)
		req := sender.next(t)
		require.True(t, c.Resolve(req.ID, jsonrpc.Null()))
		require.NoError(t, await(t, res).err)
	}

	assert.Equal(t, before+2, testutil.ToFloat64(other))
	assert.False(t, metrics.RPCCalls.DeleteLabelValues("my_plugin.calibrate", "ok"))
	assert.False(t, metrics.RPCCalls.DeleteLabelValues("spoolman.v1.get_spool", "ok"))
}
