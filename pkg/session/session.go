// Package session owns one connection to a Moonraker host. It pumps transport
// events into the dispatcher, keeps the connection state, reruns the
// subscription bootstrap when the link or Klippy come back, and exposes the
// printer command surface as a device.Controller.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/urmzd/moonctl/pkg/bootstrap"
	"github.com/urmzd/moonctl/pkg/device"
	"github.com/urmzd/moonctl/pkg/dispatch"
	"github.com/urmzd/moonctl/pkg/jsonrpc"
	"github.com/urmzd/moonctl/pkg/metrics"
	"github.com/urmzd/moonctl/pkg/printer"
	"github.com/urmzd/moonctl/pkg/rpc"
	"github.com/urmzd/moonctl/pkg/transport"
)

// Options configures a Session.
type Options struct {
	RPC          rpc.Options
	HistoryCount int
	GCodeLogSize int
}

// Session implements device.Controller and device.EventSubscriber.
type Session struct {
	transport    transport.Transport
	correlator   *rpc.Correlator
	dispatcher   *dispatch.Dispatcher
	store        *printer.Store
	bootstrapper *bootstrap.Bootstrapper

	mu      sync.RWMutex
	state   device.ConnectionState
	changed chan struct{}

	bootMu      sync.Mutex
	bootRunning bool
	bootPending bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	once   sync.Once
}

var (
	_ device.Controller      = (*Session)(nil)
	_ device.EventSubscriber = (*Session)(nil)
)

// New assembles a session over tr. Nothing is sent until Start.
func New(tr transport.Transport, opts Options) *Session {
	if opts.GCodeLogSize <= 0 {
		opts.GCodeLogSize = printer.DefaultGCodeLogSize
	}
	if opts.HistoryCount <= 0 {
		opts.HistoryCount = bootstrap.DefaultHistoryCount
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		transport: tr,
		store:     printer.NewStore(opts.GCodeLogSize),
		changed:   make(chan struct{}),
		ctx:       ctx,
		cancel:    cancel,
	}
	s.correlator = rpc.New(tr, opts.RPC)
	s.dispatcher = dispatch.New(s.correlator, s.store)
	s.bootstrapper = bootstrap.New(s.correlator, s.store, opts.HistoryCount)
	s.dispatcher.OnKlippyState(s.onKlippyState)
	metrics.ConnectionState.Set(float64(device.StateDisconnected))
	return s
}

// Dial opens the transport for endpoint and starts a session over it. The
// returned session is connecting; use WaitState to block until it is ready.
func Dial(ctx context.Context, endpoint string, opts Options) (*Session, error) {
	tr, err := transport.Open(endpoint)
	if err != nil {
		return nil, err
	}
	s := New(tr, opts)
	if err := s.Start(ctx); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

// Start begins pumping transport events and dials the host.
func (s *Session) Start(ctx context.Context) error {
	s.wg.Add(1)
	go s.loop()

	s.setState(device.StateConnecting)
	if err := s.transport.Connect(ctx); err != nil {
		s.setState(device.StateDisconnected)
		return fmt.Errorf("connect: %w", err)
	}
	return nil
}

// Close tears down the transport and waits for background work to finish.
func (s *Session) Close() {
	s.once.Do(func() {
		s.cancel()
		if err := s.transport.Close(); err != nil {
			log.Warn().Err(err).Msg("Transport close failed")
		}
		s.wg.Wait()
		s.setState(device.StateDisconnected)
	})
}

// Store exposes the live state model.
func (s *Session) Store() *printer.Store { return s.store }

// Dispatcher exposes the frame router so callers can add notification handlers.
func (s *Session) Dispatcher() *dispatch.Dispatcher { return s.dispatcher }

// Phase reports the bootstrap phase.
func (s *Session) Phase() bootstrap.Phase { return s.bootstrapper.Phase() }

func (s *Session) ConnectionState() device.ConnectionState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

func (s *Session) IsConnected() bool { return s.correlator.Connected() }

// WaitState blocks until the connection reaches want or ctx ends.
func (s *Session) WaitState(ctx context.Context, want device.ConnectionState) error {
	for {
		s.mu.RLock()
		state, changed := s.state, s.changed
		s.mu.RUnlock()
		if state == want {
			return nil
		}
		select {
		case <-changed:
		case <-ctx.Done():
			return fmt.Errorf("waiting for %s (at %s): %w", want, state, ctx.Err())
		}
	}
}

func (s *Session) setState(state device.ConnectionState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.setStateLocked(state)
}

func (s *Session) setStateLocked(state device.ConnectionState) {
	if s.state == state {
		return
	}
	log.Info().Str("from", s.state.String()).Str("to", state.String()).Msg("Connection state changed")
	s.state = state
	close(s.changed)
	s.changed = make(chan struct{})
	metrics.ConnectionState.Set(float64(state))
}

func (s *Session) loop() {
	defer s.wg.Done()
	for ev := range s.transport.Events() {
		s.handle(ev)
	}
	if n := s.correlator.Abort(transport.ErrClosed); n > 0 {
		log.Debug().Int("calls", n).Msg("Failed pending calls on close")
	}
	s.setState(device.StateDisconnected)
}

func (s *Session) handle(ev transport.Event) {
	switch ev.Type {
	case transport.EventConnected:
		s.correlator.MarkConnected()
		s.setState(device.StateConnecting)
		s.scheduleBootstrap()

	case transport.EventDisconnected:
		reason := ev.Err
		if reason == nil {
			reason = transport.ErrNotConnected
		}
		s.correlator.Abort(reason)
		s.setState(device.StateDisconnected)

	case transport.EventText:
		s.dispatcher.Dispatch(ev.Payload)

	case transport.EventError:
		log.Warn().Err(ev.Err).Msg("Transport error")
		s.mu.Lock()
		if s.state == device.StateReady {
			s.setStateLocked(device.StateDegraded)
		}
		s.mu.Unlock()
		s.scheduleBootstrap()
	}
}

// onKlippyState runs on the dispatch path, so the bootstrap it triggers must
// not block frame delivery.
func (s *Session) onKlippyState(state printer.KlippyState) {
	log.Info().Str("klippy", state.String()).Msg("Klippy state notification")
	s.scheduleBootstrap()
}

// scheduleBootstrap starts a bootstrap run, or queues exactly one rerun if
// one is already in flight.
func (s *Session) scheduleBootstrap() {
	if s.ctx.Err() != nil {
		return
	}
	s.bootMu.Lock()
	if s.bootRunning {
		s.bootPending = true
		s.bootMu.Unlock()
		return
	}
	s.bootRunning = true
	s.bootMu.Unlock()

	s.wg.Add(1)
	go s.runBootstraps()
}

func (s *Session) runBootstraps() {
	defer s.wg.Done()
	for {
		err := s.bootstrapper.Run(s.ctx)
		s.settle(err)

		s.bootMu.Lock()
		if s.bootPending && s.ctx.Err() == nil {
			s.bootPending = false
			s.bootMu.Unlock()
			continue
		}
		s.bootPending = false
		s.bootRunning = false
		s.bootMu.Unlock()
		return
	}
}

// settle moves the connection to Ready or Degraded after a bootstrap, unless
// the link dropped meanwhile.
func (s *Session) settle(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.correlator.Connected() {
		return
	}
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			log.Warn().Err(err).Msg("Bootstrap failed")
		}
		s.setStateLocked(device.StateDegraded)
		return
	}
	s.setStateLocked(device.StateReady)
}

// Resync reruns the subscription bootstrap on demand.
func (s *Session) Resync() { s.scheduleBootstrap() }

func (s *Session) Snapshot() printer.Snapshot { return s.store.Snapshot() }

func (s *Session) GCodes(limit int) []printer.GCodeEntry { return s.store.GCodes(limit) }

func (s *Session) Subscribe() chan printer.Event { return s.store.Subscribe() }

// SubscribeBuffered subscribes with a channel of the given capacity.
func (s *Session) SubscribeBuffered(size int) chan printer.Event {
	return s.store.SubscribeBuffered(size)
}

func (s *Session) Unsubscribe(ch chan printer.Event) { s.store.Unsubscribe(ch) }

// Call sends an arbitrary method and maps transport failures onto device errors.
func (s *Session) Call(ctx context.Context, method string, params map[string]any) (jsonrpc.Value, error) {
	result, err := s.correlator.Call(ctx, method, params)
	return result, translate(err)
}

func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, rpc.ErrNotConnected), errors.Is(err, rpc.ErrConnectionLost):
		return fmt.Errorf("%w: %w", device.ErrNotConnected, err)
	case errors.Is(err, rpc.ErrTimeout):
		return fmt.Errorf("%w: %w", device.ErrTimeout, err)
	}
	return err
}
