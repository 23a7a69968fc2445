package channel

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ScGaSe/smartlogistics-sub001/bus"
	"github.com/ScGaSe/smartlogistics-sub001/errors"
	"github.com/ScGaSe/smartlogistics-sub001/message"
	"github.com/ScGaSe/smartlogistics-sub001/metric"
	"github.com/ScGaSe/smartlogistics-sub001/pkg/retry"
)

// Decoder turns a raw frame into a typed event
type Decoder func(data []byte) (any, error)

// Supervisor owns one logical channel: its session, its transport connection
// and its reconnection state.
type Supervisor struct {
	kind      Kind
	decode    Decoder
	onEvent   func(any)
	onDeliver func(any)

	dialer      Dialer
	endpoint    EndpointProvider
	policy      retry.Policy
	bus         bus.MessageBus
	ownsBus     bool
	logger      *slog.Logger
	metrics     *metric.Metrics
	stopTimeout time.Duration

	// emitMu serializes event emission against session teardown.
	// Lock order: emitMu before mu.
	emitMu sync.Mutex

	// mu guards the session fields and orders state publication
	mu        sync.Mutex
	state     State
	params    Params
	attempts  int
	lastErr   string
	exhausted bool
	manual    bool
	closed    bool
	conn      Conn
	writeErr  error
	cancel    context.CancelFunc

	// gen identifies the current session; bumped on every teardown
	gen atomic.Uint64

	snapshot atomic.Pointer[Snapshot]
	wg       sync.WaitGroup
}

// NewSupervisor creates a disconnected supervisor for kind
func NewSupervisor(kind Kind, decode Decoder, opts ...Option) *Supervisor {
	s := &Supervisor{
		kind:        kind,
		decode:      decode,
		endpoint:    StaticEndpoint{},
		policy:      DefaultPolicy(kind),
		logger:      slog.Default(),
		stopTimeout: 5 * time.Second,
		state:       Disconnected,
	}
	for _, opt := range opts {
		opt(s)
	}

	s.logger = s.logger.With("component", "channel", "kind", kind.String())
	if s.dialer == nil {
		s.dialer = NewWebSocketDialer()
	}
	if s.bus == nil {
		s.bus = bus.New(bus.DefaultCapacity, s.logger)
		s.ownsBus = true
	}
	if s.decode == nil {
		s.decode = func(data []byte) (any, error) {
			_, err := message.ParseEnvelope(data)
			return data, err
		}
	}

	s.snapshot.Store(&Snapshot{Kind: kind, State: Disconnected, LastChange: time.Now()})
	s.metrics.RecordChannelState(kind.String(), int(Disconnected))
	return s
}

// Kind returns the channel kind
func (s *Supervisor) Kind() Kind { return s.kind }

// Mode returns the dialer mode ("live" or "fallback")
func (s *Supervisor) Mode() string { return s.dialer.Mode() }

// State returns the current state
func (s *Supervisor) State() State {
	return s.snapshot.Load().State
}

// Snapshot returns the current observable state
func (s *Supervisor) Snapshot() Snapshot {
	return *s.snapshot.Load()
}

// LastError returns the description of the last transport or exhaustion
// error, or "" when there is none
func (s *Supervisor) LastError() string {
	return s.snapshot.Load().LastError
}

// ClearError clears the last error and republishes the snapshot
func (s *Supervisor) ClearError() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.lastErr == "" {
		return
	}
	s.lastErr = ""
	s.publishLocked()
}

// Bus returns the channel bus
func (s *Supervisor) Bus() bus.MessageBus { return s.bus }

// SubscribeState returns a subscription receiving every published Snapshot
func (s *Supervisor) SubscribeState() bus.Subscription {
	return s.bus.Subscribe(bus.TopicState)
}

// SubscribeEvents returns a subscription receiving every decoded event
func (s *Supervisor) SubscribeEvents() bus.Subscription {
	return s.bus.Subscribe(bus.TopicEvent)
}

// SubscribeSession returns a subscription receiving every decoded event as
// an Event carrying the params of the session that read it
func (s *Supervisor) SubscribeSession() bus.Subscription {
	return s.bus.Subscribe(bus.TopicSession)
}

// Unsubscribe releases a subscription
func (s *Supervisor) Unsubscribe(ch bus.Subscription) {
	s.bus.Unsubscribe(ch)
}

// Connect starts a session for params. It is a no-op when the channel is
// already connected with the same params; any other session is torn down
// first. Connecting is published before Connect returns; everything else is
// observed asynchronously. Only invalid params or a closed supervisor return
// an error.
func (s *Supervisor) Connect(params Params) error {
	if err := s.kind.Validate(params); err != nil {
		return err
	}

	s.emitMu.Lock()
	s.mu.Lock()

	if s.closed {
		s.mu.Unlock()
		s.emitMu.Unlock()
		return errors.WrapInvalid(errors.ErrClosed, "Supervisor", "Connect", "check closed")
	}

	if s.state == Connected && s.params == params {
		s.mu.Unlock()
		s.emitMu.Unlock()
		s.logger.Debug("connect ignored, already connected", "params", params)
		return nil
	}

	old := s.teardownLocked()
	if s.state != Disconnected {
		s.transitionLocked(Disconnected)
	}

	s.manual = false
	s.attempts = 0
	s.exhausted = false
	s.params = params

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	gen := s.gen.Load()
	s.transitionLocked(Connecting)

	s.wg.Add(1)
	go s.run(ctx, gen, params)

	s.mu.Unlock()
	s.emitMu.Unlock()

	closeConn(old, "session superseded")
	return nil
}

// Disconnect ends the session: pending retries and fallback timers are
// cancelled, the connection is closed with a normal closure and Disconnected
// is published. Nothing from the old session is published after Disconnect
// returns. Safe to call when already disconnected.
func (s *Supervisor) Disconnect() {
	conn := s.stop(false)
	closeConn(conn, "client disconnect")
}

// Close disconnects, waits for the session goroutine and shuts the bus down
// when the supervisor created it. Connect fails after Close.
func (s *Supervisor) Close() error {
	conn := s.stop(true)
	closeConn(conn, "client shutdown")

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	var err error
	select {
	case <-done:
	case <-time.After(s.stopTimeout):
		err = errors.WrapTransient(
			fmt.Errorf("session still running after %v", s.stopTimeout),
			"Supervisor", "Close", "wait for session")
		s.logger.Warn("close timed out", "timeout", s.stopTimeout)
	}

	if s.ownsBus {
		s.bus.Close()
	}
	return err
}

func (s *Supervisor) stop(closing bool) Conn {
	s.emitMu.Lock()
	defer s.emitMu.Unlock()
	s.mu.Lock()
	defer s.mu.Unlock()

	if closing {
		s.closed = true
	}
	s.manual = true
	conn := s.teardownLocked()
	s.params = Params{}
	s.attempts = 0
	s.transitionLocked(Disconnected)
	return conn
}

// Send writes a frame when connected. When not connected it is a logged
// no-op returning false. A write failure closes the connection, which runs
// the reconnection policy.
func (s *Supervisor) Send(ctx context.Context, data []byte) bool {
	s.mu.Lock()
	conn, state, gen := s.conn, s.state, s.gen.Load()
	s.mu.Unlock()

	if state != Connected || conn == nil {
		s.logger.Debug("send skipped, channel not connected", "state", state.String())
		s.metrics.RecordFrameSent(s.kind.String(), "dropped")
		return false
	}

	if err := conn.Write(ctx, data); err != nil {
		s.metrics.RecordFrameSent(s.kind.String(), "error")
		s.logger.Warn("send failed, closing connection", "error", err)

		s.mu.Lock()
		if s.gen.Load() == gen && s.conn == conn {
			s.writeErr = err
		}
		s.mu.Unlock()

		_ = conn.Close(CloseGoingAway, "write failed")
		return false
	}

	s.metrics.RecordFrameSent(s.kind.String(), "ok")
	return true
}

// teardownLocked ends the current session and returns its connection for
// the caller to close outside the locks
func (s *Supervisor) teardownLocked() Conn {
	s.gen.Add(1)
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	conn := s.conn
	s.conn = nil
	s.writeErr = nil
	return conn
}

// run drives one session until it is torn down or the policy stops it
func (s *Supervisor) run(ctx context.Context, gen uint64, params Params) {
	defer s.wg.Done()

	for {
		ep := ResolveEndpoint(s.endpoint, s.kind, params, s.logger)

		start := time.Now()
		conn, err := s.dialer.Dial(ctx, ep)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			s.logger.Warn("dial failed", "url", ep.URL, "mode", s.dialer.Mode(), "error", err)
			if !s.retry(ctx, gen, err) {
				return
			}
			continue
		}

		if !s.attach(gen, conn, time.Since(start)) {
			closeConn(conn, "session superseded")
			return
		}
		s.logger.Info("channel connected", "url", ep.URL, "mode", s.dialer.Mode())

		err = s.readLoop(ctx, gen, params, conn)
		closeConn(conn, "connection lost")
		if !s.detach(gen, conn) || ctx.Err() != nil {
			return
		}

		s.logger.Warn("connection lost", "error", err)
		if !s.retry(ctx, gen, err) {
			return
		}
	}
}

func (s *Supervisor) attach(gen uint64, conn Conn, dial time.Duration) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.gen.Load() != gen {
		return false
	}
	s.conn = conn
	s.writeErr = nil
	s.attempts = 0
	s.exhausted = false
	s.lastErr = ""
	s.transitionLocked(Connected)
	s.metrics.RecordConnect(s.kind.String(), s.dialer.Mode(), dial)
	return true
}

func (s *Supervisor) detach(gen uint64, conn Conn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.gen.Load() != gen {
		return false
	}
	if s.conn == conn {
		s.conn = nil
	}
	return true
}

func (s *Supervisor) readLoop(ctx context.Context, gen uint64, params Params, conn Conn) error {
	stop := context.AfterFunc(ctx, func() {
		_ = conn.Close(CloseNormal, "session ended")
	})
	defer stop()

	for {
		data, err := conn.Read(ctx)
		if err != nil {
			return err
		}
		s.handleFrame(gen, params, data)
	}
}

// handleFrame emits one frame, then runs the delivery handler outside the
// emission lock while the session is still current.
func (s *Supervisor) handleFrame(gen uint64, params Params, data []byte) {
	event, ok := s.emit(gen, params, data)
	if !ok || s.onDeliver == nil || s.gen.Load() != gen {
		return
	}
	s.onDeliver(event)
}

// emit decodes and publishes one frame. Decode failures never touch the
// channel state or the error field.
func (s *Supervisor) emit(gen uint64, params Params, data []byte) (any, bool) {
	s.emitMu.Lock()
	defer s.emitMu.Unlock()

	if s.gen.Load() != gen {
		return nil, false
	}

	kind := s.kind.String()
	s.metrics.RecordFrameReceived(kind)

	event, err := s.decode(data)
	if err != nil {
		reason := message.DropReason(err)
		s.metrics.RecordDecodeFailure(kind, reason)
		if reason == "control" {
			return nil, false
		}
		s.logger.Warn("dropping undecodable frame", "reason", reason, "error", err, "size", len(data))
		return nil, false
	}

	if s.onEvent != nil {
		s.onEvent(event)
	}
	s.bus.Publish(bus.TopicEvent, event)
	s.bus.Publish(bus.TopicSession, Event{Kind: s.kind, Params: params, Payload: event})
	s.metrics.RecordEventPublished(kind)
	return event, true
}

// retry applies the reconnection policy after a failure. It returns true
// when the session should dial again.
func (s *Supervisor) retry(ctx context.Context, gen uint64, cause error) bool {
	s.mu.Lock()

	if s.gen.Load() != gen || s.manual {
		s.mu.Unlock()
		return false
	}
	if s.writeErr != nil {
		cause = s.writeErr
		s.writeErr = nil
	}

	if s.policy.Exhausted(s.attempts) {
		attempts := s.attempts
		s.exhausted = true
		s.lastErr = errors.Describe(errors.WrapFatal(
			fmt.Errorf("%w: %d attempts: %v", errors.ErrRetriesExhausted, attempts, cause),
			"Supervisor", "retry", "reconnect"))
		s.transitionLocked(Disconnected)
		s.mu.Unlock()

		s.metrics.RecordExhausted(s.kind.String())
		s.logger.Error("reconnect attempts exhausted", "attempts", attempts, "error", cause)
		return false
	}

	s.lastErr = errors.Describe(cause)
	s.transitionLocked(Disconnected)
	s.attempts++
	attempt := s.attempts
	s.transitionLocked(Reconnecting)
	s.mu.Unlock()

	delay := s.policy.Delay(attempt)
	s.metrics.RecordReconnectAttempt(s.kind.String())
	s.logger.Info("scheduling reconnect", "attempt", attempt, "max_attempts", s.policy.MaxAttempts, "delay", delay)

	if err := retry.Wait(ctx, delay); err != nil {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gen.Load() != gen || s.manual {
		return false
	}
	s.transitionLocked(Connecting)
	return true
}

// transitionLocked moves to state and publishes the snapshot. Edges outside
// the state machine are logged and not published.
func (s *Supervisor) transitionLocked(to State) {
	from := s.state
	if !ValidTransition(from, to) {
		s.logger.Error("illegal state transition suppressed", "from", from.String(), "to", to.String())
		return
	}
	s.state = to
	if from != to {
		s.logger.Debug("state change", "from", from.String(), "to", to.String())
	}
	s.metrics.RecordChannelState(s.kind.String(), int(to))
	s.publishLocked()
}

func (s *Supervisor) publishLocked() {
	snap := &Snapshot{
		Kind:       s.kind,
		State:      s.state,
		Params:     s.params,
		Attempts:   s.attempts,
		LastError:  s.lastErr,
		Exhausted:  s.exhausted,
		LastChange: time.Now(),
	}
	s.snapshot.Store(snap)
	s.bus.Publish(bus.TopicState, *snap)
}

func closeConn(conn Conn, reason string) {
	if conn == nil {
		return
	}
	_ = conn.Close(CloseNormal, reason)
}
