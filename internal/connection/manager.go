package connection

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rickgao/relay/internal/codec"
	"github.com/rickgao/relay/internal/events"
	"github.com/rickgao/relay/internal/metrics"
	"github.com/rickgao/relay/internal/model"
)

// Manager maintains a single logical connection to one endpoint.
//
// All mutable state (connecting flag, retry counter, transport handle,
// lifecycle state) is guarded by mu. Events and state changes are published
// while mu is held, so subscribers observe them in the order they happened.
type Manager struct {
	cfg       ManagerConfig
	transport Transport
	logger    *slog.Logger
	metrics   *metrics.Metrics
	sleep     func(ctx context.Context, d time.Duration) error

	events *events.Stream[model.Event]
	states *events.Stream[State]

	mu         sync.Mutex
	state      State
	connecting bool
	retryCount uint
	conn       Conn
	session    string             // ID of conn
	gen        uint64             // bumped on every new session and on disconnect
	cancel     context.CancelFunc // cancels the current session's dial, receive, and backoff
	closed     bool
}

// ManagerOption customizes a Manager.
type ManagerOption func(*Manager)

// WithSleep replaces the backoff wait. f must return a non-nil error if
// ctx is cancelled before d elapses.
func WithSleep(f func(ctx context.Context, d time.Duration) error) ManagerOption {
	return func(m *Manager) {
		m.sleep = f
	}
}

// WithMetrics attaches counters. Each Metrics value serves one Manager.
func WithMetrics(mt *metrics.Metrics) ManagerOption {
	return func(m *Manager) {
		m.metrics = mt
	}
}

// NewManager creates a Connection Manager in the Idle state.
func NewManager(cfg ManagerConfig, transport Transport, logger *slog.Logger, opts ...ManagerOption) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.EventName == "" {
		cfg.EventName = DefaultEventName
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = DefaultManagerConfig().BaseDelay
	}

	m := &Manager{
		cfg:       cfg,
		transport: transport,
		logger:    logger,
		sleep:     sleepContext,
		events:    events.NewStream[model.Event](),
		states:    events.NewStream[State](),
		state:     State{Phase: PhaseIdle},
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.metrics == nil {
		m.metrics = metrics.New()
	}

	m.metrics.Gauge("relay_retry_count", func() float64 {
		return float64(m.RetryCount())
	})
	m.metrics.Gauge("relay_connection_phase", func() float64 {
		return float64(m.State().Phase)
	})
	m.metrics.Gauge("relay_event_backlog", func() float64 {
		return float64(m.events.Stats().Pending)
	})

	return m
}

// Connect opens a connection unless one is already open or being
// established, in which case it returns nil without doing anything.
//
// A manual Connect starts with a fresh retry counter. If the transport
// cannot be opened the error is returned, published as a Failed event, and
// the retry procedure takes over.
func (m *Manager) Connect(ctx context.Context) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrAlreadyClosed
	}
	if m.connecting || m.state.Phase == PhaseOpen {
		state := m.state
		m.mu.Unlock()
		m.logger.Debug("connect ignored", "state", state.String())
		return nil
	}

	m.retryCount = 0
	gen, sessCtx := m.beginSessionLocked()
	m.mu.Unlock()

	return m.open(ctx, gen, sessCtx)
}

// Disconnect closes the current connection with a normal-closure code,
// cancels any pending reconnect, and resets the manager so the next Connect
// starts clean.
func (m *Manager) Disconnect() {
	m.mu.Lock()
	conn, session := m.disconnectLocked()
	m.mu.Unlock()

	m.closeConn(conn, session)
}

// disconnectLocked invalidates the current session and detaches its
// connection, which the caller closes after releasing m.mu.
func (m *Manager) disconnectLocked() (Conn, string) {
	m.gen++
	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}
	conn, session := m.conn, m.session
	m.conn = nil
	m.session = ""
	m.connecting = false
	m.retryCount = 0

	switch m.state.Phase {
	case PhaseConnecting, PhaseOpen, PhaseReconnecting:
		m.setStateLocked(State{Phase: PhaseClosed})
	}
	return conn, session
}

func (m *Manager) closeConn(conn Conn, session string) {
	if conn == nil {
		return
	}
	if err := conn.Close(CloseNormalClosure, ""); err != nil {
		m.logger.Debug("close failed", "session", session, "error", err)
	}
	m.logger.Info("disconnected", "session", session)
}

// SendMessage sends payload as a message with the configured event name
// and no headers.
func (m *Manager) SendMessage(ctx context.Context, payload string) error {
	return m.Send(ctx, model.NewMessage(m.cfg.EventName, payload))
}

// Send encodes msg and writes it to the current connection.
// Encoding errors match model.ErrEncodingFailed; transport errors and a
// missing connection match model.ErrMessageSendFailed.
func (m *Manager) Send(ctx context.Context, msg model.Message) error {
	text, err := codec.Encode(msg)
	if err != nil {
		return err
	}

	m.mu.Lock()
	conn := m.conn
	m.mu.Unlock()

	if conn == nil {
		m.metrics.SendFailures.Inc()
		return model.NewError(model.ErrMessageSendFailed, ErrNotConnected)
	}

	if err := conn.Send(ctx, text); err != nil {
		m.metrics.SendFailures.Inc()
		m.logger.Warn("send failed", "error", err)
		return model.NewError(model.ErrMessageSendFailed, err)
	}

	m.metrics.MessagesSent.Inc()
	return nil
}

// Subscribe returns a subscription to connection events. Only events
// published after this call are delivered.
func (m *Manager) Subscribe() *events.Subscription[model.Event] {
	return m.events.Subscribe()
}

// WatchState returns a subscription to lifecycle state changes.
func (m *Manager) WatchState() *events.Subscription[State] {
	return m.states.Subscribe()
}

// State returns the current lifecycle state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// RetryCount returns the number of consecutive failed attempts.
func (m *Manager) RetryCount() uint {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.retryCount
}

// Stats returns current statistics.
func (m *Manager) Stats() ManagerStats {
	es := m.events.Stats()

	m.mu.Lock()
	defer m.mu.Unlock()
	return ManagerStats{
		State:       m.state,
		RetryCount:  m.retryCount,
		Session:     m.session,
		Subscribers: es.Subscribers,
		Published:   es.Published,
		Backlog:     es.Pending,
	}
}

// Close disconnects and ends both streams. The manager cannot be reused.
func (m *Manager) Close() {
	// closed is set with the generation bump so an in-flight open cannot
	// slip a live connection in between.
	m.mu.Lock()
	m.closed = true
	conn, session := m.disconnectLocked()
	m.mu.Unlock()

	m.closeConn(conn, session)

	m.events.Close()
	m.states.Close()
}

// beginSessionLocked claims the connecting flag for a new session and
// returns its generation and context.
func (m *Manager) beginSessionLocked() (uint64, context.Context) {
	if m.cancel != nil {
		m.cancel()
	}
	ctx, cancel := context.WithCancel(context.Background())
	m.gen++
	m.cancel = cancel
	m.connecting = true
	m.setStateLocked(State{Phase: PhaseConnecting})
	return m.gen, ctx
}

// open asks the transport for a new handle and arms the receive loop.
// The dial is aborted if either ctx or the session is cancelled.
func (m *Manager) open(ctx context.Context, gen uint64, sessCtx context.Context) error {
	dialCtx, cancelDial := context.WithCancel(ctx)
	stop := context.AfterFunc(sessCtx, cancelDial)
	conn, err := m.transport.Open(dialCtx, m.cfg.Endpoint)
	stop()
	cancelDial()

	m.mu.Lock()
	if gen != m.gen || m.closed {
		m.mu.Unlock()
		if conn != nil {
			conn.Close(CloseNormalClosure, "")
		}
		return ErrDisconnected
	}

	if err != nil {
		m.metrics.ConnectFailures.Inc()
		cerr := model.NewError(model.ErrConnectFailed, err)
		m.events.Publish(model.Failed(cerr))
		m.logger.Warn("connect failed", "endpoint", m.cfg.Endpoint, "error", err)

		if ctx.Err() != nil {
			// Caller gave up; not a transport failure
			m.connecting = false
			m.setStateLocked(State{Phase: PhaseClosed})
		} else {
			m.retryLocked(gen, sessCtx)
		}
		m.mu.Unlock()
		return cerr
	}

	m.conn = conn
	m.session = uuid.NewString()
	m.metrics.Connects.Inc()
	logger := m.logger.With("session", m.session)
	go m.receiveLoop(sessCtx, gen, conn, logger)
	m.setStateLocked(State{Phase: PhaseOpen})
	m.mu.Unlock()

	logger.Info("connected", "endpoint", m.cfg.Endpoint)
	return nil
}

// receiveLoop reads frames from conn until it fails or the session ends.
func (m *Manager) receiveLoop(ctx context.Context, gen uint64, conn Conn, logger *slog.Logger) {
	for {
		frame, err := conn.Receive(ctx)
		if err != nil {
			m.handleReceiveError(ctx, gen, err, logger)
			return
		}

		switch frame.Kind {
		case FrameText:
			if !m.handleText(gen, frame, logger) {
				return
			}
		default:
			m.metrics.FramesDropped.Inc()
			logger.Debug("ignoring frame", "kind", frame.Kind.String())
		}
	}
}

// handleText decodes and publishes one text frame. Returns false if the
// session has ended and the loop should exit.
func (m *Manager) handleText(gen uint64, frame Frame, logger *slog.Logger) bool {
	msg, err := codec.Decode(frame.Text)

	m.mu.Lock()
	defer m.mu.Unlock()

	if gen != m.gen {
		return false
	}

	if err != nil {
		m.metrics.DecodeFailures.Inc()
		m.events.Publish(model.Failed(err))
		logger.Warn("dropping undecodable frame", "size", len(frame.Text), "error", err)
		return true
	}

	m.retryCount = 0
	m.metrics.MessagesReceived.Inc()
	ev := model.Received(msg)
	if !frame.ReceivedAt.IsZero() {
		ev.At = frame.ReceivedAt
	}
	m.events.Publish(ev)
	return true
}

// handleReceiveError discards the failed handle and starts the retry
// procedure, unless the session was already ended by Disconnect.
func (m *Manager) handleReceiveError(sessCtx context.Context, gen uint64, err error, logger *slog.Logger) {
	m.mu.Lock()
	if gen != m.gen {
		m.mu.Unlock()
		logger.Debug("receive loop stopped", "error", err)
		return
	}

	logger.Warn("receive failed", "error", err)
	m.events.Publish(model.Failed(model.NewError(model.ErrReceiveFailed, err)))

	conn := m.conn
	m.conn = nil
	m.session = ""
	m.retryLocked(gen, sessCtx)
	m.mu.Unlock()

	if conn != nil {
		conn.Close(CloseGoingAway, "receive failed")
	}
}

// retryLocked either gives up (retry limit reached) or schedules the next
// connect after an exponential backoff delay.
func (m *Manager) retryLocked(gen uint64, sessCtx context.Context) {
	if m.retryCount >= m.cfg.MaxRetries {
		m.connecting = false
		m.setStateLocked(State{Phase: PhaseClosed})
		m.metrics.MaxRetriesReached.Inc()
		m.events.Publish(model.Failed(model.NewError(model.ErrMaxRetriesReached, nil)))
		m.logger.Error("giving up reconnecting",
			"endpoint", m.cfg.Endpoint,
			"retries", m.retryCount,
		)
		return
	}

	delay := backoffDelay(m.cfg.BaseDelay, m.retryCount)
	m.retryCount++
	m.setStateLocked(State{Phase: PhaseReconnecting, Attempt: m.retryCount})

	m.logger.Info("scheduling reconnect",
		"attempt", m.retryCount,
		"max_retries", m.cfg.MaxRetries,
		"delay", delay,
	)

	go m.reconnectAfter(sessCtx, gen, delay)
}

// reconnectAfter waits out delay, then reconnects if the session is still
// current. Disconnect cancels sessCtx, which ends the wait early.
func (m *Manager) reconnectAfter(sessCtx context.Context, gen uint64, delay time.Duration) {
	if err := m.sleep(sessCtx, delay); err != nil {
		return
	}

	m.mu.Lock()
	if gen != m.gen || m.closed {
		m.mu.Unlock()
		return
	}
	m.connecting = false
	newGen, newCtx := m.beginSessionLocked()
	m.mu.Unlock()

	m.metrics.Reconnects.Inc()
	if err := m.open(newCtx, newGen, newCtx); err != nil && !errors.Is(err, ErrDisconnected) {
		m.logger.Debug("reconnect attempt failed", "error", err)
	}
}

// setStateLocked records and publishes a state transition.
func (m *Manager) setStateLocked(s State) {
	if m.state == s {
		return
	}
	m.logger.Debug("state change", "from", m.state.String(), "to", s.String())
	m.state = s
	m.states.Publish(s)
}

// backoffDelay returns base * 2^n, saturating instead of overflowing.
func backoffDelay(base time.Duration, n uint) time.Duration {
	d := base
	for i := uint(0); i < n; i++ {
		if d > math.MaxInt64/2 {
			return math.MaxInt64
		}
		d *= 2
	}
	return d
}

// sleepContext waits for d or until ctx is cancelled.
func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
