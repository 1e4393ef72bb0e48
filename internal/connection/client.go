package connection

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/rickgao/relay/internal/version"
)

// Transport opens connections to an endpoint.
type Transport interface {
	// Open establishes a new connection. Each call returns a fresh handle.
	Open(ctx context.Context, endpoint string) (Conn, error)
}

// Conn is a single open connection.
type Conn interface {
	// Send writes one text frame.
	Send(ctx context.Context, text string) error

	// Receive blocks until the next frame arrives, the connection fails,
	// or ctx is cancelled.
	Receive(ctx context.Context) (Frame, error)

	// Close sends a close frame with code and reason, then releases the
	// connection. Safe to call more than once.
	Close(code int, reason string) error
}

// Signer produces handshake authentication headers.
type Signer interface {
	Sign(method, path string) (http.Header, error)
}

// wsTransport implements Transport over gorilla/websocket.
type wsTransport struct {
	cfg    ClientConfig
	signer Signer
	logger *slog.Logger
}

// NewWebSocketTransport creates a WebSocket transport. signer may be nil.
func NewWebSocketTransport(cfg ClientConfig, signer Signer, logger *slog.Logger) Transport {
	if logger == nil {
		logger = slog.Default()
	}

	return &wsTransport{
		cfg:    cfg,
		signer: signer,
		logger: logger,
	}
}

// Open dials endpoint and starts the keepalive loop.
func (t *wsTransport) Open(ctx context.Context, endpoint string) (Conn, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("parse endpoint: %w", err)
	}

	header := http.Header{}
	header.Set("User-Agent", version.UserAgent())
	for k, v := range t.cfg.Header {
		header.Set(k, v)
	}
	if t.signer != nil {
		signed, err := t.signer.Sign(http.MethodGet, u.Path)
		if err != nil {
			return nil, fmt.Errorf("sign handshake: %w", err)
		}
		for k, vs := range signed {
			header[k] = vs
		}
	}

	dialer := websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: t.cfg.HandshakeTimeout,
	}

	conn, resp, err := dialer.DialContext(ctx, endpoint, header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial %s: %w (status %d)", u.Host, err, resp.StatusCode)
		}
		return nil, fmt.Errorf("dial %s: %w", u.Host, err)
	}
	if t.cfg.ReadLimit > 0 {
		conn.SetReadLimit(t.cfg.ReadLimit)
	}

	c := &wsConn{
		cfg:    t.cfg,
		logger: t.logger,
		conn:   conn,
		done:   make(chan struct{}),
	}

	// Any control frame from the server proves liveness
	conn.SetPingHandler(func(data string) error {
		c.extendReadDeadline()
		err := conn.WriteControl(
			websocket.PongMessage,
			[]byte(data),
			time.Now().Add(time.Second),
		)
		if err == websocket.ErrCloseSent {
			return nil
		}
		return err
	})
	conn.SetPongHandler(func(string) error {
		c.extendReadDeadline()
		return nil
	})

	if t.cfg.PingInterval > 0 {
		go c.heartbeatLoop()
	}

	t.logger.Debug("websocket connected", "host", u.Host)
	return c, nil
}

// wsConn implements Conn.
type wsConn struct {
	cfg    ClientConfig
	logger *slog.Logger
	conn   *websocket.Conn

	// Write serialization
	writeMu sync.Mutex

	done      chan struct{}
	closeOnce sync.Once
	closed    atomic.Bool
}

// Send writes a text frame.
func (c *wsConn) Send(ctx context.Context, text string) error {
	if c.closed.Load() {
		return ErrNotConnected
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	deadline := time.Now().Add(c.cfg.WriteTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	c.conn.SetWriteDeadline(deadline)
	return c.conn.WriteMessage(websocket.TextMessage, []byte(text))
}

// Receive reads the next frame.
func (c *wsConn) Receive(ctx context.Context) (Frame, error) {
	if err := ctx.Err(); err != nil {
		return Frame{}, err
	}
	if c.closed.Load() {
		return Frame{}, ErrAlreadyClosed
	}

	c.extendReadDeadline()

	// Cancelling ctx forces the blocked read to return
	stop := context.AfterFunc(ctx, func() {
		c.conn.SetReadDeadline(time.Now())
	})
	defer stop()

	msgType, data, err := c.conn.ReadMessage()
	receivedAt := time.Now()

	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Frame{}, ctxErr
		}
		if c.closed.Load() {
			return Frame{}, ErrAlreadyClosed
		}
		return Frame{}, err
	}

	switch msgType {
	case websocket.TextMessage:
		return Frame{Kind: FrameText, Text: string(data), ReceivedAt: receivedAt}, nil
	case websocket.BinaryMessage:
		return Frame{Kind: FrameBinary, Data: data, ReceivedAt: receivedAt}, nil
	default:
		return Frame{Kind: FrameUnknown, ReceivedAt: receivedAt}, nil
	}
}

// Close sends a close frame and closes the socket.
func (c *wsConn) Close(code int, reason string) error {
	var err error
	c.closeOnce.Do(func() {
		c.closed.Store(true)
		close(c.done)

		c.conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(code, reason),
			time.Now().Add(time.Second),
		)
		err = c.conn.Close()
	})
	return err
}

func (c *wsConn) extendReadDeadline() {
	if c.cfg.ReadTimeout > 0 {
		c.conn.SetReadDeadline(time.Now().Add(c.cfg.ReadTimeout))
	}
}

// heartbeatLoop pings the server so idle connections stay up and a dead
// peer surfaces as a read timeout.
func (c *wsConn) heartbeatLoop() {
	ticker := time.NewTicker(c.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			deadline := time.Now().Add(c.cfg.WriteTimeout)
			if err := c.conn.WriteControl(websocket.PingMessage, []byte("keepalive"), deadline); err != nil {
				c.logger.Debug("failed to send ping", "error", err)
			}
		}
	}
}
